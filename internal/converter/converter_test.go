package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// alphaRamp is opaque on the right, fully transparent on the left, with a
// partial-alpha band in between.
func alphaRamp(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 60, B: 30, A: uint8(x * 255 / (w - 1))})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestConvertKeepsDimensions(t *testing.T) {
	ctx := context.Background()
	data := encodePNG(t, alphaRamp(24, 17))
	c := New(nil)

	for _, f := range []format.Format{format.PNG, format.JPG, format.JPEG, format.GIF, format.BMP, format.ICO, format.TIFF} {
		out, err := c.Convert(ctx, "ramp.png", data, f)
		require.NoError(t, err, "format %s", f)
		assert.Equal(t, 24, out.Width, f)
		assert.Equal(t, 17, out.Height, f)
		assert.Equal(t, "png", out.SourceFormat)
		assert.NotEmpty(t, out.Data)

		if f == format.ICO {
			assert.Equal(t, []byte{0, 0, 1, 0}, out.Data[:4])
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Data))
		require.NoError(t, err, "decode %s output", f)
		assert.Equal(t, 24, cfg.Width, f)
		assert.Equal(t, 17, cfg.Height, f)
	}
}

func TestConvertFlattensJPEGToWhite(t *testing.T) {
	data := encodePNG(t, alphaRamp(32, 8))
	out, err := New(nil).Convert(context.Background(), "ramp.png", data, format.JPG)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			require.Equal(t, uint32(0xffff), a, "pixel %d,%d", x, y)
		}
	}
	r, g, bl, _ := img.At(0, 4).RGBA()
	assert.Greater(t, r>>8, uint32(235))
	assert.Greater(t, g>>8, uint32(235))
	assert.Greater(t, bl>>8, uint32(235))
}

func TestConvertPreservesPNGTransparency(t *testing.T) {
	src := alphaRamp(32, 8)
	out, err := New(nil).Convert(context.Background(), "ramp.png", encodePNG(t, src), format.PNG)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 32; x++ {
			want := src.NRGBAAt(x, y)
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			require.Equal(t, want.A, got.A, "alpha at %d,%d", x, y)
			if want.A == 255 {
				require.Equal(t, want, got, "color at %d,%d", x, y)
			}
		}
	}
}

func TestCompositeFlattenFillsWhite(t *testing.T) {
	codec := NewImageCodec(nil)
	src := image.NewNRGBA(image.Rect(5, 5, 9, 9)) // fully transparent, offset bounds

	flat := codec.Composite(src, format.FlattenToWhite)
	assert.Equal(t, image.Rect(0, 0, 4, 4), flat.Bounds())
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, flat.NRGBAAt(2, 2))

	kept := codec.Composite(src, format.Preserve)
	assert.Equal(t, uint8(0), kept.NRGBAAt(2, 2).A)
}

func TestConvertDecodeError(t *testing.T) {
	c := New(nil)
	for name, data := range map[string][]byte{
		"garbage":   []byte("definitely not an image"),
		"empty":     nil,
		"truncated": encodePNG(t, alphaRamp(16, 16))[:40],
	} {
		_, err := c.Convert(context.Background(), name, data, format.PNG)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrDecode), name)
		assert.False(t, errors.Is(err, ErrEncode), name)
		assert.Equal(t, KindDecode, KindOf(err), name)
		assert.Contains(t, err.Error(), name)
	}
}

// inflatedPNG returns a valid 1x1 PNG whose IHDR declares w x h.
func inflatedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestConvertRejectsOversizedHeader(t *testing.T) {
	data := inflatedPNG(t, 200000, 200000)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 200000, cfg.Width)

	_, err = New(nil).Convert(context.Background(), "bomb.png", data, format.PNG)
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestConvertHonoursMaxPixels(t *testing.T) {
	codec := NewImageCodec(nil)
	codec.MaxPixels = 99
	c := New(codec)
	data := encodePNG(t, alphaRamp(10, 10))

	_, err := c.Convert(context.Background(), "ten.png", data, format.PNG)
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Equal(t, KindDecode, KindOf(err))

	codec.MaxPixels = 100
	_, err = c.Convert(context.Background(), "ten.png", data, format.PNG)
	assert.NoError(t, err)
}

func TestConvertICOTooLargeIsEncodeError(t *testing.T) {
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 300, 10)))
	_, err := New(nil).Convert(context.Background(), "wide.png", data, format.ICO)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncode))
	assert.Equal(t, KindEncode, KindOf(err))
}

func TestConvertUnsupportedTarget(t *testing.T) {
	_, err := New(nil).Convert(context.Background(), "a.png", encodePNG(t, alphaRamp(4, 4)), "avif")
	assert.True(t, errors.Is(err, format.ErrUnsupported))
	assert.Zero(t, KindOf(err))
}

func TestConvertCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Convert(ctx, "a.png", encodePNG(t, alphaRamp(4, 4)), format.PNG)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, KindOf(err))
}

// stubCodec decodes to a fixed surface and encodes with a canned result.
type stubCodec struct {
	surface image.Image
	out     []byte
	err     error
}

func (s stubCodec) Decode(context.Context, []byte) (image.Image, string, error) {
	return s.surface, "stub", nil
}

func (s stubCodec) Composite(src image.Image, policy format.AlphaPolicy) *image.NRGBA {
	return NewImageCodec(nil).Composite(src, policy)
}

func (s stubCodec) Encode(context.Context, image.Image, format.Format, int) ([]byte, error) {
	return s.out, s.err
}

func TestConvertEncodeFailures(t *testing.T) {
	surface := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	cases := map[string]stubCodec{
		"encoder error": {surface: surface, err: errors.New("boom")},
		"no bytes":      {surface: surface},
		"zero surface":  {surface: image.NewNRGBA(image.Rect(0, 0, 0, 0)), out: []byte{1}},
	}
	for name, codec := range cases {
		_, err := New(codec).Convert(context.Background(), "x.png", []byte{1}, format.PNG)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrEncode), name)
	}
}

// bmpAlpha reads alpha straight from a 32-bit BMP pixel array.
func bmpAlpha(t *testing.T, data []byte) image.Image {
	t.Helper()
	require.Equal(t, "BM", string(data[:2]))
	require.Equal(t, uint16(32), binary.LittleEndian.Uint16(data[28:]), "bits per pixel")
	off := int(binary.LittleEndian.Uint32(data[10:]))
	w := int(int32(binary.LittleEndian.Uint32(data[18:])))
	h := int(int32(binary.LittleEndian.Uint32(data[22:])))
	bottomUp := h > 0
	if h < 0 {
		h = -h
	}
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y
		if bottomUp {
			row = h - 1 - y
		}
		for x := 0; x < w; x++ {
			img.SetAlpha(x, y, color.Alpha{A: data[off+row*w*4+x*4+3]})
		}
	}
	return img
}

// icoPayload decodes the PNG image stored in a single-entry ICO.
func icoPayload(t *testing.T, data []byte) image.Image {
	t.Helper()
	require.Equal(t, []byte{0, 0, 1, 0}, data[:4])
	size := binary.LittleEndian.Uint32(data[14:])
	off := binary.LittleEndian.Uint32(data[18:])
	payload := data[off : off+size]
	require.Equal(t, "\x89PNG", string(payload[:4]), "png payload")
	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	return img
}

func decodeAny(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestConvertPreservesAlphaPerFormat(t *testing.T) {
	const w, h = 32, 4
	src := alphaRamp(w, h)
	data := encodePNG(t, src)

	cases := []struct {
		format format.Format
		decode func(*testing.T, []byte) image.Image
		binary bool
		delta  int
		needs  string
	}{
		{format: format.TIFF, decode: decodeAny},
		{format: format.BMP, decode: bmpAlpha},
		{format: format.ICO, decode: icoPayload},
		{format: format.GIF, decode: func(t *testing.T, b []byte) image.Image {
			img, err := gif.Decode(bytes.NewReader(b))
			require.NoError(t, err)
			return img
		}, binary: true},
		{format: format.WEBP, decode: decodeAny, delta: 2, needs: "cwebp"},
	}

	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			if tc.needs != "" {
				if _, err := exec.LookPath(tc.needs); err != nil {
					t.Skipf("%s not installed", tc.needs)
				}
			}
			out, err := New(nil).Convert(context.Background(), "ramp.png", data, tc.format)
			require.NoError(t, err)

			img := tc.decode(t, out.Data)
			require.Equal(t, image.Pt(w, h), img.Bounds().Size())
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					want := int(src.NRGBAAt(x, y).A)
					_, _, _, a16 := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
					got := int(a16 >> 8)
					switch {
					case tc.binary && want == 0, tc.binary && want == 255:
						require.Equal(t, want, got, "alpha at %d,%d", x, y)
					case tc.binary:
						require.Contains(t, []int{0, 255}, got, "alpha at %d,%d", x, y)
					default:
						require.InDelta(t, want, got, float64(tc.delta), "alpha at %d,%d", x, y)
					}
				}
			}
		})
	}
}
