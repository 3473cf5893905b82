package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os/exec"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/format"
	"github.com/AnyUserName/imgconv-cli/internal/metrics"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func pngFile(t *testing.T, name string, w, h int) InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return InputFile{Name: name, MediaType: "image/png", Data: buf.Bytes()}
}

func gifFile(t *testing.T, name string, w, h int) InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(w, h), nil))
	return InputFile{Name: name, MediaType: "image/gif", Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string, w, h int) InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 85}))
	return InputFile{Name: name, MediaType: "image/jpeg", Data: buf.Bytes()}
}

func corruptFile(name string) InputFile {
	return InputFile{Name: name, MediaType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nnot really")}
}

// oversizedFile is a tiny valid PNG whose header declares 200000x200000.
func oversizedFile(t *testing.T, name string) InputFile {
	t.Helper()
	f := pngFile(t, name, 1, 1)
	binary.BigEndian.PutUint32(f.Data[16:], 200000)
	binary.BigEndian.PutUint32(f.Data[20:], 200000)
	binary.BigEndian.PutUint32(f.Data[29:], crc32.ChecksumIEEE(f.Data[12:29]))
	return f
}

func names(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.OutputName
	}
	return out
}

func TestSubmitCapsAtMaxFilesInOrder(t *testing.T) {
	p := New(Config{}, nil)
	var files []InputFile
	for i := 0; i < 105; i++ {
		files = append(files, InputFile{Name: fmt.Sprintf("f%03d.png", i), MediaType: "image/png"})
	}

	accepted := p.Submit(files...)
	assert.Equal(t, 100, accepted)

	held := p.Inputs()
	require.Len(t, held, 100)
	for i, f := range held {
		assert.Equal(t, fmt.Sprintf("f%03d.png", i), f.Name)
	}

	assert.Zero(t, p.Submit(InputFile{Name: "late.png", MediaType: "image/png"}))
	assert.Equal(t, 100, p.Len())
}

func TestSubmitFillsRemainingCapacity(t *testing.T) {
	p := New(Config{MaxFiles: 5}, nil)
	assert.Equal(t, 3, p.Submit(
		InputFile{Name: "a", MediaType: "image/png"},
		InputFile{Name: "b", MediaType: "image/png"},
		InputFile{Name: "c", MediaType: "image/png"},
	))
	assert.Equal(t, 2, p.Submit(
		InputFile{Name: "d", MediaType: "image/png"},
		InputFile{Name: "e", MediaType: "image/png"},
		InputFile{Name: "f", MediaType: "image/png"},
		InputFile{Name: "g", MediaType: "image/png"},
	))
	var got []string
	for _, f := range p.Inputs() {
		got = append(got, f.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestSubmitSkipsNonImages(t *testing.T) {
	p := New(Config{MaxFiles: 2}, nil)
	accepted := p.Submit(
		InputFile{Name: "notes.txt", MediaType: "text/plain"},
		InputFile{Name: "a.png", MediaType: "image/png"},
		InputFile{Name: "clip.mp4", MediaType: "video/mp4"},
		InputFile{Name: "b.tif", MediaType: "IMAGE/TIFF"},
	)
	assert.Equal(t, 2, accepted)
	held := p.Inputs()
	assert.Equal(t, "a.png", held[0].Name)
	assert.Equal(t, "b.tif", held[1].Name)
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "first.png", 12, 9), corruptFile("second.png"), jpegFile(t, "third.jpg", 7, 5))

	results, err := p.Run(context.Background(), format.PNG)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, "first.png", results[0].OutputName)
	assert.Equal(t, 12, results[0].Width)
	assert.Equal(t, 9, results[0].Height)

	assert.False(t, results[1].OK())
	assert.Equal(t, "second.png", results[1].SourceName)
	assert.Equal(t, converter.KindDecode, results[1].Kind())
	assert.True(t, errors.Is(results[1].Err, converter.ErrDecode))
	assert.Empty(t, results[1].Data)

	assert.True(t, results[2].OK())
	assert.Equal(t, "third.png", results[2].OutputName)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, results, p.Results())
	assert.NotEmpty(t, p.RunID())
}

func TestRunIsolatesOversizedSource(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "ok.png", 6, 6), oversizedFile(t, "bomb.png"), pngFile(t, "ok2.png", 3, 2))

	results, err := p.Run(context.Background(), format.JPG)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Equal(t, converter.KindDecode, results[1].Kind())
	assert.True(t, errors.Is(results[1].Err, converter.ErrTooLarge))
	assert.True(t, results[2].OK())
	assert.Equal(t, "ok2.jpg", results[2].OutputName)
}

func TestRunMixedSourcesToTIFF(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 10, 6), gifFile(t, "b.gif", 8, 8), jpegFile(t, "c.jpg", 5, 3))

	results, err := p.Run(context.Background(), format.TIFF)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tiff", "b.tiff", "c.tiff"}, names(results))

	dims := [][2]int{{10, 6}, {8, 8}, {5, 3}}
	for i, r := range results {
		require.True(t, r.OK(), r.SourceName)
		cfg, name, err := image.DecodeConfig(bytes.NewReader(r.Data))
		require.NoError(t, err)
		assert.Equal(t, "tiff", name)
		assert.Equal(t, dims[i][0], cfg.Width)
		assert.Equal(t, dims[i][1], cfg.Height)
	}
}

func TestRunMixedSourcesToWebP(t *testing.T) {
	if _, err := exec.LookPath("cwebp"); err != nil {
		t.Skip("cwebp not installed")
	}
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 10, 6), gifFile(t, "b.gif", 8, 8), jpegFile(t, "c.jpg", 5, 3))

	results, err := p.Run(context.Background(), format.WEBP)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.webp", "b.webp", "c.webp"}, names(results))

	dims := [][2]int{{10, 6}, {8, 8}, {5, 3}}
	for i, r := range results {
		require.True(t, r.OK(), r.SourceName)
		img, err := webp.Decode(bytes.NewReader(r.Data))
		require.NoError(t, err)
		assert.Equal(t, dims[i][0], img.Bounds().Dx())
		assert.Equal(t, dims[i][1], img.Bounds().Dy())
	}
}

func TestRunParallelKeepsInputOrder(t *testing.T) {
	var files []InputFile
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("img%02d.png", i)
		if i%4 == 3 {
			files = append(files, corruptFile(name))
			continue
		}
		files = append(files, pngFile(t, name, 4+i, 3))
	}

	seq := New(Config{Workers: 1}, nil)
	seq.Submit(files...)
	want, err := seq.Run(context.Background(), format.BMP)
	require.NoError(t, err)

	par := New(Config{Workers: 4}, nil)
	par.Submit(files...)
	got, err := par.Run(context.Background(), format.BMP)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].SourceName, got[i].SourceName)
		assert.Equal(t, want[i].OutputName, got[i].OutputName)
		assert.Equal(t, want[i].OK(), got[i].OK())
		assert.Equal(t, want[i].Width, got[i].Width)
		assert.Equal(t, want[i].Data, got[i].Data)
	}
}

func TestResultsInvalidatedByMutations(t *testing.T) {
	ctx := context.Background()
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 4, 4), pngFile(t, "b.png", 4, 4))

	_, err := p.Run(ctx, format.GIF)
	require.NoError(t, err)
	require.Len(t, p.Results(), 2)

	require.NoError(t, p.RemoveAt(0))
	assert.Nil(t, p.Results())
	assert.Empty(t, p.RunID())

	results, err := p.Run(ctx, format.GIF)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.gif"}, names(results))

	p.Submit(pngFile(t, "c.png", 4, 4))
	assert.Nil(t, p.Results())

	_, err = p.Run(ctx, format.GIF)
	require.NoError(t, err)
	p.Clear()
	assert.Nil(t, p.Results())
	assert.Zero(t, p.Len())
}

func TestRunReplacesPreviousResultSet(t *testing.T) {
	ctx := context.Background()
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 4, 4))

	first, err := p.Run(ctx, format.GIF)
	require.NoError(t, err)
	second, err := p.Run(ctx, format.JPG)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.gif"}, names(first))
	assert.Equal(t, []string{"a.jpg"}, names(second))
	assert.Equal(t, []string{"a.jpg"}, names(p.Results()))
}

func TestRemoveAtOutOfRange(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(InputFile{Name: "a.png", MediaType: "image/png"})
	assert.True(t, errors.Is(p.RemoveAt(1), ErrIndexOutOfRange))
	assert.True(t, errors.Is(p.RemoveAt(-1), ErrIndexOutOfRange))
	assert.Equal(t, 1, p.Len())
}

func TestRunEmptyAndUnsupported(t *testing.T) {
	p := New(Config{}, nil)
	results, err := p.Run(context.Background(), format.PNG)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = p.Run(context.Background(), "avif")
	assert.True(t, errors.Is(err, format.ErrUnsupported))
}

func TestUnsupportedRunDiscardsPreviousResults(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 4, 4))
	_, err := p.Run(context.Background(), format.PNG)
	require.NoError(t, err)
	require.Len(t, p.Results(), 1)

	_, err = p.Run(context.Background(), "avif")
	assert.True(t, errors.Is(err, format.ErrUnsupported))
	assert.Nil(t, p.Results())
	assert.Empty(t, p.RunID())
}

func TestRunCancelled(t *testing.T) {
	p := New(Config{}, nil)
	p.Submit(pngFile(t, "a.png", 4, 4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, format.PNG)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, p.Results())
}

// gateCodec blocks in Decode until released.
type gateCodec struct {
	converter.Codec
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateCodec) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Codec.Decode(ctx, data)
}

func TestSupersededRunIsDiscarded(t *testing.T) {
	gate := &gateCodec{
		Codec:   converter.NewImageCodec(nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	p := New(Config{Metrics: m}, converter.New(gate))
	p.Submit(pngFile(t, "a.png", 4, 4), pngFile(t, "b.png", 4, 4))

	h := p.Start(context.Background(), format.PNG)
	select {
	case <-h.Done():
		t.Fatal("run finished before it was released")
	case <-gate.entered:
	}

	p.Clear()
	p.Submit(pngFile(t, "c.png", 4, 4))
	close(gate.release)

	results, err := h.Wait()
	assert.True(t, errors.Is(err, ErrSuperseded))
	assert.Nil(t, results)
	assert.Nil(t, p.Results())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs().WithLabelValues("superseded")))

	results, err = p.Run(context.Background(), format.PNG)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.png"}, names(results))
}

func TestRunRecordsMetrics(t *testing.T) {
	m := metrics.MustNew(prometheus.NewRegistry())
	p := New(Config{Metrics: m}, nil)
	p.Submit(pngFile(t, "a.png", 4, 4), corruptFile("b.png"), pngFile(t, "c.png", 4, 4))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InputsHeld()))

	_, err := p.Run(context.Background(), format.PNG)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Conversions().WithLabelValues("png", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conversions().WithLabelValues("png", "decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs().WithLabelValues("completed")))
}
