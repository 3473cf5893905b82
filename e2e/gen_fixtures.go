//go:build ignore

// gen_fixtures creates a small mixed input set for a manual convert run:
// a PNG with alpha, a GIF, a JPEG, a corrupt PNG and a text file.
// Usage: go run gen_fixtures.go <output_dir>
//
//	imgconv convert <output_dir> --to webp --out /tmp/imgconv_e2e
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}

	write(filepath.Join(dir, "a.png"), func(f *os.File) error { return png.Encode(f, alphaGradient(120, 80)) })
	write(filepath.Join(dir, "b.gif"), func(f *os.File) error { return gif.Encode(f, gradient(64, 64), nil) })
	write(filepath.Join(dir, "c.jpg"), func(f *os.File) error {
		return jpeg.Encode(f, gradient(400, 225), &jpeg.Options{Quality: 85})
	})
	write(filepath.Join(dir, "d-corrupt.png"), func(f *os.File) error {
		_, err := f.Write([]byte("\x89PNG\r\n\x1a\ntruncated"))
		return err
	})
	write(filepath.Join(dir, "notes.txt"), func(f *os.File) error {
		_, err := f.WriteString("not an image; skipped at submission\n")
		return err
	})

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 5 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func write(path string, fn func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		panic(err)
	}
}
