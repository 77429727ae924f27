package texcomp

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the WebP decoder for the generic loader
)

// Extensions the generic raster writer produces.
var rasterWriteExts = map[string]bool{
	"PNG":  true,
	"BMP":  true,
	"JPG":  true,
	"JPEG": true,
}

var errNotRGBA8 = errors.New("generic writer needs RGBA_8888 data")

// loadRaster decodes any image the standard decoders (plus WebP, BMP and
// TIFF) understand into a single-level RGBA_8888 MipSet. Any open or
// decode failure is reported as an unsupported source format, the cause
// kept in the chain.
func loadRaster(path string) (*MipSet, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, newError(CodeUnsupportedSourceFormat, "load", err)
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()

	ms, err := NewMipSet(b.Dx(), b.Dy(), 1, FormatRGBA8888, TextureType2D)
	if err != nil {
		return nil, err
	}
	lvl, err := ms.AllocateLevelData(0, 0, b.Dx(), b.Dy())
	if err != nil {
		ms.Free()
		return nil, err
	}
	for y := range b.Dy() {
		copy(lvl.Data[y*b.Dx()*4:(y+1)*b.Dx()*4], nrgba.Pix[y*nrgba.Stride:])
	}
	ms.MipLevels = 1
	ms.active = lvl
	return ms, nil
}

// rasterWritable reports whether the generic writer handles ext.
func rasterWritable(ext string) bool {
	return rasterWriteExts[ext]
}

// saveRaster writes width*height RGBA8 pixels to path.
func saveRaster(path string, width, height int, pix []byte) error {
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return newError(CodeInvalidSourceTexture, "save", fmt.Errorf("%w: %dx%d with %d bytes", errNotRGBA8, width, height, len(pix)))
	}
	img := &image.NRGBA{
		Pix:    pix[:width*height*4],
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(100)); err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return newError(CodeUnsupportedDestinationFormat, "save", err)
		}
		return newError(CodeInvalidDestTexture, "save", err)
	}
	return nil
}

