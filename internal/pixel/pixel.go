// Package pixel converts uncompressed source levels into the RGBA8 layout
// the block encoders and GPU kernels consume.
package pixel

import (
	"errors"
	"fmt"

	"github.com/gogpu/texcomp"
)

var (
	// ErrFormat is returned for source formats that cannot be converted.
	ErrFormat = errors.New("pixel: unsupported source format")

	// ErrShort is returned when a buffer is smaller than its dimensions.
	ErrShort = errors.New("pixel: buffer too small")
)

// Supported reports whether format can be converted to RGBA8.
func Supported(format texcomp.Format) bool {
	switch format {
	case texcomp.FormatRGBA8888, texcomp.FormatBGRA8888, texcomp.FormatARGB8888,
		texcomp.FormatRGB888, texcomp.FormatRG8, texcomp.FormatR8:
		return true
	}
	return false
}

func check(format texcomp.Format, data []byte, width, height int) error {
	if !Supported(format) {
		return fmt.Errorf("%w: %s", ErrFormat, format)
	}
	if need := width * height * format.BytesPerPixel(); width <= 0 || height <= 0 || len(data) < need {
		return fmt.Errorf("%w: %dx%d %s needs %d bytes, have %d", ErrShort, width, height, format, need, len(data))
	}
	return nil
}

// PadBlocks converts a width x height image of format into RGBA8 with both
// dimensions rounded up to a multiple of 4. Edge pixels are replicated
// into the padding. It returns the padded buffer and its stride.
func PadBlocks(format texcomp.Format, data []byte, width, height int) ([]byte, int, error) {
	if err := check(format, data, width, height); err != nil {
		return nil, 0, err
	}
	bpp := format.BytesPerPixel()
	pw := (width + 3) &^ 3
	ph := (height + 3) &^ 3
	stride := pw * 4
	out := make([]byte, stride*ph)

	for y := range ph {
		sy := min(y, height-1)
		row := out[y*stride : (y+1)*stride]
		for x := range pw {
			sx := min(x, width-1)
			toRGBA(format, data[(sy*width+sx)*bpp:], row[x*4:x*4+4])
		}
	}
	return out, stride, nil
}

// Pack converts a width x height image of format into one little-endian
// RGBA8 word per pixel, red in the low byte.
func Pack(format texcomp.Format, data []byte, width, height int) ([]byte, error) {
	if err := check(format, data, width, height); err != nil {
		return nil, err
	}
	bpp := format.BytesPerPixel()
	out := make([]byte, width*height*4)
	for i := range width * height {
		toRGBA(format, data[i*bpp:], out[i*4:i*4+4])
	}
	return out, nil
}

// toRGBA writes the pixel at the start of p as RGBA8 into out.
func toRGBA(format texcomp.Format, p, out []byte) {
	switch format {
	case texcomp.FormatRGBA8888:
		copy(out, p[:4])
	case texcomp.FormatBGRA8888:
		out[0], out[1], out[2], out[3] = p[2], p[1], p[0], p[3]
	case texcomp.FormatARGB8888:
		out[0], out[1], out[2], out[3] = p[1], p[2], p[3], p[0]
	case texcomp.FormatRGB888:
		out[0], out[1], out[2], out[3] = p[0], p[1], p[2], 255
	case texcomp.FormatRG8:
		out[0], out[1], out[2], out[3] = p[0], p[1], 0, 255
	case texcomp.FormatR8:
		out[0], out[1], out[2], out[3] = p[0], 0, 0, 255
	}
}
