package texcomp

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// GenerateMipLevels fills levels 1.. of ms by box-filtering the level above,
// stopping before either dimension drops below minSize. Level 0 of every
// face must already hold data. Only RGBA_8888 and BGRA_8888 2D, cube map
// and array sets are supported.
func GenerateMipLevels(ms *MipSet, minSize int) error {
	if ms == nil || ms.Freed() {
		return newError(CodeInvalidSourceTexture, "generate mip levels", errNilSource)
	}
	if ms.Format != FormatRGBA8888 && ms.Format != FormatBGRA8888 {
		return newError(CodeUnsupportedSourceFormat, "generate mip levels",
			fmt.Errorf("format %s", ms.Format))
	}
	if ms.TextureType == TextureTypeVolume {
		return newError(CodeUnsupportedSourceFormat, "generate mip levels",
			fmt.Errorf("texture type %s", ms.TextureType))
	}
	minSize = max(minSize, 1)

	for face := range ms.MaxFacesOrSlices(0) {
		if lvl := ms.Level(0, face); lvl == nil || len(lvl.Data) < lvl.Width*lvl.Height*4 {
			return newError(CodeInvalidSourceTexture, "generate mip levels",
				fmt.Errorf("%w: face %d", errShortLevel, face))
		}
	}

	levels := 1
	for l := 1; l < ms.MaxMipLevels; l++ {
		w, h := levelDims(ms.Width, ms.Height, l)
		if w < minSize || h < minSize {
			break
		}
		for face := range ms.MaxFacesOrSlices(l) {
			prev := ms.Level(l-1, face)
			src := &image.NRGBA{
				Pix:    prev.Data,
				Stride: prev.Width * 4,
				Rect:   image.Rect(0, 0, prev.Width, prev.Height),
			}
			small := imaging.Resize(src, w, h, imaging.Box)

			lvl, err := ms.AllocateLevelData(l, face, w, h)
			if err != nil {
				return err
			}
			for y := range h {
				copy(lvl.Data[y*w*4:(y+1)*w*4], small.Pix[y*small.Stride:])
			}
		}
		levels++
	}
	ms.MipLevels = levels
	return nil
}
