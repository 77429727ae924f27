package texcomp

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	errEmptyPath    = errors.New("empty path")
	errNilTexture   = errors.New("nil texture")
	errEmptyTexture = errors.New("texture has no data")
)

// fileExtKey returns the Image plugin key for path: its extension,
// uppercase, without the dot.
func fileExtKey(path string) string {
	return extensionKey(filepath.Ext(path))
}

// Load reads a texture file.
//
// The Image plugin registered for the file extension is tried first. When
// there is none, or it fails, the generic raster decoder is used, which
// always yields a single-level RGBA_8888 MipSet. The returned set has its
// active view on level 0, face 0 unless the plugin chose another.
func (f *Framework) Load(path string) (*MipSet, error) {
	if path == "" {
		return nil, newError(CodeUnableToLoadFile, "load", errEmptyPath)
	}
	log := f.log()
	key := fileExtKey(path)

	if plugin, err := f.reg.Image(key); err == nil {
		if err := plugin.SetSharedIO(log); err != nil {
			log.Warn("texcomp: image plugin rejected shared IO", "ext", key, "err", err)
		}
		ms, err := plugin.Load(path)
		if err == nil && ms != nil {
			if ms.ActiveLevel() == nil {
				if err := ms.SetActiveLevel(0, 0); err != nil {
					ms.Free()
					return nil, err
				}
			}
			return ms, nil
		}
		log.Warn("texcomp: image plugin failed, using generic decoder", "ext", key, "path", path, "err", err)
	}

	return loadRaster(path)
}

// Save writes ms to path.
//
// The Image plugin registered for the extension is tried first. When there
// is none, or it fails, PNG, BMP and JPEG files are written by the generic
// writer from the active view (level 0 when none is set), which must hold
// RGBA_8888 data. Other extensions fail with ErrUnsupportedDestinationFormat.
func (f *Framework) Save(path string, ms *MipSet) error {
	if path == "" {
		return newError(CodeInvalidDestTexture, "save", errEmptyPath)
	}
	if ms == nil || ms.Freed() {
		return newError(CodeInvalidSourceTexture, "save", errNilSource)
	}
	log := f.log()
	key := fileExtKey(path)

	var pluginErr error
	if plugin, err := f.reg.Image(key); err == nil {
		if err := plugin.SetSharedIO(log); err != nil {
			log.Warn("texcomp: image plugin rejected shared IO", "ext", key, "err", err)
		}
		if pluginErr = plugin.Save(path, ms); pluginErr == nil {
			return nil
		}
		log.Warn("texcomp: image plugin failed to save", "ext", key, "path", path, "err", pluginErr)
	}

	if !rasterWritable(key) {
		if pluginErr != nil {
			return newError(CodeUnsupportedDestinationFormat, "save", pluginErr)
		}
		return newError(CodeUnsupportedDestinationFormat, "save", fmt.Errorf("no writer for %q", key))
	}

	lvl := ms.ActiveLevel()
	if lvl == nil {
		lvl = ms.Level(0, 0)
	}
	if lvl == nil || ms.Format != FormatRGBA8888 {
		return newError(CodeInvalidSourceTexture, "save", fmt.Errorf("%w: have %s", errNotRGBA8, ms.Format))
	}
	return saveRaster(path, lvl.Width, lvl.Height, lvl.Data)
}

// SaveTexture writes a single Texture to path.
//
// PNG, BMP and JPEG are written directly from t.Data. Other extensions go
// through a temporary MipSet whose level 0 borrows t.Data for the duration
// of the save; the borrow ends before the temporary set is freed, so t.Data
// is never released by it.
func (f *Framework) SaveTexture(path string, t *Texture) error {
	if path == "" {
		return newError(CodeInvalidDestTexture, "save texture", errEmptyPath)
	}
	if t == nil {
		return newError(CodeInvalidDestTexture, "save texture", errNilTexture)
	}
	if len(t.Data) == 0 {
		return newError(CodeInvalidSourceTexture, "save texture", errEmptyTexture)
	}

	if key := fileExtKey(path); rasterWritable(key) {
		return saveRaster(path, t.Width, t.Height, t.Data)
	}

	tmp, err := NewMipSet(t.Width, t.Height, 1, t.Format, TextureType2D)
	if err != nil {
		return err
	}
	defer tmp.Free()

	if t.BlockWidth > 0 {
		tmp.BlockWidth, tmp.BlockHeight, tmp.BlockDepth = t.BlockWidth, t.BlockHeight, max(t.BlockDepth, 1)
	}
	return tmp.BorrowLevelData(0, 0, t.Data, func(*MipLevel) error {
		return f.Save(path, tmp)
	})
}
