// Package dds is the Image plugin for DirectDraw Surface files.
//
// It reads and writes 2D textures, cube maps, volumes and texture arrays
// with full mip chains. Legacy headers are written where a FourCC or channel
// mask layout exists for the format; everything else, and every array, gets
// the DX10 extended header.
package dds

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/texcomp"
)

// Extension is the key the plugin registers under.
const Extension = "DDS"

// maxDimension bounds header sizes before anything is allocated.
const maxDimension = 1 << 15

var (
	// ErrMagic is returned when the file does not start with "DDS ".
	ErrMagic = errors.New("dds: bad magic")

	// ErrHeader is returned for a malformed or inconsistent header.
	ErrHeader = errors.New("dds: invalid header")

	// ErrFormat is returned for a pixel format the plugin cannot map.
	ErrFormat = errors.New("dds: unsupported pixel format")

	errNilMipSet    = errors.New("dds: nil or freed mip set")
	errMissingLevel = errors.New("dds: level data missing")
)

func init() {
	texcomp.RegisterImagePlugin(Extension, func() texcomp.ImagePlugin { return New() })
}

// Plugin loads and saves DDS files.
type Plugin struct {
	log *slog.Logger
}

var _ texcomp.ImagePlugin = (*Plugin)(nil)

// New returns a DDS plugin logging to the package logger.
func New() *Plugin {
	return &Plugin{log: texcomp.Logger()}
}

// SetSharedIO sets the logger.
func (p *Plugin) SetSharedIO(l *slog.Logger) error {
	if l == nil {
		return errors.New("dds: nil logger")
	}
	p.log = l
	return nil
}

// Load reads the DDS file at path.
func (p *Plugin) Load(path string) (*texcomp.MipSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ms, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.log.Debug("dds: loaded",
		"path", path,
		"format", ms.Format.String(),
		"type", ms.TextureType.String(),
		"width", ms.Width,
		"height", ms.Height,
		"depth", ms.Depth,
		"mips", ms.MipLevels)
	return ms, nil
}

// Save writes ms to path, replacing any existing file.
func (p *Plugin) Save(path string, ms *texcomp.MipSet) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := Encode(w, ms); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	p.log.Debug("dds: saved", "path", path, "format", ms.Format.String(), "mips", ms.MipLevels)
	return nil
}

// levelSize returns the byte size of one face or slice of level lvl.
func levelSize(ms *texcomp.MipSet, w, h int) int {
	t := texcomp.Texture{
		Width:       w,
		Height:      h,
		BlockWidth:  ms.BlockWidth,
		BlockHeight: ms.BlockHeight,
		BlockDepth:  ms.BlockDepth,
		Format:      ms.Format,
	}
	return t.BufferSize()
}

func levelDims(ms *texcomp.MipSet, mip int) (int, int) {
	return max(ms.Width>>mip, 1), max(ms.Height>>mip, 1)
}

// forEachLevel visits every (mip, face) of ms in file order: face-major for
// 2D, cube and array sets, mip-major for volumes.
func forEachLevel(ms *texcomp.MipSet, fn func(mip, face int) error) error {
	if ms.TextureType == texcomp.TextureTypeVolume {
		for mip := range ms.MipLevels {
			for slice := range ms.MaxFacesOrSlices(mip) {
				if err := fn(mip, slice); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for face := range ms.MaxFacesOrSlices(0) {
		for mip := range ms.MipLevels {
			if err := fn(mip, face); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode reads a DDS stream into a new MipSet with its active view on
// level 0, face 0.
func Decode(r io.Reader) (*texcomp.MipSet, error) {
	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("dds: read magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("%w: %#08x", ErrMagic, m)
	}

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("dds: read header: %w", err)
	}
	if hdr.Size != 124 || hdr.PixelFormat.Size != 32 {
		return nil, fmt.Errorf("%w: sizes %d/%d", ErrHeader, hdr.Size, hdr.PixelFormat.Size)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Width > maxDimension || hdr.Height > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrHeader, hdr.Width, hdr.Height)
	}

	format, tt, depth, err := describe(r, &hdr)
	if err != nil {
		return nil, err
	}

	ms, err := texcomp.NewMipSet(int(hdr.Width), int(hdr.Height), depth, format, tt)
	if err != nil {
		return nil, err
	}
	if hdr.MipMapCount > 1 {
		ms.MipLevels = min(int(hdr.MipMapCount), ms.MaxMipLevels)
	}

	err = forEachLevel(ms, func(mip, face int) error {
		w, h := levelDims(ms, mip)
		size := levelSize(ms, w, h)
		lvl, err := ms.AllocateCompressedLevelData(mip, face, w, h, size)
		if err != nil {
			return err
		}
		if _, err := io.ReadFull(r, lvl.Data); err != nil {
			return fmt.Errorf("dds: read mip %d face %d: %w", mip, face, err)
		}
		return nil
	})
	if err == nil {
		err = ms.SetActiveLevel(0, 0)
	}
	if err != nil {
		ms.Free()
		return nil, err
	}
	return ms, nil
}

// describe resolves format, texture type and depth from the header,
// reading the DX10 extension from r when present.
func describe(r io.Reader, hdr *header) (texcomp.Format, texcomp.TextureType, int, error) {
	pf := hdr.PixelFormat
	if pf.Flags&pfFourCC != 0 && pf.FourCC == fourCCDX10 {
		var ext dx10Header
		if err := binary.Read(r, binary.LittleEndian, &ext); err != nil {
			return 0, 0, 0, fmt.Errorf("dds: read dx10 header: %w", err)
		}
		format, ok := dxgiFormats[ext.DXGIFormat]
		if !ok {
			return 0, 0, 0, fmt.Errorf("%w: DXGI format %d", ErrFormat, ext.DXGIFormat)
		}
		arraySize := max(int(ext.ArraySize), 1)
		switch {
		case ext.ResourceDimension == dx10Dimension3D:
			return format, texcomp.TextureTypeVolume, volumeDepth(hdr), nil
		case ext.MiscFlag&dx10MiscCube != 0:
			if arraySize != 1 {
				return 0, 0, 0, fmt.Errorf("%w: cube map arrays", ErrHeader)
			}
			return format, texcomp.TextureTypeCubeMap, 6, nil
		case arraySize > 1:
			if arraySize > maxDimension {
				return 0, 0, 0, fmt.Errorf("%w: array size %d", ErrHeader, arraySize)
			}
			return format, texcomp.TextureType2DArray, arraySize, nil
		default:
			return format, texcomp.TextureType2D, 1, nil
		}
	}

	format, ok := legacyFormat(pf)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: flags %#x fourcc %#08x bits %d", ErrFormat, pf.Flags, pf.FourCC, pf.RGBBitCount)
	}
	switch {
	case hdr.Caps2&caps2CubeMap != 0:
		if hdr.Caps2&caps2AllFaces != caps2AllFaces {
			return 0, 0, 0, fmt.Errorf("%w: partial cube map", ErrHeader)
		}
		return format, texcomp.TextureTypeCubeMap, 6, nil
	case hdr.Caps2&caps2Volume != 0 && hdr.Depth > 1:
		return format, texcomp.TextureTypeVolume, volumeDepth(hdr), nil
	default:
		return format, texcomp.TextureType2D, 1, nil
	}
}

func volumeDepth(hdr *header) int {
	return min(max(int(hdr.Depth), 1), maxDimension)
}

// Encode writes ms as a DDS stream. Every level in use must hold data.
func Encode(w io.Writer, ms *texcomp.MipSet) error {
	if ms == nil || ms.Freed() {
		return errNilMipSet
	}

	pf, legacy := legacyPixelFormat(ms.Format)
	if ms.TextureType == texcomp.TextureType2DArray {
		legacy = false
	}
	var ext dx10Header
	if !legacy {
		dxgi, ok := formatDXGI[ms.Format]
		if !ok {
			return fmt.Errorf("%w: %s", ErrFormat, ms.Format)
		}
		pf = pixelFormat{Size: 32, Flags: pfFourCC, FourCC: fourCCDX10}
		ext = dx10Header{DXGIFormat: dxgi, ResourceDimension: dx10Dimension2D, ArraySize: 1}
	}

	hdr := header{
		Size:        124,
		Flags:       flagCaps | flagHeight | flagWidth | flagPixelFormat,
		Height:      uint32(ms.Height),
		Width:       uint32(ms.Width),
		MipMapCount: uint32(ms.MipLevels),
		PixelFormat: pf,
		Caps:        capsTexture,
	}
	if ms.Format.IsCompressed() {
		hdr.Flags |= flagLinearSize
		hdr.PitchOrLinearSize = uint32(levelSize(ms, ms.Width, ms.Height))
	} else {
		hdr.Flags |= flagPitch
		hdr.PitchOrLinearSize = uint32(ms.Width * ms.Format.BytesPerPixel())
	}
	if ms.MipLevels > 1 {
		hdr.Flags |= flagMipMapCount
		hdr.Caps |= capsComplex | capsMipMap
	}

	switch ms.TextureType {
	case texcomp.TextureTypeCubeMap:
		hdr.Caps |= capsComplex
		hdr.Caps2 = caps2CubeMap | caps2AllFaces
		ext.MiscFlag = dx10MiscCube
	case texcomp.TextureTypeVolume:
		hdr.Flags |= flagDepth
		hdr.Depth = uint32(ms.Depth)
		hdr.Caps |= capsComplex
		hdr.Caps2 = caps2Volume
		ext.ResourceDimension = dx10Dimension3D
	case texcomp.TextureType2DArray:
		hdr.Caps |= capsComplex
		ext.ArraySize = uint32(ms.Depth)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if !legacy {
		if err := binary.Write(w, binary.LittleEndian, &ext); err != nil {
			return err
		}
	}

	return forEachLevel(ms, func(mip, face int) error {
		lvl := ms.Level(mip, face)
		lw, lh := levelDims(ms, mip)
		want := levelSize(ms, lw, lh)
		if lvl == nil || len(lvl.Data) < want {
			return fmt.Errorf("%w: mip %d face %d", errMissingLevel, mip, face)
		}
		_, err := w.Write(lvl.Data[:want])
		return err
	})
}
