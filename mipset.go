package texcomp

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// MipLevel is one mip level of one face or slice.
// Its buffer is owned by the MipSet whose table holds the level.
type MipLevel struct {
	Width  int
	Height int
	Data   []byte
}

// Size returns the linear data size of the level in bytes.
func (l *MipLevel) Size() int { return len(l.Data) }

// Checksum returns the xxhash64 digest of the level data.
func (l *MipLevel) Checksum() uint64 { return xxhash.Sum64(l.Data) }

// MipSet is a texture resource: every mip level of every face or slice,
// plus the format metadata that describes them.
//
// A MipSet carries an active view, a reference to the level currently being
// processed. The view never owns memory of its own; it always names one
// entry of the level table.
type MipSet struct {
	Width  int
	Height int
	Depth  int // faces for cube maps, slices for arrays and volumes

	ChannelFormat ChannelFormat
	Format        Format
	TextureType   TextureType

	BlockWidth  int
	BlockHeight int
	BlockDepth  int

	// MipLevels is the number of levels in use, at most MaxMipLevels.
	MipLevels    int
	MaxMipLevels int

	table  []*MipLevel // level-major
	starts []int       // index of the first entry of each level in table
	active *MipLevel
	freed  bool
}

var (
	errInvalidDimensions = errors.New("invalid dimensions")
	errFreed             = errors.New("mip set already freed")
	errLevelRange        = errors.New("mip level or face out of range")
)

// NewMipSet allocates a MipSet and its level table.
// The table holds every level down to 1x1; MipLevels starts at 1 and the
// level buffers are empty until allocated with AllocateLevelData or
// AllocateCompressedLevelData.
func NewMipSet(width, height, depth int, format Format, tt TextureType) (*MipSet, error) {
	if width <= 0 || height <= 0 {
		return nil, newError(CodeMemAllocForMipSet, "allocate mip set",
			fmt.Errorf("%w: %dx%d", errInvalidDimensions, width, height))
	}
	if depth <= 0 {
		depth = 1
	}
	if tt == TextureTypeCubeMap && depth != 6 {
		return nil, newError(CodeMemAllocForMipSet, "allocate mip set",
			fmt.Errorf("%w: cube map needs 6 faces, got %d", errInvalidDimensions, depth))
	}

	ms := &MipSet{
		Width:         width,
		Height:        height,
		Depth:         depth,
		ChannelFormat: format.ChannelFormat(),
		Format:        format,
		TextureType:   tt,
		BlockWidth:    1,
		BlockHeight:   1,
		BlockDepth:    1,
		MipLevels:     1,
	}
	if format.IsCompressed() {
		ms.BlockWidth, ms.BlockHeight = 4, 4
	}
	ms.MaxMipLevels = maxMipLevels(width, height, depth, tt)

	ms.starts = make([]int, ms.MaxMipLevels)
	n := 0
	for l := range ms.MaxMipLevels {
		ms.starts[l] = n
		n += ms.MaxFacesOrSlices(l)
	}
	ms.table = make([]*MipLevel, n)
	for l := range ms.MaxMipLevels {
		w, h := levelDims(width, height, l)
		for f := range ms.MaxFacesOrSlices(l) {
			ms.table[ms.starts[l]+f] = &MipLevel{Width: w, Height: h}
		}
	}
	return ms, nil
}

// maxMipLevels counts the levels down to 1x1 (and depth 1 for volumes).
func maxMipLevels(width, height, depth int, tt TextureType) int {
	n := 1
	for width > 1 || height > 1 || (tt == TextureTypeVolume && depth > 1) {
		width = max(width>>1, 1)
		height = max(height>>1, 1)
		depth = max(depth>>1, 1)
		n++
	}
	return n
}

func levelDims(width, height, level int) (int, int) {
	return max(width>>level, 1), max(height>>level, 1)
}

// MaxFacesOrSlices returns the number of table entries at the given level:
// 1 for 2D, Depth for cube maps and arrays, and the halved depth for volumes.
func (ms *MipSet) MaxFacesOrSlices(level int) int {
	switch ms.TextureType {
	case TextureTypeVolume:
		return max(ms.Depth>>level, 1)
	case TextureTypeCubeMap, TextureType2DArray:
		return ms.Depth
	default:
		return 1
	}
}

// Level returns the table entry for (mip, face), or nil when out of range
// or the set has been freed.
func (ms *MipSet) Level(mip, face int) *MipLevel {
	if ms == nil || ms.freed || mip < 0 || mip >= len(ms.starts) {
		return nil
	}
	if face < 0 || face >= ms.MaxFacesOrSlices(mip) {
		return nil
	}
	return ms.table[ms.starts[mip]+face]
}

// GetMipLevel returns the level for (mip, face) of ms, or nil.
func GetMipLevel(ms *MipSet, mip, face int) *MipLevel {
	return ms.Level(mip, face)
}

func (ms *MipSet) levelFor(op string, mip, face int) (*MipLevel, error) {
	if ms.freed {
		return nil, newError(CodeMemAllocForMipSet, op, errFreed)
	}
	lvl := ms.Level(mip, face)
	if lvl == nil {
		return nil, newError(CodeMemAllocForMipSet, op,
			fmt.Errorf("%w: mip %d face %d", errLevelRange, mip, face))
	}
	return lvl, nil
}

// AllocateLevelData allocates an uncompressed buffer for (mip, face) sized
// by the set's format.
func (ms *MipSet) AllocateLevelData(mip, face, width, height int) (*MipLevel, error) {
	lvl, err := ms.levelFor("allocate level", mip, face)
	if err != nil {
		return nil, err
	}
	bpp := ms.Format.BytesPerPixel()
	if width <= 0 || height <= 0 || bpp == 0 {
		return nil, newError(CodeMemAllocForMipSet, "allocate level",
			fmt.Errorf("%w: %dx%d %s", errInvalidDimensions, width, height, ms.Format))
	}
	lvl.Width, lvl.Height = width, height
	lvl.Data = make([]byte, width*height*bpp)
	return lvl, nil
}

// AllocateCompressedLevelData allocates a size-byte buffer for (mip, face).
func (ms *MipSet) AllocateCompressedLevelData(mip, face, width, height, size int) (*MipLevel, error) {
	lvl, err := ms.levelFor("allocate compressed level", mip, face)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || size <= 0 {
		return nil, newError(CodeMemAllocForMipSet, "allocate compressed level",
			fmt.Errorf("%w: %dx%d size %d", errInvalidDimensions, width, height, size))
	}
	lvl.Width, lvl.Height = width, height
	lvl.Data = make([]byte, size)
	return lvl, nil
}

// freeLevelData drops the buffer of (mip, face).
func (ms *MipSet) freeLevelData(mip, face int) {
	if lvl := ms.Level(mip, face); lvl != nil {
		if ms.active == lvl {
			ms.active = nil
		}
		lvl.Data = nil
	}
}

// SetActiveLevel points the active view at (mip, face).
func (ms *MipSet) SetActiveLevel(mip, face int) error {
	lvl, err := ms.levelFor("set active level", mip, face)
	if err != nil {
		return err
	}
	ms.active = lvl
	return nil
}

// ActiveLevel returns the level the active view refers to, or nil.
func (ms *MipSet) ActiveLevel() *MipLevel { return ms.active }

// ActiveData returns the buffer aliased by the active view, or nil.
func (ms *MipSet) ActiveData() []byte {
	if ms.active == nil {
		return nil
	}
	return ms.active.Data
}

// ClearActive detaches the active view.
func (ms *MipSet) ClearActive() { ms.active = nil }

// WithActiveLevel runs fn with the active view on (mip, face) and restores
// the previous view when fn returns.
func (ms *MipSet) WithActiveLevel(mip, face int, fn func(*MipLevel) error) error {
	lvl, err := ms.levelFor("set active level", mip, face)
	if err != nil {
		return err
	}
	prev := ms.active
	ms.active = lvl
	defer func() { ms.active = prev }()
	return fn(lvl)
}

// BorrowLevelData repoints the buffer of (mip, face) at data for the
// duration of fn. The level's own buffer and the active view are restored
// before BorrowLevelData returns, whatever fn returns, so data is never
// released by this set.
func (ms *MipSet) BorrowLevelData(mip, face int, data []byte, fn func(*MipLevel) error) error {
	lvl, err := ms.levelFor("borrow level", mip, face)
	if err != nil {
		return err
	}
	saved := lvl.Data
	prev := ms.active
	lvl.Data = data
	ms.active = lvl
	defer func() {
		lvl.Data = saved
		if !ms.freed {
			ms.active = prev
		}
	}()
	return fn(lvl)
}

// Free releases every level buffer and then the table.
// Calling Free more than once is a no-op.
func (ms *MipSet) Free() {
	if ms == nil || ms.freed {
		return
	}
	for _, lvl := range ms.table {
		if lvl != nil {
			lvl.Data = nil
		}
	}
	ms.table = nil
	ms.starts = nil
	ms.active = nil
	ms.freed = true
}

// Freed reports whether Free has been called.
func (ms *MipSet) Freed() bool { return ms.freed }
