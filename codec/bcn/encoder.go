// Package bcn provides Encoder plugins for the BC1 through BC5 block
// formats, including the signed BC4 and BC5 variants.
//
// Importing the package registers every encoder with the texcomp host
// plugin set. Each encoder compresses on the CPU through its block
// encoder; BC1 and BC4 also ship WGSL kernels for the GPU pipelines.
package bcn

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/gogpu/texcomp"
)

//go:embed kernels/*.wgsl
var kernelFS embed.FS

// DefaultQuality is used when KernelOptions.Quality is 0.
const DefaultQuality = 0.05

// Quality at or above which endpoints are inset.
const insetQuality = 0.5

var (
	// ErrQualityRange is returned for a quality outside 0..1.
	ErrQualityRange = errors.New("bcn: quality out of range")

	// ErrDimensions is returned for negative dimensions.
	ErrDimensions = errors.New("bcn: invalid dimensions")

	// ErrClosed is returned when a closed encoder is used.
	ErrClosed = errors.New("bcn: encoder closed")

	errShortSource = errors.New("bcn: source too small for block")
	errShortDest   = errors.New("bcn: destination too small for block")
)

// Supported lists the formats this package encodes.
var Supported = []texcomp.Format{
	texcomp.FormatBC1,
	texcomp.FormatBC2,
	texcomp.FormatBC3,
	texcomp.FormatBC4,
	texcomp.FormatBC4S,
	texcomp.FormatBC5,
	texcomp.FormatBC5S,
}

// gpuKernels maps formats to their embedded kernel.
var gpuKernels = map[texcomp.Format]string{
	texcomp.FormatBC1: "kernels/bc1.wgsl",
	texcomp.FormatBC4: "kernels/bc4.wgsl",
}

func init() {
	for _, f := range Supported {
		texcomp.RegisterEncoderPlugin(f, func() texcomp.EncoderPlugin { return New(f) })
	}
}

// Encoder is the Encoder plugin for one BCn format.
type Encoder struct {
	format  texcomp.Format
	quality float32
	width   int
	height  int
	log     *slog.Logger
	closed  bool
}

var (
	_ texcomp.EncoderPlugin  = (*Encoder)(nil)
	_ texcomp.KernelProvider = (*Encoder)(nil)
)

// New returns an Encoder for format.
func New(format texcomp.Format) *Encoder {
	return &Encoder{
		format:  format,
		quality: DefaultQuality,
		log:     texcomp.Logger(),
	}
}

// Format returns the destination format.
func (e *Encoder) Format() texcomp.Format { return e.format }

// Quality returns the quality set by the last Init.
func (e *Encoder) Quality() float32 { return e.quality }

// Init stores the dimensions and quality of opts.
func (e *Encoder) Init(opts *texcomp.KernelOptions) error {
	if e.closed {
		return ErrClosed
	}
	if opts.Quality < 0 || opts.Quality > 1 {
		return fmt.Errorf("%w: %v", ErrQualityRange, opts.Quality)
	}
	if opts.Width < 0 || opts.Height < 0 {
		return fmt.Errorf("%w: %dx%d", ErrDimensions, opts.Width, opts.Height)
	}
	e.quality = opts.Quality
	if e.quality == 0 {
		e.quality = DefaultQuality
	}
	e.width, e.height = opts.Width, opts.Height
	return nil
}

// DefaultSource returns the kernel for kind. CPU backends run the block
// encoder in process and get a builtin reference; GPU backends get the
// embedded WGSL kernel path, or "" when the format has none.
func (e *Encoder) DefaultSource(kind texcomp.BackendKind) string {
	if !kind.IsGPU() {
		return "builtin:" + e.format.String()
	}
	return gpuKernels[e.format]
}

// Kernels returns the embedded kernel sources.
func (e *Encoder) Kernels() fs.FS { return kernelFS }

// SetSharedIO sets the logger.
func (e *Encoder) SetSharedIO(l *slog.Logger) error {
	if l == nil {
		return errors.New("bcn: nil logger")
	}
	e.log = l
	return nil
}

// Create returns a block encoder configured with the current quality.
func (e *Encoder) Create() (texcomp.BlockEncoder, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return &BlockEncoder{
		format: e.format,
		inset:  e.quality >= insetQuality,
	}, nil
}

// Close marks the encoder closed. Block encoders it created stay usable.
func (e *Encoder) Close() {
	e.closed = true
}

// BlockEncoder compresses single 4x4 blocks.
type BlockEncoder struct {
	format texcomp.Format
	inset  bool
}

// BlockSize returns the compressed block size in bytes.
func (b *BlockEncoder) BlockSize() int { return b.format.BytesPerBlock() }

// Close is a no-op; BlockEncoder holds no resources.
func (b *BlockEncoder) Close() {}

// CompressBlock compresses the block at grid position (x, y) of src into
// the matching position of dst.
func (b *BlockEncoder) CompressBlock(x, y int, src []byte, srcStride int, dst []byte, dstStride int) error {
	size := b.BlockSize()
	base := 4*y*srcStride + 16*x
	if x < 0 || y < 0 || srcStride < 16 || len(src) < base+3*srcStride+16 {
		return fmt.Errorf("%w: block (%d,%d) stride %d len %d", errShortSource, x, y, srcStride, len(src))
	}
	off := y*dstStride + x*size
	if len(dst) < off+size {
		return fmt.Errorf("%w: block (%d,%d) needs %d bytes, have %d", errShortDest, x, y, off+size, len(dst))
	}

	var px pixels
	for row := range 4 {
		rowStart := base + row*srcStride
		for col := range 4 {
			copy(px[row*4+col][:], src[rowStart+col*4:rowStart+col*4+4])
		}
	}
	encode(b.format, &px, dst[off:off+size], b.inset)
	return nil
}

// encode compresses px into out, which must hold one block of format.
func encode(format texcomp.Format, px *pixels, out []byte, inset bool) {
	switch format {
	case texcomp.FormatBC1:
		encodeColor(px, out, true, inset)
	case texcomp.FormatBC2:
		encodeExplicitAlpha(px, out[:8])
		encodeColor(px, out[8:], false, inset)
	case texcomp.FormatBC3:
		a := channel(px, 3, false)
		encodeChannel(&a, out[:8], inset)
		encodeColor(px, out[8:], false, inset)
	case texcomp.FormatBC4, texcomp.FormatBC4S:
		r := channel(px, 0, format == texcomp.FormatBC4S)
		encodeChannel(&r, out, inset)
	case texcomp.FormatBC5, texcomp.FormatBC5S:
		signed := format == texcomp.FormatBC5S
		r := channel(px, 0, signed)
		g := channel(px, 1, signed)
		encodeChannel(&r, out[:8], inset)
		encodeChannel(&g, out[8:], inset)
	}
}
