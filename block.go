package texcomp

import (
	"errors"
	"fmt"
)

// BlockEncoderHandle owns one block encoder created outside the conversion
// pipeline. It never touches the Framework's backend lifecycle, so callers
// may tile, stream or parallelize per-block work without holding the
// conversion lock. A handle is not safe for concurrent use; create one per
// goroutine.
type BlockEncoderHandle struct {
	enc    BlockEncoder
	format Format
}

var errDestroyed = errors.New("block encoder destroyed")

// CreateBlockEncoder returns a block encoder for opts.Format initialized
// with opts.Width, opts.Height and opts.Quality.
//
// The Encoder plugin used to build it is closed before CreateBlockEncoder
// returns; the handle does not depend on it.
func (f *Framework) CreateBlockEncoder(opts *KernelOptions) (*BlockEncoderHandle, error) {
	if opts == nil {
		return nil, newError(CodeUnableToLoadEncoder, "create block encoder", errNilOptions)
	}
	plugin, err := f.reg.Encoder(opts.Format)
	if err != nil {
		return nil, newError(CodeUnableToLoadEncoder, "create block encoder", err)
	}
	defer plugin.Close()

	kopts := KernelOptions{
		Format:  opts.Format,
		Width:   opts.Width,
		Height:  opts.Height,
		Quality: opts.Quality,
	}
	if err := plugin.Init(&kopts); err != nil {
		return nil, newError(CodeUnableToCreateEncoder, "create block encoder", fmt.Errorf("init: %w", err))
	}
	enc, err := plugin.Create()
	if err != nil {
		return nil, newError(CodeUnableToCreateEncoder, "create block encoder", err)
	}
	if enc == nil {
		return nil, newError(CodeUnableToCreateEncoder, "create block encoder",
			fmt.Errorf("encoder %s returned no block encoder", opts.Format))
	}
	return &BlockEncoderHandle{enc: enc, format: opts.Format}, nil
}

// Format returns the destination format of the handle.
func (h *BlockEncoderHandle) Format() Format { return h.format }

// BlockSize returns the size in bytes of one compressed block.
func (h *BlockEncoderHandle) BlockSize() int {
	if h.enc == nil {
		return 0
	}
	return h.enc.BlockSize()
}

// CompressBlock compresses the block at grid position (0, 0).
// src holds 4 rows of srcStride bytes of RGBA8 pixels and dst must have
// room for one compressed block.
func (h *BlockEncoderHandle) CompressBlock(src []byte, srcStride int, dst []byte, dstStride int) error {
	return h.CompressBlockXY(0, 0, src, srcStride, dst, dstStride)
}

// CompressBlockXY compresses the block at grid position (x, y).
func (h *BlockEncoderHandle) CompressBlockXY(x, y int, src []byte, srcStride int, dst []byte, dstStride int) error {
	if h.enc == nil {
		return newError(CodeAborted, "compress block", errDestroyed)
	}
	if err := h.enc.CompressBlock(x, y, src, srcStride, dst, dstStride); err != nil {
		return newError(CodeGeneric, "compress block", err)
	}
	return nil
}

// Destroy releases the block encoder. Further calls are no-ops.
func (h *BlockEncoderHandle) Destroy() {
	if h.enc != nil {
		h.enc.Close()
		h.enc = nil
	}
}
