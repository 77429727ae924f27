// Package hpc provides the block-parallel CPU compression pipeline.
//
// The pipeline is registered under the name "HPC" and serves both the CPU
// and HPC backend kinds. Block rows are spread over a worker pool sized by
// KernelOptions.Threads, each worker compressing with its own block
// encoder from the active Encoder plugin.
package hpc

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/texcomp"
	"github.com/gogpu/texcomp/internal/parallel"
	"github.com/gogpu/texcomp/internal/pixel"
)

// Name is the registry name of the pipeline.
const Name = "HPC"

var (
	errNotInitialized = errors.New("hpc: pipeline not initialized")
	errNoEncoder      = errors.New("hpc: no encoder set")
	errNoActiveLevel  = errors.New("hpc: no active level")
	errShortDest      = errors.New("hpc: destination level too small")
	errKernel         = errors.New("hpc: kernel is not a builtin block encoder")
)

func init() {
	texcomp.RegisterPipelinePlugin(Name, func() texcomp.PipelinePlugin { return New() })
}

// Pipeline compresses on the CPU.
type Pipeline struct {
	mu sync.Mutex

	pool    *parallel.WorkerPool
	threads int
	log     *slog.Logger

	encoder texcomp.EncoderPlugin
	stats   texcomp.PerformanceStats
}

var _ texcomp.PipelinePlugin = (*Pipeline)(nil)

// New returns an uninitialized pipeline.
func New() *Pipeline {
	return &Pipeline{log: texcomp.Logger()}
}

// Init starts the worker pool. opts.SourceFile must name a builtin kernel.
func (p *Pipeline) Init(opts *texcomp.KernelOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if opts.SourceFile != "" && !strings.HasPrefix(opts.SourceFile, "builtin:") {
		return fmt.Errorf("%w: %q", errKernel, opts.SourceFile)
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = texcomp.NumberOfProcessors()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	p.pool = parallel.NewWorkerPool(threads)
	p.threads = threads
	p.log.Debug("hpc: pipeline initialized", "threads", threads, "kernel", opts.SourceFile)
	return nil
}

// SetSharedIO sets the logger.
func (p *Pipeline) SetSharedIO(l *slog.Logger) error {
	if l == nil {
		return errors.New("hpc: nil logger")
	}
	p.mu.Lock()
	p.log = l
	p.mu.Unlock()
	return nil
}

// SetComputeOptions records the Encoder block encoders are created from.
func (p *Pipeline) SetComputeOptions(opts *texcomp.ComputeOptions) error {
	if opts.Encoder == nil {
		return errNoEncoder
	}
	p.mu.Lock()
	p.encoder = opts.Encoder
	p.mu.Unlock()
	return nil
}

// Compress encodes the active level of src into the active level of dst.
//
// fb is called after each block row with the percentage done. When it
// returns true the remaining rows are skipped and ErrAborted is returned.
// The pipeline lock is not held while blocks are compressed, so fb may call
// SetSharedIO or DeviceInfo.
func (p *Pipeline) Compress(opts *texcomp.KernelOptions, src, dst *texcomp.MipSet, fb texcomp.Feedback) error {
	p.mu.Lock()
	pool, enc, threads := p.pool, p.encoder, p.threads
	p.mu.Unlock()

	if pool == nil {
		return errNotInitialized
	}
	if enc == nil {
		return errNoEncoder
	}
	in, out := src.ActiveLevel(), dst.ActiveLevel()
	if in == nil || out == nil {
		return errNoActiveLevel
	}

	start := time.Now()
	padded, srcStride, err := pixel.PadBlocks(src.Format, in.Data, in.Width, in.Height)
	if err != nil {
		return err
	}

	encoders, err := blockEncoders(enc, threads)
	if err != nil {
		return err
	}
	defer func() {
		close(encoders)
		for be := range encoders {
			be.Close()
		}
	}()

	blockSize := opts.Format.BytesPerBlock()
	bw, bh := (in.Width+3)/4, (in.Height+3)/4
	dstStride := bw * blockSize
	if len(out.Data) < bh*dstStride {
		return fmt.Errorf("%w: need %d bytes, have %d", errShortDest, bh*dstStride, len(out.Data))
	}

	var (
		rowsDone atomic.Int64
		fbMu     sync.Mutex
	)
	computeStart := time.Now()
	err = pool.Run(bh, func(y int) error {
		be := <-encoders
		defer func() { encoders <- be }()

		for x := range bw {
			if err := be.CompressBlock(x, y, padded, srcStride, out.Data, dstStride); err != nil {
				return fmt.Errorf("hpc: block (%d,%d): %w", x, y, err)
			}
		}

		done := rowsDone.Add(1)
		if fb == nil {
			return nil
		}
		fbMu.Lock()
		abort := fb(float32(done) * 100 / float32(bh))
		fbMu.Unlock()
		if abort {
			return texcomp.ErrAborted
		}
		return nil
	})
	compute := time.Since(computeStart)
	if err != nil {
		return err
	}

	stats := texcomp.PerformanceStats{
		ComputeTime: compute,
		TotalTime:   time.Since(start),
		NumBlocks:   bw * bh,
	}
	if secs := compute.Seconds(); secs > 0 {
		stats.MPixelsPerSec = float64(in.Width*in.Height) / secs / 1e6
	}
	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
	return nil
}

// blockEncoders returns a buffered channel holding one block encoder per
// worker.
func blockEncoders(enc texcomp.EncoderPlugin, threads int) (chan texcomp.BlockEncoder, error) {
	ch := make(chan texcomp.BlockEncoder, threads)
	for range threads {
		be, err := enc.Create()
		if err == nil && be == nil {
			err = errNoEncoder
		}
		if err != nil {
			close(ch)
			for be := range ch {
				be.Close()
			}
			return nil, fmt.Errorf("hpc: create block encoder: %w", err)
		}
		ch <- be
	}
	return ch, nil
}

// PerformanceStats returns the statistics of the last Compress call.
func (p *Pipeline) PerformanceStats() (texcomp.PerformanceStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return texcomp.PerformanceStats{}, errNotInitialized
	}
	return p.stats, nil
}

// DeviceInfo describes the host CPU.
func (p *Pipeline) DeviceInfo() (texcomp.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return texcomp.DeviceInfo{}, errNotInitialized
	}
	name := fmt.Sprintf("%s/%s CPU", runtime.GOOS, runtime.GOARCH)
	return texcomp.DeviceInfo{
		Name:            name,
		Vendor:          runtime.GOARCH,
		Driver:          runtime.Version(),
		Backend:         Name,
		Adapter:         gpucontext.AdapterInfo{Name: name, Type: gpucontext.AdapterTypeSoftware},
		MaxComputeUnits: p.threads,
	}, nil
}

// Close stops the worker pool. It is safe to call on an uninitialized
// pipeline and more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	p.encoder = nil
	return nil
}
