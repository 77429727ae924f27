package texcomp

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// counters records calls made on fake plugins across instances.
type counters struct {
	encoderNew     atomic.Int64
	encoderInit    atomic.Int64
	encoderClose   atomic.Int64
	pipelineNew    atomic.Int64
	pipelineInit   atomic.Int64
	pipelineClose  atomic.Int64
	compress       atomic.Int64
	inFlight       atomic.Int64
	maxInFlight    atomic.Int64
	sharedIO       atomic.Int64
	computeOptions atomic.Int64
}

func (c *counters) enter() {
	n := c.inFlight.Add(1)
	for {
		old := c.maxInFlight.Load()
		if n <= old || c.maxInFlight.CompareAndSwap(old, n) {
			return
		}
	}
}

type fakeEncoder struct {
	c      *counters
	format Format
	id     int64
	opts   KernelOptions
	closed bool

	failInit bool
}

func (e *fakeEncoder) Init(opts *KernelOptions) error {
	e.c.encoderInit.Add(1)
	if e.failInit {
		return errors.New("fake encoder init failure")
	}
	e.opts = *opts
	return nil
}

func (e *fakeEncoder) DefaultSource(kind BackendKind) string {
	if kind == BackendGPUOCL {
		return ""
	}
	return "fake:" + e.format.String()
}

func (e *fakeEncoder) SetSharedIO(*slog.Logger) error { return nil }

func (e *fakeEncoder) Create() (BlockEncoder, error) {
	return &fakeBlockEncoder{format: e.format}, nil
}

func (e *fakeEncoder) Close() {
	e.closed = true
	e.c.encoderClose.Add(1)
}

// fakeBlockEncoder writes the sum of the block's bytes into every byte of
// the destination block.
type fakeBlockEncoder struct {
	format Format
	closed bool
}

func (b *fakeBlockEncoder) BlockSize() int { return b.format.BytesPerBlock() }

func (b *fakeBlockEncoder) CompressBlock(x, y int, src []byte, srcStride int, dst []byte, dstStride int) error {
	var sum byte
	for row := range 4 {
		start := (4*y+row)*srcStride + 16*x
		for _, v := range src[start : start+16] {
			sum += v
		}
	}
	off := y*dstStride + x*b.BlockSize()
	for i := range b.BlockSize() {
		dst[off+i] = sum
	}
	return nil
}

func (b *fakeBlockEncoder) Close() { b.closed = true }

type fakePipeline struct {
	c     *counters
	id    int64
	inits int
	stats PerformanceStats

	encoder EncoderPlugin
	log     *slog.Logger
	closed  bool

	failInit     bool
	failCompress bool
	delay        func()
}

func (p *fakePipeline) Init(opts *KernelOptions) error {
	p.c.pipelineInit.Add(1)
	p.inits++
	if p.failInit {
		return errors.New("fake pipeline init failure")
	}
	return nil
}

func (p *fakePipeline) SetSharedIO(l *slog.Logger) error {
	p.c.sharedIO.Add(1)
	p.log = l
	return nil
}

func (p *fakePipeline) SetComputeOptions(opts *ComputeOptions) error {
	p.c.computeOptions.Add(1)
	p.encoder = opts.Encoder
	return nil
}

// Compress fills the active destination view with bytes derived from the
// active source view and the level dimensions.
func (p *fakePipeline) Compress(opts *KernelOptions, src, dst *MipSet, fb Feedback) error {
	p.c.enter()
	defer p.c.inFlight.Add(-1)
	p.c.compress.Add(1)
	if p.delay != nil {
		p.delay()
	}
	if p.failCompress {
		return errors.New("fake compress failure")
	}
	in, out := src.ActiveLevel(), dst.ActiveLevel()
	if in == nil || out == nil {
		return errors.New("no active level")
	}
	for i := range out.Data {
		out.Data[i] = in.Data[i%len(in.Data)] ^ byte(in.Width+in.Height)
	}
	p.stats = PerformanceStats{NumBlocks: len(out.Data) / max(opts.Format.BytesPerBlock(), 1)}
	if fb != nil && fb(100) {
		return ErrAborted
	}
	return nil
}

func (p *fakePipeline) PerformanceStats() (PerformanceStats, error) { return p.stats, nil }

func (p *fakePipeline) DeviceInfo() (DeviceInfo, error) {
	return DeviceInfo{Name: "fake", MaxComputeUnits: 1}, nil
}

func (p *fakePipeline) Close() error {
	p.closed = true
	p.c.pipelineClose.Add(1)
	return nil
}

// fakeRegistry builds a registry with fake BC1 and BC3 encoders and fake
// pipelines for every backend name. configure, when set, adjusts each new
// pipeline.
type fakeRegistry struct {
	*Registry
	c counters

	mu        sync.Mutex
	encoders  []*fakeEncoder
	pipelines []*fakePipeline

	configurePipeline func(*fakePipeline)
	configureEncoder  func(*fakeEncoder)
}

func newFakeRegistry() *fakeRegistry {
	fr := &fakeRegistry{Registry: NewRegistry()}
	for _, f := range []Format{FormatBC1, FormatBC3} {
		fr.RegisterEncoder(f, func() EncoderPlugin {
			e := &fakeEncoder{c: &fr.c, format: f, id: fr.c.encoderNew.Add(1)}
			fr.mu.Lock()
			if fr.configureEncoder != nil {
				fr.configureEncoder(e)
			}
			fr.encoders = append(fr.encoders, e)
			fr.mu.Unlock()
			return e
		})
	}
	for _, name := range []string{"HPC", "GPU_HW", "GPU_VLK", "GPU_DXC", "GPU_OCL"} {
		fr.RegisterPipeline(name, func() PipelinePlugin {
			p := &fakePipeline{c: &fr.c, id: fr.c.pipelineNew.Add(1)}
			fr.mu.Lock()
			if fr.configurePipeline != nil {
				fr.configurePipeline(p)
			}
			fr.pipelines = append(fr.pipelines, p)
			fr.mu.Unlock()
			return p
		})
	}
	return fr
}

// rgbaSet returns a 2D RGBA_8888 set with level 0 filled from seed.
func rgbaSet(w, h int, seed byte) *MipSet {
	ms, err := NewMipSet(w, h, 1, FormatRGBA8888, TextureType2D)
	if err != nil {
		panic(err)
	}
	lvl, err := ms.AllocateLevelData(0, 0, w, h)
	if err != nil {
		panic(err)
	}
	for i := range lvl.Data {
		lvl.Data[i] = byte(i)*7 + seed
	}
	return ms
}
