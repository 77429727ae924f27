package gpu

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/texcomp"
	"github.com/gogpu/texcomp/internal/kernel"
	"github.com/gogpu/texcomp/internal/pixel"
	"github.com/gogpu/wgpu/hal"
)

// Kernels use an 8x8 workgroup of blocks.
const workgroupSize = 8

// paramsSize is the byte size of the kernel's Params uniform: four u32
// dimensions, the f32 quality and padding to 16-byte alignment.
const paramsSize = 32

// program is a compiled kernel and the objects bound to it.
type program struct {
	key        uint64
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (pr *program) destroy(device hal.Device) {
	if pr.pipeline != nil {
		device.DestroyComputePipeline(pr.pipeline)
	}
	if pr.pipeLayout != nil {
		device.DestroyPipelineLayout(pr.pipeLayout)
	}
	if pr.bindLayout != nil {
		device.DestroyBindGroupLayout(pr.bindLayout)
	}
	if pr.shader != nil {
		device.DestroyShaderModule(pr.shader)
	}
}

// loadProgram returns the compute pipeline for the current kernel,
// compiling it when the source changed or a rebuild was requested.
func (p *Pipeline) loadProgram() (*program, error) {
	src, err := kernel.Load(p.sourceFile, kernelFS(p.encoder))
	if err != nil {
		return nil, err
	}
	key := xxhash.Sum64String(src)
	if p.program != nil && p.program.key == key && !p.rebuild {
		return p.program, nil
	}

	words, err := kernels.Compile(src, p.rebuild)
	if err != nil {
		return nil, err
	}
	p.rebuild = false
	if p.program != nil {
		p.program.destroy(p.device)
		p.program = nil
	}

	pr := &program{key: key}
	if err := pr.create(p.device, words); err != nil {
		pr.destroy(p.device)
		return nil, err
	}
	p.program = pr
	p.log.Debug("gpu: kernel compiled", "source", p.sourceFile, "words", len(words))
	return pr, nil
}

func (pr *program) create(device hal.Device, spirv []uint32) error {
	var err error
	pr.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "texcomp_kernel",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("gpu: create shader module: %w", err)
	}

	pr.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "texcomp_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	pr.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "texcomp_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{pr.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	pr.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "texcomp_pipeline", Layout: pr.pipeLayout,
		Compute: hal.ComputeState{Module: pr.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("gpu: create compute pipeline: %w", err)
	}
	return nil
}

// useKernel points the pipeline at the kernel for opts. The lifecycle
// manager keeps a pipeline across format changes and only swaps the
// Encoder, so the kernel chosen at Init may be stale by now.
func (p *Pipeline) useKernel(opts *texcomp.KernelOptions) error {
	source := opts.SourceFile
	if source == "" && p.encoder != nil {
		source = p.encoder.DefaultSource(opts.EncodeWith)
	}
	if source == "" {
		return fmt.Errorf("%w: %s", errNoKernel, opts.Format)
	}
	if source == p.sourceFile && opts.Format == p.format {
		return nil
	}
	p.log.Debug("gpu: kernel changed",
		"from", p.sourceFile, "to", source, "format", opts.Format.String())
	p.sourceFile, p.format = source, opts.Format
	if p.program != nil && p.device != nil {
		p.program.destroy(p.device)
	}
	p.program = nil
	return nil
}

// Compress encodes the active level of src into the active level of dst
// with one dispatch. fb is called with 0 before the dispatch and 100 after
// the readback, both without the pipeline lock held; returning true from
// the first call aborts.
func (p *Pipeline) Compress(opts *texcomp.KernelOptions, src, dst *texcomp.MipSet, fb texcomp.Feedback) error {
	if fb != nil && fb(0) {
		return texcomp.ErrAborted
	}
	p.mu.Lock()
	err := p.compress(opts, src, dst)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if fb != nil {
		fb(100)
	}
	return nil
}

func (p *Pipeline) compress(opts *texcomp.KernelOptions, src, dst *texcomp.MipSet) error {
	if p.device == nil {
		return errNotInitialized
	}
	if p.encoder == nil {
		return errNoEncoder
	}
	in, out := src.ActiveLevel(), dst.ActiveLevel()
	if in == nil || out == nil {
		return errNoActiveLevel
	}
	if opts.Format.BytesPerBlock() != 8 {
		return fmt.Errorf("%w: %s", errBlockSize, opts.Format)
	}
	if err := p.useKernel(opts); err != nil {
		return err
	}

	start := time.Now()
	packed, err := pixel.Pack(src.Format, in.Data, in.Width, in.Height)
	if err != nil {
		return err
	}
	pr, err := p.loadProgram()
	if err != nil {
		return err
	}

	bx, by := (in.Width+3)/4, (in.Height+3)/4
	outSize := uint64(bx * by * 8)
	if uint64(len(out.Data)) < outSize {
		return fmt.Errorf("gpu: destination holds %d bytes, need %d", len(out.Data), outSize)
	}

	computeStart := time.Now()
	if err := p.dispatch(pr, packed, in.Width, in.Height, bx, by, opts.Quality, out.Data[:outSize]); err != nil {
		return err
	}
	compute := time.Since(computeStart)

	p.stats = texcomp.PerformanceStats{
		ComputeTime: compute,
		TotalTime:   time.Since(start),
		NumBlocks:   bx * by,
	}
	if secs := compute.Seconds(); secs > 0 {
		p.stats.MPixelsPerSec = float64(in.Width*in.Height) / secs / 1e6
	}
	return nil
}

// dispatch runs pr over the packed pixels and reads the blocks into out.
func (p *Pipeline) dispatch(pr *program, packed []byte, width, height, bx, by int, quality float32, out []byte) error {
	params := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(width))  //nolint:gosec // level dimensions fit uint32
	binary.LittleEndian.PutUint32(params[4:], uint32(height)) //nolint:gosec // level dimensions fit uint32
	binary.LittleEndian.PutUint32(params[8:], uint32(bx))     //nolint:gosec // block counts fit uint32
	binary.LittleEndian.PutUint32(params[12:], uint32(by))    //nolint:gosec // block counts fit uint32
	binary.LittleEndian.PutUint32(params[16:], math.Float32bits(quality))
	outSize := uint64(len(out))

	res := &resources{device: p.device}
	defer res.destroy()

	uniform, err := res.buffer("texcomp_params", paramsSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	source, err := res.buffer("texcomp_source", uint64(len(packed)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	blocks, err := res.buffer("texcomp_blocks", outSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return err
	}
	staging, err := res.buffer("texcomp_staging", outSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	if err := p.queue.WriteBuffer(uniform, 0, params); err != nil {
		return fmt.Errorf("gpu: write params: %w", err)
	}
	if err := p.queue.WriteBuffer(source, 0, packed); err != nil {
		return fmt.Errorf("gpu: write source: %w", err)
	}

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "texcomp_bind", Layout: pr.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: source.NativeHandle(), Offset: 0, Size: uint64(len(packed))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: blocks.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group: %w", err)
	}
	res.bindGroup = bg

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texcomp_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("texcomp_compress"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "texcomp_pass"})
	pass.SetPipeline(pr.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32((bx+workgroupSize-1)/workgroupSize), uint32((by+workgroupSize-1)/workgroupSize), 1) //nolint:gosec // workgroup counts fit uint32
	pass.End()
	encoder.CopyBufferToBuffer(blocks, staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: outSize}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	if _, err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	if err := p.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpu: wait: %w", err)
	}

	mapping, err := p.device.MapBuffer(staging, 0, outSize)
	if err != nil {
		return fmt.Errorf("gpu: map readback: %w", err)
	}
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), outSize)) //nolint:gosec // mapping covers outSize bytes
	if err := p.device.UnmapBuffer(staging); err != nil {
		return fmt.Errorf("gpu: unmap readback: %w", err)
	}
	return nil
}

// resources tracks the per-dispatch objects destroyed after readback.
type resources struct {
	device    hal.Device
	buffers   []hal.Buffer
	bindGroup hal.BindGroup
}

func (r *resources) buffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	r.buffers = append(r.buffers, buf)
	return buf, nil
}

func (r *resources) destroy() {
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
	}
	for _, b := range r.buffers {
		r.device.DestroyBuffer(b)
	}
}

// kernelFS returns the embedded kernels of enc, or nil.
func kernelFS(enc texcomp.EncoderPlugin) fs.FS {
	if kp, ok := enc.(texcomp.KernelProvider); ok {
		return kp.Kernels()
	}
	return nil
}
