// Package gpu provides compute-shader compression pipelines on the wgpu
// HAL backends.
//
// Three pipelines are registered: GPU_VLK on Vulkan, GPU_HW on OpenGL and
// GPU_DXC on DirectX 12. The OpenCL backend kind has no pipeline. Each
// pipeline opens its own device, compiles the Encoder's WGSL kernel to
// SPIR-V and dispatches one invocation per 4x4 block.
package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/texcomp"
	"github.com/gogpu/texcomp/internal/kernel"
	"github.com/gogpu/wgpu/hal"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// Pipeline names.
const (
	NameVulkan = "GPU_VLK"
	NameGL     = "GPU_HW"
	NameDX12   = "GPU_DXC"
)

// Variants maps pipeline names to the HAL backend they run on.
var Variants = map[string]gputypes.Backend{
	NameVulkan: gputypes.BackendVulkan,
	NameGL:     gputypes.BackendGL,
	NameDX12:   gputypes.BackendDX12,
}

var (
	// ErrNoAdapter is returned by Init when the backend has no adapter.
	ErrNoAdapter = errors.New("gpu: no adapter found")

	// ErrBackendUnavailable is returned by Init when the HAL backend is not
	// compiled in or not supported on this platform.
	ErrBackendUnavailable = errors.New("gpu: backend unavailable")

	errNotInitialized = errors.New("gpu: pipeline not initialized")
	errNoEncoder      = errors.New("gpu: no encoder set")
	errNoActiveLevel  = errors.New("gpu: no active level")
	errBlockSize      = errors.New("gpu: kernels write 8-byte blocks only")
	errNoKernel       = errors.New("gpu: no kernel for format")
)

// kernels is shared by every pipeline so a kernel is compiled once per
// process unless a rebuild is forced.
var kernels kernel.Cache

func init() {
	for name, variant := range Variants {
		texcomp.RegisterPipelinePlugin(name, func() texcomp.PipelinePlugin { return New(variant) })
	}
}

// Pipeline compresses on one GPU.
type Pipeline struct {
	mu sync.Mutex

	variant gputypes.Backend
	log     *slog.Logger

	instance hal.Instance
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue

	sourceFile string
	format     texcomp.Format
	encoder    texcomp.EncoderPlugin
	rebuild    bool

	program *program
	stats   texcomp.PerformanceStats
}

var _ texcomp.PipelinePlugin = (*Pipeline)(nil)

// New returns an uninitialized pipeline for a HAL backend.
func New(variant gputypes.Backend) *Pipeline {
	return &Pipeline{
		variant: variant,
		log:     texcomp.Logger(),
	}
}

// Init opens a device on the first discrete or integrated adapter of the
// backend, falling back to the first adapter of any type.
func (p *Pipeline) Init(opts *texcomp.KernelOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.destroyLocked()
	}
	p.sourceFile = opts.SourceFile
	p.format = opts.Format

	backend, ok := hal.GetBackend(p.variant)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, p.variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}
	p.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("%w: %s", ErrNoAdapter, p.variant)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("gpu: open device: %w", err)
	}
	p.adapter = *selected
	p.device = openDev.Device
	p.queue = openDev.Queue

	p.log.Info("gpu: pipeline initialized",
		"backend", p.variant.String(), "adapter", selected.Info.Name,
		"type", selected.Info.DeviceType.String())
	return nil
}

// SetSharedIO sets the pipeline logger and routes HAL diagnostics to it.
func (p *Pipeline) SetSharedIO(l *slog.Logger) error {
	if l == nil {
		return errors.New("gpu: nil logger")
	}
	p.mu.Lock()
	p.log = l
	p.mu.Unlock()
	hal.SetLogger(l)
	return nil
}

// SetComputeOptions records the active Encoder, whose embedded kernels are
// searched before the disk, and whether the kernel must be recompiled.
func (p *Pipeline) SetComputeOptions(opts *texcomp.ComputeOptions) error {
	if opts.Encoder == nil {
		return errNoEncoder
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.encoder = opts.Encoder
	p.rebuild = p.rebuild || opts.ForceRebuild
	return nil
}

// PerformanceStats returns the statistics of the last Compress call.
func (p *Pipeline) PerformanceStats() (texcomp.PerformanceStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return texcomp.PerformanceStats{}, errNotInitialized
	}
	return p.stats, nil
}

// DeviceInfo describes the opened adapter.
func (p *Pipeline) DeviceInfo() (texcomp.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return texcomp.DeviceInfo{}, errNotInitialized
	}
	info := p.adapter.Info
	driver := info.Driver
	if info.DriverInfo != "" {
		driver += " " + info.DriverInfo
	}

	native := false
	if gf := p.format.GPUFormat(); gf != gputypes.TextureFormatUndefined {
		caps := p.adapter.Adapter.TextureFormatCapabilities(gf)
		native = caps.Flags&hal.TextureFormatCapabilitySampled != 0
	}
	return texcomp.DeviceInfo{
		Name:    info.Name,
		Vendor:  info.Vendor,
		Driver:  driver,
		Backend: info.Backend.String(),
		Adapter: gpucontext.AdapterInfo{
			Name: info.Name,
			Type: adapterType(info.DeviceType),
		},
		NativeSampling: native,
	}, nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Close releases the device and instance. It is safe to call after a
// failed Init and more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyLocked()
	p.encoder = nil
	return nil
}

func (p *Pipeline) destroyLocked() {
	if p.program != nil && p.device != nil {
		p.program.destroy(p.device)
	}
	p.program = nil
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
	p.queue = nil
	p.adapter = hal.ExposedAdapter{}
}
