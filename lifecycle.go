package texcomp

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// LifecycleManager owns the active Encoder and Pipeline and rebuilds them
// when the requested (backend, format) pair changes.
//
// State is either inactive, or active with a backend kind, a format, an
// Encoder and a Pipeline. A failed Acquire always leaves the manager
// inactive. All methods are safe for concurrent use, but callers that need
// an acquire-compress-release span to be atomic must serialize it
// themselves; Framework.Convert does.
type LifecycleManager struct {
	mu sync.Mutex

	reg   *Registry
	probe func() bool
	log   func() *slog.Logger

	kind     BackendKind
	format   Format
	encoder  EncoderPlugin
	pipeline PipelinePlugin

	// everAcquired is set by the first successful Acquire. Close is only
	// meaningful after it.
	everAcquired bool
}

// NewLifecycleManager returns an inactive manager resolving plugins from reg.
// dx12Supported gates the GPU_DXC pipeline; nil means unsupported.
func NewLifecycleManager(reg *Registry, dx12Supported func() bool) *LifecycleManager {
	if dx12Supported == nil {
		dx12Supported = func() bool { return false }
	}
	return &LifecycleManager{
		reg:   reg,
		probe: dx12Supported,
		log:   Logger,
	}
}

// Active reports whether a Pipeline is active, and for which pair.
func (m *LifecycleManager) Active() (kind BackendKind, format Format, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind, m.format, m.pipeline != nil
}

// Acquire makes an Encoder for opts.Format and a Pipeline for
// opts.EncodeWith active.
//
// A change of format replaces the Encoder; a change of backend kind
// replaces both. The Encoder is initialized on every call with the
// dimensions of src. When a Pipeline for the same kind is already active
// it is kept as is.
//
// When opts.SourceFile is empty it is filled from the Encoder's default.
func (m *LifecycleManager) Acquire(src *MipSet, opts *KernelOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.acquire(src, opts)
	if err != nil {
		m.release()
	}
	return err
}

func (m *LifecycleManager) acquire(src *MipSet, opts *KernelOptions) error {
	log := m.log()

	if m.pipeline != nil && m.kind != opts.EncodeWith {
		log.Debug("texcomp: backend changed, releasing",
			"from", m.kind.String(), "to", opts.EncodeWith.String())
		m.release()
	} else if m.encoder != nil && m.format != opts.Format {
		log.Debug("texcomp: format changed, releasing encoder",
			"from", m.format.String(), "to", opts.Format.String())
		m.encoder.Close()
		m.encoder = nil
	}

	if m.encoder == nil {
		enc, err := m.reg.Encoder(opts.Format)
		if err != nil {
			return newError(CodeUnsupportedFormat, "acquire",
				fmt.Errorf("format %s for %s: %w", opts.Format, opts.EncodeWith, err))
		}
		m.encoder = enc
		m.format = opts.Format
	}

	if opts.SourceFile == "" {
		opts.SourceFile = m.encoder.DefaultSource(opts.EncodeWith)
		if opts.SourceFile == "" {
			return newError(CodeNoShaderCodeDefined, "acquire",
				fmt.Errorf("encoder %s has no kernel for %s", opts.Format, opts.EncodeWith))
		}
	}

	if src != nil {
		if lvl := src.ActiveLevel(); lvl != nil {
			opts.Width, opts.Height = lvl.Width, lvl.Height
		} else {
			opts.Width, opts.Height = src.Width, src.Height
		}
		opts.SrcFormat = src.Format
	}
	if err := m.encoder.Init(opts); err != nil {
		return newError(CodeUnableToInitComputeLib, "acquire", fmt.Errorf("encoder init: %w", err))
	}
	if err := m.encoder.SetSharedIO(log); err != nil {
		log.Warn("texcomp: encoder rejected shared IO", "format", opts.Format.String(), "err", err)
	}

	if m.pipeline != nil {
		log.Debug("texcomp: reusing pipeline", "backend", m.kind.String())
		return nil
	}

	name := opts.EncodeWith.PipelineName()
	if opts.EncodeWith == BackendGPUDXC && !m.probe() {
		return newError(CodeUnsupportedBackend, "acquire",
			fmt.Errorf("format %s for %s requires DirectX 12", opts.Format, opts.EncodeWith))
	}
	p, err := m.reg.Pipeline(name)
	if err != nil {
		return err
	}
	m.pipeline = p
	m.kind = opts.EncodeWith

	if err := p.Init(opts); err != nil {
		return newError(CodeUnableToInitComputeLib, "acquire", fmt.Errorf("pipeline %s init: %w", name, err))
	}
	if err := p.SetSharedIO(log); err != nil {
		return newError(CodeUnableToInitComputeLib, "acquire", fmt.Errorf("pipeline %s shared IO: %w", name, err))
	}

	m.everAcquired = true
	log.Debug("texcomp: backend acquired", "backend", opts.EncodeWith.String(), "format", opts.Format.String())
	return nil
}

// Release tears down the active Encoder and Pipeline when force is set.
// Releasing without force, or when inactive, does nothing.
func (m *LifecycleManager) Release(force bool) error {
	if !force {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}

func (m *LifecycleManager) release() error {
	var err error
	if m.encoder != nil {
		m.encoder.Close()
		m.encoder = nil
	}
	if m.pipeline != nil {
		err = m.pipeline.Close()
		m.pipeline = nil
		m.log().Debug("texcomp: backend released", "backend", m.kind.String())
	}
	m.kind = BackendCPU
	m.format = FormatUnknown
	if err != nil {
		return newError(CodeGeneric, "release", err)
	}
	return nil
}

var errNoBackend = errors.New("no active backend")

// PerformanceStats returns the active Pipeline's statistics.
func (m *LifecycleManager) PerformanceStats() (PerformanceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pipeline == nil {
		return PerformanceStats{}, newError(CodeAborted, "performance stats", errNoBackend)
	}
	return m.pipeline.PerformanceStats()
}

// DeviceInfo returns the active Pipeline's device description.
func (m *LifecycleManager) DeviceInfo() (DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pipeline == nil {
		return DeviceInfo{}, newError(CodeAborted, "device info", errNoBackend)
	}
	return m.pipeline.DeviceInfo()
}

// Compress runs the active Pipeline on the active views of src and dst.
//
// The manager lock is not held while the Pipeline runs, so fb may call
// back into texcomp, SetLogger included. Callers must not Release or
// Acquire concurrently with Compress; Framework.Convert guarantees this.
func (m *LifecycleManager) Compress(opts *KernelOptions, src, dst *MipSet, fb Feedback) error {
	m.mu.Lock()
	p := m.pipeline
	m.mu.Unlock()
	if p == nil {
		return newError(CodeAborted, "compress", errNoBackend)
	}
	return p.Compress(opts, src, dst, fb)
}

// SetComputeOptions stores the active Encoder in opts and hands opts to
// the active Pipeline.
func (m *LifecycleManager) SetComputeOptions(opts *ComputeOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pipeline == nil {
		return newError(CodeAborted, "set compute options", errNoBackend)
	}
	opts.Encoder = m.encoder
	return m.pipeline.SetComputeOptions(opts)
}

// SetSharedIO attaches l to the active Encoder and Pipeline.
// Failures are logged, not returned.
func (m *LifecycleManager) SetSharedIO(l *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propagate(l)
}

func (m *LifecycleManager) propagate(l *slog.Logger) {
	if m.encoder != nil {
		if err := m.encoder.SetSharedIO(l); err != nil {
			l.Warn("texcomp: encoder rejected shared IO", "err", err)
		}
	}
	if m.pipeline != nil {
		if err := m.pipeline.SetSharedIO(l); err != nil {
			l.Warn("texcomp: pipeline rejected shared IO", "err", err)
		}
	}
}

// propagateLogger is called by SetLogger.
func (m *LifecycleManager) propagateLogger(l *slog.Logger) {
	m.SetSharedIO(l)
}

// Close force-releases any active backend.
func (m *LifecycleManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.everAcquired {
		return nil
	}
	return m.release()
}
