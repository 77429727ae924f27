package texcomp

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Framework is a texture conversion context: a plugin registry, one
// backend lifecycle, and the lock that serializes conversions on it.
//
// A Framework must be closed to release its backend. The zero value is not
// usable; create one with NewFramework.
type Framework struct {
	mu sync.Mutex // held for the whole of Convert

	reg       *Registry
	lifecycle *LifecycleManager
	policy    BackendPolicy
	logger    *slog.Logger
}

// NewFramework creates a Framework.
//
// Example:
//
//	fw := texcomp.NewFramework()
//	defer fw.Close()
//	dst, err := fw.Convert(src, &texcomp.KernelOptions{Format: texcomp.FormatBC1}, nil)
func NewFramework(opts ...Option) *Framework {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}

	f := &Framework{
		reg:    o.registry,
		policy: o.policy,
		logger: o.logger,
	}
	f.lifecycle = NewLifecycleManager(f.reg, o.probe)
	f.lifecycle.log = f.log
	return f
}

// Registry returns the registry the framework resolves plugins from.
func (f *Framework) Registry() *Registry { return f.reg }

// Policy returns the backend policy.
func (f *Framework) Policy() BackendPolicy { return f.policy }

func (f *Framework) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return Logger()
}

// DeviceInfo returns the device of the active backend.
// It fails with ErrAborted when no backend is active, which under
// PolicyPerLevel is the case outside Convert.
func (f *Framework) DeviceInfo() (DeviceInfo, error) {
	return f.lifecycle.DeviceInfo()
}

// Close releases the active backend. It waits for a running Convert.
func (f *Framework) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lifecycle.Close()
}

var (
	defaultFwOnce sync.Once
	defaultFwPtr  atomic.Pointer[Framework]
)

// Default returns the process-wide Framework, creating it on first use.
func Default() *Framework {
	defaultFwOnce.Do(func() {
		defaultFwPtr.Store(NewFramework())
	})
	return defaultFwPtr.Load()
}

func defaultFrameworkIfCreated() *Framework {
	return defaultFwPtr.Load()
}

// Shutdown closes the default Framework if it was created.
// Programs using the package-level functions should defer it in main.
func Shutdown() error {
	if fw := defaultFrameworkIfCreated(); fw != nil {
		return fw.Close()
	}
	return nil
}

// Convert runs Default().Convert.
func Convert(src *MipSet, opts *KernelOptions, fb Feedback) (*MipSet, error) {
	return Default().Convert(src, opts, fb)
}

// Load runs Default().Load.
func Load(path string) (*MipSet, error) {
	return Default().Load(path)
}

// Save runs Default().Save.
func Save(path string, ms *MipSet) error {
	return Default().Save(path, ms)
}

// SaveTexture runs Default().SaveTexture.
func SaveTexture(path string, t *Texture) error {
	return Default().SaveTexture(path, t)
}

// CreateBlockEncoder runs Default().CreateBlockEncoder.
func CreateBlockEncoder(opts *KernelOptions) (*BlockEncoderHandle, error) {
	return Default().CreateBlockEncoder(opts)
}
