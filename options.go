package texcomp

import (
	"log/slog"

	"github.com/gogpu/texcomp/internal/platform"
)

// BackendPolicy controls how long an acquired backend lives.
type BackendPolicy uint8

const (
	// PolicyPerLevel releases the backend after every level and face, so
	// state left by one level cannot reach the next. This is the default.
	PolicyPerLevel BackendPolicy = iota

	// PolicyPersistent keeps the backend across levels, faces and
	// conversions until the (backend, format) pair changes or the
	// Framework is closed.
	PolicyPersistent
)

// String returns the policy name.
func (p BackendPolicy) String() string {
	if p == PolicyPersistent {
		return "persistent"
	}
	return "per-level"
}

// Option configures a Framework during creation.
//
// Example:
//
//	fw := texcomp.NewFramework(
//	    texcomp.WithBackendPolicy(texcomp.PolicyPersistent),
//	    texcomp.WithLogger(slog.Default()),
//	)
//	defer fw.Close()
type Option func(*frameworkOptions)

type frameworkOptions struct {
	registry *Registry
	logger   *slog.Logger
	policy   BackendPolicy
	probe    func() bool
}

func defaultOptions() frameworkOptions {
	return frameworkOptions{
		policy: PolicyPerLevel,
		probe:  platform.DX12Supported,
	}
}

// WithRegistry resolves plugins from reg instead of DefaultRegistry.
func WithRegistry(reg *Registry) Option {
	return func(o *frameworkOptions) {
		o.registry = reg
	}
}

// WithLogger sets the shared sink for this framework.
// Without it the package logger (see SetLogger) is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *frameworkOptions) {
		o.logger = l
	}
}

// WithBackendPolicy selects how long acquired backends live.
func WithBackendPolicy(p BackendPolicy) Option {
	return func(o *frameworkOptions) {
		o.policy = p
	}
}

// WithPlatformProbe replaces the DirectX 12 capability probe.
func WithPlatformProbe(dx12Supported func() bool) Option {
	return func(o *frameworkOptions) {
		o.probe = dx12Supported
	}
}
