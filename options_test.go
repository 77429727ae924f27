package texcomp

import (
	"log/slog"
	"testing"
)

func TestNewFrameworkDefaults(t *testing.T) {
	fw := NewFramework()
	defer fw.Close()

	if fw.Registry() != DefaultRegistry() {
		t.Error("default framework does not use DefaultRegistry")
	}
	if fw.Policy() != PolicyPerLevel {
		t.Errorf("Policy() = %s, want per-level", fw.Policy())
	}
	if fw.log() != Logger() {
		t.Error("framework without WithLogger should use the package logger")
	}
}

func TestFrameworkOptions(t *testing.T) {
	reg := NewRegistry()
	l := slog.New(nopHandler{})
	probed := false

	fw := NewFramework(
		WithRegistry(reg),
		WithLogger(l),
		WithBackendPolicy(PolicyPersistent),
		WithPlatformProbe(func() bool { probed = true; return true }),
	)
	defer fw.Close()

	if fw.Registry() != reg {
		t.Error("WithRegistry not applied")
	}
	if fw.log() != l {
		t.Error("WithLogger not applied")
	}
	if fw.Policy() != PolicyPersistent || fw.Policy().String() != "persistent" {
		t.Errorf("Policy() = %s", fw.Policy())
	}

	// The probe gates the DirectX 12 pipeline; the registry is empty so the
	// lookup after it fails.
	err := fw.lifecycle.Acquire(nil, &KernelOptions{Format: FormatBC1, EncodeWith: BackendGPUDXC})
	if err == nil {
		t.Fatal("Acquire() on an empty registry succeeded")
	}
	if probed {
		t.Error("probe consulted before an encoder was found")
	}
}

func TestDefaultFramework(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() returned different frameworks")
	}
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNumberOfProcessors(t *testing.T) {
	if n := NumberOfProcessors(); n < 1 {
		t.Errorf("NumberOfProcessors() = %d, want >= 1", n)
	}
}
