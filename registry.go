package texcomp

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/gpucontext"
)

// Registry maps (category, name) to plugin factories.
//
// Image plugins are keyed by uppercase file extension without the dot,
// Encoder plugins by Format.String, Pipeline plugins by
// BackendKind.PipelineName. Lookups are case-sensitive. Every lookup
// returns a new instance owned by the caller.
type Registry struct {
	images    *gpucontext.Registry[ImagePlugin]
	encoders  *gpucontext.Registry[EncoderPlugin]
	pipelines *gpucontext.Registry[PipelinePlugin]

	hostOnce sync.Once
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		images:   gpucontext.NewRegistry[ImagePlugin](),
		encoders: gpucontext.NewRegistry[EncoderPlugin](),
		pipelines: gpucontext.NewRegistry[PipelinePlugin](
			gpucontext.WithPriority("HPC", "GPU_VLK", "GPU_DXC", "GPU_HW", "GPU_OCL"),
		),
	}
}

// RegisterImage adds an Image plugin factory for a file extension.
// The extension is stored uppercase without a leading dot.
func (r *Registry) RegisterImage(ext string, factory func() ImagePlugin) {
	r.images.Register(extensionKey(ext), factory)
}

// RegisterEncoder adds an Encoder plugin factory for a destination format.
func (r *Registry) RegisterEncoder(format Format, factory func() EncoderPlugin) {
	r.encoders.Register(format.String(), factory)
}

// RegisterPipeline adds a Pipeline plugin factory under a pipeline name
// such as "HPC" or "GPU_VLK".
func (r *Registry) RegisterPipeline(name string, factory func() PipelinePlugin) {
	r.pipelines.Register(name, factory)
}

// Image returns a new Image plugin for the exact key ext.
func (r *Registry) Image(ext string) (ImagePlugin, error) {
	p := r.images.Get(ext)
	if p == nil {
		return nil, newError(CodePluginFileNotFound, "image plugin", fmt.Errorf("no plugin for %q", ext))
	}
	return p, nil
}

// Encoder returns a new Encoder plugin for format.
func (r *Registry) Encoder(format Format) (EncoderPlugin, error) {
	p := r.encoders.Get(format.String())
	if p == nil {
		return nil, newError(CodeUnsupportedFormat, "encoder plugin", fmt.Errorf("no encoder for %s", format))
	}
	return p, nil
}

// Pipeline returns a new Pipeline plugin registered under name.
func (r *Registry) Pipeline(name string) (PipelinePlugin, error) {
	p := r.pipelines.Get(name)
	if p == nil {
		return nil, newError(CodeUnsupportedBackend, "pipeline plugin", fmt.Errorf("no pipeline %q", name))
	}
	return p, nil
}

// Has reports whether a factory is registered for (category, name).
func (r *Registry) Has(category, name string) bool {
	switch category {
	case CategoryImage:
		return r.images.Has(name)
	case CategoryEncoder:
		return r.encoders.Has(name)
	case CategoryPipeline:
		return r.pipelines.Has(name)
	}
	return false
}

// Available returns the sorted names registered in category.
func (r *Registry) Available(category string) []string {
	var names []string
	switch category {
	case CategoryImage:
		names = r.images.Available()
	case CategoryEncoder:
		names = r.encoders.Available()
	case CategoryPipeline:
		names = r.pipelines.Available()
	}
	slices.Sort(names)
	return names
}

// PreferredPipeline returns the name of the preferred registered pipeline.
func (r *Registry) PreferredPipeline() string {
	return r.pipelines.BestName()
}

// RegisterHostPlugins copies every host plugin into r and subscribes r to
// plugins registered later through RegisterImagePlugin,
// RegisterEncoderPlugin and RegisterPipelinePlugin. Only the first call
// has an effect; concurrent first calls are safe.
func (r *Registry) RegisterHostPlugins() {
	r.hostOnce.Do(func() {
		hostPlugins.mu.Lock()
		defer hostPlugins.mu.Unlock()
		for _, e := range hostPlugins.images {
			r.RegisterImage(e.name, e.factory)
		}
		for _, e := range hostPlugins.encoders {
			r.RegisterEncoder(e.format, e.factory)
		}
		for _, e := range hostPlugins.pipelines {
			r.RegisterPipeline(e.name, e.factory)
		}
		hostPlugins.registries = append(hostPlugins.registries, r)
	})
}

// hostPlugins is the process-wide table filled by plugin packages from init.
// registries are the registries already holding a copy.
var hostPlugins struct {
	mu         sync.Mutex
	images     []imageEntry
	encoders   []encoderEntry
	pipelines  []pipelineEntry
	registries []*Registry
}

type imageEntry struct {
	name    string
	factory func() ImagePlugin
}

type encoderEntry struct {
	format  Format
	factory func() EncoderPlugin
}

type pipelineEntry struct {
	name    string
	factory func() PipelinePlugin
}

// RegisterImagePlugin adds an Image plugin to the host plugin set.
// It is usually called from init functions of plugin packages. Plugins
// registered after a registry took its copy, DefaultRegistry included,
// are added to that registry too.
func RegisterImagePlugin(ext string, factory func() ImagePlugin) {
	hostPlugins.mu.Lock()
	defer hostPlugins.mu.Unlock()
	hostPlugins.images = append(hostPlugins.images, imageEntry{ext, factory})
	for _, r := range hostPlugins.registries {
		r.RegisterImage(ext, factory)
	}
}

// RegisterEncoderPlugin adds an Encoder plugin to the host plugin set
// and to every registry already holding a copy.
func RegisterEncoderPlugin(format Format, factory func() EncoderPlugin) {
	hostPlugins.mu.Lock()
	defer hostPlugins.mu.Unlock()
	hostPlugins.encoders = append(hostPlugins.encoders, encoderEntry{format, factory})
	for _, r := range hostPlugins.registries {
		r.RegisterEncoder(format, factory)
	}
}

// RegisterPipelinePlugin adds a Pipeline plugin to the host plugin set
// and to every registry already holding a copy.
func RegisterPipelinePlugin(name string, factory func() PipelinePlugin) {
	hostPlugins.mu.Lock()
	defer hostPlugins.mu.Unlock()
	hostPlugins.pipelines = append(hostPlugins.pipelines, pipelineEntry{name, factory})
	for _, r := range hostPlugins.registries {
		r.RegisterPipeline(name, factory)
	}
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry holding the host plugins.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	defaultRegistry.RegisterHostPlugins()
	return defaultRegistry
}

// InitFramework registers the host plugins with the default registry.
// Calling it is optional; first use of the default framework does the same.
func InitFramework() {
	DefaultRegistry()
}

// extensionKey normalizes a file extension to a registry key.
func extensionKey(ext string) string {
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}
