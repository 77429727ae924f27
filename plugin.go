package texcomp

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
)

// Plugin categories.
const (
	CategoryImage    = "IMAGE"
	CategoryEncoder  = "ENCODER"
	CategoryPipeline = "PIPELINE"
)

// KernelOptions configures one backend invocation.
type KernelOptions struct {
	EncodeWith BackendKind
	Format     Format // destination format
	SrcFormat  Format
	Width      int
	Height     int
	Quality    float32 // 0..1

	// SourceFile is the kernel source to compile. When empty the Encoder
	// supplies its default for EncodeWith.
	SourceFile string

	// Threads caps CPU worker goroutines; 0 selects NumberOfProcessors.
	Threads int

	GetPerfStats  bool
	PerfStats     PerformanceStats
	GetDeviceInfo bool
	DeviceInfo    DeviceInfo
}

// ComputeOptions are run-time knobs applied to the active Pipeline.
type ComputeOptions struct {
	ForceRebuild bool

	// Encoder is set by the lifecycle manager to the active Encoder.
	// It is a reference only; the Pipeline must not close it.
	Encoder EncoderPlugin
}

// PerformanceStats reports the cost of the last Compress call.
type PerformanceStats struct {
	ComputeTime   time.Duration
	TotalTime     time.Duration
	NumBlocks     int
	MPixelsPerSec float64
}

// DeviceInfo describes the device a Pipeline runs on.
type DeviceInfo struct {
	Name    string
	Vendor  string
	Driver  string
	Backend string

	Adapter         gpucontext.AdapterInfo
	MaxComputeUnits int

	// NativeSampling reports whether the device samples the destination
	// format natively.
	NativeSampling bool
}

// Feedback receives compression progress in percent.
// Returning true aborts the operation with ErrAborted.
type Feedback func(progress float32) (abort bool)

// ImagePlugin loads and saves one container file format.
type ImagePlugin interface {
	Load(path string) (*MipSet, error)
	Save(path string, ms *MipSet) error
	SetSharedIO(l *slog.Logger) error
}

// EncoderPlugin implements compression for one destination format.
type EncoderPlugin interface {
	Init(opts *KernelOptions) error

	// DefaultSource returns the built-in kernel source for kind,
	// or "" when there is none.
	DefaultSource(kind BackendKind) string

	SetSharedIO(l *slog.Logger) error

	// Create returns a new block encoder owned by the caller.
	Create() (BlockEncoder, error)

	Close()
}

// KernelProvider is implemented by Encoders that embed their kernel
// sources. GPU pipelines look kernels up there before reading from disk.
type KernelProvider interface {
	Kernels() fs.FS
}

// BlockEncoder compresses one 4x4 block per call.
//
// The block at grid position (x, y) is read from
// src[(4*y+row)*srcStride+16*x:] for rows 0..3, as RGBA8 pixels, and written
// to dst[y*dstStride+x*BlockSize():].
type BlockEncoder interface {
	CompressBlock(x, y int, src []byte, srcStride int, dst []byte, dstStride int) error
	BlockSize() int
	Close()
}

// PipelinePlugin runs an Encoder's work on one compute backend.
//
// Compress reads the active view of src and writes the active view of dst.
// Close must be safe to call after a failed Init.
type PipelinePlugin interface {
	Init(opts *KernelOptions) error
	SetSharedIO(l *slog.Logger) error
	SetComputeOptions(opts *ComputeOptions) error
	Compress(opts *KernelOptions, src, dst *MipSet, fb Feedback) error
	PerformanceStats() (PerformanceStats, error)
	DeviceInfo() (DeviceInfo, error)
	Close() error
}
