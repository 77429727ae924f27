package texcomp

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Format identifies a pixel or block format.
// The String form is the key Encoder plugins are registered under.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatRGBA8888
	FormatBGRA8888
	FormatARGB8888
	FormatRGB888
	FormatR8
	FormatRG8
	FormatRGBA16
	FormatRGBA16F
	FormatRGBA32F
	FormatBC1
	FormatBC2
	FormatBC3
	FormatBC4
	FormatBC4S
	FormatBC5
	FormatBC5S
	FormatBC6H
	FormatBC6HSF
	FormatBC7
)

// ChannelFormat describes the storage class of a MipSet's channels.
type ChannelFormat uint8

const (
	Channel8Bit ChannelFormat = iota
	Channel16Bit
	ChannelFloat16
	ChannelFloat32
	ChannelCompressed
)

// String returns the channel format name.
func (c ChannelFormat) String() string {
	switch c {
	case Channel8Bit:
		return "8bit"
	case Channel16Bit:
		return "16bit"
	case ChannelFloat16:
		return "float16"
	case ChannelFloat32:
		return "float32"
	case ChannelCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("ChannelFormat(%d)", uint8(c))
	}
}

type formatInfo struct {
	name       string
	compressed bool
	size       int // bytes per pixel, or bytes per 4x4 block when compressed
	channel    ChannelFormat
	gpu        gputypes.TextureFormat
}

var formats = [...]formatInfo{
	FormatUnknown:  {"Unknown", false, 0, Channel8Bit, gputypes.TextureFormatUndefined},
	FormatRGBA8888: {"RGBA_8888", false, 4, Channel8Bit, gputypes.TextureFormatRGBA8Unorm},
	FormatBGRA8888: {"BGRA_8888", false, 4, Channel8Bit, gputypes.TextureFormatBGRA8Unorm},
	FormatARGB8888: {"ARGB_8888", false, 4, Channel8Bit, gputypes.TextureFormatUndefined},
	FormatRGB888:   {"RGB_888", false, 3, Channel8Bit, gputypes.TextureFormatUndefined},
	FormatR8:       {"R_8", false, 1, Channel8Bit, gputypes.TextureFormatR8Unorm},
	FormatRG8:      {"RG_8", false, 2, Channel8Bit, gputypes.TextureFormatRG8Unorm},
	FormatRGBA16:   {"RGBA_16", false, 8, Channel16Bit, gputypes.TextureFormatRGBA16Unorm},
	FormatRGBA16F:  {"RGBA_16F", false, 8, ChannelFloat16, gputypes.TextureFormatRGBA16Float},
	FormatRGBA32F:  {"RGBA_32F", false, 16, ChannelFloat32, gputypes.TextureFormatRGBA32Float},
	FormatBC1:      {"BC1", true, 8, ChannelCompressed, gputypes.TextureFormatBC1RGBAUnorm},
	FormatBC2:      {"BC2", true, 16, ChannelCompressed, gputypes.TextureFormatBC2RGBAUnorm},
	FormatBC3:      {"BC3", true, 16, ChannelCompressed, gputypes.TextureFormatBC3RGBAUnorm},
	FormatBC4:      {"BC4", true, 8, ChannelCompressed, gputypes.TextureFormatBC4RUnorm},
	FormatBC4S:     {"BC4_S", true, 8, ChannelCompressed, gputypes.TextureFormatBC4RSnorm},
	FormatBC5:      {"BC5", true, 16, ChannelCompressed, gputypes.TextureFormatBC5RGUnorm},
	FormatBC5S:     {"BC5_S", true, 16, ChannelCompressed, gputypes.TextureFormatBC5RGSnorm},
	FormatBC6H:     {"BC6H", true, 16, ChannelCompressed, gputypes.TextureFormatBC6HRGBUfloat},
	FormatBC6HSF:   {"BC6H_SF", true, 16, ChannelCompressed, gputypes.TextureFormatBC6HRGBFloat},
	FormatBC7:      {"BC7", true, 16, ChannelCompressed, gputypes.TextureFormatBC7RGBAUnorm},
}

func (f Format) info() formatInfo {
	if int(f) < len(formats) {
		return formats[f]
	}
	return formats[FormatUnknown]
}

// String returns the canonical format name, e.g. "BC1" or "RGBA_8888".
func (f Format) String() string {
	if int(f) >= len(formats) {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return formats[f].name
}

// IsCompressed reports whether f is a block-compressed format.
func (f Format) IsCompressed() bool { return f.info().compressed }

// BytesPerPixel returns the pixel size of an uncompressed format, or 0.
func (f Format) BytesPerPixel() int {
	i := f.info()
	if i.compressed {
		return 0
	}
	return i.size
}

// BytesPerBlock returns the size of one 4x4 block of a compressed format, or 0.
func (f Format) BytesPerBlock() int {
	i := f.info()
	if !i.compressed {
		return 0
	}
	return i.size
}

// ChannelFormat returns the channel storage class of f.
func (f Format) ChannelFormat() ChannelFormat { return f.info().channel }

// GPUFormat returns the matching WebGPU texture format, or
// gputypes.TextureFormatUndefined when there is none.
func (f Format) GPUFormat() gputypes.TextureFormat { return f.info().gpu }

// ParseFormat looks up a format by name, ignoring case.
func ParseFormat(name string) (Format, error) {
	for i, fi := range formats {
		if i == int(FormatUnknown) {
			continue
		}
		if strings.EqualFold(fi.name, name) {
			return Format(i), nil
		}
	}
	return FormatUnknown, newError(CodeUnsupportedFormat, "parse format", fmt.Errorf("unknown format %q", name))
}

// Formats returns every known format except FormatUnknown.
func Formats() []Format {
	out := make([]Format, 0, len(formats)-1)
	for i := 1; i < len(formats); i++ {
		out = append(out, Format(i))
	}
	return out
}

// TextureType is the shape of a MipSet.
type TextureType uint8

const (
	TextureType2D TextureType = iota
	TextureTypeCubeMap
	TextureTypeVolume
	TextureType2DArray
)

// String returns the texture type name.
func (t TextureType) String() string {
	switch t {
	case TextureType2D:
		return "2D"
	case TextureTypeCubeMap:
		return "CubeMap"
	case TextureTypeVolume:
		return "Volume"
	case TextureType2DArray:
		return "2DArray"
	default:
		return fmt.Sprintf("TextureType(%d)", uint8(t))
	}
}

// BackendKind selects the compute pipeline that runs an encode.
type BackendKind uint8

const (
	BackendCPU BackendKind = iota
	BackendHPC
	BackendGPUOCL
	BackendGPUHW
	BackendGPUVLK
	BackendGPUDXC
)

var backendNames = [...]struct{ short, pipeline string }{
	BackendCPU:    {"CPU", "HPC"},
	BackendHPC:    {"HPC", "HPC"},
	BackendGPUOCL: {"OCL", "GPU_OCL"},
	BackendGPUHW:  {"GPU", "GPU_HW"},
	BackendGPUVLK: {"VLK", "GPU_VLK"},
	BackendGPUDXC: {"DXC", "GPU_DXC"},
}

// String returns the short backend name (CPU, HPC, OCL, GPU, VLK, DXC).
func (k BackendKind) String() string {
	if int(k) < len(backendNames) {
		return backendNames[k].short
	}
	return fmt.Sprintf("BackendKind(%d)", uint8(k))
}

// PipelineName returns the registry key of the Pipeline plugin for k.
// BackendCPU runs on the HPC pipeline.
func (k BackendKind) PipelineName() string {
	if int(k) < len(backendNames) {
		return backendNames[k].pipeline
	}
	return ""
}

// IsGPU reports whether k runs on a GPU compute pipeline.
func (k BackendKind) IsGPU() bool {
	return k >= BackendGPUOCL && k <= BackendGPUDXC
}

// ParseBackendKind accepts either the short name or the pipeline name, ignoring case.
func ParseBackendKind(name string) (BackendKind, error) {
	for i, n := range backendNames {
		if strings.EqualFold(n.short, name) {
			return BackendKind(i), nil
		}
	}
	for i, n := range backendNames {
		if strings.EqualFold(n.pipeline, name) {
			return BackendKind(i), nil
		}
	}
	return BackendCPU, newError(CodeUnsupportedBackend, "parse backend", fmt.Errorf("unknown backend %q", name))
}
