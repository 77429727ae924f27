package texcomp

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %s, %v", f.String(), got, err)
		}
	}
	if got, err := ParseFormat("bc4_s"); err != nil || got != FormatBC4S {
		t.Errorf("ParseFormat(bc4_s) = %s, %v", got, err)
	}
	if _, err := ParseFormat("ETC2"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(ETC2) error = %v", err)
	}
}

func TestFormatSizes(t *testing.T) {
	tests := []struct {
		f          Format
		compressed bool
		pixel      int
		block      int
	}{
		{FormatRGBA8888, false, 4, 0},
		{FormatRGB888, false, 3, 0},
		{FormatRGBA32F, false, 16, 0},
		{FormatBC1, true, 0, 8},
		{FormatBC4S, true, 0, 8},
		{FormatBC5, true, 0, 16},
		{FormatBC7, true, 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			if tt.f.IsCompressed() != tt.compressed {
				t.Errorf("IsCompressed() = %v", tt.f.IsCompressed())
			}
			if got := tt.f.BytesPerPixel(); got != tt.pixel {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.pixel)
			}
			if got := tt.f.BytesPerBlock(); got != tt.block {
				t.Errorf("BytesPerBlock() = %d, want %d", got, tt.block)
			}
		})
	}
}

func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		name     string
		want     BackendKind
		pipeline string
		gpu      bool
	}{
		{"CPU", BackendCPU, "HPC", false},
		{"hpc", BackendHPC, "HPC", false},
		{"GPU", BackendGPUHW, "GPU_HW", true},
		{"GPU_VLK", BackendGPUVLK, "GPU_VLK", true},
		{"dxc", BackendGPUDXC, "GPU_DXC", true},
		{"OCL", BackendGPUOCL, "GPU_OCL", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackendKind(tt.name)
			if err != nil {
				t.Fatalf("ParseBackendKind() error = %v", err)
			}
			if got != tt.want || got.PipelineName() != tt.pipeline || got.IsGPU() != tt.gpu {
				t.Errorf("got %s (%s, gpu %v)", got, got.PipelineName(), got.IsGPU())
			}
		})
	}
	if _, err := ParseBackendKind("CUDA"); !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("ParseBackendKind(CUDA) error = %v", err)
	}
}

func TestTextureBufferSize(t *testing.T) {
	tests := []struct {
		name string
		tex  Texture
		want int
	}{
		{"bc1 exact", Texture{Width: 8, Height: 8, Format: FormatBC1}, 32},
		{"bc1 rounds up", Texture{Width: 5, Height: 1, Format: FormatBC1}, 16},
		{"bc3 one pixel", Texture{Width: 1, Height: 1, Format: FormatBC3}, 16},
		{"rgba tight", Texture{Width: 3, Height: 2, Format: FormatRGBA8888}, 24},
		{"rgb pitch", Texture{Width: 3, Height: 2, Pitch: 12, Format: FormatRGB888}, 24},
		{"empty", Texture{Format: FormatBC1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tex.BufferSize(); got != tt.want {
				t.Errorf("BufferSize() = %d, want %d", got, tt.want)
			}
		})
	}
}
