package hpc

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/texcomp"
	"github.com/gogpu/texcomp/codec/bcn"
	"github.com/gogpu/texcomp/internal/pixel"
)

// gradient returns a width x height RGBA_8888 level with distinct pixels.
func gradient(t *testing.T, width, height int) *texcomp.MipSet {
	t.Helper()
	ms, err := texcomp.NewMipSet(width, height, 1, texcomp.FormatRGBA8888, texcomp.TextureType2D)
	if err != nil {
		t.Fatalf("NewMipSet() error = %v", err)
	}
	lvl, err := ms.AllocateLevelData(0, 0, width, height)
	if err != nil {
		t.Fatalf("AllocateLevelData() error = %v", err)
	}
	for y := range height {
		for x := range width {
			i := (y*width + x) * 4
			lvl.Data[i] = byte(x * 255 / max(width-1, 1))
			lvl.Data[i+1] = byte(y * 255 / max(height-1, 1))
			lvl.Data[i+2] = byte((x + y) * 16)
			lvl.Data[i+3] = 255
		}
	}
	if err := ms.SetActiveLevel(0, 0); err != nil {
		t.Fatalf("SetActiveLevel() error = %v", err)
	}
	return ms
}

func compressedDest(t *testing.T, src *texcomp.MipSet, format texcomp.Format) *texcomp.MipSet {
	t.Helper()
	dst, err := texcomp.NewMipSet(src.Width, src.Height, 1, format, texcomp.TextureType2D)
	if err != nil {
		t.Fatalf("NewMipSet() error = %v", err)
	}
	tex := texcomp.Texture{Width: src.Width, Height: src.Height, Format: format}
	if _, err := dst.AllocateCompressedLevelData(0, 0, src.Width, src.Height, tex.BufferSize()); err != nil {
		t.Fatalf("AllocateCompressedLevelData() error = %v", err)
	}
	if err := dst.SetActiveLevel(0, 0); err != nil {
		t.Fatalf("SetActiveLevel() error = %v", err)
	}
	return dst
}

func initPipeline(t *testing.T, format texcomp.Format, threads int) (*Pipeline, *texcomp.KernelOptions) {
	t.Helper()
	enc := bcn.New(format)
	opts := &texcomp.KernelOptions{
		EncodeWith: texcomp.BackendHPC,
		Format:     format,
		Quality:    1,
		Threads:    threads,
		SourceFile: enc.DefaultSource(texcomp.BackendHPC),
	}
	if err := enc.Init(opts); err != nil {
		t.Fatalf("encoder Init() error = %v", err)
	}
	p := New()
	if err := p.Init(opts); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.SetComputeOptions(&texcomp.ComputeOptions{Encoder: enc}); err != nil {
		t.Fatalf("SetComputeOptions() error = %v", err)
	}
	return p, opts
}

func TestCompressMatchesBlockEncoder(t *testing.T) {
	// 10x6 exercises padding in both directions.
	src := gradient(t, 10, 6)
	dst := compressedDest(t, src, texcomp.FormatBC1)
	p, opts := initPipeline(t, texcomp.FormatBC1, 3)

	if err := p.Compress(opts, src, dst, nil); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	padded, stride, err := pixel.PadBlocks(src.Format, src.ActiveData(), 10, 6)
	if err != nil {
		t.Fatalf("padBlocks() error = %v", err)
	}
	enc := bcn.New(texcomp.FormatBC1)
	if err := enc.Init(opts); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	be, err := enc.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	want := make([]byte, len(dst.ActiveData()))
	for y := range 2 {
		for x := range 3 {
			if err := be.CompressBlock(x, y, padded, stride, want, 3*8); err != nil {
				t.Fatalf("CompressBlock(%d, %d) error = %v", x, y, err)
			}
		}
	}
	if !bytes.Equal(dst.ActiveData(), want) {
		t.Errorf("pipeline output differs from sequential block encoding")
	}

	stats, err := p.PerformanceStats()
	if err != nil {
		t.Fatalf("PerformanceStats() error = %v", err)
	}
	if stats.NumBlocks != 6 {
		t.Errorf("NumBlocks = %d, want 6", stats.NumBlocks)
	}
}

func TestCompressDeterministicAcrossThreads(t *testing.T) {
	src := gradient(t, 64, 32)
	var outputs [][]byte
	for _, threads := range []int{1, 4} {
		dst := compressedDest(t, src, texcomp.FormatBC3)
		p, opts := initPipeline(t, texcomp.FormatBC3, threads)
		if err := p.Compress(opts, src, dst, nil); err != nil {
			t.Fatalf("Compress(threads=%d) error = %v", threads, err)
		}
		outputs = append(outputs, dst.ActiveData())
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("output depends on thread count")
	}
}

func TestCompressFeedback(t *testing.T) {
	src := gradient(t, 16, 16)

	t.Run("progress", func(t *testing.T) {
		dst := compressedDest(t, src, texcomp.FormatBC1)
		p, opts := initPipeline(t, texcomp.FormatBC1, 2)
		var last float32
		calls := 0
		err := p.Compress(opts, src, dst, func(progress float32) bool {
			calls++
			last = max(last, progress)
			return false
		})
		if err != nil {
			t.Fatalf("Compress() error = %v", err)
		}
		if calls != 4 {
			t.Errorf("feedback calls = %d, want 4", calls)
		}
		if last != 100 {
			t.Errorf("final progress = %v, want 100", last)
		}
	})

	t.Run("abort", func(t *testing.T) {
		dst := compressedDest(t, src, texcomp.FormatBC1)
		p, opts := initPipeline(t, texcomp.FormatBC1, 1)
		err := p.Compress(opts, src, dst, func(float32) bool { return true })
		if !errors.Is(err, texcomp.ErrAborted) {
			t.Errorf("Compress() error = %v, want ErrAborted", err)
		}
	})
}

func TestCompressErrors(t *testing.T) {
	src := gradient(t, 8, 8)
	dst := compressedDest(t, src, texcomp.FormatBC1)

	p := New()
	opts := &texcomp.KernelOptions{Format: texcomp.FormatBC1}
	if err := p.Compress(opts, src, dst, nil); !errors.Is(err, errNotInitialized) {
		t.Errorf("Compress() before Init error = %v, want errNotInitialized", err)
	}
	if err := p.Init(opts); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer p.Close()
	if err := p.Compress(opts, src, dst, nil); !errors.Is(err, errNoEncoder) {
		t.Errorf("Compress() without encoder error = %v, want errNoEncoder", err)
	}
	if err := p.SetComputeOptions(&texcomp.ComputeOptions{}); !errors.Is(err, errNoEncoder) {
		t.Errorf("SetComputeOptions(nil encoder) error = %v, want errNoEncoder", err)
	}

	if err := p.SetComputeOptions(&texcomp.ComputeOptions{Encoder: bcn.New(texcomp.FormatBC1)}); err != nil {
		t.Fatalf("SetComputeOptions() error = %v", err)
	}
	src.ClearActive()
	if err := p.Compress(opts, src, dst, nil); !errors.Is(err, errNoActiveLevel) {
		t.Errorf("Compress() without active level error = %v, want errNoActiveLevel", err)
	}
}

func TestInitRejectsKernelFile(t *testing.T) {
	p := New()
	err := p.Init(&texcomp.KernelOptions{SourceFile: "kernels/bc1.wgsl"})
	if !errors.Is(err, errKernel) {
		t.Errorf("Init() error = %v, want errKernel", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() after failed Init error = %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := New()
	if err := p.Close(); err != nil {
		t.Errorf("Close() before Init error = %v", err)
	}
	if err := p.Init(&texcomp.KernelOptions{Threads: 2}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDeviceInfo(t *testing.T) {
	p := New()
	if _, err := p.DeviceInfo(); !errors.Is(err, errNotInitialized) {
		t.Errorf("DeviceInfo() before Init error = %v, want errNotInitialized", err)
	}
	if err := p.Init(&texcomp.KernelOptions{Threads: 3}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer p.Close()

	info, err := p.DeviceInfo()
	if err != nil {
		t.Fatalf("DeviceInfo() error = %v", err)
	}
	if info.Backend != Name {
		t.Errorf("Backend = %q, want %q", info.Backend, Name)
	}
	if info.MaxComputeUnits != 3 {
		t.Errorf("MaxComputeUnits = %d, want 3", info.MaxComputeUnits)
	}
}

func TestConvertThroughFramework(t *testing.T) {
	reg := texcomp.NewRegistry()
	reg.RegisterHostPlugins()
	fw := texcomp.NewFramework(texcomp.WithRegistry(reg))
	defer fw.Close()

	src := gradient(t, 16, 8)
	defer src.Free()
	if err := texcomp.GenerateMipLevels(src, 1); err != nil {
		t.Fatalf("GenerateMipLevels() error = %v", err)
	}

	opts := &texcomp.KernelOptions{
		Format:       texcomp.FormatBC1,
		EncodeWith:   texcomp.BackendHPC,
		Quality:      0.5,
		GetPerfStats: true,
	}
	dst, err := fw.Convert(src, opts, nil)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	defer dst.Free()

	if dst.MipLevels != src.MipLevels {
		t.Fatalf("MipLevels = %d, want %d", dst.MipLevels, src.MipLevels)
	}
	sizes := []int{8 * 4 * 2, 8 * 2 * 1, 8, 8, 8}
	for l := range dst.MipLevels {
		if got := len(dst.Level(l, 0).Data); got != sizes[l] {
			t.Errorf("level %d size = %d, want %d", l, got, sizes[l])
		}
	}
	if opts.PerfStats.NumBlocks != 8+2+1+1+1 {
		t.Errorf("NumBlocks = %d, want 13", opts.PerfStats.NumBlocks)
	}
}

func TestConvertFeedbackMaySetLogger(t *testing.T) {
	src := gradient(t, 16, 16)
	defer src.Free()
	defer texcomp.SetLogger(nil)

	var calls int
	fb := func(float32) bool {
		calls++
		texcomp.SetLogger(nil)
		return false
	}
	opts := &texcomp.KernelOptions{
		Format:        texcomp.FormatBC1,
		EncodeWith:    texcomp.BackendHPC,
		Threads:       2,
		GetDeviceInfo: true,
	}

	type result struct {
		dst *texcomp.MipSet
		err error
	}
	done := make(chan result, 1)
	go func() {
		dst, err := texcomp.Convert(src, opts, fb)
		done <- result{dst, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Convert() error = %v", r.err)
		}
		r.dst.Free()
	case <-time.After(10 * time.Second):
		t.Fatal("Convert did not return while its feedback called SetLogger")
	}
	if calls == 0 {
		t.Error("feedback never called")
	}
	if opts.DeviceInfo.Backend != Name {
		t.Errorf("DeviceInfo.Backend = %q, want %q", opts.DeviceInfo.Backend, Name)
	}
}

func TestCompressFeedbackMayReenter(t *testing.T) {
	p, opts := initPipeline(t, texcomp.FormatBC1, 2)
	src := gradient(t, 8, 8)
	dst := compressedDest(t, src, texcomp.FormatBC1)

	fb := func(float32) bool {
		if err := p.SetSharedIO(texcomp.Logger()); err != nil {
			t.Errorf("SetSharedIO() from feedback error = %v", err)
		}
		if _, err := p.DeviceInfo(); err != nil {
			t.Errorf("DeviceInfo() from feedback error = %v", err)
		}
		return false
	}
	done := make(chan error, 1)
	go func() { done <- p.Compress(opts, src, dst, fb) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Compress() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Compress blocked on a re-entrant feedback call")
	}
}
