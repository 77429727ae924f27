package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/gogpu/texcomp"
)

// filledMipSet allocates every level in use and fills it with a pattern
// derived from (mip, face).
func filledMipSet(t *testing.T, w, h, depth, mips int, f texcomp.Format, tt texcomp.TextureType) *texcomp.MipSet {
	t.Helper()
	ms, err := texcomp.NewMipSet(w, h, depth, f, tt)
	if err != nil {
		t.Fatalf("NewMipSet() error = %v", err)
	}
	ms.MipLevels = mips
	for mip := range mips {
		lw, lh := max(w>>mip, 1), max(h>>mip, 1)
		for face := range ms.MaxFacesOrSlices(mip) {
			lvl, err := ms.AllocateCompressedLevelData(mip, face, lw, lh, levelSize(ms, lw, lh))
			if err != nil {
				t.Fatalf("allocate mip %d face %d: %v", mip, face, err)
			}
			for i := range lvl.Data {
				lvl.Data[i] = byte(i + 31*mip + 7*face)
			}
		}
	}
	return ms
}

func roundTrip(t *testing.T, ms *texcomp.MipSet) (*texcomp.MipSet, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, ms); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	raw := bytes.Clone(buf.Bytes())
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return got, raw
}

func assertSameLevels(t *testing.T, want, got *texcomp.MipSet) {
	t.Helper()
	if got.Format != want.Format || got.TextureType != want.TextureType {
		t.Fatalf("got %s %s, want %s %s", got.Format, got.TextureType, want.Format, want.TextureType)
	}
	if got.Width != want.Width || got.Height != want.Height || got.Depth != want.Depth {
		t.Fatalf("got %dx%dx%d, want %dx%dx%d", got.Width, got.Height, got.Depth, want.Width, want.Height, want.Depth)
	}
	if got.MipLevels != want.MipLevels {
		t.Fatalf("MipLevels = %d, want %d", got.MipLevels, want.MipLevels)
	}
	for mip := range want.MipLevels {
		for face := range want.MaxFacesOrSlices(mip) {
			a, b := want.Level(mip, face), got.Level(mip, face)
			if a.Width != b.Width || a.Height != b.Height {
				t.Errorf("mip %d face %d: %dx%d, want %dx%d", mip, face, b.Width, b.Height, a.Width, a.Height)
			}
			if a.Checksum() != b.Checksum() {
				t.Errorf("mip %d face %d: data differs", mip, face)
			}
		}
	}
}

func TestRoundTripBC1Mips(t *testing.T) {
	src := filledMipSet(t, 8, 8, 1, 4, texcomp.FormatBC1, texcomp.TextureType2D)
	defer src.Free()

	got, raw := roundTrip(t, src)
	defer got.Free()
	assertSameLevels(t, src, got)

	if string(raw[:4]) != "DDS " {
		t.Errorf("magic = %q", raw[:4])
	}
	if string(raw[84:88]) != "DXT1" {
		t.Errorf("fourcc = %q, want DXT1", raw[84:88])
	}
	// 8x8, 4x4, 2x2 and 1x1 each round up to whole blocks.
	if want := 4 + 124 + 32 + 8 + 8 + 8; len(raw) != want {
		t.Errorf("file size = %d, want %d", len(raw), want)
	}
	if got.ActiveLevel() != got.Level(0, 0) {
		t.Error("active view is not level 0 face 0")
	}
}

func TestRoundTripCubeMap(t *testing.T) {
	src := filledMipSet(t, 4, 4, 6, 3, texcomp.FormatRGBA8888, texcomp.TextureTypeCubeMap)
	defer src.Free()

	got, raw := roundTrip(t, src)
	defer got.Free()
	assertSameLevels(t, src, got)

	caps2 := binary.LittleEndian.Uint32(raw[112:])
	if caps2 != caps2CubeMap|caps2AllFaces {
		t.Errorf("caps2 = %#x", caps2)
	}
}

func TestRoundTripVolume(t *testing.T) {
	src := filledMipSet(t, 4, 4, 4, 3, texcomp.FormatRGBA8888, texcomp.TextureTypeVolume)
	defer src.Free()

	got, _ := roundTrip(t, src)
	defer got.Free()
	assertSameLevels(t, src, got)
	if n := got.MaxFacesOrSlices(2); n != 1 {
		t.Errorf("slices at mip 2 = %d, want 1", n)
	}
}

func TestRoundTripArrayUsesDX10(t *testing.T) {
	src := filledMipSet(t, 4, 2, 3, 1, texcomp.FormatR8, texcomp.TextureType2DArray)
	defer src.Free()

	got, raw := roundTrip(t, src)
	defer got.Free()
	assertSameLevels(t, src, got)

	if string(raw[84:88]) != "DX10" {
		t.Fatalf("fourcc = %q, want DX10", raw[84:88])
	}
	if dxgi := binary.LittleEndian.Uint32(raw[128:]); dxgi != 61 {
		t.Errorf("DXGI format = %d, want 61", dxgi)
	}
	if size := binary.LittleEndian.Uint32(raw[140:]); size != 3 {
		t.Errorf("array size = %d, want 3", size)
	}
}

func TestRoundTripDX10Only(t *testing.T) {
	src := filledMipSet(t, 8, 4, 1, 2, texcomp.FormatBC7, texcomp.TextureType2D)
	defer src.Free()

	got, raw := roundTrip(t, src)
	defer got.Free()
	assertSameLevels(t, src, got)
	if dxgi := binary.LittleEndian.Uint32(raw[128:]); dxgi != 98 {
		t.Errorf("DXGI format = %d, want 98", dxgi)
	}
}

func TestLegacyMaskFormats(t *testing.T) {
	for _, f := range []texcomp.Format{
		texcomp.FormatRGBA8888,
		texcomp.FormatBGRA8888,
		texcomp.FormatARGB8888,
		texcomp.FormatRGB888,
		texcomp.FormatRG8,
		texcomp.FormatR8,
	} {
		t.Run(f.String(), func(t *testing.T) {
			pf, ok := legacyPixelFormat(f)
			if !ok {
				t.Fatal("no legacy pixel format")
			}
			got, ok := legacyFormat(pf)
			if !ok || got != f {
				t.Errorf("legacyFormat() = %s, %v; want %s", got, ok, f)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	src := filledMipSet(t, 4, 4, 1, 1, texcomp.FormatBC3, texcomp.TextureType2D)
	defer src.Free()
	var buf bytes.Buffer
	if err := Encode(&buf, src); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	valid := buf.Bytes()

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(valid)
		copy(bad, "PNG ")
		if _, err := Decode(bytes.NewReader(bad)); !errors.Is(err, ErrMagic) {
			t.Errorf("error = %v, want ErrMagic", err)
		}
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(valid[:len(valid)-3]))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("error = %v, want ErrUnexpectedEOF", err)
		}
	})
	t.Run("header size", func(t *testing.T) {
		bad := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(bad[4:], 100)
		if _, err := Decode(bytes.NewReader(bad)); !errors.Is(err, ErrHeader) {
			t.Errorf("error = %v, want ErrHeader", err)
		}
	})
	t.Run("fourcc", func(t *testing.T) {
		bad := bytes.Clone(valid)
		copy(bad[84:], "ETC2")
		if _, err := Decode(bytes.NewReader(bad)); !errors.Is(err, ErrFormat) {
			t.Errorf("error = %v, want ErrFormat", err)
		}
	})
}

func TestEncodeMissingLevel(t *testing.T) {
	ms, err := texcomp.NewMipSet(4, 4, 1, texcomp.FormatBC1, texcomp.TextureType2D)
	if err != nil {
		t.Fatal(err)
	}
	defer ms.Free()
	if err := Encode(io.Discard, ms); !errors.Is(err, errMissingLevel) {
		t.Errorf("Encode() error = %v, want errMissingLevel", err)
	}
}

func TestPluginSaveLoad(t *testing.T) {
	src := filledMipSet(t, 16, 8, 1, 5, texcomp.FormatBC5, texcomp.TextureType2D)
	defer src.Free()

	path := filepath.Join(t.TempDir(), "normal.dds")
	p := New()
	if err := p.Save(path, src); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := p.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer got.Free()
	assertSameLevels(t, src, got)
}

func TestFrameworkDispatchesByExtension(t *testing.T) {
	fw := texcomp.NewFramework()
	defer fw.Close()

	src := filledMipSet(t, 4, 4, 1, 3, texcomp.FormatBC4, texcomp.TextureType2D)
	defer src.Free()

	// Extension matching is case-insensitive.
	path := filepath.Join(t.TempDir(), "height.DdS")
	if err := fw.Save(path, src); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := fw.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer got.Free()
	assertSameLevels(t, src, got)
}
