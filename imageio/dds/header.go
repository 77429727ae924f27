package dds

import "github.com/gogpu/texcomp"

const magic = 0x20534444 // "DDS "

// Header flags.
const (
	flagCaps        = 0x1
	flagHeight      = 0x2
	flagWidth       = 0x4
	flagPitch       = 0x8
	flagPixelFormat = 0x1000
	flagMipMapCount = 0x20000
	flagLinearSize  = 0x80000
	flagDepth       = 0x800000
)

// Pixel format flags.
const (
	pfAlphaPixels = 0x1
	pfFourCC      = 0x4
	pfRGB         = 0x40
	pfLuminance   = 0x20000
)

// Caps.
const (
	capsComplex = 0x8
	capsTexture = 0x1000
	capsMipMap  = 0x400000

	caps2CubeMap    = 0x200
	caps2AllFaces   = 0xFC00
	caps2Volume     = 0x200000
	dx10MiscCube    = 0x4
	dx10Dimension2D = 3
	dx10Dimension3D = 4
)

func fourCC(s string) uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

var fourCCDX10 = fourCC("DX10")

// header is the 124-byte DDS_HEADER that follows the magic.
type header struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       pixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type pixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      uint32
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

// dx10Header is DDS_HEADER_DXT10.
type dx10Header struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// Legacy FourCC codes, including the D3DFMT numbers used for wide formats.
var fourCCFormats = map[uint32]texcomp.Format{
	fourCC("DXT1"): texcomp.FormatBC1,
	fourCC("DXT2"): texcomp.FormatBC2,
	fourCC("DXT3"): texcomp.FormatBC2,
	fourCC("DXT4"): texcomp.FormatBC3,
	fourCC("DXT5"): texcomp.FormatBC3,
	fourCC("ATI1"): texcomp.FormatBC4,
	fourCC("BC4U"): texcomp.FormatBC4,
	fourCC("BC4S"): texcomp.FormatBC4S,
	fourCC("ATI2"): texcomp.FormatBC5,
	fourCC("BC5U"): texcomp.FormatBC5,
	fourCC("BC5S"): texcomp.FormatBC5S,
	36:             texcomp.FormatRGBA16,
	113:            texcomp.FormatRGBA16F,
	116:            texcomp.FormatRGBA32F,
}

// FourCC written for each legacy compressed format.
var formatFourCC = map[texcomp.Format]string{
	texcomp.FormatBC1:  "DXT1",
	texcomp.FormatBC2:  "DXT3",
	texcomp.FormatBC3:  "DXT5",
	texcomp.FormatBC4:  "ATI1",
	texcomp.FormatBC4S: "BC4S",
	texcomp.FormatBC5:  "ATI2",
	texcomp.FormatBC5S: "BC5S",
}

// DXGI_FORMAT values.
var dxgiFormats = map[uint32]texcomp.Format{
	2:  texcomp.FormatRGBA32F,
	10: texcomp.FormatRGBA16F,
	11: texcomp.FormatRGBA16,
	28: texcomp.FormatRGBA8888,
	29: texcomp.FormatRGBA8888, // sRGB
	49: texcomp.FormatRG8,
	61: texcomp.FormatR8,
	71: texcomp.FormatBC1,
	72: texcomp.FormatBC1,
	74: texcomp.FormatBC2,
	75: texcomp.FormatBC2,
	77: texcomp.FormatBC3,
	78: texcomp.FormatBC3,
	80: texcomp.FormatBC4,
	81: texcomp.FormatBC4S,
	83: texcomp.FormatBC5,
	84: texcomp.FormatBC5S,
	87: texcomp.FormatBGRA8888,
	91: texcomp.FormatBGRA8888, // sRGB
	95: texcomp.FormatBC6H,
	96: texcomp.FormatBC6HSF,
	98: texcomp.FormatBC7,
	99: texcomp.FormatBC7, // sRGB
}

// DXGI_FORMAT written for formats that need the extended header.
var formatDXGI = map[texcomp.Format]uint32{
	texcomp.FormatRGBA32F:  2,
	texcomp.FormatRGBA16F:  10,
	texcomp.FormatRGBA16:   11,
	texcomp.FormatRGBA8888: 28,
	texcomp.FormatRG8:      49,
	texcomp.FormatR8:       61,
	texcomp.FormatBC1:      71,
	texcomp.FormatBC2:      74,
	texcomp.FormatBC3:      77,
	texcomp.FormatBC4:      80,
	texcomp.FormatBC4S:     81,
	texcomp.FormatBC5:      83,
	texcomp.FormatBC5S:     84,
	texcomp.FormatBGRA8888: 87,
	texcomp.FormatBC6H:     95,
	texcomp.FormatBC6HSF:   96,
	texcomp.FormatBC7:      98,
}

// maskFormat describes an uncompressed legacy layout by its channel masks.
type maskFormat struct {
	format     texcomp.Format
	bits       uint32
	r, g, b, a uint32
}

var maskFormats = []maskFormat{
	{texcomp.FormatRGBA8888, 32, 0x000000ff, 0x0000ff00, 0x00ff0000, 0xff000000},
	{texcomp.FormatBGRA8888, 32, 0x00ff0000, 0x0000ff00, 0x000000ff, 0xff000000},
	{texcomp.FormatARGB8888, 32, 0x0000ff00, 0x00ff0000, 0xff000000, 0x000000ff},
	{texcomp.FormatRGB888, 24, 0x000000ff, 0x0000ff00, 0x00ff0000, 0},
	{texcomp.FormatRG8, 16, 0x000000ff, 0x0000ff00, 0, 0},
	{texcomp.FormatR8, 8, 0x000000ff, 0, 0, 0},
}

// legacyFormat maps a legacy pixel format to a Format.
func legacyFormat(pf pixelFormat) (texcomp.Format, bool) {
	if pf.Flags&pfFourCC != 0 {
		f, ok := fourCCFormats[pf.FourCC]
		return f, ok
	}
	if pf.Flags&(pfRGB|pfLuminance) == 0 {
		return texcomp.FormatUnknown, false
	}
	for _, m := range maskFormats {
		if pf.RGBBitCount != m.bits || pf.RBitMask != m.r || pf.GBitMask != m.g || pf.BBitMask != m.b {
			continue
		}
		// A cleared alpha flag still carries the alpha byte in 32-bit layouts.
		if m.a != 0 && pf.ABitMask != 0 && pf.ABitMask != m.a {
			continue
		}
		return m.format, true
	}
	return texcomp.FormatUnknown, false
}

// legacyPixelFormat returns the pixel format for f without the extended
// header, or false when f needs one.
func legacyPixelFormat(f texcomp.Format) (pixelFormat, bool) {
	pf := pixelFormat{Size: 32}
	if cc, ok := formatFourCC[f]; ok {
		pf.Flags = pfFourCC
		pf.FourCC = fourCC(cc)
		return pf, true
	}
	for _, m := range maskFormats {
		if m.format != f {
			continue
		}
		pf.Flags = pfRGB
		if m.a != 0 {
			pf.Flags |= pfAlphaPixels
		}
		pf.RGBBitCount = m.bits
		pf.RBitMask, pf.GBitMask, pf.BBitMask, pf.ABitMask = m.r, m.g, m.b, m.a
		return pf, true
	}
	return pf, false
}
