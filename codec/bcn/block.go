package bcn

import (
	"encoding/binary"
	"math"
)

// pixels is one 4x4 block of RGBA8 pixels in row-major order.
type pixels [16][4]byte

// to565 quantizes an 8-bit color to RGB565.
func to565(r, g, b int) uint16 {
	return uint16((r*31+127)/255)<<11 | uint16((g*63+127)/255)<<5 | uint16((b*31+127)/255)
}

// expand565 returns the 8-bit channels a decoder reconstructs from c.
func expand565(c uint16) [3]int {
	r := int(c>>11) & 31
	g := int(c>>5) & 63
	b := int(c) & 31
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func colorDist(a [3]int, r, g, b byte) int {
	dr := a[0] - int(r)
	dg := a[1] - int(g)
	db := a[2] - int(b)
	return dr*dr + dg*dg + db*db
}

// encodeColor writes an 8-byte BC1 color block for px into dst.
//
// With punchThrough set, pixels with alpha below 128 select the transparent
// index and the block uses three-color mode. inset shrinks the endpoint box
// by 1/16 of its range on each side.
func encodeColor(px *pixels, dst []byte, punchThrough, inset bool) {
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	transparent := false
	opaque := 0
	for i := range px {
		if punchThrough && px[i][3] < 128 {
			transparent = true
			continue
		}
		opaque++
		for c := range 3 {
			v := int(px[i][c])
			lo[c] = min(lo[c], v)
			hi[c] = max(hi[c], v)
		}
	}

	if opaque == 0 {
		binary.LittleEndian.PutUint16(dst[0:], 0)
		binary.LittleEndian.PutUint16(dst[2:], 0)
		binary.LittleEndian.PutUint32(dst[4:], 0xFFFFFFFF)
		return
	}

	if inset {
		for c := range 3 {
			d := (hi[c] - lo[c]) >> 4
			lo[c] += d
			hi[c] -= d
		}
	}

	c0 := to565(hi[0], hi[1], hi[2])
	c1 := to565(lo[0], lo[1], lo[2])

	var palette [4][3]int
	n := 4
	if transparent {
		if c0 > c1 {
			c0, c1 = c1, c0
		}
		e0, e1 := expand565(c0), expand565(c1)
		palette[0], palette[1] = e0, e1
		for c := range 3 {
			palette[2][c] = (e0[c] + e1[c]) / 2
		}
		n = 3
	} else {
		if c0 < c1 {
			c0, c1 = c1, c0
		}
		e0, e1 := expand565(c0), expand565(c1)
		palette[0], palette[1] = e0, e1
		for c := range 3 {
			palette[2][c] = (2*e0[c] + e1[c]) / 3
			palette[3][c] = (e0[c] + 2*e1[c]) / 3
		}
		if c0 == c1 {
			n = 1
		}
	}

	var indices uint32
	for i := range px {
		idx := 0
		if transparent && px[i][3] < 128 {
			idx = 3
		} else {
			best := math.MaxInt
			for j := range n {
				if d := colorDist(palette[j], px[i][0], px[i][1], px[i][2]); d < best {
					best, idx = d, j
				}
			}
		}
		indices |= uint32(idx) << (2 * i)
	}

	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)
	binary.LittleEndian.PutUint32(dst[4:], indices)
}

// encodeExplicitAlpha writes the 8-byte 4-bit alpha block of BC2.
func encodeExplicitAlpha(px *pixels, dst []byte) {
	var bits uint64
	for i := range px {
		a := (uint64(px[i][3])*15 + 127) / 255
		bits |= a << (4 * i)
	}
	binary.LittleEndian.PutUint64(dst, bits)
}

// encodeChannel writes an 8-byte BC4 block for 16 channel values.
// Unsigned values are in 0..255, signed values in -127..127.
func encodeChannel(v *[16]int, dst []byte, inset bool) {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if inset {
		d := (hi - lo) >> 4
		lo += d
		hi -= d
	}

	var bits uint64
	if hi != lo {
		// Eight-value mode: r0 > r1.
		var palette [8]int
		palette[0], palette[1] = hi, lo
		for i := 2; i < 8; i++ {
			palette[i] = int(math.Round(float64((8-i)*hi+(i-1)*lo) / 7))
		}
		for i, x := range v {
			idx, best := 0, math.MaxInt
			for j, p := range palette {
				d := (p - x) * (p - x)
				if d < best {
					best, idx = d, j
				}
			}
			bits |= uint64(idx) << (3 * i)
		}
	}

	// Signed endpoints are stored in two's complement.
	dst[0] = byte(hi)
	dst[1] = byte(lo)
	for i := range 6 {
		dst[2+i] = byte(bits >> (8 * i))
	}
}

// channel extracts channel c of px, converted to the signed range when
// signed is set.
func channel(px *pixels, c int, signed bool) [16]int {
	var v [16]int
	for i := range px {
		x := int(px[i][c])
		if signed {
			x = max(x-128, -127)
		}
		v[i] = x
	}
	return v
}
