package texcomp

// Texture describes one level of one face for a single backend call.
// Data is borrowed from a MipLevel or from the caller and is never owned.
type Texture struct {
	Width  int
	Height int
	Pitch  int // bytes per row; 0 means tightly packed

	BlockWidth  int
	BlockHeight int
	BlockDepth  int

	Format Format
	Data   []byte
}

// BufferSize returns the number of bytes the texture occupies.
// For compressed formats it is the number of blocks times the block size;
// block dimensions default to 4x4 when unset.
func (t *Texture) BufferSize() int {
	if t.Width <= 0 || t.Height <= 0 {
		return 0
	}
	if t.Format.IsCompressed() {
		bw, bh := t.BlockWidth, t.BlockHeight
		if bw <= 0 {
			bw = 4
		}
		if bh <= 0 {
			bh = 4
		}
		bx := (t.Width + bw - 1) / bw
		by := (t.Height + bh - 1) / bh
		return bx * by * t.Format.BytesPerBlock()
	}
	if t.Pitch > 0 {
		return t.Pitch * t.Height
	}
	return t.Width * t.Height * t.Format.BytesPerPixel()
}

