package printer

// Chunker yields successive row-aligned slices of a packed pixel buffer.
// Rows are never split across chunks; the final chunk may be shorter.
// The zero value is empty; create with NewChunker. Chunks alias the
// source buffer, no copying happens.
type Chunker struct {
	pixels []byte
	size   int
	off    int
}

// NewChunker splits pixels into chunks of rows scan-rows of rowBytes
// bytes each. The pixel buffer length must already be a whole number of
// rows; Document construction guarantees that for document buffers.
func NewChunker(pixels []byte, rowBytes, rows int) *Chunker {
	return &Chunker{pixels: pixels, size: rowBytes * rows}
}

// Next returns the next chunk, or false when the buffer is exhausted.
func (c *Chunker) Next() ([]byte, bool) {
	if c.off >= len(c.pixels) {
		return nil, false
	}
	end := c.off + c.size
	if end > len(c.pixels) {
		end = len(c.pixels)
	}
	chunk := c.pixels[c.off:end]
	c.off = end
	return chunk, true
}

// Reset rewinds the chunker to the start of the buffer.
func (c *Chunker) Reset() { c.off = 0 }
