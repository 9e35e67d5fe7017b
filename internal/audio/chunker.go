package audio

import (
	"fmt"
	"time"
)

// DefaultChunkMS is the default chunk length.
const DefaultChunkMS = 30000

// Chunk is a contiguous slice of a Buffer identified by its absolute offset.
type Chunk struct {
	Index      int
	StartMS    int64
	DurationMS int64
	SampleRate int
	Samples    []int16
}

// EndMS returns the absolute end offset of the chunk.
func (c Chunk) EndMS() int64 {
	return c.StartMS + c.DurationMS
}

// Duration returns the chunk length.
func (c Chunk) Duration() time.Duration {
	return time.Duration(c.DurationMS) * time.Millisecond
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %dms-%dms", c.Index, c.StartMS, c.EndMS())
}

// Chunker splits buffers into fixed-duration chunks.
type Chunker struct {
	SizeMS int64
}

// NewChunker returns a chunker with sizeMS, or the default when sizeMS <= 0.
func NewChunker(sizeMS int64) *Chunker {
	if sizeMS <= 0 {
		sizeMS = DefaultChunkMS
	}
	return &Chunker{SizeMS: sizeMS}
}

// Chunks splits [0, duration) into SizeMS pieces, the last one truncated.
// Each call recomputes the slice; chunks share the buffer's sample memory.
func (c *Chunker) Chunks(buf *Buffer) ([]Chunk, error) {
	if !buf.Loaded() {
		return nil, fmt.Errorf("get chunks: %w", ErrInvalidState)
	}
	size := c.SizeMS
	if size <= 0 {
		size = DefaultChunkMS
	}
	total := buf.DurationMS()
	chunks := make([]Chunk, 0, total/size+1)
	for start, i := int64(0), 0; start < total; start, i = start+size, i+1 {
		end := min(start+size, total)
		from := buf.sampleAt(start)
		to := buf.sampleAt(end)
		if end == total {
			// keep the sub-millisecond tail in the last chunk
			to = len(buf.Samples)
		}
		chunks = append(chunks, Chunk{
			Index:      i,
			StartMS:    start,
			DurationMS: end - start,
			SampleRate: buf.SampleRate,
			Samples:    buf.Samples[from:to],
		})
	}
	return chunks, nil
}
