package snapshot

import "sync"

// maximum capacity a buffer may have and still return to the pool
const maxPooledBuffer = 1 << 16

// Buffer holds one packed snapshot. Ownership moves with the buffer: the
// packer fills it, the handoff channel transfers it, and the reader releases
// it back to the pool after decoding.
type Buffer struct {
	data []byte
	pool *BufferPool
}

// NewBuffer wraps data in an unpooled buffer; Release is a no-op. Useful
// when a snapshot arrives from outside the packer, such as in tests.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the packed snapshot bytes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Release returns the buffer to its pool. The caller must not touch the
// buffer afterwards.
func (b *Buffer) Release() {
	if b.pool != nil {
		b.pool.put(b)
	}
}

// BufferPool recycles snapshot buffers to keep the pack cycle free of
// steady-state allocations.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool producing buffers with the given initial
// capacity.
func NewBufferPool(initialCap int) *BufferPool {
	p := &BufferPool{}
	p.pool.New = func() any {
		return &Buffer{data: make([]byte, 0, initialCap), pool: p}
	}
	return p
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *Buffer {
	b := p.pool.Get().(*Buffer)
	b.data = b.data[:0]
	return b
}

func (p *BufferPool) put(b *Buffer) {
	// Oversized buffers are dropped rather than pinned in the pool.
	if cap(b.data) <= maxPooledBuffer {
		p.pool.Put(b)
	}
}
