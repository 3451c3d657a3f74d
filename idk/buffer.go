package idk

// DefaultBufferSize is the length of the memory buffer of a new Machine.
const DefaultBufferSize = valueModulus

// Buffer is the byte-addressed memory of a Machine.
// Addresses wrap around the length of the buffer.
type Buffer []byte

// NewBuffer returns a zeroed buffer of n bytes,
// or of DefaultBufferSize bytes if n is not positive.
func NewBuffer(n int) Buffer {
	if n <= 0 {
		n = DefaultBufferSize
	}
	return make(Buffer, n)
}

func (b Buffer) Load(addr Value) Value {
	return Value(b[int(addr)%len(b)])
}

// Store writes the low byte of v at addr.
func (b Buffer) Store(addr, v Value) {
	b[int(addr)%len(b)] = byte(v)
}
