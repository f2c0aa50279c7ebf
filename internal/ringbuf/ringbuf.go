// Package ringbuf provides a fixed capacity double ended queue.
package ringbuf

type RingBuf[T any] struct {
	buf        []T
	head, tail int
}

func New[T any](n int) RingBuf[T] {
	if n <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return RingBuf[T]{buf: make([]T, n)}
}

func (rb *RingBuf[T]) MaxLen() int {
	return len(rb.buf)
}

func (rb *RingBuf[T]) PushBack(val T) {
	if rb.Len() >= len(rb.buf) {
		panic("ringbuf: full")
	}
	rb.buf[rb.index(rb.tail)] = val
	rb.tail++
}

func (rb *RingBuf[T]) PushFront(val T) {
	if rb.Len() >= len(rb.buf) {
		panic("ringbuf: full")
	}
	rb.head--
	rb.buf[rb.index(rb.head)] = val
}

func (rb *RingBuf[T]) PopFront() T {
	val := rb.At(0)
	var zero T
	rb.buf[rb.index(rb.head)] = zero
	rb.head++
	return val
}

func (rb *RingBuf[T]) PopBack() T {
	val := rb.At(rb.Len() - 1)
	rb.tail--
	return val
}

func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.Len() {
		panic(i)
	}
	return rb.buf[rb.index(rb.head+i)]
}

func (rb *RingBuf[T]) Len() int {
	return rb.tail - rb.head
}

// index maps a (possibly negative) cursor onto buf.
func (rb *RingBuf[T]) index(i int) int {
	i %= len(rb.buf)
	if i < 0 {
		i += len(rb.buf)
	}
	return i
}
