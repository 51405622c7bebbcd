package wakeword

// ring is a fixed-capacity ring buffer that evicts the oldest element on
// overflow. Length never exceeds capacity; Window always returns the most
// recent entries oldest-first.
type ring[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (r *ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the current number of elements.
func (r *ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the buffer holds Cap elements.
func (r *ring[T]) Full() bool { return r.count == len(r.buf) }

// Window returns the elements oldest-first. The returned slice is freshly
// allocated; elements are not copied.
func (r *ring[T]) Window() []T {
	out := make([]T, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Reset clears the contents. Capacity is unchanged.
func (r *ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}
