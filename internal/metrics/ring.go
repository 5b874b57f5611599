package metrics

// Ring is a fixed-capacity ring buffer. Pushing beyond capacity evicts the
// oldest value.
type Ring[T int | float64] struct {
	buf  []T
	head int
	n    int
}

// NewRing creates a ring buffer holding at most capacity values.
func NewRing[T int | float64](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends a value, evicting the oldest when full.
func (r *Ring[T]) Push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int {
	return r.n
}

// Values returns the stored values oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Mean returns the arithmetic mean of the stored values, or 0 when empty.
func (r *Ring[T]) Mean() float64 {
	if r.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		sum += float64(r.buf[(r.head+i)%len(r.buf)])
	}
	return sum / float64(r.n)
}
