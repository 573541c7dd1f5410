// Package rolling provides fixed-capacity overwrite buffers for the bounded
// histories kept by the signal-processing components (energy, noise floor,
// playout latency, emotion features).
package rolling

// Ring is a fixed-capacity circular buffer. Appending beyond capacity
// overwrites the oldest value.
type Ring[T any] struct {
	values []T
	head   int
	filled bool
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{values: make([]T, 0, capacity)}
}

func (r *Ring[T]) Push(v T) {
	if !r.filled && len(r.values) < cap(r.values) {
		r.values = append(r.values, v)
		if len(r.values) == cap(r.values) {
			r.filled = true
		}
		return
	}

	r.values[r.head] = v
	r.head = (r.head + 1) % cap(r.values)
}

func (r *Ring[T]) Len() int {
	return len(r.values)
}

// Values returns the buffered values in insertion order, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, len(r.values))
	out = append(out, r.values[r.head:]...)
	out = append(out, r.values[:r.head]...)
	return out
}

// Last returns the most recently pushed value.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if len(r.values) == 0 {
		return zero, false
	}

	idx := r.head - 1
	if idx < 0 {
		idx = len(r.values) - 1
	}
	return r.values[idx], true
}

func (r *Ring[T]) Reset() {
	r.values = r.values[:0]
	r.head = 0
	r.filled = false
}
