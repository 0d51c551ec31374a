package perf

// Window is a fixed-length ring of samples. Once full, each Add evicts the
// oldest sample. Derived values cover only live samples.
type Window struct {
	samples []float64
	next    int
	n       int
}

// NewWindow returns an empty window holding at most size samples.
func NewWindow(size int) *Window {
	return &Window{samples: make([]float64, max(size, 1))}
}

// Add appends v.
func (w *Window) Add(v float64) {
	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
	if w.n < len(w.samples) {
		w.n++
	}
}

// Len returns the number of live samples.
func (w *Window) Len() int { return w.n }

// Size returns the window capacity.
func (w *Window) Size() int { return len(w.samples) }

// Current returns the most recent sample, or 0 when empty.
func (w *Window) Current() float64 {
	if w.n == 0 {
		return 0
	}
	return w.samples[(w.next-1+len(w.samples))%len(w.samples)]
}

// Average returns the mean of the live samples, or 0 when empty.
func (w *Window) Average() float64 {
	if w.n == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.live() {
		sum += v
	}
	return sum / float64(w.n)
}

// Min returns the smallest live sample, or 0 when empty.
func (w *Window) Min() float64 {
	if w.n == 0 {
		return 0
	}
	vals := w.live()
	m := vals[0]
	for _, v := range vals[1:] {
		m = min(m, v)
	}
	return m
}

// Max returns the largest live sample, or 0 when empty.
func (w *Window) Max() float64 {
	if w.n == 0 {
		return 0
	}
	vals := w.live()
	m := vals[0]
	for _, v := range vals[1:] {
		m = max(m, v)
	}
	return m
}

// Values returns the live samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.n)
	start := (w.next - w.n + len(w.samples)) % len(w.samples)
	for i := range w.n {
		out = append(out, w.samples[(start+i)%len(w.samples)])
	}
	return out
}

// live returns the live samples in storage order.
func (w *Window) live() []float64 {
	if w.n < len(w.samples) {
		return w.samples[:w.n]
	}
	return w.samples
}

// Reset drops every sample.
func (w *Window) Reset() {
	clear(w.samples)
	w.next = 0
	w.n = 0
}
