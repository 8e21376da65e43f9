package normalize

// historySize bounds the per-(device, capability) observation history.
const historySize = 20

// history is a bounded circular buffer of the most recent raw
// observations for one (device, capability) pair.
type history struct {
	values []float64
	next   int
}

func newHistory() *history {
	return &history{values: make([]float64, 0, historySize)}
}

// push appends a raw observation, evicting the oldest once the buffer
// is full.
func (h *history) push(v float64) {
	if len(h.values) < historySize {
		h.values = append(h.values, v)
		return
	}
	h.values[h.next] = v
	h.next = (h.next + 1) % historySize
}

// len returns the number of stored observations.
func (h *history) len() int {
	return len(h.values)
}

// snapshot returns the stored observations in unspecified order.
// Sufficient for the majority vote, which only counts range landings.
func (h *history) snapshot() []float64 {
	return append([]float64(nil), h.values...)
}
