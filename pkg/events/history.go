package events

// history is a fixed-capacity ring of records. When full, the oldest record
// is overwritten.
type history struct {
	buf   []Record
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 1
	}
	return &history{buf: make([]Record, capacity)}
}

func (h *history) add(r Record) {
	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = r
		h.size++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % capacity
}

func (h *history) len() int { return h.size }

// last returns up to n of the most recent records, oldest first.
func (h *history) last(n int) []Record {
	if n <= 0 || n > h.size {
		n = h.size
	}
	out := make([]Record, n)
	offset := h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+offset+i)%len(h.buf)]
	}
	return out
}
