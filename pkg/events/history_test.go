package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordsOf(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{Kind: LeadAdded, Payload: Payload{"n": i}}
	}
	return out
}

func seq(records []Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Payload["n"].(int)
	}
	return out
}

func TestHistory_WrapsOldestFirst(t *testing.T) {
	h := newHistory(3)
	for _, r := range recordsOf(5) {
		h.add(r)
	}
	assert.Equal(t, 3, h.len())
	assert.Equal(t, []int{2, 3, 4}, seq(h.last(0)))
}

func TestHistory_Last(t *testing.T) {
	h := newHistory(4)
	for _, r := range recordsOf(6) {
		h.add(r)
	}
	tests := []struct {
		n    int
		want []int
	}{
		{n: 1, want: []int{5}},
		{n: 2, want: []int{4, 5}},
		{n: 0, want: []int{2, 3, 4, 5}},
		{n: 10, want: []int{2, 3, 4, 5}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seq(h.last(tt.n)), "n=%d", tt.n)
	}
}

func TestHistory_Empty(t *testing.T) {
	h := newHistory(0)
	assert.Empty(t, h.last(0))
	assert.Empty(t, h.last(5))

	h.add(Record{Kind: SystemReady, Payload: Payload{"n": 1}})
	h.add(Record{Kind: SystemReady, Payload: Payload{"n": 2}})
	assert.Equal(t, []int{2}, seq(h.last(0)))
}
