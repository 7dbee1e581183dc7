// history.go implements the bounded FIFO event history.

package errmon

import "time"

// eventHistory is a fixed-capacity ring buffer. Not safe for concurrent use;
// the Monitor serializes access.
type eventHistory struct {
	events   []ErrorEvent
	maxSize  int
	writeIdx int
}

func newEventHistory(maxSize int) *eventHistory {
	return &eventHistory{
		events:  make([]ErrorEvent, 0, min(maxSize, 256)),
		maxSize: maxSize,
	}
}

// Add appends an event, overwriting the oldest once the buffer is full.
func (h *eventHistory) Add(event ErrorEvent) {
	if len(h.events) < h.maxSize {
		h.events = append(h.events, event)
		return
	}
	h.events[h.writeIdx] = event
	h.writeIdx = (h.writeIdx + 1) % h.maxSize
}

// All returns a copy of the events, oldest first.
func (h *eventHistory) All() []ErrorEvent {
	result := make([]ErrorEvent, len(h.events))
	if len(h.events) < h.maxSize {
		copy(result, h.events)
		return result
	}
	// Full buffer: writeIdx points at the oldest entry.
	n := copy(result, h.events[h.writeIdx:])
	copy(result[n:], h.events[:h.writeIdx])
	return result
}

// at returns the i-th oldest event.
func (h *eventHistory) at(i int) ErrorEvent {
	if len(h.events) < h.maxSize {
		return h.events[i]
	}
	return h.events[(h.writeIdx+i)%h.maxSize]
}

// Since returns the events stamped at or after cutoff, oldest first. Events
// are added in timestamp order, so the walk stops at the first older one.
func (h *eventHistory) Since(cutoff time.Time) []ErrorEvent {
	first := len(h.events)
	for first > 0 && !h.at(first-1).Timestamp().Before(cutoff) {
		first--
	}
	if first == len(h.events) {
		return nil
	}
	result := make([]ErrorEvent, 0, len(h.events)-first)
	for i := first; i < len(h.events); i++ {
		result = append(result, h.at(i))
	}
	return result
}

func (h *eventHistory) Len() int {
	return len(h.events)
}

func (h *eventHistory) Reset() {
	clear(h.events)
	h.events = h.events[:0]
	h.writeIdx = 0
}
