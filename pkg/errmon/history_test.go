package errmon

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contexts(events []ErrorEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Context()
	}
	return out
}

func TestEventHistory_EvictsOldestFirst(t *testing.T) {
	h := newEventHistory(3)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.Add(NewErrorEvent(nil, "", fmt.Sprintf("e%d", i), nil, base.Add(time.Duration(i)*time.Second)))
		assert.LessOrEqual(t, h.Len(), 3)
	}

	assert.Equal(t, []string{"e2", "e3", "e4"}, contexts(h.All()))
}

func TestEventHistory_PartiallyFilled(t *testing.T) {
	h := newEventHistory(10)
	h.Add(NewErrorEvent(nil, "", "a", nil, time.Now()))
	h.Add(NewErrorEvent(nil, "", "b", nil, time.Now()))
	assert.Equal(t, []string{"a", "b"}, contexts(h.All()))
}

func TestEventHistory_Since(t *testing.T) {
	h := newEventHistory(10)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Add(NewErrorEvent(nil, "", fmt.Sprintf("e%d", i), nil, base.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, []string{"e3", "e4"}, contexts(h.Since(base.Add(3*time.Minute))))
	assert.Empty(t, h.Since(base.Add(time.Hour)))
}

func TestEventHistory_SinceAcrossWrap(t *testing.T) {
	h := newEventHistory(4)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		h.Add(NewErrorEvent(nil, "", fmt.Sprintf("e%d", i), nil, base.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, []string{"e4", "e5", "e6"}, contexts(h.Since(base.Add(4*time.Minute))))
	assert.Equal(t, []string{"e3", "e4", "e5", "e6"}, contexts(h.Since(base)))
	assert.Equal(t, []string{"e6"}, contexts(h.Since(base.Add(6*time.Minute))))
	assert.Empty(t, h.Since(base.Add(7*time.Minute)))
}

func TestEventHistory_AllReturnsCopy(t *testing.T) {
	h := newEventHistory(2)
	h.Add(NewErrorEvent(nil, "", "a", nil, time.Now()))

	all := h.All()
	all[0] = NewErrorEvent(nil, "", "changed", nil, time.Now())
	assert.Equal(t, []string{"a"}, contexts(h.All()))
}

func TestEventHistory_Reset(t *testing.T) {
	h := newEventHistory(2)
	for i := 0; i < 3; i++ {
		h.Add(NewErrorEvent(nil, "", fmt.Sprintf("e%d", i), nil, time.Now()))
	}
	h.Reset()
	require.Equal(t, 0, h.Len())

	h.Add(NewErrorEvent(nil, "", "fresh", nil, time.Now()))
	assert.Equal(t, []string{"fresh"}, contexts(h.All()))
}
