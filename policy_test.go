package framesock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailurePolicy(t *testing.T) {
	tests := []struct {
		name           string
		maxFailures    int
		maxConsecutive int
		// outcomes is a sequence of frames: true for valid, false for malformed.
		outcomes      []bool
		wantExhausted bool
		wantTotal     int
		wantInARow    int
	}{
		{
			name:           "all valid",
			maxFailures:    3,
			maxConsecutive: 2,
			outcomes:       []bool{true, true, true},
		},
		{
			name:           "consecutive budget",
			maxFailures:    10,
			maxConsecutive: 3,
			outcomes:       []bool{false, false, false},
			wantExhausted:  true,
			wantTotal:      3,
			wantInARow:     3,
		},
		{
			name:           "valid frame resets streak",
			maxFailures:    10,
			maxConsecutive: 3,
			outcomes:       []bool{false, false, true, false, false},
			wantTotal:      4,
			wantInARow:     2,
		},
		{
			name:           "total budget",
			maxFailures:    3,
			maxConsecutive: 2,
			outcomes:       []bool{false, true, false, true, false},
			wantExhausted:  true,
			wantTotal:      3,
			wantInARow:     1,
		},
		{
			name:           "single failure allowed",
			maxFailures:    1,
			maxConsecutive: 5,
			outcomes:       []bool{true, false},
			wantExhausted:  true,
			wantTotal:      1,
			wantInARow:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFailurePolicy(tt.maxFailures, tt.maxConsecutive)

			var exhausted bool
			for i, ok := range tt.outcomes {
				if exhausted {
					t.Fatalf("budget exhausted before frame %d", i)
				}
				if ok {
					p.success()
				} else {
					exhausted = p.failure()
				}
			}

			assert.Equal(t, tt.wantExhausted, exhausted)
			assert.Equal(t, tt.wantExhausted, p.exhausted())
			assert.Equal(t, tt.wantTotal, p.failures)
			assert.Equal(t, tt.wantInARow, p.consecutive)
			assert.LessOrEqual(t, p.consecutive, p.failures)
		})
	}
}
