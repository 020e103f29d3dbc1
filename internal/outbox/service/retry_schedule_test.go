package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialRetrySchedule_Delay(t *testing.T) {
	tests := []struct {
		name     string
		schedule *ExponentialRetrySchedule
		attempt  int
		want     time.Duration
	}{
		{"zero initial retries next tick", NewExponentialRetrySchedule(0, time.Minute), 3, 0},
		{"first attempt", NewExponentialRetrySchedule(time.Second, time.Minute), 1, time.Second},
		{"second attempt doubles", NewExponentialRetrySchedule(time.Second, time.Minute), 2, 2 * time.Second},
		{"third attempt doubles again", NewExponentialRetrySchedule(time.Second, time.Minute), 3, 4 * time.Second},
		{"capped at max interval", NewExponentialRetrySchedule(time.Second, 5*time.Second), 10, 5 * time.Second},
		{"max below initial", NewExponentialRetrySchedule(10*time.Second, time.Second), 2, 10 * time.Second},
		{"attempt zero", NewExponentialRetrySchedule(time.Second, time.Minute), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.schedule.Delay(tt.attempt))
		})
	}
}
