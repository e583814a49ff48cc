package delivery

import "time"

// Schedule maps an attempt number (1-based) to the delay that precedes it.
// Attempt 1 always runs immediately.
type Schedule func(attempt int) time.Duration

// DefaultSchedule yields 0, 2s, 8s, 32s, and so on. Each retry waits four
// times longer than the one before it.
func DefaultSchedule(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := 2 * time.Second
	for i := 2; i < attempt; i++ {
		delay *= 4
	}
	return delay
}
