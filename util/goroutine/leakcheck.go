package goroutine

import (
	"runtime"
	"testing"
	"time"
)

// Baseline is a goroutine count captured before background work starts
type Baseline struct {
	Count int
	Taken time.Time
}

// TakeBaseline captures the current goroutine count
func TakeBaseline() Baseline {
	return Baseline{Count: runtime.NumGoroutine(), Taken: time.Now()}
}

// Settled waits up to timeout for the goroutine count to drop back to the
// baseline and reports whether it did
func (b Baseline) Settled(timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if runtime.NumGoroutine() <= b.Count {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}

// AssertNoLeaks fails tb when goroutines started during the test are still
// running once every later cleanup has finished. Call it before opening
// engines or starting collectors so their cleanups run first.
func AssertNoLeaks(tb testing.TB) {
	tb.Helper()
	AssertNoLeaksWithin(tb, 5*time.Second)
}

// AssertNoLeaksWithin is AssertNoLeaks with a custom settle timeout
func AssertNoLeaksWithin(tb testing.TB, timeout time.Duration) {
	tb.Helper()
	base := TakeBaseline()

	tb.Cleanup(func() {
		if base.Settled(timeout, 50*time.Millisecond) {
			return
		}
		current := runtime.NumGoroutine()
		tb.Errorf("goroutine leak: %d running at start, %d after %v (leaked %d)",
			base.Count, current, time.Since(base.Taken).Round(time.Millisecond), current-base.Count)

		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		tb.Logf("Active goroutines:\n%s", buf[:n])
	})
}
