package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// Recover recovers from panics in goroutines and logs them
// If logger is nil, falls back to stderr to ensure panic is recorded
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		LogPanic(name, r, logger)
	}
}

// LogPanic records a recovered panic value with the current stack. Callers
// that must re-raise the panic after cleanup use it from their own deferred
// recover.
func LogPanic(name string, r any, logger *zap.SugaredLogger) {
	stack := Stack()
	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", stack)
		return
	}
	// Fallback to stderr when logger is nil
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, stack)
}

// Stack returns the calling goroutine's stack, truncated to StackTraceBufferSize
func Stack() string {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
