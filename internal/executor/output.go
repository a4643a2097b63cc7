package executor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LineBuffer is an io.Writer that collects a stream as complete lines, in arrival
// order, each terminated by "\n". A trailing partial line is kept until Flush.
//
// It is safe for concurrent use, but each stream (stdout, stderr) should get its own
// buffer so their ordering stays independent.
type LineBuffer struct {
	mu      sync.Mutex
	partial []byte
	out     strings.Builder

	// OnLine, if set, is called for each completed line (without the terminator).
	OnLine func(line string)
}

// Write implements io.Writer. "\n", "\r\n" and a lone "\r" all end a line.
func (b *LineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexAny(b.partial, "\r\n")
		if i < 0 {
			break
		}
		if b.partial[i] == '\n' {
			b.emit(b.partial[:i])
			b.partial = b.partial[i+1:]
			continue
		}
		// A trailing '\r' may be the first half of "\r\n" split across writes.
		if i+1 == len(b.partial) {
			break
		}
		b.emit(b.partial[:i])
		if b.partial[i+1] == '\n' {
			b.partial = b.partial[i+2:]
		} else {
			b.partial = b.partial[i+1:]
		}
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (b *LineBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.partial) > 0 {
		b.emit(bytes.TrimSuffix(b.partial, []byte{'\r'}))
		b.partial = nil
	}
}

// String returns the completed lines collected so far.
func (b *LineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

func (b *LineBuffer) emit(raw []byte) {
	line := string(raw)
	b.out.WriteString(line)
	b.out.WriteByte('\n')
	if b.OnLine != nil {
		b.OnLine(line)
	}
}

// DebugLines returns an OnLine callback that logs each line of stream at debug
// level, or nil when logger would drop debug records anyway.
func DebugLines(ctx context.Context, logger *slog.Logger, stream string) func(string) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	return func(line string) {
		logger.DebugContext(ctx, "stage output",
			slog.String("stream", stream),
			slog.String("line", line),
		)
	}
}

// CombineOutput builds a stage transcript. stderr is appended after a newline
// separator only when the program failed; a successful program never surfaces stderr.
func CombineOutput(stdout, stderr string, exitCode int) string {
	if exitCode != 0 && stderr != "" {
		return stdout + "\n" + stderr
	}
	return stdout
}

// CompletedStage builds the result for a program that ran to exit.
func CompletedStage(stdout, stderr string, exitCode int, d time.Duration) StageResult {
	return StageResult{
		Succeeded: exitCode == 0,
		Output:    CombineOutput(stdout, stderr, exitCode),
		ExitCode:  exitCode,
		Duration:  d,
	}
}

// TimedOutStage builds the result for a program killed at its deadline.
// Partial output is deliberately dropped.
func TimedOutStage(d time.Duration) StageResult {
	return StageResult{
		Output:   MsgTimedOut,
		ExitCode: -1,
		TimedOut: true,
		Duration: d,
	}
}

// StartFailedStage builds the result for a program that could not be started.
func StartFailedStage(err error) StageResult {
	return StageResult{
		Output:      MsgStartFailedPrefix + err.Error(),
		ExitCode:    -1,
		StartFailed: true,
	}
}
