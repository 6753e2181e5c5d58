// Package progress implements the engine's progress contract: throttled
// OperationProgress events computed from a monotonically increasing byte
// count, plus a console consumer built on a progress bar.
package progress

import (
	"time"

	"github.com/chronos-imaging/chronos/model"
)

// MinInterval and MinBytesDelta are the two throttle gates. An event is
// emitted only once both have been satisfied since the last emission —
// "whichever is slower" — so a fast transfer is paced by time and a slow
// one is paced by bytes.
const (
	MinInterval   = 500 * time.Millisecond
	MinBytesDelta = 10 << 20
)

// Emitter tracks elapsed time and cumulative bytes to decide when the next
// OperationProgress should be produced, and computes bytes_per_second as a
// cumulative average and time_remaining from the current rate.
type Emitter struct {
	totalBytes uint64
	startTime  time.Time
	now        func() time.Time

	lastEmit      time.Time
	lastEmitBytes uint64
	everEmitted   bool
}

// NewEmitter creates an Emitter for a transfer of totalBytes, starting its
// elapsed-time clock immediately.
func NewEmitter(totalBytes uint64) *Emitter {
	return newEmitterWithClock(totalBytes, time.Now)
}

func newEmitterWithClock(totalBytes uint64, now func() time.Time) *Emitter {
	start := now()
	return &Emitter{totalBytes: totalBytes, startTime: start, now: now, lastEmit: start}
}

// ShouldEmit reports whether an event should be produced for
// bytesProcessed, given everything emitted so far. done forces emission
// regardless of throttle, matching the requirement that the terminal event
// is never dropped.
func (e *Emitter) ShouldEmit(bytesProcessed uint64, done bool) bool {
	if done || !e.everEmitted {
		return true
	}
	elapsed := e.now().Sub(e.lastEmit)
	bytesDelta := bytesProcessed - e.lastEmitBytes
	return elapsed >= MinInterval && bytesDelta >= MinBytesDelta
}

// Emit produces an OperationProgress for bytesProcessed in the given
// phase, recording it as the last emission for future throttle decisions.
func (e *Emitter) Emit(bytesProcessed uint64, phase model.Phase, statusMessage string) model.OperationProgress {
	now := e.now()
	e.lastEmit = now
	e.lastEmitBytes = bytesProcessed
	e.everEmitted = true

	elapsedSeconds := now.Sub(e.startTime).Seconds()
	var rate float64
	if elapsedSeconds > 0 {
		rate = float64(bytesProcessed) / elapsedSeconds
	}

	var percent float64
	if e.totalBytes > 0 {
		percent = 100 * float64(bytesProcessed) / float64(e.totalBytes)
		if percent > 100 {
			percent = 100
		}
	}

	var remaining *time.Duration
	if rate > 0 && bytesProcessed <= e.totalBytes {
		d := time.Duration(float64(e.totalBytes-bytesProcessed) / rate * float64(time.Second))
		remaining = &d
	}

	return model.OperationProgress{
		Percent:        percent,
		BytesProcessed: bytesProcessed,
		TotalBytes:     e.totalBytes,
		BytesPerSecond: rate,
		TimeRemaining:  remaining,
		Phase:          phase,
		StatusMessage:  statusMessage,
	}
}
