// Package platlog is the simulator's structured-logging seam: a thin
// wrapper around github.com/rs/zerolog so every package logs through one
// configured logger rather than constructing its own. Teacher had no
// logging package of its own (robo/sim.go and engine/gameloop.go used bare
// fmt.Printf debug lines); platlog is the idiomatic replacement a real
// simulator needs for diagnosing invariant violations, maneuver aborts, and
// solver timeouts without gating every site on an if-verbose check.
package platlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the run-wide structured logger handle.
type Logger struct {
	zerolog.Logger
}

// New returns a Logger writing human-readable console output to w (typically
// os.Stderr).
func New(w io.Writer) Logger {
	return Logger{zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()}
}

// Default is a convenience Logger writing to os.Stderr, used by callers
// (tests, small tools) that don't wire their own.
var Default = New(os.Stderr)

// ManeuverAbort logs a recoverable maneuver-abort event (spec.md §7).
func (l Logger) ManeuverAbort(vehicleID int, reason string) {
	l.Warn().Int("vehicle_id", vehicleID).Str("reason", reason).Msg("maneuver aborted")
}

// DroppedInsertion logs a recoverable spawn-insertion failure after the
// retry limit is exhausted (spec.md §7).
func (l Logger) DroppedInsertion(retries int) {
	l.Warn().Int("retries", retries).Msg("dropped insertion: no safe gap")
}

// SolverTimeout logs a recoverable solver-timeout fallback (spec.md §7).
func (l Logger) SolverTimeout() {
	l.Warn().Msg("solver timed out, falling back to greedy")
}

// Collision logs a detected collision under the warn/teleport policies
// (spec.md §4.4, §7).
func (l Logger) Collision(frontID, backID int, policy string) {
	l.Warn().Int("front_id", frontID).Int("back_id", backID).Str("policy", policy).Msg("collision detected")
}

// Invariant logs a fatal invariant violation just before the run aborts
// (spec.md §7, exit 2).
func (l Logger) Invariant(detail string) {
	l.Error().Str("detail", detail).Msg("invariant violation")
}
