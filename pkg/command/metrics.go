package command

import "time"

// Metrics records per-command outcomes.
//
// Implementations must be safe for concurrent use. A nil Metrics disables
// collection.
type Metrics interface {
	// ObserveCommand records one finished command. err is nil on success;
	// expected reports whether a failure was a documented outcome.
	ObserveCommand(name string, duration time.Duration, err error, expected bool)
}
