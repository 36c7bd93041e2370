package domain

import "time"

const (
	DefaultPenaltyWindow    = 182 * 24 * time.Hour
	DefaultMaxCancellations = 5
)

// CancellationPolicy gates booking on the number of cancelled turns dated
// on or after today minus Window.
type CancellationPolicy struct {
	Window time.Duration
	Limit  int
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{Window: DefaultPenaltyWindow, Limit: DefaultMaxCancellations}
}

// Since returns the first date counted by the window.
func (p CancellationPolicy) Since(today time.Time) time.Time {
	days := int(p.Window / (24 * time.Hour))
	return DateOf(today).AddDate(0, 0, -days)
}

// Eligible reports whether a person with the given number of cancellations in
// the window may book. Reaching Limit makes the person ineligible.
func (p CancellationPolicy) Eligible(cancelled int) bool {
	return cancelled < p.Limit
}
