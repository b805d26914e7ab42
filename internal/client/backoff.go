package client

import (
	"fmt"
	"time"
)

// BackoffKind selects the delay schedule between retry attempts.
type BackoffKind int

const (
	// BackoffExponential waits min(unit*2^attempt, 10*unit).
	BackoffExponential BackoffKind = iota
	// BackoffLinear waits unit*(attempt+1).
	BackoffLinear
	// BackoffFixed always waits one unit.
	BackoffFixed
)

func (k BackoffKind) String() string {
	switch k {
	case BackoffExponential:
		return "exponential"
	case BackoffLinear:
		return "linear"
	case BackoffFixed:
		return "fixed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func ParseBackoffKind(name string) (BackoffKind, error) {
	switch name {
	case "exponential":
		return BackoffExponential, nil
	case "linear":
		return BackoffLinear, nil
	case "fixed":
		return BackoffFixed, nil
	default:
		return 0, fmt.Errorf("client: unknown backoff kind %q", name)
	}
}

// policyBackOff implements backoff.BackOff for the three schedules.
// The base unit is one second in production; tests shrink it.
type policyBackOff struct {
	kind    BackoffKind
	unit    time.Duration
	attempt int
}

func newPolicyBackOff(kind BackoffKind, unit time.Duration) *policyBackOff {
	return &policyBackOff{kind: kind, unit: unit}
}

func (b *policyBackOff) NextBackOff() time.Duration {
	attempt := b.attempt
	b.attempt++
	switch b.kind {
	case BackoffLinear:
		return time.Duration(attempt+1) * b.unit
	case BackoffFixed:
		return b.unit
	default:
		if attempt > 4 {
			return 10 * b.unit
		}
		d := b.unit << uint(attempt)
		if max := 10 * b.unit; d > max {
			d = max
		}
		return d
	}
}

func (b *policyBackOff) Reset() { b.attempt = 0 }
