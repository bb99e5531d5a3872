// Package retry computes the pause between successive retries of a node.
package retry

import (
	"math/rand/v2"
	"time"
)

// Policy defines how the pause grows between retries.
type Policy struct {
	// InitialDelay is the pause before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the pause. Zero means no cap.
	MaxDelay time.Duration
	// Multiplier is the factor by which the pause grows per retry.
	Multiplier float64
	// Jitter spreads the pause by up to +/-20% so polling bots don't line up.
	Jitter bool
}

// Delay returns the pause before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialDelay <= 0 {
		return 0
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
			break
		}
	}

	if p.Jitter {
		delay += delay * (rand.Float64()*0.4 - 0.2)
	}

	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
