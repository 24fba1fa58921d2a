package config

import (
	"time"

	"github.com/cwbudde/pipesizer/internal/search"
)

// Overrides replaces problem options from the command line or a job
// request. Nil and empty fields keep the problem's own value.
type Overrides struct {
	Algorithm string `json:"algorithm,omitempty"`
	Polish    *bool  `json:"polish,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
	MaxTime   string `json:"maxTime,omitempty"`
}

// Apply writes the overrides into p.Options
func (o Overrides) Apply(p *Problem) error {
	if o.Algorithm != "" {
		if _, err := search.ParseAlgorithm(o.Algorithm); err != nil {
			return invalid("algorithm", "%v", err)
		}
		p.Options.Algorithm = o.Algorithm
	}
	if o.MaxTime != "" {
		if d, err := time.ParseDuration(o.MaxTime); err != nil || d <= 0 {
			return invalid("max_time", "must be a positive duration, got %q", o.MaxTime)
		}
		p.Options.Evolution.MaxTime = o.MaxTime
	}
	if o.Polish != nil {
		p.Options.Polish = *o.Polish
	}
	if o.Seed != nil {
		p.Options.Seed = *o.Seed
	}
	return nil
}
