// Package hydraulic evaluates pressures in branched (tree) pipe networks fed
// by a single fixed-head source. It is the reference oracle behind the CLI
// and the job service; looped networks need an external simulator.
//
// Units: lengths, elevations and heads in metres, diameters in millimetres,
// demands in litres per second, roughness as a Hazen-Williams C factor.
package hydraulic

// Source is the fixed-head node every junction is fed from
type Source struct {
	ID   string  `yaml:"id" json:"id" validate:"required"`
	Head float64 `yaml:"head" json:"head"`
}

// Junction is a demand node
type Junction struct {
	ID        string  `yaml:"id" json:"id" validate:"required"`
	Elevation float64 `yaml:"elevation" json:"elevation"`
	Demand    float64 `yaml:"demand" json:"demand" validate:"gte=0"`
}

// Pipe links two nodes. Diameter and roughness of sized pipes are replaced
// on every Apply.
type Pipe struct {
	ID        string  `yaml:"id" json:"id" validate:"required"`
	From      string  `yaml:"from" json:"from" validate:"required"`
	To        string  `yaml:"to" json:"to" validate:"required"`
	Length    float64 `yaml:"length" json:"length" validate:"gt=0"`
	Diameter  float64 `yaml:"diameter,omitempty" json:"diameter,omitempty" validate:"gte=0"`
	Roughness float64 `yaml:"roughness,omitempty" json:"roughness,omitempty" validate:"gte=0"`
}

// Network describes the topology and the simulated horizon. Each pattern
// entry is one time step whose demands are the base demands times the
// multiplier.
type Network struct {
	Source    Source     `yaml:"source" json:"source"`
	Junctions []Junction `yaml:"junctions" json:"junctions" validate:"required,min=1,dive"`
	Pipes     []Pipe     `yaml:"pipes" json:"pipes" validate:"required,min=1,dive"`
	Pattern   []float64  `yaml:"pattern,omitempty" json:"pattern,omitempty" validate:"omitempty,dive,gte=0"`
}

// Steps returns the demand multipliers, defaulting to a single unit step
func (n Network) Steps() []float64 {
	if len(n.Pattern) == 0 {
		return []float64{1}
	}
	return n.Pattern
}

// PipeByID returns the pipe with the given ID
func (n Network) PipeByID(id string) (Pipe, bool) {
	for _, p := range n.Pipes {
		if p.ID == id {
			return p, true
		}
	}
	return Pipe{}, false
}

// HasJunction reports whether id names a junction
func (n Network) HasJunction(id string) bool {
	for _, j := range n.Junctions {
		if j.ID == id {
			return true
		}
	}
	return false
}
