// Package config loads sizing problems from YAML.
//
// A problem names the network to size, which pipes are sized from which
// catalog series, the minimum pressures to hold and the catalog itself:
//
//	name: village
//	options:
//	  algorithm: NSGA2
//	  polish: true
//	network: {...}
//	pipes:
//	  - {id: P1, series: PE100}
//	pressures:
//	  - {node: J4, min: 20}
//	catalog:
//	  - {series: PE100, diameter: 90, roughness: 150, price: 12.5}
package config

import (
	"fmt"
	"time"

	"github.com/cwbudde/pipesizer/internal/catalog"
	"github.com/cwbudde/pipesizer/internal/hydraulic"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/search"
)

// Problem is a complete sizing problem
type Problem struct {
	Name      string            `yaml:"name" json:"name" validate:"required"`
	Options   Options           `yaml:"options" json:"options"`
	Network   hydraulic.Network `yaml:"network" json:"network"`
	Pipes     []PipeSpec        `yaml:"pipes" json:"pipes" validate:"required,min=1,dive"`
	Pressures []PressureSpec    `yaml:"pressures" json:"pressures" validate:"required,min=1,dive"`
	Catalog   []CatalogRow      `yaml:"catalog" json:"catalog" validate:"required,min=1,dive"`
}

// Options selects and tunes the search
type Options struct {
	Algorithm       string            `yaml:"algorithm" json:"algorithm"`
	Polish          bool              `yaml:"polish" json:"polish"`
	PolishMaxChecks int               `yaml:"polish_max_checks" json:"polishMaxChecks" validate:"gte=0"`
	StrictCatalog   bool              `yaml:"strict_catalog" json:"strictCatalog"`
	Seed            int64             `yaml:"seed" json:"seed"`
	Evolution       EvolutionOptions  `yaml:"evolution" json:"evolution"`
	Stochastic      StochasticOptions `yaml:"stochastic" json:"stochastic"`
}

// EvolutionOptions tunes the evolutionary search. Zero values take the
// defaults.
type EvolutionOptions struct {
	GenerationsPerTrial int    `yaml:"generations_per_trial" json:"generationsPerTrial" validate:"gte=0"`
	PopulationSize      int    `yaml:"population_size" json:"populationSize" validate:"omitempty,min=4"`
	MaxTrials           int    `yaml:"max_trials" json:"maxTrials" validate:"gte=0"`
	MaxStagnation       int    `yaml:"max_stagnation" json:"maxStagnation" validate:"gte=0"`
	MaxTime             string `yaml:"max_time" json:"maxTime"` // e.g., "600s"
}

// StochasticOptions tunes the continuous relaxations
type StochasticOptions struct {
	Iterations     int `yaml:"iterations" json:"iterations" validate:"gte=0"`
	PopulationSize int `yaml:"population_size" json:"populationSize" validate:"gte=0"`
}

// PipeSpec marks a network pipe as sized from a catalog series
type PipeSpec struct {
	ID     string `yaml:"id" json:"id" validate:"required"`
	Series string `yaml:"series" json:"series" validate:"required"`
}

// PressureSpec is a minimum pressure at a junction
type PressureSpec struct {
	Node string  `yaml:"node" json:"node" validate:"required"`
	Min  float64 `yaml:"min" json:"min"`
}

// CatalogRow is one catalog entry of a series
type CatalogRow struct {
	Series    string  `yaml:"series" json:"series" validate:"required"`
	Diameter  float64 `yaml:"diameter" json:"diameter" validate:"gt=0"`
	Roughness float64 `yaml:"roughness" json:"roughness" validate:"gt=0"`
	Price     float64 `yaml:"price" json:"price" validate:"gte=0"`
}

// GetAlgorithm parses the configured algorithm, defaulting to greedy ascent
func (o Options) GetAlgorithm() (search.Algorithm, error) {
	if o.Algorithm == "" {
		return search.GreedyAscent, nil
	}
	return search.ParseAlgorithm(o.Algorithm)
}

// GetMaxTime parses the time ceiling; empty means the default
func (e EvolutionOptions) GetMaxTime() (time.Duration, error) {
	if e.MaxTime == "" {
		return 0, nil
	}
	return time.ParseDuration(e.MaxTime)
}

// SearchConfig converts the options into a strategy configuration
func (o Options) SearchConfig() (search.Config, error) {
	alg, err := o.GetAlgorithm()
	if err != nil {
		return search.Config{}, err
	}
	maxTime, err := o.Evolution.GetMaxTime()
	if err != nil {
		return search.Config{}, fmt.Errorf("invalid max_time %s: %w", o.Evolution.MaxTime, err)
	}
	return search.Config{
		Algorithm: alg,
		Seed:      o.Seed,
		Evolution: search.EvolutionConfig{
			GenerationsPerTrial: o.Evolution.GenerationsPerTrial,
			PopulationSize:      o.Evolution.PopulationSize,
			MaxTrials:           o.Evolution.MaxTrials,
			MaxStagnation:       o.Evolution.MaxStagnation,
			MaxTime:             maxTime,
			Seed:                o.Seed,
		},
		Stochastic: search.StochasticConfig{
			Iterations:     o.Stochastic.Iterations,
			PopulationSize: o.Stochastic.PopulationSize,
		},
	}, nil
}

// BuildCatalog groups the rows by series, sorted by diameter
func (p *Problem) BuildCatalog() (catalog.Catalog, error) {
	rows := make(map[string][]catalog.Entry)
	for _, r := range p.Catalog {
		rows[r.Series] = append(rows[r.Series], catalog.Entry{
			Diameter:  r.Diameter,
			Roughness: r.Roughness,
			Price:     r.Price,
		})
	}
	return catalog.New(rows)
}

// Components returns the sized pipes in declaration order, with lengths
// taken from the network
func (p *Problem) Components() ([]network.Component, error) {
	out := make([]network.Component, 0, len(p.Pipes))
	for _, spec := range p.Pipes {
		pipe, ok := p.Network.PipeByID(spec.ID)
		if !ok {
			return nil, fmt.Errorf("pipe %s does not exist in the network", spec.ID)
		}
		out = append(out, network.Component{ID: spec.ID, Length: pipe.Length, Series: spec.Series})
	}
	return out, nil
}

// Points returns the constraint points in declaration order
func (p *Problem) Points() []network.ConstraintPoint {
	out := make([]network.ConstraintPoint, len(p.Pressures))
	for i, spec := range p.Pressures {
		out[i] = network.ConstraintPoint{ID: spec.Node, MinPressure: spec.Min}
	}
	return out
}
