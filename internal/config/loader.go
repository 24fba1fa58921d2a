package config

import (
	"fmt"
	"os"
)

// LoadProblem loads and parses a problem file
func LoadProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file %s: %w", path, err)
	}
	problem, err := ParseProblemYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse problem file %s: %w", path, err)
	}
	return problem, nil
}

// validateProblem checks struct tags first, then cross references
func validateProblem(p *Problem) error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}

	if _, err := p.Options.GetAlgorithm(); err != nil {
		return invalid("options.algorithm", "%v", err)
	}
	if _, err := p.Options.Evolution.GetMaxTime(); err != nil {
		return invalid("options.evolution.max_time", "invalid duration %s: %v", p.Options.Evolution.MaxTime, err)
	}

	nodes := map[string]bool{p.Network.Source.ID: true}
	for _, j := range p.Network.Junctions {
		if nodes[j.ID] {
			return invalid("network.junctions", "duplicate node id: %s", j.ID)
		}
		nodes[j.ID] = true
	}
	pipeIDs := make(map[string]bool, len(p.Network.Pipes))
	for _, pipe := range p.Network.Pipes {
		if pipeIDs[pipe.ID] {
			return invalid("network.pipes", "duplicate pipe id: %s", pipe.ID)
		}
		pipeIDs[pipe.ID] = true
		if !nodes[pipe.From] {
			return invalid("network.pipes", "pipe %s: 'from' node %s does not exist", pipe.ID, pipe.From)
		}
		if !nodes[pipe.To] {
			return invalid("network.pipes", "pipe %s: 'to' node %s does not exist", pipe.ID, pipe.To)
		}
	}

	series := make(map[string]bool)
	for _, row := range p.Catalog {
		series[row.Series] = true
	}

	sized := make(map[string]bool, len(p.Pipes))
	for _, spec := range p.Pipes {
		if sized[spec.ID] {
			return invalid("pipes", "pipe %s is listed twice", spec.ID)
		}
		sized[spec.ID] = true
		if !pipeIDs[spec.ID] {
			return invalid("pipes", "pipe %s does not exist in the network", spec.ID)
		}
		if !series[spec.Series] {
			return invalid("pipes", "pipe %s references unknown series %s", spec.ID, spec.Series)
		}
	}

	// Unsized pipes keep their own diameter and roughness
	for _, pipe := range p.Network.Pipes {
		if !sized[pipe.ID] && (pipe.Diameter <= 0 || pipe.Roughness <= 0) {
			return invalid("network.pipes", "pipe %s is not sized and has no diameter/roughness", pipe.ID)
		}
	}

	checked := make(map[string]bool, len(p.Pressures))
	for _, pr := range p.Pressures {
		if checked[pr.Node] {
			return invalid("pressures", "node %s is listed twice", pr.Node)
		}
		checked[pr.Node] = true
		if !p.Network.HasJunction(pr.Node) {
			return invalid("pressures", "node %s is not a junction of the network", pr.Node)
		}
	}

	cat, err := p.BuildCatalog()
	if err != nil {
		return invalid("catalog", "%v", err)
	}
	if p.Options.StrictCatalog {
		if err := cat.CheckMonotonicPrice(); err != nil {
			return invalid("catalog", "price must not decrease with diameter: %v", err)
		}
	}

	return nil
}
