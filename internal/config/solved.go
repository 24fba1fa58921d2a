package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/pipesizer/internal/hydraulic"
	"gopkg.in/yaml.v3"
)

// Sizing is the chosen size of one pipe
type Sizing struct {
	ID        string
	Diameter  float64
	Roughness float64
}

// SolvedNetwork returns a copy of the problem network with the chosen sizes
// written into its pipes
func SolvedNetwork(p *Problem, sizes []Sizing) (hydraulic.Network, error) {
	net := p.Network
	net.Junctions = append([]hydraulic.Junction(nil), p.Network.Junctions...)
	net.Pipes = append([]hydraulic.Pipe(nil), p.Network.Pipes...)
	net.Pattern = append([]float64(nil), p.Network.Pattern...)

	index := make(map[string]int, len(net.Pipes))
	for i, pipe := range net.Pipes {
		index[pipe.ID] = i
	}
	for _, s := range sizes {
		i, ok := index[s.ID]
		if !ok {
			return hydraulic.Network{}, fmt.Errorf("pipe %s does not exist in the network", s.ID)
		}
		net.Pipes[i].Diameter = s.Diameter
		net.Pipes[i].Roughness = s.Roughness
	}
	return net, nil
}

// SolvedFileName is <base>_Solved_<ALG>[+Polish].yaml
func SolvedFileName(base, algorithm string, polished bool) string {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := base + "_Solved_" + algorithm
	if polished {
		name += "+Polish"
	}
	return name + ".yaml"
}

// WriteSolved marshals the solved problem (network with sizes applied) next
// to the problem file and returns the path written. The file is written to a
// temp file first and renamed into place.
func WriteSolved(p *Problem, sizes []Sizing, problemPath, algorithm string, polished bool) (string, error) {
	net, err := SolvedNetwork(p, sizes)
	if err != nil {
		return "", err
	}
	solved := *p
	solved.Network = net

	data, err := yaml.Marshal(&solved)
	if err != nil {
		return "", fmt.Errorf("failed to marshal solved network: %w", err)
	}

	path := filepath.Join(filepath.Dir(problemPath), SolvedFileName(filepath.Base(problemPath), algorithm, polished))
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename %s: %w", filepath.Base(tempPath), err)
	}
	return path, nil
}
