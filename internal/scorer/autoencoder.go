package scorer

import (
	"context"
	"fmt"
	"math"
	"os"

	"insider-risk/internal/models"

	"gopkg.in/yaml.v3"
)

type Layer struct {
	Weights    [][]float64 `yaml:"weights"` // out × in
	Bias       []float64   `yaml:"bias"`
	Activation string      `yaml:"activation"`
}

// DenseAutoencoder runs the forward pass of an exported, already trained
// feed-forward autoencoder. Weights are read from YAML.
type DenseAutoencoder struct {
	Name   string  `yaml:"name"`
	Layers []Layer `yaml:"layers"`
}

func LoadDenseAutoencoder(path string) (*DenseAutoencoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights %s: %w", path, err)
	}
	return ParseDenseAutoencoder(data)
}

func ParseDenseAutoencoder(data []byte) (*DenseAutoencoder, error) {
	var ae DenseAutoencoder
	if err := yaml.Unmarshal(data, &ae); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	if err := ae.validate(); err != nil {
		return nil, err
	}
	return &ae, nil
}

func (a *DenseAutoencoder) validate() error {
	if len(a.Layers) == 0 {
		return fmt.Errorf("autoencoder %q has no layers", a.Name)
	}

	in := models.FeatureCount
	for i, l := range a.Layers {
		if len(l.Weights) == 0 {
			return fmt.Errorf("layer %d has no weights", i)
		}
		if len(l.Bias) != len(l.Weights) {
			return fmt.Errorf("layer %d: %d biases for %d units", i, len(l.Bias), len(l.Weights))
		}
		for u, w := range l.Weights {
			if len(w) != in {
				return fmt.Errorf("layer %d unit %d: %d inputs, want %d", i, u, len(w), in)
			}
		}
		if _, ok := activations[l.Activation]; !ok {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		in = len(l.Weights)
	}

	if in != models.FeatureCount {
		return fmt.Errorf("autoencoder output has %d units, want %d", in, models.FeatureCount)
	}
	return nil
}

var activations = map[string]func(float64) float64{
	"":        func(x float64) float64 { return x },
	"linear":  func(x float64) float64 { return x },
	"relu":    func(x float64) float64 { return math.Max(0, x) },
	"sigmoid": func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	"tanh":    math.Tanh,
}

func (a *DenseAutoencoder) Reconstruct(ctx context.Context, batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != models.FeatureCount {
			return nil, fmt.Errorf("row %d has %d features", i, len(row))
		}
		out[i] = a.forward(row)
	}
	return out, nil
}

func (a *DenseAutoencoder) forward(x []float64) []float64 {
	for _, l := range a.Layers {
		act := activations[l.Activation]
		next := make([]float64, len(l.Weights))
		for u, w := range l.Weights {
			sum := l.Bias[u]
			for j, v := range x {
				sum += w[j] * v
			}
			next[u] = act(sum)
		}
		x = next
	}
	return x
}
