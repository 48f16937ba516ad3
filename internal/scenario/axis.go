package scenario

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Axis is one grid axis. In YAML it is a sequence whose items are either
// coordinates or linspace segments ({start, stop, n}); segments expand in
// place and a segment value not above the previous coordinate is dropped,
// so adjacent segments can share an endpoint.
type Axis []float64

// Segment is a uniformly spaced run of n coordinates from Start to Stop.
type Segment struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	N     int     `yaml:"n"`
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// UnmarshalYAML accepts a sequence of coordinates and segments, or a single
// segment mapping.
func (a *Axis) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var seg Segment
		if err := node.Decode(&seg); err != nil {
			return err
		}
		vals, err := seg.values(node)
		if err != nil {
			return err
		}
		*a = vals
		return nil

	case yaml.SequenceNode:
		var out Axis
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				var v float64
				if err := item.Decode(&v); err != nil {
					return fmt.Errorf("line %d: axis coordinate: %w", item.Line, err)
				}
				out = append(out, v)
			case yaml.MappingNode:
				var seg Segment
				if err := item.Decode(&seg); err != nil {
					return err
				}
				vals, err := seg.values(item)
				if err != nil {
					return err
				}
				for _, v := range vals {
					if n := len(out); n > 0 && v <= out[n-1] {
						continue
					}
					out = append(out, v)
				}
			default:
				return fmt.Errorf("line %d: axis item must be a number or a segment", item.Line)
			}
		}
		*a = out
		return nil

	default:
		return fmt.Errorf("line %d: axis must be a sequence or a segment", node.Line)
	}
}

func (s Segment) values(node *yaml.Node) ([]float64, error) {
	if s.N < 1 {
		return nil, fmt.Errorf("line %d: segment needs n >= 1, got %d", node.Line, s.N)
	}
	return Linspace(s.Start, s.Stop, s.N), nil
}
