package meow

import (
	"fmt"
	"sort"
)

// Sweep describes a parameter range expansion: a pattern with a sweep
// expands into one parameter dictionary per value in the range, crossed
// with every other swept variable.
type Sweep struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Jump  float64 `yaml:"jump"`
}

// Validate rejects a sweep with a zero jump, or a jump whose sign does not
// match the direction from start to stop — both would describe an infinite
// sweep.
func (s Sweep) Validate(hint string) error {
	if s.Jump == 0 {
		return fmt.Errorf("%s: sweep jump must not be zero (would be infinite)", hint)
	}
	direction := s.Stop - s.Start
	if s.Jump > 0 && !(s.Stop > s.Start) {
		return fmt.Errorf("%s: sweep has positive jump but stop <= start (would be infinite)", hint)
	}
	if s.Jump < 0 && !(s.Stop < s.Start) {
		return fmt.Errorf("%s: sweep has negative jump but stop >= start (would be infinite)", hint)
	}
	_ = direction
	return nil
}

// Values returns the ordered sequence of values this sweep produces,
// inclusive of both endpoints reachable by stepping from start by jump.
func (s Sweep) Values() []float64 {
	var values []float64
	if s.Jump > 0 {
		for v := s.Start; v <= s.Stop; v += s.Jump {
			values = append(values, v)
		}
	} else {
		for v := s.Start; v >= s.Stop; v += s.Jump {
			values = append(values, v)
		}
	}
	return values
}

// expandSweep applies a set of named sweeps to a base parameter map,
// returning the ordered cross product of parameter dictionaries. Variables
// are crossed in lexicographic order of their names for reproducibility.
// A pattern with no sweep returns a single-element slice containing a copy
// of base.
func expandSweep(base map[string]any, sweeps map[string]Sweep) []map[string]any {
	if len(sweeps) == 0 {
		return []map[string]any{cloneParams(base)}
	}

	names := make([]string, 0, len(sweeps))
	for name := range sweeps {
		names = append(names, name)
	}
	sort.Strings(names)

	dicts := []map[string]any{cloneParams(base)}
	for _, name := range names {
		values := sweeps[name].Values()
		next := make([]map[string]any, 0, len(dicts)*len(values))
		for _, d := range dicts {
			for _, v := range values {
				merged := cloneParams(d)
				merged[name] = v
				next = append(next, merged)
			}
		}
		dicts = next
	}
	return dicts
}

func cloneParams(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
