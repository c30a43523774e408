package toolkit

import (
	"encoding/json"
	"fmt"
)

// Args holds validated arguments with defaults applied.
type Args struct {
	values map[string]any
}

func NewArgs(values map[string]any) Args {
	return Args{values: values}
}

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Int(name string) int {
	f, _ := asFloat(a.values[name])
	return int(f)
}

func (a Args) Float(name string) float64 {
	f, _ := asFloat(a.values[name])
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Strings returns the string elements of an array argument, skipping others.
func (a Args) Strings(name string) []string {
	switch v := a.values[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func (a Args) Ints(name string) []int {
	raw, _ := a.values[name].([]any)
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		if f, ok := asFloat(item); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// Decode converts an argument into target through its JSON form.
func (a Args) Decode(name string, target any) error {
	v, ok := a.values[name]
	if !ok {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
