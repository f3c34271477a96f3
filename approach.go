package signalflow

import (
	"fmt"
	"strings"
)

// Approach identifies one directional lane-group of the intersection
type Approach string

// Default compass approaches in clockwise order
const (
	North Approach = "north"
	East  Approach = "east"
	South Approach = "south"
	West  Approach = "west"
)

// DefaultApproaches is the clockwise order used when no approach set is configured
var DefaultApproaches = []Approach{North, East, South, West}

// Approaches is the fixed, cyclically ordered set of approaches of an intersection.
// It is immutable once constructed.
type Approaches struct {
	order []Approach
	index map[Approach]int
}

// NewApproaches creates an approach set from labels in cyclic order
func NewApproaches(labels ...Approach) (*Approaches, error) {
	if len(labels) == 0 {
		return nil, NewConfigurationError("Approaches", "at least one approach is required")
	}

	set := &Approaches{
		order: make([]Approach, 0, len(labels)),
		index: make(map[Approach]int, len(labels)),
	}

	for _, label := range labels {
		normalized := Approach(strings.TrimSpace(string(label)))
		if normalized == "" {
			return nil, NewConfigurationError("Approaches", "approach label cannot be empty")
		}
		if _, exists := set.index[normalized]; exists {
			return nil, NewConfigurationError("Approaches", fmt.Sprintf("duplicate approach '%s'", normalized))
		}
		set.index[normalized] = len(set.order)
		set.order = append(set.order, normalized)
	}

	return set, nil
}

// MustApproaches is like NewApproaches but panics on error
func MustApproaches(labels ...Approach) *Approaches {
	set, err := NewApproaches(labels...)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of approaches
func (a *Approaches) Len() int {
	return len(a.order)
}

// First returns the first approach in cyclic order
func (a *Approaches) First() Approach {
	return a.order[0]
}

// All returns a copy of the approaches in cyclic order
func (a *Approaches) All() []Approach {
	result := make([]Approach, len(a.order))
	copy(result, a.order)
	return result
}

// Contains reports whether the approach belongs to the set
func (a *Approaches) Contains(approach Approach) bool {
	_, ok := a.index[approach]
	return ok
}

// Index returns the position of the approach in cyclic order, or -1
func (a *Approaches) Index(approach Approach) int {
	if i, ok := a.index[approach]; ok {
		return i
	}
	return -1
}

// Next returns the cyclic successor of the approach
func (a *Approaches) Next(approach Approach) Approach {
	i, ok := a.index[approach]
	if !ok {
		return a.order[0]
	}
	return a.order[(i+1)%len(a.order)]
}

// Phase is the signal aspect shown to an approach
type Phase int

const (
	// PhaseRed stops the approach
	PhaseRed Phase = iota
	// PhaseYellow is the clearance interval
	PhaseYellow
	// PhaseGreen gives the approach right-of-way
	PhaseGreen
)

// String returns the lower-case phase name
func (p Phase) String() string {
	switch p {
	case PhaseRed:
		return "red"
	case PhaseYellow:
		return "yellow"
	case PhaseGreen:
		return "green"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// IsActive reports whether the phase grants or is clearing right-of-way
func (p Phase) IsActive() bool {
	return p == PhaseGreen || p == PhaseYellow
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	switch p {
	case PhaseRed, PhaseYellow, PhaseGreen:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("invalid phase %d", int(p))
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase parses a phase name
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return PhaseRed, nil
	case "yellow":
		return PhaseYellow, nil
	case "green":
		return PhaseGreen, nil
	}
	return PhaseRed, fmt.Errorf("unknown phase '%s'", s)
}
