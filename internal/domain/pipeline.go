package domain

import "fmt"

// Property names the pipeline engine reads and writes on a record.
const (
	PropStage       = "stage"
	PropProbability = "probability"
)

// StageType classifies a pipeline stage as in-progress or terminal.
type StageType string

const (
	StageOpen StageType = "open"
	StageWon  StageType = "won"
	StageLost StageType = "lost"
)

// Stage is one step of a pipeline. Name identifies the stage within its
// pipeline and is the value stored in the record's stage property.
type Stage struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	Label          string    `json:"label"`
	Position       int       `json:"position"`
	Probability    float64   `json:"probability"`
	Type           StageType `json:"type"`
	RequiredFields []string  `json:"requiredFields,omitempty"`
	TargetDays     int       `json:"targetDays,omitempty"`
	MaxDays        int       `json:"maxDays,omitempty"`
}

// Terminal reports whether the stage ends the pipeline (won or lost).
func (s *Stage) Terminal() bool {
	return s.Type == StageWon || s.Type == StageLost
}

// Pipeline is an ordered state machine for records of one object type.
// EnforceSkipGates controls whether a transition that skips over intermediate
// stages must also satisfy the skipped stages' required fields; when false
// only the target stage gates apply.
type Pipeline struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Label            string  `json:"label"`
	ObjectType       string  `json:"objectType"`
	EnforceSkipGates bool    `json:"enforceSkipGates"`
	Stages           []Stage `json:"stages"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

// StageByName returns the stage with the given name, or nil.
func (p *Pipeline) StageByName(name string) *Stage {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i]
		}
	}
	return nil
}

// FirstOpenStage returns the lowest-position open stage, or nil if the
// pipeline has none.
func (p *Pipeline) FirstOpenStage() *Stage {
	for i := range p.Stages {
		if p.Stages[i].Type == StageOpen {
			return &p.Stages[i]
		}
	}
	return nil
}

// StagesBetween returns the open stages strictly between from and to in
// position order. Used for skip-gate enforcement on forward transitions.
func (p *Pipeline) StagesBetween(from, to *Stage) []*Stage {
	var out []*Stage
	for i := range p.Stages {
		s := &p.Stages[i]
		if s.Position > from.Position && s.Position < to.Position && s.Type == StageOpen {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the pipeline's structural invariants: at least one stage,
// unique stage names, strictly increasing positions, probabilities within
// 0-100, exactly one won stage at probability 100, and every lost stage at
// probability 0. Stages must already be sorted by position.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return &ValidationError{Message: "pipeline name is required"}
	}
	if p.ObjectType == "" {
		return &ValidationError{Message: "pipeline object type is required"}
	}
	if len(p.Stages) == 0 {
		return &ValidationError{Message: "pipeline must have at least one stage"}
	}
	names := make(map[string]bool, len(p.Stages))
	won := 0
	for i := range p.Stages {
		s := &p.Stages[i]
		if s.Name == "" {
			return &ValidationError{Message: fmt.Sprintf("stage at position %d has no name", s.Position)}
		}
		if names[s.Name] {
			return &ValidationError{Message: fmt.Sprintf("duplicate stage name %q", s.Name)}
		}
		names[s.Name] = true
		if i > 0 && s.Position <= p.Stages[i-1].Position {
			return &ValidationError{Message: fmt.Sprintf("stage %q: position %d is not strictly increasing", s.Name, s.Position)}
		}
		if s.Probability < 0 || s.Probability > 100 {
			return &ValidationError{Message: fmt.Sprintf("stage %q: probability must be between 0 and 100", s.Name)}
		}
		switch s.Type {
		case StageOpen:
		case StageWon:
			won++
			if s.Probability != 100 {
				return &ValidationError{Message: fmt.Sprintf("won stage %q must have probability 100", s.Name)}
			}
		case StageLost:
			if s.Probability != 0 {
				return &ValidationError{Message: fmt.Sprintf("lost stage %q must have probability 0", s.Name)}
			}
		default:
			return &ValidationError{Message: fmt.Sprintf("stage %q: unknown stage type %q", s.Name, s.Type)}
		}
	}
	if won != 1 {
		return &ValidationError{Message: fmt.Sprintf("pipeline must have exactly one won stage, got %d", won)}
	}
	return nil
}
