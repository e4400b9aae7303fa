package classes

import (
	"fmt"
	"sort"

	"glyphstat/domain/core"
)

// Role is a closed vocabulary of grammatical roles.
type Role string

const (
	RoleControl   Role = "control"
	RoleEnergy    Role = "energy"
	RoleFlow      Role = "flow"
	RoleFrequent  Role = "frequent"
	RoleAuxiliary Role = "auxiliary"
)

// Class is a group of signatures treated as behaviorally identical.
type Class struct {
	ID             int      `json:"id"`
	Signatures     []string `json:"signatures"`
	Role           Role     `json:"role"`
	Observations   int      `json:"observations"`
	LowConfidence  bool     `json:"low_confidence"`
	MeanPosition   float64  `json:"mean_position"`
	SelfTransition float64  `json:"self_transition"`
}

// MacroState groups classes by aggregate behavior.
type MacroState struct {
	ID      int   `json:"id"`
	Classes []int `json:"classes"`
}

// MacroPartition is the chosen clustering with its selection evidence.
type MacroPartition struct {
	Method     string          `json:"method"`
	K          int             `json:"k"`
	Silhouette float64         `json:"silhouette"`
	Scores     map[int]float64 `json:"scores"`
	States     []MacroState    `json:"states"`
	// StateOf maps class id to macro-state id; excluded classes map to -1.
	StateOf []int `json:"state_of"`
}

// Reassignment moves one signature to a different class.
type Reassignment struct {
	Signature string `json:"signature"`
	ToClass   int    `json:"to_class"`
}

// Assignment maps every signature to exactly one class. It is a value: a
// correction produces a new Assignment that references this one.
type Assignment struct {
	classes     []Class
	bySignature map[string]int
	macro       *MacroPartition
	version     core.ClassVersion
	supersedes  core.ClassVersion
	note        string
}

// NewAssignment validates that classes partition their signatures and stamps
// the content hash.
func NewAssignment(classes []Class, macro *MacroPartition) (*Assignment, error) {
	a := &Assignment{
		classes:     make([]Class, len(classes)),
		bySignature: make(map[string]int),
		macro:       macro,
	}
	for i, c := range classes {
		if c.ID != i {
			return nil, fmt.Errorf("%w: class at index %d has id %d", core.ErrInvalidInput, i, c.ID)
		}
		if len(c.Signatures) == 0 {
			return nil, fmt.Errorf("%w: class %d has no signatures", core.ErrInvalidInput, c.ID)
		}
		sigs := append([]string(nil), c.Signatures...)
		sort.Strings(sigs)
		for _, s := range sigs {
			if prev, dup := a.bySignature[s]; dup {
				return nil, fmt.Errorf("%w: signature %q in classes %d and %d", core.ErrInvalidInput, s, prev, c.ID)
			}
			a.bySignature[s] = c.ID
		}
		c.Signatures = sigs
		a.classes[i] = c
	}
	a.version = a.computeVersion()
	return a, nil
}

func (a *Assignment) computeVersion() core.ClassVersion {
	h := core.NewHasher("classes/v1").Field(string(a.supersedes))
	for _, c := range a.classes {
		h.Int(int64(c.ID)).Field(string(c.Role)).Int(int64(len(c.Signatures)))
		for _, s := range c.Signatures {
			h.Field(s)
		}
	}
	if a.macro != nil {
		for _, s := range a.macro.StateOf {
			h.Int(int64(s))
		}
	}
	return core.ClassVersion(h.Sum())
}

// Version is the content hash of the assignment.
func (a *Assignment) Version() core.ClassVersion { return a.version }

// Supersedes is the version this assignment corrected, if any.
func (a *Assignment) Supersedes() core.ClassVersion { return a.supersedes }

// Note is the migration note attached by Supersede.
func (a *Assignment) Note() string { return a.note }

// Len returns the number of classes.
func (a *Assignment) Len() int { return len(a.classes) }

// Classes returns a copy of the class list.
func (a *Assignment) Classes() []Class {
	out := make([]Class, len(a.classes))
	for i, c := range a.classes {
		c.Signatures = append([]string(nil), c.Signatures...)
		out[i] = c
	}
	return out
}

// Class returns one class by id.
func (a *Assignment) Class(id int) (Class, error) {
	if id < 0 || id >= len(a.classes) {
		return Class{}, fmt.Errorf("%w: %d", core.ErrClassNotFound, id)
	}
	c := a.classes[id]
	c.Signatures = append([]string(nil), c.Signatures...)
	return c, nil
}

// ClassOf returns the class id of a signature.
func (a *Assignment) ClassOf(signature string) (int, bool) {
	id, ok := a.bySignature[signature]
	return id, ok
}

// Macro returns the macro-state partition, or nil when none was built.
func (a *Assignment) Macro() *MacroPartition { return a.macro }

// Supersede returns a corrected assignment with the given signatures moved.
// Classes left empty by the move are dropped and ids are compacted in order.
// Observation counts are not recomputed and the macro partition is not carried
// over; rebuild both from the corpus.
func (a *Assignment) Supersede(moves []Reassignment, note string) (*Assignment, error) {
	if note == "" {
		return nil, core.NewValidationError("supersede", "migration note cannot be empty")
	}
	target := make(map[string]int, len(a.bySignature))
	for s, id := range a.bySignature {
		target[s] = id
	}
	for _, m := range moves {
		if _, ok := target[m.Signature]; !ok {
			return nil, fmt.Errorf("%w: signature %q", core.ErrNotFound, m.Signature)
		}
		if m.ToClass < 0 || m.ToClass >= len(a.classes) {
			return nil, fmt.Errorf("%w: %d", core.ErrClassNotFound, m.ToClass)
		}
		target[m.Signature] = m.ToClass
	}

	members := make([][]string, len(a.classes))
	for s, id := range target {
		members[id] = append(members[id], s)
	}

	var next []Class
	for _, c := range a.classes {
		sigs := members[c.ID]
		if len(sigs) == 0 {
			continue
		}
		c.ID = len(next)
		c.Signatures = sigs
		next = append(next, c)
	}
	out, err := NewAssignment(next, nil)
	if err != nil {
		return nil, err
	}
	out.supersedes = a.version
	out.note = note
	out.version = out.computeVersion()
	return out, nil
}
