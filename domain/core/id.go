package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	HypothesisID ID
	VerdictID    ID
	FamilyID     ID
	FolioID      ID
	LineID       ID
	RecordID     ID
)

// String conversions for domain IDs
func (id HypothesisID) String() string { return ID(id).String() }
func (id VerdictID) String() string    { return ID(id).String() }
func (id FamilyID) String() string     { return ID(id).String() }
func (id FolioID) String() string      { return ID(id).String() }
func (id LineID) String() string       { return ID(id).String() }
func (id RecordID) String() string     { return ID(id).String() }

// NewVerdictID creates a time-ordered verdict identifier
func NewVerdictID() VerdictID { return VerdictID(NewID()) }

// ParseHypothesisID parses a string into HypothesisID
func ParseHypothesisID(s string) (HypothesisID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("hypothesis ID cannot be empty")
	}
	return HypothesisID(s), nil
}

// ParseVerdictID parses a string into VerdictID
func ParseVerdictID(s string) (VerdictID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("verdict ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("verdict ID %q is not a UUID: %w", s, err)
	}
	return VerdictID(s), nil
}
