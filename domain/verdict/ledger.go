package verdict

import (
	"fmt"

	"glyphstat/domain/core"
)

// PrepareAppend checks that rec is a valid first revision.
func PrepareAppend(rec *Record) error {
	if rec.Revision == 0 {
		rec.Revision = 1
	}
	if rec.Revision != 1 || !core.ID(rec.Supersedes).IsEmpty() {
		return core.NewValidationError("verdict", "appended record must be revision 1 without a supersedes link")
	}
	return rec.Validate()
}

// PrepareSupersede links rec as the next revision after prev. prev must be
// the latest revision of its hypothesis; callers check that.
func PrepareSupersede(prev, rec *Record, note string) error {
	if note == "" {
		return core.NewValidationError("supersede", "note cannot be empty")
	}
	if rec.HypothesisID != prev.HypothesisID {
		return fmt.Errorf("%w: verdict for %s cannot supersede one for %s", core.ErrInvalidInput, rec.HypothesisID, prev.HypothesisID)
	}
	if rec.ID == prev.ID {
		return fmt.Errorf("%w: verdict %s cannot supersede itself", core.ErrRecordExists, rec.ID)
	}
	rec.Revision = prev.Revision + 1
	rec.Supersedes = prev.ID
	rec.SupersedeNote = note
	return rec.Validate()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := *r
	if r.Null != nil {
		n := *r.Null
		out.Null = &n
	}
	if r.Exact != nil {
		e := *r.Exact
		out.Exact = &e
	}
	return &out
}
