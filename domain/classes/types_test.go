package classes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
)

func threeClasses() []Class {
	return []Class{
		{ID: 0, Signatures: []string{"ch+dy", "sh+dy"}, Role: RoleFrequent, Observations: 120},
		{ID: 1, Signatures: []string{"qo+y"}, Role: RoleControl, Observations: 80},
		{ID: 2, Signatures: []string{"_+aiin"}, Role: RoleEnergy, Observations: 60},
	}
}

func TestNewAssignment_Partition(t *testing.T) {
	a, err := NewAssignment(threeClasses(), nil)
	require.NoError(t, err)

	id, ok := a.ClassOf("sh+dy")
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	_, ok = a.ClassOf("ok+_")
	assert.False(t, ok)

	bad := threeClasses()
	bad[2].Signatures = append(bad[2].Signatures, "qo+y")
	_, err = NewAssignment(bad, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	gap := threeClasses()
	gap[1].ID = 5
	_, err = NewAssignment(gap, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAssignment_Supersede(t *testing.T) {
	a, err := NewAssignment(threeClasses(), nil)
	require.NoError(t, err)

	b, err := a.Supersede([]Reassignment{{Signature: "qo+y", ToClass: 0}}, "qo+y behaves like ch+dy after re-reading")
	require.NoError(t, err)

	assert.Equal(t, 3, a.Len(), "original must not change")
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, a.Version(), b.Supersedes())
	assert.NotEqual(t, a.Version(), b.Version())
	assert.Equal(t, "qo+y behaves like ch+dy after re-reading", b.Note())

	id, _ := b.ClassOf("qo+y")
	assert.Equal(t, 0, id)
	id, _ = b.ClassOf("_+aiin")
	assert.Equal(t, 1, id, "ids are compacted")

	_, err = a.Supersede(nil, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = a.Supersede([]Reassignment{{Signature: "zz+_", ToClass: 0}}, "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = a.Supersede([]Reassignment{{Signature: "qo+y", ToClass: 9}}, "x")
	assert.ErrorIs(t, err, core.ErrClassNotFound)
}

func TestAssignment_ClassesReturnsCopies(t *testing.T) {
	a, err := NewAssignment(threeClasses(), nil)
	require.NoError(t, err)

	cs := a.Classes()
	cs[0].Signatures[0] = "mutated"
	c, err := a.Class(0)
	require.NoError(t, err)
	assert.Equal(t, "ch+dy", c.Signatures[0])

	_, err = a.Class(3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
