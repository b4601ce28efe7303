package looper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poseEstimate struct{ X, Y float64 }
type jointTargets struct{ Angles []float64 }

func TestAccessModeConflicts(t *testing.T) {
	tests := []struct {
		name     string
		a, b     AccessMode
		conflict bool
	}{
		{"none vs none", AccessNone, AccessNone, false},
		{"none vs shared", AccessNone, AccessShared, false},
		{"none vs exclusive", AccessNone, AccessExclusive, false},
		{"shared vs shared", AccessShared, AccessShared, false},
		{"shared vs exclusive", AccessShared, AccessExclusive, true},
		{"exclusive vs shared", AccessExclusive, AccessShared, true},
		{"exclusive vs exclusive", AccessExclusive, AccessExclusive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conflict, tt.a.ConflictsWith(tt.b))
			assert.Equal(t, tt.conflict, tt.b.ConflictsWith(tt.a))
		})
	}
}

func TestAccessSetKeepsStrongestMode(t *testing.T) {
	set := NewAccessSet().
		Reads(TypeOf[poseEstimate]()).
		Writes(TypeOf[poseEstimate]())

	assert.Equal(t, AccessExclusive, set.Mode(TypeOf[poseEstimate]()))
	assert.Equal(t, 1, set.Len())

	// Declaring shared after exclusive must not weaken the mode.
	set.Reads(TypeOf[poseEstimate]())
	assert.Equal(t, AccessExclusive, set.Mode(TypeOf[poseEstimate]()))
}

func TestAccessSetConflictsWith(t *testing.T) {
	reader := NewAccessSet().Reads(TypeOf[poseEstimate]())
	writer := NewAccessSet().Writes(TypeOf[poseEstimate]())
	other := NewAccessSet().Writes(TypeOf[jointTargets]())

	res, conflict := reader.ConflictsWith(writer)
	require.True(t, conflict)
	assert.Equal(t, TypeOf[poseEstimate](), res)

	_, conflict = reader.ConflictsWith(reader)
	assert.False(t, conflict, "two shared readers never conflict")

	_, conflict = writer.ConflictsWith(other)
	assert.False(t, conflict, "disjoint resources never conflict")
}

func TestAccessSetUndeclaredIsNone(t *testing.T) {
	set := NewAccessSet().Reads(TypeOf[poseEstimate]())
	assert.Equal(t, AccessNone, set.Mode(TypeOf[jointTargets]()))
}
