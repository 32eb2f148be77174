package domain_test

import (
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsAutoName(t *testing.T) {
	assert.True(t, domain.IsAutoName(""))
	assert.True(t, domain.IsAutoName("Part 12"))
	assert.False(t, domain.IsAutoName("Part of speech"))
	assert.False(t, domain.IsAutoName("Intro"))
}

func TestPart_IsUntouched(t *testing.T) {
	assert.True(t, domain.Part{Name: "Part 3"}.IsUntouched(3))
	assert.True(t, domain.Part{}.IsUntouched(3))
	assert.False(t, domain.Part{Name: "Part 2"}.IsUntouched(3), "stale default at another position counts as a name")
	assert.False(t, domain.Part{Name: "Part 3", Content: "x"}.IsUntouched(3))
	assert.False(t, domain.Part{Name: "Intro"}.IsUntouched(3))
}

func TestWorkingSet_Validate(t *testing.T) {
	parts := map[string]domain.Part{"a": {ID: "a"}, "b": {ID: "b"}}

	tests := []struct {
		name  string
		order []string
		parts map[string]domain.Part
		ok    bool
	}{
		{"consistent", []string{"b", "a"}, parts, true},
		{"empty", nil, map[string]domain.Part{}, true},
		{"duplicate", []string{"a", "a"}, parts, false},
		{"dangling id", []string{"a", "b", "c"}, parts, false},
		{"unordered part", []string{"a"}, parts, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.WorkingSet{Order: tt.order, Parts: tt.parts}.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidWorkingSet)
			}
		})
	}
}

func TestWorkingSet_Ordered(t *testing.T) {
	ws := domain.WorkingSet{
		Order: []string{"b", "a"},
		Parts: map[string]domain.Part{"a": {ID: "a"}, "b": {ID: "b"}},
	}
	got := ws.Ordered()
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestPosition_IsZero(t *testing.T) {
	assert.True(t, domain.Position{}.IsZero())
	assert.True(t, domain.Position{Top: "12px"}.IsZero(), "half a position is not restorable")
	assert.True(t, domain.Position{Left: "40px"}.IsZero())
	assert.False(t, domain.Position{Top: "12px", Left: "40px"}.IsZero())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "warning: cancelled", domain.Warning(domain.ReasonCancelled, nil).String())
	assert.True(t, domain.Success(domain.ReasonCopied).OK())
	assert.False(t, domain.Failure(domain.ReasonDeliveryFailed, domain.ErrBusy).OK())
}
