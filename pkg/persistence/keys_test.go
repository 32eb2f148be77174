package persistence_test

import (
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "v1:order", persistence.KeyOrder)
	assert.Equal(t, "v1:part:content:abc", persistence.ContentKey("abc"))
	assert.Equal(t, "v1:part:name:abc", persistence.NameKey("abc"))
	assert.Equal(t, "v1:part:collapsed:abc", persistence.CollapsedKey("abc"))
	assert.Equal(t, "v1:ui:mode", persistence.KeyMode)
	assert.Equal(t, "slot:1700000000000", persistence.SlotKey(1700000000000))
}

func TestIsSlotKey(t *testing.T) {
	cases := map[string]bool{
		"slot:1700000000000": true,
		"slot:":              false,
		"slot:abc":           false,
		"slots:names":        false,
		"v1:order":           false,
	}
	for key, want := range cases {
		assert.Equal(t, want, persistence.IsSlotKey(key), key)
	}
}
