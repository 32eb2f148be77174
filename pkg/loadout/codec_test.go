package loadout_test

import (
	"strings"
	"testing"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/loadout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportedAt = time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)

func TestEncode(t *testing.T) {
	text := loadout.Encode(loadout.Loadout{
		Name:       "Review",
		Version:    "0.1.0",
		ExportedAt: exportedAt,
		Parts: []domain.SnapshotEntry{
			{Name: "Intro", Content: "  You are a reviewer.\n"},
			{Content: "Review [[FILE]]."},
		},
	})

	want := "// Prompt Assembler Loadout Export v0.1.0\n" +
		"// Export Date: 2024-05-01T10:00:00.123Z\n" +
		"// Loadout Name: Review\n\n" +
		"### PART NAME: Intro\nYou are a reviewer." +
		"\n\n---\n\n" +
		"### PART NAME: Part 2\nReview [[FILE]]."
	assert.Equal(t, want, text)
}

func TestRoundTrip(t *testing.T) {
	parts := []domain.SnapshotEntry{
		{Name: "Intro", Content: "line one\nline two"},
		{Name: "Notes", Content: "# heading\n\n- bullet"},
		{Name: "Tail", Content: "[[VAR]]"},
	}
	text := loadout.Encode(loadout.Loadout{Name: "x", Version: "1", ExportedAt: exportedAt, Parts: parts})

	got, err := loadout.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, parts, got)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.SnapshotEntry
	}{
		{
			name: "no header lines",
			text: "### PART NAME: A\nalpha\n\n---\n\n### PART NAME: B\nbeta",
			want: []domain.SnapshotEntry{{Name: "A", Content: "alpha"}, {Name: "B", Content: "beta"}},
		},
		{
			name: "case insensitive marker",
			text: "### part name:   Shouty  \nbody",
			want: []domain.SnapshotEntry{{Name: "Shouty", Content: "body"}},
		},
		{
			name: "missing marker uses position",
			text: "first\n\n---\n\nsecond",
			want: []domain.SnapshotEntry{{Name: "Part 1", Content: "first"}, {Name: "Part 2", Content: "second"}},
		},
		{
			name: "blank blocks dropped",
			text: "a\n\n---\n\n   \n\n---\n\nb",
			want: []domain.SnapshotEntry{{Name: "Part 1", Content: "a"}, {Name: "Part 2", Content: "b"}},
		},
		{
			name: "windows line endings",
			text: "### PART NAME: W\r\nwin\r\n\r\n---\r\n\r\nnext",
			want: []domain.SnapshotEntry{{Name: "W", Content: "win"}, {Name: "Part 2", Content: "next"}},
		},
		{
			name: "unrelated comment kept as content",
			text: "// just a comment\nbody",
			want: []domain.SnapshotEntry{{Name: "Part 1", Content: "// just a comment\nbody"}},
		},
		{
			name: "name only",
			text: "### PART NAME: Empty",
			want: []domain.SnapshotEntry{{Name: "Empty", Content: ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadout.Decode(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NoParts(t *testing.T) {
	for _, text := range []string{"", "   \n\n", "\n\n---\n\n", "// Prompt Assembler Loadout Export v1\n// Export Date: x\n"} {
		_, err := loadout.Decode(text)
		assert.ErrorIs(t, err, domain.ErrNoPartsFound, "%q", text)
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a-b-c-d-e-f-g-h-i-.txt", loadout.FileName(`a<b>c:d"e/f\g|h?i*`))
	assert.Equal(t, "Unknown Loadout.txt", loadout.FileName(" "))
}

func TestNameFromFile(t *testing.T) {
	assert.Equal(t, "Review", loadout.NameFromFile("/tmp/exports/Review.TXT"))
	assert.Equal(t, "notes.md", loadout.NameFromFile("notes.md"))
	assert.False(t, strings.Contains(loadout.NameFromFile("dir/x.txt"), "/"))
}
