package compose_test

import (
	"sync"
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/compose"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestAssemble(t *testing.T) {
	tests := []struct {
		name  string
		parts []domain.Part
		want  string
	}{
		{"no parts", nil, ""},
		{"skips empty", []domain.Part{{Content: "a"}, {Content: ""}, {Content: "b"}}, "a\n\nb"},
		{"trims ends", []domain.Part{{Content: "  \nhello"}, {Content: "world\n\n"}}, "hello\n\nworld"},
		{"whitespace only", []domain.Part{{Content: "   "}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compose.Assemble(tt.parts))
		})
	}
}

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "plain text", nil},
		{"first seen order", "[[B]] then [[A]] then [[B]]", []string{"B", "A"}},
		{"digits and underscore", "[[API_KEY_2]]", []string{"API_KEY_2"}},
		{"lower case ignored", "[[name]] [[Name]]", nil},
		{"malformed", "[[A] [A]] [[ A ]] [[]]", nil},
		{"adjacent", "[[A]][[B]]", []string{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compose.ExtractVariables(tt.text))
		})
	}
}

func TestExtractVariables_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"X", "Y"}, compose.ExtractVariables("[[X]] [[Y]] [[X]]"))
		}()
	}
	wg.Wait()
}

func TestSubstitute(t *testing.T) {
	text := "Hi [[NAME]], [[NAME]]! Topic: [[TOPIC]]. [[MISSING]]end"
	got := compose.Substitute(text, map[string]string{"NAME": "Ada", "TOPIC": "engines"})
	assert.Equal(t, "Hi Ada, Ada! Topic: engines. end", got)
}

func TestSubstitute_ValuesNotRescanned(t *testing.T) {
	got := compose.Substitute("[[A]]", map[string]string{"A": "[[B]]", "B": "boom"})
	assert.Equal(t, "[[B]]", got)
}

func TestSubstitute_Idempotent(t *testing.T) {
	values := map[string]string{"A": "1"}
	once := compose.Substitute("x [[A]] y", values)
	assert.Equal(t, once, compose.Substitute(once, values))
}

type fixedSource []domain.Part

func (f fixedSource) Parts() []domain.Part { return f }

func TestEngine_Compose(t *testing.T) {
	e := compose.NewEngine(fixedSource{
		{Content: "Dear [[WHO]],"},
		{Content: ""},
		{Content: "Regards"},
	})

	c := e.Compose()
	assert.Equal(t, "Dear [[WHO]],\n\nRegards", c.Raw)
	assert.Equal(t, []string{"WHO"}, c.Variables)
	assert.True(t, c.HasVariables())
	assert.Equal(t, "Dear Bob,\n\nRegards", c.Render(map[string]string{"WHO": "Bob"}))

	plain := compose.NewEngine(fixedSource{{Content: "x"}}).Compose()
	assert.False(t, plain.HasVariables())
	assert.Equal(t, "x", plain.Render(nil))
}
