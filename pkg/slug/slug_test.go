package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple phrase", input: "Hello World", want: "hello-world"},
		{name: "punctuation stripped", input: "Hello, World! 2026", want: "hello-world-2026"},
		{name: "leading and trailing whitespace", input: "  spaced out  ", want: "spaced-out"},
		{name: "consecutive separators collapse", input: "a -- b", want: "a-b"},
		{name: "already a slug", input: "already-a-slug", want: "already-a-slug"},
		{name: "empty input", input: "", want: ""},
		{name: "only punctuation", input: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.input))
		})
	}
}

func TestGenerateUnique(t *testing.T) {
	a := GenerateUnique("A Robot In The Rain")
	b := GenerateUnique("A Robot In The Rain")

	assert.True(t, strings.HasPrefix(a, "a-robot-in-the-rain-"))
	assert.True(t, strings.HasPrefix(b, "a-robot-in-the-rain-"))
	assert.NotEqual(t, a, b)
}

func TestGenerateUniqueEmptyBase(t *testing.T) {
	got := GenerateUnique("???")
	assert.Len(t, got, 8)
	assert.NotContains(t, got, "-")
}
