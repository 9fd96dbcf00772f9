package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate("a tyrannosaurus rex painting a fence")
	b := Generate("a tyrannosaurus rex painting a fence")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerateNormalizesCaseAndWhitespace(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{name: "case insensitive", a: "A Robot In The Rain", b: "a robot in the rain", same: true},
		{name: "collapsed internal whitespace", a: "a robot  in\tthe rain", b: "a robot in the rain", same: true},
		{name: "leading and trailing whitespace", a: "  a robot in the rain\n", b: "a robot in the rain", same: true},
		{name: "different words differ", a: "a robot in the rain", b: "a robot in the snow", same: false},
		{name: "word boundaries matter", a: "ab c", b: "a bc", same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, Generate(tt.a), Generate(tt.b))
			} else {
				assert.NotEqual(t, Generate(tt.a), Generate(tt.b))
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "a robot in the rain", Canonicalize("  A Robot  in\nthe RAIN "))
	assert.Equal(t, "", Canonicalize("   \t\n"))
}
