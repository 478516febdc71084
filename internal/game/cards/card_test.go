package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvertIsInvolutive(t *testing.T) {
	for _, name := range []string{Mais, Menos, Sobe, Desce, MaisDez, MenosDez} {
		once, ok := Invert(name)
		assert.True(t, ok, name)
		twice, _ := Invert(once)
		assert.Equal(t, name, twice)
	}
}

func TestInvertExemptions(t *testing.T) {
	for _, name := range []string{Pula, Reversus, ReversusTotal, Versatrix} {
		_, ok := Invert(name)
		assert.False(t, ok, name)
	}
}

func TestAxisOf(t *testing.T) {
	assert.Equal(t, AxisScore, AxisOf(Mais))
	assert.Equal(t, AxisScore, AxisOf(MenosDez))
	assert.Equal(t, AxisMovement, AxisOf(Pula))
	assert.Equal(t, AxisNeither, AxisOf(Reversus))
	assert.Equal(t, AxisNeither, AxisOf(ReversusTotal))
}

func TestParseAxis(t *testing.T) {
	a, ok := ParseAxis("score")
	assert.True(t, ok)
	assert.Equal(t, AxisScore, a)
	_, ok = ParseAxis("both")
	assert.False(t, ok)
}
