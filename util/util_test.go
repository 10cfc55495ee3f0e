package util

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumAndBounds(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(6, Sum([]int{1, 2, 3}))
	assert.InDelta(1.5, Sum([]float64{0.5, 1}), 1e-9)
	assert.Equal(0.0, Sum([]float64{}))
	assert.Equal(2, Min(2, 5))
	assert.Equal(5, Max(2, 5))
	assert.Equal(1.0, Clamp(3.0, 0.0, 1.0))
}

func TestShuffleKeepsInput(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	out := Shuffle(rand.New(rand.NewSource(7)), in)

	assert := assert.New(t)
	assert.Equal([]string{"a", "b", "c", "d", "e"}, in)
	assert.ElementsMatch(in, out)
}

func TestGetSortedKeys(t *testing.T) {
	m := map[string]int{"b": 1, "a": 2, "c": 3}

	assert := assert.New(t)
	assert.Equal([]string{"a", "b", "c"}, GetSortedKeys(m))
}
