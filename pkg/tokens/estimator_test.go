package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateText(t *testing.T) {
	est := NewEstimator()

	assert.Equal(t, 0, est.EstimateText(""))
	assert.Equal(t, 1, est.EstimateText("a"))
	assert.Equal(t, 1, est.EstimateText("abcd"))
	assert.Equal(t, 2, est.EstimateText("abcde"))
	assert.Equal(t, 1000, est.EstimateText(strings.Repeat("x", 4000)))
}

func TestCanonicalPassesStringsThrough(t *testing.T) {
	est := NewEstimator()

	assert.Equal(t, "hello", est.Canonical("hello"))
	assert.Equal(t, "", est.Canonical(nil))
}

func TestCanonicalSerializesStructuredValues(t *testing.T) {
	est := NewEstimator()

	out := est.Canonical(map[string]any{"a": 1})
	assert.Contains(t, out, `"a": 1`)

	// Deterministic: same input, same text.
	assert.Equal(t, out, est.Canonical(map[string]any{"a": 1}))
}

func TestEstimateStructured(t *testing.T) {
	est := NewEstimator()

	n := est.Estimate(map[string]any{"key": "value"})
	assert.Positive(t, n)
	assert.Equal(t, est.EstimateText(est.Canonical(map[string]any{"key": "value"})), n)
}
