// Package tokens provides model-token size estimation for arbitrary content.
package tokens

import (
	"encoding/json"
	"fmt"
)

// charsPerToken is the heuristic ratio used in place of a real tokenizer.
// It matches the 4-chars-per-token approximation most model vendors document.
const charsPerToken = 4

type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Canonical coerces a value to the text form used for estimation and
// bounding. Strings pass through unchanged; structured values serialize
// deterministically; anything else falls back to its display form.
func (e *Estimator) Canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(data)
}

// EstimateText returns the estimated token count of a text string.
func (e *Estimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}

	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Estimate returns the estimated token count of an arbitrary value.
func (e *Estimator) Estimate(v any) int {
	return e.EstimateText(e.Canonical(v))
}
