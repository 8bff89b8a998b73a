package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0, 0}, []float32{2, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)

	// Dimension mismatch and zero vectors score 0 instead of failing.
	assert.Zero(t, cosine([]float32{1, 2, 3}, []float32{1, 2}))
	assert.Zero(t, cosine(nil, nil))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestTopK_OrdersByScoreDescending(t *testing.T) {
	passages := []scoredPassage{
		{text: "low", score: 0.1},
		{text: "high", score: 0.9},
		{text: "mid", score: 0.5},
	}
	assert.Equal(t, []string{"high", "mid", "low"}, topK(passages, 3))
}

func TestTopK_Truncates(t *testing.T) {
	passages := []scoredPassage{
		{text: "a", score: 0.3},
		{text: "b", score: 0.8},
		{text: "c", score: 0.5},
		{text: "d", score: 0.9},
	}
	assert.Equal(t, []string{"d", "b"}, topK(passages, 2))
}

func TestTopK_TiesKeepInsertionOrder(t *testing.T) {
	passages := []scoredPassage{
		{text: "first", score: 0.5},
		{text: "second", score: 0.5},
		{text: "third", score: 0.5},
	}
	assert.Equal(t, []string{"first", "second"}, topK(passages, 2))
}

func TestTopK_Bounds(t *testing.T) {
	passages := []scoredPassage{{text: "only", score: 0.5}}
	assert.Equal(t, []string{"only"}, topK(passages, 5))
	assert.Empty(t, topK(passages, 0))
	assert.Empty(t, topK(nil, 3))
}
