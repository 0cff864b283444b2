package postprocess

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-classify/models"
)

// DefaultTopK is the number of predictions returned per image.
const DefaultTopK = 3

// TopK ranks a probability vector and returns its k best classes.
//
// Scores are ordered by value, highest first. Exact ties go to the smaller index, so the
// label declared first wins and the order is reproducible. NaN scores rank below every
// other value. k is clamped to [0, len(probs)].
//
// Arguments:
//   - probs: The classifier output, one score per label.
//   - labels: The label set the classifier was trained on.
//   - k: The number of predictions to return.
//
// Returns:
//   - []Prediction: Up to k predictions in descending confidence order.
//   - error: A *LabelMismatchError if len(probs) differs from labels.Len().
func TopK(probs []float32, labels models.LabelSet, k int) ([]Prediction, error) {
	if len(probs) != labels.Len() {
		return nil, &LabelMismatchError{Scores: len(probs), Labels: labels.Len()}
	}

	if k > len(probs) {
		k = len(probs)
	}
	if k <= 0 {
		return []Prediction{}, nil
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranksBefore(probs, order[a], order[b])
	})

	classes := labels.Classes()
	predictions := make([]Prediction, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		predictions[i] = Prediction{
			Index:      idx,
			Label:      classes[idx].Name,
			Confidence: probs[idx],
		}
	}

	return predictions, nil
}

// ranksBefore reports whether index i ranks ahead of index j.
func ranksBefore(probs []float32, i, j int) bool {
	pi, pj := probs[i], probs[j]
	iNaN, jNaN := math32.IsNaN(pi), math32.IsNaN(pj)

	switch {
	case iNaN && jNaN:
		return i < j
	case iNaN:
		return false
	case jNaN:
		return true
	case pi != pj:
		return pi > pj
	default:
		return i < j
	}
}
