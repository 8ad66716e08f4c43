package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/kiln/internal/tensor"
)

// lossEpsilon keeps log() finite for zero probabilities.
const lossEpsilon = 1e-12

// OneHot encodes labels as targets in the given layout:
// (N, classes, 1, 1) batch-major or (classes, N, 1, 1) feature-major.
func OneHot(labels []int, classes int, layout Layout) *tensor.Tensor {
	t := tensor.OneHot(labels, classes)
	if layout == FeatureMajor {
		return t.Transpose2D()
	}
	return t
}

// BinaryTargets encodes 0/1 labels as a single-unit target in the given
// layout: (N, 1, 1, 1) batch-major or (1, N, 1, 1) feature-major.
func BinaryTargets(labels []int, layout Layout) *tensor.Tensor {
	shape := tensor.Shape{len(labels), 1, 1, 1}
	if layout == FeatureMajor {
		shape = tensor.Shape{1, len(labels), 1, 1}
	}
	t := tensor.New(shape)
	for i, l := range labels {
		if l != 0 && l != 1 {
			panic(fmt.Sprintf("nn: binary label %d must be 0 or 1", l))
		}
		t.Data()[i] = float32(l)
	}
	return t
}

// classProbability returns output[sample i, class k] for either layout.
func classProbability(output *tensor.Tensor, layout Layout, i, k int) float32 {
	if layout == FeatureMajor {
		return output.Data()[k*output.C()+i]
	}
	return output.Data()[i*output.Shape().Cols()+k]
}

// CrossEntropy returns the mean categorical cross-entropy
// -log(p[label] + 1e-12) of probability outputs.
func CrossEntropy(output *tensor.Tensor, labels []int, layout Layout) float64 {
	var total float64
	for i, l := range labels {
		p := float64(classProbability(output, layout, i, l))
		total -= math.Log(p + lossEpsilon)
	}
	return total / float64(len(labels))
}

// BinaryCrossEntropy returns the mean binary cross-entropy of single-unit
// probability outputs.
func BinaryCrossEntropy(output *tensor.Tensor, labels []int) float64 {
	var total float64
	od := output.Data()
	for i, l := range labels {
		p := float64(od[i])
		y := float64(l)
		total += -y*math.Log(p+lossEpsilon) - (1-y)*math.Log(1-p+lossEpsilon)
	}
	return total / float64(len(labels))
}

// MeanSquaredError returns mean((output - target)²).
func MeanSquaredError(output, target *tensor.Tensor) float64 {
	var total float64
	td := target.Data()
	for i, v := range output.Data() {
		d := float64(v - td[i])
		total += d * d
	}
	return total / float64(output.Len())
}

// Predictions returns the argmax class of every sample. A single-unit
// output is a binary probability and is thresholded at 0.5 instead.
func Predictions(output *tensor.Tensor, layout Layout) []int {
	if layout == FeatureMajor {
		if output.N() == 1 {
			return threshold(output.Data())
		}
		return output.Transpose2D().ArgmaxAxis(0)
	}
	if output.Shape().Cols() == 1 {
		return threshold(output.Data())
	}
	return output.ArgmaxAxis(0)
}

func threshold(probs []float32) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

// Accuracy returns the fraction of predictions equal to labels.
func Accuracy(predictions, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i, p := range predictions {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}
