// Package nn implements the layers of a kiln model.
//
// This package provides building blocks for constructing networks:
//   - Layer interface: forward/backward contract shared by every layer kind
//   - Trainable: layers that own Parameters updated by an optimizer
//   - Dense, Conv2D, BatchNorm, MaxPool2D, GlobalAveragePooling2D,
//     Upsampling2D, Flatten, Reshape, Dropout
//   - Activations: ReLU, LeakyReLU, Sigmoid, Tanh, Mish, Swish, Softmax and
//     user-supplied element-wise functions
//   - GradientRegistry: fixed per-layer gradient references for optimizers
//   - Losses and label encoding helpers
//
// Layers are hand-differentiated: each caches what it needs during Forward
// and computes its own input and parameter gradients in Backward. Layers do
// not know their neighbours; the model keeps them in an ordered list and
// threads tensors through them.
package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// Kind identifies a layer type. The set is closed.
type Kind int

// Layer kinds.
const (
	KindDense Kind = iota
	KindConv2D
	KindBatchNorm
	KindReLU
	KindLeakyReLU
	KindSigmoid
	KindTanh
	KindSoftmax
	KindMish
	KindSwish
	KindFlatten
	KindMaxPool2D
	KindDropout
	KindReshape
	KindUpsampling2D
	KindGlobalAveragePooling2D
	KindCustomActivation
)

var kindNames = [...]string{
	KindDense:     "dense",
	KindConv2D:    "conv_2d",
	KindBatchNorm: "batch_norm",
	KindReLU:      "relu",
	KindLeakyReLU: "leaky_relu",
	KindSigmoid:   "sigmoid",
	KindTanh:      "tanh",
	KindSoftmax:   "softmax",
	KindMish:      "mish",
	KindSwish:     "swish",
	KindFlatten:   "flatten",
	KindMaxPool2D: "max_pool_2d",
	KindDropout:   "dropout",

	KindReshape:                "reshape",
	KindUpsampling2D:           "up_sampling_2d",
	KindGlobalAveragePooling2D: "global_average_pooling_2d",
	KindCustomActivation:       "custom_activation",
}

// String returns the snake_case type name used in layer names.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Layout describes how a batch is arranged in a tensor.
type Layout int

const (
	// BatchMajor tensors hold one sample per row: (N, C, H, W).
	BatchMajor Layout = iota
	// FeatureMajor tensors hold one feature per row and one sample per
	// column: (F, N, 1, 1). Dense layers produce this layout.
	FeatureMajor
)

// String returns the layout name.
func (l Layout) String() string {
	if l == FeatureMajor {
		return "feature_major"
	}
	return "batch_major"
}

// BatchShape returns the full tensor shape of a batch of n samples whose
// per-sample shape is sample, arranged in layout l.
func (l Layout) BatchShape(sample tensor.Shape, n int) tensor.Shape {
	if l == FeatureMajor {
		return tensor.Shape{sample.Cols(), n, 1, 1}
	}
	return sample.WithBatch(n)
}

// BatchSize returns the number of samples in x under layout l.
func (l Layout) BatchSize(x *tensor.Tensor) int {
	if l == FeatureMajor {
		return x.C()
	}
	return x.N()
}

// BuildContext carries what a layer needs to allocate its state.
type BuildContext struct {
	// InputShape is the per-sample input shape (1, C, H, W).
	InputShape tensor.Shape
	// Layout is the arrangement of incoming batches.
	Layout   Layout
	Namer    *Namer
	Parallel parallel.Config
	Rand     *rand.Rand
}

// Layer is the contract every layer kind implements.
//
// Lifecycle: a layer is unusable until Build succeeds. Forward caches the
// output (and whatever Backward needs); Backward must follow a Forward on
// the same layer and panics otherwise. Both caches are overwritten on every
// call.
type Layer interface {
	// Kind returns the layer type.
	Kind() Kind

	// Name returns the model-unique name assigned at Build (e.g. "dense_1").
	Name() string

	// Build resolves shapes and allocates parameters for ctx.InputShape.
	Build(ctx BuildContext) error

	// OutputShape returns the per-sample output shape (1, C, H, W).
	OutputShape() tensor.Shape

	// Layout returns the arrangement of batches this layer emits.
	Layout() Layout

	// Forward computes the layer output for batch x.
	Forward(x *tensor.Tensor, training bool) *tensor.Tensor

	// Backward takes dLoss/dOutput and returns dLoss/dInput, storing
	// parameter gradients as a side effect.
	Backward(grad *tensor.Tensor) *tensor.Tensor

	// Output returns the cached output of the last Forward (nil before).
	Output() *tensor.Tensor

	// Gradient returns the cached input gradient of the last Backward (nil before).
	Gradient() *tensor.Tensor
}

// Trainable is a layer that owns parameters updated by an optimizer.
type Trainable interface {
	Layer

	// Parameters returns the layer's parameters in a fixed order.
	Parameters() []*Parameter

	// UpdateParameters subtracts updates[i] from Parameters()[i].Value.
	UpdateParameters(updates []*tensor.Tensor)

	// NumParameters returns the total number of trainable scalars.
	NumParameters() int
}

// Buffered is a layer holding persistent non-trainable state, such as
// BatchNorm running statistics. Buffers have no gradient.
type Buffered interface {
	Buffers() []*Parameter
}

// Head is an output layer whose backward pass is fused with its loss.
// Softmax with categorical cross-entropy and Sigmoid with binary
// cross-entropy both reduce to output - target.
type Head interface {
	Layer

	// HeadBackward starts back-propagation from the target tensor, which
	// has the same shape as the layer output.
	HeadBackward(target *tensor.Tensor) *tensor.Tensor
}

// InputDeclarer is implemented by layers that can carry their own input
// shape, so they may start a model without an explicit model input shape.
type InputDeclarer interface {
	DeclaredInputShape() (tensor.Shape, bool)
}

// base holds the bookkeeping shared by all layers.
type base struct {
	kind     Kind
	name     string
	built    bool
	inShape  tensor.Shape // per-sample
	outShape tensor.Shape // per-sample
	inLayout Layout
	layout   Layout
	output   *tensor.Tensor
	grad     *tensor.Tensor
}

// Kind returns the layer type.
func (b *base) Kind() Kind { return b.kind }

// Name returns the layer name.
func (b *base) Name() string { return b.name }

// OutputShape returns the per-sample output shape.
func (b *base) OutputShape() tensor.Shape { return b.outShape }

// Layout returns the output layout.
func (b *base) Layout() Layout { return b.layout }

// Output returns the cached forward output.
func (b *base) Output() *tensor.Tensor { return b.output }

// Gradient returns the cached input gradient.
func (b *base) Gradient() *tensor.Tensor { return b.grad }

// begin assigns the layer name and records the input geometry.
func (b *base) begin(ctx BuildContext) error {
	if err := ctx.InputShape.Validate(); err != nil {
		return fmt.Errorf("%s: invalid input shape %s: %w", b.kind, ctx.InputShape, err)
	}
	namer := ctx.Namer
	if namer == nil {
		namer = NewNamer()
	}
	if b.name == "" {
		b.name = namer.Next(b.kind)
	}
	b.inShape = ctx.InputShape.WithBatch(1)
	b.inLayout = ctx.Layout
	b.outShape = b.inShape
	b.layout = ctx.Layout
	b.output = nil
	b.grad = nil
	return nil
}

// checkInput panics unless x is a batch of the layer's input shape.
func (b *base) checkInput(x *tensor.Tensor) int {
	if !b.built {
		panic(fmt.Sprintf("%s: forward called before build", b.kind))
	}
	n := b.inLayout.BatchSize(x)
	if want := b.inLayout.BatchShape(b.inShape, n); x.Shape() != want {
		panic(&tensor.ShapeError{Op: b.name + " forward", Left: x.Shape(), Right: want, Detail: "input does not match built shape"})
	}
	return n
}

// checkGrad panics unless a forward output is cached and grad matches it.
func (b *base) checkGrad(grad *tensor.Tensor) {
	if b.output == nil {
		panic(fmt.Sprintf("%s: backward called before forward", b.name))
	}
	if grad.Shape() != b.output.Shape() {
		panic(&tensor.ShapeError{Op: b.name + " backward", Left: grad.Shape(), Right: b.output.Shape(), Detail: "gradient does not match cached output"})
	}
}
