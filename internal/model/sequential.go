// Package model assembles nn layers into a trainable Sequential network.
//
// A Sequential model owns an ordered list of layer records. Each record
// keeps the layer together with the per-sample shapes resolved when the
// layer was added, so shape inference happens once, at construction time:
//
//	m := model.New(model.WithInputShape(tensor.Shape{1, 1, 28, 28}))
//	m.MustAdd(nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3}))
//	m.MustAdd(nn.NewReLU())
//	m.MustAdd(nn.NewFlatten())
//	m.MustAdd(nn.NewDense(nn.DenseConfig{Units: 10}))
//	m.MustAdd(nn.NewSoftmax())
//	if err := m.Compile(optim.NewAdam(optim.DefaultAdamConfig())); err != nil {
//	    log.Fatal(err)
//	}
//
// Training threads a batch forward through every layer, starts the backward
// pass at the output head and lets the optimizer update all trainable layers
// through the gradient registry built by Compile.
package model

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/optim"
	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// record is one layer of the model with its resolved geometry.
type record struct {
	layer       nn.Layer
	inputShape  tensor.Shape // per-sample
	outputShape tensor.Shape // per-sample
	inLayout    nn.Layout
}

// Sequential is a linear stack of layers.
//
// Sequential is not safe for concurrent use; one training or inference
// cycle runs at a time and layers parallelise internally.
type Sequential struct {
	name       string
	inputShape tensor.Shape
	hasInput   bool
	par        parallel.Config
	rng        *rand.Rand

	records  []record
	namer    *nn.Namer
	opt      optim.Optimizer
	registry *nn.GradientRegistry
}

// Option configures a Sequential model.
type Option func(*Sequential)

// WithInputShape sets the per-sample input shape (1, C, H, W) of the
// first layer. The batch dimension is ignored.
func WithInputShape(shape tensor.Shape) Option {
	return func(m *Sequential) {
		m.inputShape = shape.WithBatch(1)
		m.hasInput = true
	}
}

// WithParallel sets the parallel execution config handed to every layer.
func WithParallel(cfg parallel.Config) Option {
	return func(m *Sequential) { m.par = cfg }
}

// WithSeed makes parameter initialisation and dropout masks reproducible.
func WithSeed(seed int64) Option {
	return func(m *Sequential) { m.rng = rand.New(rand.NewSource(seed)) }
}

// WithName sets the model name stored in saved files.
func WithName(name string) Option {
	return func(m *Sequential) { m.name = name }
}

// New creates an empty model.
func New(opts ...Option) *Sequential {
	m := &Sequential{
		name:  "sequential",
		par:   parallel.DefaultConfig(),
		namer: nn.NewNamer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

// Name returns the model name.
func (m *Sequential) Name() string { return m.name }

// Add builds layer against the output of the current last layer and
// appends it. The first layer takes its input shape from WithInputShape
// or, failing that, from the layer itself (Conv2DConfig.InputShape,
// DenseConfig.InputSize).
//
// Returns *UnbuiltModelError when the layer cannot be built, and
// ErrCompiled once the model has been compiled.
func (m *Sequential) Add(layer nn.Layer) error {
	if m.registry != nil {
		return fmt.Errorf("model: add %s: %w", layer.Kind(), ErrCompiled)
	}

	index := len(m.records)
	var in tensor.Shape
	layout := nn.BatchMajor
	switch {
	case index > 0:
		last := m.records[index-1].layer
		in = last.OutputShape()
		layout = last.Layout()
	case m.hasInput:
		in = m.inputShape
	default:
		declarer, ok := layer.(nn.InputDeclarer)
		if !ok {
			return &UnbuiltModelError{Index: index, Kind: layer.Kind(), Err: errNoInputShape}
		}
		shape, ok := declarer.DeclaredInputShape()
		if !ok {
			return &UnbuiltModelError{Index: index, Kind: layer.Kind(), Err: errNoInputShape}
		}
		in = shape.WithBatch(1)
	}

	err := layer.Build(nn.BuildContext{
		InputShape: in,
		Layout:     layout,
		Namer:      m.namer,
		Parallel:   m.par,
		Rand:       m.rng,
	})
	if err != nil {
		return &UnbuiltModelError{Index: index, Kind: layer.Kind(), Err: err}
	}

	m.records = append(m.records, record{
		layer:       layer,
		inputShape:  in,
		outputShape: layer.OutputShape(),
		inLayout:    layout,
	})
	return nil
}

// MustAdd is like Add but panics on error.
func (m *Sequential) MustAdd(layers ...nn.Layer) {
	for _, l := range layers {
		if err := m.Add(l); err != nil {
			panic(err)
		}
	}
}

// Compile attaches opt to every trainable layer and fixes the gradient
// registry. A nil opt selects plain SGD with learning rate 0.01.
func (m *Sequential) Compile(opt optim.Optimizer) error {
	if len(m.records) == 0 {
		return fmt.Errorf("model: compile: %w", ErrEmptyModel)
	}
	if opt == nil {
		opt = optim.NewSGD(optim.DefaultSGDConfig())
	}
	trainables := m.trainables()
	opt.Attach(trainables)
	m.opt = opt
	m.registry = nn.NewGradientRegistry(trainables)
	return nil
}

// Compiled reports whether Compile has run.
func (m *Sequential) Compiled() bool { return m.registry != nil }

// Optimizer returns the attached optimizer, or nil before Compile.
func (m *Sequential) Optimizer() optim.Optimizer { return m.opt }

// Registry returns the gradient registry, or nil before Compile.
func (m *Sequential) Registry() *nn.GradientRegistry { return m.registry }

// Len returns the number of layers.
func (m *Sequential) Len() int { return len(m.records) }

// Layer returns the i-th layer.
func (m *Sequential) Layer(i int) nn.Layer { return m.records[i].layer }

// LayerOutput returns the cached forward output of the i-th layer.
func (m *Sequential) LayerOutput(i int) *tensor.Tensor { return m.records[i].layer.Output() }

// LayerGradient returns the cached input gradient of the i-th layer.
func (m *Sequential) LayerGradient(i int) *tensor.Tensor { return m.records[i].layer.Gradient() }

// InputShape returns the per-sample input shape of the first layer.
func (m *Sequential) InputShape() (tensor.Shape, bool) {
	if len(m.records) == 0 {
		return m.inputShape, m.hasInput
	}
	return m.records[0].inputShape, true
}

// OutputShape returns the per-sample output shape of the last layer.
func (m *Sequential) OutputShape() tensor.Shape {
	return m.last().layer.OutputShape()
}

// OutputLayout returns the layout of the model output.
func (m *Sequential) OutputLayout() nn.Layout {
	return m.last().layer.Layout()
}

func (m *Sequential) last() record {
	if len(m.records) == 0 {
		panic("model: " + ErrEmptyModel.Error())
	}
	return m.records[len(m.records)-1]
}

func (m *Sequential) trainables() []nn.Trainable {
	var out []nn.Trainable
	for _, r := range m.records {
		if t, ok := r.layer.(nn.Trainable); ok {
			out = append(out, t)
		}
	}
	return out
}
