package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/optim"
	"github.com/born-ml/kiln/internal/serialization"
	"github.com/born-ml/kiln/internal/tensor"
)

// optimizerPrefix namespaces optimizer state tensors in saved files.
const optimizerPrefix = "optimizer/"

// paramKey returns the file key of a layer parameter or buffer.
func paramKey(layer string, p *nn.Parameter) string {
	return layer + "/" + p.Name
}

// persistent returns every parameter and buffer of layer l.
func persistent(l nn.Layer) []*nn.Parameter {
	var out []*nn.Parameter
	if t, ok := l.(nn.Trainable); ok {
		out = append(out, t.Parameters()...)
	}
	if b, ok := l.(nn.Buffered); ok {
		out = append(out, b.Buffers()...)
	}
	return out
}

// Tensors returns everything Save writes, in file order: layer parameters
// and buffers under "<layer>/<param>", then optimizer state under
// "optimizer/<layer>/<param>/<moment>".
func (m *Sequential) Tensors() []serialization.NamedTensor {
	var out []serialization.NamedTensor
	for _, r := range m.records {
		for _, p := range persistent(r.layer) {
			out = append(out, serialization.NamedTensor{Name: paramKey(r.layer.Name(), p), Value: p.Value})
		}
	}
	if m.opt != nil {
		for _, st := range m.opt.State() {
			out = append(out, serialization.NamedTensor{Name: optimizerPrefix + st.Key(), Value: st.Value})
		}
	}
	return out
}

func (m *Sequential) header() serialization.Header {
	names := make([]string, len(m.records))
	for i, r := range m.records {
		names[i] = r.layer.Name()
	}
	in, _ := m.InputShape()
	h := serialization.Header{
		ModelType: "sequential",
		Metadata: map[string]string{
			"name":        m.name,
			"layers":      strings.Join(names, ","),
			"input_shape": in.String(),
		},
	}
	if m.opt != nil {
		h.Optimizer = &serialization.OptimizerMeta{
			Name:         m.opt.Name(),
			Step:         m.opt.Step(),
			LearningRate: m.opt.LearningRate(),
		}
	}
	return h
}

// Save writes all parameters, buffers and (when compiled) optimizer state
// to a .kiln file at path.
func (m *Sequential) Save(path string) (err error) {
	if len(m.records) == 0 {
		return fmt.Errorf("model: save: %w", ErrEmptyModel)
	}
	w, err := serialization.NewWriter(path)
	if err != nil {
		return fmt.Errorf("model: save: %w", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := w.Write(m.Tensors(), m.header()); err != nil {
		return fmt.Errorf("model: save: %w", err)
	}
	return nil
}

// Load restores parameters and buffers from a .kiln file written by Save
// for a model of the same architecture. When the model is compiled and the
// file carries state of the same optimizer, that state and the step counter
// are restored too.
//
// Every stored element count must match the live tensor; a missing tensor
// or a count mismatch fails with serialization.ErrMissingTensor or
// serialization.ErrSizeMismatch. Load is all-or-nothing: on any error the
// model is left untouched.
func (m *Sequential) Load(path string) (err error) {
	r, err := serialization.NewReader(path)
	if err != nil {
		return fmt.Errorf("model: load: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	type pending struct{ dst, src *tensor.Tensor }
	var weights []pending
	for _, rec := range m.records {
		for _, p := range persistent(rec.layer) {
			src, err := loadSized(r, paramKey(rec.layer.Name(), p), p.Value.Len())
			if err != nil {
				return fmt.Errorf("model: load: %w", err)
			}
			weights = append(weights, pending{dst: p.Value, src: src})
		}
	}

	var state []optim.StateTensor
	restoreOpt := m.opt != nil && r.HasOptimizer()
	if restoreOpt {
		meta := r.Header().Optimizer
		if meta.Name != m.opt.Name() {
			return fmt.Errorf("model: load: file has %q state, model uses %q: %w", meta.Name, m.opt.Name(), ErrOptimizerMismatch)
		}
		for _, st := range m.opt.State() {
			value, err := loadSized(r, optimizerPrefix+st.Key(), st.Value.Len())
			if err != nil {
				return fmt.Errorf("model: load: %w", err)
			}
			st.Value = value
			state = append(state, st)
		}
	}

	for _, w := range weights {
		copy(w.dst.Data(), w.src.Data())
	}
	if restoreOpt {
		if err := m.opt.LoadState(r.Header().Optimizer.Step, state); err != nil {
			return fmt.Errorf("model: load: %w", err)
		}
	}
	return nil
}

// loadSized decodes the tensor stored under name into a new allocation and
// checks that it holds n elements.
func loadSized(r *serialization.Reader, name string, n int) (*tensor.Tensor, error) {
	t, err := r.LoadTensor(name)
	if err != nil {
		return nil, err
	}
	if t.Len() != n {
		return nil, fmt.Errorf("%w: %q stores %d elements, live tensor has %d", serialization.ErrSizeMismatch, name, t.Len(), n)
	}
	return t, nil
}

// IsFormatError reports whether err came from a malformed or mismatched
// model file rather than from the filesystem.
func IsFormatError(err error) bool {
	for _, target := range []error{
		serialization.ErrInvalidMagic,
		serialization.ErrUnsupportedVersion,
		serialization.ErrChecksumMismatch,
		serialization.ErrSizeMismatch,
		serialization.ErrMissingTensor,
		serialization.ErrOutOfBounds,
		optim.ErrStateMismatch,
		ErrOptimizerMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
