package model

import (
	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/tensor"
)

// LayerInfo describes one layer for display.
type LayerInfo struct {
	Name        string
	Kind        nn.Kind
	InputShape  tensor.Shape // per-sample
	OutputShape tensor.Shape // per-sample
	Layout      nn.Layout    // output layout
	Parameters  int          // trainable scalars
}

// Summary returns one entry per layer in model order.
func (m *Sequential) Summary() []LayerInfo {
	out := make([]LayerInfo, len(m.records))
	for i, r := range m.records {
		info := LayerInfo{
			Name:        r.layer.Name(),
			Kind:        r.layer.Kind(),
			InputShape:  r.inputShape,
			OutputShape: r.outputShape,
			Layout:      r.layer.Layout(),
		}
		if t, ok := r.layer.(nn.Trainable); ok {
			info.Parameters = t.NumParameters()
		}
		out[i] = info
	}
	return out
}

// NumParameters returns the number of trainable scalars in the model.
func (m *Sequential) NumParameters() int {
	total := 0
	for _, t := range m.trainables() {
		total += t.NumParameters()
	}
	return total
}
