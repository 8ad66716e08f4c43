package nn

import (
	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// Backward computes Conv2D gradients.
//
// Given dOut = ∂L/∂output (shape [N, F, outH, outW]):
//
//	dBias[f]          = Σ_{n,oh,ow} dOut[n,f,oh,ow]
//	dFilters[f,c,i,j] = Σ_{n,oh,ow} dOut[n,f,oh,ow] * input[n,c,oh*s+i-padTop,ow*s+j-padLeft]
//	dInput[n,c,ih,iw] = Σ_{f,i,j} dOut[n,f,(ih+padTop-i)/s,(iw+padLeft-j)/s] * filters[f,c,i,j]
//
// The input gradient is the transposed convolution of dOut with the filters;
// terms whose (ih+padTop-i) is not a multiple of the stride fall between
// output positions and are skipped.
//
// Unless clipping is disabled, dFilters is rescaled so that
// ||dFilters|| <= Relative*||filters|| and dInput so that ||dInput|| <= Absolute.
func (c *Conv2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	c.checkGrad(grad)
	n := grad.N()

	// Filter and bias gradients: each filter owns its slice of dFilters/dBias.
	parallel.For(c.cfg.Filters, func(f int) {
		c.filterGrad(grad, n, f)
	}, c.par)

	// Input gradient: each (image, channel) plane is written by one worker.
	dX := tensor.New(c.inShape.WithBatch(n))
	parallel.ForBatch(n, c.channels, func(img, ch int) {
		c.inputGrad(grad, dX, img, ch)
	}, c.par)

	if !c.cfg.Clip.Disabled {
		clipRelative(c.filters.Grad, c.filters.Value, c.cfg.Clip.Relative)
		clipNorm(dX, c.cfg.Clip.Absolute)
	}

	c.grad = dX
	return dX
}

// filterGrad fills dBias[f] and dFilters[f, :, :, :].
func (c *Conv2D) filterGrad(grad *tensor.Tensor, n, f int) {
	k, s := c.cfg.KernelSize, c.cfg.Stride
	h, w := c.inShape[2], c.inShape[3]
	plane := c.outH * c.outW
	gd, xd := grad.Data(), c.input.Data()

	var biasGrad float32
	for img := 0; img < n; img++ {
		for _, v := range gd[(img*c.cfg.Filters+f)*plane:][:plane] {
			biasGrad += v
		}
	}
	c.biases.Grad.Data()[f] = biasGrad

	dF := c.filters.Grad.Data()
	for ch := 0; ch < c.channels; ch++ {
		kernel := dF[(f*c.channels+ch)*k*k:][:k*k]
		clear(kernel)
		for img := 0; img < n; img++ {
			inPlane := xd[(img*c.channels+ch)*h*w:][:h*w]
			gPlane := gd[(img*c.cfg.Filters+f)*plane:][:plane]
			for oh := 0; oh < c.outH; oh++ {
				ihBase := oh*s - c.padTop
				for ow := 0; ow < c.outW; ow++ {
					g := gPlane[oh*c.outW+ow]
					if g == 0 {
						continue
					}
					iwBase := ow*s - c.padLeft
					for fh := 0; fh < k; fh++ {
						ih := ihBase + fh
						if ih < 0 || ih >= h {
							continue
						}
						for fw := 0; fw < k; fw++ {
							iw := iwBase + fw
							if iw < 0 || iw >= w {
								continue
							}
							kernel[fh*k+fw] += g * inPlane[ih*w+iw]
						}
					}
				}
			}
		}
	}
}

// inputGrad fills the (img, ch) plane of dX.
func (c *Conv2D) inputGrad(grad, dX *tensor.Tensor, img, ch int) {
	k, s := c.cfg.KernelSize, c.cfg.Stride
	h, w := c.inShape[2], c.inShape[3]
	plane := c.outH * c.outW
	gd, fd := grad.Data(), c.filters.Value.Data()
	out := dX.Data()[(img*c.channels+ch)*h*w:][:h*w]

	for ih := 0; ih < h; ih++ {
		for iw := 0; iw < w; iw++ {
			var sum float32
			for f := 0; f < c.cfg.Filters; f++ {
				kernel := fd[(f*c.channels+ch)*k*k:][:k*k]
				gPlane := gd[(img*c.cfg.Filters+f)*plane:][:plane]
				for fh := 0; fh < k; fh++ {
					rowPos := ih + c.padTop - fh
					if rowPos < 0 || rowPos%s != 0 {
						continue
					}
					oh := rowPos / s
					if oh >= c.outH {
						continue
					}
					for fw := 0; fw < k; fw++ {
						colPos := iw + c.padLeft - fw
						if colPos < 0 || colPos%s != 0 {
							continue
						}
						ow := colPos / s
						if ow >= c.outW {
							continue
						}
						sum += gPlane[oh*c.outW+ow] * kernel[fh*k+fw]
					}
				}
			}
			out[ih*w+iw] = sum
		}
	}
}
