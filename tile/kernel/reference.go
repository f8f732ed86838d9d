// Package kernel provides a reference implementation of the compute
// primitive tile.ComputePrimitive (§6): a straightforward dense NHWC
// convolution, the kind of thing the real accelerator micro-kernel is
// assumed to compute exactly but is otherwise opaque to the scheduler
// (§1). Useful for tests and the CLI demo path — the scheduler itself
// never depends on this package, only on the tile.ComputePrimitive
// interface it implements (tile/driver.go defines the interface; this
// avoids an import cycle and mirrors the teacher's sim/LatencyModel +
// sim/latency split).
package kernel

import (
	"math"

	"github.com/convtile/tilesched/tile"
)

// ReferencePrimitive computes each HW pass's output channels by direct
// convolution over the partial layer's tile-local input/weight shapes,
// ignoring transport entirely (a reference kernel has no notion of DMA vs.
// ACP — it always "sees" its operands).
type ReferencePrimitive struct{}

// NewReferencePrimitive returns a ReferencePrimitive.
func NewReferencePrimitive() *ReferencePrimitive { return &ReferencePrimitive{} }

// Run implements tile.ComputePrimitive. It indexes inputs.Data/weights.Data
// as if they held exactly this tile's region (row offset 0, kernel offset
// opts.KernStart) — correct for a single-input-tile, single-image layer;
// a row-tiled layer's host-buffer row offset is a layout detail the real
// primitive would resolve via its own addressing and is out of scope here.
func (ReferencePrimitive) Run(partial tile.LayerDescriptor, scratch tile.Scratchpads, inputs, weights, outputs tile.OperandBuffer, access tile.AccessConfig, opts tile.PassOptions) {
	if !opts.Execute {
		return
	}

	inRows, inCols := partial.Inputs.Rows, partial.Inputs.Cols
	inChans := partial.Inputs.AlignedChannels()
	outRows, outCols := partial.Outputs.Rows, partial.Outputs.Cols
	kRows, kCols := partial.Weights.Rows, partial.Weights.Cols

	sr, sc := partial.Stride.Rows, partial.Stride.Cols
	padTop, padLeft := partial.Pad.Top, partial.Pad.Left

	numKerns := opts.KernEnd - opts.KernStart
	if numKerns <= 0 {
		return
	}

	for or := 0; or < outRows; or++ {
		for oc := 0; oc < outCols; oc++ {
			for k := 0; k < numKerns; k++ {
				var sum float32
				for kr := 0; kr < kRows; kr++ {
					ir := or*sr + kr - padTop
					if ir < 0 || ir >= inRows {
						continue
					}
					for kc := 0; kc < kCols; kc++ {
						ic := oc*sc + kc - padLeft
						if ic < 0 || ic >= inCols {
							continue
						}
						globalKern := opts.KernStart + k
						for ch := 0; ch < partial.Inputs.Channels; ch++ {
							inIdx := (ir*inCols+ic)*inChans + ch
							wIdx := ((globalKern*kRows+kr)*kCols+kc)*partial.Weights.AlignedChannels() + ch
							if inIdx < len(inputs.Data) && wIdx < len(weights.Data) {
								sum += inputs.Data[inIdx] * weights.Data[wIdx]
							}
						}
					}
				}
				sum = applyActivation(sum, opts.ActivationKind)
				// scratch.Outputs is allocated once per output tile with
				// TotalTileOfmaps channels and shared across every HW pass of
				// that tile (§4.I), so this pass must land its channels at
				// its own LocalKernStart offset within that shared buffer,
				// not at an index derived from this pass's own width.
				outIdx := (or*outCols+oc)*opts.TotalTileOfmaps + opts.LocalKernStart + k
				if outIdx < len(scratch.Outputs) {
					scratch.Outputs[outIdx] = sum
				}
			}
		}
	}
}

func applyActivation(v float32, kind tile.ActivationKind) float32 {
	switch kind {
	case tile.ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case tile.ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(v))))
	case tile.ActivationTanh:
		return float32(math.Tanh(float64(v)))
	default:
		return v
	}
}
