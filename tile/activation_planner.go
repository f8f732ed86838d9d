package tile

import (
	"github.com/sirupsen/logrus"
)

// BuildActivationPlan derives the activation-priority tile plan for layer
// (§4.D): L2 tiles -> input tiles -> output tiles -> HW passes, prioritizing
// keeping activations resident across the L2 split before splitting
// kernels.
//
// Configuration-infeasible inputs (a row stripe that can never fit UMEM, an
// output-row plane that can never fit SPAD) are fatal per §7: they abort via
// logrus.Fatalf rather than returning an error, matching "Configuration
// infeasible ... fatal — abort with a diagnostic; do not try to fall back."
func BuildActivationPlan(layer LayerDescriptor, hw HWConstants) *ActivationPlan {
	padded := padInputsForNHWC(layer, hw)

	l2Tiles := buildL2Tiles(padded, hw)
	return &ActivationPlan{Layer: padded, L2Tiles: l2Tiles}
}

// padInputsForNHWC recomputes the channel-dimension alignment pad for
// inputs and weights from hw.Align (§4.D step 1). Output remains NCHW and
// is left untouched.
func padInputsForNHWC(layer LayerDescriptor, hw HWConstants) LayerDescriptor {
	out := layer.Clone()
	out.Inputs.AlignPad = alignPad(layer.Inputs.Channels, hw.Align)
	out.Weights.AlignPad = alignPad(layer.Weights.Channels, hw.Align)
	return out
}

// alignPad returns the smallest non-negative pad making (channels+pad) a
// whole multiple of align (§8 invariant 7).
func alignPad(channels, align int) int {
	if align <= 0 {
		return 0
	}
	rem := channels % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

func packedKernelBytes(layer LayerDescriptor, hw HWConstants) int64 {
	return int64(layer.Weights.Rows) * int64(layer.Weights.Cols) *
		int64(layer.Weights.AlignedChannels()) * hw.ElementBytes
}

func rowStripeBytes(layer LayerDescriptor, hw HWConstants) int64 {
	return int64(layer.Inputs.Cols) * int64(layer.Inputs.AlignedChannels()) * hw.ElementBytes
}

// buildL2Tiles implements §4.D step 2: split output channels into L2-sized
// kernel groups, each bounded to a multiple of PE_INSTS.
func buildL2Tiles(layer LayerDescriptor, hw HWConstants) []L2Tile {
	kernelBytes := packedKernelBytes(layer, hw)
	if kernelBytes <= 0 {
		logrus.Fatalf("tile: degenerate kernel size (%d bytes); cannot plan L2 tiling", kernelBytes)
	}

	maxKernelsInL2 := int(hw.L2Size / kernelBytes)
	maxKernelsPerL2 := floorToMultiple(maxKernelsInL2, hw.PEInsts)
	if maxKernelsPerL2 == 0 {
		logrus.Fatalf("tile: L2 scratchpad (%d bytes) cannot hold even one PE_INSTS-wide kernel group of %d bytes", hw.L2Size, kernelBytes)
	}

	numL2Tiles := ceilDiv(layer.Outputs.Channels, maxKernelsPerL2)

	tiles := make([]L2Tile, numL2Tiles)
	remainingKernels := layer.Outputs.Channels
	for k := 0; k < numL2Tiles; k++ {
		numKernels := maxKernelsPerL2
		if numKernels > remainingKernels {
			numKernels = remainingKernels
		}
		tiles[k] = L2Tile{
			NumKernels: numKernels,
			Execute:    true,
			Upscale:    1,
			InputTiles: buildInputTiles(layer, hw, numKernels),
		}
		remainingKernels -= numKernels
	}
	return tiles
}

// rowTiling holds the per-input-tile row-plan derived in §4.D step 3.
type rowTiling struct {
	numInputTiles int
	maxRowsPerTile int
	halo          int
	advance       int
}

// planRows implements §4.D step 3's capacity check and row split.
func planRows(layer LayerDescriptor, hw HWConstants) rowTiling {
	stripe := rowStripeBytes(layer, hw)
	totalInputBytes := int64(layer.Inputs.Rows) * stripe

	if totalInputBytes <= hw.UMEM {
		return rowTiling{numInputTiles: 1, maxRowsPerTile: layer.Inputs.Rows}
	}

	if int64(layer.Weights.Rows)*stripe > hw.UMEM {
		logrus.Fatalf("tile: a single input row-stripe (%d rows * %d bytes) exceeds UMEM (%d bytes); configuration infeasible",
			layer.Weights.Rows, stripe, hw.UMEM)
	}

	halo := layer.Weights.Rows - layer.Stride.Rows
	maxRowsPerTile := int(hw.UMEM / stripe)
	advance := maxRowsPerTile - halo
	if advance <= 0 {
		logrus.Fatalf("tile: UMEM (%d bytes) too small relative to halo (%d rows); no forward progress possible", hw.UMEM, halo)
	}

	numInputTiles := ceilDiv(layer.Inputs.Rows-halo, advance)

	return rowTiling{
		numInputTiles:  numInputTiles,
		maxRowsPerTile: maxRowsPerTile,
		halo:           halo,
		advance:        advance,
	}
}

// buildInputTiles implements §4.D steps 3-6 for one L2 tile's worth of
// kernels.
func buildInputTiles(layer LayerDescriptor, hw HWConstants, kernelsInL2 int) []InputTile {
	rt := planRows(layer, hw)

	tiles := make([]InputTile, rt.numInputTiles)
	inputRowStart := 0
	for i := 0; i < rt.numInputTiles; i++ {
		isFirst := i == 0
		isLast := i == rt.numInputTiles-1

		var tileInputRows int
		if rt.numInputTiles == 1 {
			tileInputRows = layer.Inputs.Rows
		} else if !isLast {
			tileInputRows = rt.maxRowsPerTile
		} else {
			tileInputRows = layer.Inputs.Rows - inputRowStart
		}

		pad := Padding{Left: layer.Pad.Left, Right: layer.Pad.Right}
		if isFirst {
			pad.Top = layer.Pad.Top
		}
		if isLast {
			pad.Bottom = layer.Pad.Bottom
		}

		outRows := outputRowsForInputTile(layer, rt, tileInputRows, pad, isFirst, isLast)

		outputShape := layer.Outputs
		outputShape.Rows = outRows

		tiles[i] = InputTile{
			InputShape: Shape{
				Rows:     tileInputRows,
				Cols:     layer.Inputs.Cols,
				Channels: layer.Inputs.Channels,
				AlignPad: layer.Inputs.AlignPad,
			},
			InputPad: layer.Inputs.AlignPad,
			Pad:      pad,
			Execute:  true,
			Upscale:  1,
			OutputTiles: buildOutputTiles(layer, hw, kernelsInL2, outputShape),
		}

		inputRowStart += rt.advance
	}
	return tiles
}

// outputRowsForInputTile applies the first/inner/last formulas of §4.D
// step 3.
func outputRowsForInputTile(layer LayerDescriptor, rt rowTiling, tileInputRows int, pad Padding, isFirst, isLast bool) int {
	stride := layer.Stride.Rows
	kernelRows := layer.Weights.Rows
	if rt.numInputTiles == 1 {
		totalRows := tileInputRows + layer.Pad.Top + layer.Pad.Bottom
		return (totalRows-kernelRows)/stride + 1
	}
	if isFirst {
		return (rt.maxRowsPerTile-kernelRows+pad.Top)/stride + 1
	}
	if isLast {
		return (tileInputRows-kernelRows+pad.Bottom)/stride + 1
	}
	return (rt.maxRowsPerTile-kernelRows)/stride + 1
}

// buildOutputTiles implements §4.D step 4: kernel split within one input
// tile, bounded by SPAD capacity.
func buildOutputTiles(layer LayerDescriptor, hw HWConstants, kernelsInL2 int, outputShape Shape) []OutputTile {
	output2DBytes := int64(outputShape.Rows) * int64(outputShape.Cols) * hw.ElementBytes
	if output2DBytes > hw.SPAD {
		logrus.Fatalf("tile: a single output-row plane (%d bytes) exceeds SPAD (%d bytes); configuration infeasible",
			output2DBytes, hw.SPAD)
	}

	maxOfmapsRaw := int(hw.SPAD / output2DBytes)
	maxOfmaps := floorToMultiple(maxOfmapsRaw, hw.PEInsts)
	if maxOfmaps == 0 {
		maxOfmaps = maxOfmapsRaw
	}
	if maxOfmaps == 0 {
		logrus.Fatalf("tile: SPAD (%d bytes) cannot hold even one output-row plane (%d bytes)", hw.SPAD, output2DBytes)
	}

	numOutputTiles := ceilDiv(kernelsInL2, maxOfmaps)
	tiles := make([]OutputTile, numOutputTiles)
	remaining := kernelsInL2
	for j := 0; j < numOutputTiles; j++ {
		numOfmaps := maxOfmaps
		if numOfmaps > remaining {
			numOfmaps = remaining
		}
		tileOutputShape := outputShape
		tileOutputShape.Channels = numOfmaps
		tileOutputShape.AlignPad = 0
		tiles[j] = OutputTile{
			NumOfmaps:   numOfmaps,
			OutputShape: tileOutputShape,
			OutputPad:   Padding{},
			NumHWPasses: ceilDiv(numOfmaps, hw.PEInsts),
			Execute:     true,
			Upscale:     1,
		}
		tiles[j].HWPasses = buildHWPasses(tiles[j], hw)
		remaining -= numOfmaps
	}
	return tiles
}

// buildHWPasses implements §4.D step 5 and §4.D step 6 (invariant 5, and
// load_inputs_first on the first pass of every output tile).
func buildHWPasses(ot OutputTile, hw HWConstants) []HWPass {
	passes := make([]HWPass, ot.NumHWPasses)
	for i := 0; i < ot.NumHWPasses; i++ {
		kernStart := i * hw.PEInsts
		kernEnd := kernStart + hw.PEInsts
		if kernEnd > ot.NumOfmaps {
			kernEnd = ot.NumOfmaps
		}
		passes[i] = HWPass{
			KernStart:       kernStart,
			KernEnd:         kernEnd,
			TotalTileOfmaps: ot.NumOfmaps,
			Execute:         true,
			Upscale:         1,
			LoadInputsFirst: i == 0,
		}
	}
	return passes
}
