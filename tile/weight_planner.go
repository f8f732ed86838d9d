package tile

import "github.com/sirupsen/logrus"

// BuildWeightPlan derives the weight-priority tile plan for layer (§4.E):
// output tiles -> input tiles -> HW passes, prioritizing keeping weights
// resident across the kernel split before splitting rows. Each output tile
// owns its own input-tile sequence (unlike the activation-priority plan,
// which shares one input-tile sequence per L2 tile).
func BuildWeightPlan(layer LayerDescriptor, hw HWConstants) *WeightPlan {
	padded := padInputsForNHWC(layer, hw)

	maxOfmaps := weightPriorityMaxOfmaps(padded, hw)
	numOutputTiles := ceilDiv(padded.Outputs.Channels, maxOfmaps)

	rt := planRows(padded, hw)

	tiles := make([]WPOutputTile, numOutputTiles)
	remaining := padded.Outputs.Channels
	kernStartGlobal := 0
	for j := 0; j < numOutputTiles; j++ {
		numOfmaps := maxOfmaps
		if numOfmaps > remaining {
			numOfmaps = remaining
		}
		tiles[j] = WPOutputTile{
			NumOfmaps:  numOfmaps,
			Execute:    true,
			Upscale:    1,
			InputTiles: buildWPInputTiles(padded, hw, rt, numOfmaps, kernStartGlobal),
		}
		remaining -= numOfmaps
		kernStartGlobal += numOfmaps
	}
	return &WeightPlan{Layer: padded, OutputTiles: tiles}
}

// weightPriorityMaxOfmaps implements the kernels-per-output-tile decision of
// §4.E, using the layer's full (un-row-tiled) output plane size.
func weightPriorityMaxOfmaps(layer LayerDescriptor, hw HWConstants) int {
	output2DBytes := int64(layer.Outputs.Rows) * int64(layer.Outputs.Cols) * hw.ElementBytes
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
	return maxOfmaps
}

// buildWPInputTiles builds the row-tiled input-tile sequence owned by one
// weight-priority output tile. The rule that weights are loaded only on the
// first input tile of the output tile (§4.E last sentence; SPEC_FULL.md
// supplemented feature 4, grounded on convolution_wt.c) is applied by the
// driver's runWeightInputTile, not here.
func buildWPInputTiles(layer LayerDescriptor, hw HWConstants, rt rowTiling, numOfmaps, kernStartGlobal int) []WPInputTile {
	tiles := make([]WPInputTile, rt.numInputTiles)
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
		outputShape.Channels = numOfmaps
		outputShape.AlignPad = 0

		numHWPasses := ceilDiv(numOfmaps, hw.PEInsts)

		tiles[i] = WPInputTile{
			InputShape: Shape{
				Rows:     tileInputRows,
				Cols:     layer.Inputs.Cols,
				Channels: layer.Inputs.Channels,
				AlignPad: layer.Inputs.AlignPad,
			},
			OutputShape: outputShape,
			InputPad:    layer.Inputs.AlignPad,
			Pad:         pad,
			Execute:     true,
			Upscale:     1,
			HWPasses:    buildWPHWPasses(numOfmaps, numHWPasses, kernStartGlobal, hw),
		}

		inputRowStart += rt.advance
	}
	return tiles
}

func buildWPHWPasses(numOfmaps, numHWPasses, kernStartGlobal int, hw HWConstants) []HWPass {
	passes := make([]HWPass, numHWPasses)
	for i := 0; i < numHWPasses; i++ {
		kernStart := i * hw.PEInsts
		kernEnd := kernStart + hw.PEInsts
		if kernEnd > numOfmaps {
			kernEnd = numOfmaps
		}
		passes[i] = HWPass{
			KernStart:       kernStartGlobal + kernStart,
			KernEnd:         kernStartGlobal + kernEnd,
			TotalTileOfmaps: numOfmaps,
			Execute:         true,
			Upscale:         1,
			LoadInputsFirst: false,
		}
	}
	return passes
}
