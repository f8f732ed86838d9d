package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wpLayer builds the §8 scenario 5 layer: a 14x14x512 input whose whole
// tensor does not fit UMEM while one 512-channel row stripe does, forcing
// num_input_tiles > 1 under the weight-priority plan (Tin > 1).
func wpLayer() (LayerDescriptor, HWConstants) {
	layer := LayerDescriptor{
		Inputs:  Shape{Rows: 14, Cols: 14, Channels: 512},
		Weights: Shape{Rows: 1, Cols: 1, Channels: 512},
		Outputs: Shape{Rows: 14, Cols: 14, Channels: 512},
		Stride:  Stride{Rows: 1, Cols: 1},
		Pad:     Padding{},
	}
	hw := HWConstants{
		UMEM:         32 << 10,
		SPAD:         128 << 10,
		L2Size:       8 << 20,
		PEInsts:      8,
		Align:        8,
		ElementBytes: 4,
	}
	return layer, hw
}

// TestBuildWeightPlan_RowTiled_MultipleInputTilesPerOutputTile verifies §8
// scenario 5:
// GIVEN a layer whose full input tensor does not fit UMEM
// WHEN the weight-priority planner runs
// THEN each output tile owns more than one input tile.
func TestBuildWeightPlan_RowTiled_MultipleInputTilesPerOutputTile(t *testing.T) {
	layer, hw := wpLayer()

	plan := BuildWeightPlan(layer, hw)

	require.NotEmpty(t, plan.OutputTiles)
	for _, ot := range plan.OutputTiles {
		assert.Greater(t, len(ot.InputTiles), 1, "expected Tin > 1 for this row stripe")
	}
}

// TestBuildWeightPlan_CoversFullOutputChannels verifies §8 invariant 1 for
// the weight-priority variant:
// GIVEN any layer
// WHEN the weight-priority planner runs
// THEN summing num_ofmaps over output tiles equals the layer's output
// channels.
func TestBuildWeightPlan_CoversFullOutputChannels(t *testing.T) {
	layer, hw := wpLayer()
	plan := BuildWeightPlan(layer, hw)

	sum := 0
	for _, ot := range plan.OutputTiles {
		sum += ot.NumOfmaps
	}
	assert.Equal(t, layer.Outputs.Channels, sum)
}

// TestBuildWeightPlan_HWPassesPartitionKernStartGlobally verifies §8
// invariant 4 (HW passes contiguously partition the tile's kernel range,
// here expressed in global kernel-index terms since buildWPHWPasses stamps
// kernStartGlobal directly into each pass):
// GIVEN an output tile with multiple HW passes
// WHEN the weight-priority planner runs
// THEN consecutive passes' [KernStart, KernEnd) ranges are contiguous and
// together span exactly the tile's global kernel range.
func TestBuildWeightPlan_HWPassesPartitionKernStartGlobally(t *testing.T) {
	layer, hw := wpLayer()
	plan := BuildWeightPlan(layer, hw)

	for _, ot := range plan.OutputTiles {
		require.NotEmpty(t, ot.InputTiles)
		passes := ot.InputTiles[0].HWPasses
		require.NotEmpty(t, passes)

		wantStart := passes[0].KernStart
		for i, p := range passes {
			assert.Equal(t, wantStart, p.KernStart, "pass %d starts at an unexpected kernel index", i)
			wantStart = p.KernEnd
		}
		assert.Equal(t, passes[0].KernStart+ot.NumOfmaps, passes[len(passes)-1].KernEnd)
	}
}

// TestBuildWeightPlan_EveryInputTileSharesOutputTileOfmaps verifies that
// every input tile within an output tile is stamped with that output
// tile's num_ofmaps, matching the field-copy in buildWPInputTiles.
func TestBuildWeightPlan_EveryInputTileSharesOutputTileOfmaps(t *testing.T) {
	layer, hw := wpLayer()
	plan := BuildWeightPlan(layer, hw)

	for _, ot := range plan.OutputTiles {
		for _, it := range ot.InputTiles {
			assert.Equal(t, ot.NumOfmaps, it.OutputShape.Channels)
		}
	}
}

// TestBuildWeightPlan_SmallLayer_SingleOutputTile verifies the simple case
// mirrors the activation planner's scenario-1 behavior when everything
// fits: one output tile, one input tile.
func TestBuildWeightPlan_SmallLayer_SingleOutputTile(t *testing.T) {
	layer := LayerDescriptor{
		Inputs:  Shape{Rows: 32, Cols: 32, Channels: 16},
		Weights: Shape{Rows: 3, Cols: 3, Channels: 16},
		Outputs: Shape{Rows: 32, Cols: 32, Channels: 32},
		Stride:  Stride{Rows: 1, Cols: 1},
		Pad:     Padding{Top: 1, Bottom: 1, Left: 1, Right: 1},
	}
	hw := HWConstants{
		UMEM:         2 << 20,
		SPAD:         128 << 10,
		L2Size:       2 << 20,
		PEInsts:      8,
		Align:        8,
		ElementBytes: 4,
	}

	plan := BuildWeightPlan(layer, hw)

	require.Len(t, plan.OutputTiles, 1)
	require.Len(t, plan.OutputTiles[0].InputTiles, 1)
}
