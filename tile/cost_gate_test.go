package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSelectPlan_SingleInputTile_StaysActivation verifies §4.F's degenerate
// case:
// GIVEN a layer whose activation-priority plan has exactly one input tile
// (Tin == 1, so the weight-priority plan carries no reload savings)
// WHEN SelectPlan runs
// THEN the activation-priority plan is kept, since costWeight can only tie
// costActivation, never beat it, at Tin == 1.
func TestSelectPlan_SingleInputTile_StaysActivation(t *testing.T) {
	layer, hw := smallLayer()
	act := BuildActivationPlan(layer, hw)
	require.Equal(t, 1, len(act.L2Tiles[0].InputTiles))

	chosen := SelectPlan(act, hw, DevicePolicy{}, DefaultCostGateConfig())

	assert.Equal(t, act.Kind(), chosen.Kind)
	assert.NotNil(t, chosen.Activation)
	assert.Nil(t, chosen.Weight)
}

// costGateWeightFavoringLayer builds a layer/hw pair shaped so the
// activation-priority plan reloads its (large) weight set across many
// input-tile row stripes, while the weight-priority plan would only pay
// that weight-load cost once — and the per-kernel size exceeds the
// output-channel-plane size, satisfying the Open Question 2 precondition
// (§4.F, §9).
func costGateWeightFavoringLayer() (LayerDescriptor, HWConstants, DevicePolicy) {
	layer := LayerDescriptor{
		Inputs:     Shape{Rows: 22, Cols: 22, Channels: 64},
		Weights:    Shape{Rows: 3, Cols: 3, Channels: 64},
		Outputs:    Shape{Rows: 20, Cols: 20, Channels: 256},
		Stride:     Stride{Rows: 1, Cols: 1},
		InputsHint: TransportACP,
	}
	hw := HWConstants{
		UMEM:         20 << 10,
		SPAD:         2 << 10,
		L2Size:       8 << 20,
		PEInsts:      8,
		Align:        8,
		ElementBytes: 4,
	}
	policy := DevicePolicy{
		Inputs: OperandPolicyConfig{Kind: AcpAlways},
	}
	return layer, hw, policy
}

// TestSelectPlan_PicksWeightPriorityWhenCheaper verifies §4.F's main case:
// GIVEN a layer whose activation plan reloads its weight set across many
// row-tiled input tiles (Tin > 1), many output tiles per input tile
// (To > 1), the inputs defaulting to ACP, and the weight-priority
// precondition satisfied
// WHEN SelectPlan runs
// THEN it selects the weight-priority plan.
func TestSelectPlan_PicksWeightPriorityWhenCheaper(t *testing.T) {
	layer, hw, policy := costGateWeightFavoringLayer()
	act := BuildActivationPlan(layer, hw)
	require.Greater(t, len(act.L2Tiles[0].InputTiles), 1)
	require.Greater(t, len(act.L2Tiles[0].InputTiles[0].OutputTiles), 1)

	chosen := SelectPlan(act, hw, policy, DefaultCostGateConfig())

	assert.Equal(t, "weight-priority", chosen.Kind)
	require.NotNil(t, chosen.Weight)
	assert.Nil(t, chosen.Activation)
}

// TestSelectPlan_PreconditionBlocksWeightPriority verifies the Open
// Question 2 restriction:
// GIVEN a layer otherwise shaped to favor the weight-priority plan, but
// whose output-channel-plane size exceeds its per-kernel size (violating
// weightPriorityPreconditionHolds)
// WHEN SelectPlan runs
// THEN it falls back to the activation-priority plan regardless of the
// raw cost comparison.
func TestSelectPlan_PreconditionBlocksWeightPriority(t *testing.T) {
	layer, hw, policy := costGateWeightFavoringLayer()
	layer.Outputs.Rows = 200
	layer.Outputs.Cols = 200

	act := BuildActivationPlan(layer, hw)
	chosen := SelectPlan(act, hw, policy, DefaultCostGateConfig())

	assert.Equal(t, act.Kind(), chosen.Kind)
	assert.NotNil(t, chosen.Activation)
}
