package tile

import "gonum.org/v1/gonum/floats"

// CostGateConfig carries the latency constants the analytic cost model in
// §4.F compares plans with. Defaults are provided by DefaultCostGateConfig;
// callers with calibrated hardware numbers can override them.
type CostGateConfig struct {
	// DRAMLatencyNsPerByte is Ldram: the fixed per-byte DRAM latency constant.
	DRAMLatencyNsPerByte float64
	// L2LatencyNsPerByte is Ll2, used in place of Ldram when the weight-
	// priority plan's repeated input reloads are served by an L2-coherent
	// bus instead of DRAM (i.e. inputs default to ACP).
	L2LatencyNsPerByte float64
}

// DefaultCostGateConfig returns representative DRAM/L2 latency constants.
// Ll2 is lower than Ldram because a coherent on-chip bus read is cheaper
// than a round trip to DRAM.
func DefaultCostGateConfig() CostGateConfig {
	return CostGateConfig{
		DRAMLatencyNsPerByte: 1.0,
		L2LatencyNsPerByte:   0.25,
	}
}

// ChosenPlan is the output of SelectPlan: exactly one of Activation or
// Weight is non-nil.
type ChosenPlan struct {
	Kind       string
	Activation *ActivationPlan
	Weight     *WeightPlan
}

// Release tears down whichever plan variant was chosen (§3 "Lifecycle").
func (c ChosenPlan) Release() {
	if c.Activation != nil {
		c.Activation.Release()
	}
	if c.Weight != nil {
		c.Weight.Release()
	}
}

// SelectPlan picks between act and a freshly-built weight-priority plan by
// comparing analytic costs derived from act (§4.F). Only the activation-
// priority plan is built by the caller; the weight-priority tree is
// constructed here, and only if the cost comparison and precondition both
// favor it, so building it is not paid unconditionally.
func SelectPlan(act *ActivationPlan, hw HWConstants, policy DevicePolicy, cfg CostGateConfig) ChosenPlan {
	if len(act.L2Tiles) == 0 || len(act.L2Tiles[0].InputTiles) == 0 {
		return ChosenPlan{Kind: act.Kind(), Activation: act}
	}

	tile0 := act.L2Tiles[0]
	tin := len(tile0.InputTiles)
	to := len(tile0.InputTiles[0].OutputTiles)

	layer := act.Layer
	weightBytes := float64(layer.Weights.Rows) * float64(layer.Weights.Cols) *
		float64(layer.Weights.AlignedChannels()) * float64(layer.Outputs.Channels) * float64(hw.ElementBytes)
	inputBytes := float64(layer.Inputs.Rows) * float64(layer.Inputs.Cols) *
		float64(layer.Inputs.AlignedChannels()) * float64(hw.ElementBytes)

	ldram := cfg.DRAMLatencyNsPerByte
	ll2 := ldram
	if inputsDefaultToACP(layer, policy) {
		ll2 = cfg.L2LatencyNsPerByte
	}

	costActivation := floats.Sum([]float64{
		weightBytes * float64(tin) * ldram,
		inputBytes * ldram,
	})

	var costWeight float64
	if tin > 1 {
		costWeight = floats.Sum([]float64{
			weightBytes * ldram,
			inputBytes * ldram,
			float64(to-1) * inputBytes * ll2,
		})
	} else {
		costWeight = floats.Sum([]float64{
			weightBytes * ldram,
			inputBytes * ldram,
		})
	}

	if costWeight < costActivation && weightPriorityPreconditionHolds(layer, hw) {
		wp := BuildWeightPlan(layer, hw)
		return ChosenPlan{Kind: wp.Kind(), Weight: wp}
	}
	return ChosenPlan{Kind: act.Kind(), Activation: act}
}

// inputsDefaultToACP reports whether the layer's inputs resolve to ACP
// transport by default, per §4.F's "unless the inputs default to ACP."
func inputsDefaultToACP(layer LayerDescriptor, policy DevicePolicy) bool {
	switch policy.Inputs.Kind {
	case AcpAlways:
		return true
	case DefaultHint:
		return layer.InputsHint == TransportACP
	default:
		return false
	}
}

// weightPriorityPreconditionHolds is the Open Question 2 restriction
// (§9 Design Notes, §4.F): the weight-priority driver currently requires
// the per-kernel size to exceed the output-channel-plane size. This is
// preserved as an implementation restriction inherited from the source,
// not removed — see DESIGN.md.
func weightPriorityPreconditionHolds(layer LayerDescriptor, hw HWConstants) bool {
	kernelSize := float64(layer.Weights.Rows) * float64(layer.Weights.Cols) *
		float64(layer.Weights.AlignedChannels()) * float64(hw.ElementBytes)
	outputPlaneSize := float64(layer.Outputs.Rows) * float64(layer.Outputs.Cols) * float64(hw.ElementBytes)
	return kernelSize > outputPlaneSize
}
