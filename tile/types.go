// Package tile implements the tiling scheduler for a single convolutional
// layer on a host-plus-accelerator platform: it derives a hierarchical tile
// plan from a layer descriptor, picks between an activation-priority and a
// weight-priority tiling via an analytic cost gate, annotates a sampled
// subset of tiles for fast performance modelling, and drives execution of
// the chosen plan against an external compute primitive.
//
// # Reading Guide
//
//   - types.go: layer descriptor, hardware constants, device policy (§3)
//   - tree.go: the tile tree data model shared by both plan variants
//   - activation_planner.go / weight_planner.go: the two plan variants
//   - cost_gate.go: SelectPlan, the analytic cost comparison
//   - sampling.go: AnnotateActivationPlan / AnnotateWeightPlan, execute/skip
//     + upscale marking
//   - driver.go: Run, the execution driver that walks a chosen plan
//   - sampled_shim.go: memory-touch replay for skipped tiles
//
// Sub-packages implement the extension points: tile/policy (operand
// transport selection), tile/workerpool (the prefetch worker pool), and
// tile/kernel (a reference implementation of the ComputePrimitive interface
// that driver.go defines).
package tile

import "fmt"

// Transport is how an operand reaches the accelerator for a tile.
type Transport int

const (
	// TransportNone means the operand is already resident (no load needed).
	TransportNone Transport = iota
	// TransportDMA is an explicit DMA copy into scratchpad/UMEM.
	TransportDMA
	// TransportACP is a cache-coherent bus read.
	TransportACP
)

func (t Transport) String() string {
	switch t {
	case TransportNone:
		return "NONE"
	case TransportDMA:
		return "DMA"
	case TransportACP:
		return "ACP"
	default:
		return fmt.Sprintf("Transport(%d)", int(t))
	}
}

// ActivationKind names the activation function requested for a layer. The
// activation itself is an external collaborator (out of scope per §1); this
// is only the tag the driver forwards to the compute primitive.
type ActivationKind int

const (
	ActivationNone ActivationKind = iota
	ActivationReLU
	ActivationSigmoid
	ActivationTanh
)

// Shape is an NHWC-oriented tensor shape: rows, cols, channels, plus the
// channel-dimension alignment pad needed to make (channels+AlignPad) a
// whole multiple of the hardware's ALIGN constant.
type Shape struct {
	Rows      int `yaml:"rows"`
	Cols      int `yaml:"cols"`
	Channels  int `yaml:"channels"`
	AlignPad  int `yaml:"align_pad"`
}

// AlignedChannels returns channels+AlignPad, the NHWC-aligned channel count.
func (s Shape) AlignedChannels() int {
	return s.Channels + s.AlignPad
}

// Stride is the (row, col) convolution stride.
type Stride struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// Padding is explicit zero-padding on each edge of a 2D plane.
type Padding struct {
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

// LayerDescriptor describes one convolutional layer invocation (§3).
type LayerDescriptor struct {
	Inputs  Shape `yaml:"inputs"`
	Weights Shape `yaml:"weights"`
	Outputs Shape `yaml:"outputs"`

	Stride Stride  `yaml:"stride"`
	Pad    Padding `yaml:"pad"`

	Activation ActivationKind `yaml:"activation"`

	// Per-operand default transport hint, consulted by tile/policy's
	// DefaultHint oracle.
	InputsHint  Transport `yaml:"inputs_hint"`
	WeightsHint Transport `yaml:"weights_hint"`
	OutputsHint Transport `yaml:"outputs_hint"`

	// Per-pass load requirements, rewritten per-tile by the driver when it
	// clones this descriptor into a partial layer (§4.I). Zero value is
	// TransportNone, meaning "already resident."
	InputReq   Transport `yaml:"-"`
	WeightsReq Transport `yaml:"-"`
	OutputReq  Transport `yaml:"-"`
}

// Clone returns a shallow copy suitable for rewriting into a per-tile
// "partial layer" descriptor, per §4.I.
func (l LayerDescriptor) Clone() LayerDescriptor {
	return l
}

// HWConstants are the fixed accelerator resource limits (§3).
type HWConstants struct {
	// UMEM is the large on-chip activation scratchpad, in bytes.
	UMEM int64 `yaml:"umem"`
	// SPAD is the per-engine kernel/output scratchpad, in bytes. The
	// accelerator has two (kernels, outputs); both share this capacity.
	SPAD int64 `yaml:"spad"`
	// L2Size is the SMV-style private L2 cache capacity bounding how many
	// kernels an L2 tile may hold (§4.D step 2). Distinct from SPAD/UMEM.
	L2Size int64 `yaml:"l2_size"`
	// PEInsts is the SIMD lane count: kernel-count granularity for output
	// tiles and HW passes.
	PEInsts int `yaml:"pe_insts"`
	// Align is the channel-dimension alignment, in elements.
	Align int `yaml:"align"`
	// ElementBytes is the per-element byte width used for tiling capacity
	// math. Half-precision packing itself is out of scope (§1); this is
	// just the width the planner needs to reason about bytes.
	ElementBytes int64 `yaml:"element_bytes"`
}

// LoadPolicyKind selects how an operand's transport is chosen per tile.
type LoadPolicyKind int

const (
	// DefaultHint uses the layer descriptor's own per-operand hint.
	DefaultHint LoadPolicyKind = iota
	DmaAlways
	AcpAlways
	DynamicDmaAcp
)

// OperandPolicyConfig is the per-operand slice of DevicePolicy (§3).
type OperandPolicyConfig struct {
	Kind LoadPolicyKind `yaml:"kind"`
}

// DevicePolicy configures data-movement policy for a layer invocation (§3).
type DevicePolicy struct {
	Inputs  OperandPolicyConfig `yaml:"inputs"`
	Weights OperandPolicyConfig `yaml:"weights"`

	UseSWPrefetch       bool `yaml:"use_sw_prefetch"`
	UseHWActivationFunc bool `yaml:"use_hw_activation_func"`
	UsePipelinedDMA     bool `yaml:"use_pipelined_dma"`

	// TraceMode, when set, makes every prefetch dispatch a no-op (§8
	// scenario 6) — used to capture a deterministic trace of compute-only
	// timing without prefetch-pool noise.
	TraceMode bool `yaml:"trace_mode"`
}

// SamplingConfig configures the sampling annotator (§4.G). Each field is the
// desired count of "extra" executed children beyond the mandatory first and
// last at that tile level; 0 means execute all children at that level.
type SamplingConfig struct {
	SampledL2      int `yaml:"sampled_l2"`
	SampledInput   int `yaml:"sampled_input"`
	SampledOutput  int `yaml:"sampled_output"`
	SampledHWPass  int `yaml:"sampled_hw_pass"`
}
