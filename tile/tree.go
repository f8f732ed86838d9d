package tile

// HWPass is one invocation of the SIMD-width-bounded compute primitive
// (§3, §6). Children are owned by value inside their OutputTile; nothing
// holds a pointer into this slice once the tile finishes building (§9
// Design Notes).
type HWPass struct {
	KernStart        int
	KernEnd          int
	Img              int
	TotalTileOfmaps  int
	Execute          bool
	Upscale          int
	LoadInputsFirst  bool
	UsePipelinedDMA  bool
}

// OutputTile is a kernel-count slice of an input tile's feature maps, used
// by the activation-priority plan (§3).
type OutputTile struct {
	NumOfmaps    int
	OutputShape  Shape
	OutputPad    Padding
	NumHWPasses  int
	Execute      bool
	Upscale      int
	HWPasses     []HWPass
}

// InputTile is a row-range slice of the layer's input activations, used by
// the activation-priority plan (§3).
type InputTile struct {
	InputShape  Shape
	InputPad    int // channel-dimension alignment pad, recomputed for NHWC
	Pad         Padding
	Execute     bool
	Upscale     int
	OutputTiles []OutputTile
}

// L2Tile is a kernel-count slice bounded by L2 capacity, the top level of
// the activation-priority plan (§3).
type L2Tile struct {
	NumKernels int
	Execute    bool
	Upscale    int
	InputTiles []InputTile
}

// ActivationPlan is the activation-priority tile tree: plan -> L2 tiles ->
// input tiles -> output tiles -> HW passes.
type ActivationPlan struct {
	Layer   LayerDescriptor
	L2Tiles []L2Tile
}

// Kind identifies this plan variant for the driver and the cost gate.
func (p *ActivationPlan) Kind() string { return "activation-priority" }

// Release is a documented no-op teardown point (§3 "Lifecycle"; SPEC_FULL.md
// supplemented feature 1, grounded on free_conv_tiling_cfg's bottom-up
// teardown of the tile tree). Go's tiles are owned-by-value slices collected
// by the GC once the plan is unreachable, so there is nothing to free here;
// this method exists so a caller pooling Plan structs across layer calls has
// a single place to hang that pooling logic on later, without every call
// site needing to know the plan is currently GC-only.
func (p *ActivationPlan) Release() {}

// WPInputTile is an input-tile slice owned by a single weight-priority
// output tile (unlike the activation-priority plan, each output tile here
// carries its own input-tile sequence rather than sharing one; §3).
type WPInputTile struct {
	InputShape  Shape
	OutputShape Shape
	InputPad    int
	Pad         Padding
	Execute     bool
	Upscale     int
	HWPasses    []HWPass
}

// WPOutputTile is a kernel-count slice, the top level of the weight-
// priority plan (§3).
type WPOutputTile struct {
	NumOfmaps  int
	Execute    bool
	Upscale    int
	InputTiles []WPInputTile
}

// WeightPlan is the weight-priority tile tree: plan -> output tiles ->
// input tiles -> HW passes (swapped nesting vs. ActivationPlan, §3).
type WeightPlan struct {
	Layer       LayerDescriptor
	OutputTiles []WPOutputTile
}

func (p *WeightPlan) Kind() string { return "weight-priority" }

// Release is the WeightPlan counterpart of ActivationPlan.Release; see its
// doc comment.
func (p *WeightPlan) Release() {}

// ceilDiv computes ceil(a/b) for positive integers.
func ceilDiv(a, b int) int {
	if b <= 0 {
		panic("tile: ceilDiv by non-positive divisor")
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ceilDiv64 is ceilDiv for int64 byte-capacity arithmetic.
func ceilDiv64(a, b int64) int64 {
	if b <= 0 {
		panic("tile: ceilDiv64 by non-positive divisor")
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// floorToMultiple floors v down to the nearest multiple of m (m > 0). If the
// result would be 0 but v > 0, returns m instead (a tile must hold at least
// one PE_INSTS worth of kernels) — matching the source's floor-with-floor-of-
// PE_INSTS behavior.
func floorToMultiple(v, m int) int {
	if m <= 0 {
		panic("tile: floorToMultiple by non-positive modulus")
	}
	f := (v / m) * m
	if f == 0 && v > 0 {
		return m
	}
	return f
}
