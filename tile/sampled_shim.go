package tile

import "github.com/convtile/tilesched/tile/workerpool"

// IgnoredProfiling runs fn while marking its memory traffic as outside
// normal performance accounting (§4.J). Metrics collection is an external
// collaborator (§1); this is the seam such a collector wraps to avoid
// double-counting a sampled tile's replayed access pattern.
func IgnoredProfiling(fn func()) { fn() }

// touchBytes synthesizes a throwaway buffer of n bytes and runs it through
// the same cache-touch helper real prefetch jobs use (§9 "volatile prefetch
// load"), standing in for a dummy read or write against the host buffer
// region a skipped tile would have accessed. Host-buffer addressing for a
// skipped tile is itself a layout-conversion concern (NCHW<->NHWC indexing
// is out of scope per §1), so the shim replays the access pattern's byte
// volume rather than touching the real buffer at a precise offset.
func touchBytes(n int64) {
	if n <= 0 {
		return
	}
	workerpool.Job{Buf: make([]byte, n)}.Run()
}

// ShimL2 replays the memory-access pattern a skipped L2 tile would have
// issued: one dummy read of its full kernel set's weights.
func ShimL2(layer LayerDescriptor, l2 L2Tile, hw HWConstants) {
	IgnoredProfiling(func() {
		weightBytes := int64(layer.Weights.Rows) * int64(layer.Weights.Cols) *
			int64(layer.Weights.AlignedChannels()) * int64(l2.NumKernels) * hw.ElementBytes
		touchBytes(weightBytes)
	})
}

// ShimInputTile replays a skipped input tile's dummy input read.
func ShimInputTile(layer LayerDescriptor, it InputTile, hw HWConstants) {
	IgnoredProfiling(func() {
		inputBytes := int64(it.InputShape.Rows) * int64(it.InputShape.Cols) *
			int64(it.InputShape.AlignedChannels()) * hw.ElementBytes
		touchBytes(inputBytes)
	})
}

// ShimOutputTile replays a skipped output tile's dummy weight read and, per
// output-channel plane, a dummy output write.
func ShimOutputTile(layer LayerDescriptor, ot OutputTile, hw HWConstants) {
	IgnoredProfiling(func() {
		weightBytes := int64(layer.Weights.Rows) * int64(layer.Weights.Cols) *
			int64(layer.Weights.AlignedChannels()) * int64(ot.NumOfmaps) * hw.ElementBytes
		touchBytes(weightBytes)

		planeBytes := int64(ot.OutputShape.Rows) * int64(ot.OutputShape.Cols) * hw.ElementBytes
		for k := 0; k < ot.NumOfmaps; k++ {
			touchBytes(planeBytes)
		}
	})
}

// ShimWPInputTile replays a skipped weight-priority input tile's dummy
// input read and per-output-channel-plane dummy output write.
func ShimWPInputTile(layer LayerDescriptor, it WPInputTile, numOfmaps int, hw HWConstants) {
	IgnoredProfiling(func() {
		inputBytes := int64(it.InputShape.Rows) * int64(it.InputShape.Cols) *
			int64(it.InputShape.AlignedChannels()) * hw.ElementBytes
		touchBytes(inputBytes)

		planeBytes := int64(it.OutputShape.Rows) * int64(it.OutputShape.Cols) * hw.ElementBytes
		for k := 0; k < numOfmaps; k++ {
			touchBytes(planeBytes)
		}
	})
}

// ShimHWPass replays a skipped HW pass's dummy per-kernel output write.
func ShimHWPass(outputShape Shape, pass HWPass, hw HWConstants) {
	IgnoredProfiling(func() {
		planeBytes := int64(outputShape.Rows) * int64(outputShape.Cols) * hw.ElementBytes
		for k := pass.KernStart; k < pass.KernEnd; k++ {
			touchBytes(planeBytes)
		}
	})
}
