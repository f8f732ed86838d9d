package tile

import (
	"github.com/sirupsen/logrus"

	"github.com/convtile/tilesched/tile/workerpool"
)

// OperandBuffer pairs a flat operand buffer with the transport it should be
// presented through. This is the "cleaner contract" §9 Design Notes permits
// in place of the source's nine-slot (three operand classes x three
// transports) argument set: one pointer-plus-transport-tag per operand,
// with AccessConfig carrying the resolved transport for each.
type OperandBuffer struct {
	Data      []float32
	Transport Transport
}

// Scratchpads are the three on-accelerator scratch buffers the compute
// primitive stages operands through (§6).
type Scratchpads struct {
	Inputs  []float32
	Weights []float32
	Outputs []float32
}

// AccessConfig is the resolved per-operand transport choice for one
// invocation of the compute primitive (§6).
type AccessConfig struct {
	Inputs  Transport
	Weights Transport
	Outputs Transport
}

// PassOptions is the per-HW-pass option record the compute primitive reads
// (§6).
type PassOptions struct {
	Img             int
	KernStart       int
	KernEnd         int
	TotalTileOfmaps int
	Execute         bool
	Upscale         int
	LoadInputsFirst bool
	UsePipelinedDMA bool
	ActivationKind  ActivationKind

	// LocalKernStart is this pass's kernel offset within its own output
	// tile's scratch buffer (i.e. relative to the tile's first kernel, not
	// the layer-global kernel index KernStart carries). scratch.Outputs is
	// allocated once per output tile with TotalTileOfmaps channels and
	// shared across all of that tile's HW passes (§4.I), so a primitive
	// must write pass p's channels at [LocalKernStart, LocalKernStart+
	// (KernEnd-KernStart)) within that buffer, not at [KernStart, KernEnd).
	LocalKernStart int
}

// ComputePrimitive is the external, opaque convolution micro-kernel (§1,
// §6). The scheduler trusts it unconditionally: its errors are not
// modelled (§7), so Run has no return value.
type ComputePrimitive interface {
	Run(partial LayerDescriptor, scratch Scratchpads, inputs, weights, outputs OperandBuffer, access AccessConfig, opts PassOptions)
}

// prefetchBandwidthBytesPerNs models a 10 GB/s interconnect: at that rate,
// one byte takes 0.1ns, so delay_ns = bytes / 10 (§8 scenario 6).
const prefetchBandwidthBytesPerNs = 10

// Driver walks a chosen plan and drives the compute primitive (§4.I). It
// owns no plan state of its own; a fresh Driver (or a reused one) can walk
// any number of plans sequentially, matching the source's "plans don't
// outlive one layer call" lifecycle (§3).
type Driver struct {
	HW     HWConstants
	Policy DevicePolicy

	InputPolicy  OperandPolicy
	WeightPolicy OperandPolicy

	Pool      *workerpool.Pool
	Primitive ComputePrimitive
}

// NewDriver builds a Driver. pool may be nil, in which case prefetching is
// silently disabled (equivalent to TraceMode, without requiring the caller
// to also flip that flag).
func NewDriver(hw HWConstants, policy DevicePolicy, inputPolicy, weightPolicy OperandPolicy, pool *workerpool.Pool, primitive ComputePrimitive) *Driver {
	return &Driver{HW: hw, Policy: policy, InputPolicy: inputPolicy, WeightPolicy: weightPolicy, Pool: pool, Primitive: primitive}
}

// Run walks chosen and writes NCHW results for image img into hostResults
// (§4.I, §6 schedule_and_run). hostInputs and hostWeights are already in the
// NHWC-ready layout the tiling math assumes; layout conversion from a host
// NCHW tensor is an external collaborator (§1) performed before this call.
func (d *Driver) Run(chosen ChosenPlan, img int, hostInputs, hostWeights []float32, hostResults []float32) {
	switch {
	case chosen.Activation != nil:
		d.runActivation(chosen.Activation, img, hostInputs, hostWeights, hostResults)
	case chosen.Weight != nil:
		d.runWeight(chosen.Weight, img, hostInputs, hostWeights, hostResults)
	default:
		logrus.Fatalf("tile: ChosenPlan has neither plan variant set")
	}
}

func (d *Driver) resolveCtx(operand Operand, plan PlanKind, defaultHint Transport, numInputTiles, numHWPasses int) ResolveContext {
	return ResolveContext{
		Operand:       operand,
		Plan:          plan,
		DefaultHint:   defaultHint,
		NumInputTiles: numInputTiles,
		NumHWPasses:   numHWPasses,
		UseSWPrefetch: d.Policy.UseSWPrefetch,
	}
}

// dispatchPrefetch fires a background prefetch hint for an operand ahead of
// the tile that needs it (§4.I bullet 2), unless TraceMode or no pool is
// configured. nominalBytes stands in for the real host-buffer region (see
// OperandBuffer / Run doc): addressing into a specific tile's slice of the
// host buffer is a layout-conversion detail out of scope per §1.
func (d *Driver) dispatchPrefetch(transport Transport, nominalBytes int64, singleHWPass bool) {
	if d.Pool == nil || d.Policy.TraceMode || transport != TransportACP {
		return
	}
	if !workerpool.IsWorthPrefetching(int(nominalBytes)) {
		return
	}
	var delayNs int64
	if singleHWPass {
		delayNs = nominalBytes / prefetchBandwidthBytesPerNs
	}
	buf := make([]byte, nominalBytes)
	d.Pool.Dispatch(func(args any) {
		args.(workerpool.Job).Run()
	}, workerpool.Job{Buf: buf, DelayNs: delayNs})
}

// --- activation-priority walk ---

func (d *Driver) runActivation(plan *ActivationPlan, img int, hostInputs, hostWeights, hostResults []float32) {
	layer := plan.Layer

	l2KernStart := 0
	for _, l2 := range plan.L2Tiles {
		if !l2.Execute {
			ShimL2(layer, l2, d.HW)
			l2KernStart += l2.NumKernels
			continue
		}

		resultRowStart := 0
		for ii, it := range l2.InputTiles {
			if !it.Execute {
				ShimInputTile(layer, it, d.HW)
				if len(it.OutputTiles) > 0 {
					resultRowStart += it.OutputTiles[0].OutputShape.Rows
				}
				continue
			}

			if d.Pool != nil && !d.Policy.TraceMode && ii+1 < len(l2.InputTiles) {
				next := l2.InputTiles[ii+1]
				inCtx := d.resolveCtx(OperandInputs, PlanActivationPriority, layer.InputsHint, len(l2.InputTiles), next.OutputTiles[0].NumHWPasses)
				transport := d.InputPolicy.Resolve(inCtx)
				nextBytes := int64(next.InputShape.Rows) * int64(next.InputShape.Cols) * int64(next.InputShape.AlignedChannels()) * d.HW.ElementBytes
				d.dispatchPrefetch(transport, nextBytes, len(next.OutputTiles[0].HWPasses) == 1)
			}

			inputsLoadedForTile := false
			localKernStart := 0
			for oi, ot := range it.OutputTiles {
				if !ot.Execute {
					ShimOutputTile(layer, ot, d.HW)
					localKernStart += ot.NumOfmaps
					continue
				}

				if d.Pool != nil && !d.Policy.TraceMode && oi+1 < len(it.OutputTiles) {
					next := it.OutputTiles[oi+1]
					wCtx := d.resolveCtx(OperandWeights, PlanActivationPriority, layer.WeightsHint, len(l2.InputTiles), next.NumHWPasses)
					transport := d.WeightPolicy.Resolve(wCtx)
					nextBytes := int64(layer.Weights.Rows) * int64(layer.Weights.Cols) * int64(layer.Weights.AlignedChannels()) * int64(next.NumOfmaps) * d.HW.ElementBytes
					d.dispatchPrefetch(transport, nextBytes, len(next.HWPasses) == 1)
				}

				kernStartGlobal := l2KernStart + localKernStart
				d.runActivationOutputTile(layer, ot, img, kernStartGlobal, it, len(l2.InputTiles), !inputsLoadedForTile, resultRowStart, hostInputs, hostWeights, hostResults)
				inputsLoadedForTile = true
				localKernStart += ot.NumOfmaps
			}

			resultRowStart += it.OutputTiles[0].OutputShape.Rows
		}
		l2KernStart += l2.NumKernels
	}
}

func (d *Driver) runActivationOutputTile(layer LayerDescriptor, ot OutputTile, img, kernStartGlobal int, it InputTile, numInputTiles int, loadInputsThisTile bool, resultRowStart int, hostInputs, hostWeights, hostResults []float32) {
	weightCtx := d.resolveCtx(OperandWeights, PlanActivationPriority, layer.WeightsHint, numInputTiles, ot.NumHWPasses)
	weightTransport := d.WeightPolicy.Resolve(weightCtx)

	inputCtx := d.resolveCtx(OperandInputs, PlanActivationPriority, layer.InputsHint, numInputTiles, ot.NumHWPasses)
	inputTransport := d.InputPolicy.Resolve(inputCtx)

	partial := layer.Clone()
	partial.Inputs = it.InputShape
	partial.Pad = it.Pad
	partial.Outputs = ot.OutputShape
	partial.Outputs.Channels = ot.NumOfmaps

	scratch := Scratchpads{
		Inputs:  make([]float32, it.InputShape.Rows*it.InputShape.Cols*it.InputShape.AlignedChannels()),
		Weights: make([]float32, layer.Weights.Rows*layer.Weights.Cols*layer.Weights.AlignedChannels()*ot.NumOfmaps),
		Outputs: make([]float32, ot.OutputShape.Rows*ot.OutputShape.Cols*ot.NumOfmaps),
	}

	for p, pass := range ot.HWPasses {
		if !pass.Execute {
			ShimHWPass(ot.OutputShape, pass, d.HW)
			continue
		}

		partial.InputReq = TransportNone
		partial.WeightsReq = TransportNone
		if p == 0 {
			partial.WeightsReq = weightTransport
			if loadInputsThisTile {
				partial.InputReq = inputTransport
			}
		}

		access := AccessConfig{Inputs: partial.InputReq, Weights: partial.WeightsReq, Outputs: layer.OutputsHint}

		localKernStart := pass.KernStart - ot.HWPasses[0].KernStart
		opts := PassOptions{
			Img:             img,
			KernStart:       kernStartGlobal + localKernStart,
			KernEnd:         kernStartGlobal + (pass.KernEnd - ot.HWPasses[0].KernStart),
			TotalTileOfmaps: pass.TotalTileOfmaps,
			Execute:         pass.Execute,
			Upscale:         pass.Upscale,
			LoadInputsFirst: pass.LoadInputsFirst,
			UsePipelinedDMA: pass.UsePipelinedDMA,
			LocalKernStart:  localKernStart,
		}
		if p == len(ot.HWPasses)-1 && d.Policy.UseHWActivationFunc {
			opts.ActivationKind = layer.Activation
		}

		// Host buffers are the operand source the primitive DMAs/reads from;
		// precisely slicing them to this tile's region is NHWC/NCHW layout
		// math explicitly out of scope (§1) — the opaque primitive is
		// trusted to address its own tile's region within the buffer it's
		// handed (§7: "the scheduler trusts it").
		inputBuf := OperandBuffer{Data: hostInputs, Transport: partial.InputReq}
		weightBuf := OperandBuffer{Data: hostWeights, Transport: partial.WeightsReq}
		outputBuf := OperandBuffer{Data: scratch.Outputs, Transport: layer.OutputsHint}

		d.Primitive.Run(partial, scratch, inputBuf, weightBuf, outputBuf, access, opts)
	}

	stitchNHWCToNCHW(scratch.Outputs, ot.OutputShape, kernStartGlobal, img, resultRowStart, hostResults, layerOutputsDims(layer))
}

// --- weight-priority walk ---

func (d *Driver) runWeight(plan *WeightPlan, img int, hostInputs, hostWeights, hostResults []float32) {
	layer := plan.Layer

	kernStartGlobal := 0
	for _, ot := range plan.OutputTiles {
		if !ot.Execute {
			for _, it := range ot.InputTiles {
				ShimWPInputTile(layer, it, ot.NumOfmaps, d.HW)
			}
			kernStartGlobal += ot.NumOfmaps
			continue
		}

		resultRowStart := 0
		for ii, it := range ot.InputTiles {
			if !it.Execute {
				ShimWPInputTile(layer, it, ot.NumOfmaps, d.HW)
				resultRowStart += it.OutputShape.Rows
				continue
			}

			if d.Pool != nil && !d.Policy.TraceMode && ii+1 < len(ot.InputTiles) {
				next := ot.InputTiles[ii+1]
				inCtx := d.resolveCtx(OperandInputs, PlanWeightPriority, layer.InputsHint, len(ot.InputTiles), len(next.HWPasses))
				transport := d.InputPolicy.Resolve(inCtx)
				nextBytes := int64(next.InputShape.Rows) * int64(next.InputShape.Cols) * int64(next.InputShape.AlignedChannels()) * d.HW.ElementBytes
				d.dispatchPrefetch(transport, nextBytes, len(next.HWPasses) == 1)
			}

			d.runWeightInputTile(layer, it, ot.NumOfmaps, len(ot.InputTiles), img, kernStartGlobal, ii == 0, resultRowStart, hostInputs, hostWeights, hostResults)
			resultRowStart += it.OutputShape.Rows
		}
		kernStartGlobal += ot.NumOfmaps
	}
}

func (d *Driver) runWeightInputTile(layer LayerDescriptor, it WPInputTile, numOfmaps, numInputTiles, img, kernStartGlobal int, isFirstInputTile bool, resultRowStart int, hostInputs, hostWeights, hostResults []float32) {
	weightCtx := d.resolveCtx(OperandWeights, PlanWeightPriority, layer.WeightsHint, numInputTiles, len(it.HWPasses))
	weightTransport := d.WeightPolicy.Resolve(weightCtx)

	inputCtx := d.resolveCtx(OperandInputs, PlanWeightPriority, layer.InputsHint, numInputTiles, len(it.HWPasses))
	inputTransport := d.InputPolicy.Resolve(inputCtx)

	partial := layer.Clone()
	partial.Inputs = it.InputShape
	partial.Pad = it.Pad
	partial.Outputs = it.OutputShape
	partial.Outputs.Channels = numOfmaps

	scratch := Scratchpads{
		Inputs:  make([]float32, it.InputShape.Rows*it.InputShape.Cols*it.InputShape.AlignedChannels()),
		Weights: make([]float32, layer.Weights.Rows*layer.Weights.Cols*layer.Weights.AlignedChannels()*numOfmaps),
		Outputs: make([]float32, it.OutputShape.Rows*it.OutputShape.Cols*numOfmaps),
	}

	for p, pass := range it.HWPasses {
		if !pass.Execute {
			ShimHWPass(it.OutputShape, pass, d.HW)
			continue
		}

		partial.InputReq = TransportNone
		partial.WeightsReq = TransportNone
		if p == 0 {
			partial.InputReq = inputTransport
			if isFirstInputTile {
				partial.WeightsReq = weightTransport
			}
		}

		access := AccessConfig{Inputs: partial.InputReq, Weights: partial.WeightsReq, Outputs: layer.OutputsHint}
		localKernStart := pass.KernStart - it.HWPasses[0].KernStart
		opts := PassOptions{
			Img:             img,
			KernStart:       kernStartGlobal + localKernStart,
			KernEnd:         kernStartGlobal + (pass.KernEnd - it.HWPasses[0].KernStart),
			TotalTileOfmaps: pass.TotalTileOfmaps,
			Execute:         pass.Execute,
			Upscale:         pass.Upscale,
			LoadInputsFirst: pass.LoadInputsFirst,
			UsePipelinedDMA: pass.UsePipelinedDMA,
			LocalKernStart:  localKernStart,
		}
		if p == len(it.HWPasses)-1 && d.Policy.UseHWActivationFunc {
			opts.ActivationKind = layer.Activation
		}

		inputBuf := OperandBuffer{Data: hostInputs, Transport: partial.InputReq}
		weightBuf := OperandBuffer{Data: hostWeights, Transport: partial.WeightsReq}
		outputBuf := OperandBuffer{Data: scratch.Outputs, Transport: layer.OutputsHint}

		d.Primitive.Run(partial, scratch, inputBuf, weightBuf, outputBuf, access, opts)
	}

	stitchNHWCToNCHW(scratch.Outputs, it.OutputShape, kernStartGlobal, img, resultRowStart, hostResults, layerOutputsDims(layer))
}

// outputsDims names the full (untiled) output tensor's dimensions, needed
// to compute NCHW strides when stitching a tile's NHWC scratch result.
type outputsDims struct {
	TotalRows, TotalCols, TotalChannels int
}

func layerOutputsDims(layer LayerDescriptor) outputsDims {
	return outputsDims{TotalRows: layer.Outputs.Rows, TotalCols: layer.Outputs.Cols, TotalChannels: layer.Outputs.Channels}
}

// stitchNHWCToNCHW copies one tile's NHWC scratch output into its final
// NCHW position in the host result buffer (§4.I bullet "Stitch", §3
// "Result stitching writes ... in NCHW order regardless of the NHWC
// tiling"). hostResults is laid out img-major, then channel, then row,
// then col: result[img][k][row][col].
func stitchNHWCToNCHW(scratchNHWC []float32, tileShape Shape, kernStartGlobal, img, resultRowStart int, hostResults []float32, dims outputsDims) {
	rows, cols, kerns := tileShape.Rows, tileShape.Cols, tileShape.Channels
	imgPlaneStride := dims.TotalChannels * dims.TotalRows * dims.TotalCols
	chanPlaneStride := dims.TotalRows * dims.TotalCols

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			nhwcBase := (r*cols + c) * kerns
			for k := 0; k < kerns; k++ {
				dstRow := resultRowStart + r
				dstIdx := img*imgPlaneStride + (kernStartGlobal+k)*chanPlaneStride + dstRow*dims.TotalCols + c
				if dstIdx >= 0 && dstIdx < len(hostResults) {
					hostResults[dstIdx] = scratchNHWC[nhwcBase+k]
				}
			}
		}
	}
}
