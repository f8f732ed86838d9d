package tile

import (
	"fmt"
	"io"
)

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// DumpPlan pretty-prints a chosen plan's tile tree, grounded on
// print_conv_tiling_cfg's structural INFO_MSG dump in the source (indented
// nesting, execute/upscale per tile, shapes and padding inline).
func DumpPlan(w io.Writer, chosen ChosenPlan) {
	switch {
	case chosen.Activation != nil:
		dumpActivationPlan(w, chosen.Activation)
	case chosen.Weight != nil:
		dumpWeightPlan(w, chosen.Weight)
	default:
		fmt.Fprintln(w, "(empty plan)")
	}
}

func dumpActivationPlan(w io.Writer, plan *ActivationPlan) {
	fmt.Fprintf(w, "activation-priority plan: %d L2 tile(s)\n", len(plan.L2Tiles))
	for i, l2 := range plan.L2Tiles {
		fmt.Fprintf(w, "L2 tile %d\n  execute: %s  represents: %d L2 tile(s)  kernels: %d  input tiles: %d\n",
			i, yesno(l2.Execute), l2.Upscale, l2.NumKernels, len(l2.InputTiles))
		for j, it := range l2.InputTiles {
			fmt.Fprintf(w, "  + input tile %d\n      execute: %s  represents: %d  shape: %dx%dx%d(+%d)  pad: t%d b%d l%d r%d\n",
				j, yesno(it.Execute), it.Upscale, it.InputShape.Rows, it.InputShape.Cols, it.InputShape.Channels, it.InputShape.AlignPad,
				it.Pad.Top, it.Pad.Bottom, it.Pad.Left, it.Pad.Right)
			for k, ot := range it.OutputTiles {
				fmt.Fprintf(w, "      - output tile %d: execute=%s represents=%d ofmaps=%d hw_passes=%d\n",
					k, yesno(ot.Execute), ot.Upscale, ot.NumOfmaps, len(ot.HWPasses))
				for p, pass := range ot.HWPasses {
					fmt.Fprintf(w, "          hw pass %d: execute=%s represents=%d kernels=[%d,%d) load_inputs_first=%s\n",
						p, yesno(pass.Execute), pass.Upscale, pass.KernStart, pass.KernEnd, yesno(pass.LoadInputsFirst))
				}
			}
		}
	}
}

func dumpWeightPlan(w io.Writer, plan *WeightPlan) {
	fmt.Fprintf(w, "weight-priority plan: %d output tile(s)\n", len(plan.OutputTiles))
	for i, ot := range plan.OutputTiles {
		fmt.Fprintf(w, "output tile %d\n  execute: %s  represents: %d  ofmaps: %d  input tiles: %d\n",
			i, yesno(ot.Execute), ot.Upscale, ot.NumOfmaps, len(ot.InputTiles))
		for j, it := range ot.InputTiles {
			fmt.Fprintf(w, "  + input tile %d: execute=%s represents=%d in_shape=%dx%dx%d(+%d) out_shape=%dx%dx%d hw_passes=%d\n",
				j, yesno(it.Execute), it.Upscale, it.InputShape.Rows, it.InputShape.Cols, it.InputShape.Channels, it.InputShape.AlignPad,
				it.OutputShape.Rows, it.OutputShape.Cols, it.OutputShape.Channels, len(it.HWPasses))
			for p, pass := range it.HWPasses {
				fmt.Fprintf(w, "      hw pass %d: execute=%s represents=%d kernels=[%d,%d)\n",
					p, yesno(pass.Execute), pass.Upscale, pass.KernStart, pass.KernEnd)
			}
		}
	}
}
