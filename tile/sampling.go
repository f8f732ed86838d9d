package tile

import "gonum.org/v1/gonum/floats"

// annotateLevel implements §4.G for one list of n siblings at a single
// tile level, given a sampling cap (0 = execute all). It returns, per
// child, whether it executes and its upscale factor.
//
// The first and last child always execute with upscale 1 (§8 invariant 8).
// Remaining "budget" (n-1, i.e. every child except the first) is consumed
// by repeatedly carving off a group of size ceil(remaining/cap) — clipped
// so at least one slot is always left for the mandatory last child — and
// marking its first member executed (with an upscale equal to the group
// size) and the rest skipped (upscale 0). The single remaining slot once
// the loop can no longer carve off more than the reserved last position is
// the last child itself.
func annotateLevel(n, cap int) (execute []bool, upscale []int) {
	execute = make([]bool, n)
	upscale = make([]int, n)

	if n == 0 {
		return
	}
	if cap == 0 || n <= 2 {
		for i := range execute {
			execute[i] = true
			upscale[i] = 1
		}
		return
	}

	execute[0] = true
	upscale[0] = 1

	remaining := n - 1
	i := 1
	for remaining > 1 {
		up := ceilDiv(remaining, cap)
		if up > remaining-1 {
			up = remaining - 1
		}
		if up < 1 {
			up = 1
		}
		execute[i] = true
		upscale[i] = up
		for j := 1; j < up; j++ {
			execute[i+j] = false
			upscale[i+j] = 0
		}
		i += up
		remaining -= up
	}

	execute[n-1] = true
	upscale[n-1] = 1
	return
}

// checkUpscaleConservation verifies §8 invariant 6 (sum of upscale over
// children equals total children) using gonum's reduction helper, the way
// the rest of the tiling math in this package leans on small numeric
// utilities rather than hand-rolled loops wherever a real one is imported.
func checkUpscaleConservation(upscale []int) bool {
	floatUpscale := make([]float64, len(upscale))
	for i, u := range upscale {
		floatUpscale[i] = float64(u)
	}
	return int(floats.Sum(floatUpscale)) == len(upscale)
}

// AnnotateActivationPlan marks execute/skip and upscale on every level of
// an activation-priority plan (§4.G).
func AnnotateActivationPlan(plan *ActivationPlan, cfg SamplingConfig) {
	n := len(plan.L2Tiles)
	execL2, upL2 := annotateLevel(n, cfg.SampledL2)
	for k := range plan.L2Tiles {
		plan.L2Tiles[k].Execute = execL2[k]
		plan.L2Tiles[k].Upscale = upL2[k]

		inputTiles := plan.L2Tiles[k].InputTiles
		execIn, upIn := annotateLevel(len(inputTiles), cfg.SampledInput)
		for i := range inputTiles {
			inputTiles[i].Execute = execIn[i]
			inputTiles[i].Upscale = upIn[i]

			outputTiles := inputTiles[i].OutputTiles
			execOut, upOut := annotateLevel(len(outputTiles), cfg.SampledOutput)
			for j := range outputTiles {
				outputTiles[j].Execute = execOut[j]
				outputTiles[j].Upscale = upOut[j]

				hwPasses := outputTiles[j].HWPasses
				execHW, upHW := annotateLevel(len(hwPasses), cfg.SampledHWPass)
				for p := range hwPasses {
					hwPasses[p].Execute = execHW[p]
					hwPasses[p].Upscale = upHW[p]
				}
			}
		}
	}
}

// AnnotateWeightPlan marks execute/skip and upscale on every level of a
// weight-priority plan (§4.G).
func AnnotateWeightPlan(plan *WeightPlan, cfg SamplingConfig) {
	n := len(plan.OutputTiles)
	execOut, upOut := annotateLevel(n, cfg.SampledOutput)
	for j := range plan.OutputTiles {
		plan.OutputTiles[j].Execute = execOut[j]
		plan.OutputTiles[j].Upscale = upOut[j]

		inputTiles := plan.OutputTiles[j].InputTiles
		execIn, upIn := annotateLevel(len(inputTiles), cfg.SampledInput)
		for i := range inputTiles {
			inputTiles[i].Execute = execIn[i]
			inputTiles[i].Upscale = upIn[i]

			hwPasses := inputTiles[i].HWPasses
			execHW, upHW := annotateLevel(len(hwPasses), cfg.SampledHWPass)
			for p := range hwPasses {
				hwPasses[p].Execute = execHW[p]
				hwPasses[p].Upscale = upHW[p]
			}
		}
	}
}
