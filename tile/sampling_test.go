package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnnotateLevel_ZeroCapExecutesEverything verifies §4.G's "0 means
// execute all children at that level":
// GIVEN any sibling count and cap == 0
// WHEN annotateLevel runs
// THEN every child executes with upscale 1.
func TestAnnotateLevel_ZeroCapExecutesEverything(t *testing.T) {
	execute, upscale := annotateLevel(7, 0)

	require.Len(t, execute, 7)
	for i := range execute {
		assert.True(t, execute[i], "child %d", i)
		assert.Equal(t, 1, upscale[i], "child %d", i)
	}
}

// TestAnnotateLevel_SmallNExecutesEverythingRegardlessOfCap verifies the
// n <= 2 special case:
// GIVEN two (or fewer) siblings and a non-zero cap
// WHEN annotateLevel runs
// THEN both still execute, since first and last are always mandatory and
// there's no "middle" to sample away.
func TestAnnotateLevel_SmallNExecutesEverythingRegardlessOfCap(t *testing.T) {
	execute, upscale := annotateLevel(2, 1)

	assert.Equal(t, []bool{true, true}, execute)
	assert.Equal(t, []int{1, 1}, upscale)
}

// TestAnnotateLevel_CarvesGroupsByCap verifies §4.G's grouping behavior and
// §8 invariant 6 (upscale conservation) for a case that exercises more than
// one carve iteration:
// GIVEN 10 siblings and a cap of 3
// WHEN annotateLevel runs
// THEN the first and last child execute with upscale 1, the carved groups
// in between execute their first member with the group's size as upscale
// and skip the rest, and the upscales sum to the sibling count.
func TestAnnotateLevel_CarvesGroupsByCap(t *testing.T) {
	execute, upscale := annotateLevel(10, 3)

	assert.Equal(t,
		[]bool{true, true, false, false, true, false, true, false, true, true},
		execute)
	assert.Equal(t,
		[]int{1, 3, 0, 0, 2, 0, 2, 0, 1, 1},
		upscale)
	assert.True(t, checkUpscaleConservation(upscale))
}

// TestAnnotateLevel_ZeroSiblings verifies the degenerate empty case doesn't
// panic and returns empty slices.
func TestAnnotateLevel_ZeroSiblings(t *testing.T) {
	execute, upscale := annotateLevel(0, 4)
	assert.Empty(t, execute)
	assert.Empty(t, upscale)
}

// TestCheckUpscaleConservation_DetectsViolation verifies §8 invariant 6's
// check actually fails when the invariant doesn't hold.
func TestCheckUpscaleConservation_DetectsViolation(t *testing.T) {
	assert.False(t, checkUpscaleConservation([]int{1, 2, 1}))
	assert.True(t, checkUpscaleConservation([]int{1, 2, 0}))
}

// TestAnnotateActivationPlan_NoSamplingExecutesEverything verifies that an
// all-zero SamplingConfig leaves a freshly built activation plan fully
// executed at every level.
func TestAnnotateActivationPlan_NoSamplingExecutesEverything(t *testing.T) {
	layer, hw := smallLayer()
	plan := BuildActivationPlan(layer, hw)

	AnnotateActivationPlan(plan, SamplingConfig{})

	for _, l2 := range plan.L2Tiles {
		assert.True(t, l2.Execute)
		assert.Equal(t, 1, l2.Upscale)
		for _, it := range l2.InputTiles {
			assert.True(t, it.Execute)
			for _, ot := range it.OutputTiles {
				assert.True(t, ot.Execute)
				for _, hp := range ot.HWPasses {
					assert.True(t, hp.Execute)
					assert.Equal(t, 1, hp.Upscale)
				}
			}
		}
	}
}

// TestAnnotateWeightPlan_UpscaleConservedAtOutputAndInputLevels verifies §8
// invariant 6 holds across a real weight-priority plan's output-tile and
// input-tile levels once sampling is applied.
func TestAnnotateWeightPlan_UpscaleConservedAtOutputAndInputLevels(t *testing.T) {
	layer, hw := wpLayer()
	plan := BuildWeightPlan(layer, hw)

	AnnotateWeightPlan(plan, SamplingConfig{SampledOutput: 2, SampledInput: 2, SampledHWPass: 2})

	sum := 0
	for _, ot := range plan.OutputTiles {
		sum += ot.Upscale
	}
	assert.Equal(t, len(plan.OutputTiles), sum)

	for _, ot := range plan.OutputTiles {
		innerSum := 0
		for _, it := range ot.InputTiles {
			innerSum += it.Upscale
		}
		assert.Equal(t, len(ot.InputTiles), innerSum)
	}
}
