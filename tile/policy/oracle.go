// Package policy implements the operand transport-policy oracle (§4.H):
// for each of {inputs, weights}, decide whether a tile's operand travels by
// DMA, by cache-coherent bus (ACP), or is already resident (NONE).
//
// This mirrors the teacher's sim/policy package: a small interface plus a
// factory that switches on a configured policy kind, the way
// sim/policy.AdmissionPolicy and sim/policy.NewAdmissionPolicy work. The
// tile.OperandPolicy interface itself is defined in package tile (so the
// driver can depend on it without an import cycle back into this package);
// this package supplies the concrete implementations and the factory.
package policy

import (
	"fmt"

	"github.com/convtile/tilesched/tile"
)

// DefaultHintPolicy returns the layer descriptor's own per-operand hint,
// unchanged.
type DefaultHintPolicy struct{}

func (DefaultHintPolicy) Resolve(ctx tile.ResolveContext) tile.Transport {
	return ctx.DefaultHint
}

// ConstantPolicy always returns the same transport, for DmaAlways/AcpAlways.
type ConstantPolicy struct {
	Transport tile.Transport
}

func (c ConstantPolicy) Resolve(tile.ResolveContext) tile.Transport {
	return c.Transport
}

// DynamicDmaAcpPolicy implements §4.H's DynamicDmaAcp rule. It is only
// defined for weights in the activation-priority plan and for inputs in
// the weight-priority plan (§9 Design Notes, Open Question 1); resolving it
// for the other operand/plan combination panics rather than guessing a
// behavior the source never defines.
type DynamicDmaAcpPolicy struct{}

func (DynamicDmaAcpPolicy) Resolve(ctx tile.ResolveContext) tile.Transport {
	switch {
	case ctx.Operand == tile.OperandWeights && ctx.Plan == tile.PlanActivationPriority:
		return dynamicDmaAcp(ctx)
	case ctx.Operand == tile.OperandInputs && ctx.Plan == tile.PlanWeightPriority:
		return dynamicDmaAcp(ctx)
	default:
		panic(fmt.Sprintf("policy: DynamicDmaAcp is undefined for %s in the %v plan; source behavior preserved, not guessed (see DESIGN.md)", ctx.Operand, ctx.Plan))
	}
}

// dynamicDmaAcp is the shared decision: if the operand isn't reused across
// input tiles (NumInputTiles == 1), prefer DMA unless software prefetching
// is enabled and there are enough HW passes for double buffering to pay
// off; otherwise prefer ACP, since the operand is already being re-read
// from the coherent bus across input tiles anyway.
func dynamicDmaAcp(ctx tile.ResolveContext) tile.Transport {
	if ctx.NumInputTiles == 1 {
		if ctx.UseSWPrefetch && ctx.NumHWPasses >= 2 {
			return tile.TransportACP
		}
		return tile.TransportDMA
	}
	return tile.TransportACP
}

// NewOperandPolicy builds an OperandPolicy from a configured kind.
func NewOperandPolicy(kind tile.LoadPolicyKind) tile.OperandPolicy {
	switch kind {
	case tile.DefaultHint:
		return DefaultHintPolicy{}
	case tile.DmaAlways:
		return ConstantPolicy{Transport: tile.TransportDMA}
	case tile.AcpAlways:
		return ConstantPolicy{Transport: tile.TransportACP}
	case tile.DynamicDmaAcp:
		return DynamicDmaAcpPolicy{}
	default:
		panic(fmt.Sprintf("policy: unknown operand load policy kind %v", kind))
	}
}
