package tile

// Operand names which of a layer's two tiled operands a policy decision is
// for. Output transport always follows the layer descriptor unchanged
// (§4.H) and has no oracle of its own.
type Operand int

const (
	OperandInputs Operand = iota
	OperandWeights
)

func (o Operand) String() string {
	if o == OperandWeights {
		return "weights"
	}
	return "inputs"
}

// PlanKind names which tile-plan variant is asking an OperandPolicy to
// resolve a transport, since DynamicDmaAcp is only defined for one operand
// per plan variant (§9 Design Notes, Open Question 1).
type PlanKind int

const (
	PlanActivationPriority PlanKind = iota
	PlanWeightPriority
)

// ResolveContext carries everything an OperandPolicy needs to pick a
// transport for one tile (§4.H). Defined here (rather than in tile/policy)
// so the driver can depend on the OperandPolicy interface without tile
// importing tile/policy — concrete policies live in tile/policy and are
// wired into the driver by the caller.
type ResolveContext struct {
	Operand     Operand
	Plan        PlanKind
	DefaultHint Transport

	// NumInputTiles is the count of input tiles sharing this operand
	// (activation-priority: per L2 tile; weight-priority: per output tile).
	NumInputTiles int
	// NumHWPasses is the HW-pass count of the tile currently being decided.
	NumHWPasses int
	// UseSWPrefetch mirrors DevicePolicy.UseSWPrefetch.
	UseSWPrefetch bool
}

// OperandPolicy decides the transport for one operand of one tile (§4.H).
// Implementations live in tile/policy.
type OperandPolicy interface {
	Resolve(ctx ResolveContext) Transport
}
