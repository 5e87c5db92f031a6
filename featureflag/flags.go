package featureflag

type Flag string

const (
	// Runs a full structural check of a partition's tree after every
	// mutation. Expensive, meant for tests and soak runs.
	FlagStrictInvariantChecks Flag = "STRICT_INVARIANT_CHECKS"

	// Skips exact geometry refinement on queries, results are bounding box
	// candidates only.
	FlagDisableExactRefinement Flag = "DISABLE_EXACT_REFINEMENT"
)
