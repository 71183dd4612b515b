package tracking

// Result kinds.
const (
	ResultNoOp = iota
	ResultLinkRecorded
	ResultStatusChanged
	ResultCompletionRecorded
)

// Result - outcome of one engine transition.
type Result struct {
	Kind int

	// LinkCount - total recorded links, for ResultLinkRecorded.
	LinkCount int

	// From, To - old and new status, for ResultStatusChanged.
	From string
	To   string

	// SecondaryHandle - stored external identity, for
	// ResultCompletionRecorded. "unknown" when never extracted.
	SecondaryHandle string

	// Reason - why nothing happened, for ResultNoOp.
	Reason string
}

func noop(reason string) Result {
	return Result{Kind: ResultNoOp, Reason: reason}
}
