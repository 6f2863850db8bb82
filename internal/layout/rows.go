package layout

// RowKind classifies one physical table row during parsing. Both layouts
// reduce their rows to these four kinds before extraction; only how they
// recognize each kind differs.
type RowKind int

const (
	// RowUnknown is anything the layout cannot place. Unknown rows are
	// skipped, never guessed at.
	RowUnknown RowKind = iota

	// RowHeader introduces a section: a heat number, an age category or a
	// column legend. Headers carry context for the rows that follow.
	RowHeader

	// RowData is one entrant: a swimmer or a relay with its timing.
	RowData

	// RowContinuation extends the preceding data row with lap splits or
	// relay legs.
	RowContinuation
)

func (k RowKind) String() string {
	switch k {
	case RowHeader:
		return "header"
	case RowData:
		return "data"
	case RowContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}
