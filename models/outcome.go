package models

// OutcomeKind tags the variant held by a FetchOutcome.
type OutcomeKind int

const (
	OutcomeRows OutcomeKind = iota
	OutcomeEmpty
	OutcomeBlocked
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRows:
		return "rows"
	case OutcomeEmpty:
		return "empty"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of one fetch attempt for a work item.
// Rows is set only for OutcomeRows, Err only for the failure kinds.
type FetchOutcome struct {
	Kind OutcomeKind
	Rows []RawRow
	Err  error
}

// RowsOutcome wraps parsed rows.
func RowsOutcome(rows []RawRow) FetchOutcome {
	return FetchOutcome{Kind: OutcomeRows, Rows: rows}
}

// EmptyOutcome signals an explicit no-data response.
func EmptyOutcome() FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmpty}
}

// BlockedOutcome signals an anti-bot interstitial.
func BlockedOutcome(err error) FetchOutcome {
	return FetchOutcome{Kind: OutcomeBlocked, Err: err}
}

// TransportErrorOutcome signals a status, timeout or network failure.
func TransportErrorOutcome(err error) FetchOutcome {
	return FetchOutcome{Kind: OutcomeTransportError, Err: err}
}

// Successful reports whether the outcome is Rows or Empty.
func (o FetchOutcome) Successful() bool {
	return o.Kind == OutcomeRows || o.Kind == OutcomeEmpty
}

// Message returns the failure message, or "" for successful outcomes.
func (o FetchOutcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
