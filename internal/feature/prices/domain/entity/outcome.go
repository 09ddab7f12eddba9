package entity

// Outcome is the classification of a single quote API call.
// The set of implementations is closed: Success, HardError, SoftLimit,
// Malformed and TransportFailure.
type Outcome interface {
	outcome()
}

// LimitKind distinguishes the two explicit rate-limit response shapes.
type LimitKind int

const (
	// LimitNote is signalled by a "Note" field.
	LimitNote LimitKind = iota + 1
	// LimitInformation is signalled by an "Information" field.
	LimitInformation
)

func (k LimitKind) String() string {
	switch k {
	case LimitNote:
		return "note"
	case LimitInformation:
		return "information"
	default:
		return "unknown"
	}
}

// Success carries a usable time series.
type Success struct {
	Series DailySeries
}

// HardError is an explicit error reported by the API.
type HardError struct {
	Message string
}

// SoftLimit is a quota or rate exhaustion notice.
type SoftLimit struct {
	Kind    LimitKind
	Message string
}

// Malformed is a response without the expected time series.
// Keys lists the top-level keys that were present, Err is set when the body
// could not be decoded at all.
type Malformed struct {
	Keys []string
	Err  error
}

// TransportFailure means the call itself did not complete.
type TransportFailure struct {
	Err error
}

func (Success) outcome()          {}
func (HardError) outcome()        {}
func (SoftLimit) outcome()        {}
func (Malformed) outcome()        {}
func (TransportFailure) outcome() {}

// Category returns a stable label for logging and reporting.
func Category(o Outcome) string {
	switch v := o.(type) {
	case Success:
		return "success"
	case HardError:
		return "hard_error"
	case SoftLimit:
		return "soft_limit_" + v.Kind.String()
	case Malformed:
		return "malformed"
	case TransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Message returns the human readable detail carried by an outcome.
func Message(o Outcome) string {
	switch v := o.(type) {
	case HardError:
		return v.Message
	case SoftLimit:
		return v.Message
	case Malformed:
		if v.Err != nil {
			return v.Err.Error()
		}
		return "time series missing"
	case TransportFailure:
		if v.Err != nil {
			return v.Err.Error()
		}
	}
	return ""
}
