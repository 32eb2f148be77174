package domain

// OutcomeKind is the tag of an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeWarning
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeWarning:
		return "warning"
	default:
		return "failure"
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Reason qualifies an Outcome.
type Reason string

const (
	ReasonCopied           Reason = "copied"
	ReasonTransferred      Reason = "transferred"
	ReasonExecuted         Reason = "executed"
	ReasonEmpty            Reason = "empty"
	ReasonCancelled        Reason = "cancelled"
	ReasonBusy             Reason = "busy"
	ReasonFallback         Reason = "fallback"
	ReasonDeliveryFailed   Reason = "delivery_failed"
	ReasonSaved            Reason = "saved"
	ReasonLoaded           Reason = "loaded"
	ReasonDeleted          Reason = "deleted"
	ReasonCleared          Reason = "cleared"
	ReasonImported         Reason = "imported"
	ReasonExported         Reason = "exported"
	ReasonImportSaveFailed Reason = "import_save_failed"
	ReasonDeclined         Reason = "declined"
	ReasonNotFound         Reason = "not_found"
	ReasonInvalid          Reason = "invalid"
	ReasonStorageFailed    Reason = "storage_failed"
)

// Outcome is the discrete result of a user-facing action.
// It carries no presentation data; adapters decide how to show it.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason Reason      `json:"reason"`
	Err    error       `json:"-"`
}

// Success builds a successful outcome.
func Success(reason Reason) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reason: reason}
}

// Warning builds a non-fatal outcome. err may be nil.
func Warning(reason Reason, err error) Outcome {
	return Outcome{Kind: OutcomeWarning, Reason: reason, Err: err}
}

// Failure builds a failed outcome.
func Failure(reason Reason, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason, Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) String() string {
	s := o.Kind.String() + ": " + string(o.Reason)
	if o.Err != nil {
		s += " (" + o.Err.Error() + ")"
	}
	return s
}
