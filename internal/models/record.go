package models

// State is the position of a ProcessingRecord in its state machine.
type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanTransition reports whether the state machine allows moving from s to next.
// Pending -> InProgress -> {Succeeded | Failed}; nothing leaves a terminal state.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateInProgress
	case StateInProgress:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}

// Failure describes why a record failed. The zero value means no failure.
type Failure struct {
	Kind   ErrorKind `firestore:"kind,omitempty" json:"kind,omitempty"`
	Detail string    `firestore:"detail,omitempty" json:"detail,omitempty"`
}

// IsZero reports whether f carries no failure.
func (f Failure) IsZero() bool { return f.Kind == "" }

// ProcessingRecord tracks one DocumentHandle through the pipeline.
// Empty Serial and DestinationName mean "none".
type ProcessingRecord struct {
	ID              string  `firestore:"id" json:"id"`
	SourceName      string  `firestore:"sourceName" json:"sourceName"`
	State           State   `firestore:"state" json:"state"`
	Serial          string  `firestore:"serial,omitempty" json:"serial,omitempty"`
	DestinationName string  `firestore:"destinationName,omitempty" json:"destinationName,omitempty"`
	Failure         Failure `firestore:"failure,omitempty" json:"failure,omitempty"`
	// Strategy and Page identify where the serial was found.
	Strategy string `firestore:"strategy,omitempty" json:"strategy,omitempty"`
	Page     int    `firestore:"page,omitempty" json:"page,omitempty"`
}
