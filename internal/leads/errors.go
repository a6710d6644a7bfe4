package leads

import "errors"

var (
	// ErrInvalidJSON is returned when the body is not a JSON object.
	ErrInvalidJSON = errors.New("leads: body is not a JSON object")

	// ErrUnknownType is returned when a submission carries no supported type.
	ErrUnknownType = errors.New("leads: unknown lead type")
)

// Client-facing messages.
const (
	msgInvalidJSON       = "Invalid JSON"
	msgInvalidSubmission = "Invalid submission"
	msgMisconfigured     = "Server misconfigured"
	msgInternal          = "Internal error"
)

// ValidationError lists every field-level problem found in a submission.
// FieldErrors is keyed by dotted JSON path, e.g. "zip" or "quizAnswers.0.question".
type ValidationError struct {
	Message     string
	FieldErrors map[string][]string
}

func (e *ValidationError) Error() string {
	return "leads: " + e.Message
}

func (e *ValidationError) add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string][]string)
	}
	for _, existing := range e.FieldErrors[field] {
		if existing == message {
			return
		}
	}
	e.FieldErrors[field] = append(e.FieldErrors[field], message)
}

func (e *ValidationError) empty() bool {
	return len(e.FieldErrors) == 0
}
