package app

import "fmt"

// DomainError is the typed failure surfaced across the function-call
// boundary. Exactly two codes exist: INPUT_ERROR for malformed or
// semantically invalid requests (including missing entities) and
// ACCESS_ERROR for callers who are not allowed to do what they asked.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func inputError(message string) *DomainError {
	return &DomainError{Status: 422, Code: "INPUT_ERROR", Message: message}
}

func accessError(message string) *DomainError {
	return &DomainError{Status: 403, Code: "ACCESS_ERROR", Message: message}
}

// IsInputError reports whether err is a validation failure.
func IsInputError(err error) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == "INPUT_ERROR"
}

// IsAccessError reports whether err is an authorization failure.
func IsAccessError(err error) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == "ACCESS_ERROR"
}
