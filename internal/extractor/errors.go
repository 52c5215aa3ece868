package extractor

import (
	"errors"
	"fmt"
)

// Error codes for extraction failures.
const (
	CodeInvalidCardImage     = "INVALID_CARD_IMAGE"
	CodeInappropriateContent = "INAPPROPRIATE_CONTENT"
	CodeExtractionFailed     = "EXTRACTION_FAILED"
	CodeSourceUnavailable    = "SOURCE_UNAVAILABLE"
)

// Error is a typed extraction failure. Terminal errors end the submission
// and require cleanup of any pre-created card record; the generic message
// for content rejection never exposes which category tripped.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Terminal reports whether the failure ends the submission (content
// rejection or non-card image) rather than being retried upstream.
func (e *Error) Terminal() bool {
	return e.Code == CodeInvalidCardImage || e.Code == CodeInappropriateContent
}

// AsError unwraps err into an extractor Error if it is one.
func AsError(err error) (*Error, bool) {
	var eerr *Error
	if errors.As(err, &eerr) {
		return eerr, true
	}
	return nil, false
}

func inappropriateContent() *Error {
	// Generic by policy: no category detail leaves this package.
	return &Error{Code: CodeInappropriateContent, Message: "inappropriate content; cannot be uploaded"}
}

func invalidCardImage() *Error {
	return &Error{Code: CodeInvalidCardImage, Message: "image does not appear to contain a trading card"}
}
