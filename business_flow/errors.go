// Package businessflow contains the core business logic and use cases for assignment notification workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Assignment-related errors
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNoRecipients       = errors.New("assignment has no journalist or driver to notify")

	// Campaign-related errors
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrInvalidConfirmCode = errors.New("invalid confirm code")
	ErrCodeMissing        = errors.New("no confirm code in message body")
	ErrContactMissing     = errors.New("recipient contact missing for this channel")
	ErrAlreadyConfirmed   = errors.New("campaign already confirmed")
	ErrCampaignTerminal   = errors.New("campaign is in a terminal state")

	// Delivery errors
	ErrChannelSendFailed = errors.New("channel send failed")
	ErrRendererFailed    = errors.New("document renderer unavailable")
)

// BusinessError wraps business logic errors with structured information
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsAssignmentNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsInvalidConfirmCode(err error) bool {
	return errors.Is(err, ErrInvalidConfirmCode)
}

func IsCodeMissing(err error) bool {
	return errors.Is(err, ErrCodeMissing)
}

func IsContactMissing(err error) bool {
	return errors.Is(err, ErrContactMissing)
}

func IsAlreadyConfirmed(err error) bool {
	return errors.Is(err, ErrAlreadyConfirmed)
}

func IsChannelSendFailed(err error) bool {
	return errors.Is(err, ErrChannelSendFailed)
}

func IsRendererFailed(err error) bool {
	return errors.Is(err, ErrRendererFailed)
}
