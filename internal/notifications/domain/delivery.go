package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Outcome classifies a delivery attempt.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
)

// Delivery is a rendered message addressed to one recipient.
type Delivery struct {
	Recipient     string
	Text          string
	CorrelationID string
	Type          Type
}

// DeliveryResult is what a channel reports for a send.
type DeliveryResult struct {
	Outcome Outcome
	Err     error
}

// OK is a successful delivery.
func OK() DeliveryResult { return DeliveryResult{Outcome: OutcomeOK} }

// Retryable classifies err as transient.
func Retryable(err error) DeliveryResult {
	return DeliveryResult{Outcome: OutcomeRetryable, Err: &TransientDeliveryError{Err: err}}
}

// Fatal classifies err as permanent.
func Fatal(err error) DeliveryResult { return DeliveryResult{Outcome: OutcomeFatal, Err: err} }

// Channel sends rendered notifications.
type Channel interface {
	Send(ctx context.Context, d Delivery) DeliveryResult
}

// RenderRequest selects a template and its data.
type RenderRequest struct {
	Key     string
	Context map[string]any
	Locale  string
	Channel string
}

// Rendered is a template result with the key and version used, for audit.
type Rendered struct {
	Text    string
	Key     string
	Version string
}

// Renderer turns a notification into text.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Rendered, error)
}

// ErrTemplateNotFound is returned by renderers for unknown keys.
var ErrTemplateNotFound = errors.New("template not found")

// TransientDeliveryError marks a failure worth retrying.
type TransientDeliveryError struct {
	Err error
}

func (e *TransientDeliveryError) Error() string {
	if e.Err == nil {
		return "transient delivery failure"
	}
	return fmt.Sprintf("transient delivery failure: %v", e.Err)
}

func (e *TransientDeliveryError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientDeliveryError.
func IsTransient(err error) bool {
	var t *TransientDeliveryError
	return errors.As(err, &t)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
