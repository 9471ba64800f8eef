package sync

import (
	"errors"
	"fmt"

	"github.com/stacklok/asteroid-radar/internal/feed"
)

// Kind classifies engine failures
type Kind string

const (
	// KindNetwork is a transient feed failure: transport, non-2xx or timeout
	KindNetwork Kind = "network"
	// KindParse is a feed response that cannot be used
	KindParse Kind = "parse"
	// KindStore is a local persistence failure
	KindStore Kind = "store"
)

// Outcome is the result of one refresh attempt as seen by a scheduler
type Outcome string

const (
	// OutcomeSuccess means the window was fetched and committed
	OutcomeSuccess Outcome = "success"
	// OutcomeNetworkError means the feed could not be reached in time
	OutcomeNetworkError Outcome = "network-error"
	// OutcomeParseError means the feed answered with unusable data
	OutcomeParseError Outcome = "parse-error"
	// OutcomeStoreError means the local store rejected the batch
	OutcomeStoreError Outcome = "store-error"
)

// Condition types reported alongside errors
const (
	// ConditionFeedAvailable indicates whether the feed could be reached
	ConditionFeedAvailable = "FeedAvailable"

	// ConditionDataValid indicates whether the feed data could be used
	ConditionDataValid = "DataValid"

	// ConditionStoreAvailable indicates whether the record store accepted the operation
	ConditionStoreAvailable = "StoreAvailable"
)

// Condition reasons
const (
	conditionReasonFetchFailed    = "FetchFailed"
	conditionReasonParseFailed    = "ParseFailed"
	conditionReasonNoValidRecords = "NoValidRecords"
	conditionReasonStorageFailed  = "StorageFailed"
	conditionReasonReadFailed     = "ReadFailed"
	conditionReasonEvictionFailed = "EvictionFailed"
)

// Error represents a structured engine error with condition information
type Error struct {
	Err             error
	Message         string
	Kind            Kind
	ConditionType   string
	ConditionReason string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Outcome maps the error kind to the refresh outcome it represents
func (e *Error) Outcome() Outcome {
	if e == nil {
		return OutcomeSuccess
	}
	switch e.Kind {
	case KindParse:
		return OutcomeParseError
	case KindStore:
		return OutcomeStoreError
	default:
		return OutcomeNetworkError
	}
}

// Retryable reports whether a later attempt may succeed without intervention
func (e *Error) Retryable() bool {
	return e != nil && e.Kind != KindParse
}

// AsError extracts an engine error from err
func AsError(err error) (*Error, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

func fetchError(err error) *Error {
	if feed.KindOf(err) == feed.KindParse {
		return &Error{
			Err:             err,
			Message:         fmt.Sprintf("Feed response could not be parsed: %v", err),
			Kind:            KindParse,
			ConditionType:   ConditionDataValid,
			ConditionReason: conditionReasonParseFailed,
		}
	}
	return &Error{
		Err:             err,
		Message:         fmt.Sprintf("Feed fetch failed: %v", err),
		Kind:            KindNetwork,
		ConditionType:   ConditionFeedAvailable,
		ConditionReason: conditionReasonFetchFailed,
	}
}

func noValidRecordsError(count int) *Error {
	err := fmt.Errorf("all %d records in the feed are malformed", count)
	return &Error{
		Err:             err,
		Message:         fmt.Sprintf("Feed data is unusable: %v", err),
		Kind:            KindParse,
		ConditionType:   ConditionDataValid,
		ConditionReason: conditionReasonNoValidRecords,
	}
}

func storeError(reason, action string, err error) *Error {
	return &Error{
		Err:             err,
		Message:         fmt.Sprintf("Failed to %s: %v", action, err),
		Kind:            KindStore,
		ConditionType:   ConditionStoreAvailable,
		ConditionReason: reason,
	}
}
