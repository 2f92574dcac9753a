// Package audit defines the structured event trail emitted for every
// compliance decision, rate-limit wait, retry, and extraction outcome.
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported audit stages.
const (
	StageBatchStart  Stage = "BATCH_START"
	StageBatchDone   Stage = "BATCH_DONE"
	StageSanitize    Stage = "URL_SANITIZED"
	StageDecision    Stage = "COMPLIANCE_DECISION"
	StageRateWait    Stage = "RATE_LIMIT_WAIT"
	StageFetchRetry  Stage = "FETCH_RETRY"
	StageFetchDone   Stage = "FETCH_DONE"
	StageExtractDone Stage = "EXTRACT_DONE"
)

// Event captures a single milestone in the scrape pipeline.
type Event struct {
	// BatchID ties the event to a batch run using the 16-byte UUID form.
	// Decision events emitted outside a batch may leave it zero.
	BatchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Domain scopes the event to an origin host where applicable.
	Domain string
	// URL is the page URL; it should not contain credentials.
	URL string
	// Allowed records the outcome for COMPLIANCE_DECISION events.
	Allowed bool
	// Reason describes a decision or failure in human-readable form.
	Reason string
	// Attempt numbers fetch attempts for FETCH_RETRY events.
	Attempt int
	// Bytes carries the response size for FETCH_DONE events.
	Bytes int64
	// Dur captures waits, fetch latencies, and batch runtimes.
	Dur time.Duration
	// Method names the extraction strategy for EXTRACT_DONE events.
	Method string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBatchStart, StageBatchDone, StageSanitize, StageFetchDone, StageExtractDone:
	case StageDecision:
		if e.URL == "" {
			return errors.New("decision requires url")
		}
	case StageRateWait:
		if e.Domain == "" {
			return errors.New("rate wait requires domain")
		}
	case StageFetchRetry:
		if e.Attempt <= 0 {
			return errors.New("fetch retry requires attempt number")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// BatchUUID converts the binary batch ID to uuid.UUID for sinks.
func (e Event) BatchUUID() uuid.UUID {
	return uuid.UUID(e.BatchID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
