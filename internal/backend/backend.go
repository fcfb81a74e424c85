// Package backend defines the pluggable substrate a Topic runs on top of:
// per-topic event logs, a cluster-wide membership log, a snapshot store,
// and local node identity. Backend is the drop-in seam a clustered
// implementation would occupy; this package ships only the single-node
// Local backend.
package backend

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/eventlog"
)

// EventType discriminates membership log entries.
type EventType string

const (
	Join  EventType = "JOIN"
	Leave EventType = "LEAVE"
)

// MembershipRecord is the wire format of a MembershipLog entry.
type MembershipRecord struct {
	Type   EventType `json:"type"`
	NodeID uuid.UUID `json:"nodeId"`
}

// Encode serializes a MembershipRecord for the membership log.
func (r MembershipRecord) Encode() ([]byte, error) { return json.Marshal(r) }

// DecodeMembershipRecord parses a MembershipRecord.
func DecodeMembershipRecord(b []byte) (MembershipRecord, error) {
	var r MembershipRecord
	err := json.Unmarshal(b, &r)
	return r, err
}

// Backend is the substrate a Topic depends on. A single-node Local
// backend and a clustered backend are both valid implementations.
type Backend interface {
	// NodeID returns this process's identity in the membership log.
	NodeID() uuid.UUID

	// OpenEventLog returns the per-topic event log, creating it on first
	// use. Calling it twice for the same topicID returns logs backed by
	// the same durable storage.
	OpenEventLog(topicID string) (*eventlog.TopicLog, error)

	// MembershipLog returns the single cluster-wide membership log.
	MembershipLog() *eventlog.TopicLog

	// LoadLatestSnapshot returns the most recently submitted snapshot
	// blob for topicID, if any.
	LoadLatestSnapshot(ctx context.Context, topicID string) ([]byte, bool, error)

	// SubmitSnapshot stores blob as the latest snapshot for topicID.
	SubmitSnapshot(ctx context.Context, topicID string, blob []byte) error

	// Announce joins the membership log with this node's ID. Called once
	// at backend startup.
	Announce(ctx context.Context) error

	// Withdraw joins the membership log with a LEAVE for this node's ID.
	// Called on graceful shutdown; a node-failure detector in a clustered
	// backend would emit the same record on crash detection.
	Withdraw(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
