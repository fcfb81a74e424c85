package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TopicLog is an append-only, totally-ordered log of change records keyed
// by 128-bit tracking IDs. It layers ID-addressed submit/subscribe/truncate
// semantics on top of the sequence-addressed Log.
//
// The sequence assigned by the underlying Log establishes total order;
// TopicLog additionally indexes id -> seq so callers can resume a
// subscription after an ID or truncate up to one, without needing to know
// its position.
type TopicLog struct {
	log *Log
}

// NewTopicLog wraps an already-opened Log.
func NewTopicLog(l *Log) *TopicLog {
	return &TopicLog{log: l}
}

// ErrEventIDNotFound is returned by Subscribe when sinceID does not
// resolve to a known sequence (e.g. it was truncated).
var ErrEventIDNotFound = errors.New("eventlog: event id not found")

func idIndexKey(namespace, topic string, partition uint32, id uuid.UUID) []byte {
	base := KeyLogMeta(namespace, topic, partition)
	// Strip the "/m" meta suffix and build an "/idx/{id}" sibling key.
	base = base[:len(base)-len(metaSuffix)]
	k := make([]byte, 0, len(base)+4+16)
	k = append(k, base...)
	k = append(k, '/', 'i', 'd', 'x', '/')
	k = append(k, id[:]...)
	return k
}

// SubmitEvent appends a single change record tagged with its tracking ID.
// Returns the sequence assigned in the underlying log.
func (t *TopicLog) SubmitEvent(ctx context.Context, id uuid.UUID, payload []byte) (uint64, error) {
	header := id[:]
	seqs, err := t.log.Append(ctx, []AppendRecord{{Header: header, Payload: payload}})
	if err != nil {
		return 0, err
	}
	seq := seqs[0]
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	if err := t.log.db.Set(idIndexKey(t.log.namespace, t.log.topic, t.log.part, id), seqBuf[:]); err != nil {
		return 0, err
	}
	return seq, nil
}

// seqForID resolves a tracking ID to its assigned sequence.
func (t *TopicLog) seqForID(id uuid.UUID) (uint64, bool) {
	b, err := t.log.db.Get(idIndexKey(t.log.namespace, t.log.topic, t.log.part, id))
	if err != nil || len(b) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

// Event is a single decoded change record with its tracking ID.
type Event struct {
	ID      uuid.UUID
	Seq     uint64
	Payload []byte
}

// Handler processes one event during replay or live delivery. Returning
// false stops the subscription.
type Handler func(Event) bool

// Subscribe replays every event strictly after sinceID (or from the
// beginning, if sinceID is nil), then blocks delivering newly appended
// events until stopCh is closed or the handler returns false.
//
// If sinceID is non-nil but unresolvable (e.g. truncated away), returns
// ErrEventIDNotFound.
func (t *TopicLog) Subscribe(ctx context.Context, sinceID *uuid.UUID, h Handler, stopCh <-chan struct{}) error {
	var startSeq uint64
	if sinceID != nil {
		seq, ok := t.seqForID(*sinceID)
		if !ok {
			return ErrEventIDNotFound
		}
		startSeq = seq + 1
	}

	deliver := func(it Item) bool {
		var id uuid.UUID
		copy(id[:], it.Header)
		return h(Event{ID: id, Seq: it.Seq, Payload: it.Payload})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		default:
		}

		items, next := t.log.Read(ReadOptions{Start: tokenFromSeq(startSeq)})
		for _, it := range items {
			if !deliver(it) {
				return nil
			}
		}
		if len(items) > 0 {
			startSeq = next.Seq() + 1
			continue
		}
		if !t.log.WaitForAppend(500 * time.Millisecond) {
			select {
			case <-stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
}

// Truncate discards events with sequence <= the sequence assigned to id.
// A no-op (returns nil) if id is absent from the log.
func (t *TopicLog) Truncate(ctx context.Context, id uuid.UUID) error {
	seq, ok := t.seqForID(id)
	if !ok {
		return nil
	}
	_, _, err := TrimOlderThanSeq(ctx, t.log, seq)
	return err
}
