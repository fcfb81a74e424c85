package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/eventlog"
	pebblestore "github.com/rzbill/topicd/internal/storage/pebble"
	"github.com/rzbill/topicd/internal/topicmeta"
)

const (
	namespace        = "topicd"
	membershipTopic  = "__membership__"
	logPartition     = uint32(0)
	nodeIDKey        = "backend/node-id"
	snapshotKeyPfx   = "backend/snapshot/"
)

// LocalBackend is a single-process Backend: one Pebble store holds every
// topic's event log, the membership log, and the snapshot store. It never
// emits a LEAVE on its own behalf except via an explicit Withdraw call, so
// clusters of failure-detection only exist in a real clustered backend.
type LocalBackend struct {
	db     *pebblestore.DB
	nodeID uuid.UUID

	mu   sync.Mutex
	logs map[string]*eventlog.TopicLog

	membership *eventlog.TopicLog
}

// Open creates or opens a LocalBackend rooted at dataDir.
func Open(dataDir string) (*LocalBackend, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dataDir})
	if err != nil {
		return nil, fmt.Errorf("backend: open store: %w", err)
	}

	nodeID, err := loadOrCreateNodeID(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	memLog, err := openTopicLog(db, membershipTopic)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LocalBackend{
		db:         db,
		nodeID:     nodeID,
		logs:       make(map[string]*eventlog.TopicLog),
		membership: memLog,
	}, nil
}

func loadOrCreateNodeID(db *pebblestore.DB) (uuid.UUID, error) {
	if b, err := db.Get([]byte(nodeIDKey)); err == nil && len(b) == 16 {
		var id uuid.UUID
		copy(id[:], b)
		return id, nil
	}
	id := uuid.New()
	if err := db.Set([]byte(nodeIDKey), id[:]); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func openTopicLog(db *pebblestore.DB, topic string) (*eventlog.TopicLog, error) {
	l, err := eventlog.OpenLog(db, namespace, topic, logPartition)
	if err != nil {
		return nil, err
	}
	return eventlog.NewTopicLog(l), nil
}

// NodeID implements Backend.
func (b *LocalBackend) NodeID() uuid.UUID { return b.nodeID }

// OpenEventLog implements Backend.
func (b *LocalBackend) OpenEventLog(topicID string) (*eventlog.TopicLog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.logs[topicID]; ok {
		return l, nil
	}
	if _, err := topicmeta.EnsureMeta(b.db, topicID); err != nil {
		return nil, err
	}
	l, err := openTopicLog(b.db, "topic/"+topicID)
	if err != nil {
		return nil, err
	}
	b.logs[topicID] = l
	return l, nil
}

// TopicNames returns every topic name this backend has ever opened an
// event log for, from persisted registry metadata.
func (b *LocalBackend) TopicNames() ([]string, error) {
	return topicmeta.ListNames(b.db)
}

// MembershipLog implements Backend.
func (b *LocalBackend) MembershipLog() *eventlog.TopicLog { return b.membership }

func snapshotKey(topicID string) []byte {
	return []byte(snapshotKeyPfx + topicID)
}

// LoadLatestSnapshot implements Backend.
func (b *LocalBackend) LoadLatestSnapshot(ctx context.Context, topicID string) ([]byte, bool, error) {
	blob, err := b.db.Get(snapshotKey(topicID))
	if err != nil {
		return nil, false, nil
	}
	return blob, true, nil
}

// SubmitSnapshot implements Backend.
func (b *LocalBackend) SubmitSnapshot(ctx context.Context, topicID string, blob []byte) error {
	return b.db.Set(snapshotKey(topicID), blob)
}

// Announce implements Backend.
func (b *LocalBackend) Announce(ctx context.Context) error {
	rec, err := MembershipRecord{Type: Join, NodeID: b.nodeID}.Encode()
	if err != nil {
		return err
	}
	_, err = b.membership.SubmitEvent(ctx, uuid.New(), rec)
	return err
}

// Withdraw implements Backend.
func (b *LocalBackend) Withdraw(ctx context.Context) error {
	rec, err := MembershipRecord{Type: Leave, NodeID: b.nodeID}.Encode()
	if err != nil {
		return err
	}
	_, err = b.membership.SubmitEvent(ctx, uuid.New(), rec)
	return err
}

// Close implements Backend.
func (b *LocalBackend) Close() error { return b.db.Close() }
