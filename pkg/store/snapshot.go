package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentSnapshotVersion is the version of the snapshot format. Increment
// when making breaking changes.
const CurrentSnapshotVersion = 1

// Snapshot is the persisted form of a sheet.
type Snapshot struct {
	// Entries maps entry names to their raw text.
	Entries map[string]string `json:"entries"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	// Version is the serialization format version.
	Version int `json:"version"`
}

// EncodeSnapshot serializes entries, stamping the format version and time.
func EncodeSnapshot(entries map[string]string, now time.Time) ([]byte, error) {
	if entries == nil {
		entries = map[string]string{}
	}
	return json.Marshal(Snapshot{
		Entries: entries,
		SavedAt: now.UTC(),
		Version: CurrentSnapshotVersion,
	})
}

// DecodeSnapshot parses data produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if s.Version > CurrentSnapshotVersion {
		return nil, fmt.Errorf("store: snapshot version %d is newer than supported version %d", s.Version, CurrentSnapshotVersion)
	}
	if s.Entries == nil {
		s.Entries = map[string]string{}
	}
	return &s, nil
}
