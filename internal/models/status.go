package models

import "time"

// SyncStatus is the published, read-only view of the sync engine. The UI
// layer polls it to drive connectivity and pending-change banners; no UI
// logic lives in this module.
type SyncStatus struct {
	// PendingCount mirrors the in-memory queue length exactly.
	PendingCount int `json:"pending_count"`

	// Syncing is true only while a drain is in flight.
	Syncing bool `json:"syncing"`

	// LastSyncAt is the completion time of the most recent drain attempt,
	// set whether or not the drain fully succeeded. Zero means no drain has
	// completed yet.
	LastSyncAt time.Time `json:"last_sync_at,omitzero"`

	// LastError summarizes the leftover failures of the most recent drain,
	// or a persistence failure. Cleared at the start of each drain.
	LastError string `json:"last_error,omitempty"`
}
