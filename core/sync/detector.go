package sync

import "time"

// Change is the Change Detector's verdict for one mapped pair.
type Change int

const (
	ChangeNone Change = iota
	ChangeRemote
	ChangeLocal
	ChangeBoth
	ChangeRemoteDeleted
)

func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "unchanged"
	case ChangeRemote:
		return "remote-changed"
	case ChangeLocal:
		return "local-changed"
	case ChangeBoth:
		return "both-changed"
	case ChangeRemoteDeleted:
		return "remote-deleted"
	}
	return "unknown"
}

// DetectChange compares both sides' modification timestamps against the
// mapping's last-synced-at. Both strictly after means conflict.
//
// Timestamps are authoritative here. The mapping's RemoteHash is kept for
// diagnostics but never consulted: mixing hash and timestamp comparison was
// the ambiguity this engine exists to remove. Metadata-only touches can
// therefore flag a false-positive conflict; resolving one advances
// last-synced-at so it is never re-flagged.
func DetectChange(m EventMapping, remoteUpdated time.Time, remoteCancelled bool, localUpdated time.Time) Change {
	if remoteCancelled {
		return ChangeRemoteDeleted
	}

	remoteChanged := remoteUpdated.After(m.LastSyncedAt)
	localChanged := localUpdated.After(m.LastSyncedAt)

	switch {
	case remoteChanged && localChanged:
		return ChangeBoth
	case remoteChanged:
		return ChangeRemote
	case localChanged:
		return ChangeLocal
	}
	return ChangeNone
}
