package feed

import "errors"

var (
	// ErrSnapshotEmpty is returned when the initial snapshot holds no groups.
	ErrSnapshotEmpty = errors.New("no event groups found")

	// ErrSnapshotTransport wraps failures fetching the initial snapshot.
	ErrSnapshotTransport = errors.New("error loading events")
)
