// Package storage defines persisted records shared by storage backends.
package storage

import (
	"time"

	"shardd/pkg/types"
)

// StatusRecord is one persisted download status.
type StatusRecord struct {
	Engine    string
	Shard     types.Shard
	Status    types.DownloadStatus
	UpdatedAt time.Time
}
