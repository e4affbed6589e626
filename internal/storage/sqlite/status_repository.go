package sqlite

import (
	"context"
	"database/sql"
	"time"

	"shardd/internal/storage"
	"shardd/pkg/types"
)

// StatusRepository persists the latest download status per (engine, shard).
type StatusRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewStatusRepository(dbConn *sql.DB) *StatusRepository {
	return &StatusRepository{db: dbConn, now: time.Now}
}

// SaveStatus upserts st for (engine, shard).
func (r *StatusRepository) SaveStatus(ctx context.Context, engine string, shard types.Shard, st types.DownloadStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shard_statuses (engine, model_id, start_layer, end_layer, n_layers, downloaded_bytes, total_bytes, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(engine, model_id, start_layer, end_layer, n_layers) DO UPDATE SET
			downloaded_bytes = excluded.downloaded_bytes,
			total_bytes = excluded.total_bytes,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, engine, shard.ModelID, shard.StartLayer, shard.EndLayer, shard.NLayers,
		st.DownloadedBytes, st.TotalBytes, string(st.Status), r.now().UTC())

	return err
}

// GetStatuses returns the records of engine, or of every engine when engine
// is empty, ordered by engine and model.
func (r *StatusRepository) GetStatuses(ctx context.Context, engine string) ([]storage.StatusRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT engine, model_id, start_layer, end_layer, n_layers, downloaded_bytes, total_bytes, status, updated_at
		FROM shard_statuses
		WHERE ? = '' OR engine = ?
		ORDER BY engine, model_id, start_layer`, engine, engine)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.StatusRecord

	for rows.Next() {
		var rec storage.StatusRecord

		var status string

		if err := rows.Scan(&rec.Engine, &rec.Shard.ModelID, &rec.Shard.StartLayer, &rec.Shard.EndLayer, &rec.Shard.NLayers,
			&rec.Status.DownloadedBytes, &rec.Status.TotalBytes, &status, &rec.UpdatedAt); err != nil {
			return nil, err
		}

		rec.Status.Status = types.DownloadState(status)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteEngine removes every record of engine.
func (r *StatusRepository) DeleteEngine(ctx context.Context, engine string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shard_statuses WHERE engine = ?`, engine)

	return err
}
