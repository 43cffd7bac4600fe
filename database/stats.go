package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ProjectStats aggregates session and batch counts for one project's
// dashboard view.
type ProjectStats struct {
	ProjectID          uint             `json:"project_id"`
	TotalSessions      int64            `json:"total_sessions"`
	SessionsByStatus   map[string]int64 `json:"sessions_by_status"`
	TotalSessionPhotos int64            `json:"total_session_photos"`
	TotalBatches       int64            `json:"total_batches"`
	TotalRawPhotos     int64            `json:"total_raw_photos"`
	MarkersFound       int64            `json:"markers_found"`
}

// GetProjectStats computes aggregate counts with raw SQL; the dashboard
// polls this alongside batch progress so it stays a single round of
// cheap GROUP BY queries rather than loading entities.
func GetProjectStats(db *sql.DB, projectID uint) (*ProjectStats, error) {
	stats := &ProjectStats{
		ProjectID:        projectID,
		SessionsByStatus: make(map[string]int64),
	}

	sqlStr, args, err := psql.Select("status", "COUNT(*)").
		From("sessions").
		Where(sq.Eq{"project_id": projectID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session status query: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan session status count: %w", err)
		}
		stats.SessionsByStatus[status] = count
		stats.TotalSessions += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session status counts: %w", err)
	}

	sqlStr, args, err = psql.Select("COUNT(*)").
		From("session_photos sp").
		Join("sessions s ON s.id = sp.session_id").
		Where(sq.Eq{"s.project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session photo count query: %w", err)
	}
	if err := db.QueryRow(sqlStr, args...).Scan(&stats.TotalSessionPhotos); err != nil {
		return nil, fmt.Errorf("failed to count session photos: %w", err)
	}

	sqlStr, args, err = psql.Select("COUNT(*)", "COALESCE(SUM(markers_found), 0)").
		From("upload_batches").
		Where(sq.Eq{"project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build batch count query: %w", err)
	}
	if err := db.QueryRow(sqlStr, args...).Scan(&stats.TotalBatches, &stats.MarkersFound); err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}

	sqlStr, args, err = psql.Select("COUNT(*)").
		From("raw_photos rp").
		Join("upload_batches b ON b.id = rp.batch_id").
		Where(sq.Eq{"b.project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build raw photo count query: %w", err)
	}
	if err := db.QueryRow(sqlStr, args...).Scan(&stats.TotalRawPhotos); err != nil {
		return nil, fmt.Errorf("failed to count raw photos: %w", err)
	}

	return stats, nil
}
