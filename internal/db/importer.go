package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	videoBatchSize    = 500
	snapshotBatchSize = 2000
)

// Dataset is the decoded videos.json document.
type Dataset struct {
	Videos []VideoRecord `json:"videos"`
}

// VideoRecord is one video with its snapshot history.
type VideoRecord struct {
	ID             string           `json:"id"`
	CreatorID      string           `json:"creator_id"`
	VideoCreatedAt Timestamp        `json:"video_created_at"`
	ViewsCount     int64            `json:"views_count"`
	LikesCount     int64            `json:"likes_count"`
	CommentsCount  int64            `json:"comments_count"`
	ReportsCount   int64            `json:"reports_count"`
	CreatedAt      Timestamp        `json:"created_at"`
	UpdatedAt      Timestamp        `json:"updated_at"`
	Snapshots      []SnapshotRecord `json:"snapshots"`
}

// SnapshotRecord is one hourly measurement of a video.
type SnapshotRecord struct {
	ID                 string    `json:"id"`
	VideoID            string    `json:"video_id"`
	ViewsCount         int64     `json:"views_count"`
	LikesCount         int64     `json:"likes_count"`
	CommentsCount      int64     `json:"comments_count"`
	ReportsCount       int64     `json:"reports_count"`
	DeltaViewsCount    int64     `json:"delta_views_count"`
	DeltaLikesCount    int64     `json:"delta_likes_count"`
	DeltaCommentsCount int64     `json:"delta_comments_count"`
	DeltaReportsCount  int64     `json:"delta_reports_count"`
	CreatedAt          Timestamp `json:"created_at"`
	UpdatedAt          Timestamp `json:"updated_at"`
}

// Timestamp accepts ISO-8601 with or without an offset; values without one
// are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// DecodeDataset reads and validates a videos.json document.
func DecodeDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	for i, v := range ds.Videos {
		if v.ID == "" || v.CreatorID == "" {
			return nil, fmt.Errorf("video %d: id and creator_id are required", i)
		}
		for j, s := range v.Snapshots {
			if s.ID == "" {
				return nil, fmt.Errorf("video %s snapshot %d: id is required", v.ID, j)
			}
			if s.VideoID != "" && s.VideoID != v.ID {
				return nil, fmt.Errorf("video %s snapshot %s: video_id %q does not match", v.ID, s.ID, s.VideoID)
			}
		}
	}
	return &ds, nil
}

// ImportStats summarizes one import run.
type ImportStats struct {
	Skipped   bool
	Videos    int
	Snapshots int
}

// DB is the part of *pgxpool.Pool the importer uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertVideoSQL = `INSERT INTO videos (
    id, creator_id, video_created_at, views_count, likes_count, comments_count, reports_count, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    creator_id = EXCLUDED.creator_id,
    video_created_at = EXCLUDED.video_created_at,
    views_count = EXCLUDED.views_count,
    likes_count = EXCLUDED.likes_count,
    comments_count = EXCLUDED.comments_count,
    reports_count = EXCLUDED.reports_count,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`

const upsertSnapshotSQL = `INSERT INTO video_snapshots (
    id, video_id, views_count, likes_count, comments_count, reports_count,
    delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    video_id = EXCLUDED.video_id,
    views_count = EXCLUDED.views_count,
    likes_count = EXCLUDED.likes_count,
    comments_count = EXCLUDED.comments_count,
    reports_count = EXCLUDED.reports_count,
    delta_views_count = EXCLUDED.delta_views_count,
    delta_likes_count = EXCLUDED.delta_likes_count,
    delta_comments_count = EXCLUDED.delta_comments_count,
    delta_reports_count = EXCLUDED.delta_reports_count,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`

// ImportFile loads the dataset at path. Unless force is set the import is
// skipped when videos already has rows; force truncates both tables first.
// Everything happens in one transaction.
func ImportFile(ctx context.Context, db DB, path string, force bool) (ImportStats, error) {
	if !force {
		var exists bool
		if err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM videos)").Scan(&exists); err != nil {
			return ImportStats{}, fmt.Errorf("check existing data: %w", err)
		}
		if exists {
			return ImportStats{Skipped: true}, nil
		}
	}

	f, err := os.Open(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return ImportStats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close() //nolint:errcheck

	ds, err := DecodeDataset(f)
	if err != nil {
		return ImportStats{}, err
	}
	return Import(ctx, db, ds, force)
}

// Import writes ds in one transaction using batched upserts.
func Import(ctx context.Context, db DB, ds *Dataset, truncate bool) (stats ImportStats, err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return ImportStats{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if truncate {
		if _, err = tx.Exec(ctx, "TRUNCATE TABLE video_snapshots, videos"); err != nil {
			return ImportStats{}, fmt.Errorf("truncate: %w", err)
		}
	}

	videoRows, snapshotRows := ds.rows()
	if err = sendChunked(ctx, tx, upsertVideoSQL, videoRows, videoBatchSize); err != nil {
		return ImportStats{}, fmt.Errorf("upsert videos: %w", err)
	}
	if err = sendChunked(ctx, tx, upsertSnapshotSQL, snapshotRows, snapshotBatchSize); err != nil {
		return ImportStats{}, fmt.Errorf("upsert snapshots: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return ImportStats{}, fmt.Errorf("commit import: %w", err)
	}
	return ImportStats{Videos: len(videoRows), Snapshots: len(snapshotRows)}, nil
}

// rows flattens the dataset into positional argument lists. Snapshots
// without a video_id inherit their parent's.
func (ds *Dataset) rows() (videos, snapshots [][]any) {
	videos = make([][]any, 0, len(ds.Videos))
	for _, v := range ds.Videos {
		videos = append(videos, []any{
			v.ID, v.CreatorID, v.VideoCreatedAt.Time,
			v.ViewsCount, v.LikesCount, v.CommentsCount, v.ReportsCount,
			v.CreatedAt.Time, v.UpdatedAt.Time,
		})
		for _, s := range v.Snapshots {
			videoID := s.VideoID
			if videoID == "" {
				videoID = v.ID
			}
			snapshots = append(snapshots, []any{
				s.ID, videoID,
				s.ViewsCount, s.LikesCount, s.CommentsCount, s.ReportsCount,
				s.DeltaViewsCount, s.DeltaLikesCount, s.DeltaCommentsCount, s.DeltaReportsCount,
				s.CreatedAt.Time, s.UpdatedAt.Time,
			})
		}
	}
	return videos, snapshots
}

func sendChunked(ctx context.Context, tx pgx.Tx, sql string, rows [][]any, size int) error {
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batch := &pgx.Batch{}
		for _, args := range rows[start:end] {
			batch.Queue(sql, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}
