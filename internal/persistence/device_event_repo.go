package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	DeviceEventAdded        = "added"
	DeviceEventRemoved      = "removed"
	DeviceEventConnected    = "connected"
	DeviceEventDisconnected = "disconnected"
)

// DeviceEventRecord is one device lifecycle transition as stored in the
// device_events table.
type DeviceEventRecord struct {
	ID         int64
	Kind       string
	DeviceID   string
	DeviceName string
	At         time.Time
}

type DeviceEventRepo struct {
	db *sql.DB
}

func NewDeviceEventRepo(db *sql.DB) *DeviceEventRepo {
	return &DeviceEventRepo{db: db}
}

func (r *DeviceEventRepo) Insert(ctx context.Context, rec DeviceEventRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO device_events(kind, device_id, device_name, at)
		VALUES(?, ?, ?, ?)
	`, rec.Kind, rec.DeviceID, rec.DeviceName, timeToUnixMillis(at)); err != nil {
		return fmt.Errorf("insert device event: %w", err)
	}

	return nil
}

// ListRecent returns up to limit of the newest device events in
// chronological order.
func (r *DeviceEventRepo) ListRecent(ctx context.Context, limit int) ([]DeviceEventRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, device_id, device_name, at
		FROM device_events
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent device events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []DeviceEventRecord
	for rows.Next() {
		var (
			rec  DeviceEventRecord
			atMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.DeviceID, &rec.DeviceName, &atMs); err != nil {
			return nil, fmt.Errorf("scan device event: %w", err)
		}
		rec.At = unixMillisToTime(atMs)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent device events: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}
