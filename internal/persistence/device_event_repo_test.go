package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestDeviceEventRepoInsertAndList_RoundTrips(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewDeviceEventRepo(db)
	base := time.Now().UTC().Truncate(time.Millisecond)

	events := []DeviceEventRecord{
		{Kind: DeviceEventAdded, DeviceID: "0:Launchpad Mini", DeviceName: "Launchpad Mini", At: base},
		{Kind: DeviceEventConnected, DeviceID: "0:Launchpad Mini", DeviceName: "Launchpad Mini", At: base.Add(time.Millisecond)},
		{Kind: DeviceEventRemoved, DeviceID: "0:Launchpad Mini", DeviceName: "Launchpad Mini", At: base.Add(2 * time.Millisecond)},
	}
	for _, event := range events {
		if err := repo.Insert(ctx, event); err != nil {
			t.Fatalf("insert %s: %v", event.Kind, err)
		}
	}

	recs, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recs) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(recs))
	}
	for i, rec := range recs {
		if rec.Kind != events[i].Kind {
			t.Fatalf("event %d: expected kind %s, got %s", i, events[i].Kind, rec.Kind)
		}
		if !rec.At.Equal(events[i].At) {
			t.Fatalf("event %d: expected at %v, got %v", i, events[i].At, rec.At)
		}
		if rec.DeviceID != events[i].DeviceID || rec.DeviceName != events[i].DeviceName {
			t.Fatalf("event %d: device fields did not roundtrip: %+v", i, rec)
		}
	}
}

func TestOpen_MigratesV1DatabaseToV2(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "app.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stmts := []string{
		`CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			channel INTEGER NOT NULL,
			note INTEGER NULL,
			velocity INTEGER NULL,
			controller INTEGER NULL,
			value INTEGER NULL,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX messages_at_idx ON messages(at DESC);`,
		`PRAGMA user_version = 1;`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			t.Fatalf("seed v1 schema: %v", err)
		}
	}
	_ = db.Close()

	migrated, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open migrated db: %v", err)
	}
	defer func() { _ = migrated.Close() }()

	var version int
	if err := migrated.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}

	var eventsTable string
	if err := migrated.QueryRowContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name = 'device_events'
	`).Scan(&eventsTable); err != nil {
		t.Fatalf("expected device_events table after migration: %v", err)
	}
	if eventsTable != "device_events" {
		t.Fatalf("unexpected device_events table name: %q", eventsTable)
	}
}
