package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skobkin/midimon/internal/midi"
)

// MessageRecord is one decoded message as stored in the messages table.
// Only the columns the message's family defines are non-nil: note and
// velocity for the note variants, controller and value for control
// change, value alone for program change.
type MessageRecord struct {
	ID         int64
	DeviceID   string
	Kind       string
	Channel    int
	Note       *int
	Velocity   *int
	Controller *int
	Value      *int
	At         time.Time
}

// RecordForMessage flattens a decoded message into its storage row.
func RecordForMessage(msg midi.Message, deviceID string) MessageRecord {
	rec := MessageRecord{
		DeviceID: deviceID,
		Kind:     string(msg.Kind()),
		Channel:  int(midi.ChannelOf(msg)),
		At:       midi.TimeOf(msg),
	}
	switch v := msg.(type) {
	case midi.NoteOn:
		rec.Note = intPtr(int(v.Note))
		rec.Velocity = intPtr(int(v.Velocity))
	case midi.NoteOff:
		rec.Note = intPtr(int(v.Note))
		rec.Velocity = intPtr(int(v.Velocity))
	case midi.ControlChange:
		rec.Controller = intPtr(int(v.Controller))
		rec.Value = intPtr(int(v.Value))
	case midi.ProgramChange:
		rec.Value = intPtr(int(v.Value))
	}

	return rec
}

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Insert(ctx context.Context, rec MessageRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages(device_id, kind, channel, note, velocity, controller, value, at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.DeviceID, rec.Kind, rec.Channel, nullableInt(rec.Note), nullableInt(rec.Velocity), nullableInt(rec.Controller), nullableInt(rec.Value), timeToUnixMillis(rec.At))
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get message id: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit of the newest messages in chronological
// order.
func (r *MessageRepo) ListRecent(ctx context.Context, limit int) ([]MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, kind, channel, note, velocity, controller, value, at
		FROM messages
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []MessageRecord
	for rows.Next() {
		rec, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

func scanMessage(scanner interface {
	Scan(dest ...any) error
}) (MessageRecord, error) {
	var (
		rec        MessageRecord
		note       sql.NullInt64
		velocity   sql.NullInt64
		controller sql.NullInt64
		value      sql.NullInt64
		atMs       int64
	)
	if err := scanner.Scan(&rec.ID, &rec.DeviceID, &rec.Kind, &rec.Channel, &note, &velocity, &controller, &value, &atMs); err != nil {
		return MessageRecord{}, fmt.Errorf("scan message: %w", err)
	}
	if note.Valid {
		rec.Note = intPtr(int(note.Int64))
	}
	if velocity.Valid {
		rec.Velocity = intPtr(int(velocity.Int64))
	}
	if controller.Valid {
		rec.Controller = intPtr(int(controller.Int64))
	}
	if value.Valid {
		rec.Value = intPtr(int(value.Int64))
	}
	rec.At = unixMillisToTime(atMs)

	return rec, nil
}
