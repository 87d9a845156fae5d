package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/expokossodo/expogate/internal/model"
)

// UpsertAttendance records an attendance confirmation for a (registrant,
// event) pair. The write is a single atomic statement: a repeat
// confirmation updates the existing row in place, so the latest verifier
// and timestamp win and exactly one row exists per pair. An empty note or
// IP on a repeat call preserves the previously stored value.
func (db *DB) UpsertAttendance(ctx context.Context, rec model.AttendanceRecord) (time.Time, error) {
	var verifiedAt time.Time
	err := db.pool.QueryRow(ctx,
		`INSERT INTO attendance (registrant_id, event_id, estado, verified_by, verified_at, verify_ip, note)
		 VALUES ($1, $2, $3, $4, now(), $5, $6)
		 ON CONFLICT (registrant_id, event_id) DO UPDATE SET
		   estado = EXCLUDED.estado,
		   verified_by = EXCLUDED.verified_by,
		   verified_at = now(),
		   verify_ip = CASE WHEN EXCLUDED.verify_ip <> '' THEN EXCLUDED.verify_ip ELSE attendance.verify_ip END,
		   note = CASE WHEN EXCLUDED.note <> '' THEN EXCLUDED.note ELSE attendance.note END
		 RETURNING verified_at`,
		rec.RegistroID, rec.EventoID, rec.Estado, rec.VerifiedBy, rec.VerifyIP, rec.Note,
	).Scan(&verifiedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: upsert attendance: %w", err)
	}
	return verifiedAt, nil
}

// GetAttendance retrieves the attendance row for a (registrant, event)
// pair. ErrNotFound when no confirmation has been recorded.
func (db *DB) GetAttendance(ctx context.Context, registroID, eventoID int64) (model.Attendance, error) {
	var a model.Attendance
	err := db.pool.QueryRow(ctx,
		`SELECT registrant_id, event_id, estado, verified_by, verified_at, verify_ip, note
		 FROM attendance WHERE registrant_id = $1 AND event_id = $2`,
		registroID, eventoID,
	).Scan(&a.RegistroID, &a.EventoID, &a.Estado, &a.VerifiedBy, &a.VerifiedAt, &a.VerifyIP, &a.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Attendance{}, ErrNotFound
		}
		return model.Attendance{}, fmt.Errorf("storage: get attendance: %w", err)
	}
	return a, nil
}

// CountAttendanceByEvent returns the number of door confirmations for one
// event.
func (db *DB) CountAttendanceByEvent(ctx context.Context, eventoID int64) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM attendance WHERE event_id = $1`, eventoID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count attendance by event: %w", err)
	}
	return n, nil
}
