package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/expokossodo/expogate/internal/model"
)

// CountRegistrations returns the number of registrations for events whose
// date falls in [start, end].
func (db *DB) CountRegistrations(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*)
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE e.fecha BETWEEN $1 AND $2`, start, end,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count registrations: %w", err)
	}
	return n, nil
}

// CountAttendance returns the number of door confirmations for events
// whose date falls in [start, end].
func (db *DB) CountAttendance(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*)
		 FROM attendance a
		 JOIN events e ON e.id = a.event_id
		 WHERE e.fecha BETWEEN $1 AND $2`, start, end,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count attendance: %w", err)
	}
	return n, nil
}

// TopOrganizations returns the organizations with the most registrations
// in [start, end], count descending, ties broken by name ascending.
func (db *DB) TopOrganizations(ctx context.Context, start, end time.Time, limit int) ([]model.OrgCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT reg.empresa, count(*) AS n
		 FROM registrations r
		 JOIN registrants reg ON reg.id = r.registrant_id
		 JOIN events e ON e.id = r.event_id
		 WHERE e.fecha BETWEEN $1 AND $2
		 GROUP BY reg.empresa
		 ORDER BY n DESC, reg.empresa ASC
		 LIMIT $3`, start, end, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: top organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.OrgCount
	for rows.Next() {
		var o model.OrgCount
		if err := rows.Scan(&o.Empresa, &o.Inscritos); err != nil {
			return nil, fmt.Errorf("storage: scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// TopEvents returns the events with the most registrations in [start,
// end], count descending, ties broken by title ascending.
func (db *DB) TopEvents(ctx context.Context, start, end time.Time, limit int) ([]model.EventCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT e.id, e.titulo, e.sala, count(*) AS n
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE e.fecha BETWEEN $1 AND $2
		 GROUP BY e.id, e.titulo, e.sala
		 ORDER BY n DESC, e.titulo ASC
		 LIMIT $3`, start, end, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: top events: %w", err)
	}
	defer rows.Close()

	var events []model.EventCount
	for rows.Next() {
		var ec model.EventCount
		if err := rows.Scan(&ec.EventoID, &ec.Titulo, &ec.Sala, &ec.Inscritos); err != nil {
			return nil, fmt.Errorf("storage: scan event count: %w", err)
		}
		events = append(events, ec)
	}
	return events, rows.Err()
}
