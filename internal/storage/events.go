package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/expokossodo/expogate/internal/model"
)

// eventListLimit caps how many events a single listing returns.
const eventListLimit = 50

// ListEvents returns events matching the given filters, ordered by date
// then time slot. Date filters are inclusive; sala and query match with
// ILIKE on substrings.
func (db *DB) ListEvents(ctx context.Context, fechaInicio, fechaFin *time.Time, sala, query string) ([]model.EventInfo, error) {
	var (
		where []string
		args  []any
	)
	if fechaInicio != nil {
		args = append(args, *fechaInicio)
		where = append(where, fmt.Sprintf("fecha >= $%d", len(args)))
	}
	if fechaFin != nil {
		args = append(args, *fechaFin)
		where = append(where, fmt.Sprintf("fecha <= $%d", len(args)))
	}
	if sala != "" {
		args = append(args, "%"+sala+"%")
		where = append(where, fmt.Sprintf("sala ILIKE $%d", len(args)))
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		where = append(where, fmt.Sprintf("(titulo ILIKE $%d OR expositor ILIKE $%d)", len(args), len(args)))
	}

	sql := `SELECT id, titulo, sala, fecha, hora, cupo_total, disponible, expositor FROM events`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += fmt.Sprintf(" ORDER BY fecha, hora LIMIT %d", eventListLimit)

	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list events: %w", err)
	}
	defer rows.Close()

	var events []model.EventInfo
	for rows.Next() {
		var (
			ev         model.EventInfo
			fecha      time.Time
			disponible bool
		)
		if err := rows.Scan(&ev.ID, &ev.Titulo, &ev.Sala, &fecha, &ev.Horario, &ev.CupoTotal, &disponible, &ev.Expositor); err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		ev.FechaInicio = fecha.Format(model.DayFormat)
		ev.Estado = eventEstado(disponible)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func eventEstado(disponible bool) string {
	if disponible {
		return "ACTIVO"
	}
	return "INACTIVO"
}

// RoomEventMap returns the room/event schedule for one day, ordered by
// room then time slot.
func (db *DB) RoomEventMap(ctx context.Context, dia time.Time) ([]model.RoomEventItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT sala, id, titulo, hora FROM events WHERE fecha = $1 ORDER BY sala, hora`, dia,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: room event map: %w", err)
	}
	defer rows.Close()

	var items []model.RoomEventItem
	for rows.Next() {
		var item model.RoomEventItem
		if err := rows.Scan(&item.Sala, &item.EventoID, &item.Titulo, &item.Horario); err != nil {
			return nil, fmt.Errorf("storage: scan room event: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CapacityByEvent returns the headcounts for one event. ErrNotFound when
// the event does not exist.
func (db *DB) CapacityByEvent(ctx context.Context, eventoID int64) (model.Capacity, error) {
	var c model.Capacity
	err := db.pool.QueryRow(ctx,
		`SELECT e.cupo_total,
		 (SELECT count(*) FROM registrations r WHERE r.event_id = e.id),
		 (SELECT count(*) FROM attendance a WHERE a.event_id = e.id)
		 FROM events e WHERE e.id = $1`, eventoID,
	).Scan(&c.CupoTotal, &c.Inscritos, &c.Asistidos)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Capacity{}, ErrNotFound
		}
		return model.Capacity{}, fmt.Errorf("storage: capacity for event %d: %w", eventoID, err)
	}
	return c, nil
}

// EventExists reports whether an event with the given id exists.
func (db *DB) EventExists(ctx context.Context, eventoID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: event exists: %w", err)
	}
	return exists, nil
}
