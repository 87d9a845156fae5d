package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/expokossodo/expogate/internal/model"
)

// searchLimit caps how many registrants a search returns.
const searchLimit = 20

// ListRegistrantsByEvent returns one page of registrants for an event,
// newest registration first, along with the total match count.
func (db *DB) ListRegistrantsByEvent(ctx context.Context, eventoID int64, page, pageSize int) (int, []model.RegistrantInfo, error) {
	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM registrations WHERE event_id = $1`, eventoID,
	).Scan(&total)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: count registrants by event: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT reg.id, reg.nombre, reg.empresa, reg.email, r.created_at
		 FROM registrations r
		 JOIN registrants reg ON reg.id = r.registrant_id
		 WHERE r.event_id = $1
		 ORDER BY r.created_at DESC
		 LIMIT $2 OFFSET $3`,
		eventoID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: list registrants by event: %w", err)
	}
	defer rows.Close()

	lista, err := scanRegistrants(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, lista, nil
}

// ListRegistrantsByDay returns one page of registrants whose events fall on
// the given day, optionally narrowed to a room (ILIKE substring match).
func (db *DB) ListRegistrantsByDay(ctx context.Context, dia time.Time, sala string, page, pageSize int) (int, []model.RegistrantInfo, error) {
	where := "e.fecha = $1"
	args := []any{dia}
	if sala != "" {
		args = append(args, "%"+sala+"%")
		where += fmt.Sprintf(" AND e.sala ILIKE $%d", len(args))
	}

	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*)
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: count registrants by day: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := db.pool.Query(ctx,
		`SELECT reg.id, reg.nombre, reg.empresa, reg.email, r.created_at
		 FROM registrations r
		 JOIN registrants reg ON reg.id = r.registrant_id
		 JOIN events e ON e.id = r.event_id
		 WHERE `+where+fmt.Sprintf(`
		 ORDER BY r.created_at DESC
		 LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: list registrants by day: %w", err)
	}
	defer rows.Close()

	lista, err := scanRegistrants(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, lista, nil
}

func scanRegistrants(rows pgx.Rows) ([]model.RegistrantInfo, error) {
	var lista []model.RegistrantInfo
	for rows.Next() {
		var info model.RegistrantInfo
		if err := rows.Scan(&info.RegistroID, &info.Nombre, &info.Empresa, &info.Email, &info.CreadoEn); err != nil {
			return nil, fmt.Errorf("storage: scan registrant: %w", err)
		}
		info.Estado = model.EstadoInscrito
		lista = append(lista, info)
	}
	return lista, rows.Err()
}

// searchColumns maps wire field names to registrant columns.
var searchColumns = map[string]string{
	"nombre":  "nombre",
	"email":   "email",
	"empresa": "empresa",
	"doc":     "doc",
}

// SearchRegistrants finds registrants whose selected fields contain the
// query (case-insensitive) and attaches each match's associated events.
func (db *DB) SearchRegistrants(ctx context.Context, query string, campos []string) ([]model.SearchMatch, error) {
	var conds []string
	pattern := "%" + query + "%"
	for _, campo := range campos {
		col, ok := searchColumns[campo]
		if !ok {
			continue
		}
		conds = append(conds, col+" ILIKE $1")
	}
	if len(conds) == 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, nombre, empresa, email FROM registrants
		 WHERE `+strings.Join(conds, " OR ")+
			fmt.Sprintf(` ORDER BY id LIMIT %d`, searchLimit),
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search registrants: %w", err)
	}
	defer rows.Close()

	var (
		matches []model.SearchMatch
		ids     []int64
		byID    = make(map[int64]int)
	)
	for rows.Next() {
		var m model.SearchMatch
		if err := rows.Scan(&m.RegistroID, &m.Nombre, &m.Empresa, &m.Email); err != nil {
			return nil, fmt.Errorf("storage: scan search match: %w", err)
		}
		m.EventosAsociados = []model.AssociatedEvent{}
		byID[m.RegistroID] = len(matches)
		ids = append(ids, m.RegistroID)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	evRows, err := db.pool.Query(ctx,
		`SELECT r.registrant_id, e.id, e.titulo
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.registrant_id = ANY($1)
		 ORDER BY r.registrant_id, e.id`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search associated events: %w", err)
	}
	defer evRows.Close()

	for evRows.Next() {
		var (
			registroID int64
			ev         model.AssociatedEvent
		)
		if err := evRows.Scan(&registroID, &ev.EventoID, &ev.Titulo); err != nil {
			return nil, fmt.Errorf("storage: scan associated event: %w", err)
		}
		ev.Estado = model.EstadoInscrito
		i := byID[registroID]
		matches[i].EventosAsociados = append(matches[i].EventosAsociados, ev)
	}
	return matches, evRows.Err()
}

// RegistrantExists reports whether a registrant with the given id exists.
func (db *DB) RegistrantExists(ctx context.Context, registroID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrants WHERE id = $1)`, registroID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: registrant exists: %w", err)
	}
	return exists, nil
}
