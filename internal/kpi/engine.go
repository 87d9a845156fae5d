// Package kpi computes conference statistics over the storage layer.
package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/expokossodo/expogate/internal/model"
)

// topLimit bounds the ranked KPIs (organizations, events).
const topLimit = 10

// Store is the subset of the storage layer the engine reads from.
type Store interface {
	CountRegistrations(ctx context.Context, start, end time.Time) (int, error)
	CountAttendance(ctx context.Context, start, end time.Time) (int, error)
	TopOrganizations(ctx context.Context, start, end time.Time, limit int) ([]model.OrgCount, error)
	TopEvents(ctx context.Context, start, end time.Time, limit int) ([]model.EventCount, error)
}

// Engine computes individual KPIs. Each computation is independent: a
// failure in one never affects another.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates a KPI engine over the given store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// ComputeAll computes the requested KPIs over [start, end]. Failed KPIs
// are logged and omitted from the result; the remainder is still returned.
func (e *Engine) ComputeAll(ctx context.Context, names []string, granularidad string, start, end time.Time) []model.KPIResult {
	results := make([]model.KPIResult, 0, len(names))
	for _, name := range names {
		res, err := e.Compute(ctx, name, granularidad, start, end)
		if err != nil {
			e.logger.Error("kpi computation failed", "kpi", name, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// Compute computes a single KPI over [start, end].
func (e *Engine) Compute(ctx context.Context, name, granularidad string, start, end time.Time) (model.KPIResult, error) {
	switch name {
	case model.KPIInscritos:
		return e.inscritos(ctx, name, granularidad, start, end)
	case model.KPIConfirmados:
		// The data model has no independent confirmation state, so
		// confirmados reports the registration count under its own name.
		return e.inscritos(ctx, name, granularidad, start, end)
	case model.KPITasaAsistencia:
		return e.tasaAsistencia(ctx, start, end)
	case model.KPINoShow:
		return e.noShow(ctx, start, end)
	case model.KPILeadsPorFuente:
		return e.leadsPorFuente(ctx, start, end)
	case model.KPIEventosTop:
		return e.eventosMasPopulares(ctx, start, end)
	default:
		return model.KPIResult{}, fmt.Errorf("kpi: unknown name %q", name)
	}
}

func (e *Engine) inscritos(ctx context.Context, name, granularidad string, start, end time.Time) (model.KPIResult, error) {
	total, err := e.store.CountRegistrations(ctx, start, end)
	if err != nil {
		return model.KPIResult{}, fmt.Errorf("kpi: %s: %w", name, err)
	}
	return model.KPIResult{
		Nombre: name,
		Valor:  float64(total),
		Detalle: map[string]any{
			"granularidad": granularidad,
			"periodo":      fmt.Sprintf("%s a %s", start.Format(model.DayFormat), end.Format(model.DayFormat)),
		},
	}, nil
}

func (e *Engine) attendanceCounts(ctx context.Context, start, end time.Time) (inscritos, asistieron int, err error) {
	inscritos, err = e.store.CountRegistrations(ctx, start, end)
	if err != nil {
		return 0, 0, err
	}
	asistieron, err = e.store.CountAttendance(ctx, start, end)
	if err != nil {
		return 0, 0, err
	}
	return inscritos, asistieron, nil
}

func (e *Engine) tasaAsistencia(ctx context.Context, start, end time.Time) (model.KPIResult, error) {
	inscritos, asistieron, err := e.attendanceCounts(ctx, start, end)
	if err != nil {
		return model.KPIResult{}, fmt.Errorf("kpi: tasaAsistencia: %w", err)
	}
	var tasa float64
	if inscritos > 0 {
		tasa = round2(float64(asistieron) * 100 / float64(inscritos))
	}
	return model.KPIResult{
		Nombre: model.KPITasaAsistencia,
		Valor:  tasa,
		Detalle: map[string]any{
			"inscritos":  inscritos,
			"asistieron": asistieron,
			"porcentaje": tasa,
		},
	}, nil
}

func (e *Engine) noShow(ctx context.Context, start, end time.Time) (model.KPIResult, error) {
	inscritos, asistieron, err := e.attendanceCounts(ctx, start, end)
	if err != nil {
		return model.KPIResult{}, fmt.Errorf("kpi: noShow: %w", err)
	}
	// Not clamped: more confirmations than registrations reads negative.
	noShows := inscritos - asistieron
	return model.KPIResult{
		Nombre: model.KPINoShow,
		Valor:  float64(noShows),
		Detalle: map[string]any{
			"inscritos":  inscritos,
			"asistieron": asistieron,
			"noShows":    noShows,
		},
	}, nil
}

func (e *Engine) leadsPorFuente(ctx context.Context, start, end time.Time) (model.KPIResult, error) {
	orgs, err := e.store.TopOrganizations(ctx, start, end, topLimit)
	if err != nil {
		return model.KPIResult{}, fmt.Errorf("kpi: leadsPorFuente: %w", err)
	}
	fuentes := make([]map[string]any, 0, len(orgs))
	total := 0
	for _, o := range orgs {
		fuentes = append(fuentes, map[string]any{"fuente": o.Empresa, "total": o.Inscritos})
		total += o.Inscritos
	}
	return model.KPIResult{
		Nombre: model.KPILeadsPorFuente,
		Valor:  float64(total),
		Detalle: map[string]any{
			"totalLeads": total,
			"topFuentes": fuentes,
		},
	}, nil
}

func (e *Engine) eventosMasPopulares(ctx context.Context, start, end time.Time) (model.KPIResult, error) {
	events, err := e.store.TopEvents(ctx, start, end, topLimit)
	if err != nil {
		return model.KPIResult{}, fmt.Errorf("kpi: eventosMasPopulares: %w", err)
	}
	top := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		top = append(top, map[string]any{
			"eventoId":  ev.EventoID,
			"titulo":    ev.Titulo,
			"sala":      ev.Sala,
			"inscritos": ev.Inscritos,
		})
	}
	return model.KPIResult{
		Nombre: model.KPIEventosTop,
		Valor:  float64(len(events)),
		Detalle: map[string]any{
			"totalEventos": len(events),
			"topEventos":   top,
		},
	}, nil
}

// round2 rounds to two decimals, halves away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
