package gateway

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expokossodo/expogate/internal/ctxutil"
	"github.com/expokossodo/expogate/internal/model"
	"github.com/expokossodo/expogate/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	minQueryLen     = 2
)

func (g *Gateway) listEvents(ctx context.Context, params map[string]any) (any, error) {
	var in model.ListEventsInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}

	var fechaInicio, fechaFin *time.Time
	if in.FechaInicio != "" {
		t, err := model.ParseDay(in.FechaInicio)
		if err != nil {
			return nil, model.Invalid("invalid fechaInicio %q (want YYYY-MM-DD)", in.FechaInicio)
		}
		fechaInicio = &t
	}
	if in.FechaFin != "" {
		t, err := model.ParseDay(in.FechaFin)
		if err != nil {
			return nil, model.Invalid("invalid fechaFin %q (want YYYY-MM-DD)", in.FechaFin)
		}
		fechaFin = &t
	}
	if fechaInicio != nil && fechaFin != nil && fechaFin.Before(*fechaInicio) {
		return nil, model.Invalid("fechaFin %s before fechaInicio %s", in.FechaFin, in.FechaInicio)
	}

	out, err := g.cache.GetOrCompute(ctx, model.ToolListEvents, keyParams(in), func(ctx context.Context) (any, error) {
		events, err := g.store.ListEvents(ctx, fechaInicio, fechaFin, in.Sala, in.Query)
		if err != nil {
			return nil, err
		}
		if events == nil {
			events = []model.EventInfo{}
		}
		return model.ListEventsOutput{Eventos: events, Total: len(events)}, nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolListEvents, err)
	}
	return out, nil
}

func (g *Gateway) listRegistrants(ctx context.Context, params map[string]any) (any, error) {
	var in model.ListRegistrantsInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	if in.EventoID <= 0 && in.Dia == "" {
		return nil, model.Invalid("either eventoId or dia is required")
	}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.PageSize == 0 {
		in.PageSize = defaultPageSize
	}
	if in.Page < 1 {
		return nil, model.Invalid("page must be >= 1")
	}
	if in.PageSize < 1 || in.PageSize > maxPageSize {
		return nil, model.Invalid("pageSize must be between 1 and %d", maxPageSize)
	}

	var dia time.Time
	if in.EventoID <= 0 {
		t, err := model.ParseDay(in.Dia)
		if err != nil {
			return nil, model.Invalid("invalid dia %q (want YYYY-MM-DD)", in.Dia)
		}
		dia = t
	}

	out, err := g.cache.GetOrCompute(ctx, model.ToolListRegistrants, keyParams(in), func(ctx context.Context) (any, error) {
		var (
			total int
			lista []model.RegistrantInfo
			err   error
		)
		if in.EventoID > 0 {
			total, lista, err = g.store.ListRegistrantsByEvent(ctx, in.EventoID, in.Page, in.PageSize)
		} else {
			total, lista, err = g.store.ListRegistrantsByDay(ctx, dia, in.Sala, in.Page, in.PageSize)
		}
		if err != nil {
			return nil, err
		}
		if lista == nil {
			lista = []model.RegistrantInfo{}
		}
		return model.ListRegistrantsOutput{Total: total, Page: in.Page, PageSize: in.PageSize, Lista: lista}, nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolListRegistrants, err)
	}
	return out, nil
}

func (g *Gateway) getCapacity(ctx context.Context, params map[string]any) (any, error) {
	var in model.GetCapacityInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	if in.EventoID <= 0 {
		return nil, model.Invalid("eventoId is required")
	}

	out, err := g.cache.GetOrCompute(ctx, model.ToolGetCapacity, keyParams(in), func(ctx context.Context) (any, error) {
		c, err := g.store.CapacityByEvent(ctx, in.EventoID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, model.NotFound("event not found", map[string]any{"eventoId": in.EventoID})
			}
			return nil, err
		}
		return c.ToOutput(), nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolGetCapacity, err)
	}
	return out, nil
}

func (g *Gateway) confirmAttendance(ctx context.Context, p *model.Principal, params map[string]any) (any, error) {
	var in model.ConfirmAttendanceInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	if in.RegistroID <= 0 {
		return nil, model.Invalid("registroId is required")
	}
	if in.EventoID <= 0 {
		return nil, model.Invalid("eventoId is required")
	}
	if !model.ValidEstado(in.Estado) {
		return nil, model.Invalid("invalid estado %q (want PRESENTE, AUSENTE or TARDE)", in.Estado)
	}
	if utf8.RuneCountInString(in.Observacion) > model.MaxObservacionLen {
		return nil, model.Invalid("observacion exceeds %d characters", model.MaxObservacionLen)
	}

	regOK, err := g.store.RegistrantExists(ctx, in.RegistroID)
	if err != nil {
		return nil, g.internalErr(model.ToolConfirmAttendance, err)
	}
	evOK, err := g.store.EventExists(ctx, in.EventoID)
	if err != nil {
		return nil, g.internalErr(model.ToolConfirmAttendance, err)
	}
	if !regOK || !evOK {
		keys := make(map[string]any)
		var missing []string
		if !regOK {
			keys["registroId"] = in.RegistroID
			missing = append(missing, "registration")
		}
		if !evOK {
			keys["eventoId"] = in.EventoID
			missing = append(missing, "event")
		}
		return nil, model.NotFound(strings.Join(missing, " and ")+" not found", keys)
	}

	verifiedAt, err := g.store.UpsertAttendance(ctx, model.AttendanceRecord{
		RegistroID: in.RegistroID,
		EventoID:   in.EventoID,
		Estado:     in.Estado,
		VerifiedBy: p.Name,
		VerifyIP:   ctxutil.ClientIPFromContext(ctx),
		Note:       in.Observacion,
	})
	if err != nil {
		return nil, g.internalErr(model.ToolConfirmAttendance, err)
	}

	return model.ConfirmAttendanceOutput{
		OK:         true,
		Timestamp:  verifiedAt,
		RegistroID: in.RegistroID,
		EventoID:   in.EventoID,
	}, nil
}

func (g *Gateway) getStatistics(ctx context.Context, params map[string]any) (any, error) {
	var in model.GetStatisticsInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	if !model.ValidGranularidad(in.Granularidad) {
		return nil, model.Invalid("invalid granularidad %q (want DIA, EVENTO or SALA)", in.Granularidad)
	}
	if len(in.KPIs) == 0 {
		return nil, model.Invalid("kpis is required")
	}
	for _, name := range in.KPIs {
		if !model.ValidKPIName(name) {
			return nil, model.Invalid("unknown kpi %q", name)
		}
	}
	start, end, err := in.Rango.Parse()
	if err != nil {
		return nil, model.Invalid("invalid rango: %v", err)
	}

	out, err := g.cache.GetOrCompute(ctx, model.ToolGetStatistics, keyParams(in), func(ctx context.Context) (any, error) {
		results := g.kpis.ComputeAll(ctx, in.KPIs, in.Granularidad, start, end)
		return model.GetStatisticsOutput{
			KPIs:         results,
			Granularidad: in.Granularidad,
			Periodo:      map[string]string{"inicio": in.Rango.Inicio, "fin": in.Rango.Fin},
		}, nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolGetStatistics, err)
	}
	return out, nil
}

func (g *Gateway) searchRegistrant(ctx context.Context, params map[string]any) (any, error) {
	var in model.SearchRegistrantInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	in.Query = strings.TrimSpace(in.Query)
	if utf8.RuneCountInString(in.Query) < minQueryLen {
		return nil, model.Invalid("query must be at least %d characters", minQueryLen)
	}
	if len(in.Campos) == 0 {
		in.Campos = model.DefaultSearchFields()
	}
	for _, campo := range in.Campos {
		if !model.ValidSearchField(campo) {
			return nil, model.Invalid("unknown campo %q", campo)
		}
	}

	// Personal data is never served from cache.
	out, err := g.cache.GetOrCompute(ctx, model.ToolSearchRegistrant, keyParams(in), func(ctx context.Context) (any, error) {
		matches, err := g.store.SearchRegistrants(ctx, in.Query, in.Campos)
		if err != nil {
			return nil, err
		}
		if matches == nil {
			matches = []model.SearchMatch{}
		}
		return model.SearchRegistrantOutput{Coincidencias: matches, Total: len(matches)}, nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolSearchRegistrant, err)
	}
	return out, nil
}

func (g *Gateway) getRoomEventMap(ctx context.Context, params map[string]any) (any, error) {
	var in model.GetRoomEventMapInput
	if err := decode(params, &in); err != nil {
		return nil, err
	}
	if in.Dia == "" {
		return nil, model.Invalid("dia is required")
	}
	dia, err := model.ParseDay(in.Dia)
	if err != nil {
		return nil, model.Invalid("invalid dia %q (want YYYY-MM-DD)", in.Dia)
	}

	out, err := g.cache.GetOrCompute(ctx, model.ToolGetRoomEventMap, keyParams(in), func(ctx context.Context) (any, error) {
		items, err := g.store.RoomEventMap(ctx, dia)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.RoomEventItem{}
		}
		return model.GetRoomEventMapOutput{Items: items, Dia: in.Dia, Total: len(items)}, nil
	})
	if err != nil {
		return nil, g.internalErr(model.ToolGetRoomEventMap, err)
	}
	return out, nil
}
