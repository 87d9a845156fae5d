package kpi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expokossodo/expogate/internal/model"
)

type fakeStore struct {
	registrations int
	attendance    int
	orgs          []model.OrgCount
	events        []model.EventCount

	failCounts bool
	failTops   bool
}

var errStore = errors.New("store down")

func (f *fakeStore) CountRegistrations(context.Context, time.Time, time.Time) (int, error) {
	if f.failCounts {
		return 0, errStore
	}
	return f.registrations, nil
}

func (f *fakeStore) CountAttendance(context.Context, time.Time, time.Time) (int, error) {
	if f.failCounts {
		return 0, errStore
	}
	return f.attendance, nil
}

func (f *fakeStore) TopOrganizations(context.Context, time.Time, time.Time, int) ([]model.OrgCount, error) {
	if f.failTops {
		return nil, errStore
	}
	return f.orgs, nil
}

func (f *fakeStore) TopEvents(context.Context, time.Time, time.Time, int) ([]model.EventCount, error) {
	if f.failTops {
		return nil, errStore
	}
	return f.events, nil
}

func testEngine(store Store) *Engine {
	return NewEngine(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	rangeStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

func TestInscritos(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 150})

	res, err := e.Compute(context.Background(), model.KPIInscritos, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, model.KPIInscritos, res.Nombre)
	assert.Equal(t, 150.0, res.Valor)
	assert.Equal(t, "2026-03-01 a 2026-03-31", res.Detalle["periodo"])
}

func TestConfirmadosMirrorsInscritos(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 150})

	res, err := e.Compute(context.Background(), model.KPIConfirmados, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, model.KPIConfirmados, res.Nombre)
	assert.Equal(t, 150.0, res.Valor)
}

func TestTasaAsistenciaRounding(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 150, attendance: 38})

	res, err := e.Compute(context.Background(), model.KPITasaAsistencia, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 25.33, res.Valor)
	assert.Equal(t, 150, res.Detalle["inscritos"])
	assert.Equal(t, 38, res.Detalle["asistieron"])
	assert.Equal(t, 25.33, res.Detalle["porcentaje"])
}

func TestTasaAsistenciaZeroDenominator(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 0, attendance: 0})

	res, err := e.Compute(context.Background(), model.KPITasaAsistencia, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Valor)
}

func TestNoShowNotClamped(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 150, attendance: 38})
	res, err := e.Compute(context.Background(), model.KPINoShow, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 112.0, res.Valor)

	// Door confirmations can outnumber registrations (walk-ins); the
	// figure is reported as-is.
	e = testEngine(&fakeStore{registrations: 10, attendance: 15})
	res, err = e.Compute(context.Background(), model.KPINoShow, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, -5.0, res.Valor)
}

func TestLeadsPorFuente(t *testing.T) {
	e := testEngine(&fakeStore{orgs: []model.OrgCount{
		{Empresa: "Alfa", Inscritos: 7},
		{Empresa: "Beta", Inscritos: 3},
	}})

	res, err := e.Compute(context.Background(), model.KPILeadsPorFuente, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Valor)
	assert.Equal(t, 10, res.Detalle["totalLeads"])

	fuentes := res.Detalle["topFuentes"].([]map[string]any)
	require.Len(t, fuentes, 2)
	assert.Equal(t, "Alfa", fuentes[0]["fuente"])
	assert.Equal(t, 7, fuentes[0]["total"])
}

func TestEventosMasPopulares(t *testing.T) {
	e := testEngine(&fakeStore{events: []model.EventCount{
		{EventoID: 5, Titulo: "Charla A", Sala: "Sala 1", Inscritos: 40},
		{EventoID: 9, Titulo: "Charla B", Sala: "Sala 2", Inscritos: 12},
	}})

	res, err := e.Compute(context.Background(), model.KPIEventosTop, model.GranularidadDia, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Valor)

	top := res.Detalle["topEventos"].([]map[string]any)
	require.Len(t, top, 2)
	assert.Equal(t, int64(5), top[0]["eventoId"])
	assert.Equal(t, 40, top[0]["inscritos"])
}

func TestComputeUnknownName(t *testing.T) {
	e := testEngine(&fakeStore{})
	_, err := e.Compute(context.Background(), "velocidad", model.GranularidadDia, rangeStart, rangeEnd)
	assert.Error(t, err)
}

func TestComputeAllIsolatesFailures(t *testing.T) {
	e := testEngine(&fakeStore{
		failCounts: true,
		orgs:       []model.OrgCount{{Empresa: "Alfa", Inscritos: 4}},
	})

	names := []string{model.KPIInscritos, model.KPILeadsPorFuente, model.KPITasaAsistencia}
	results := e.ComputeAll(context.Background(), names, model.GranularidadDia, rangeStart, rangeEnd)

	// Count-backed KPIs fail, the ranked one still computes.
	require.Len(t, results, 1)
	assert.Equal(t, model.KPILeadsPorFuente, results[0].Nombre)
}

func TestComputeAllPreservesOrder(t *testing.T) {
	e := testEngine(&fakeStore{registrations: 5, attendance: 2})

	names := []string{model.KPINoShow, model.KPIInscritos}
	results := e.ComputeAll(context.Background(), names, model.GranularidadDia, rangeStart, rangeEnd)
	require.Len(t, results, 2)
	assert.Equal(t, model.KPINoShow, results[0].Nombre)
	assert.Equal(t, model.KPIInscritos, results[1].Nombre)
}
