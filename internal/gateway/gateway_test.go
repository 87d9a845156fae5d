package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expokossodo/expogate/internal/cache"
	"github.com/expokossodo/expogate/internal/ctxutil"
	"github.com/expokossodo/expogate/internal/kpi"
	"github.com/expokossodo/expogate/internal/model"
	"github.com/expokossodo/expogate/internal/ratelimit"
	"github.com/expokossodo/expogate/internal/storage"
)

// fakeStore implements both the gateway Store and the kpi Store.
type fakeStore struct {
	listEventsCalls int
	events          []model.EventInfo
	capacity        model.Capacity
	capacityErr     error
	registrants     []model.RegistrantInfo
	matches         []model.SearchMatch
	items           []model.RoomEventItem

	registrantExists bool
	eventExists      bool
	upserted         []model.AttendanceRecord
	searchedCampos   []string
}

func (f *fakeStore) ListEvents(context.Context, *time.Time, *time.Time, string, string) ([]model.EventInfo, error) {
	f.listEventsCalls++
	return f.events, nil
}

func (f *fakeStore) RoomEventMap(context.Context, time.Time) ([]model.RoomEventItem, error) {
	return f.items, nil
}

func (f *fakeStore) CapacityByEvent(context.Context, int64) (model.Capacity, error) {
	if f.capacityErr != nil {
		return model.Capacity{}, f.capacityErr
	}
	return f.capacity, nil
}

func (f *fakeStore) ListRegistrantsByEvent(context.Context, int64, int, int) (int, []model.RegistrantInfo, error) {
	return len(f.registrants), f.registrants, nil
}

func (f *fakeStore) ListRegistrantsByDay(context.Context, time.Time, string, int, int) (int, []model.RegistrantInfo, error) {
	return len(f.registrants), f.registrants, nil
}

func (f *fakeStore) SearchRegistrants(_ context.Context, _ string, campos []string) ([]model.SearchMatch, error) {
	f.searchedCampos = campos
	return f.matches, nil
}

func (f *fakeStore) UpsertAttendance(_ context.Context, rec model.AttendanceRecord) (time.Time, error) {
	f.upserted = append(f.upserted, rec)
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), nil
}

func (f *fakeStore) EventExists(context.Context, int64) (bool, error) {
	return f.eventExists, nil
}

func (f *fakeStore) RegistrantExists(context.Context, int64) (bool, error) {
	return f.registrantExists, nil
}

func (f *fakeStore) CountRegistrations(context.Context, time.Time, time.Time) (int, error) {
	return 150, nil
}

func (f *fakeStore) CountAttendance(context.Context, time.Time, time.Time) (int, error) {
	return 38, nil
}

func (f *fakeStore) TopOrganizations(context.Context, time.Time, time.Time, int) ([]model.OrgCount, error) {
	return nil, nil
}

func (f *fakeStore) TopEvents(context.Context, time.Time, time.Time, int) ([]model.EventCount, error) {
	return nil, nil
}

func newTestGateway(t *testing.T, store *fakeStore) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter := ratelimit.New()
	t.Cleanup(func() { _ = limiter.Close() })

	memStore := cache.NewMemoryStore()
	t.Cleanup(func() { _ = memStore.Close() })

	return New(
		store,
		limiter,
		cache.NewGateway(memStore, logger),
		kpi.NewEngine(store, logger),
		ratelimit.Rule{Limit: 10, Window: time.Minute},
		ratelimit.Rule{Limit: 3, Window: time.Minute},
		logger,
	)
}

var (
	reader      = &model.Principal{ID: "op-1", Name: "Lector Uno", Role: model.RoleReader}
	doorStaff   = &model.Principal{ID: "op-2", Name: "Puerta Dos", Role: model.RoleDoorStaff}
	coordinator = &model.Principal{ID: "op-3", Name: "Coord Tres", Role: model.RoleCoordinator}
)

func toolErr(t *testing.T, err error) *model.ToolError {
	t.Helper()
	require.Error(t, err)
	te, ok := err.(*model.ToolError)
	require.True(t, ok, "expected *model.ToolError, got %T", err)
	return te
}

func TestDispatchRequiresPrincipal(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	_, _, err := g.Dispatch(context.Background(), nil, model.ToolListEvents, nil)
	assert.Equal(t, model.ErrCodeUnauthorized, toolErr(t, err).Code)
}

func TestReaderCannotConfirmAttendance(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})

	_, _, err := g.Dispatch(context.Background(), reader, model.ToolConfirmAttendance, map[string]any{
		"registroId": 1, "eventoId": 2, "estado": model.EstadoPresente,
	})
	te := toolErr(t, err)
	assert.Equal(t, model.ErrCodeForbidden, te.Code)
	assert.Equal(t, model.ToolConfirmAttendance, te.Details["tool"])
	assert.Equal(t, string(model.RoleReader), te.Details["role"])
}

func TestUnknownToolDenied(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	_, _, err := g.Dispatch(context.Background(), coordinator, "dropTables", nil)
	assert.Equal(t, model.ErrCodeForbidden, toolErr(t, err).Code)
}

func TestWriteRateLimitRule(t *testing.T) {
	g := newTestGateway(t, &fakeStore{registrantExists: true, eventExists: true})
	ctx := context.Background()
	params := map[string]any{"registroId": 1, "eventoId": 2, "estado": model.EstadoPresente}

	for i := 0; i < 3; i++ {
		_, res, err := g.Dispatch(ctx, doorStaff, model.ToolConfirmAttendance, params)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	_, res, err := g.Dispatch(ctx, doorStaff, model.ToolConfirmAttendance, params)
	te := toolErr(t, err)
	assert.Equal(t, model.ErrCodeRateLimited, te.Code)
	assert.False(t, res.Allowed)
	assert.NotZero(t, te.Details["retry_after_seconds"])

	// Reads for the same principal are admitted under their own key.
	_, _, err = g.Dispatch(ctx, doorStaff, model.ToolListEvents, nil)
	assert.NoError(t, err)
}

func TestConfirmAttendanceRecordsVerifier(t *testing.T) {
	store := &fakeStore{registrantExists: true, eventExists: true}
	g := newTestGateway(t, store)

	ctx := ctxutil.WithClientIP(context.Background(), "10.0.0.9")
	out, _, err := g.Dispatch(ctx, doorStaff, model.ToolConfirmAttendance, map[string]any{
		"registroId": 7, "eventoId": 3, "estado": model.EstadoTarde, "observacion": "llegó tarde",
	})
	require.NoError(t, err)

	result, ok := out.(model.ConfirmAttendanceOutput)
	require.True(t, ok)
	assert.True(t, result.OK)
	assert.Equal(t, int64(7), result.RegistroID)
	assert.Equal(t, int64(3), result.EventoID)

	require.Len(t, store.upserted, 1)
	rec := store.upserted[0]
	assert.Equal(t, "Puerta Dos", rec.VerifiedBy)
	assert.Equal(t, "10.0.0.9", rec.VerifyIP)
	assert.Equal(t, model.EstadoTarde, rec.Estado)
	assert.Equal(t, "llegó tarde", rec.Note)
}

func TestConfirmAttendanceNotFoundNamesKeys(t *testing.T) {
	cases := []struct {
		name       string
		registrant bool
		event      bool
		wantKeys   []string
	}{
		{"missing registration", false, true, []string{"registroId"}},
		{"missing event", true, false, []string{"eventoId"}},
		{"both missing", false, false, []string{"registroId", "eventoId"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGateway(t, &fakeStore{registrantExists: tc.registrant, eventExists: tc.event})
			_, _, err := g.Dispatch(context.Background(), doorStaff, model.ToolConfirmAttendance, map[string]any{
				"registroId": 41, "eventoId": 52, "estado": model.EstadoPresente,
			})
			te := toolErr(t, err)
			assert.Equal(t, model.ErrCodeNotFound, te.Code)
			assert.Len(t, te.Details, len(tc.wantKeys))
			for _, key := range tc.wantKeys {
				assert.Contains(t, te.Details, key)
			}
		})
	}
}

func TestConfirmAttendanceValidation(t *testing.T) {
	g := newTestGateway(t, &fakeStore{registrantExists: true, eventExists: true})
	ctx := context.Background()

	longNote := make([]byte, model.MaxObservacionLen+1)
	for i := range longNote {
		longNote[i] = 'x'
	}

	cases := []map[string]any{
		{"eventoId": 2, "estado": model.EstadoPresente},                                           // missing registroId
		{"registroId": 1, "estado": model.EstadoPresente},                                         // missing eventoId
		{"registroId": 1, "eventoId": 2, "estado": "PENDIENTE"},                                   // bad estado
		{"registroId": 1, "eventoId": 2, "estado": model.EstadoPresente, "observacion": string(longNote)}, // long note
	}
	for _, params := range cases {
		_, _, err := g.Dispatch(ctx, doorStaff, model.ToolConfirmAttendance, params)
		assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)
	}
}

func TestListEventsCachedAcrossCalls(t *testing.T) {
	store := &fakeStore{events: []model.EventInfo{{ID: 1, Titulo: "Charla"}}}
	g := newTestGateway(t, store)
	ctx := context.Background()

	params := map[string]any{"sala": "Sala 1"}
	out1, _, err := g.Dispatch(ctx, reader, model.ToolListEvents, params)
	require.NoError(t, err)
	out2, _, err := g.Dispatch(ctx, reader, model.ToolListEvents, params)
	require.NoError(t, err)

	assert.Equal(t, 1, store.listEventsCalls)

	var decoded model.ListEventsOutput
	require.NoError(t, json.Unmarshal(out1.(json.RawMessage), &decoded))
	assert.Equal(t, 1, decoded.Total)
	assert.Equal(t, string(out1.(json.RawMessage)), string(out2.(json.RawMessage)))
}

func TestListEventsRangeValidation(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	_, _, err := g.Dispatch(context.Background(), reader, model.ToolListEvents, map[string]any{
		"fechaInicio": "2026-03-10", "fechaFin": "2026-03-01",
	})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)
}

func TestListRegistrantsValidation(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	ctx := context.Background()

	_, _, err := g.Dispatch(ctx, reader, model.ToolListRegistrants, map[string]any{})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)

	_, _, err = g.Dispatch(ctx, reader, model.ToolListRegistrants, map[string]any{
		"eventoId": 5, "pageSize": 500,
	})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)
}

func TestGetCapacityNotFound(t *testing.T) {
	g := newTestGateway(t, &fakeStore{capacityErr: storage.ErrNotFound})
	_, _, err := g.Dispatch(context.Background(), reader, model.ToolGetCapacity, map[string]any{"eventoId": 404})
	te := toolErr(t, err)
	assert.Equal(t, model.ErrCodeNotFound, te.Code)
	assert.Contains(t, te.Details, "eventoId")
}

func TestGetCapacityDerivedFigures(t *testing.T) {
	g := newTestGateway(t, &fakeStore{capacity: model.Capacity{CupoTotal: 60, Inscritos: 45, Asistidos: 50}})
	out, _, err := g.Dispatch(context.Background(), reader, model.ToolGetCapacity, map[string]any{"eventoId": 9})
	require.NoError(t, err)

	var decoded model.CapacityOutput
	require.NoError(t, json.Unmarshal(out.(json.RawMessage), &decoded))
	assert.Equal(t, 45, decoded.Inscritos)
	assert.Equal(t, 45, decoded.Confirmados)
	assert.Equal(t, 50, decoded.AsistenciaEnPuerta)
	assert.Equal(t, 0, decoded.NoShowEstimado) // clamped
}

func TestGetStatisticsValidation(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	ctx := context.Background()
	rango := map[string]any{"inicio": "2026-03-01", "fin": "2026-03-31"}

	cases := []map[string]any{
		{"granularidad": "HORA", "rango": rango, "kpis": []string{"inscritos"}},
		{"granularidad": "DIA", "rango": rango, "kpis": []string{}},
		{"granularidad": "DIA", "rango": rango, "kpis": []string{"velocidad"}},
		{"granularidad": "DIA", "rango": map[string]any{"inicio": "2026-03-31", "fin": "2026-03-01"}, "kpis": []string{"inscritos"}},
	}
	for _, params := range cases {
		_, _, err := g.Dispatch(ctx, coordinator, model.ToolGetStatistics, params)
		assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)
	}
}

func TestGetStatisticsComputesKPIs(t *testing.T) {
	g := newTestGateway(t, &fakeStore{})
	out, _, err := g.Dispatch(context.Background(), coordinator, model.ToolGetStatistics, map[string]any{
		"granularidad": "DIA",
		"rango":        map[string]any{"inicio": "2026-03-01", "fin": "2026-03-31"},
		"kpis":         []string{"tasaAsistencia", "noShow"},
	})
	require.NoError(t, err)

	var decoded model.GetStatisticsOutput
	require.NoError(t, json.Unmarshal(out.(json.RawMessage), &decoded))
	require.Len(t, decoded.KPIs, 2)
	assert.Equal(t, 25.33, decoded.KPIs[0].Valor)
	assert.Equal(t, 112.0, decoded.KPIs[1].Valor)
	assert.Equal(t, "2026-03-01", decoded.Periodo["inicio"])
}

func TestSearchRegistrantDefaultsAndValidation(t *testing.T) {
	store := &fakeStore{}
	g := newTestGateway(t, store)
	ctx := context.Background()

	_, _, err := g.Dispatch(ctx, reader, model.ToolSearchRegistrant, map[string]any{"query": "j"})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)

	_, _, err = g.Dispatch(ctx, reader, model.ToolSearchRegistrant, map[string]any{
		"query": "juan", "campos": []string{"telefono"},
	})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)

	_, _, err = g.Dispatch(ctx, reader, model.ToolSearchRegistrant, map[string]any{"query": "juan"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nombre", "email", "empresa"}, store.searchedCampos)
}

func TestGetRoomEventMap(t *testing.T) {
	store := &fakeStore{items: []model.RoomEventItem{
		{Sala: "Sala A", EventoID: 1, Titulo: "Charla", Horario: "09:00 - 10:00"},
	}}
	g := newTestGateway(t, store)
	ctx := context.Background()

	_, _, err := g.Dispatch(ctx, reader, model.ToolGetRoomEventMap, map[string]any{})
	assert.Equal(t, model.ErrCodeInvalidInput, toolErr(t, err).Code)

	out, _, err := g.Dispatch(ctx, reader, model.ToolGetRoomEventMap, map[string]any{"dia": "2026-03-01"})
	require.NoError(t, err)

	var decoded model.GetRoomEventMapOutput
	require.NoError(t, json.Unmarshal(out.(json.RawMessage), &decoded))
	assert.Equal(t, 1, decoded.Total)
	assert.Equal(t, "2026-03-01", decoded.Dia)
}
