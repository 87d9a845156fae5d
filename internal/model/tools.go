package model

import (
	"fmt"
	"time"
)

// Tool names. These are the seven operations the gateway exposes; the set is
// closed and permission checks key on these exact strings.
const (
	ToolListEvents        = "listEvents"
	ToolListRegistrants   = "listRegistrants"
	ToolGetCapacity       = "getCapacity"
	ToolConfirmAttendance = "confirmAttendance"
	ToolGetStatistics     = "getStatistics"
	ToolSearchRegistrant  = "searchRegistrant"
	ToolGetRoomEventMap   = "getRoomEventMap"

	// ToolDetailedStatistics is reserved for coordinators. It has no handler
	// of its own yet; it exists so the Coordinator permission set is a strict
	// superset of DoorStaff's.
	ToolDetailedStatistics = "getDetailedStatistics"
)

// DayFormat is the wire format for calendar dates.
const DayFormat = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("model: invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// DateRange is an inclusive [Inicio, Fin] calendar range.
type DateRange struct {
	Inicio string `json:"inicio"`
	Fin    string `json:"fin"`
}

// Parse validates the range and returns its bounds.
func (r DateRange) Parse() (start, end time.Time, err error) {
	start, err = ParseDay(r.Inicio)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = ParseDay(r.Fin)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("model: fin %s before inicio %s", r.Fin, r.Inicio)
	}
	return start, end, nil
}

// ListEventsInput filters the event listing. All fields are optional;
// empty strings mean "no filter".
type ListEventsInput struct {
	FechaInicio string `json:"fechaInicio,omitempty"`
	FechaFin    string `json:"fechaFin,omitempty"`
	Sala        string `json:"sala,omitempty"`
	Query       string `json:"query,omitempty"`
}

// EventInfo is one event in a listing.
type EventInfo struct {
	ID          int64  `json:"id"`
	Titulo      string `json:"titulo"`
	Sala        string `json:"sala"`
	FechaInicio string `json:"fechaInicio"`
	Horario     string `json:"horario"`
	CupoTotal   int    `json:"cupoTotal"`
	Estado      string `json:"estado"`
	Expositor   string `json:"expositor,omitempty"`
}

// ListEventsOutput is the listEvents result.
type ListEventsOutput struct {
	Eventos []EventInfo `json:"eventos"`
	Total   int         `json:"total"`
}

// ListRegistrantsInput selects registrants either by event or by day/room.
type ListRegistrantsInput struct {
	EventoID int64  `json:"eventoId,omitempty"`
	Dia      string `json:"dia,omitempty"`
	Sala     string `json:"sala,omitempty"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

// RegistrantInfo is one registrant row in a listing.
type RegistrantInfo struct {
	RegistroID int64     `json:"registroId"`
	Nombre     string    `json:"nombre"`
	Empresa    string    `json:"empresa,omitempty"`
	Email      string    `json:"email"`
	Estado     string    `json:"estado"`
	CreadoEn   time.Time `json:"creadoEn"`
}

// ListRegistrantsOutput is the paginated listRegistrants result.
type ListRegistrantsOutput struct {
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Lista    []RegistrantInfo `json:"lista"`
}

// GetCapacityInput identifies the event to inspect.
type GetCapacityInput struct {
	EventoID int64 `json:"eventoId"`
}

// CapacityOutput reports headcounts for one event. Confirmados mirrors
// Inscritos: the data model has no independent confirmation state, so the
// two are deliberately the same figure (see KPIConfirmados).
type CapacityOutput struct {
	CupoTotal          int `json:"cupoTotal"`
	Inscritos          int `json:"inscritos"`
	Confirmados        int `json:"confirmados"`
	AsistenciaEnPuerta int `json:"asistenciaEnPuerta"`
	NoShowEstimado     int `json:"noShowEstimado"`
}

// Attendance states accepted by confirmAttendance.
const (
	EstadoPresente = "PRESENTE"
	EstadoAusente  = "AUSENTE"
	EstadoTarde    = "TARDE"
)

// ValidEstado reports whether s is an accepted attendance state.
func ValidEstado(s string) bool {
	return s == EstadoPresente || s == EstadoAusente || s == EstadoTarde
}

// ConfirmAttendanceInput is the single mutating operation's input.
type ConfirmAttendanceInput struct {
	RegistroID  int64  `json:"registroId"`
	EventoID    int64  `json:"eventoId"`
	Estado      string `json:"estado"`
	Observacion string `json:"observacion,omitempty"`
}

// MaxObservacionLen bounds the free-text note.
const MaxObservacionLen = 500

// ConfirmAttendanceOutput acknowledges an attendance confirmation.
type ConfirmAttendanceOutput struct {
	OK         bool      `json:"ok"`
	Timestamp  time.Time `json:"timestamp"`
	RegistroID int64     `json:"registroId"`
	EventoID   int64     `json:"eventoId"`
}

// KPI names.
const (
	KPIInscritos       = "inscritos"
	KPIConfirmados     = "confirmados"
	KPITasaAsistencia  = "tasaAsistencia"
	KPINoShow          = "noShow"
	KPILeadsPorFuente  = "leadsPorFuente"
	KPIEventosTop      = "eventosMasPopulares"
)

// ValidKPIName reports whether name is one of the six computable KPIs.
func ValidKPIName(name string) bool {
	switch name {
	case KPIInscritos, KPIConfirmados, KPITasaAsistencia, KPINoShow, KPILeadsPorFuente, KPIEventosTop:
		return true
	default:
		return false
	}
}

// Statistics granularities.
const (
	GranularidadDia    = "DIA"
	GranularidadEvento = "EVENTO"
	GranularidadSala   = "SALA"
)

// ValidGranularidad reports whether g is an accepted granularity.
func ValidGranularidad(g string) bool {
	return g == GranularidadDia || g == GranularidadEvento || g == GranularidadSala
}

// GetStatisticsInput requests a set of KPIs over a date range.
type GetStatisticsInput struct {
	Granularidad string    `json:"granularidad"`
	Rango        DateRange `json:"rango"`
	KPIs         []string  `json:"kpis"`
}

// KPIResult is one computed statistic. Results are independent of each
// other: the absence of one KPI in a response never implies failure of
// the rest.
type KPIResult struct {
	Nombre  string         `json:"nombre"`
	Valor   float64        `json:"valor"`
	Detalle map[string]any `json:"detalle,omitempty"`
}

// GetStatisticsOutput is the getStatistics result.
type GetStatisticsOutput struct {
	KPIs         []KPIResult       `json:"kpis"`
	Granularidad string            `json:"granularidad"`
	Periodo      map[string]string `json:"periodo"`
}

// Searchable registrant fields.
var searchFields = map[string]bool{
	"nombre":  true,
	"email":   true,
	"empresa": true,
	"doc":     true,
}

// ValidSearchField reports whether f may appear in searchRegistrant campos.
func ValidSearchField(f string) bool { return searchFields[f] }

// DefaultSearchFields is applied when campos is omitted.
func DefaultSearchFields() []string { return []string{"nombre", "email", "empresa"} }

// SearchRegistrantInput is the searchRegistrant input. Query must be at
// least two characters.
type SearchRegistrantInput struct {
	Query  string   `json:"query"`
	Campos []string `json:"campos,omitempty"`
}

// AssociatedEvent is an event linked to a matched registrant.
type AssociatedEvent struct {
	EventoID int64  `json:"eventoId"`
	Titulo   string `json:"titulo,omitempty"`
	Estado   string `json:"estado"`
}

// SearchMatch is one registrant match with its associated events.
type SearchMatch struct {
	RegistroID        int64             `json:"registroId"`
	Nombre            string            `json:"nombre"`
	Empresa           string            `json:"empresa,omitempty"`
	Email             string            `json:"email"`
	EventosAsociados  []AssociatedEvent `json:"eventosAsociados"`
}

// SearchRegistrantOutput is the searchRegistrant result.
type SearchRegistrantOutput struct {
	Coincidencias []SearchMatch `json:"coincidencias"`
	Total         int           `json:"total"`
}

// GetRoomEventMapInput selects the day to map.
type GetRoomEventMapInput struct {
	Dia string `json:"dia"`
}

// RoomEventItem is one row of the room/event quick map.
type RoomEventItem struct {
	Sala     string `json:"sala"`
	EventoID int64  `json:"eventoId"`
	Titulo   string `json:"titulo"`
	Horario  string `json:"horario"`
}

// GetRoomEventMapOutput is the getRoomEventMap result.
type GetRoomEventMapOutput struct {
	Items []RoomEventItem `json:"items"`
	Dia   string          `json:"dia"`
	Total int             `json:"total"`
}
