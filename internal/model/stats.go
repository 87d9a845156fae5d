package model

import "time"

// EstadoInscrito is the registration state reported for every registrant.
// The data model tracks no independent per-registration state, so every
// registration reads as INSCRITO.
const EstadoInscrito = "INSCRITO"

// OrgCount is a per-organization registration tally.
type OrgCount struct {
	Empresa   string `json:"empresa"`
	Inscritos int    `json:"inscritos"`
}

// EventCount is a per-event registration tally.
type EventCount struct {
	EventoID  int64  `json:"eventoId"`
	Titulo    string `json:"titulo"`
	Sala      string `json:"sala"`
	Inscritos int    `json:"inscritos"`
}

// AttendanceRecord is the storage-level payload for an attendance upsert.
type AttendanceRecord struct {
	RegistroID int64
	EventoID   int64
	Estado     string
	VerifiedBy string
	VerifyIP   string
	Note       string
}

// Capacity is the raw headcount row for one event.
type Capacity struct {
	CupoTotal int
	Inscritos int
	Asistidos int
}

// ToOutput derives the wire capacity figures. Confirmados mirrors
// Inscritos and the no-show estimate is clamped at zero.
func (c Capacity) ToOutput() CapacityOutput {
	noShow := c.Inscritos - c.Asistidos
	if noShow < 0 {
		noShow = 0
	}
	return CapacityOutput{
		CupoTotal:          c.CupoTotal,
		Inscritos:          c.Inscritos,
		Confirmados:        c.Inscritos,
		AsistenciaEnPuerta: c.Asistidos,
		NoShowEstimado:     noShow,
	}
}

// Attendance is one confirmed attendance row.
type Attendance struct {
	RegistroID int64
	EventoID   int64
	Estado     string
	VerifiedBy string
	VerifiedAt time.Time
	VerifyIP   string
	Note       string
}
