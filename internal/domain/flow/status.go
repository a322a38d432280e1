package flow

import (
	"slices"
	"strings"
)

// transitions lists, per status, the statuses a patient may move to.
var transitions = map[Status][]Status{
	StatusAwaitingTriage:  {StatusInTriage},
	StatusInTriage:        {StatusAwaitingMedical},
	StatusAwaitingMedical: {StatusInConsultation, StatusAwaitingMedical},
	StatusInConsultation:  {StatusCompleted, StatusAwaitingExam, StatusAdmitted, StatusReferred},
	StatusAwaitingExam:    {StatusAwaitingMedical, StatusCompleted, StatusAdmitted, StatusReferred},
	StatusAdmitted:        {StatusCompleted},
	StatusReferred:        {StatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the flow state machine.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(AllStatuses, s)
}

// IsDisposition reports whether s can close a consultation.
func (s Status) IsDisposition() bool {
	switch s {
	case StatusCompleted, StatusAwaitingExam, StatusAdmitted, StatusReferred:
		return true
	}
	return false
}

// InProgress reports whether a station is holding the patient.
func (s Status) InProgress() bool {
	return s == StatusInTriage || s == StatusInConsultation
}

// Label is the Portuguese caption shown on the board and fichas.
func (s Status) Label() string {
	switch s {
	case StatusAwaitingTriage:
		return "Aguardando Triagem"
	case StatusInTriage:
		return "Em Triagem"
	case StatusAwaitingMedical:
		return "Aguardando Avaliação Médica"
	case StatusInConsultation:
		return "Em Consulta"
	case StatusCompleted:
		return "Atendimento Concluído"
	case StatusAwaitingExam:
		return "Aguardando Exame"
	case StatusAdmitted:
		return "Internado"
	case StatusReferred:
		return "Encaminhado"
	}
	return string(s)
}

// Priority ranks the colour for the medical queue, 5 being most urgent.
// Unknown colours rank 0.
func (c Color) Priority() int {
	switch c {
	case ColorRed:
		return 5
	case ColorOrange:
		return 4
	case ColorYellow:
		return 3
	case ColorGreen:
		return 2
	case ColorBlue:
		return 1
	}
	return 0
}

func (c Color) Valid() bool {
	return c.Priority() > 0
}

// Label is the Manchester-style caption for the colour.
func (c Color) Label() string {
	switch c {
	case ColorRed:
		return "Emergência"
	case ColorOrange:
		return "Muito Urgente"
	case ColorYellow:
		return "Urgente"
	case ColorGreen:
		return "Pouco Urgente"
	case ColorBlue:
		return "Não Urgente"
	}
	return "Não classificado"
}

// ParseColor normalises user input ("Vermelho", " verde ") to a Color.
func ParseColor(raw string) Color {
	return Color(strings.ToLower(strings.TrimSpace(raw)))
}

// PublicName shortens a full name for public surfaces: "Maria da Silva"
// becomes "Maria S.".
func PublicName(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "Paciente"
	case 1:
		return parts[0]
	}
	last := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(last[0]) + "."
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
