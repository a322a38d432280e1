package ticket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of senha taken at the entrance.
type Type string

const (
	TypeNormal   Type = "normal"
	TypePriority Type = "prioridade"
)

func (t Type) Valid() bool {
	return t == TypeNormal || t == TypePriority
}

// Prefix is the letter printed before the number.
func (t Type) Prefix() string {
	if t == TypePriority {
		return "P"
	}
	return "N"
}

type Status string

const (
	StatusWaiting  Status = "aguardando"
	StatusCalled   Status = "chamada"
	StatusAttended Status = "atendida"
)

type Ticket struct {
	ID          uuid.UUID  `json:"id"`
	Type        Type       `json:"type"`
	Number      int64      `json:"number"`
	Code        string     `json:"code"`
	Status      Status     `json:"status"`
	GeneratedAt time.Time  `json:"generated_at"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
	AttendedAt  *time.Time `json:"attended_at,omitempty"`
}

// Code renders the display code, e.g. P003.
func Code(t Type, number int64) string {
	return fmt.Sprintf("%s%03d", t.Prefix(), number)
}

// Queue is the waiting list shown at reception.
type Queue struct {
	Tickets  []*Ticket `json:"tickets"`
	Normal   int       `json:"normal"`
	Priority int       `json:"prioridade"`
}
