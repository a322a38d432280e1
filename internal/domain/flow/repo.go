package flow

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrFichaNotFound   = errors.New("ficha not found")
)

type PatientRepository interface {
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context) ([]*Patient, error)
	// AtStation returns the patient a station is attending, or nil.
	AtStation(ctx context.Context, station string) (*Patient, error)
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error)
}

type QueueRepository interface {
	NextSeq(ctx context.Context) (int64, error)
	// Push places the patient on a queue, replacing any previous slot.
	Push(ctx context.Context, e QueueEntry) error
	Remove(ctx context.Context, patientID int64) error
	SetPriority(ctx context.Context, patientID int64, priority int) error
	// List returns the queue in service order.
	List(ctx context.Context, q QueueName) ([]QueueEntry, error)
}

type FichaRepository interface {
	// Upsert stores the ficha keyed by patient, keeping an existing ID.
	Upsert(ctx context.Context, f *Ficha) error
	GetByPatient(ctx context.Context, patientID int64) (*Ficha, error)
	List(ctx context.Context) ([]*Ficha, error)
}

type CallRepository interface {
	Add(ctx context.Context, c *Call) error
	RemoveForPatient(ctx context.Context, patientID int64, kind CallKind) error
	List(ctx context.Context) ([]*Call, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Repos bundles the stores the flow service needs.
type Repos struct {
	Patients PatientRepository
	Queue    QueueRepository
	Fichas   FichaRepository
	Calls    CallRepository
	// Tx runs fn atomically. Nil means no transaction support.
	Tx func(ctx context.Context, fn func(ctx context.Context) error) error
}
