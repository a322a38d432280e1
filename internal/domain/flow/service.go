package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/siah/siah/internal/platform/events"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidColor      = errors.New("invalid triage color")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQueueEmpty        = errors.New("queue is empty")
	ErrStationBusy       = errors.New("station is already attending a patient")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TicketMarker closes the senha a walk-in patient was called with.
type TicketMarker interface {
	MarkAttended(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	CallTTL            time.Duration
	TriageStation      string
	DefaultConsultorio string
}

// Service owns the patient pipeline. Every mutation runs under one lock so
// two stations can never be handed the same patient.
type Service struct {
	mu      sync.RWMutex
	repos   Repos
	opts    Options
	tickets TicketMarker
	pub     events.Publisher
	now     func() time.Time
}

func NewService(repos Repos, opts Options) *Service {
	if opts.CallTTL <= 0 {
		opts.CallTTL = 5 * time.Minute
	}
	if opts.TriageStation == "" {
		opts.TriageStation = "Triagem"
	}
	if opts.DefaultConsultorio == "" {
		opts.DefaultConsultorio = "Consultório Principal"
	}
	return &Service{repos: repos, opts: opts, pub: events.Nop{}, now: time.Now}
}

// SetTicketMarker attaches the ticket service used at registration.
func (s *Service) SetTicketMarker(m TicketMarker) {
	s.tickets = m
}

// SetPublisher attaches the event sink. Events are published after the
// mutation commits and the lock is released.
func (s *Service) SetPublisher(p events.Publisher) {
	s.pub = p
}

func (s *Service) CallTTL() time.Duration {
	return s.opts.CallTTL
}

type emitFunc func(events.Event)

func (s *Service) mutate(ctx context.Context, fn func(ctx context.Context, emit emitFunc) error) error {
	var pending []events.Event
	emit := func(e events.Event) { pending = append(pending, e) }

	s.mu.Lock()
	var err error
	if s.repos.Tx != nil {
		err = s.repos.Tx(ctx, func(ctx context.Context) error {
			pending = pending[:0]
			return fn(ctx, emit)
		})
	} else {
		err = fn(ctx, emit)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, e := range pending {
		if perr := s.pub.Publish(ctx, e); perr != nil {
			log.Warn().Err(perr).Str("event_type", e.Type).Msg("publish flow event")
		}
	}
	return nil
}

type patientEvent struct {
	PatientID    int64  `json:"patient_id"`
	RecordNumber string `json:"record_number"`
	Status       Status `json:"status"`
	Color        Color  `json:"color,omitempty"`
	Station      string `json:"station,omitempty"`
}

func patientEventFor(eventType string, p *Patient) events.Event {
	return events.NewEvent(eventType, "flow", patientEvent{
		PatientID:    p.ID,
		RecordNumber: p.RecordNumber,
		Status:       p.Status,
		Color:        p.Color,
		Station:      p.Station,
	}).WithKey(strconv.FormatInt(p.ID, 10))
}

// -- Registration --

func (s *Service) RegisterPatient(ctx context.Context, in RegisterInput) (*Patient, *Ficha, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	if name == "" {
		return nil, nil, invalid("name is required")
	}

	var p *Patient
	var f *Ficha
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		id, err := s.repos.Patients.NextID(ctx)
		if err != nil {
			return fmt.Errorf("allocate patient id: %w", err)
		}
		seq, err := s.repos.Queue.NextSeq(ctx)
		if err != nil {
			return fmt.Errorf("allocate queue seq: %w", err)
		}

		now := s.now()
		p = &Patient{
			ID:               id,
			RecordNumber:     RecordNumber(now.Year(), id),
			Name:             name,
			CPF:              digitsOnly(in.CPF),
			BirthDate:        strings.TrimSpace(in.BirthDate),
			Sex:              strings.TrimSpace(in.Sex),
			Address:          strings.TrimSpace(in.Address),
			Phone:            digitsOnly(in.Phone),
			EmergencyContact: strings.TrimSpace(in.EmergencyContact),
			RG:               strings.TrimSpace(in.RG),
			Email:            strings.ToLower(strings.TrimSpace(in.Email)),
			Insurance:        strings.TrimSpace(in.Insurance),
			InsuranceCard:    strings.TrimSpace(in.InsuranceCard),
			VisitReason:      strings.TrimSpace(in.VisitReason),
			Symptoms:         strings.TrimSpace(in.Symptoms),
			TicketID:         in.TicketID,
			Status:           StatusAwaitingTriage,
			QueueSeq:         seq,
			RegisteredAt:     now,
			StatusChangedAt:  now,
		}
		if p.Insurance == "" {
			p.Insurance = DefaultInsurance
		}

		if err := s.repos.Patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		if err := s.repos.Queue.Push(ctx, QueueEntry{
			PatientID: id, Queue: QueueTriage, Seq: seq, EnqueuedAt: now,
		}); err != nil {
			return fmt.Errorf("enqueue triage: %w", err)
		}

		f = fichaFor(p, nil, now)
		if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
			return fmt.Errorf("issue ficha: %w", err)
		}

		emit(patientEventFor(events.PatientRegistered, p))
		emit(patientEventFor(events.FichaIssued, p))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().Int64("patient_id", p.ID).Str("record_number", p.RecordNumber).Msg("patient registered")

	if p.TicketID != nil && s.tickets != nil {
		if err := s.tickets.MarkAttended(ctx, *p.TicketID); err != nil {
			log.Warn().Err(err).Str("ticket_id", p.TicketID.String()).Int64("patient_id", p.ID).
				Msg("could not mark ticket attended")
		}
	}

	return p, f, nil
}

// -- Calling --

// popNext takes the first entry of q whose patient is still in want. Stale
// entries found on the way are dropped. A nil patient means the queue is empty.
func (s *Service) popNext(ctx context.Context, q QueueName, want Status) (*Patient, error) {
	entries, err := s.repos.Queue.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s queue: %w", q, err)
	}
	for _, e := range entries {
		p, err := s.repos.Patients.GetByID(ctx, e.PatientID)
		if err != nil && !errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		if err := s.repos.Queue.Remove(ctx, e.PatientID); err != nil {
			return nil, fmt.Errorf("dequeue patient %d: %w", e.PatientID, err)
		}
		if p == nil || p.Status != want {
			log.Warn().Int64("patient_id", e.PatientID).Str("queue", string(q)).Msg("dropped stale queue entry")
			continue
		}
		return p, nil
	}
	return nil, nil
}

func (s *Service) callNext(ctx context.Context, q QueueName, station string, kind CallKind) (*Patient, *Call, error) {
	from, to, evType := StatusAwaitingTriage, StatusInTriage, events.TriageCalled
	if q == QueueMedical {
		from, to, evType = StatusAwaitingMedical, StatusInConsultation, events.MedicalCalled
	}

	var p *Patient
	var call *Call
	empty := false
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		busy, err := s.repos.Patients.AtStation(ctx, station)
		if err != nil {
			return err
		}
		if busy != nil {
			return fmt.Errorf("%w: %s has patient %d", ErrStationBusy, station, busy.ID)
		}

		p, err = s.popNext(ctx, q, from)
		if err != nil {
			return err
		}
		if p == nil {
			empty = true
			return nil
		}

		now := s.now()
		p.Status = to
		p.Station = station
		p.StatusChangedAt = now
		if q == QueueTriage {
			p.TriageStartedAt = &now
		} else {
			p.ConsultStartedAt = &now
		}
		if err := s.repos.Patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}

		call = &Call{
			ID:           uuid.New(),
			PatientID:    p.ID,
			PatientName:  p.Name,
			PublicName:   PublicName(p.Name),
			RecordNumber: p.RecordNumber,
			CalledAt:     now,
			Kind:         kind,
			Location:     station,
			Color:        p.Color,
		}
		if err := s.repos.Calls.Add(ctx, call); err != nil {
			return fmt.Errorf("add call: %w", err)
		}

		emit(patientEventFor(evType, p))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if empty {
		return nil, nil, ErrQueueEmpty
	}

	log.Info().Int64("patient_id", p.ID).Str("station", station).Str("status", string(p.Status)).Msg("patient called")
	return p, call, nil
}

// CallNextTriage hands the oldest waiting patient to a triage station.
func (s *Service) CallNextTriage(ctx context.Context, station string) (*Patient, *Call, error) {
	if station = strings.TrimSpace(station); station == "" {
		station = s.opts.TriageStation
	}
	return s.callNext(ctx, QueueTriage, station, CallTriage)
}

// CallNextMedical hands the most urgent triaged patient to a consultório.
func (s *Service) CallNextMedical(ctx context.Context, station string) (*Patient, *Call, error) {
	if station = strings.TrimSpace(station); station == "" {
		station = s.opts.DefaultConsultorio
	}
	return s.callNext(ctx, QueueMedical, station, CallConsultation)
}

// -- Triage --

func (s *Service) FinishTriage(ctx context.Context, id int64, data TriageData) (*Patient, error) {
	data.Color = ParseColor(string(data.Color))
	if !data.Color.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, data.Color)
	}
	if data.PainLevel < 0 || data.PainLevel > 10 {
		return nil, invalid("pain_level must be between 0 and 10")
	}
	if data.Consciousness = strings.TrimSpace(data.Consciousness); data.Consciousness == "" {
		data.Consciousness = DefaultConsciousness
	}
	data.ChiefComplaint = strings.TrimSpace(data.ChiefComplaint)
	data.Notes = strings.TrimSpace(data.Notes)

	var p *Patient
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		var err error
		if p, err = s.repos.Patients.GetByID(ctx, id); err != nil {
			return err
		}
		if p.Status != StatusInTriage {
			return fmt.Errorf("%w: finish triage from %s", ErrInvalidTransition, p.Status)
		}
		seq, err := s.repos.Queue.NextSeq(ctx)
		if err != nil {
			return fmt.Errorf("allocate queue seq: %w", err)
		}

		now := s.now()
		triage := data
		p.Triage = &triage
		p.Color = data.Color
		p.Priority = data.Color.Priority()
		p.Status = StatusAwaitingMedical
		p.Station = ""
		p.TriagedAt = &now
		p.StatusChangedAt = now
		p.QueueSeq = seq

		if err := s.repos.Patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		if err := s.repos.Queue.Push(ctx, QueueEntry{
			PatientID: p.ID, Queue: QueueMedical, Priority: p.Priority, Seq: seq, EnqueuedAt: now,
		}); err != nil {
			return fmt.Errorf("enqueue medical: %w", err)
		}
		if err := s.repos.Calls.RemoveForPatient(ctx, p.ID, CallTriage); err != nil {
			return fmt.Errorf("clear triage calls: %w", err)
		}

		existing, err := s.existingFicha(ctx, p.ID)
		if err != nil {
			return err
		}
		f := fichaFor(p, existing, now)
		if existing != nil {
			f.IssuedAt = existing.IssuedAt
		}
		if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
			return fmt.Errorf("update ficha: %w", err)
		}

		emit(patientEventFor(events.TriageFinished, p))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("patient_id", p.ID).Str("color", string(p.Color)).Msg("triage finished")
	return p, nil
}

// -- Consultation --

func (s *Service) FinishConsultation(ctx context.Context, id int64, data ConsultData) (*Patient, error) {
	if data.FinalStatus == "" {
		data.FinalStatus = StatusCompleted
	}
	if !data.FinalStatus.IsDisposition() {
		return nil, invalid("final_status %q is not a disposition", data.FinalStatus)
	}
	data.Complaint = strings.TrimSpace(data.Complaint)
	data.PhysicalExam = strings.TrimSpace(data.PhysicalExam)
	data.Diagnosis = strings.TrimSpace(data.Diagnosis)
	data.Conduct = strings.TrimSpace(data.Conduct)
	data.Guidance = strings.TrimSpace(data.Guidance)
	data.Referral = strings.TrimSpace(data.Referral)
	data.Doctor = strings.TrimSpace(data.Doctor)
	if data.ReturnDate = strings.TrimSpace(data.ReturnDate); data.ReturnDate != "" {
		if _, err := time.Parse(time.DateOnly, data.ReturnDate); err != nil {
			return nil, invalid("return_date %q is not a YYYY-MM-DD date", data.ReturnDate)
		}
	}

	var p *Patient
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		var err error
		if p, err = s.repos.Patients.GetByID(ctx, id); err != nil {
			return err
		}
		if p.Status != StatusInConsultation {
			return fmt.Errorf("%w: finish consultation from %s", ErrInvalidTransition, p.Status)
		}

		now := s.now()
		consult := data
		consult.RecordedAt = &now
		p.Consult = &consult
		p.Status = data.FinalStatus
		p.Station = ""
		p.ConsultEndedAt = &now
		p.StatusChangedAt = now

		if err := s.repos.Patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		if err := s.repos.Calls.RemoveForPatient(ctx, p.ID, CallConsultation); err != nil {
			return fmt.Errorf("clear consultation calls: %w", err)
		}

		f, err := s.existingFicha(ctx, p.ID)
		if err != nil {
			return err
		}
		if f != nil {
			f.Consult = p.Consult
			f.Status = p.Status
			if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
				return fmt.Errorf("update ficha: %w", err)
			}
		}

		emit(patientEventFor(events.ConsultationFinished, p))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("patient_id", p.ID).Str("status", string(p.Status)).Msg("consultation finished")
	return p, nil
}

// -- Re-sequencing --

// Reclassify changes the urgency of a patient waiting for the doctor. The
// patient keeps its original sequence number so ties still break by arrival.
func (s *Service) Reclassify(ctx context.Context, id int64, color Color) (*Patient, error) {
	color = ParseColor(string(color))
	if !color.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}

	var p *Patient
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		var err error
		if p, err = s.repos.Patients.GetByID(ctx, id); err != nil {
			return err
		}
		if p.Status != StatusAwaitingMedical {
			return fmt.Errorf("%w: reclassify from %s", ErrInvalidTransition, p.Status)
		}

		p.Color = color
		p.Priority = color.Priority()
		if p.Triage != nil {
			triage := *p.Triage
			triage.Color = color
			p.Triage = &triage
		}
		if err := s.repos.Patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}

		err = s.repos.Queue.SetPriority(ctx, p.ID, p.Priority)
		if errors.Is(err, ErrPatientNotFound) {
			err = s.repos.Queue.Push(ctx, QueueEntry{
				PatientID: p.ID, Queue: QueueMedical, Priority: p.Priority, Seq: p.QueueSeq, EnqueuedAt: s.now(),
			})
		}
		if err != nil {
			return fmt.Errorf("resequence medical queue: %w", err)
		}

		f, err := s.existingFicha(ctx, p.ID)
		if err != nil {
			return err
		}
		if f != nil {
			f.Color = p.Color
			f.Triage = p.Triage
			if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
				return fmt.Errorf("update ficha: %w", err)
			}
		}

		emit(patientEventFor(events.PatientReclassified, p))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("patient_id", p.ID).Str("color", string(color)).Msg("patient reclassified")
	return p, nil
}

// UpdateStatus applies the post-consultation moves: back from exams, or
// closing an admission or referral.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Patient, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}

	var p *Patient
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		var err error
		if p, err = s.repos.Patients.GetByID(ctx, id); err != nil {
			return err
		}
		switch p.Status {
		case StatusAwaitingExam, StatusAdmitted, StatusReferred:
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
		}
		if !CanTransition(p.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
		}

		now := s.now()
		p.Status = status
		p.StatusChangedAt = now

		if status == StatusAwaitingMedical {
			seq, err := s.repos.Queue.NextSeq(ctx)
			if err != nil {
				return fmt.Errorf("allocate queue seq: %w", err)
			}
			p.QueueSeq = seq
			if err := s.repos.Queue.Push(ctx, QueueEntry{
				PatientID: p.ID, Queue: QueueMedical, Priority: p.Priority, Seq: seq, EnqueuedAt: now,
			}); err != nil {
				return fmt.Errorf("enqueue medical: %w", err)
			}
		}
		if err := s.repos.Patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}

		f, err := s.existingFicha(ctx, p.ID)
		if err != nil {
			return err
		}
		if f != nil {
			f.Status = p.Status
			if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
				return fmt.Errorf("update ficha: %w", err)
			}
		}

		emit(patientEventFor(events.PatientStatusChanged, p))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("patient_id", p.ID).Str("status", string(status)).Msg("patient status updated")
	return p, nil
}

// -- Fichas --

func (s *Service) existingFicha(ctx context.Context, patientID int64) (*Ficha, error) {
	f, err := s.repos.Fichas.GetByPatient(ctx, patientID)
	if errors.Is(err, ErrFichaNotFound) {
		return nil, nil
	}
	return f, err
}

// fichaFor renders the patient's current data. Medical fields already on the
// existing ficha survive when the patient has none yet.
func fichaFor(p *Patient, existing *Ficha, now time.Time) *Ficha {
	f := &Ficha{
		PatientID:    p.ID,
		Number:       FichaNumber(p.ID),
		RecordNumber: p.RecordNumber,
		PatientName:  p.Name,
		CPF:          p.CPF,
		Insurance:    p.Insurance,
		VisitReason:  p.VisitReason,
		IssuedAt:     now,
		Status:       p.Status,
		Color:        p.Color,
		Triage:       p.Triage,
		Consult:      p.Consult,
	}
	if existing != nil {
		f.ID = existing.ID
		if f.Consult == nil {
			f.Consult = existing.Consult
		}
	}
	return f
}

// IssueFicha reissues the ficha from current patient data, keeping its ID.
func (s *Service) IssueFicha(ctx context.Context, patientID int64) (*Ficha, error) {
	var f *Ficha
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		p, err := s.repos.Patients.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		existing, err := s.existingFicha(ctx, patientID)
		if err != nil {
			return err
		}
		f = fichaFor(p, existing, s.now())
		if err := s.repos.Fichas.Upsert(ctx, f); err != nil {
			return fmt.Errorf("issue ficha: %w", err)
		}
		emit(patientEventFor(events.FichaIssued, p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Fichas(ctx context.Context) ([]*Ficha, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Fichas.List(ctx)
}

func (s *Service) FichaForPatient(ctx context.Context, patientID int64) (*Ficha, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Fichas.GetByPatient(ctx, patientID)
}

// -- Calls --

// PurgeStaleCalls drops board calls older than the call TTL.
func (s *Service) PurgeStaleCalls(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.mutate(ctx, func(ctx context.Context, emit emitFunc) error {
		var err error
		n, err = s.repos.Calls.DeleteBefore(ctx, now.Add(-s.opts.CallTTL))
		if err != nil {
			return fmt.Errorf("purge calls: %w", err)
		}
		if n > 0 {
			emit(events.NewEvent(events.CallsPurged, "flow", map[string]int{"removed": n}))
		}
		return nil
	})
	return n, err
}

func (s *Service) ActiveCalls(ctx context.Context) ([]*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Calls.List(ctx)
}

// -- Reads --

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Patients.GetByID(ctx, id)
}

// Current returns the patient a station is attending, or nil.
func (s *Service) Current(ctx context.Context, station string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Patients.AtStation(ctx, station)
}

func (s *Service) waiting(ctx context.Context, q QueueName, want Status) ([]*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.repos.Queue.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*Patient, 0, len(entries))
	for _, e := range entries {
		p, err := s.repos.Patients.GetByID(ctx, e.PatientID)
		if errors.Is(err, ErrPatientNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Status == want {
			out = append(out, p)
		}
	}
	return out, nil
}

// WaitingTriage lists patients waiting for triage in arrival order.
func (s *Service) WaitingTriage(ctx context.Context) ([]*Patient, error) {
	return s.waiting(ctx, QueueTriage, StatusAwaitingTriage)
}

// WaitingMedical lists triaged patients by urgency, oldest first within a colour.
func (s *Service) WaitingMedical(ctx context.Context) ([]*Patient, error) {
	return s.waiting(ctx, QueueMedical, StatusAwaitingMedical)
}

func (s *Service) Statistics(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patients, err := s.repos.Patients.List(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Total: len(patients), ByStatus: make(map[Status]int, len(AllStatuses))}
	for _, status := range AllStatuses {
		st.ByStatus[status] = 0
	}
	for _, p := range patients {
		st.ByStatus[p.Status]++
		switch p.Color {
		case ColorRed:
			st.ByColor.Emergency++
		case ColorOrange:
			st.ByColor.VeryUrgent++
		case ColorYellow:
			st.ByColor.Urgent++
		case ColorGreen:
			st.ByColor.LessUrgent++
		case ColorBlue:
			st.ByColor.NotUrgent++
		}
	}
	return st, nil
}

func (s *Service) SearchPatients(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalid("unknown status %q", f.Status)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repos.Patients.Search(ctx, f, limit, offset)
}
