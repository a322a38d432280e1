package flow

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewMemoryRepos returns process-local stores. State is lost on restart.
func NewMemoryRepos() Repos {
	return Repos{
		Patients: newPatientRepoMem(),
		Queue:    newQueueRepoMem(),
		Fichas:   newFichaRepoMem(),
		Calls:    newCallRepoMem(),
	}
}

// =========== Patient Repository ===========

type patientRepoMem struct {
	mu       sync.RWMutex
	lastID   int64
	patients map[int64]*Patient
}

func newPatientRepoMem() *patientRepoMem {
	return &patientRepoMem{patients: make(map[int64]*Patient)}
}

func (r *patientRepoMem) NextID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID, nil
}

func (r *patientRepoMem) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMem) GetByID(_ context.Context, id int64) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepoMem) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMem) List(_ context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Patient) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *patientRepoMem) AtStation(_ context.Context, station string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if p.Station == station && p.Status.InProgress() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *patientRepoMem) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error) {
	all, _ := r.List(ctx)
	var matched []*Patient
	for _, p := range all {
		if matchesFilter(p, f) {
			matched = append(matched, p)
		}
	}
	slices.SortStableFunc(matched, func(a, b *Patient) int {
		if c := b.RegisteredAt.Compare(a.RegisteredAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(matched, limit, offset), len(matched), nil
}

// matchesFilter applies the history search rules: the term matches the name
// case-insensitively, or is a substring of the CPF or the numeric ID.
func matchesFilter(p *Patient, f SearchFilter) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	term := strings.TrimSpace(f.Term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) ||
		strings.Contains(p.CPF, term) ||
		strings.Contains(strconv.FormatInt(p.ID, 10), term)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// =========== Queue Repository ===========

type queueRepoMem struct {
	mu      sync.Mutex
	lastSeq int64
	entries map[int64]QueueEntry
}

func newQueueRepoMem() *queueRepoMem {
	return &queueRepoMem{entries: make(map[int64]QueueEntry)}
}

func (r *queueRepoMem) NextSeq(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeq++
	return r.lastSeq, nil
}

func (r *queueRepoMem) Push(_ context.Context, e QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.PatientID] = e
	return nil
}

func (r *queueRepoMem) Remove(_ context.Context, patientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, patientID)
	return nil
}

func (r *queueRepoMem) SetPriority(_ context.Context, patientID int64, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	e.Priority = priority
	r.entries[patientID] = e
	return nil
}

func (r *queueRepoMem) List(_ context.Context, q QueueName) ([]QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]QueueEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Queue == q {
			out = append(out, e)
		}
	}
	SortQueue(out)
	return out, nil
}

// SortQueue orders entries by priority desc then seq asc. Triage entries all
// carry priority 0, which leaves them in FIFO order.
func SortQueue(entries []QueueEntry) {
	slices.SortStableFunc(entries, func(a, b QueueEntry) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

// =========== Ficha Repository ===========

type fichaRepoMem struct {
	mu     sync.RWMutex
	fichas map[int64]*Ficha
}

func newFichaRepoMem() *fichaRepoMem {
	return &fichaRepoMem{fichas: make(map[int64]*Ficha)}
}

func (r *fichaRepoMem) Upsert(_ context.Context, f *Ficha) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.fichas[f.PatientID]; ok {
		f.ID = existing.ID
	} else if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	cp := *f
	r.fichas[f.PatientID] = &cp
	return nil
}

func (r *fichaRepoMem) GetByPatient(_ context.Context, patientID int64) (*Ficha, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fichas[patientID]
	if !ok {
		return nil, ErrFichaNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fichaRepoMem) List(_ context.Context) ([]*Ficha, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Ficha, 0, len(r.fichas))
	for _, f := range r.fichas {
		cp := *f
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Ficha) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.PatientID, a.PatientID)
	})
	return out, nil
}

// =========== Call Repository ===========

type callRepoMem struct {
	mu    sync.Mutex
	calls []*Call
}

func newCallRepoMem() *callRepoMem {
	return &callRepoMem{}
}

func (r *callRepoMem) Add(_ context.Context, c *Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.calls = append(r.calls, &cp)
	return nil
}

func (r *callRepoMem) RemoveForPatient(_ context.Context, patientID int64, kind CallKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = slices.DeleteFunc(r.calls, func(c *Call) bool {
		return c.PatientID == patientID && c.Kind == kind
	})
	return nil
}

func (r *callRepoMem) List(_ context.Context) ([]*Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortStableFunc(out, func(a, b *Call) int { return b.CalledAt.Compare(a.CalledAt) })
	return out, nil
}

func (r *callRepoMem) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.calls)
	r.calls = slices.DeleteFunc(r.calls, func(c *Call) bool { return c.CalledAt.Before(cutoff) })
	return before - len(r.calls), nil
}
