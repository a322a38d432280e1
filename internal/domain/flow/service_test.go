package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/siah/siah/internal/platform/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeTicketMarker struct {
	marked []uuid.UUID
	err    error
}

func (m *fakeTicketMarker) MarkAttended(_ context.Context, id uuid.UUID) error {
	m.marked = append(m.marked, id)
	return m.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*Service, Repos, *testClock) {
	repos := NewMemoryRepos()
	svc := NewService(repos, Options{CallTTL: 5 * time.Minute})
	clock := &testClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, repos, clock
}

func mustRegister(t *testing.T, svc *Service, name string) *Patient {
	t.Helper()
	p, _, err := svc.RegisterPatient(context.Background(), RegisterInput{Name: name, CPF: "123.456.789-00"})
	if err != nil {
		t.Fatalf("RegisterPatient(%s) error: %v", name, err)
	}
	return p
}

// triaged registers a patient and takes it through triage with color.
func triaged(t *testing.T, svc *Service, name string, color Color) *Patient {
	t.Helper()
	ctx := context.Background()
	mustRegister(t, svc, name)
	p, _, err := svc.CallNextTriage(ctx, "Triagem")
	if err != nil {
		t.Fatalf("CallNextTriage error: %v", err)
	}
	if p.Name != name {
		t.Fatalf("expected %s at triage, got %s", name, p.Name)
	}
	p, err = svc.FinishTriage(ctx, p.ID, TriageData{Color: color, ChiefComplaint: "dor"})
	if err != nil {
		t.Fatalf("FinishTriage error: %v", err)
	}
	return p
}

func TestRegisterPatient(t *testing.T) {
	svc, _, _ := newTestService()
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	ctx := context.Background()

	p, f, err := svc.RegisterPatient(ctx, RegisterInput{
		Name: "  Maria   da Silva ", CPF: "123.456.789-00", Phone: "(11) 9999-0000", Email: " Maria@Email.com ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 1 || p.RecordNumber != "P20250001" {
		t.Errorf("unexpected identifiers: %d %s", p.ID, p.RecordNumber)
	}
	if p.Name != "Maria da Silva" || p.CPF != "12345678900" || p.Phone != "1199990000" {
		t.Errorf("input not normalised: %+v", p)
	}
	if p.Email != "maria@email.com" {
		t.Errorf("expected lower-cased email, got %s", p.Email)
	}
	if p.Insurance != DefaultInsurance {
		t.Errorf("expected default insurance, got %s", p.Insurance)
	}
	if p.Status != StatusAwaitingTriage {
		t.Errorf("expected %s, got %s", StatusAwaitingTriage, p.Status)
	}
	if f == nil || f.Number != "F0001" || f.ID == uuid.Nil {
		t.Errorf("unexpected ficha: %+v", f)
	}

	waiting, _ := svc.WaitingTriage(ctx)
	if len(waiting) != 1 || waiting[0].ID != p.ID {
		t.Errorf("expected patient on triage queue, got %v", waiting)
	}

	types := pub.types()
	if len(types) != 2 || types[0] != events.PatientRegistered || types[1] != events.FichaIssued {
		t.Errorf("unexpected events: %v", types)
	}
}

func TestRegisterPatient_RequiresName(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.RegisterPatient(context.Background(), RegisterInput{Name: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterPatient_MarksTicket(t *testing.T) {
	svc, _, _ := newTestService()
	marker := &fakeTicketMarker{}
	svc.SetTicketMarker(marker)

	ticket := uuid.New()
	if _, _, err := svc.RegisterPatient(context.Background(), RegisterInput{Name: "Ana", TicketID: &ticket}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(marker.marked) != 1 || marker.marked[0] != ticket {
		t.Errorf("expected ticket %s marked, got %v", ticket, marker.marked)
	}
}

func TestRegisterPatient_TicketFailureDoesNotFail(t *testing.T) {
	svc, _, _ := newTestService()
	svc.SetTicketMarker(&fakeTicketMarker{err: errors.New("ticket not called")})

	ticket := uuid.New()
	p, _, err := svc.RegisterPatient(context.Background(), RegisterInput{Name: "Ana", TicketID: &ticket})
	if err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	if p.TicketID == nil || *p.TicketID != ticket {
		t.Error("expected ticket id on patient")
	}
}

func TestCallNextTriage_FIFO(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		mustRegister(t, svc, name)
		clock.Advance(time.Minute)
	}

	stations := []string{"Triagem 1", "Triagem 2", "Triagem 3"}
	for i, want := range []string{"Ana", "Bruno", "Carla"} {
		p, call, err := svc.CallNextTriage(ctx, stations[i])
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if p.Name != want {
			t.Errorf("call %d: expected %s, got %s", i, want, p.Name)
		}
		if p.Status != StatusInTriage || p.TriageStartedAt == nil {
			t.Errorf("call %d: patient not in triage: %+v", i, p)
		}
		if call.Kind != CallTriage || call.Location != stations[i] {
			t.Errorf("call %d: unexpected call %+v", i, call)
		}
	}

	if _, _, err := svc.CallNextTriage(ctx, "Triagem 4"); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestCallNextTriage_DefaultStation(t *testing.T) {
	svc, _, _ := newTestService()
	mustRegister(t, svc, "Ana")

	p, _, err := svc.CallNextTriage(context.Background(), "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Station != "Triagem" {
		t.Errorf("expected default station, got %q", p.Station)
	}
}

func TestCallNext_StationBusy(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	mustRegister(t, svc, "Ana")
	mustRegister(t, svc, "Bruno")

	if _, _, err := svc.CallNextTriage(ctx, "Triagem"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := svc.CallNextTriage(ctx, "Triagem"); !errors.Is(err, ErrStationBusy) {
		t.Fatalf("expected ErrStationBusy, got %v", err)
	}

	waiting, _ := svc.WaitingTriage(ctx)
	if len(waiting) != 1 || waiting[0].Name != "Bruno" {
		t.Errorf("expected Bruno still waiting, got %v", waiting)
	}
}

func TestCallNext_SkipsStaleHead(t *testing.T) {
	svc, repos, _ := newTestService()
	ctx := context.Background()
	stale := mustRegister(t, svc, "Ana")
	mustRegister(t, svc, "Bruno")

	stale.Status = StatusCompleted
	if err := repos.Patients.Update(ctx, stale); err != nil {
		t.Fatal(err)
	}

	p, _, err := svc.CallNextTriage(ctx, "Triagem")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Bruno" {
		t.Errorf("expected Bruno, got %s", p.Name)
	}

	entries, _ := repos.Queue.List(ctx, QueueTriage)
	if len(entries) != 0 {
		t.Errorf("expected stale entry dropped, got %v", entries)
	}
}

func TestFinishTriage(t *testing.T) {
	svc, _, _ := newTestService()
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	ctx := context.Background()
	mustRegister(t, svc, "Ana")
	p, _, _ := svc.CallNextTriage(ctx, "Triagem")

	p, err := svc.FinishTriage(ctx, p.ID, TriageData{
		Color:      "Laranja",
		VitalSigns: VitalSigns{BloodPressure: "140/90", HeartRate: "110"},
		PainLevel:  7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusAwaitingMedical || p.Color != ColorOrange || p.Priority != 4 {
		t.Errorf("unexpected patient after triage: %+v", p)
	}
	if p.Station != "" || p.TriagedAt == nil {
		t.Errorf("station not released: %+v", p)
	}
	if p.Triage.Consciousness != DefaultConsciousness {
		t.Errorf("expected default consciousness, got %q", p.Triage.Consciousness)
	}

	calls, _ := svc.ActiveCalls(ctx)
	if len(calls) != 0 {
		t.Errorf("expected triage call cleared, got %d", len(calls))
	}

	f, err := svc.FichaForPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("FichaForPatient error: %v", err)
	}
	if f.Color != ColorOrange || f.Triage == nil {
		t.Errorf("ficha not updated: %+v", f)
	}
}

func TestFinishTriage_InvalidColor(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	mustRegister(t, svc, "Ana")
	p, _, _ := svc.CallNextTriage(ctx, "Triagem")

	if _, err := svc.FinishTriage(ctx, p.ID, TriageData{Color: "roxo"}); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}

	got, _ := svc.GetPatient(ctx, p.ID)
	if got.Status != StatusInTriage {
		t.Errorf("expected patient to stay in triage, got %s", got.Status)
	}
}

func TestFinishTriage_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	p := mustRegister(t, svc, "Ana")

	if _, err := svc.FinishTriage(ctx, p.ID, TriageData{Color: ColorGreen}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition before the call, got %v", err)
	}
	if _, err := svc.FinishTriage(ctx, p.ID, TriageData{Color: ColorGreen, PainLevel: 11}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for pain level, got %v", err)
	}
	if _, err := svc.FinishTriage(ctx, 999, TriageData{Color: ColorGreen}); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestCallNextMedical_PriorityOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorGreen)
	triaged(t, svc, "Bruno", ColorRed)
	triaged(t, svc, "Carla", ColorGreen)
	triaged(t, svc, "Davi", ColorYellow)

	waiting, _ := svc.WaitingMedical(ctx)
	var names []string
	for _, p := range waiting {
		names = append(names, p.Name)
	}
	want := []string{"Bruno", "Davi", "Ana", "Carla"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	for i, name := range want {
		p, call, err := svc.CallNextMedical(ctx, "Consultório "+string(rune('A'+i)))
		if err != nil {
			t.Fatalf("CallNextMedical error: %v", err)
		}
		if p.Name != name {
			t.Errorf("expected %s, got %s", name, p.Name)
		}
		if p.Status != StatusInConsultation || call.Kind != CallConsultation {
			t.Errorf("unexpected state: %s %s", p.Status, call.Kind)
		}
	}
}

func TestCallNextMedical_DefaultConsultorio(t *testing.T) {
	svc, _, _ := newTestService()
	triaged(t, svc, "Ana", ColorBlue)

	p, _, err := svc.CallNextMedical(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Station != "Consultório Principal" {
		t.Errorf("expected default consultório, got %q", p.Station)
	}
}

func TestReclassify_KeepsArrivalOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	ana := triaged(t, svc, "Ana", ColorYellow)
	bruno := triaged(t, svc, "Bruno", ColorYellow)

	if _, err := svc.Reclassify(ctx, bruno.ID, ColorRed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waiting, _ := svc.WaitingMedical(ctx)
	if waiting[0].Name != "Bruno" {
		t.Fatalf("expected Bruno first after reclassify, got %s", waiting[0].Name)
	}

	p, err := svc.Reclassify(ctx, ana.ID, "vermelho")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.QueueSeq != ana.QueueSeq {
		t.Errorf("expected seq %d kept, got %d", ana.QueueSeq, p.QueueSeq)
	}
	if p.Triage.Color != ColorRed {
		t.Errorf("expected triage colour updated, got %s", p.Triage.Color)
	}
	waiting, _ = svc.WaitingMedical(ctx)
	if waiting[0].Name != "Ana" {
		t.Errorf("expected Ana first on equal colour, got %s", waiting[0].Name)
	}
}

func TestReclassify_Rejections(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	p := mustRegister(t, svc, "Ana")

	if _, err := svc.Reclassify(ctx, p.ID, ColorRed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Reclassify(ctx, p.ID, "preto"); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("expected ErrInvalidColor, got %v", err)
	}
}

func TestFinishConsultation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorGreen)
	p, _, _ := svc.CallNextMedical(ctx, "Consultório 1")

	p, err := svc.FinishConsultation(ctx, p.ID, ConsultData{
		Diagnosis:     "Gripe",
		Prescriptions: []Prescription{{Name: "Dipirona", Dosage: "500mg"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusCompleted || p.Station != "" || p.ConsultEndedAt == nil {
		t.Errorf("unexpected patient: %+v", p)
	}

	cur, _ := svc.Current(ctx, "Consultório 1")
	if cur != nil {
		t.Error("expected consultório to be free")
	}

	f, _ := svc.FichaForPatient(ctx, p.ID)
	if f.Consult == nil || f.Consult.Diagnosis != "Gripe" || f.Status != StatusCompleted {
		t.Errorf("ficha not updated: %+v", f)
	}
}

func TestFinishConsultation_EvolutionRecord(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorGreen)
	p, _, _ := svc.CallNextMedical(ctx, "Consultório 1")

	if _, err := svc.FinishConsultation(ctx, p.ID, ConsultData{ReturnDate: "10/04/2025"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for a malformed return date, got %v", err)
	}

	p, err := svc.FinishConsultation(ctx, p.ID, ConsultData{
		Complaint:    " tosse há 3 dias ",
		PhysicalExam: "MV presente, sem ruídos",
		Diagnosis:    "Bronquite",
		ReturnDate:   "2025-04-10",
		Doctor:       "Dr. Carlos",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := p.Consult
	if c.Complaint != "tosse há 3 dias" || c.PhysicalExam == "" || c.ReturnDate != "2025-04-10" || c.Doctor != "Dr. Carlos" {
		t.Errorf("unexpected consultation record: %+v", c)
	}
	if c.RecordedAt == nil || !c.RecordedAt.Equal(clock.Now()) {
		t.Errorf("expected recorded_at stamped with the finish time, got %v", c.RecordedAt)
	}

	f, _ := svc.FichaForPatient(ctx, p.ID)
	if f.Consult == nil || f.Consult.Doctor != "Dr. Carlos" {
		t.Errorf("ficha missing attending doctor: %+v", f.Consult)
	}
}

func TestFinishConsultation_RejectsNonDisposition(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorGreen)
	p, _, _ := svc.CallNextMedical(ctx, "Consultório 1")

	_, err := svc.FinishConsultation(ctx, p.ID, ConsultData{FinalStatus: StatusInTriage})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateStatus_ExamReturnsToQueue(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorYellow)
	p, _, _ := svc.CallNextMedical(ctx, "Consultório 1")
	if _, err := svc.FinishConsultation(ctx, p.ID, ConsultData{FinalStatus: StatusAwaitingExam}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := svc.UpdateStatus(ctx, p.ID, StatusAwaitingMedical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusAwaitingMedical {
		t.Errorf("expected awaiting medical, got %s", p.Status)
	}

	waiting, _ := svc.WaitingMedical(ctx)
	if len(waiting) != 1 || waiting[0].ID != p.ID || waiting[0].Priority != ColorYellow.Priority() {
		t.Errorf("expected patient back on medical queue, got %v", waiting)
	}
}

func TestUpdateStatus_Rejections(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	p := mustRegister(t, svc, "Ana")

	if _, err := svc.UpdateStatus(ctx, p.ID, StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, p.ID, "sumido"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestIssueFicha_KeepsID(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	p, first, _ := svc.RegisterPatient(ctx, RegisterInput{Name: "Ana"})

	clock.Advance(time.Hour)
	f, err := svc.IssueFicha(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != first.ID {
		t.Errorf("expected ficha id kept, got %s and %s", first.ID, f.ID)
	}
	if !f.IssuedAt.After(first.IssuedAt) {
		t.Error("expected reissue time to move forward")
	}

	fichas, _ := svc.Fichas(ctx)
	if len(fichas) != 1 {
		t.Errorf("expected 1 ficha, got %d", len(fichas))
	}

	if _, err := svc.IssueFicha(ctx, 99); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestPurgeStaleCalls(t *testing.T) {
	svc, _, clock := newTestService()
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	ctx := context.Background()
	mustRegister(t, svc, "Ana")
	mustRegister(t, svc, "Bruno")

	svc.CallNextTriage(ctx, "Triagem 1")
	clock.Advance(4 * time.Minute)
	svc.CallNextTriage(ctx, "Triagem 2")

	n, err := svc.PurgeStaleCalls(ctx, clock.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 call purged, got %d", n)
	}
	calls, _ := svc.ActiveCalls(ctx)
	if len(calls) != 1 || calls[0].Location != "Triagem 2" {
		t.Errorf("unexpected remaining calls: %v", calls)
	}

	types := pub.types()
	if types[len(types)-1] != events.CallsPurged {
		t.Errorf("expected calls.purged event, got %v", types)
	}
}

func TestRunCallSweeper(t *testing.T) {
	svc, _, clock := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mustRegister(t, svc, "Ana")
	svc.CallNextTriage(ctx, "Triagem")
	clock.Advance(10 * time.Minute)

	go svc.RunCallSweeper(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		calls, _ := svc.ActiveCalls(ctx)
		if len(calls) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected sweeper to purge the stale call")
}

func TestStatistics(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	triaged(t, svc, "Ana", ColorRed)
	triaged(t, svc, "Bruno", ColorGreen)
	mustRegister(t, svc, "Carla")

	st, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Total != 3 {
		t.Errorf("expected 3 patients, got %d", st.Total)
	}
	if st.ByStatus[StatusAwaitingMedical] != 2 || st.ByStatus[StatusAwaitingTriage] != 1 {
		t.Errorf("unexpected status counts: %v", st.ByStatus)
	}
	if st.ByStatus[StatusCompleted] != 0 {
		t.Error("expected zero entries for unused statuses")
	}
	if st.ByColor.Emergency != 1 || st.ByColor.LessUrgent != 1 || st.ByColor.Urgent != 0 {
		t.Errorf("unexpected colour counts: %+v", st.ByColor)
	}
}

func TestSearchPatients(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	svc.RegisterPatient(ctx, RegisterInput{Name: "Maria Souza", CPF: "11144477766"})
	clock.Advance(time.Minute)
	svc.RegisterPatient(ctx, RegisterInput{Name: "João Lima", CPF: "55566677788"})
	clock.Advance(time.Minute)
	svc.RegisterPatient(ctx, RegisterInput{Name: "Mariana Dias", CPF: "99900011144"})

	tests := []struct {
		name   string
		filter SearchFilter
		want   []string
	}{
		{"by name", SearchFilter{Term: "mari"}, []string{"Mariana Dias", "Maria Souza"}},
		{"by cpf", SearchFilter{Term: "5556"}, []string{"João Lima"}},
		{"by id", SearchFilter{Term: "2"}, []string{"João Lima"}},
		{"by status", SearchFilter{Status: StatusAwaitingTriage}, []string{"Mariana Dias", "João Lima", "Maria Souza"}},
		{"no match", SearchFilter{Term: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := svc.SearchPatients(ctx, tt.filter, 20, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), total)
			}
			for i, p := range items {
				if p.Name != tt.want[i] {
					t.Errorf("result %d: expected %s, got %s", i, tt.want[i], p.Name)
				}
			}
		})
	}

	if _, _, err := svc.SearchPatients(ctx, SearchFilter{Status: "x"}, 20, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestSearchPatients_Pagination(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustRegister(t, svc, "Paciente")
		clock.Advance(time.Minute)
	}

	items, total, _ := svc.SearchPatients(ctx, SearchFilter{}, 2, 2)
	if total != 5 || len(items) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(items), total)
	}
	if items[0].ID != 3 {
		t.Errorf("expected newest-first paging, got id %d", items[0].ID)
	}
}

func TestService_ConcurrentCallsNeverShareAPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		mustRegister(t, svc, "Paciente")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := svc.CallNextTriage(ctx, "Triagem "+string(rune('A'+i)))
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[p.ID] {
				t.Errorf("patient %d called twice", p.ID)
			}
			seen[p.ID] = true
		}(i)
	}
	wg.Wait()

	if len(seen) != 20 {
		t.Errorf("expected 20 distinct patients, got %d", len(seen))
	}
}
