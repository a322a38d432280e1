package flow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the wire value of a patient's position in the pipeline.
type Status string

const (
	StatusAwaitingTriage  Status = "aguardando_triagem"
	StatusInTriage        Status = "em_triagem"
	StatusAwaitingMedical Status = "aguardando_avaliacao_medica"
	StatusInConsultation  Status = "em_consulta"
	StatusCompleted       Status = "atendimento_concluido"
	StatusAwaitingExam    Status = "aguardando_exame"
	StatusAdmitted        Status = "internado"
	StatusReferred        Status = "encaminhado"
)

// AllStatuses lists every status in pipeline order.
var AllStatuses = []Status{
	StatusAwaitingTriage, StatusInTriage, StatusAwaitingMedical, StatusInConsultation,
	StatusCompleted, StatusAwaitingExam, StatusAdmitted, StatusReferred,
}

// Color is the triage urgency colour.
type Color string

const (
	ColorRed    Color = "vermelho"
	ColorOrange Color = "laranja"
	ColorYellow Color = "amarelo"
	ColorGreen  Color = "verde"
	ColorBlue   Color = "azul"
)

// AllColors lists the colours from most to least urgent.
var AllColors = []Color{ColorRed, ColorOrange, ColorYellow, ColorGreen, ColorBlue}

// QueueName identifies one of the two waiting lines.
type QueueName string

const (
	QueueTriage  QueueName = "triagem"
	QueueMedical QueueName = "avaliacao_medica"
)

// CallKind tells the board which stage issued a call.
type CallKind string

const (
	CallTriage       CallKind = "triagem"
	CallConsultation CallKind = "consulta"
)

const DefaultInsurance = "SUS"

const DefaultConsciousness = "Alerta"

// VitalSigns are kept exactly as typed at triage.
type VitalSigns struct {
	BloodPressure   string `json:"blood_pressure,omitempty"`
	HeartRate       string `json:"heart_rate,omitempty"`
	RespiratoryRate string `json:"respiratory_rate,omitempty"`
	Temperature     string `json:"temperature,omitempty"`
	SpO2            string `json:"spo2,omitempty"`
	Glucose         string `json:"glucose,omitempty"`
	Weight          string `json:"weight,omitempty"`
}

// TriageData is what the nurse records when closing a triage.
type TriageData struct {
	Color          Color      `json:"color"`
	VitalSigns     VitalSigns `json:"vital_signs"`
	ChiefComplaint string     `json:"chief_complaint"`
	PainLevel      int        `json:"pain_level"`
	Consciousness  string     `json:"consciousness_level"`
	Notes          string     `json:"notes,omitempty"`
}

type Prescription struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage,omitempty"`
	Posology string `json:"posology,omitempty"`
	Duration string `json:"duration,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type ExamRequest struct {
	Name          string `json:"name"`
	Urgency       string `json:"urgency,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// ConsultData is what the doctor records when closing a consultation.
// Doctor and RecordedAt are filled in by the server.
type ConsultData struct {
	FinalStatus   Status         `json:"final_status,omitempty"`
	Complaint     string         `json:"complaint,omitempty"`
	PhysicalExam  string         `json:"physical_exam,omitempty"`
	Diagnosis     string         `json:"diagnosis"`
	Conduct       string         `json:"conduct,omitempty"`
	Prescriptions []Prescription `json:"prescriptions,omitempty"`
	Exams         []ExamRequest  `json:"exams,omitempty"`
	Guidance      string         `json:"guidance,omitempty"`
	Referral      string         `json:"referral,omitempty"`
	ReturnDate    string         `json:"return_date,omitempty"`
	Doctor        string         `json:"doctor,omitempty"`
	RecordedAt    *time.Time     `json:"recorded_at,omitempty"`
}

// RegisterInput carries the reception form.
type RegisterInput struct {
	Name             string     `json:"name"`
	CPF              string     `json:"cpf"`
	BirthDate        string     `json:"birth_date,omitempty"`
	Sex              string     `json:"sex,omitempty"`
	Address          string     `json:"address,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	RG               string     `json:"rg,omitempty"`
	Email            string     `json:"email,omitempty"`
	Insurance        string     `json:"insurance,omitempty"`
	InsuranceCard    string     `json:"insurance_card,omitempty"`
	VisitReason      string     `json:"visit_reason,omitempty"`
	Symptoms         string     `json:"symptoms,omitempty"`
	TicketID         *uuid.UUID `json:"ticket_id,omitempty"`
}

// Patient is the aggregate moved through the pipeline.
type Patient struct {
	ID               int64      `json:"id"`
	RecordNumber     string     `json:"record_number"`
	Name             string     `json:"name"`
	CPF              string     `json:"cpf"`
	BirthDate        string     `json:"birth_date,omitempty"`
	Sex              string     `json:"sex,omitempty"`
	Address          string     `json:"address,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	RG               string     `json:"rg,omitempty"`
	Email            string     `json:"email,omitempty"`
	Insurance        string     `json:"insurance"`
	InsuranceCard    string     `json:"insurance_card,omitempty"`
	VisitReason      string     `json:"visit_reason,omitempty"`
	Symptoms         string     `json:"symptoms,omitempty"`
	TicketID         *uuid.UUID `json:"ticket_id,omitempty"`

	Status   Status `json:"status"`
	Color    Color  `json:"color,omitempty"`
	Priority int    `json:"priority"`
	QueueSeq int64  `json:"queue_seq"`
	Station  string `json:"station,omitempty"`

	Triage  *TriageData  `json:"triage,omitempty"`
	Consult *ConsultData `json:"consultation,omitempty"`

	RegisteredAt     time.Time  `json:"registered_at"`
	TriageStartedAt  *time.Time `json:"triage_started_at,omitempty"`
	TriagedAt        *time.Time `json:"triaged_at,omitempty"`
	ConsultStartedAt *time.Time `json:"consult_started_at,omitempty"`
	ConsultEndedAt   *time.Time `json:"consult_ended_at,omitempty"`
	StatusChangedAt  time.Time  `json:"status_changed_at"`
}

// RecordNumber renders the prontuário for a patient registered in year.
func RecordNumber(year int, id int64) string {
	return fmt.Sprintf("P%d%04d", year, id)
}

// FichaNumber renders the ficha number for a patient ID.
func FichaNumber(id int64) string {
	return fmt.Sprintf("F%04d", id)
}

// QueueEntry is one slot in a waiting line. Seq is global and never reused.
type QueueEntry struct {
	PatientID  int64     `json:"patient_id"`
	Queue      QueueName `json:"queue"`
	Priority   int       `json:"priority"`
	Seq        int64     `json:"seq"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Ficha is the attendance record printed for the patient.
type Ficha struct {
	ID           uuid.UUID    `json:"id"`
	PatientID    int64        `json:"patient_id"`
	Number       string       `json:"number"`
	RecordNumber string       `json:"record_number"`
	PatientName  string       `json:"patient_name"`
	CPF          string       `json:"cpf"`
	Insurance    string       `json:"insurance"`
	VisitReason  string       `json:"visit_reason,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
	Status       Status       `json:"status"`
	Color        Color        `json:"color,omitempty"`
	Triage       *TriageData  `json:"triage,omitempty"`
	Consult      *ConsultData `json:"consultation,omitempty"`
}

// Call is an active "patient X to location Y" announcement.
type Call struct {
	ID           uuid.UUID `json:"id"`
	PatientID    int64     `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	PublicName   string    `json:"public_name"`
	RecordNumber string    `json:"record_number"`
	CalledAt     time.Time `json:"called_at"`
	Kind         CallKind  `json:"kind"`
	Location     string    `json:"location"`
	Color        Color     `json:"color,omitempty"`
}

// Stats counts patients per status and per urgency colour.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	ByColor  ColorCounts    `json:"by_color"`
}

type ColorCounts struct {
	Emergency  int `json:"emergencia"`
	VeryUrgent int `json:"muito_urgente"`
	Urgent     int `json:"urgente"`
	LessUrgent int `json:"pouco_urgente"`
	NotUrgent  int `json:"nao_urgente"`
}

// SearchFilter drives the history search.
type SearchFilter struct {
	Term   string
	Status Status
}
