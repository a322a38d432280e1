package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siah/siah/internal/platform/db"
)

// NewPGRepos returns PostgreSQL-backed stores sharing pool. Mutations run in
// one transaction per service call.
func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		Patients: &patientRepoPG{pool: pool},
		Queue:    &queueRepoPG{pool: pool},
		Fichas:   &fichaRepoPG{pool: pool},
		Calls:    &callRepoPG{pool: pool},
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
	}
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func (r *patientRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, record_number, name, cpf, birth_date, sex, address, phone,
	emergency_contact, rg, email, insurance, insurance_card, visit_reason, symptoms, ticket_id,
	status, color, priority, queue_seq, station, triage, consultation,
	registered_at, triage_started_at, triaged_at, consult_started_at, consult_ended_at, status_changed_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.RecordNumber, &p.Name, &p.CPF, &p.BirthDate, &p.Sex, &p.Address, &p.Phone,
		&p.EmergencyContact, &p.RG, &p.Email, &p.Insurance, &p.InsuranceCard, &p.VisitReason, &p.Symptoms, &p.TicketID,
		&p.Status, &p.Color, &p.Priority, &p.QueueSeq, &p.Station, &p.Triage, &p.Consult,
		&p.RegisteredAt, &p.TriageStartedAt, &p.TriagedAt, &p.ConsultStartedAt, &p.ConsultEndedAt, &p.StatusChangedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('patients', 'id'))`).Scan(&id)
	return id, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (`+patientCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		p.ID, p.RecordNumber, p.Name, p.CPF, p.BirthDate, p.Sex, p.Address, p.Phone,
		p.EmergencyContact, p.RG, p.Email, p.Insurance, p.InsuranceCard, p.VisitReason, p.Symptoms, p.TicketID,
		p.Status, p.Color, p.Priority, p.QueueSeq, p.Station, p.Triage, p.Consult,
		p.RegisteredAt, p.TriageStartedAt, p.TriagedAt, p.ConsultStartedAt, p.ConsultEndedAt, p.StatusChangedAt)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET status=$2, color=$3, priority=$4, queue_seq=$5, station=$6,
			triage=$7, consultation=$8, triage_started_at=$9, triaged_at=$10,
			consult_started_at=$11, consult_ended_at=$12, status_changed_at=$13
		WHERE id = $1`,
		p.ID, p.Status, p.Color, p.Priority, p.QueueSeq, p.Station,
		p.Triage, p.Consult, p.TriageStartedAt, p.TriagedAt,
		p.ConsultStartedAt, p.ConsultEndedAt, p.StatusChangedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) list(ctx context.Context, query string, args ...any) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	return r.list(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id`)
}

func (r *patientRepoPG) AtStation(ctx context.Context, station string) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE station = $1 AND status IN ($2, $3) LIMIT 1`,
		station, StatusInTriage, StatusInConsultation))
	if errors.Is(err, ErrPatientNotFound) {
		return nil, nil
	}
	return p, err
}

func (r *patientRepoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	var args []any
	idx := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if term := strings.TrimSpace(f.Term); term != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d ESCAPE '\' OR cpf LIKE $%d ESCAPE '\' OR id::text LIKE $%d ESCAPE '\')`, idx, idx, idx)
		args = append(args, containsPattern(term))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientCols + ` FROM patients` + where +
		fmt.Sprintf(" ORDER BY registered_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term as a literal substring.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// =========== Queue Repository ===========

type queueRepoPG struct{ pool *pgxpool.Pool }

func (r *queueRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *queueRepoPG) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('flow_queue_seq')`).Scan(&seq)
	return seq, err
}

func (r *queueRepoPG) Push(ctx context.Context, e QueueEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_entries (patient_id, queue, priority, seq, enqueued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE SET queue = EXCLUDED.queue, priority = EXCLUDED.priority,
			seq = EXCLUDED.seq, enqueued_at = EXCLUDED.enqueued_at`,
		e.PatientID, e.Queue, e.Priority, e.Seq, e.EnqueuedAt)
	return err
}

func (r *queueRepoPG) Remove(ctx context.Context, patientID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM queue_entries WHERE patient_id = $1`, patientID)
	return err
}

func (r *queueRepoPG) SetPriority(ctx context.Context, patientID int64, priority int) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE queue_entries SET priority = $2 WHERE patient_id = $1`, patientID, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *queueRepoPG) List(ctx context.Context, q QueueName) ([]QueueEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, queue, priority, seq, enqueued_at FROM queue_entries
		WHERE queue = $1 ORDER BY priority DESC, seq ASC`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.PatientID, &e.Queue, &e.Priority, &e.Seq, &e.EnqueuedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// =========== Ficha Repository ===========

type fichaRepoPG struct{ pool *pgxpool.Pool }

func (r *fichaRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const fichaCols = `id, patient_id, number, record_number, patient_name, cpf, insurance, visit_reason,
	issued_at, status, color, triage, consultation`

func (r *fichaRepoPG) scanFicha(row pgx.Row) (*Ficha, error) {
	var f Ficha
	err := row.Scan(&f.ID, &f.PatientID, &f.Number, &f.RecordNumber, &f.PatientName, &f.CPF, &f.Insurance,
		&f.VisitReason, &f.IssuedAt, &f.Status, &f.Color, &f.Triage, &f.Consult)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFichaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fichaRepoPG) Upsert(ctx context.Context, f *Ficha) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO fichas (`+fichaCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (patient_id) DO UPDATE SET number = EXCLUDED.number,
			record_number = EXCLUDED.record_number, patient_name = EXCLUDED.patient_name,
			cpf = EXCLUDED.cpf, insurance = EXCLUDED.insurance, visit_reason = EXCLUDED.visit_reason,
			issued_at = EXCLUDED.issued_at, status = EXCLUDED.status, color = EXCLUDED.color,
			triage = EXCLUDED.triage, consultation = EXCLUDED.consultation
		RETURNING id`,
		f.ID, f.PatientID, f.Number, f.RecordNumber, f.PatientName, f.CPF, f.Insurance, f.VisitReason,
		f.IssuedAt, f.Status, f.Color, f.Triage, f.Consult).Scan(&f.ID)
}

func (r *fichaRepoPG) GetByPatient(ctx context.Context, patientID int64) (*Ficha, error) {
	return r.scanFicha(r.conn(ctx).QueryRow(ctx, `SELECT `+fichaCols+` FROM fichas WHERE patient_id = $1`, patientID))
}

func (r *fichaRepoPG) List(ctx context.Context) ([]*Ficha, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+fichaCols+` FROM fichas ORDER BY issued_at DESC, patient_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Ficha
	for rows.Next() {
		f, err := r.scanFicha(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// =========== Call Repository ===========

type callRepoPG struct{ pool *pgxpool.Pool }

func (r *callRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *callRepoPG) Add(ctx context.Context, c *Call) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO calls (id, patient_id, patient_name, public_name, record_number, called_at, kind, location, color)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.PatientID, c.PatientName, c.PublicName, c.RecordNumber, c.CalledAt, c.Kind, c.Location, c.Color)
	return err
}

func (r *callRepoPG) RemoveForPatient(ctx context.Context, patientID int64, kind CallKind) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM calls WHERE patient_id = $1 AND kind = $2`, patientID, kind)
	return err
}

func (r *callRepoPG) List(ctx context.Context) ([]*Call, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, patient_name, public_name, record_number, called_at, kind, location, color
		FROM calls ORDER BY called_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.PatientID, &c.PatientName, &c.PublicName, &c.RecordNumber,
			&c.CalledAt, &c.Kind, &c.Location, &c.Color); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *callRepoPG) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM calls WHERE called_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
