package records

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/availability/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const visitCols = `id, patient_id, doctor_id, doctor_name, institution_id, institution_name,
	slot_id, reason, status, scheduled_at, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.DoctorName, &v.InstitutionID, &v.InstitutionName,
		&v.SlotID, &v.Reason, &v.Status, &v.ScheduledAt, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *repoPG) ListVisits(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visit
		WHERE patient_id = $1 ORDER BY scheduled_at DESC NULLS LAST, id`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanVisit)
}

const reminderCols = `id, patient_id, visit_id, title, body, status, due_at, read_at, created_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var m Reminder
	err := row.Scan(&m.ID, &m.PatientID, &m.VisitID, &m.Title, &m.Body, &m.Status, &m.DueAt, &m.ReadAt, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) ListReminders(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reminderCols+` FROM reminder
		WHERE patient_id = $1 ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReminder)
}

func (r *repoPG) MarkReminderRead(ctx context.Context, patientID, reminderID uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE reminder SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND patient_id = $2`, reminderID, patientID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

const codeCols = `id, patient_id, visit_id, kind, code, description, issued_by, status, issued_at, expires_at`

func scanCode(row pgx.Row) (*Code, error) {
	var c Code
	var kind string
	err := row.Scan(&c.ID, &c.PatientID, &c.VisitID, &kind, &c.Code, &c.Description, &c.IssuedBy, &c.Status, &c.IssuedAt, &c.ExpiresAt)
	c.Kind = CodeKind(kind)
	return &c, err
}

func (r *repoPG) ListCodes(ctx context.Context, patientID uuid.UUID) ([]*Code, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+codeCols+` FROM patient_code
		WHERE patient_id = $1 ORDER BY issued_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCode)
}
