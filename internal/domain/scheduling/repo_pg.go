package scheduling

import (
	"context"
	"errors"
	"fmt"
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
	Begin(ctx context.Context) (pgx.Tx, error)
}

// slotStorePG is the Postgres SlotStore. Row locks taken inside each
// transaction serialise concurrent bookings of the same slot.
type slotStorePG struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewSlotStorePG returns a SlotStore over the schedule_slot table. Timestamps
// are rendered in loc.
func NewSlotStorePG(pool *pgxpool.Pool, loc *time.Location) SlotStore {
	if loc == nil {
		loc = time.UTC
	}
	return &slotStorePG{pool: pool, loc: loc}
}

func (r *slotStorePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const slotCols = `id, doctor_id, institution_id, visit_id, start_time, end_time, state`

func scanSlot(row pgx.Row) (ScheduleRecord, error) {
	var (
		s     ScheduleRecord
		id    uuid.UUID
		state string
	)
	err := row.Scan(&id, &s.DoctorID, &s.InstitutionID, &s.VisitID, &s.Start, &s.End, &state)
	if err != nil {
		return s, err
	}
	s.ID = id.String()
	s.State = SlotState(state)
	s.Booked = s.State == SlotBooked || s.State == SlotCompleted
	return s, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (r *slotStorePG) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// lockSlot loads a live slot FOR UPDATE.
func lockSlot(ctx context.Context, tx pgx.Tx, slotID string) (ScheduleRecord, error) {
	id, err := uuid.Parse(slotID)
	if err != nil {
		return ScheduleRecord{}, ErrSlotNotFound
	}
	s, err := scanSlot(tx.QueryRow(ctx,
		`SELECT `+slotCols+` FROM schedule_slot WHERE id = $1 AND state <> 'deleted' FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ScheduleRecord{}, ErrSlotNotFound
	}
	return s, err
}

func (r *slotStorePG) ReplaceSlotRange(ctx context.Context, doctorID, institutionID uuid.UUID, oldRange, newRange TimeRange, intervalMinutes int) error {
	lo, hi := oldRange.Start, newRange.End
	if newRange.Start.Before(lo) {
		lo = newRange.Start
	}
	if oldRange.End.After(hi) {
		hi = oldRange.End
	}

	return r.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+slotCols+` FROM schedule_slot
			WHERE doctor_id = $1 AND state <> 'deleted' AND start_time <= $3 AND end_time >= $2
			ORDER BY start_time FOR UPDATE`, doctorID, lo, hi)
		if err != nil {
			return err
		}
		var existing []ScheduleRecord
		for rows.Next() {
			s, err := scanSlot(rows)
			if err != nil {
				rows.Close()
				return err
			}
			existing = append(existing, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		drop, create, err := planReplace(existing, institutionID, oldRange, newRange, intervalMinutes)
		if err != nil {
			return err
		}

		if len(drop) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM schedule_slot WHERE id = ANY($1::uuid[])`, drop); err != nil {
				return err
			}
		}

		batch := &pgx.Batch{}
		for _, c := range create {
			batch.Queue(`INSERT INTO schedule_slot (id, doctor_id, institution_id, start_time, end_time, state)
				VALUES ($1, $2, $3, $4, $5, 'available')`,
				uuid.New(), doctorID, institutionID, c.Start, c.End)
		}
		if batch.Len() == 0 {
			return nil
		}
		return mapPgError(tx.SendBatch(ctx, batch).Close())
	})
}

func (r *slotStorePG) UpdateSlot(ctx context.Context, slotID string, start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidTimeRange
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		var overlap bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM schedule_slot
			WHERE doctor_id = $1 AND id <> $2 AND state NOT IN ('deleted', 'cancelled')
				AND start_time < $4 AND end_time > $3)`,
			s.DoctorID, uuid.MustParse(s.ID), start, end).Scan(&overlap)
		if err != nil {
			return err
		}
		if overlap {
			return ErrSlotOverlap
		}
		_, err = tx.Exec(ctx, `UPDATE schedule_slot SET start_time = $2, end_time = $3, updated_at = NOW() WHERE id = $1`,
			uuid.MustParse(s.ID), start, end)
		return mapPgError(err)
	})
}

func (r *slotStorePG) DeleteSlot(ctx context.Context, slotID string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := transitionError(s.State, SlotDeleted); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE schedule_slot SET state = 'deleted', updated_at = NOW() WHERE id = $1`, uuid.MustParse(s.ID))
		return err
	})
}

func (r *slotStorePG) FetchSlots(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) ([]RawScheduleRecord, error) {
	query := `SELECT ` + slotCols + ` FROM schedule_slot WHERE doctor_id = $1 AND state <> 'deleted'`
	args := []interface{}{doctorID}
	if institutionID != nil {
		query += ` AND institution_id = $2`
		args = append(args, *institutionID)
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawScheduleRecord
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, RawScheduleRecord{
			ID:            s.ID,
			DoctorID:      s.DoctorID,
			InstitutionID: s.InstitutionID,
			VisitID:       s.VisitID,
			Start:         s.Start.In(r.loc).Format(time.RFC3339),
			End:           s.End.In(r.loc).Format(time.RFC3339),
			State:         string(s.State),
		})
	}
	return out, rows.Err()
}

func (r *slotStorePG) BookSlot(ctx context.Context, slotID string, visitID uuid.UUID) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := transitionError(s.State, SlotBooked); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE schedule_slot SET state = 'booked', visit_id = $2, updated_at = NOW() WHERE id = $1`,
			uuid.MustParse(s.ID), visitID)
		return mapPgError(err)
	})
}

func (r *slotStorePG) SetSlotState(ctx context.Context, slotID string, state SlotState) error {
	if state == SlotBooked {
		return fmt.Errorf("book through BookSlot: %w", ErrInvalidTransition)
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := transitionError(s.State, state); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE schedule_slot SET state = $2, updated_at = NOW() WHERE id = $1`,
			uuid.MustParse(s.ID), string(state))
		return mapPgError(err)
	})
}

func (r *slotStorePG) Reschedule(ctx context.Context, visitID uuid.UUID, fromSlotID, toSlotID string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		// Lock in id order so two opposite moves cannot deadlock.
		first, second := fromSlotID, toSlotID
		if second < first {
			first, second = second, first
		}
		locked := map[string]ScheduleRecord{}
		for _, id := range []string{first, second} {
			s, err := lockSlot(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = s
		}

		from, to := locked[fromSlotID], locked[toSlotID]
		if from.State != SlotBooked || from.VisitID == nil || *from.VisitID != visitID {
			return ErrVisitNotFound
		}
		if err := transitionError(to.State, SlotBooked); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE schedule_slot SET state = 'available', visit_id = NULL, updated_at = NOW() WHERE id = $1`,
			uuid.MustParse(from.ID)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE schedule_slot SET state = 'booked', visit_id = $2, updated_at = NOW() WHERE id = $1`,
			uuid.MustParse(to.ID), visitID)
		return mapPgError(err)
	})
}

// mapPgError translates constraint violations into scheduling errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505", "23P01": // unique_violation, exclusion_violation
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrSlotConflict)
	case "23514": // check_violation
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInvalidTimeRange)
	}
	return err
}
