package records

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrInvalidKind      = errors.New("invalid code kind")
)

// Visit statuses.
const (
	VisitScheduled = "scheduled"
	VisitCompleted = "completed"
	VisitCancelled = "cancelled"
	VisitNoShow    = "no-show"
)

// Visit is an appointment a patient booked into a doctor's slot.
type Visit struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	DoctorName      string     `db:"doctor_name" json:"doctor_name"`
	InstitutionID   uuid.UUID  `db:"institution_id" json:"institution_id"`
	InstitutionName string     `db:"institution_name" json:"institution_name"`
	SlotID          *uuid.UUID `db:"slot_id" json:"slot_id,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Status          string     `db:"status" json:"status"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Reminder is a message to a patient, usually about an upcoming visit.
type Reminder struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID   *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Title     string     `db:"title" json:"title"`
	Body      *string    `db:"body" json:"body,omitempty"`
	Status    string     `db:"status" json:"status"`
	DueAt     *time.Time `db:"due_at" json:"due_at,omitempty"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (r *Reminder) Unread() bool { return r.ReadAt == nil }

// CodeKind distinguishes the codes issued at a visit.
type CodeKind string

const (
	KindPrescription CodeKind = "prescription"
	KindReferral     CodeKind = "referral"
)

// ParseCodeKind accepts "" (any kind) or a known kind.
func ParseCodeKind(s string) (CodeKind, error) {
	switch k := CodeKind(s); k {
	case "", KindPrescription, KindReferral:
		return k, nil
	}
	return "", ErrInvalidKind
}

// Code is a prescription or referral code issued to a patient.
type Code struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Kind        CodeKind   `db:"kind" json:"kind"`
	Code        string     `db:"code" json:"code"`
	Description *string    `db:"description" json:"description,omitempty"`
	IssuedBy    string     `db:"issued_by" json:"issued_by"`
	Status      string     `db:"status" json:"status"`
	IssuedAt    time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}
