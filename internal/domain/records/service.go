package records

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/availability/pkg/filter"
)

// Service lists a patient's visits, reminders and codes through the filter
// engine.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	now       func() time.Time
	visits    filter.Config[*Visit]
	reminders filter.Config[*Reminder]
	codes     filter.Config[*Code]
}

func NewService(repo Repository, aliases filter.StatusAliases, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "records").Logger(),
		now:       time.Now,
		visits:    VisitFilter(aliases),
		reminders: ReminderFilter(aliases),
		codes:     CodeFilter(aliases),
	}
}

func (s *Service) ListVisits(ctx context.Context, patientID uuid.UUID, cr filter.Criteria) ([]*Visit, error) {
	items, err := s.repo.ListVisits(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return filter.Apply(items, cr, s.visits), nil
}

func (s *Service) ListReminders(ctx context.Context, patientID uuid.UUID, cr filter.Criteria, unreadOnly bool) ([]*Reminder, error) {
	items, err := s.repo.ListReminders(ctx, patientID)
	if err != nil {
		return nil, err
	}
	cfg := s.reminders
	if unreadOnly {
		cfg = cfg.With(OnlyUnread)
	}
	return filter.Apply(items, cr, cfg), nil
}

// ListCodes lists codes of kind (any kind when empty). activeOnly drops
// expired codes.
func (s *Service) ListCodes(ctx context.Context, patientID uuid.UUID, cr filter.Criteria, kind CodeKind, activeOnly bool) ([]*Code, error) {
	items, err := s.repo.ListCodes(ctx, patientID)
	if err != nil {
		return nil, err
	}
	cfg := s.codes
	if kind != "" {
		cfg = cfg.With(OfKind(kind))
	}
	if activeOnly {
		cfg = cfg.With(NotExpired(s.now()))
	}
	return filter.Apply(items, cr, cfg), nil
}

func (s *Service) MarkReminderRead(ctx context.Context, patientID, reminderID uuid.UUID) error {
	if err := s.repo.MarkReminderRead(ctx, patientID, reminderID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("reminder_id", reminderID.String()).Msg("mark reminder read")
		return err
	}
	return nil
}
