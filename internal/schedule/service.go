package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/balejosg/openpath/internal/model"
)

// Service validates reservation mutations before handing them to the
// store. Create is not idempotent: a caller that times out must not blindly
// retry, or it may insert twice under a fresh id.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, input Input) (model.Reservation, error) {
	if err := validateWindow(input.DayOfWeek, input.StartTime, input.EndTime); err != nil {
		return model.Reservation{}, err
	}
	now := s.now().UTC()
	reservation := model.Reservation{
		ID:          uuid.NewString(),
		ClassroomID: input.ClassroomID,
		TeacherID:   input.TeacherID,
		GroupID:     input.GroupID,
		DayOfWeek:   input.DayOfWeek,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Recurrence:  input.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, reservation); err != nil {
		return model.Reservation{}, err
	}
	return reservation, nil
}

// Update merges the patch over the stored reservation, validates the
// would-be window and applies it atomically. The store re-checks conflicts
// excluding the reservation's own id, so no partial write is observable
// when the merged window clashes.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (model.Reservation, error) {
	reservation, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if patch.GroupID != nil {
		reservation.GroupID = *patch.GroupID
	}
	if patch.DayOfWeek != nil {
		reservation.DayOfWeek = *patch.DayOfWeek
	}
	if patch.StartTime != nil {
		reservation.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		reservation.EndTime = *patch.EndTime
	}
	if patch.Recurrence != nil {
		reservation.Recurrence = *patch.Recurrence
	}
	if err := validateWindow(reservation.DayOfWeek, reservation.StartTime, reservation.EndTime); err != nil {
		return model.Reservation{}, err
	}
	reservation.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, reservation); err != nil {
		return model.Reservation{}, err
	}
	return reservation, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Reservation, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListClassroom(ctx context.Context, classroomID string) ([]model.Reservation, error) {
	return s.store.ListClassroom(ctx, classroomID)
}
