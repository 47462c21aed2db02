// Package schedule validates and stores weekly classroom reservations,
// guaranteeing that no two reservations for the same classroom and day
// hold overlapping time windows.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/balejosg/openpath/internal/model"
)

var ErrNotFound = errors.New("reservation not found")

// clockPattern matches 24h "HH:MM". Zero-padded clock strings compare
// correctly with plain string ordering, which the interval logic relies on.
var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type Input struct {
	ClassroomID string
	TeacherID   string
	GroupID     string
	DayOfWeek   int
	StartTime   string
	EndTime     string
	Recurrence  string
}

type Patch struct {
	GroupID    *string
	DayOfWeek  *int
	StartTime  *string
	EndTime    *string
	Recurrence *string
}

// InvalidInputError names the violated constraint. The input is
// caller-supplied, so the detail is safe to surface.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid schedule input: %s %s", e.Field, e.Reason)
}

// ConflictError carries the clashing reservation so callers can show it.
type ConflictError struct {
	Conflict model.Reservation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation conflicts with %s (%s-%s)", e.Conflict.ID, e.Conflict.StartTime, e.Conflict.EndTime)
}

func validateWindow(day int, start, end string) error {
	if day < 1 || day > 5 {
		return &InvalidInputError{Field: "dayOfWeek", Reason: "must be 1 (Monday) through 5 (Friday)"}
	}
	if !clockPattern.MatchString(start) {
		return &InvalidInputError{Field: "startTime", Reason: "must be HH:MM 24h"}
	}
	if !clockPattern.MatchString(end) {
		return &InvalidInputError{Field: "endTime", Reason: "must be HH:MM 24h"}
	}
	if start >= end {
		return &InvalidInputError{Field: "startTime", Reason: "must be before endTime"}
	}
	return nil
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. An interval ending exactly when another begins does not
// overlap.
func Overlaps(s1, e1, s2, e2 string) bool {
	return s1 < e2 && s2 < e1
}

// FindConflict returns the first reservation in existing that overlaps
// [start,end), skipping excludeID so an update never collides with itself.
func FindConflict(existing []model.Reservation, start, end, excludeID string) *model.Reservation {
	for i := range existing {
		if existing[i].ID == excludeID {
			continue
		}
		if Overlaps(existing[i].StartTime, existing[i].EndTime, start, end) {
			conflict := existing[i]
			return &conflict
		}
	}
	return nil
}

// Store persists reservations. Insert and Update run the conflict check
// and the write atomically: on a clash they return *ConflictError and
// leave the stored set untouched.
type Store interface {
	Insert(ctx context.Context, r model.Reservation) error
	Update(ctx context.Context, r model.Reservation) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListClassroom(ctx context.Context, classroomID string) ([]model.Reservation, error)
	ListClassroomDay(ctx context.Context, classroomID string, day int) ([]model.Reservation, error)

	// ActiveReservation returns the reservation covering clock on the
	// given classroom and weekday, or nil when none matches.
	ActiveReservation(ctx context.Context, classroomID string, day int, clock string) (*model.Reservation, error)
}
