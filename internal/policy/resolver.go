// Package policy answers "which whitelist group applies to this endpoint
// right now". The answer is recomputed on every call: it depends on the
// wall clock, so caching would serve stale schedule transitions even with
// no writes occurring.
package policy

import (
	"context"
	"time"

	"github.com/balejosg/openpath/internal/model"
)

const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
	SourceDefault  = "default"
)

type Effective struct {
	GroupID string `json:"groupId"`
	Source  string `json:"source"`
}

// ClassroomSource resolves an endpoint to its classroom, including the
// classroom's override and default group. Unknown endpoints yield the
// store's not-found error.
type ClassroomSource interface {
	EndpointClassroom(ctx context.Context, endpointID string) (model.Classroom, error)
}

// ScheduleSource finds the reservation covering the given weekday and
// clock on a classroom, or nil when none matches.
type ScheduleSource interface {
	ActiveReservation(ctx context.Context, classroomID string, day int, clock string) (*model.Reservation, error)
}

type Resolver struct {
	classrooms ClassroomSource
	schedules  ScheduleSource
	now        func() time.Time
}

func NewResolver(classrooms ClassroomSource, schedules ScheduleSource) *Resolver {
	return &Resolver{classrooms: classrooms, schedules: schedules, now: time.Now}
}

// EffectiveGroup resolves in strict precedence order: manual override,
// then the reservation covering the current instant, then the classroom
// default. Returns nil when the classroom has no applicable policy.
func (r *Resolver) EffectiveGroup(ctx context.Context, endpointID string) (*Effective, error) {
	classroom, err := r.classrooms.EndpointClassroom(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	if classroom.OverrideGroupID != nil {
		return &Effective{GroupID: *classroom.OverrideGroupID, Source: SourceManual}, nil
	}

	now := r.now()
	day := int(now.Weekday())
	if day >= 1 && day <= 5 {
		reservation, err := r.schedules.ActiveReservation(ctx, classroom.ID, day, now.Format("15:04"))
		if err != nil {
			return nil, err
		}
		if reservation != nil {
			return &Effective{GroupID: reservation.GroupID, Source: SourceSchedule}, nil
		}
	}

	if classroom.DefaultGroupID != nil {
		return &Effective{GroupID: *classroom.DefaultGroupID, Source: SourceDefault}, nil
	}
	return nil, nil
}
