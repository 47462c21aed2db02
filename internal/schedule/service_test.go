package schedule

import (
	"context"
	"errors"
	"testing"
)

func validInput() Input {
	return Input{
		ClassroomID: "room-1",
		TeacherID:   "teacher-1",
		GroupID:     "group-b",
		DayOfWeek:   1,
		StartTime:   "09:00",
		EndTime:     "10:00",
		Recurrence:  "weekly",
	}
}

func TestServiceCreate(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	created, err := service.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	stored, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if stored.StartTime != "09:00" || stored.EndTime != "10:00" || stored.GroupID != "group-b" {
		t.Fatalf("unexpected stored reservation: %+v", stored)
	}
}

func TestServiceCreateRejectsInvalidInput(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	input := validInput()
	input.DayOfWeek = 7
	if _, err := service.Create(ctx, input); err == nil {
		t.Fatalf("expected invalid day rejected")
	}

	input = validInput()
	input.EndTime = "08:00"
	var invalid *InvalidInputError
	if _, err := service.Create(ctx, input); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestServiceCreateConflictLeavesStoreUnchanged(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store)
	ctx := context.Background()

	first, err := service.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	input := validInput()
	input.StartTime = "09:30"
	input.EndTime = "10:30"
	_, err = service.Create(ctx, input)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Conflict.ID != first.ID {
		t.Fatalf("expected clashing reservation %s in error, got %s", first.ID, conflict.Conflict.ID)
	}

	remaining, err := store.ListClassroomDay(ctx, "room-1", 1)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != first.ID {
		t.Fatalf("expected store unchanged after rejected create, got %+v", remaining)
	}
}

func TestServiceCreateAllowsAdjacentAndOtherDays(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, err := service.Create(ctx, validInput()); err != nil {
		t.Fatalf("create error: %v", err)
	}

	adjacent := validInput()
	adjacent.StartTime = "10:00"
	adjacent.EndTime = "11:00"
	if _, err := service.Create(ctx, adjacent); err != nil {
		t.Fatalf("adjacent interval should not conflict: %v", err)
	}

	otherDay := validInput()
	otherDay.DayOfWeek = 2
	if _, err := service.Create(ctx, otherDay); err != nil {
		t.Fatalf("other day should not conflict: %v", err)
	}

	otherRoom := validInput()
	otherRoom.ClassroomID = "room-2"
	if _, err := service.Create(ctx, otherRoom); err != nil {
		t.Fatalf("other classroom should not conflict: %v", err)
	}
}

func TestServiceUpdate(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store)
	ctx := context.Background()

	first, err := service.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	other := validInput()
	other.StartTime = "11:00"
	other.EndTime = "12:00"
	second, err := service.Create(ctx, other)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	// Moving a reservation over its own window is never a self-conflict.
	start := "09:30"
	end := "10:30"
	updated, err := service.Update(ctx, first.ID, Patch{StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.StartTime != "09:30" || updated.EndTime != "10:30" {
		t.Fatalf("unexpected updated window: %+v", updated)
	}

	// Moving onto another reservation fails and writes nothing.
	badStart := "11:30"
	badEnd := "12:30"
	_, err = service.Update(ctx, first.ID, Patch{StartTime: &badStart, EndTime: &badEnd})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Conflict.ID != second.ID {
		t.Fatalf("expected conflict with %s, got %v", second.ID, err)
	}
	unchanged, _ := service.Get(ctx, first.ID)
	if unchanged.StartTime != "09:30" || unchanged.EndTime != "10:30" {
		t.Fatalf("expected reservation untouched after rejected update, got %+v", unchanged)
	}

	// Invalid merged window is rejected before any write.
	badDay := 9
	if _, err := service.Update(ctx, first.ID, Patch{DayOfWeek: &badDay}); err == nil {
		t.Fatalf("expected invalid merged window rejected")
	}

	if _, err := service.Update(ctx, "missing", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	created, err := service.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := service.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if err := service.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoreActiveReservation(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store)
	ctx := context.Background()

	created, err := service.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	match, err := store.ActiveReservation(ctx, "room-1", 1, "09:30")
	if err != nil || match == nil || match.ID != created.ID {
		t.Fatalf("expected active reservation at 09:30, got %+v err=%v", match, err)
	}
	// Start is inclusive, end exclusive.
	if match, _ := store.ActiveReservation(ctx, "room-1", 1, "09:00"); match == nil {
		t.Fatalf("expected start inclusive")
	}
	if match, _ := store.ActiveReservation(ctx, "room-1", 1, "10:00"); match != nil {
		t.Fatalf("expected end exclusive")
	}
	if match, _ := store.ActiveReservation(ctx, "room-1", 2, "09:30"); match != nil {
		t.Fatalf("expected no match on another day")
	}
}
