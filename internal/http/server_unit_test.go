package http

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/balejosg/openpath/internal/auth"
	"github.com/balejosg/openpath/internal/model"
	"github.com/balejosg/openpath/internal/schedule"
)

func TestBearerToken(t *testing.T) {
	if got := bearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := bearerToken("Bearer   abc  "); got != "abc" {
		t.Fatalf("expected trimmed token, got %q", got)
	}
	if got := bearerToken("Basic abc"); got != "" {
		t.Fatalf("expected empty for non-bearer, got %q", got)
	}
	if got := bearerToken(""); got != "" {
		t.Fatalf("expected empty for missing header, got %q", got)
	}
}

func TestCanManageReservation(t *testing.T) {
	reservation := model.Reservation{TeacherID: "teacher-1", GroupID: "g-1"}

	admin := &auth.Claims{UserID: "other", Roles: []auth.RoleClaim{{Role: auth.RoleAdmin}}}
	if !canManageReservation(admin, reservation) {
		t.Fatalf("expected admin to manage any reservation")
	}

	owner := &auth.Claims{UserID: "teacher-1", Roles: []auth.RoleClaim{{Role: auth.RoleTeacher, Groups: []string{"g-1"}}}}
	if !canManageReservation(owner, reservation) {
		t.Fatalf("expected scoped owner to manage own reservation")
	}

	outOfScope := &auth.Claims{UserID: "teacher-1", Roles: []auth.RoleClaim{{Role: auth.RoleTeacher, Groups: []string{"g-2"}}}}
	if canManageReservation(outOfScope, reservation) {
		t.Fatalf("expected owner without group scope rejected")
	}

	stranger := &auth.Claims{UserID: "teacher-2", Roles: []auth.RoleClaim{{Role: auth.RoleTeacher, Groups: []string{"g-1"}}}}
	if canManageReservation(stranger, reservation) {
		t.Fatalf("expected non-owner teacher rejected")
	}

	student := &auth.Claims{UserID: "teacher-1", Roles: []auth.RoleClaim{{Role: auth.RoleStudent}}}
	if canManageReservation(student, reservation) {
		t.Fatalf("expected student rejected")
	}
}

func TestWriteScheduleErrorMapping(t *testing.T) {
	server := &Server{}

	rec := httptest.NewRecorder()
	server.writeScheduleError(rec, &schedule.InvalidInputError{Field: "dayOfWeek", Reason: "must be 1 (Monday) through 5 (Friday)"})
	if rec.Code != 400 {
		t.Fatalf("expected 400 for invalid input, got %d", rec.Code)
	}
	var invalidBody map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &invalidBody); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if invalidBody["field"] != "dayOfWeek" || invalidBody["reason"] == "" {
		t.Fatalf("expected violated constraint in body, got %v", invalidBody)
	}

	rec = httptest.NewRecorder()
	server.writeScheduleError(rec, &schedule.ConflictError{Conflict: model.Reservation{ID: "r-1", StartTime: "09:00", EndTime: "10:00"}})
	if rec.Code != 409 {
		t.Fatalf("expected 409 for conflict, got %d", rec.Code)
	}
	var conflictBody struct {
		Error    string              `json:"error"`
		Conflict reservationResponse `json:"conflict"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conflictBody); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if conflictBody.Error != "schedule_conflict" || conflictBody.Conflict.ID != "r-1" {
		t.Fatalf("expected clashing reservation attached, got %+v", conflictBody)
	}

	rec = httptest.NewRecorder()
	server.writeScheduleError(rec, schedule.ErrNotFound)
	if rec.Code != 404 {
		t.Fatalf("expected 404 for missing reservation, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.writeScheduleError(rec, errors.New("boom"))
	if rec.Code != 500 {
		t.Fatalf("expected 500 for unknown error, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
}
