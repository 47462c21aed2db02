package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/balejosg/openpath/internal/auth"
	"github.com/balejosg/openpath/internal/config"
	"github.com/balejosg/openpath/internal/crypto"
	"github.com/balejosg/openpath/internal/model"
	"github.com/balejosg/openpath/internal/policy"
	"github.com/balejosg/openpath/internal/repository"
	"github.com/balejosg/openpath/internal/schedule"
)

type Server struct {
	cfg       config.Config
	store     *repository.Store
	issuer    *auth.Issuer
	schedules *schedule.Service
	resolver  *policy.Resolver
}

func NewServer(cfg config.Config, store *repository.Store, issuer *auth.Issuer, schedules *schedule.Service, resolver *policy.Resolver) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		issuer:    issuer,
		schedules: schedules,
		resolver:  resolver,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware, s.requireAdmin).Post("/roles", s.handleCreateRole)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/roles/{assignmentId}", s.handleRevokeRole)

	r.With(s.authMiddleware, s.requireAdmin).Post("/groups", s.handleCreateGroup)
	r.With(s.authMiddleware).Get("/groups", s.handleListGroups)

	r.With(s.authMiddleware, s.requireAdmin).Post("/classrooms", s.handleCreateClassroom)
	r.With(s.authMiddleware).Get("/classrooms/{classroomId}", s.handleGetClassroom)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/classrooms/{classroomId}", s.handleDeleteClassroom)
	r.With(s.authMiddleware).Put("/classrooms/{classroomId}/override", s.handleSetOverride)
	r.With(s.authMiddleware).Delete("/classrooms/{classroomId}/override", s.handleClearOverride)
	r.With(s.authMiddleware, s.requireAdmin).Put("/classrooms/{classroomId}/default", s.handleSetDefault)
	r.With(s.authMiddleware, s.requireAdmin).Post("/classrooms/{classroomId}/endpoints", s.handleCreateEndpoint)
	r.With(s.authMiddleware).Get("/classrooms/{classroomId}/reservations", s.handleListReservations)

	r.With(s.authMiddleware).Post("/reservations", s.handleCreateReservation)
	r.With(s.authMiddleware).Get("/reservations/{reservationId}", s.handleGetReservation)
	r.With(s.authMiddleware).Patch("/reservations/{reservationId}", s.handlePatchReservation)
	r.With(s.authMiddleware).Delete("/reservations/{reservationId}", s.handleDeleteReservation)

	r.With(s.authMiddleware).Get("/endpoints/{endpointId}/policy", s.handleGetEndpointPolicy)

	return r
}

// Auth

type claimsKey struct{}

// authMiddleware collapses every verification failure into the same 401
// body; the distinction between invalid, expired and revoked is logged but
// never surfaced to the caller.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := s.issuer.Verify(r.Context(), token)
		if err != nil {
			log.Printf("token verification failed: %v", err)
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if claims.Kind != auth.KindAccess {
			log.Printf("token verification failed: %s token used as access token", claims.Kind)
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !auth.IsAdmin(claims) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Session handlers

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	HighestRole string   `json:"highestRole,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	AllGroups   bool     `json:"allGroups,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	s.issueSession(w, r, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	claims, err := s.issuer.Verify(r.Context(), req.RefreshToken)
	if err != nil || claims.Kind != auth.KindRefresh {
		log.Printf("refresh verification failed: %v", err)
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	// Rotation: the old refresh token dies with its session, in the
	// revocation store as well so it cannot be replayed before its exp.
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.issuer.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.issueSession(w, r, user)
}

// issueSession snapshots the user's roles once and signs both tokens from
// that single snapshot.
func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user model.User) {
	assignments, err := s.store.GetActiveRoles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	claims := auth.Claims{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     roleClaims(assignments),
	}

	accessToken, err := s.issuer.Issue(claims, auth.KindAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	refreshToken, err := s.issuer.Issue(claims, auth.KindRefresh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	now := time.Now().UTC()
	userAgent := r.UserAgent()
	ip := clientIP(r)
	err = s.store.CreateRefreshSession(r.Context(), model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		UserAgent: &userAgent,
		IPAddress: &ip,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	groups, all := auth.ApprovalGroups(&claims)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: userSummary{
			ID:          user.ID,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			HighestRole: auth.HighestRole(&claims),
			Groups:      groups,
			AllGroups:   all,
		},
	})
}

func roleClaims(assignments []model.RoleAssignment) []auth.RoleClaim {
	claims := make([]auth.RoleClaim, 0, len(assignments))
	for _, a := range assignments {
		claims = append(claims, auth.RoleClaim{Role: a.Role, Groups: a.GroupIDs})
	}
	return claims
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	// The presented access token is revoked immediately; it stays valid
	// cryptographically until exp, so only the revocation record stops it.
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		if err := s.issuer.Revoke(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	var req logoutRequest
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		_ = s.issuer.Revoke(r.Context(), req.RefreshToken)
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	groups, all := auth.ApprovalGroups(claims)
	writeJSON(w, http.StatusOK, userSummary{
		ID:          claims.UserID,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		HighestRole: auth.HighestRole(claims),
		Groups:      groups,
		AllGroups:   all,
	})
}

// Role administration

type createRoleRequest struct {
	UserID string   `json:"userId"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}
	if !auth.ValidRole(req.Role) {
		log.Printf("role assignment rejected: %v", &auth.RoleAssignmentError{Role: req.Role})
		writeError(w, http.StatusBadRequest, "unknown_role")
		return
	}
	// Group scopes only mean something on teacher assignments.
	if req.Role != auth.RoleTeacher {
		req.Groups = nil
	}

	if _, err := s.store.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	assignment := model.RoleAssignment{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Role:      req.Role,
		GroupIDs:  req.Groups,
		CreatedBy: claims.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRoleAssignment(r.Context(), assignment); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": assignment.ID})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")
	if err := s.store.RevokeRoleAssignment(r.Context(), assignmentID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assignment_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Groups

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	group := model.Group{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name), CreatedAt: time.Now().UTC()}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": group.ID, "name": group.Name})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]map[string]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, map[string]string{"id": g.ID, "name": g.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// Classrooms

type createClassroomRequest struct {
	Name           string  `json:"name"`
	DefaultGroupID *string `json:"defaultGroupId"`
}

type classroomResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DefaultGroupID  *string `json:"defaultGroupId"`
	OverrideGroupID *string `json:"overrideGroupId"`
}

func (s *Server) handleCreateClassroom(w http.ResponseWriter, r *http.Request) {
	var req createClassroomRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	now := time.Now().UTC()
	classroom := model.Classroom{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(req.Name),
		DefaultGroupID: req.DefaultGroupID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateClassroom(r.Context(), classroom); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapClassroom(classroom))
}

func (s *Server) handleGetClassroom(w http.ResponseWriter, r *http.Request) {
	classroom, err := s.store.GetClassroom(r.Context(), chi.URLParam(r, "classroomId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapClassroom(classroom))
}

func (s *Server) handleDeleteClassroom(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteClassroom(r.Context(), chi.URLParam(r, "classroomId")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type overrideRequest struct {
	GroupID string `json:"groupId"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil || req.GroupID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !auth.CanApprove(claims, req.GroupID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.store.SetOverrideGroup(r.Context(), chi.URLParam(r, "classroomId"), &req.GroupID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "override_set"})
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	classroomID := chi.URLParam(r, "classroomId")

	classroom, err := s.store.GetClassroom(r.Context(), classroomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if classroom.OverrideGroupID != nil && !auth.CanApprove(claims, *classroom.OverrideGroupID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.store.SetOverrideGroup(r.Context(), classroomID, nil, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "override_cleared"})
}

type defaultGroupRequest struct {
	GroupID *string `json:"groupId"`
}

func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	var req defaultGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.store.SetDefaultGroup(r.Context(), chi.URLParam(r, "classroomId"), req.GroupID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "default_set"})
}

type createEndpointRequest struct {
	Hostname string `json:"hostname"`
}

func (s *Server) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req createEndpointRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Hostname) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	classroomID := chi.URLParam(r, "classroomId")
	if _, err := s.store.GetClassroom(r.Context(), classroomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	endpoint := model.Endpoint{
		ID:          uuid.NewString(),
		ClassroomID: classroomID,
		Hostname:    strings.TrimSpace(req.Hostname),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateEndpoint(r.Context(), endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": endpoint.ID})
}

// Reservations

type createReservationRequest struct {
	ClassroomID string `json:"classroom"`
	GroupID     string `json:"group"`
	DayOfWeek   int    `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Recurrence  string `json:"recurrence"`
}

type patchReservationRequest struct {
	GroupID    *string `json:"group"`
	DayOfWeek  *int    `json:"dayOfWeek"`
	StartTime  *string `json:"startTime"`
	EndTime    *string `json:"endTime"`
	Recurrence *string `json:"recurrence"`
}

type reservationResponse struct {
	ID          string `json:"id"`
	ClassroomID string `json:"classroom"`
	TeacherID   string `json:"teacher"`
	GroupID     string `json:"group"`
	DayOfWeek   int    `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Recurrence  string `json:"recurrence,omitempty"`
}

// handleCreateReservation is not idempotent: a caller whose request timed
// out must check for the reservation before retrying, or it may end up
// with two windows.
func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ClassroomID == "" || req.GroupID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !auth.CanApprove(claims, req.GroupID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := s.store.GetClassroom(r.Context(), req.ClassroomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "classroom_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	created, err := s.schedules.Create(r.Context(), schedule.Input{
		ClassroomID: req.ClassroomID,
		TeacherID:   claims.UserID,
		GroupID:     req.GroupID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapReservation(created))
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.schedules.Get(r.Context(), chi.URLParam(r, "reservationId"))
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapReservation(reservation))
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := s.schedules.ListClassroom(r.Context(), chi.URLParam(r, "classroomId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]reservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, mapReservation(reservation))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePatchReservation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	reservationID := chi.URLParam(r, "reservationId")

	var req patchReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	existing, err := s.schedules.Get(r.Context(), reservationID)
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	if !canManageReservation(claims, existing) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	// Re-targeting a reservation at a group needs scope over that group
	// too.
	if req.GroupID != nil && !auth.CanApprove(claims, *req.GroupID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	updated, err := s.schedules.Update(r.Context(), reservationID, schedule.Patch{
		GroupID:    req.GroupID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Recurrence: req.Recurrence,
	})
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapReservation(updated))
}

func (s *Server) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	reservationID := chi.URLParam(r, "reservationId")

	existing, err := s.schedules.Get(r.Context(), reservationID)
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	if !canManageReservation(claims, existing) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.schedules.Delete(r.Context(), reservationID); err != nil {
		s.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func canManageReservation(claims *auth.Claims, reservation model.Reservation) bool {
	if auth.IsAdmin(claims) {
		return true
	}
	return reservation.TeacherID == claims.UserID && auth.CanApprove(claims, reservation.GroupID)
}

// Policy

func (s *Server) handleGetEndpointPolicy(w http.ResponseWriter, r *http.Request) {
	effective, err := s.resolver.EffectiveGroup(r.Context(), chi.URLParam(r, "endpointId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "endpoint_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if effective == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, effective)
}

// writeScheduleError maps schedule failures onto the status codes the
// callers resolve against: invalid input carries the violated constraint,
// conflicts carry the clashing reservation.
func (s *Server) writeScheduleError(w http.ResponseWriter, err error) {
	var invalid *schedule.InvalidInputError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_schedule_input",
			"field":  invalid.Field,
			"reason": invalid.Reason,
		})
		return
	}
	var conflict *schedule.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "schedule_conflict",
			"conflict": mapReservation(conflict.Conflict),
		})
		return
	}
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reservation_not_found")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

func mapReservation(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		TeacherID:   r.TeacherID,
		GroupID:     r.GroupID,
		DayOfWeek:   r.DayOfWeek,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Recurrence:  r.Recurrence,
	}
}

func mapClassroom(c model.Classroom) classroomResponse {
	return classroomResponse{
		ID:              c.ID,
		Name:            c.Name,
		DefaultGroupID:  c.DefaultGroupID,
		OverrideGroupID: c.OverrideGroupID,
	}
}

// Helpers

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
