package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balejosg/openpath/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Users

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt)
	return user, mapNoRows(err)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt)
	return user, mapNoRows(err)
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt, user.UpdatedAt)
	return err
}

// Role assignments

// GetActiveRoles returns the user's non-revoked assignments in creation
// order. The result is the role snapshot embedded into issued tokens.
func (s *Store) GetActiveRoles(ctx context.Context, userID string) ([]model.RoleAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, role, group_ids, created_by, created_at, updated_at, revoked_at
		FROM role_assignments
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.RoleAssignment
	for rows.Next() {
		var a model.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Role, &a.GroupIDs, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.RevokedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *Store) CreateRoleAssignment(ctx context.Context, a model.RoleAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_assignments (id, user_id, role, group_ids, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.UserID, a.Role, a.GroupIDs, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) RevokeRoleAssignment(ctx context.Context, assignmentID string, revokedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE role_assignments SET revoked_at = $1, updated_at = $1 WHERE id = $2 AND revoked_at IS NULL
	`, revokedAt, assignmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh sessions

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_token_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, mapNoRows(err)
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_token_sessions SET revoked_at = $1 WHERE id = $2`, revokedAt, sessionID)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, revokedAt, userID)
	return err
}

// Groups

func (s *Store) CreateGroup(ctx context.Context, group model.Group) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, name, created_at) VALUES ($1, $2, $3)
	`, group.ID, group.Name, group.CreatedAt)
	return err
}

func (s *Store) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Classrooms and endpoints

func (s *Store) CreateClassroom(ctx context.Context, classroom model.Classroom) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO classrooms (id, name, default_group_id, override_group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, classroom.ID, classroom.Name, classroom.DefaultGroupID, classroom.OverrideGroupID, classroom.CreatedAt, classroom.UpdatedAt)
	return err
}

func (s *Store) GetClassroom(ctx context.Context, classroomID string) (model.Classroom, error) {
	var c model.Classroom
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, default_group_id, override_group_id, created_at, updated_at
		FROM classrooms
		WHERE id = $1
	`, classroomID)
	err := row.Scan(&c.ID, &c.Name, &c.DefaultGroupID, &c.OverrideGroupID, &c.CreatedAt, &c.UpdatedAt)
	return c, mapNoRows(err)
}

// DeleteClassroom removes the classroom; reservations and endpoints go
// with it via ON DELETE CASCADE.
func (s *Store) DeleteClassroom(ctx context.Context, classroomID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM classrooms WHERE id = $1`, classroomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOverrideGroup sets or clears (nil) the manual override that beats
// any schedule.
func (s *Store) SetOverrideGroup(ctx context.Context, classroomID string, groupID *string, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE classrooms SET override_group_id = $1, updated_at = $2 WHERE id = $3
	`, groupID, updatedAt, classroomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetDefaultGroup(ctx context.Context, classroomID string, groupID *string, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE classrooms SET default_group_id = $1, updated_at = $2 WHERE id = $3
	`, groupID, updatedAt, classroomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateEndpoint(ctx context.Context, endpoint model.Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endpoints (id, classroom_id, hostname, created_at)
		VALUES ($1, $2, $3, $4)
	`, endpoint.ID, endpoint.ClassroomID, endpoint.Hostname, endpoint.CreatedAt)
	return err
}

// EndpointClassroom resolves an endpoint straight to its classroom; the
// single query the policy resolver needs.
func (s *Store) EndpointClassroom(ctx context.Context, endpointID string) (model.Classroom, error) {
	var c model.Classroom
	row := s.pool.QueryRow(ctx, `
		SELECT c.id, c.name, c.default_group_id, c.override_group_id, c.created_at, c.updated_at
		FROM endpoints e
		JOIN classrooms c ON c.id = e.classroom_id
		WHERE e.id = $1
	`, endpointID)
	err := row.Scan(&c.ID, &c.Name, &c.DefaultGroupID, &c.OverrideGroupID, &c.CreatedAt, &c.UpdatedAt)
	return c, mapNoRows(err)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
