package schedule

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balejosg/openpath/internal/db"
	"github.com/balejosg/openpath/internal/model"
)

// PostgresStore serializes conflicting writers with an advisory
// transaction lock per classroom+day, so two concurrent inserts for
// overlapping windows cannot both pass the conflict check. The
// reservations table additionally carries an EXCLUDE constraint as a
// backstop against writers that bypass this store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const reservationColumns = `id, classroom_id, teacher_id, group_id, day_of_week, start_time, end_time, recurrence, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, r model.Reservation) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockWindow(ctx, tx, r.ClassroomID, r.DayOfWeek); err != nil {
			return err
		}
		existing, err := listDayTx(ctx, tx, r.ClassroomID, r.DayOfWeek)
		if err != nil {
			return err
		}
		if conflict := FindConflict(existing, r.StartTime, r.EndTime, ""); conflict != nil {
			return &ConflictError{Conflict: *conflict}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.ID, r.ClassroomID, r.TeacherID, r.GroupID, r.DayOfWeek, r.StartTime, r.EndTime, r.Recurrence, r.CreatedAt, r.UpdatedAt)
		return err
	})
	return s.mapExclusion(ctx, err, r, "")
}

func (s *PostgresStore) Update(ctx context.Context, r model.Reservation) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockWindow(ctx, tx, r.ClassroomID, r.DayOfWeek); err != nil {
			return err
		}
		existing, err := listDayTx(ctx, tx, r.ClassroomID, r.DayOfWeek)
		if err != nil {
			return err
		}
		if conflict := FindConflict(existing, r.StartTime, r.EndTime, r.ID); conflict != nil {
			return &ConflictError{Conflict: *conflict}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE reservations
			SET classroom_id = $2, teacher_id = $3, group_id = $4, day_of_week = $5,
			    start_time = $6, end_time = $7, recurrence = $8, updated_at = $9
			WHERE id = $1
		`, r.ID, r.ClassroomID, r.TeacherID, r.GroupID, r.DayOfWeek, r.StartTime, r.EndTime, r.Recurrence, r.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	return s.mapExclusion(ctx, err, r, r.ID)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	reservation, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return reservation, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListClassroom(ctx context.Context, classroomID string) ([]model.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE classroom_id = $1
		ORDER BY day_of_week, start_time
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *PostgresStore) ListClassroomDay(ctx context.Context, classroomID string, day int) ([]model.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE classroom_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`, classroomID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *PostgresStore) ActiveReservation(ctx context.Context, classroomID string, day int, clock string) (*model.Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE classroom_id = $1 AND day_of_week = $2 AND start_time <= $3 AND $3 < end_time
		ORDER BY start_time
		LIMIT 1
	`, classroomID, day, clock)
	reservation, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// mapExclusion converts a 23P01 exclusion violation (a writer that raced
// past the advisory lock, e.g. direct SQL) into the same ConflictError the
// pre-check produces, re-reading the clashing row outside the failed
// transaction.
func (s *PostgresStore) mapExclusion(ctx context.Context, err error, r model.Reservation, excludeID string) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) || pgErr.Code != "23P01" {
		return err
	}
	existing, listErr := s.ListClassroomDay(ctx, r.ClassroomID, r.DayOfWeek)
	if listErr == nil {
		if conflict := FindConflict(existing, r.StartTime, r.EndTime, excludeID); conflict != nil {
			return &ConflictError{Conflict: *conflict}
		}
	}
	return &ConflictError{Conflict: model.Reservation{ClassroomID: r.ClassroomID, DayOfWeek: r.DayOfWeek}}
}

func lockWindow(ctx context.Context, tx pgx.Tx, classroomID string, day int) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2::text))`, classroomID, day)
	return err
}

func listDayTx(ctx context.Context, tx pgx.Tx, classroomID string, day int) ([]model.Reservation, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE classroom_id = $1 AND day_of_week = $2
	`, classroomID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(&r.ID, &r.ClassroomID, &r.TeacherID, &r.GroupID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.Recurrence, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func collectReservations(rows pgx.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
