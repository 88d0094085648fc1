package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const (
	sessionColumns = `id::text, user_id::text, date, clock_in, clock_out, location_in, location_out,
		status_hint, total_hours, notes, created_at, updated_at`
	breakColumns = `id::text, session_id::text, user_id::text, break_start, break_end, break_type,
		total_break_hours, notes, created_at`

	openSessionIndex = "uq_attendance_sessions_open"
	openBreakIndex   = "uq_attendance_breaks_open"
)

type SessionRepositoryImpl struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{db: db}
}

// FindSessions implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) FindSessions(ctx context.Context, userIDs []string, start, end time.Time) ([]attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE user_id = ANY($1::uuid[]) AND date BETWEEN $2 AND $3
		ORDER BY clock_in, id
	`
	rows, err := q.Query(ctx, query, validUUIDs(userIDs), start, end)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]attendance.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}

	if err := r.attachBreaks(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindOpenSession implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) FindOpenSession(ctx context.Context, userID string) (attendance.Session, error) {
	if !isUUID(userID) {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE user_id = $1 AND clock_out IS NULL
	`
	s, err := scanSession(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, fmt.Errorf("get open session: %w", err)
	}

	sessions := []attendance.Session{s}
	if err := r.attachBreaks(ctx, sessions); err != nil {
		return attendance.Session{}, err
	}
	return sessions[0], nil
}

// CreateSession implements attendance.SessionRepository. The partial unique
// index on open sessions makes concurrent inserts for one user race-free.
func (r *SessionRepositoryImpl) CreateSession(ctx context.Context, n attendance.NewSession) (attendance.Session, error) {
	if !isUUID(n.UserID) {
		return attendance.Session{}, user.ErrUserNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_sessions (user_id, date, clock_in, location_in, status_hint, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	s, err := scanSession(q.QueryRow(ctx, query,
		n.UserID,
		n.Date,
		n.ClockIn,
		nullJSON(n.LocationIn),
		n.StatusHint,
		n.Notes,
	))
	if err != nil {
		switch code, constraint := pgCode(err); {
		case code == pgUniqueViolation && constraint == openSessionIndex:
			return attendance.Session{}, attendance.ErrOpenSessionExists
		case code == pgForeignKeyViolation:
			return attendance.Session{}, user.ErrUserNotFound
		}
		return attendance.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// CloseSession implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) CloseSession(ctx context.Context, c attendance.CloseSession) (attendance.Session, error) {
	if !isUUID(c.SessionID) {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	var closed attendance.Session

	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		query := `
			UPDATE attendance_sessions
			SET clock_out = $2, location_out = $3, status_hint = $4, total_hours = $5,
				notes = COALESCE($6, notes), updated_at = NOW()
			WHERE id = $1 AND clock_out IS NULL
			RETURNING ` + sessionColumns

		s, err := scanSession(q.QueryRow(ctx, query,
			c.SessionID,
			c.ClockOut,
			nullJSON(c.LocationOut),
			c.StatusHint,
			c.TotalHours,
			c.Notes,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendance.ErrSessionNotFound
			}
			return fmt.Errorf("close session: %w", err)
		}

		// An ongoing break ends with the session.
		_, err = q.Exec(ctx, `
			UPDATE attendance_breaks
			SET break_end = GREATEST($2::timestamptz, break_start),
				total_break_hours = EXTRACT(EPOCH FROM (GREATEST($2::timestamptz, break_start) - break_start)) / 3600.0
			WHERE session_id = $1 AND break_end IS NULL
		`, c.SessionID, c.ClockOut)
		if err != nil {
			return fmt.Errorf("end open break: %w", err)
		}

		sessions := []attendance.Session{s}
		if err := r.attachBreaks(ctx, sessions); err != nil {
			return err
		}
		closed = sessions[0]
		return nil
	})
	if err != nil {
		return attendance.Session{}, err
	}
	return closed, nil
}

// CountOpenSessions implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) CountOpenSessions(ctx context.Context) (int64, error) {
	q := GetQuerier(ctx, r.db)

	var n int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_sessions WHERE clock_out IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return n, nil
}

// FindOpenBreak implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) FindOpenBreak(ctx context.Context, sessionID string) (attendance.Break, error) {
	if !isUUID(sessionID) {
		return attendance.Break{}, attendance.ErrBreakNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + breakColumns + ` FROM attendance_breaks WHERE session_id = $1 AND break_end IS NULL`
	b, err := scanBreak(q.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Break{}, attendance.ErrBreakNotFound
		}
		return attendance.Break{}, fmt.Errorf("get open break: %w", err)
	}
	return b, nil
}

// CreateBreak implements attendance.SessionRepository. The session row is
// locked so a concurrent CloseSession cannot slip in between the check and
// the insert.
func (r *SessionRepositoryImpl) CreateBreak(ctx context.Context, n attendance.NewBreak) (attendance.Break, error) {
	if !isUUID(n.SessionID) {
		return attendance.Break{}, attendance.ErrSessionNotFound
	}
	var created attendance.Break

	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var open bool
		err := q.QueryRow(ctx, `
			SELECT clock_out IS NULL FROM attendance_sessions WHERE id = $1 FOR UPDATE
		`, n.SessionID).Scan(&open)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !open) {
			return attendance.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}

		query := `
			INSERT INTO attendance_breaks (session_id, user_id, break_start, break_type, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + breakColumns

		b, err := scanBreak(q.QueryRow(ctx, query, n.SessionID, n.UserID, n.BreakStart, n.BreakType, n.Notes))
		if err != nil {
			if code, constraint := pgCode(err); code == pgUniqueViolation && constraint == openBreakIndex {
				return attendance.ErrOpenBreakExists
			}
			return fmt.Errorf("create break: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		return attendance.Break{}, err
	}
	return created, nil
}

// EndBreak implements attendance.SessionRepository.
func (r *SessionRepositoryImpl) EndBreak(ctx context.Context, breakID string, end time.Time) (attendance.Break, error) {
	if !isUUID(breakID) {
		return attendance.Break{}, attendance.ErrBreakNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_breaks
		SET break_end = GREATEST($2::timestamptz, break_start),
			total_break_hours = EXTRACT(EPOCH FROM (GREATEST($2::timestamptz, break_start) - break_start)) / 3600.0
		WHERE id = $1 AND break_end IS NULL
		RETURNING ` + breakColumns

	b, err := scanBreak(q.QueryRow(ctx, query, breakID, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Break{}, attendance.ErrBreakNotFound
		}
		return attendance.Break{}, fmt.Errorf("end break: %w", err)
	}
	return b, nil
}

// ImportSession inserts a historical session with its breaks. Used for seeding.
func (r *SessionRepositoryImpl) ImportSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var id interface{}
		if s.ID != "" {
			id = s.ID
		}
		err := q.QueryRow(ctx, `
			INSERT INTO attendance_sessions (id, user_id, date, clock_in, clock_out, location_in, location_out, status_hint, total_hours, notes)
			VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id::text
		`, id, s.UserID, s.Date, s.ClockIn, s.ClockOut, nullJSON(s.LocationIn), nullJSON(s.LocationOut), s.StatusHint, s.TotalHours, s.Notes).Scan(&s.ID)
		if err != nil {
			if code, constraint := pgCode(err); code == pgUniqueViolation && constraint == openSessionIndex {
				return attendance.ErrOpenSessionExists
			}
			return fmt.Errorf("import session: %w", err)
		}

		for i := range s.Breaks {
			b := &s.Breaks[i]
			b.SessionID, b.UserID = s.ID, s.UserID
			err := q.QueryRow(ctx, `
				INSERT INTO attendance_breaks (session_id, user_id, break_start, break_end, break_type, total_break_hours, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id::text
			`, b.SessionID, b.UserID, b.BreakStart, b.BreakEnd, b.BreakType, b.TotalBreakHours, b.Notes).Scan(&b.ID)
			if err != nil {
				return fmt.Errorf("import break: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return attendance.Session{}, err
	}
	return s, nil
}

// attachBreaks loads breaks for sessions in one query, ordered by start.
func (r *SessionRepositoryImpl) attachBreaks(ctx context.Context, sessions []attendance.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	ids := make([]string, len(sessions))
	index := make(map[string]int, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
		index[s.ID] = i
	}

	query := `
		SELECT ` + breakColumns + `
		FROM attendance_breaks
		WHERE session_id = ANY($1::uuid[])
		ORDER BY break_start, id
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("find breaks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return fmt.Errorf("scan break: %w", err)
		}
		i := index[b.SessionID]
		sessions[i].Breaks = append(sessions[i].Breaks, b)
	}
	return rows.Err()
}

func scanSession(row pgx.Row) (attendance.Session, error) {
	var (
		s                       attendance.Session
		locationIn, locationOut []byte
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Date,
		&s.ClockIn,
		&s.ClockOut,
		&locationIn,
		&locationOut,
		&s.StatusHint,
		&s.TotalHours,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return attendance.Session{}, err
	}
	s.LocationIn = locationIn
	s.LocationOut = locationOut
	return s, nil
}

func scanBreak(row pgx.Row) (attendance.Break, error) {
	var b attendance.Break
	err := row.Scan(
		&b.ID,
		&b.SessionID,
		&b.UserID,
		&b.BreakStart,
		&b.BreakEnd,
		&b.BreakType,
		&b.TotalBreakHours,
		&b.Notes,
		&b.CreatedAt,
	)
	return b, err
}

var _ attendance.SessionRepository = (*SessionRepositoryImpl)(nil)
