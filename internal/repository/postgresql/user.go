package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, name, email, role, department, position, manager_id::text, is_active`

type UserRepositoryImpl struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// GetByID implements user.UserRepository.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrUserNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Find implements user.UserRepository.
func (r *UserRepositoryImpl) Find(ctx context.Context, filter user.Filter) ([]user.User, error) {
	q := GetQuerier(ctx, r.db)

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d::uuid[])", argIdx))
		args = append(args, validUUIDs(filter.IDs))
		argIdx++
	}
	if filter.ManagerID != nil {
		if !isUUID(*filter.ManagerID) {
			return []user.User{}, nil
		}
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", argIdx))
		args = append(args, *filter.ManagerID)
		argIdx++
	}
	if filter.Department != nil {
		if *filter.Department == user.UnassignedDepartment {
			conditions = append(conditions, "(department IS NULL OR TRIM(department) = '')")
		} else {
			conditions = append(conditions, fmt.Sprintf("department = $%d", argIdx))
			args = append(args, *filter.Department)
			argIdx++
		}
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY name, id`, userColumns, strings.Join(conditions, " AND "))
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a user and returns it with its generated id. Used for seeding.
func (r *UserRepositoryImpl) Create(ctx context.Context, u user.User) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	var id interface{}
	if u.ID != "" {
		id = u.ID
	}
	query := `
		INSERT INTO users (id, name, email, role, department, position, manager_id, is_active)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7::uuid, $8)
		RETURNING id::text
	`
	if err := q.QueryRow(ctx, query, id, u.Name, u.Email, u.Role, u.Department, u.Position, u.ManagerID, u.IsActive).Scan(&u.ID); err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.Department,
		&u.Position,
		&u.ManagerID,
		&u.IsActive,
	)
	return u, err
}

var _ user.UserRepository = (*UserRepositoryImpl)(nil)
