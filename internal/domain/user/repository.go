package user

import "context"

// Filter narrows FindUsers. Zero-valued fields are ignored.
type Filter struct {
	IDs        []string
	ManagerID  *string
	Department *string
	ActiveOnly bool
}

type UserRepository interface {
	// GetByID returns ErrUserNotFound when no user matches.
	GetByID(ctx context.Context, id string) (User, error)

	// Find returns users matching the filter, ordered by name then id.
	Find(ctx context.Context, filter Filter) ([]User, error)
}
