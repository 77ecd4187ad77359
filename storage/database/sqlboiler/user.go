package boiledrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/user"
)

var userColumns = []string{"id", "username", "password_hash", "is_active", "is_admin", "created_at", "updated_at", "last_login"}

// userRow maps public.users; bound with sqlboiler's raw queries.
type userRow struct {
	ID           string    `boil:"id"`
	Username     string    `boil:"username"`
	PasswordHash []byte    `boil:"password_hash"`
	IsActive     bool      `boil:"is_active"`
	IsAdmin      bool      `boil:"is_admin"`
	CreatedAt    null.Time `boil:"created_at"`
	UpdatedAt    null.Time `boil:"updated_at"`
	LastLogin    null.Time `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		PasswordHash: usr.PasswordHash,
		IsActive:     usr.IsActive,
		IsAdmin:      usr.IsAdmin,
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(u userRow) user.User {
	return user.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.boil(usr)

	q := "INSERT INTO public.users (" + strings.Join(userColumns, ", ") + ") VALUES (" +
		strmangle.Placeholders(true, len(userColumns), 1, 1) + ")"
	_, err := queries.Raw(q, u.ID, u.Username, u.PasswordHash, u.IsActive, u.IsAdmin, u.CreatedAt, u.UpdatedAt, u.LastLogin).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	var u userRow
	q := "SELECT " + strings.Join(userColumns, ", ") + " FROM public.users WHERE username = $1"
	if err := queries.Raw(q, username).Bind(ctx, repo.getExec(exec), &u); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by username")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	u := repo.boil(usr)
	q := `UPDATE public.users
		SET password_hash = $2, is_active = $3, is_admin = $4, updated_at = $5, last_login = $6
		WHERE id = $1`
	res, err := queries.Raw(q, u.ID, u.PasswordHash, u.IsActive, u.IsAdmin, u.UpdatedAt, u.LastLogin).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
