package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
)

var (
	// repository errors
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")

	// user facing errors
	ErrInvalidCredentials = core.NewUnauthorizedError("Invalid credentials")
	ErrUnknownUser        = core.NewUnauthorizedError("User not found")
	ErrWrongPassword      = core.NewUnauthorizedError("Current password is incorrect")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, user User, exec ...core.DBExecutor) (User, error)
		GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		// UpdateUser persists every mutable field: password hash, flags, timestamps.
		UpdateUser(ctx context.Context, user User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		Authenticate(ctx context.Context, username, password string) (User, error)
		ChangePassword(ctx context.Context, cp ChangePassword) error
		AddOrUpdate(ctx context.Context, nu NewUser) (usr User, created bool, err error)
		GetByUsername(ctx context.Context, username string) (User, error)
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Authenticate(ctx context.Context, username, password string) (User, error) {
	usr, err := svc.repo.GetUserByUsername(ctx, core.CleanString(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsActive || usr.CheckPassword(password) != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword expects an already validated ChangePassword.
func (svc *service) ChangePassword(ctx context.Context, cp ChangePassword) error {
	usr, err := svc.repo.GetUserByUsername(ctx, cp.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	if usr.CheckPassword(cp.OldPassword) != nil {
		return ErrWrongPassword
	}

	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// AddOrUpdate creates the user or, when it exists, resets its password and admin flag.
func (svc *service) AddOrUpdate(ctx context.Context, nu NewUser) (User, bool, error) {
	now := time.Now().UTC()
	usr, err := svc.repo.GetUserByUsername(ctx, nu.Username)
	switch {
	case errors.Is(err, ErrNotFound):
		usr = User{
			Username:  nu.Username,
			IsActive:  true,
			IsAdmin:   nu.IsAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, false, errors.Wrap(err, "hashing password")
		}
		usr, err = svc.repo.CreateUser(ctx, usr)
		return usr, err == nil, err
	case err != nil:
		return User{}, false, err
	}

	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, false, errors.Wrap(err, "hashing password")
	}
	usr.IsActive = true
	usr.IsAdmin = usr.IsAdmin || nu.IsAdmin
	usr.UpdatedAt = now
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, false, err
}

func (svc *service) GetByUsername(ctx context.Context, username string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(username))
}
