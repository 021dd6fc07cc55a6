package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
	"scriptor/pkg/logger"
)

// PasswordMinLength applies to SetPassword, not to login checks.
const PasswordMinLength = 8

// Service verifies credentials against the user object of the bound
// database. It holds no state of its own; every call works on the handle
// it is given.
type Service struct {
	jwt *JWTService
	log *logger.Logger
}

// NewService creates the auth service.
func NewService(jwt *JWTService) *Service {
	return &Service{
		jwt: jwt,
		log: logger.Default().WithComponent("auth"),
	}
}

// Authenticate checks login and password against the handle's database.
// Failures are reported uniformly so callers cannot probe which logins
// exist.
func (s *Service) Authenticate(ctx context.Context, e *env.Env, login, password string) (appctx.Identity, error) {
	denied := apperror.NewUnauthorized("invalid credentials")

	users, err := e.Lookup(model.ObjectUser)
	if err != nil {
		return appctx.Identity{}, apperror.NewInternal(err)
	}

	rec, err := users.Read(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return appctx.Identity{}, denied
		}
		return appctx.Identity{}, err
	}

	if active, _ := rec["active"].(bool); !active {
		s.log.Infow("login attempt for inactive user", "login", login)
		return appctx.Identity{}, denied
	}

	hash, _ := rec["password_hash"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return appctx.Identity{}, denied
	}

	uid, _ := rec["id"].(int64)
	admin, _ := rec["admin"].(bool)
	return appctx.Identity{UserID: uid, Login: login, Admin: admin}, nil
}

// Login authenticates and issues a token bound to the handle's database.
func (s *Service) Login(ctx context.Context, e *env.Env, login, password string) (string, appctx.Identity, error) {
	id, err := s.Authenticate(ctx, e, login, password)
	if err != nil {
		return "", appctx.Identity{}, err
	}
	token, _, err := s.jwt.Generate(id, e.Database())
	if err != nil {
		return "", appctx.Identity{}, apperror.NewInternal(err)
	}
	return token, id, nil
}

// SetPassword hashes and stores a new password for login, creating the
// user when absent.
func (s *Service) SetPassword(ctx context.Context, e *env.Env, login, password string) error {
	if len(password) < PasswordMinLength {
		return apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", PasswordMinLength),
		).WithDetail("field", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hash password: %w", err))
	}

	users, err := e.Lookup(model.ObjectUser)
	if err != nil {
		return apperror.NewInternal(err)
	}
	return users.Write(ctx, login, model.Record{"password_hash": string(hash)})
}
