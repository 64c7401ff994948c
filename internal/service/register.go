package service

import (
	"context"
	"errors"

	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/domain"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Terms    string
}

type RegisterResult struct {
	Success     bool                `json:"success"`
	FieldErrors map[string][]string `json:"errors,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// Register creates a regular account. The gateway only routes here when the
// site-wide allowReg flag is on; the duplicate-email check is repeated at the
// store by the unique index.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) RegisterResult {
	if fieldErrors := validateRegister(input, true); len(fieldErrors) > 0 {
		return RegisterResult{FieldErrors: fieldErrors}
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return RegisterResult{Message: MsgUserExists}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		s.log.Error().Err(err).Msg("register: user lookup failed")
		return RegisterResult{Message: MsgRegisterFailed}
	}

	user := &domain.User{
		Name:         &input.Name,
		Email:        input.Email,
		PasswordHash: auth.HashPassword(input.Password),
		Role:         domain.RoleUser,
		Terms:        "accept",
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.log.Error().Err(err).Msg("register: creating user")
		return RegisterResult{Message: MsgRegisterFailed}
	}

	return RegisterResult{Success: true}
}

// RegisterInit creates the first-run admin account. It refuses once any admin
// exists, so the bootstrap flow cannot be replayed.
func (s *AuthService) RegisterInit(ctx context.Context, input RegisterInput) RegisterResult {
	if fieldErrors := validateRegister(input, false); len(fieldErrors) > 0 {
		return RegisterResult{FieldErrors: fieldErrors}
	}

	exists, err := s.users.AdminExists(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("register init: admin lookup failed")
		return RegisterResult{Message: MsgInitFailed}
	}
	if exists {
		return RegisterResult{Message: MsgUserExists}
	}

	user := &domain.User{
		Name:         &input.Name,
		Email:        input.Email,
		PasswordHash: auth.HashPassword(input.Password),
		Role:         domain.RoleAdmin,
		Terms:        "accept",
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.log.Error().Err(err).Msg("register init: creating admin")
		return RegisterResult{Message: MsgInitFailed}
	}

	return RegisterResult{Success: true}
}

func validateRegister(input RegisterInput, requireTerms bool) map[string][]string {
	fieldErrors := make(map[string][]string)
	if input.Name == "" {
		fieldErrors["name"] = append(fieldErrors["name"], "Name is required.")
	}
	if !emailPattern.MatchString(input.Email) {
		fieldErrors["email"] = append(fieldErrors["email"], "Please enter a valid email address.")
	}
	if len(input.Password) < 8 {
		fieldErrors["password"] = append(fieldErrors["password"], "Password must be at least 8 characters long.")
	}
	if requireTerms && input.Terms == "" {
		fieldErrors["terms"] = append(fieldErrors["terms"], "You must accept the terms.")
	}
	return fieldErrors
}
