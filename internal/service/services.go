package service

import (
	"github.com/mpetrov/pinwall/internal/config"
	"github.com/mpetrov/pinwall/internal/repository"
	"github.com/rs/zerolog"
)

type Services struct {
	Auth    *AuthService
	Session *SessionService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	sessions := NewSessionService(repos.Session, repos.User, log)
	return &Services{
		Auth:    NewAuthService(repos, sessions, cfg, log),
		Session: sessions,
	}
}
