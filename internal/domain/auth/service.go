package auth

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Service checks the shared admin password. There are no user accounts: a
// successful login upgrades the caller's session to admin.
type Service struct {
	hash    string
	limiter AttemptLimiter
}

// NewService hashes adminPassword once at startup. An empty password
// disables admin login.
func NewService(adminPassword string, limiter AttemptLimiter) (*Service, error) {
	s := &Service{limiter: limiter}
	if adminPassword == "" {
		log.Warn("ADMIN_PASSWORD is not set, admin login disabled")
		return s, nil
	}
	hash, err := passwordHash(adminPassword)
	if err != nil {
		return nil, err
	}
	s.hash = hash
	return s, nil
}

// Login verifies password for the client identified by clientKey. Every
// attempt counts against the client's limit; success clears it.
func (s *Service) Login(clientKey, password string) error {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		log.WithField("client", clientKey).Warn("admin login rate limited")
		return ErrRateLimitExceeded
	}
	if s.hash == "" {
		return ErrLoginDisabled
	}

	if err := CheckPassword(password, s.hash); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.WithField("client", clientKey).Warn("admin login failed")
			return ErrInvalidCredentials
		}
		return err
	}

	if s.limiter != nil {
		s.limiter.Reset(clientKey)
	}
	log.WithField("client", clientKey).Info("admin logged in")
	return nil
}
