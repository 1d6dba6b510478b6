package service

import (
	"context"
	"errors"
	"sync"

	"voicelink/internal/apperr"
	"voicelink/internal/domain"
	"voicelink/internal/repository"
)

// Client-facing messages. The frontend shows them verbatim.
const (
	msgNameRequired       = "Name ist erforderlich"
	msgPasswordTooShort   = "Passwort muss mindestens 6 Zeichen lang sein"
	msgInvalidEmail       = "Ungültige E-Mail-Adresse"
	msgEmailTaken         = "E-Mail-Adresse ist bereits registriert"
	msgCreateFailed       = "Fehler beim Erstellen des Benutzerkontos"
	msgInvalidCredentials = "E-Mail oder Passwort ist falsch"
	msgUserNotFound       = "Benutzer nicht gefunden"
	msgDeleteFailed       = "Fehler beim Löschen des Benutzers"
	msgUnexpected         = "Ein unerwarteter Fehler ist aufgetreten"
)

// PasswordHasher turns plaintext passwords into one-way hashes and checks them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// UserService describes user lifecycle operations. Every error it returns is
// an *apperr.Error.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	users  repository.UserRepository
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
	}
}

func (s *userService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = NormalizeName(name)
	email = NormalizeEmail(email)

	if name == "" {
		return nil, apperr.New(apperr.KindValidation, msgNameRequired)
	}
	if !ValidPassword(password) {
		return nil, apperr.New(apperr.KindValidation, msgPasswordTooShort)
	}
	if !ValidEmailFormat(email) {
		return nil, apperr.New(apperr.KindValidation, msgInvalidEmail)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStore, msgCreateFailed)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.Wrap(err, apperr.KindDuplicateEmail, msgEmailTaken)
		}
		return nil, apperr.Wrap(err, apperr.KindStore, msgCreateFailed)
	}

	return sanitizeUser(user), nil
}

// Authenticate answers unknown emails and wrong passwords identically, and
// runs a hash comparison on both paths.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(s.dummy(), password)
			return nil, apperr.New(apperr.KindAuthentication, msgInvalidCredentials)
		}
		return nil, apperr.Wrap(err, apperr.KindStore, msgUnexpected)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, apperr.New(apperr.KindAuthentication, msgInvalidCredentials)
	}

	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStore, msgUnexpected)
	}
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return sanitizeUser(user), nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, lookupError(err)
	}
	return sanitizeUser(user), nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Wrap(err, apperr.KindNotFound, msgUserNotFound)
		}
		return apperr.Wrap(err, apperr.KindStore, msgDeleteFailed)
	}
	return nil
}

func (s *userService) dummy() string {
	s.dummyOnce.Do(func() {
		// comparing against a throwaway hash costs the same as a real check
		if h, err := s.hasher.Hash("voicelink-dummy-password"); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(err, apperr.KindNotFound, msgUserNotFound)
	}
	return apperr.Wrap(err, apperr.KindStore, msgUnexpected)
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
