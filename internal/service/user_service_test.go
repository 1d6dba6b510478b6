package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"voicelink/internal/apperr"
	"voicelink/internal/domain"
	"voicelink/internal/repository"
	"voicelink/internal/repository/sqlstore"
	"voicelink/internal/security"
	"voicelink/internal/service"
)

func newStore(t *testing.T) repository.UserRepository {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.Open(ctx, "sqlite://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.Migrate(ctx, db, nil))
	return sqlstore.NewUserRepository(db)
}

func newService(t *testing.T) (service.UserService, repository.UserRepository) {
	t.Helper()
	repo := newStore(t)
	return service.NewUserService(repo, security.NewPasswordHasher(bcrypt.MinCost)), repo
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind)
	return ae
}

func TestRegister_TwoUsers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	b, err := svc.Register(ctx, "Bob", "bob@example.com", "secret2")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	for _, u := range []*domain.User{a, b} {
		got, err := svc.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)
	}
}

func TestRegister_NormalizesInput(t *testing.T) {
	svc, _ := newService(t)

	u, err := svc.Register(context.Background(), "  Alice  ", "Alice@Example.com", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Empty(t, u.PasswordHash, "hash must not leave the service")
	assert.False(t, u.CreatedAt.IsZero())
}

func TestRegister_DuplicateEmailAnyCase(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "A@x.com", "abcdef")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "B", "a@x.com", "abcdef")
	ae := requireKind(t, err, apperr.KindDuplicateEmail)
	assert.Equal(t, "E-Mail-Adresse ist bereits registriert", ae.Message)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantMsg  string
	}{
		{name: "blank name", userName: "   ", email: "a@x.com", password: "abcdef", wantMsg: "Name ist erforderlich"},
		{name: "short password", userName: "A", email: "a@x.com", password: "abc", wantMsg: "Passwort muss mindestens 6 Zeichen lang sein"},
		{name: "bad email", userName: "A", email: "a@x", password: "abcdef", wantMsg: "Ungültige E-Mail-Adresse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)

			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			ae := requireKind(t, err, apperr.KindValidation)
			assert.Equal(t, tt.wantMsg, ae.Message)

			users, err := repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}

func TestRegister_MinimumPasswordLength(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Register(context.Background(), "A", "a@x.com", "abcdef")
	require.NoError(t, err)
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "A", "a@x.com", "abcdef")
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "abcdef", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("abcdef")))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "abcdef")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ALICE@example.com", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)
	assert.Empty(t, u.PasswordHash)

	_, wrongPw := svc.Authenticate(ctx, "alice@example.com", "abcdeg")
	wrong := requireKind(t, wrongPw, apperr.KindAuthentication)

	_, unknownEmail := svc.Authenticate(ctx, "nobody@example.com", "abcdef")
	unknown := requireKind(t, unknownEmail, apperr.KindAuthentication)

	assert.Equal(t, "E-Mail oder Passwort ist falsch", wrong.Message)
	assert.Equal(t, wrong.Message, unknown.Message)
}

func TestGetByEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Carol", "carol@example.com", "abcdef")
	require.NoError(t, err)

	got, err := svc.GetByEmail(ctx, "Carol@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetByEmail(ctx, "missing@example.com")
	ae := requireKind(t, err, apperr.KindNotFound)
	assert.Equal(t, "Benutzer nicht gefunden", ae.Message)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	requireKind(t, svc.Delete(ctx, 12345), apperr.KindNotFound)

	u, err := svc.Register(ctx, "Dave", "dave@example.com", "abcdef")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, u.ID))

	_, err = svc.GetByID(ctx, u.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	repo := newStore(t)
	svc := service.NewUserService(repo, security.NewPasswordHasher(bcrypt.MinCost))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Insert(ctx, &domain.User{
			Name:         name,
			Email:        name + "@example.com",
			PasswordHash: "h",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "third", users[0].Name)
	assert.Equal(t, "second", users[1].Name)
	assert.Equal(t, "first", users[2].Name)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

// fakeUsersRepo lets tests inject store failures.
type fakeUsersRepo struct {
	insertFn      func(ctx context.Context, u *domain.User) error
	findByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	listFn        func(ctx context.Context) ([]domain.User, error)
	deleteFn      func(ctx context.Context, id int64) error
}

func (f *fakeUsersRepo) Insert(ctx context.Context, u *domain.User) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, u)
	}
	return nil
}

func (f *fakeUsersRepo) FindByID(context.Context, int64) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if f.findByEmailFn != nil {
		return f.findByEmailFn(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]domain.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func TestStoreFailuresAreClassified(t *testing.T) {
	dbDown := errors.New("db down")
	repo := &fakeUsersRepo{
		insertFn:      func(context.Context, *domain.User) error { return dbDown },
		findByEmailFn: func(context.Context, string) (*domain.User, error) { return nil, dbDown },
		listFn:        func(context.Context) ([]domain.User, error) { return nil, dbDown },
		deleteFn:      func(context.Context, int64) error { return dbDown },
	}
	svc := service.NewUserService(repo, security.NewPasswordHasher(bcrypt.MinCost))
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "abcdef")
	ae := requireKind(t, err, apperr.KindStore)
	assert.Equal(t, "Fehler beim Erstellen des Benutzerkontos", ae.Message)
	assert.ErrorIs(t, err, dbDown)

	_, err = svc.Authenticate(ctx, "a@x.com", "abcdef")
	requireKind(t, err, apperr.KindStore)

	_, err = svc.List(ctx)
	requireKind(t, err, apperr.KindStore)

	ae = requireKind(t, svc.Delete(ctx, 1), apperr.KindStore)
	assert.Equal(t, "Fehler beim Löschen des Benutzers", ae.Message)
}
