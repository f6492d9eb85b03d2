package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/auth"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
)

type stubRepo struct {
	users     []*models.User
	createErr error
	created   []*models.User
	passwords map[uuid.UUID]string
}

func newStubRepo(users ...*models.User) *stubRepo {
	return &stubRepo{users: users, passwords: map[uuid.UUID]string{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user.ID = uuid.New()
	s.users = append(s.users, user)
	s.created = append(s.created, user)
	return user, nil
}

func (s *stubRepo) SetPassword(_ context.Context, id uuid.UUID, hash string) error {
	s.passwords[id] = hash
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func testConfigs() (config.JWTConfig, config.PasswordConfig) {
	return config.JWTConfig{
			Secret:               "secret",
			Issuer:               "shopster",
			ExpirationMinutes:    30,
			ActivationTTLMinutes: 60,
		}, config.PasswordConfig{
			ArgonMemoryKB:    32768,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	jwtCfg, pwCfg := testConfigs()
	svc, err := NewService(repo, stubTx{}, jwtCfg, pwCfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestResolve_AuthenticatedUser(t *testing.T) {
	existing := &models.User{ID: uuid.New(), Username: "ivan", Email: "ivan@example.com"}
	svc := newTestService(t, newStubRepo(existing))

	res, err := svc.Resolve(context.Background(), nil, &existing.ID, "other@example.com", "Someone Else")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.User.ID != existing.ID {
		t.Fatal("expected the authenticated account back")
	}
	if res.Created {
		t.Fatal("authenticated resolution must not report a new account")
	}
}

func TestResolve_AuthenticatedUserGone(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ghost := uuid.New()

	_, err := svc.Resolve(context.Background(), nil, &ghost, "", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestResolve_GuestMatchesExistingEmail(t *testing.T) {
	existing := &models.User{ID: uuid.New(), Username: "anna", Email: "anna@example.com"}
	repo := newStubRepo(existing)
	svc := newTestService(t, repo)

	res, err := svc.Resolve(context.Background(), nil, nil, "  Anna@Example.COM ", "Anna K")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.User.ID != existing.ID || res.Created {
		t.Fatalf("expected existing account reuse, got %+v", res)
	}
	if len(repo.created) != 0 {
		t.Fatal("no account should be created")
	}
}

func TestResolve_GuestProvisionsAccount(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	res, err := svc.Resolve(context.Background(), nil, nil, "maria.petrova@example.com", "Maria Anna Petrova")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Created {
		t.Fatal("expected a provisioned account")
	}
	u := res.User
	if u.Username != "maria-petrova" {
		t.Fatalf("unexpected username %q", u.Username)
	}
	if u.FirstName != "Maria" || u.LastName != "Anna Petrova" {
		t.Fatalf("full name split incorrectly: %q %q", u.FirstName, u.LastName)
	}
	if u.PasswordHash != "" {
		t.Fatal("guest account must have no password")
	}
	if !u.IsActive {
		t.Fatal("guest account should be active")
	}
}

func TestResolve_GuestUsernameCollision(t *testing.T) {
	repo := newStubRepo(
		&models.User{ID: uuid.New(), Username: "pavel", Email: "pavel@first.example"},
		&models.User{ID: uuid.New(), Username: "pavel-2", Email: "pavel@second.example"},
	)
	svc := newTestService(t, repo)

	res, err := svc.Resolve(context.Background(), nil, nil, "pavel@third.example", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.User.Username != "pavel-3" {
		t.Fatalf("expected suffixed username pavel-3, got %q", res.User.Username)
	}
}

func TestResolve_GuestRequiresEmail(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.Resolve(context.Background(), nil, nil, "   ", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolve_ConcurrentInsertFallsBackToFetch(t *testing.T) {
	// Simulate a race: our insert hits the unique email index, and the
	// winner's row is visible on re-fetch.
	winner := &models.User{ID: uuid.New(), Username: "dmitry", Email: "dmitry@example.com"}
	repo := newStubRepo()
	repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "uniq_users_email"}
	svc := newTestService(t, repo)

	done := make(chan struct{})
	go func() {
		repo.users = append(repo.users, winner)
		close(done)
	}()
	<-done

	res, err := svc.Resolve(context.Background(), nil, nil, "dmitry@example.com", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.User.ID != winner.ID || res.Created {
		t.Fatalf("expected the winner's account, got %+v", res)
	}
}

func TestActivate(t *testing.T) {
	jwtCfg, _ := testConfigs()
	user := &models.User{ID: uuid.New(), Username: "guest", Email: "guest@example.com"}
	repo := newStubRepo(user)
	svc := newTestService(t, repo)

	token, err := auth.MintActivationToken(jwtCfg, time.Now().UTC(), user.ID, user.Email)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	activated, err := svc.Activate(context.Background(), token, "chosen-password")
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if repo.passwords[user.ID] == "" {
		t.Fatal("expected a stored password hash")
	}
	if !activated.HasUsableCredential() {
		t.Fatal("activated account should have a usable credential")
	}

	// Second activation attempt is rejected.
	_, err = svc.Activate(context.Background(), token, "other-password")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestActivate_RejectsBadToken(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.Activate(context.Background(), "garbage", "password")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSplitFullName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"", "", ""},
		{"Ivan", "Ivan", ""},
		{"Ivan Petrov", "Ivan", "Petrov"},
		{"  Anna  Maria   Lopez ", "Anna", "Maria Lopez"},
	}
	for _, tc := range cases {
		first, last := SplitFullName(tc.in)
		if first != tc.first || last != tc.last {
			t.Errorf("SplitFullName(%q) = %q/%q, want %q/%q", tc.in, first, last, tc.first, tc.last)
		}
	}
}
