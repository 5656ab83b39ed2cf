package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"symposium/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users  map[string]store.User
	nextID int64
	err    error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]store.User)}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if m.err != nil {
		return store.User{}, m.err
	}
	if user, ok := m.users[strings.ToLower(email)]; ok {
		return user, nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) CreateUser(ctx context.Context, email, passwordHash string) (store.User, error) {
	if _, ok := m.users[strings.ToLower(email)]; ok {
		return store.User{}, store.ErrConflict
	}
	m.nextID++
	user := store.User{ID: m.nextID, Email: email, PasswordHash: passwordHash}
	m.users[strings.ToLower(email)] = user
	return user, nil
}

func newTestService() (*Service, *mockUserStore) {
	users := newMockUserStore()
	return NewService(users).WithCost(bcrypt.MinCost), users
}

func TestRegister(t *testing.T) {
	svc, users := newTestService()

	user, err := svc.Register(context.Background(), " ada@example.com ", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == 0 || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	stored := users.users["ada@example.com"]
	if stored.PasswordHash == "secret1" {
		t.Fatal("password stored in clear text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "secret1", ErrMissingCredentials},
		{"missing password", "ada@example.com", "", ErrMissingCredentials},
		{"short password", "ada@example.com", "12345", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("Register() error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := svc.Register(ctx, "ada@example.com", "123456"); err != nil {
		t.Fatalf("six characters should be accepted: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ada@example.com", "secret1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "ADA@example.com", "secret2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("Login returned user %d, want %d", user.ID, registered.ID)
	}

	if _, err := svc.Login(ctx, "ada@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("blank credentials: got %v", err)
	}
}

func TestLoginStorageFailure(t *testing.T) {
	svc, users := newTestService()
	users.err = errors.New("connection refused")

	_, err := svc.Login(context.Background(), "ada@example.com", "secret1")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected a storage error, got %v", err)
	}
}
