package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), nextID: 1}
}

func (m *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (m *memoryRepo) ListUsers(ctx context.Context, companyID int64) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if companyID == 0 || u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateUser(ctx context.Context, u User) (int64, error) {
	id := m.nextID
	m.nextID++
	u.ID = id
	m.users[id] = u
	return id, nil
}

func (m *memoryRepo) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Role != "" {
		u.Role = in.Role
	}
	u.GlobalOrder = in.GlobalOrder
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	m.users[id] = u
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:     "Ana@Acme.PE",
		Name:      " Ana Torres ",
		Role:      rbac.RoleSubmitter,
		CompanyID: 1,
		Password:  "secret-pass",
	})
	require.NoError(t, err)
	require.Equal(t, "ana@acme.pe", user.Email)
	require.Equal(t, "Ana Torres", user.Name)
	require.True(t, user.IsActive)
	require.NotEqual(t, "secret-pass", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-pass")))
}

func TestCreateUserCollectsAllViolations(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:    "not-an-email",
		Role:     rbac.Role("CEO"),
		Password: "tiny",
	})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 4)
}

func TestCreateUserGlobalApproverNeedsOrder(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:    "gerente@acme.pe",
		Name:     "Gerente General",
		Role:     rbac.RoleGlobalApprover,
		Password: "secret-pass",
	})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "global_order", verr.Violations[0].Field)

	order := 2
	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:       "gerente@acme.pe",
		Name:        "Gerente General",
		Role:        rbac.RoleGlobalApprover,
		GlobalOrder: &order,
		Password:    "secret-pass",
	})
	require.NoError(t, err)
	require.NotNil(t, user.GlobalOrder)
	require.Equal(t, 2, *user.GlobalOrder)
}

func TestUpdateUserRejectsUnknownRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{Role: rbac.Role("INTERN")})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
}
