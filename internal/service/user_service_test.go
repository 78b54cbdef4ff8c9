package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

type mockUsersRepo struct {
	users map[string]models.User
}

func (m *mockUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUsersRepo) List(ctx context.Context, academyID string, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if u.AcademyID == academyID {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func TestUserServiceListForbiddenForStudents(t *testing.T) {
	svc := NewUserService(&mockUsersRepo{}, zap.NewNop())

	_, _, err := svc.List(context.Background(), studentClaims("s1"), models.UserFilter{})
	assert.Equal(t, 403, errStatus(t, err))
}

func TestUserServiceListScopedToAcademy(t *testing.T) {
	other := whiteBeltStudent("x1")
	other.AcademyID = "acad-2"
	repo := &mockUsersRepo{users: map[string]models.User{
		"s1": whiteBeltStudent("s1"),
		"x1": other,
	}}
	svc := NewUserService(repo, zap.NewNop())

	users, pagination, err := svc.List(context.Background(), instructorClaims(), models.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "s1", users[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceGetSelf(t *testing.T) {
	repo := &mockUsersRepo{users: map[string]models.User{"s1": whiteBeltStudent("s1"), "s2": whiteBeltStudent("s2")}}
	svc := NewUserService(repo, zap.NewNop())

	user, err := svc.Get(context.Background(), studentClaims("s1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", user.ID)

	_, err = svc.Get(context.Background(), studentClaims("s1"), "s2")
	assert.Equal(t, 404, errStatus(t, err))
}

func TestUserServiceGetCrossTenantHidden(t *testing.T) {
	other := whiteBeltStudent("x1")
	other.AcademyID = "acad-2"
	repo := &mockUsersRepo{users: map[string]models.User{"x1": other}}
	svc := NewUserService(repo, zap.NewNop())

	_, err := svc.Get(context.Background(), adminClaims(), "x1")
	assert.Equal(t, 404, errStatus(t, err))
}
