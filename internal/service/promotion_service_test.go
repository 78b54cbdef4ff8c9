package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/models"
	"github.com/noah-isme/bjj-academy-api/internal/repository"
)

type mockPromotionRepo struct {
	promotions map[string]models.PromotionDetail
}

func (m *mockPromotionRepo) FindDetailByID(ctx context.Context, id string) (*models.PromotionDetail, error) {
	if p, ok := m.promotions[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPromotionRepo) List(ctx context.Context, filter models.PromotionFilter) ([]models.PromotionDetail, int, error) {
	var out []models.PromotionDetail
	for _, p := range m.promotions {
		if p.StudentAcademy != filter.AcademyID {
			continue
		}
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

// mockPromoStore records the writes issued inside the simulated transaction.
type mockPromoStore struct {
	inserted []models.Promotion
	ranks    map[string]models.Rank
	deleted  []string
}

func (m *mockPromoStore) InsertPromotion(ctx context.Context, promotion *models.Promotion) error {
	if promotion.ID == "" {
		promotion.ID = "new-promotion"
	}
	m.inserted = append(m.inserted, *promotion)
	return nil
}

func (m *mockPromoStore) UpdateUserRank(ctx context.Context, userID string, rank models.Rank) error {
	if m.ranks == nil {
		m.ranks = map[string]models.Rank{}
	}
	m.ranks[userID] = rank
	return nil
}

func (m *mockPromoStore) DeletePromotion(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPromoTx struct {
	store *mockPromoStore
}

func (m *mockPromoTx) Promote(ctx context.Context, fn func(store repository.PromotionStore) error) error {
	return fn(m.store)
}

func TestPromotionServiceCreateManual(t *testing.T) {
	store := &mockPromoStore{}
	users := &mockUserReader{users: map[string]models.User{"s1": whiteBeltStudent("s1")}}
	svc := NewPromotionService(&mockPromotionRepo{}, users, &mockPromoTx{store: store}, nil, validator.New(), zap.NewNop())

	promotion, err := svc.Create(context.Background(), instructorClaims(), CreatePromotionRequest{
		StudentID: "s1",
		ToBelt:    models.BeltWhite,
		ToStripe:  models.StripeThree,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BeltWhite, promotion.FromBelt)
	assert.Equal(t, models.StripeZero, promotion.FromStripe)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.Rank{Belt: models.BeltWhite, Stripe: models.StripeThree}, store.ranks["s1"])
}

func TestPromotionServiceCreateForbiddenForStudents(t *testing.T) {
	svc := NewPromotionService(&mockPromotionRepo{}, &mockUserReader{}, &mockPromoTx{store: &mockPromoStore{}}, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreatePromotionRequest{StudentID: "s1", ToBelt: models.BeltBlue})
	assert.Equal(t, 403, errStatus(t, err))
}

func TestPromotionServiceCreateRejectsInvalidStripe(t *testing.T) {
	users := &mockUserReader{users: map[string]models.User{"s1": whiteBeltStudent("s1")}}
	svc := NewPromotionService(&mockPromotionRepo{}, users, &mockPromoTx{store: &mockPromoStore{}}, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), instructorClaims(), CreatePromotionRequest{
		StudentID: "s1",
		ToBelt:    models.BeltBlue,
		ToStripe:  models.Stripe(7),
	})
	assert.Equal(t, 400, errStatus(t, err))
}

func TestPromotionServiceReverseRestoresRank(t *testing.T) {
	promotion := models.PromotionDetail{
		Promotion: models.Promotion{
			ID:         "p1",
			StudentID:  "s1",
			FromBelt:   models.BeltWhite,
			FromStripe: models.StripeZero,
			ToBelt:     models.BeltBlue,
			ToStripe:   models.StripeZero,
		},
		StudentAcademy: "acad-1",
	}
	store := &mockPromoStore{}
	svc := NewPromotionService(&mockPromotionRepo{promotions: map[string]models.PromotionDetail{"p1": promotion}}, &mockUserReader{}, &mockPromoTx{store: store}, nil, validator.New(), zap.NewNop())

	require.NoError(t, svc.Reverse(context.Background(), adminClaims(), "p1"))

	assert.Equal(t, models.Rank{Belt: models.BeltWhite, Stripe: models.StripeZero}, store.ranks["s1"])
	assert.Contains(t, store.deleted, "p1")
}

func TestPromotionServiceReverseRequiresAdmin(t *testing.T) {
	svc := NewPromotionService(&mockPromotionRepo{}, &mockUserReader{}, &mockPromoTx{store: &mockPromoStore{}}, nil, validator.New(), zap.NewNop())

	err := svc.Reverse(context.Background(), instructorClaims(), "p1")
	assert.Equal(t, 403, errStatus(t, err))
}

func TestPromotionServiceReverseCrossTenantForbidden(t *testing.T) {
	promotion := models.PromotionDetail{
		Promotion:      models.Promotion{ID: "p1", StudentID: "s1", FromBelt: models.BeltWhite},
		StudentAcademy: "acad-2",
	}
	store := &mockPromoStore{}
	svc := NewPromotionService(&mockPromotionRepo{promotions: map[string]models.PromotionDetail{"p1": promotion}}, &mockUserReader{}, &mockPromoTx{store: store}, nil, validator.New(), zap.NewNop())

	err := svc.Reverse(context.Background(), adminClaims(), "p1")
	assert.Equal(t, 403, errStatus(t, err))
	assert.Empty(t, store.deleted)
}

func TestPromotionServiceListScopesStudentsToThemselves(t *testing.T) {
	repo := &mockPromotionRepo{promotions: map[string]models.PromotionDetail{
		"p1": {Promotion: models.Promotion{ID: "p1", StudentID: "s1"}, StudentAcademy: "acad-1"},
		"p2": {Promotion: models.Promotion{ID: "p2", StudentID: "s2"}, StudentAcademy: "acad-1"},
	}}
	svc := NewPromotionService(repo, &mockUserReader{}, &mockPromoTx{store: &mockPromoStore{}}, nil, validator.New(), zap.NewNop())

	promotions, _, err := svc.List(context.Background(), studentClaims("s1"), models.PromotionFilter{})
	require.NoError(t, err)
	require.Len(t, promotions, 1)
	assert.Equal(t, "s1", promotions[0].StudentID)
}

func TestPromotionServiceGetHidesOtherStudents(t *testing.T) {
	repo := &mockPromotionRepo{promotions: map[string]models.PromotionDetail{
		"p1": {Promotion: models.Promotion{ID: "p1", StudentID: "s2"}, StudentAcademy: "acad-1"},
	}}
	svc := NewPromotionService(repo, &mockUserReader{}, &mockPromoTx{store: &mockPromoStore{}}, nil, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), studentClaims("s1"), "p1")
	assert.Equal(t, 404, errStatus(t, err))

	got, err := svc.Get(context.Background(), instructorClaims(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}
