package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/models"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
)

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, AcademyID: "acad-1"}
}

func instructorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor, AcademyID: "acad-1"}
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent, AcademyID: "acad-1", Belt: models.BeltWhite}
}

func errStatus(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Status
}

type mockExamRepo struct {
	exams   map[string]models.Exam
	created *models.Exam
	updated *models.Exam
	deleted []string
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.exams[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamRepo) List(ctx context.Context, academyID string, filter models.ExamFilter) ([]models.ExamDetail, int, error) {
	var out []models.ExamDetail
	for _, e := range m.exams {
		if e.AcademyID == academyID {
			out = append(out, models.ExamDetail{Exam: e})
		}
	}
	return out, len(out), nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if m.exams == nil {
		m.exams = make(map[string]models.Exam)
	}
	if exam.ID == "" {
		exam.ID = "new-exam"
	}
	m.exams[exam.ID] = *exam
	m.created = exam
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	m.exams[exam.ID] = *exam
	m.updated = exam
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, id string) error {
	delete(m.exams, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func scheduledExam(id string) models.Exam {
	return models.Exam{
		ID:        id,
		Title:     "Examen de cinturon azul",
		Date:      time.Now().Add(48 * time.Hour),
		BeltFrom:  models.BeltWhite,
		BeltTo:    models.BeltBlue,
		AcademyID: "acad-1",
		Status:    models.ExamStatusScheduled,
	}
}

func TestExamServiceCreate(t *testing.T) {
	repo := &mockExamRepo{}
	svc := NewExamService(repo, validator.New(), zap.NewNop())

	exam, err := svc.Create(context.Background(), instructorClaims(), CreateExamRequest{
		Title:    "Examen de cinturon azul",
		Date:     time.Now().Add(48 * time.Hour),
		BeltFrom: models.BeltWhite,
		BeltTo:   models.BeltBlue,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusScheduled, exam.Status)
	assert.Equal(t, "acad-1", exam.AcademyID)
	assert.NotNil(t, repo.created)
}

func TestExamServiceCreateRejectsNonAscendingBelts(t *testing.T) {
	svc := NewExamService(&mockExamRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), instructorClaims(), CreateExamRequest{
		Title:    "Examen invalido",
		Date:     time.Now(),
		BeltFrom: models.BeltBlue,
		BeltTo:   models.BeltBlue,
	})
	assert.Equal(t, 400, errStatus(t, err))
}

func TestExamServiceCreateForbiddenForStudents(t *testing.T) {
	svc := NewExamService(&mockExamRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateExamRequest{
		Title:    "Examen",
		Date:     time.Now(),
		BeltFrom: models.BeltWhite,
		BeltTo:   models.BeltBlue,
	})
	assert.Equal(t, 403, errStatus(t, err))
}

func TestExamServiceUpdateCompletedConflicts(t *testing.T) {
	exam := scheduledExam("e1")
	exam.Status = models.ExamStatusCompleted
	repo := &mockExamRepo{exams: map[string]models.Exam{"e1": exam}}
	svc := NewExamService(repo, validator.New(), zap.NewNop())

	title := "Nuevo titulo"
	_, err := svc.Update(context.Background(), instructorClaims(), "e1", UpdateExamRequest{Title: &title})
	assert.Equal(t, 409, errStatus(t, err))
}

func TestExamServiceCrossTenantHidden(t *testing.T) {
	exam := scheduledExam("e1")
	exam.AcademyID = "acad-2"
	repo := &mockExamRepo{exams: map[string]models.Exam{"e1": exam}}
	svc := NewExamService(repo, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), instructorClaims(), "e1")
	assert.Equal(t, 404, errStatus(t, err))
}

func TestExamServiceDeleteRequiresAdmin(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]models.Exam{"e1": scheduledExam("e1")}}
	svc := NewExamService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), instructorClaims(), "e1")
	assert.Equal(t, 403, errStatus(t, err))

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "e1"))
	assert.Contains(t, repo.deleted, "e1")
}

func TestExamServiceDeleteCompletedConflicts(t *testing.T) {
	exam := scheduledExam("e1")
	exam.Status = models.ExamStatusCompleted
	repo := &mockExamRepo{exams: map[string]models.Exam{"e1": exam}}
	svc := NewExamService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), adminClaims(), "e1")
	assert.Equal(t, 409, errStatus(t, err))
}
