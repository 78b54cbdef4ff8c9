package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bjj-academy-api/internal/middleware"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	"github.com/noah-isme/bjj-academy-api/internal/service"
)

func adminContext(w *httptest.ResponseRecorder) (*gin.Context, *gin.Engine) {
	c, r := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:    "admin-1",
		Role:      models.RoleAdmin,
		AcademyID: "acad-1",
	})
	return c, r
}

func TestExamHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(service.NewExamService(nil, nil, nil))

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/exams", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExamHandlerCreateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(service.NewExamService(nil, nil, nil))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/exams", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExamStudentHandlerEvaluateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamStudentHandler(nil, service.NewEvaluationService(nil, nil, nil, nil, nil, nil))

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/exams/exam-1/evaluations", bytes.NewReader([]byte(`"nope"`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "exam-1"}}

	handler.Evaluate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
