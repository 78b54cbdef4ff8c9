package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bjj-academy-api/internal/service"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
	"github.com/noah-isme/bjj-academy-api/pkg/response"
)

// ExamStudentHandler exposes enrollment and evaluation endpoints nested
// under an exam.
type ExamStudentHandler struct {
	students    *service.ExamStudentService
	evaluations *service.EvaluationService
}

// NewExamStudentHandler constructs ExamStudentHandler.
func NewExamStudentHandler(students *service.ExamStudentService, evaluations *service.EvaluationService) *ExamStudentHandler {
	return &ExamStudentHandler{students: students, evaluations: evaluations}
}

// List returns the exam roster with requirement checks per student.
func (h *ExamStudentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	roster, err := h.students.ListWithRequirements(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Enroll registers a student for the exam.
func (h *ExamStudentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.students.Enroll(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Remove withdraws a pending student from the exam.
func (h *ExamStudentHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.students.Remove(c.Request.Context(), claims, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Evaluate records verdicts for a batch of enrollments and promotes
// approved students in one transaction.
func (h *ExamStudentHandler) Evaluate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}

	result, err := h.evaluations.EvaluateBulk(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
