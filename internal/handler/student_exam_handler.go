package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/middleware"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/service"
	"github.com/pragati/exam-engine/internal/validator"
	"github.com/rs/zerolog"
)

// StudentExamHandler handles student-facing exam and attempt endpoints.
type StudentExamHandler struct {
	catalogService *service.CatalogService
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(
	catalogService *service.CatalogService,
	attemptService *service.AttemptService,
	log zerolog.Logger,
) *StudentExamHandler {
	return &StudentExamHandler{
		catalogService: catalogService,
		attemptService: attemptService,
		log:            log.With().Str("component", "student_exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns active exams whose window contains now.
func (h *StudentExamHandler) ListExams(c *gin.Context) {
	exams, err := h.catalogService.ListAvailable(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the exam with its questions and options, without correct answers.
// Missing, inactive and out-of-window exams all read as not found.
func (h *StudentExamHandler) GetPaper(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	paper, err := h.catalogService.GetPaper(c.Request.Context(), middleware.StudentID(c), examID)
	if err != nil {
		if errors.Is(err, service.ErrExamUnavailable) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Opens an attempt, or resumes the running one (200 instead of 201).
func (h *StudentExamHandler) StartAttempt(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	started, err := h.attemptService.StartAttempt(c.Request.Context(), middleware.StudentID(c), examID)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if started.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, started)
}

// ListAttempts godoc
// GET /api/v1/student/attempts
func (h *StudentExamHandler) ListAttempts(c *gin.Context) {
	attempts, err := h.attemptService.ListAttempts(c.Request.Context(), middleware.StudentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns paper, recorded answers and remaining time so a reloaded client
// can pick up where it left off.
func (h *StudentExamHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	view, err := h.attemptService.GetAttemptState(c.Request.Context(), middleware.StudentID(c), attemptID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// RecordAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
func (h *StudentExamHandler) RecordAnswer(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Invalid(c, fields)
		return
	}

	answer, err := h.attemptService.RecordAnswer(c.Request.Context(), middleware.StudentID(c), attemptID, req.QuestionID, req.OptionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, answer)
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Idempotent: a repeated submit returns the stored result.
func (h *StudentExamHandler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), middleware.StudentID(c), attemptID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/student/attempts/:attempt_id/result
func (h *StudentExamHandler) GetResult(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), middleware.StudentID(c), attemptID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *StudentExamHandler) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Request failed")
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

func parseExamID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("exam_id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func parseAttemptID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
