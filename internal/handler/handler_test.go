package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/handler"
	"github.com/pragati/exam-engine/internal/metrics"
	"github.com/pragati/exam-engine/internal/middleware"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/repository/memory"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/router"
	"github.com/pragati/exam-engine/internal/service"
	"github.com/pragati/exam-engine/internal/validator"
	ws "github.com/pragati/exam-engine/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	auth   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:   gin.TestMode,
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	}
	log := zerolog.Nop()
	store := memory.NewStore()
	store.PutExam(model.Exam{ID: 1, Title: "Algebra", DurationMinutes: 10, IsActive: true, PassMarks: ptr(1)}, []model.Question{
		{ID: 1, Marks: 1, Position: 1, Text: "x+1=2", Options: []model.Option{
			{ID: 11, Text: "1", IsCorrect: true, Position: 1},
			{ID: 12, Text: "2", Position: 2},
		}},
		{ID: 2, Marks: 1, Position: 2, Text: "2x=6", Options: []model.Option{
			{ID: 21, Text: "2", Position: 1},
			{ID: 22, Text: "3", IsCorrect: true, Position: 2},
		}},
	})
	store.PutExam(model.Exam{ID: 2, Title: "Draft", DurationMinutes: 10}, nil)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	deadline := service.NewDeadlineEnforcer(nil)
	catalog := service.NewCatalogService(store, nil, deadline, log)
	attempts := service.NewAttemptService(cfg, catalog, store, deadline, nil, m, log)
	auth := service.NewAuthService(cfg)
	limiter := middleware.NewRateLimiter(1000, 1000)

	r := router.SetupRouter(cfg, router.Deps{
		Auth:          auth,
		AnswerLimiter: limiter,
		Metrics:       m,
		Gatherer:      reg,
		Log:           log,
	}, &router.Handlers{
		StudentExam: handler.NewStudentExamHandler(catalog, attempts, log),
		WS:          handler.NewWSHandler(attempts, deadline, limiter, log, nil),
		System:      handler.NewSystemHandler(log),
	})

	return &testServer{router: r, store: store, auth: auth}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (s *testServer) do(t *testing.T, studentID int, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if studentID > 0 {
		token, err := s.auth.GenerateStudentToken(studentID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func errCode(env envelope) response.ErrCode {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestStudentExamFlow(t *testing.T) {
	s := newTestServer(t)
	const student = 3

	code, env := s.do(t, student, http.MethodGet, "/api/v1/student/exams", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Exams []model.ExamSummary `json:"exams"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Exams, 1)
	assert.Equal(t, "Algebra", list.Exams[0].Title)

	code, env = s.do(t, student, http.MethodGet, "/api/v1/student/exams/1/paper", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "is_correct")

	code, env = s.do(t, student, http.MethodPost, "/api/v1/student/exams/1/attempts", nil)
	require.Equal(t, http.StatusCreated, code)
	var started service.StartedAttempt
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.False(t, started.Resumed)
	assert.NotContains(t, string(env.Data), "is_correct")
	attemptPath := "/api/v1/student/attempts/" + started.Attempt.ID.String()

	code, env = s.do(t, student, http.MethodPost, "/api/v1/student/exams/1/attempts", nil)
	require.Equal(t, http.StatusOK, code)
	var resumed service.StartedAttempt
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.True(t, resumed.Resumed)
	assert.Equal(t, started.Attempt.ID, resumed.Attempt.ID)

	code, env = s.do(t, student, http.MethodGet, "/api/v1/student/attempts/"+started.Attempt.ID.String()+"/result", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrAttemptOpen, errCode(env))

	code, _ = s.do(t, student, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 1, OptionID: 11})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, student, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 2, OptionID: 21})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, student, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 9, OptionID: 11})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, response.ErrInvalidQuestion, errCode(env))

	code, env = s.do(t, student, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 1, OptionID: 22})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, response.ErrInvalidOption, errCode(env))

	code, env = s.do(t, student, http.MethodPut, attemptPath+"/answers", map[string]int{"question_id": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, errCode(env))
	assert.Contains(t, env.Error.Fields, "option_id")

	code, env = s.do(t, student+1, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 1, OptionID: 11})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrAttemptForbidden, errCode(env))

	code, env = s.do(t, student, http.MethodGet, attemptPath, nil)
	require.Equal(t, http.StatusOK, code)
	var view service.AttemptView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Answers, 2)
	assert.Greater(t, view.RemainingSeconds, 0.0)

	code, env = s.do(t, student, http.MethodPost, attemptPath+"/submit", nil)
	require.Equal(t, http.StatusOK, code)
	var result model.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1.0, result.TotalScore)
	assert.Equal(t, model.ResultStatusPass, result.Status)

	code, env = s.do(t, student, http.MethodPost, attemptPath+"/submit", nil)
	require.Equal(t, http.StatusOK, code)
	var again model.Result
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, result.CreatedAt, again.CreatedAt)

	code, env = s.do(t, student, http.MethodPut, attemptPath+"/answers", model.AnswerRequest{QuestionID: 1, OptionID: 12})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrAttemptClosed, errCode(env))

	code, _ = s.do(t, student, http.MethodGet, attemptPath+"/result", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, student, http.MethodPost, "/api/v1/student/exams/1/attempts", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrExamAlreadyTaken, errCode(env))

	code, env = s.do(t, student, http.MethodGet, "/api/v1/student/attempts", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), started.Attempt.ID.String())
}

func TestStudentExamErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		student int
		method  string
		path    string
		status  int
		code    response.ErrCode
	}{
		{name: "no token", method: http.MethodGet, path: "/api/v1/student/exams", status: http.StatusUnauthorized, code: response.ErrTokenRequired},
		{name: "bad exam id", student: 1, method: http.MethodGet, path: "/api/v1/student/exams/abc/paper", status: http.StatusBadRequest, code: response.ErrInvalidID},
		{name: "unknown exam paper", student: 1, method: http.MethodGet, path: "/api/v1/student/exams/99/paper", status: http.StatusNotFound, code: response.ErrNotFound},
		{name: "inactive exam paper", student: 1, method: http.MethodGet, path: "/api/v1/student/exams/2/paper", status: http.StatusNotFound, code: response.ErrNotFound},
		{name: "inactive exam start", student: 1, method: http.MethodPost, path: "/api/v1/student/exams/2/attempts", status: http.StatusConflict, code: response.ErrExamUnavailable},
		{name: "bad attempt id", student: 1, method: http.MethodGet, path: "/api/v1/student/attempts/nope", status: http.StatusBadRequest, code: response.ErrInvalidID},
		{name: "unknown attempt", student: 1, method: http.MethodPost, path: "/api/v1/student/attempts/6f1c1d7e-3d2a-4e61-9a49-0d7b5b1b6c11/submit", status: http.StatusNotFound, code: response.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.do(t, tc.student, tc.method, tc.path, nil)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.code, errCode(env))
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestHealth_DependencyDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewSystemHandler(zerolog.Nop(), handler.Dependency{
		Name: "postgres",
		Ping: func(context.Context) error { return assert.AnError },
	})
	r := gin.New()
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"down"`)
}

func TestAttemptStream(t *testing.T) {
	s := newTestServer(t)
	const student = 8

	code, env := s.do(t, student, http.MethodPost, "/api/v1/student/exams/1/attempts", nil)
	require.Equal(t, http.StatusCreated, code)
	var started service.StartedAttempt
	require.NoError(t, json.Unmarshal(env.Data, &started))

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	token, err := s.auth.GenerateStudentToken(student)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/student/attempts/" + started.Attempt.ID.String() + "/stream?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(ws.AnswerRequest{Action: ws.ActionAnswer, QuestionID: 1, OptionID: 11}))
	var saved ws.SavedResponse
	require.NoError(t, conn.ReadJSON(&saved))
	assert.Equal(t, ws.EventSaved, saved.Event)
	assert.Equal(t, int64(11), saved.OptionID)

	require.NoError(t, conn.WriteJSON(ws.AnswerRequest{Action: ws.ActionAnswer, QuestionID: 1, OptionID: 22}))
	var failed ws.ErrorResponse
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, ws.EventError, failed.Event)
	assert.Equal(t, string(response.ErrInvalidOption), failed.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "answer"}))
	var invalid ws.ErrorResponse
	require.NoError(t, conn.ReadJSON(&invalid))
	assert.Equal(t, string(response.ErrValidation), invalid.Code)

	require.NoError(t, conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}))
	var pong ws.PongResponse
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, ws.EventPong, pong.Event)
	assert.Greater(t, pong.RemainingSeconds, 0.0)

	require.NoError(t, conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionSubmit}))
	var graded ws.ResultResponse
	require.NoError(t, conn.ReadJSON(&graded))
	assert.Equal(t, ws.EventGraded, graded.Event)
	require.NotNil(t, graded.Result)
	assert.Equal(t, 1.0, graded.Result.TotalScore)

	// Reconnecting to a closed attempt replays the result and hangs up.
	again, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer again.Close()
	_ = again.SetReadDeadline(time.Now().Add(5 * time.Second))
	var replay ws.ResultResponse
	require.NoError(t, again.ReadJSON(&replay))
	assert.Equal(t, ws.EventGraded, replay.Event)
}

func TestAttemptStream_RejectsOtherStudent(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, 1, http.MethodPost, "/api/v1/student/exams/1/attempts", nil)
	require.Equal(t, http.StatusCreated, code)
	var started service.StartedAttempt
	require.NoError(t, json.Unmarshal(env.Data, &started))

	token, err := s.auth.GenerateStudentToken(2)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/ws/v1/student/attempts/"+started.Attempt.ID.String()+"/stream?token="+token, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func ptr(v float64) *float64 { return &v }
