package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pragati/exam-engine/internal/middleware"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/service"
	"github.com/pragati/exam-engine/internal/validator"
	ws "github.com/pragati/exam-engine/internal/websocket"
	"github.com/rs/zerolog"
)

const wsOpTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an attempt over a WebSocket: answers in, saves and the
// final result out. It calls the same services as the HTTP endpoints.
type WSHandler struct {
	attemptService *service.AttemptService
	deadline       *service.DeadlineEnforcer
	limiter        *middleware.RateLimiter
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. limiter may be nil.
func NewWSHandler(
	attemptService *service.AttemptService,
	deadline *service.DeadlineEnforcer,
	limiter *middleware.RateLimiter,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		deadline:       deadline,
		limiter:        limiter,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
// Upgrades to WebSocket for answer saving and submission.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}
	studentID := middleware.StudentID(c)

	// Ownership and existence are checked before the upgrade so failures
	// come back as plain HTTP errors.
	view, err := h.attemptService.GetAttemptState(c.Request.Context(), studentID, attemptID)
	if err != nil {
		status, code := errorStatus(err)
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageSize)

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("attempt_id", attemptID.String()).
		Logger()

	if !view.Attempt.IsOpen() {
		h.writeResult(conn, view.Attempt.State, view.Result)
		ws.Close(conn, "attempt closed")
		return
	}

	wsLog.Info().Msg("Student connected")
	attempt := view.Attempt

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), nil)
			continue
		}

		switch env.Action {
		case ws.ActionAnswer:
			if done := h.handleAnswer(conn, wsLog, studentID, attempt, data); done {
				ws.Close(conn, "attempt closed")
				return
			}
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, studentID, attemptID)
			ws.Close(conn, "attempt submitted")
			return
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{
				Event:            ws.EventPong,
				ServerTime:       h.deadline.Now(),
				RemainingSeconds: h.deadline.Remaining(attempt).Seconds(),
			})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action), nil)
		}
	}
}

// handleAnswer records one answer. It reports true when the attempt turned
// out to be closed and the stream should end.
func (h *WSHandler) handleAnswer(conn *websocket.Conn, wsLog zerolog.Logger, studentID int, attempt *model.Attempt, data []byte) bool {
	var req ws.AnswerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		_ = ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), nil)
		return false
	}
	if fields := validator.Struct(&req); fields != nil {
		_ = ws.WriteError(conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation), fields)
		return false
	}
	if h.limiter != nil && !h.limiter.Allow("student:"+strconv.Itoa(studentID)) {
		_ = ws.WriteError(conn, string(response.ErrRateLimitExceeded), response.GetMessage(response.ErrRateLimitExceeded), nil)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	_, err := h.attemptService.RecordAnswer(ctx, studentID, attempt.ID, req.QuestionID, req.OptionID)
	if errors.Is(err, service.ErrAttemptClosed) {
		view, verr := h.attemptService.GetAttemptState(ctx, studentID, attempt.ID)
		if verr != nil {
			wsLog.Error().Err(verr).Msg("Load result after close failed")
			_ = ws.WriteError(conn, string(response.ErrAttemptClosed), response.GetMessage(response.ErrAttemptClosed), nil)
			return true
		}
		h.writeResult(conn, view.Attempt.State, view.Result)
		return true
	}
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return false
	}

	_ = ws.WriteTyped(conn, ws.SavedResponse{
		Event:            ws.EventSaved,
		QuestionID:       req.QuestionID,
		OptionID:         req.OptionID,
		RemainingSeconds: h.deadline.Remaining(attempt).Seconds(),
	})
	return false
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, studentID int, attemptID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	result, err := h.attemptService.SubmitAttempt(ctx, studentID, attemptID)
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return
	}

	wsLog.Info().Float64("score", result.TotalScore).Msg("Attempt submitted over stream")
	_ = ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventGraded, Result: result})
}

func (h *WSHandler) writeResult(conn *websocket.Conn, state model.AttemptState, result *model.Result) {
	event := ws.EventGraded
	if state == model.AttemptStateExpired {
		event = ws.EventExpired
	}
	_ = ws.WriteTyped(conn, ws.ResultResponse{Event: event, Result: result})
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, wsLog zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Stream action failed")
	}
	_ = ws.WriteError(conn, string(code), response.GetMessage(code), nil)
}
