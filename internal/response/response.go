package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope every HTTP endpoint answers with.
type Response struct {
	Data     interface{} `json:"data"`
	Error    *ErrorBody  `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata carries the request id and the server clock. Clients running a
// countdown use ServerTimeMs to correct for their own clock offset.
type Metadata struct {
	RequestID    string `json:"request_id"`
	Timestamp    string `json:"timestamp"`
	ServerTimeMs int64  `json:"server_time_ms"`
}

// Now is the clock stamped into Metadata.
var Now = time.Now

// Success writes data with the given status.
func Success(c *gin.Context, statusCode int, data interface{}) {
	write(c, statusCode, data, nil, false)
}

// Fail writes an error code with its default message.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, nil, &ErrorBody{Code: code, Message: GetMessage(code)}, false)
}

// Invalid rejects a request body with 400 and per-field messages.
func Invalid(c *gin.Context, fields map[string]string) {
	write(c, http.StatusBadRequest, nil, &ErrorBody{
		Code:    ErrValidation,
		Message: GetMessage(ErrValidation),
		Fields:  fields,
	}, false)
}

// Abort is Fail for middleware: the rest of the chain is skipped.
func Abort(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, nil, &ErrorBody{Code: code, Message: GetMessage(code)}, true)
}

func write(c *gin.Context, status int, data interface{}, errBody *ErrorBody, abort bool) {
	body := Response{Data: data, Error: errBody, Metadata: buildMetadata(c)}
	if abort {
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(status, body)
}

func buildMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		id = uuid.New().String() // middleware not applied
	}
	now := Now().UTC()
	return Metadata{
		RequestID:    id,
		Timestamp:    now.Format(time.RFC3339),
		ServerTimeMs: now.UnixMilli(),
	}
}
