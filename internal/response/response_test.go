package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrNotFound) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "generated when missing", keep: false},
		{name: "caller id kept", header: "abc-123", keep: true},
		{name: "id with spaces replaced", header: "abc 123", keep: false},
		{name: "overlong id replaced", header: strings.Repeat("a", 65), keep: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, w.Header().Get("X-Request-ID"), body.Metadata.RequestID)
			assert.NotEmpty(t, body.Metadata.RequestID)
			if tc.keep {
				assert.Equal(t, tc.header, body.Metadata.RequestID)
			} else {
				assert.NotEqual(t, tc.header, body.Metadata.RequestID)
			}
			require.NotNil(t, body.Error)
			assert.Equal(t, ErrNotFound, body.Error.Code)
			assert.Equal(t, GetMessage(ErrNotFound), body.Error.Message)
		})
	}
}

func TestEnvelopeHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fixed := time.Date(2025, 5, 10, 9, 0, 0, 250*int(time.Millisecond), time.UTC)
	Now = func() time.Time { return fixed }
	t.Cleanup(func() { Now = time.Now })

	reached := false
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusCreated, gin.H{"id": 1}) })
	r.GET("/invalid", func(c *gin.Context) { Invalid(c, map[string]string{"option_id": "required"}) })
	r.GET("/aborted", func(c *gin.Context) {
		Abort(c, http.StatusForbidden, ErrStudentAccessOnly)
	}, func(c *gin.Context) {
		reached = true
	})

	do := func(path string) (*httptest.ResponseRecorder, Response) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w, body
	}

	w, body := do("/ok")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, body.Error)
	assert.Equal(t, map[string]interface{}{"id": float64(1)}, body.Data)
	assert.Equal(t, fixed.UnixMilli(), body.Metadata.ServerTimeMs)
	assert.Equal(t, "2025-05-10T09:00:00Z", body.Metadata.Timestamp)

	w, body = do("/invalid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrValidation, body.Error.Code)
	assert.Equal(t, map[string]string{"option_id": "required"}, body.Error.Fields)
	assert.Nil(t, body.Data)

	w, body = do("/aborted")
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrStudentAccessOnly, body.Error.Code)
	assert.False(t, reached)
}
