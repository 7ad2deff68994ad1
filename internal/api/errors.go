package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/google"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// errBadRequest marks a malformed request that is not a field validation.
type errBadRequest struct{ msg string }

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return &errBadRequest{msg: msg} }

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *task.ValidationError
	var breq *errBadRequest
	switch {
	case errors.As(err, &verr), errors.As(err, &breq):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, calsync.ErrSyncInProgress), errors.Is(err, calsync.ErrNoConflict):
		return http.StatusConflict
	case errors.Is(err, calsync.ErrNotConnected), errors.Is(err, google.ErrNotConfigured):
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, status int, msg string, details map[string]string) {
	body := gin.H{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}

// fail writes err using the error envelope. Internal errors are logged and
// not echoed to the client.
func (a *API) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)

	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(c, status, "validation failed", verr.Fields)
	case status == http.StatusInternalServerError:
		a.logger.ErrorContext(c.Request.Context(), "request failed",
			logging.RequestID(c.GetString(requestIDKey)),
			slog.String("route", c.FullPath()),
			logging.Err(err))
		writeError(c, status, "internal server error", nil)
	case errors.Is(err, store.ErrNotFound):
		writeError(c, status, "not found", nil)
	default:
		writeError(c, status, err.Error(), nil)
	}
}

// handle adapts an error-returning handler to gin.
func (a *API) handle(fn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c); err != nil {
			a.fail(c, err)
		}
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &task.ValidationError{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return id, nil
}

// bindJSON decodes the body into v. An empty body leaves v untouched when
// optional is set.
func bindJSON(c *gin.Context, v any, optional bool) error {
	if optional && c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

func list[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "count": len(items)})
}
