package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/google"
	"github.com/insuratask/insuratask/internal/logging"
)

type resolveRequest struct {
	Resolution calsync.ConflictRule `json:"resolution"`
}

func (a *API) calendarStatus(c *gin.Context) error {
	st, err := a.svc.Sync.Status(c.Request.Context())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, st)
	return nil
}

func (a *API) calendarAuthURL(c *gin.Context) error {
	if a.svc.Auth == nil {
		return google.ErrNotConfigured
	}
	state := google.NewState()
	url, err := a.svc.Auth.AuthURL(state)
	if err != nil {
		return err
	}
	now := time.Now()
	err = a.states.SaveAuthorizationState(c.Request.Context(), &storage.AuthorizationState{
		StateID:       state,
		ProviderState: state,
		Scope:         strings.Join(google.DefaultOAuthScopes, " "),
		CreatedAt:     now,
		ExpiresAt:     now.Add(a.stateTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
	return nil
}

func (a *API) calendarCallback(c *gin.Context) error {
	if a.svc.Auth == nil {
		return google.ErrNotConfigured
	}
	if reason := c.Query("error"); reason != "" {
		return badRequest("authorization denied: " + reason)
	}
	if !a.consumeState(c.Request.Context(), c.Query("state")) {
		return badRequest("invalid or expired state")
	}
	code := c.Query("code")
	if code == "" {
		return badRequest("missing code")
	}
	if err := a.svc.Auth.Connect(c.Request.Context(), code); err != nil {
		if errors.Is(err, google.ErrNotConfigured) {
			return err
		}
		a.logger.WarnContext(c.Request.Context(), "google authorization failed", logging.Err(err))
		return badRequest("authorization failed")
	}
	a.logger.InfoContext(c.Request.Context(), "google calendar connected",
		logging.RequestID(c.GetString(requestIDKey)))
	c.JSON(http.StatusOK, gin.H{"connected": true})
	return nil
}

// consumeState reports whether state was issued and has not expired. A state
// is accepted once.
func (a *API) consumeState(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	_, err := a.states.GetAuthorizationState(ctx, state)
	if delErr := a.states.DeleteAuthorizationState(ctx, state); delErr != nil {
		a.logger.WarnContext(ctx, "failed to delete oauth state", logging.Err(delErr))
	}
	return err == nil
}

func (a *API) calendarDisconnect(c *gin.Context) error {
	if err := a.svc.Sync.Disconnect(c.Request.Context()); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
	return nil
}

func (a *API) calendarSync(c *gin.Context) error {
	res, err := a.svc.Sync.Sync(c.Request.Context())
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		a.logger.WarnContext(c.Request.Context(), "sync finished with errors", slog.Int("errors", len(res.Errors)))
	}
	c.JSON(http.StatusOK, res)
	return nil
}

func (a *API) calendarConflicts(c *gin.Context) error {
	conflicts, err := a.svc.Sync.Conflicts(c.Request.Context())
	if err != nil {
		return err
	}
	list(c, conflicts)
	return nil
}

func (a *API) calendarResolve(c *gin.Context) error {
	id, err := pathID(c, "taskId")
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := bindJSON(c, &req, false); err != nil {
		return err
	}
	if err := a.svc.Sync.Resolve(c.Request.Context(), id, req.Resolution); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"taskId": id, "resolution": req.Resolution})
	return nil
}

func (a *API) calendarSettings(c *gin.Context) error {
	s, err := a.svc.Sync.Settings(c.Request.Context())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, s)
	return nil
}

// updateCalendarSettings applies the fields present in the body on top of
// the stored settings.
func (a *API) updateCalendarSettings(c *gin.Context) error {
	s, err := a.svc.Sync.Settings(c.Request.Context())
	if err != nil {
		return err
	}
	if err := bindJSON(c, &s, false); err != nil {
		return err
	}
	s, err = a.svc.Sync.UpdateSettings(c.Request.Context(), s)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, s)
	return nil
}
