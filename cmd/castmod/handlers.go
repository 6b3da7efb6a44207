package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/castmod/castmod/automod/channelstore"
	"github.com/castmod/castmod/automod/engine"
	"github.com/castmod/castmod/automod/modlog"
	"github.com/castmod/castmod/automod/rule"
	"github.com/castmod/castmod/sweep"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Issues  []rule.ValidationError `json:"issues,omitempty"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errorMessage := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("castmod-http-internal-error", "err", err)
	}
	c.JSON(code, GenericError{Error: http.StatusText(code), Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "castmod", Version: versioninfo.Short()})
}

func (srv *Server) HandleDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"rules":   rule.Definitions,
		"actions": rule.ActionDefinitions,
	})
}

func (srv *Server) HandleListChannels(c echo.Context) error {
	ids, err := srv.channels.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"channels": ids})
}

// loadChannel writes a 404 and returns nil when the channel has no config.
func (srv *Server) loadChannel(c echo.Context) (*rule.Channel, error) {
	ch, err := srv.channels.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, channelstore.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, GenericError{
			Error:   "ChannelNotFound",
			Message: fmt.Sprintf("channel %s has no moderation config", c.Param("id")),
		})
	}
	return ch, err
}

func (srv *Server) HandleGetChannel(c echo.Context) error {
	ch, err := srv.loadChannel(c)
	if ch == nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

func invalidConfig(c echo.Context, err error) error {
	resp := GenericError{Error: "InvalidConfig", Message: err.Error()}
	var verrs rule.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Issues = verrs
	}
	return c.JSON(http.StatusBadRequest, resp)
}

// HandlePutChannel validates the full config, all or nothing, and replaces the stored one.
func (srv *Server) HandlePutChannel(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	ch, err := rule.ParseChannel(body)
	if err != nil {
		return invalidConfig(c, err)
	}
	if ch.ID != c.Param("id") {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidConfig",
			Message: fmt.Sprintf("config is for channel %q, not %q", ch.ID, c.Param("id")),
		})
	}
	if err := srv.channels.Put(c.Request().Context(), ch); err != nil {
		var verrs rule.ValidationErrors
		if errors.As(err, &verrs) {
			return invalidConfig(c, err)
		}
		return err
	}
	srv.logger.Info("saved channel config", "channel", ch.ID, "ruleSets", len(ch.RuleSets))
	return c.JSON(http.StatusOK, ch)
}

type EvaluateResponse struct {
	Match     bool          `json:"match"`
	RuleSetID string        `json:"ruleSetId,omitempty"`
	Index     int           `json:"index"`
	Reason    string        `json:"reason,omitempty"`
	Actions   []rule.Action `json:"actions,omitempty"`
	// rule sets which failed to evaluate, and were treated as not firing
	Errors string `json:"errors,omitempty"`
}

// HandleEvaluate reports which rule set a cast would fire, without acting on it or recording anything.
func (srv *Server) HandleEvaluate(c echo.Context) error {
	ch, err := srv.loadChannel(c)
	if ch == nil {
		return err
	}
	var cast engine.Cast
	if err := c.Bind(&cast); err != nil {
		return err
	}
	if cast.Hash == "" {
		return c.JSON(http.StatusBadRequest, GenericError{Error: "InvalidCast", Message: "cast hash is required"})
	}

	m, evalErr := srv.engine.EvaluateCast(c.Request().Context(), ch, &cast)
	resp := EvaluateResponse{Index: -1}
	if evalErr != nil {
		resp.Errors = evalErr.Error()
	}
	if m != nil {
		resp.Match = true
		resp.RuleSetID = m.RuleSet.ID
		resp.Index = m.Index
		resp.Reason = m.Reason
		resp.Actions = m.RuleSet.Actions
	}
	return c.JSON(http.StatusOK, resp)
}

func (srv *Server) HandleSweep(c echo.Context) error {
	ch, err := srv.loadChannel(c)
	if ch == nil {
		return err
	}
	res, err := srv.sweeper.Trigger(c.Request().Context(), ch)
	if err != nil {
		return err
	}
	if res.Started {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}

type SweepStatusResponse struct {
	IsSweepActive bool          `json:"isSweepActive"`
	LastSweep     *sweep.Status `json:"lastSweep,omitempty"`
}

func (srv *Server) HandleSweepStatus(c echo.Context) error {
	id := c.Param("id")
	active, err := srv.sweeper.IsActive(c.Request().Context(), id)
	if err != nil {
		return err
	}
	resp := SweepStatusResponse{IsSweepActive: active}
	if st, ok := srv.sweeper.Status(id); ok {
		resp.LastSweep = &st
	}
	return c.JSON(http.StatusOK, resp)
}

func (srv *Server) HandleModerationLog(c echo.Context) error {
	limit := modlog.DefaultListLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			return c.JSON(http.StatusBadRequest, GenericError{Error: "InvalidLimit", Message: "limit must be between 1 and 1000"})
		}
		limit = n
	}
	entries, err := srv.engine.Log.List(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		slog.Error("failed to list moderation log", "channel", c.Param("id"), "err", err)
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}
