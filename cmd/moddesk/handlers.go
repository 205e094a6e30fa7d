package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/collab"
	"github.com/socialdesk/moddesk/automod/engine"
	"github.com/socialdesk/moddesk/workflow"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
)

// Header carrying the ID of the user performing workflow operations.
const actorHeader = "X-Moddesk-User"

type GenericError struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	resp := GenericError{Error: "InternalError", Message: err.Error()}

	var he *echo.HTTPError
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &he):
		code = he.Code
		resp = GenericError{Error: http.StatusText(code), Message: fmt.Sprintf("%v", he.Message)}
	case errors.As(err, &verr):
		code = http.StatusBadRequest
		resp = GenericError{Error: "ValidationFailed", Message: "request failed validation", Details: verr.Errors}
	case errors.Is(err, engine.ErrValidation):
		code = http.StatusBadRequest
		resp.Error = "ValidationFailed"
	case errors.Is(err, engine.ErrNotFound):
		code = http.StatusNotFound
		resp.Error = "NotFound"
	case errors.Is(err, engine.ErrForbidden):
		code = http.StatusForbidden
		resp.Error = "Forbidden"
	case errors.Is(err, workflow.ErrInvalidTransition):
		code = http.StatusConflict
		resp.Error = "InvalidTransition"
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
		resp.Error = "Timeout"
	}
	if code >= 500 {
		srv.logger.Warn("moddesk-http-internal-error", "err", err)
	}
	if c.Response().Committed {
		return
	}
	c.JSON(code, resp)
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	sqldb, err := srv.db.DB()
	if err == nil {
		err = sqldb.PingContext(c.Request().Context())
	}
	if err != nil {
		srv.logger.Error("database health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, GenericStatus{Status: "error", Daemon: "moddesk", Message: "database unavailable"})
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "moddesk"})
}

func (srv *Server) HandleListRules(c echo.Context) error {
	rules, err := srv.rules.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"rules": rules})
}

func (srv *Server) HandleGetRule(c echo.Context) error {
	rule, err := srv.rules.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rule)
}

func (srv *Server) HandleCreateRule(c echo.Context) error {
	var draft engine.RuleDraft
	if err := c.Bind(&draft); err != nil {
		return err
	}
	rule, err := srv.rules.Create(c.Request().Context(), draft)
	if err != nil {
		return err
	}
	srv.logger.Info("rule created", "rule", rule.ID, "name", rule.Name)
	return c.JSON(http.StatusCreated, rule)
}

func (srv *Server) HandleUpdateRule(c echo.Context) error {
	var draft engine.RuleDraft
	if err := c.Bind(&draft); err != nil {
		return err
	}
	rule, err := srv.rules.Update(c.Request().Context(), c.Param("id"), draft)
	if err != nil {
		return err
	}
	srv.logger.Info("rule updated", "rule", rule.ID, "name", rule.Name)
	return c.JSON(http.StatusOK, rule)
}

func (srv *Server) HandleDeleteRule(c echo.Context) error {
	if err := srv.rules.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	srv.logger.Info("rule deleted", "rule", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (srv *Server) HandleSetRuleActive(active bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		rule, err := srv.rules.SetActive(c.Request().Context(), c.Param("id"), active)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, rule)
	}
}

// Validates without persisting. Always 200; the result says whether the rule is valid.
func (srv *Server) HandleValidateRule(c echo.Context) error {
	var draft engine.RuleDraft
	if err := c.Bind(&draft); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.ValidateRule(&draft))
}

func parseDays(c echo.Context, def int) (int, error) {
	s := c.QueryParam("days")
	if s == "" {
		return def, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil || days <= 0 || days > 366 {
		return 0, engine.NewValidationError("days must be an integer between 1 and 366")
	}
	return days, nil
}

func parseLimit(c echo.Context) (int, error) {
	s := c.QueryParam("limit")
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 || limit > 1000 {
		return 0, engine.NewValidationError("limit must be an integer between 1 and 1000")
	}
	return limit, nil
}

// Statistics for one rule (when an id path param is present), or across all rules.
func (srv *Server) HandleRuleStatistics(c echo.Context) error {
	ctx := c.Request().Context()
	days, err := parseDays(c, 7)
	if err != nil {
		return err
	}
	ruleID := c.Param("id")
	if ruleID != "" {
		if _, err := srv.rules.Get(ctx, ruleID); err != nil {
			return err
		}
	}
	stats, err := srv.engine.Recorder.Statistics(ctx, ruleID, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (srv *Server) HandleListActions(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	recs, err := srv.engine.Recorder.List(c.Request().Context(), audit.ListFilter{
		RuleID:    c.QueryParam("rule"),
		TargetRef: c.QueryParam("target"),
		Status:    audit.Status(c.QueryParam("status")),
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"actions": recs})
}

type ContentInput struct {
	engine.ContentItem
	collab.ContentMeta
	// run the item through the rules right after storing it
	Process bool `json:"process,omitempty"`
}

func (srv *Server) HandlePutContent(c echo.Context) error {
	ctx := c.Request().Context()
	var in ContentInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	in.ContentItem.ID = c.Param("id")
	if err := srv.directory.PutContent(ctx, &in.ContentItem, in.ContentMeta); err != nil {
		return err
	}
	if !in.Process {
		return c.JSON(http.StatusOK, in.ContentItem)
	}
	return srv.processContent(c, in.ContentItem.ID)
}

func (srv *Server) HandleProcessContent(c echo.Context) error {
	return srv.processContent(c, c.Param("id"))
}

type ProcessOutput struct {
	Target   string          `json:"target"`
	Outcomes []OutcomeOutput `json:"outcomes"`
}

type OutcomeOutput struct {
	RuleID   string         `json:"ruleId"`
	RuleName string         `json:"ruleName"`
	Status   audit.Status   `json:"status"`
	RecordID string         `json:"recordId"`
	Results  []ResultOutput `json:"results"`
}

type ResultOutput struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

func (srv *Server) processContent(c echo.Context, contentID string) error {
	ctx, span := tracer.Start(c.Request().Context(), "processContent")
	defer span.End()
	span.SetAttributes(attribute.String("content", contentID))

	ctx, cancel := context.WithTimeout(ctx, srv.processTimeout)
	defer cancel()

	item, err := srv.engine.Content.GetContentItem(ctx, contentID)
	if err != nil {
		return err
	}
	outcomes, err := srv.engine.ProcessItem(ctx, item)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("matches", len(outcomes)))
	itemsProcessed.Inc()

	out := ProcessOutput{Target: item.TargetRef(), Outcomes: []OutcomeOutput{}}
	for _, o := range outcomes {
		oo := OutcomeOutput{
			RuleID:   o.Match.Rule.ID,
			RuleName: o.Match.Rule.Name,
			Status:   o.Status,
			RecordID: o.RecordID,
		}
		for _, r := range o.Results {
			ro := ResultOutput{Action: string(r.Action), OK: r.OK()}
			if r.Err != nil {
				ro.Error = r.Err.Error()
			}
			oo.Results = append(oo.Results, ro)
		}
		out.Outcomes = append(out.Outcomes, oo)
	}
	return c.JSON(http.StatusOK, out)
}

type UserInput struct {
	Roles []string `json:"roles"`
}

func (srv *Server) HandlePutUser(c echo.Context) error {
	ctx := c.Request().Context()
	var in UserInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	userID := c.Param("id")
	if err := srv.directory.PutUser(ctx, userID, in.Roles); err != nil {
		return err
	}
	if err := srv.engine.PurgeUserCaches(ctx, userID); err != nil {
		srv.logger.Warn("failed to purge user cache", "user", userID, "err", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": userID, "roles": in.Roles})
}

type FlagEntry struct {
	Target string   `json:"target"`
	Flags  []string `json:"flags"`
}

// The human review queue: every target with at least one flag.
func (srv *Server) HandleListFlags(c echo.Context) error {
	ctx := c.Request().Context()
	keys, err := srv.engine.Flags.Keys(ctx)
	if err != nil {
		return err
	}
	out := []FlagEntry{}
	for _, k := range keys {
		flags, err := srv.engine.Flags.Get(ctx, k)
		if err != nil {
			return err
		}
		if len(flags) > 0 {
			out = append(out, FlagEntry{Target: k, Flags: flags})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"flags": out})
}

func (srv *Server) HandleClearFlags(c echo.Context) error {
	var in FlagEntry
	if err := c.Bind(&in); err != nil {
		return err
	}
	if in.Target == "" || len(in.Flags) == 0 {
		return engine.NewValidationError("target and flags are required")
	}
	if err := srv.engine.Flags.Remove(c.Request().Context(), in.Target, in.Flags); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func actor(c echo.Context) string {
	return c.Request().Header.Get(actorHeader)
}

type WorkflowInput struct {
	ContentID  string              `json:"contentId"`
	Changes    engine.ContentDelta `json:"changes"`
	AssigneeID string              `json:"assigneeId,omitempty"`
	Comment    string              `json:"comment,omitempty"`
}

func (srv *Server) HandleSubmitWorkflow(c echo.Context) error {
	var in WorkflowInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	wf, err := srv.workflows.Submit(c.Request().Context(), actor(c), in.ContentID, in.Changes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

func (srv *Server) HandleGetWorkflow(c echo.Context) error {
	wf, err := srv.workflows.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (srv *Server) HandleListWorkflows(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	wfs, err := srv.workflows.List(c.Request().Context(), workflow.ListFilter{
		Status:      workflow.Status(c.QueryParam("status")),
		ContentID:   c.QueryParam("content"),
		RequesterID: c.QueryParam("requester"),
		AssigneeID:  c.QueryParam("assignee"),
		Limit:       limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"workflows": wfs})
}

func (srv *Server) HandleAssignWorkflow(c echo.Context) error {
	var in WorkflowInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	wf, err := srv.workflows.Assign(c.Request().Context(), actor(c), c.Param("id"), in.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (srv *Server) HandleApproveWorkflow(c echo.Context) error {
	var in WorkflowInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	wf, err := srv.workflows.Approve(c.Request().Context(), actor(c), c.Param("id"), in.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (srv *Server) HandleRejectWorkflow(c echo.Context) error {
	var in WorkflowInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	wf, err := srv.workflows.Reject(c.Request().Context(), actor(c), c.Param("id"), in.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (srv *Server) HandleCompleteWorkflow(c echo.Context) error {
	wf, err := srv.workflows.Complete(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}
