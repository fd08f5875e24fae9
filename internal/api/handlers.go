package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planbot/internal/generate"
	"github.com/planbot/internal/plan"
	"github.com/planbot/pkg/models"
)

type generateRequest struct {
	IssueKey    string                      `json:"issue_key"`
	Testing     models.TestingContext       `json:"testing_context"`
	Development *models.DevelopmentActivity `json:"development_activity,omitempty"`
	Format      string                      `json:"format"` // markdown, jira, json; default json
	PostToJira  bool                        `json:"post_to_jira"`
}

type generateResponse struct {
	IssueKey  string           `json:"issue_key"`
	Plan      *models.TestPlan `json:"plan"`
	Rendered  string           `json:"rendered,omitempty"`
	Sources   []string         `json:"sources,omitempty"`
	CommentID string           `json:"comment_id,omitempty"`
	Updated   bool             `json:"comment_updated,omitempty"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// kindStatus maps generation failure kinds to HTTP statuses.
var kindStatus = map[generate.Kind]int{
	generate.KindNotFound:            http.StatusNotFound,
	generate.KindAuthFailure:         http.StatusUnauthorized,
	generate.KindForbidden:           http.StatusForbidden,
	generate.KindUnreachable:         http.StatusBadGateway,
	generate.KindNonTestableType:     http.StatusUnprocessableEntity,
	generate.KindProviderUnavailable: http.StatusBadGateway,
	generate.KindSchemaValidation:    http.StatusBadGateway,
	generate.KindCancelled:           499, // client closed request
}

func (s *Server) generatePlan(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "invalid request body"})
	}
	if req.IssueKey == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "issue_key is required"})
	}

	result, err := s.service.Generate(c.Request().Context(), generate.Request{
		IssueKey:    req.IssueKey,
		Testing:     req.Testing,
		Development: req.Development,
	})
	if err != nil {
		return writeGenerateError(c, err)
	}

	resp := generateResponse{
		IssueKey: result.Issue.Key,
		Plan:     result.Plan,
		Sources:  result.Sources,
	}

	if req.Format != "" && req.Format != plan.FormatJSON {
		rendered, err := plan.Export(result.Plan, result.Issue.Key, req.Format)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: err.Error()})
		}
		resp.Rendered = rendered
	}

	if req.PostToJira {
		text := plan.JiraText(result.Plan, result.Issue.Key)
		id, updated, err := s.poster.PostComment(c.Request().Context(), result.Issue.Key, text)
		if err != nil {
			return c.JSON(http.StatusBadGateway, errorResponse{Kind: "unreachable", Message: "plan generated but post-back failed"})
		}
		resp.CommentID = id
		resp.Updated = updated
	}

	return c.JSON(http.StatusOK, resp)
}

type commentRequest struct {
	IssueKey string `json:"issue_key"`
	Text     string `json:"text"`
}

func (s *Server) postComment(c echo.Context) error {
	var req commentRequest
	if err := c.Bind(&req); err != nil || req.IssueKey == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "issue_key and text are required"})
	}

	id, updated, err := s.poster.PostComment(c.Request().Context(), req.IssueKey, req.Text)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorResponse{Kind: "unreachable", Message: "comment post failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"comment_id": id,
		"updated":    updated,
	})
}

func (s *Server) getHealth(c echo.Context) error {
	snap := s.health.Snapshot()
	if snap == nil {
		fresh := s.health.Check(c.Request().Context())
		snap = &fresh
	}

	status := http.StatusOK
	if !snap.Healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, snap)
}

func writeGenerateError(c echo.Context, err error) error {
	var genErr *generate.Error
	if errors.As(err, &genErr) {
		status, ok := kindStatus[genErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, errorResponse{Kind: string(genErr.Kind), Message: genErr.Message})
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "generation failed"})
}
