package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// HeaderRunID carries a caller-chosen run ID on /api/ask and echoes it back.
const HeaderRunID = "X-Run-ID"

type questionRequest struct {
	Question string `json:"question"`
	// RunID lets the caller subscribe to progress before asking.
	RunID string `json:"run_id,omitempty"`
}

type askResponse struct {
	RunID     string           `json:"run_id"`
	Progress  string           `json:"progress_channel,omitempty"`
	Answer    string           `json:"answer"`
	Fallback  bool             `json:"fallback"`
	Rounds    int              `json:"rounds"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Trace     []compiler.Round `json:"trace,omitempty"`
}

// TaskView is the JSON form of a planned task.
type TaskView struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Action       string `json:"action"`
	Dependencies []int  `json:"dependencies"`
	Thought      string `json:"thought,omitempty"`
	IsJoin       bool   `json:"is_join"`
}

func bindQuestion(c echo.Context) (questionRequest, error) {
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "question required")
	}
	return req, nil
}

// requestedRunID reads the caller's run ID from the header or the body. It
// must be a UUID since it becomes part of a pub/sub channel name.
func requestedRunID(c echo.Context, req questionRequest) (string, error) {
	id := strings.TrimSpace(c.Request().Header.Get(HeaderRunID))
	if id == "" {
		id = strings.TrimSpace(req.RunID)
	}
	if id == "" {
		return "", nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "run_id must be a UUID")
	}
	return parsed.String(), nil
}

// ask runs the full plan/execute/join loop. ?trace=true includes every round.
func (s *Server) ask(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	runID, err := requestedRunID(c, req)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if runID != "" {
		ctx = compiler.ContextWithRunID(ctx, runID)
	}
	res, err := s.runner.RunDetailed(ctx, req.Question)
	if err != nil {
		return planningError(err)
	}
	c.Response().Header().Set(HeaderRunID, res.RunID)
	out := askResponse{
		RunID:     res.RunID,
		Answer:    res.Answer,
		Fallback:  res.Fallback,
		Rounds:    len(res.Rounds),
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if s.progress != nil {
		out.Progress = s.progress.Channel(res.RunID)
	}
	if c.QueryParam("trace") == "true" {
		out.Trace = res.Rounds
	}
	return c.JSON(http.StatusOK, out)
}

// plan returns the parsed task graph without executing it.
func (s *Server) plan(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	g, err := s.runner.Tasks(c.Request().Context(), req.Question)
	if err != nil {
		return planningError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": TaskViews(g)})
}

func (s *Server) run(c echo.Context) error {
	e, ok, err := s.audits.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, e)
}

// TaskViews flattens a graph in index order.
func TaskViews(g compiler.Graph) []TaskView {
	out := make([]TaskView, 0, len(g))
	for _, idx := range g.Indices() {
		t := g[idx]
		deps := t.Dependencies
		if deps == nil {
			deps = []int{}
		}
		out = append(out, TaskView{
			Index:        t.Index,
			Name:         t.Name,
			Action:       t.Action(),
			Dependencies: deps,
			Thought:      t.Thought,
			IsJoin:       t.IsJoin,
		})
	}
	return out
}

func planningError(err error) error {
	switch {
	case errors.Is(err, compiler.ErrMalformedPlan), errors.Is(err, compiler.ErrUnknownTool):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusRequestTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
