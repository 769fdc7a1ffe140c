// Package mcp exposes the evaluation engine over the Model Context Protocol
// so an agent can start runs, poll progress, and fetch reports.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"envjudge/internal/config"
	"envjudge/internal/evaluate"
	"envjudge/internal/format"
	"envjudge/internal/logging"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and manages evaluation sessions. One
// session runs at a time; a finished session is replaced on the next start.
type Server struct {
	MCPServer *sdkmcp.Server
	Config    *config.Config

	mu      sync.Mutex
	session *Session
}

// NewServer creates an MCP server with evaluation tools.
func NewServer(cfg *config.Config) *Server {
	s := &Server{Config: cfg}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "envjudge", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_evaluation",
		Description: "Start an evaluation run over a results directory against golden answers. Spawns the runner and returns a session ID.",
	}, s.handleStartEvaluation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_status",
		Description: "Get progress counters for the current evaluation session without blocking.",
	}, s.handleGetStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_report",
		Description: "Get the final evaluation report with per-category metrics. Blocks until the run completes.",
	}, s.handleGetReport)
}

// --- Tool input/output types ---

type startEvaluationInput struct {
	ResultsDir string `json:"results_dir" jsonschema:"directory of per-repo analysis result folders"`
	GoldenDir  string `json:"golden_dir" jsonschema:"directory of golden README.json answer folders"`
	Scorer     string `json:"scorer,omitempty" jsonschema:"similarity scorer (openai, lexical; default openai)"`
	Workers    int    `json:"workers,omitempty" jsonschema:"number of parallel workers (default from config)"`
	Force      bool   `json:"force,omitempty" jsonschema:"cancel any existing session and start fresh"`
}

type startEvaluationOutput struct {
	SessionID      string `json:"session_id"`
	TotalDocuments int    `json:"total_documents"`
	Scorer         string `json:"scorer"`
	Status         string `json:"status"`
}

type getStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from start_evaluation"`
}

type getStatusOutput struct {
	Progress
	Error string `json:"error,omitempty"`
}

type getReportInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from start_evaluation"`
}

type getReportOutput struct {
	Status  string            `json:"status"`
	Report  string            `json:"report,omitempty"`
	Summary *evaluate.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleStartEvaluation(ctx context.Context, _ *sdkmcp.CallToolRequest, input startEvaluationInput) (*sdkmcp.CallToolResult, startEvaluationOutput, error) {
	logger := logging.New("mcp-server")
	s.mu.Lock()
	if s.session != nil {
		select {
		case <-s.session.Done():
			logger.Info("replacing completed session", "old_id", s.session.ID)
			s.session.Cancel()
		default:
			if input.Force {
				logger.Warn("force-replacing active session", "old_id", s.session.ID)
				s.session.Cancel()
			} else {
				s.mu.Unlock()
				return nil, startEvaluationOutput{}, fmt.Errorf("an evaluation session is already running (id=%s)", s.session.ID)
			}
		}
	}
	s.session = nil
	s.mu.Unlock()

	sess, err := NewSession(StartEvaluationInput{
		ResultsDir: input.ResultsDir,
		GoldenDir:  input.GoldenDir,
		Scorer:     input.Scorer,
		Workers:    input.Workers,
	}, s.Config)
	if err != nil {
		return nil, startEvaluationOutput{}, fmt.Errorf("start evaluation: %w", err)
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	return nil, startEvaluationOutput{
		SessionID:      sess.ID,
		TotalDocuments: sess.Total,
		Scorer:         sess.Scorer,
		Status:         string(StateRunning),
	}, nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *sdkmcp.CallToolRequest, input getStatusInput) (*sdkmcp.CallToolResult, getStatusOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getStatusOutput{}, err
	}

	out := getStatusOutput{Progress: sess.Progress()}
	if sessErr := sess.Err(); sessErr != nil {
		out.Error = sessErr.Error()
	}
	return nil, out, nil
}

func (s *Server) handleGetReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input getReportInput) (*sdkmcp.CallToolResult, getReportOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getReportOutput{}, err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return nil, getReportOutput{}, ctx.Err()
	}

	if sessErr := sess.Err(); sessErr != nil {
		return nil, getReportOutput{
			Status: string(StateError),
			Error:  sessErr.Error(),
		}, nil
	}

	report := sess.Report()
	if report == nil {
		return nil, getReportOutput{Status: "no_report"}, nil
	}

	return nil, getReportOutput{
		Status:  string(StateDone),
		Report:  evaluate.FormatReport(report, format.Markdown),
		Summary: &report.Summary,
	}, nil
}

// SessionID returns the current session's ID, or empty string if none.
func (s *Server) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session.ID
	}
	return ""
}

// Shutdown cancels any active session, releasing runner goroutines.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Cancel()
		s.session = nil
	}
}

func (s *Server) getSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("no active session (call start_evaluation first)")
	}
	if s.session.ID != id {
		return nil, fmt.Errorf("session_id mismatch: have %s, got %s", s.session.ID, id)
	}
	return s.session, nil
}
