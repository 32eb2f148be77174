package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	assembler "github.com/final221/Prompt-Assembler"
	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/compose"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// Resource URIs.
const (
	CompositionURI = "promptasm://composition"
	SlotsURI       = "promptasm://slots"
)

// Session is the subset of *assembler.Assembler exposed as MCP tools.
type Session interface {
	Parts() []domain.Part
	Part(id string) (domain.Part, bool)
	AddPart(ctx context.Context) (domain.Part, error)
	SetContent(id, content string) bool
	SetName(id, name string) bool
	RemovePart(ctx context.Context, id string) error
	MovePart(id string, to int) error

	Compose() compose.Composition
	Preview(values map[string]string) string
	RunWith(ctx context.Context, collector ports.ValueCollector, sink ports.TextSink) domain.Outcome

	Mode() domain.ExecutionMode
	SetMode(ctx context.Context, mode domain.ExecutionMode) error

	Slots() []domain.SlotInfo
	SaveSlot(ctx context.Context, name string) (string, domain.Outcome)
	LoadSlot(ctx context.Context, key string) domain.Outcome
	DeleteSlot(ctx context.Context, key string) domain.Outcome
	ExportSlot(ctx context.Context, key string) (assembler.Export, domain.Outcome)
	ImportLoadout(ctx context.Context, fileName, text string) domain.Outcome
}

var _ Session = (*assembler.Assembler)(nil)

// OutcomeResult is the JSON body returned by tools that produce an Outcome.
type OutcomeResult struct {
	Kind   domain.OutcomeKind `json:"kind"`
	Reason domain.Reason      `json:"reason"`
	Error  string             `json:"error,omitempty"`
	Key    string             `json:"key,omitempty"`
}

// CompositionResult is the JSON body of the compose tool.
type CompositionResult struct {
	Raw       string   `json:"raw"`
	Variables []string `json:"variables"`
}

// Server exposes an assembler session as an MCP server.
type Server struct {
	session   Session
	sink      ports.TextSink
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSink sets the sink used by the run tool.
func WithSink(sink ports.TextSink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(session Session, opts ...Option) *Server {
	s := &Server{
		session:   session,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("promptasm-mcp", strings.TrimSpace(assembler.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_parts",
		mcp.WithDescription("List the prompt parts in assembly order."),
	), s.handleListParts)

	s.mcpServer.AddTool(mcp.NewTool("add_part",
		mcp.WithDescription("Append a new part. Name and content are optional."),
		mcp.WithString("name", mcp.Description("Display name of the part")),
		mcp.WithString("content", mcp.Description("Text of the part")),
	), s.handleAddPart)

	s.mcpServer.AddTool(mcp.NewTool("set_part",
		mcp.WithDescription("Edit the name and/or content of a part."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Part ID")),
		mcp.WithString("name", mcp.Description("New display name")),
		mcp.WithString("content", mcp.Description("New text")),
	), s.handleSetPart)

	s.mcpServer.AddTool(mcp.NewTool("remove_part",
		mcp.WithDescription("Delete a part."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Part ID")),
	), s.handleRemovePart)

	s.mcpServer.AddTool(mcp.NewTool("move_part",
		mcp.WithDescription("Move a part to a 0-based position."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Part ID")),
		mcp.WithNumber("to", mcp.Required(), mcp.Description("Target index")),
	), s.handleMovePart)

	s.mcpServer.AddTool(mcp.NewTool("compose",
		mcp.WithDescription("Assemble the parts and list the [[VARIABLES]] they use."),
	), s.handleCompose)

	s.mcpServer.AddTool(mcp.NewTool("preview",
		mcp.WithDescription("Render the assembled prompt with variable values. Missing values render empty."),
		mcp.WithObject("values", mcp.Description("Map of variable name to value")),
	), s.handlePreview)

	s.mcpServer.AddTool(mcp.NewTool("run",
		mcp.WithDescription("Assemble, substitute and deliver the prompt using the current execution mode."),
		mcp.WithObject("values", mcp.Description("Map of variable name to value")),
	), s.handleRun)

	s.mcpServer.AddTool(mcp.NewTool("set_mode",
		mcp.WithDescription("Set the execution mode."),
		mcp.WithString("mode", mcp.Required(), mcp.Enum("clipboard", "transfer", "execute")),
	), s.handleSetMode)

	s.mcpServer.AddTool(mcp.NewTool("list_slots",
		mcp.WithDescription("List saved slots by display name."),
	), s.handleListSlots)

	s.mcpServer.AddTool(mcp.NewTool("save_slot",
		mcp.WithDescription("Save the current parts as a named slot."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	), s.handleSaveSlot)

	s.mcpServer.AddTool(mcp.NewTool("load_slot",
		mcp.WithDescription("Replace the current parts with a saved slot."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Slot key")),
	), s.handleLoadSlot)

	s.mcpServer.AddTool(mcp.NewTool("delete_slot",
		mcp.WithDescription("Delete a saved slot."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Slot key")),
	), s.handleDeleteSlot)

	s.mcpServer.AddTool(mcp.NewTool("export_slot",
		mcp.WithDescription("Render a saved slot as loadout text."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Slot key")),
	), s.handleExportSlot)

	s.mcpServer.AddTool(mcp.NewTool("import_loadout",
		mcp.WithDescription("Replace the current parts with loadout text and save it as a slot."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Loadout text")),
		mcp.WithString("file_name", mcp.Description("File name used to name the new slot")),
	), s.handleImportLoadout)
}

func (s *Server) handleListParts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Parts())
}

func (s *Server) handleAddPart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.session.AddPart(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add part failed: %v", err)), nil
	}
	args := req.GetArguments()
	if name, ok := args["name"].(string); ok {
		s.session.SetName(p.ID, name)
	}
	if content, ok := args["content"].(string); ok {
		s.session.SetContent(p.ID, content)
	}
	p, _ = s.session.Part(p.ID)
	return jsonResult(p)
}

func (s *Server) handleSetPart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.session.Part(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("part %q not found", id)), nil
	}
	args := req.GetArguments()
	if name, ok := args["name"].(string); ok {
		s.session.SetName(id, name)
	}
	if content, ok := args["content"].(string); ok {
		s.session.SetContent(id, content)
	}
	p, _ := s.session.Part(id)
	return jsonResult(p)
}

func (s *Server) handleRemovePart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.RemovePart(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("remove failed: %v", err)), nil
	}
	return jsonResult(s.session.Parts())
}

func (s *Server) handleMovePart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireInt("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.MovePart(id, to); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("move failed: %v", err)), nil
	}
	return jsonResult(s.session.Parts())
}

func (s *Server) handleCompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(compositionResult(s.session.Compose()))
}

func (s *Server) handlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values, err := valuesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.session.Preview(values)), nil
}

func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values, err := valuesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := s.session.RunWith(ctx, ports.StaticValues(values), s.sink)
	s.logger.Info("run finished", "outcome", out.String())
	return outcomeResult(out, "")
}

func (s *Server) handleSetMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := domain.ParseMode(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.SetMode(ctx, mode); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("set mode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(s.session.Mode().String()), nil
}

func (s *Server) handleListSlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(slotList(s.session.Slots()))
}

func (s *Server) handleSaveSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, out := s.session.SaveSlot(ctx, name)
	return outcomeResult(out, key)
}

func (s *Server) handleLoadSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcomeResult(s.session.LoadSlot(ctx, key), key)
}

func (s *Server) handleDeleteSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcomeResult(s.session.DeleteSlot(ctx, key), key)
}

func (s *Server) handleExportSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	exp, out := s.session.ExportSlot(ctx, key)
	if !out.OK() {
		return outcomeResult(out, key)
	}
	return mcp.NewToolResultText(exp.Text), nil
}

func (s *Server) handleImportLoadout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fileName := req.GetString("file_name", "")
	return outcomeResult(s.session.ImportLoadout(ctx, fileName, text), "")
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CompositionURI, "Assembled prompt",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(CompositionURI, compositionResult(s.session.Compose()))
	})

	s.mcpServer.AddResource(mcp.NewResource(SlotsURI, "Saved slots",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(SlotsURI, slotList(s.session.Slots()))
	})
}

// --- helpers ---

// valuesArg decodes the optional "values" object. Non-string values are converted.
func valuesArg(req mcp.CallToolRequest) (map[string]string, error) {
	raw, ok := req.GetArguments()["values"]
	if !ok || raw == nil {
		return map[string]string{}, nil
	}
	values := map[string]string{}
	if err := mapstructure.WeakDecode(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid values: %w", err)
	}
	return values, nil
}

func compositionResult(c compose.Composition) CompositionResult {
	vars := c.Variables
	if vars == nil {
		vars = []string{}
	}
	return CompositionResult{Raw: c.Raw, Variables: vars}
}

func slotList(slots []domain.SlotInfo) []domain.SlotInfo {
	if slots == nil {
		return []domain.SlotInfo{}
	}
	return slots
}

func outcomeResult(out domain.Outcome, key string) (*mcp.CallToolResult, error) {
	res := OutcomeResult{Kind: out.Kind, Reason: out.Reason, Key: key}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	if out.Kind == domain.OutcomeFailure {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
