package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/buildconfig"
	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const mcpListTimeout = 10 * time.Second

type mcpServer struct {
	name    string
	session *mcp.ClientSession
	tools   map[string]bool
}

// MCPPool holds the connected MCP servers. Each server's tool names are the
// capabilities it advertises.
type MCPPool struct {
	mu      sync.RWMutex
	servers map[string]*mcpServer
	logger  *zap.Logger
}

func NewMCPPool(logger *zap.Logger) *MCPPool {
	return &MCPPool{
		servers: make(map[string]*mcpServer),
		logger:  logger,
	}
}

// ConnectStreamable connects to a streamable-HTTP MCP server. A non-empty
// apiKey is sent as a bearer token on every request.
func (p *MCPPool) ConnectStreamable(ctx context.Context, name, endpoint, apiKey string) error {
	var httpClient *http.Client
	if apiKey != "" {
		httpClient = &http.Client{Transport: &bearerRoundTripper{base: http.DefaultTransport, token: apiKey}}
	}
	return p.Attach(ctx, name, &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: httpClient})
}

// Attach connects over an arbitrary transport and lists the server's tools.
// Re-attaching a name replaces the previous session.
func (p *MCPPool) Attach(ctx context.Context, name string, transport mcp.Transport) error {
	client := mcp.NewClient(&mcp.Implementation{Name: "sentinel", Version: buildconfig.Version()}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("%w: connect MCP server %s: %v", ErrUnreachable, name, err)
	}

	tools, err := listTools(ctx, session)
	if err != nil {
		_ = session.Close()
		return err
	}

	p.mu.Lock()
	old := p.servers[name]
	p.servers[name] = &mcpServer{name: name, session: session, tools: tools}
	p.mu.Unlock()

	if old != nil {
		_ = old.session.Close()
	}

	p.logger.Info("MCP server connected", zap.String("server", name), zap.Int("tools", len(tools)))
	return nil
}

func listTools(ctx context.Context, session *mcp.ClientSession) (map[string]bool, error) {
	listCtx, cancel := context.WithTimeout(ctx, mcpListTimeout)
	defer cancel()

	tools := make(map[string]bool)
	for tool, err := range session.Tools(listCtx, nil) {
		if err != nil {
			return nil, fmt.Errorf("%w: list MCP tools: %v", ErrUnreachable, err)
		}
		tools[tool.Name] = true
	}
	return tools, nil
}

// Refresh re-lists a server's tools, which doubles as its health check.
func (p *MCPPool) Refresh(ctx context.Context, name string) error {
	p.mu.RLock()
	srv, ok := p.servers[name]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: MCP server %s is not connected", ErrUnreachable, name)
	}

	tools, err := listTools(ctx, srv.session)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if cur, ok := p.servers[name]; ok && cur == srv {
		cur.tools = tools
	}
	p.mu.Unlock()
	return nil
}

// Has reports whether a server name is connected.
func (p *MCPPool) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.servers[name]
	return ok
}

// Servers returns the connected server names, sorted.
func (p *MCPPool) Servers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.servers))
	for name := range p.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities returns the tools advertised by a server, sorted.
func (p *MCPPool) Capabilities(name string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	srv, ok := p.servers[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(srv.tools))
	for tool := range srv.tools {
		out = append(out, tool)
	}
	sort.Strings(out)
	return out
}

// Locate returns the server advertising capability. The preferred server
// wins when it advertises it; otherwise the lexically first one does.
func (p *MCPPool) Locate(capability, preferred string) (string, *mcp.ClientSession, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if srv, ok := p.servers[preferred]; ok && srv.tools[capability] {
		return srv.name, srv.session, nil
	}

	names := make([]string, 0, len(p.servers))
	for name, srv := range p.servers {
		if srv.tools[capability] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoCapableServer, capability)
	}
	sort.Strings(names)
	srv := p.servers[names[0]]
	return srv.name, srv.session, nil
}

// Close closes every session.
func (p *MCPPool) Close() error {
	p.mu.Lock()
	servers := p.servers
	p.servers = make(map[string]*mcpServer)
	p.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", srv.name, err))
		}
	}
	return errors.Join(errs...)
}

type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(clone)
}

// MCPBackend forwards predictions to the MCP server advertising the needed
// capability. Config.Endpoint names the preferred server: a pool name, or an
// http(s) URL that Load connects under that same name.
type MCPBackend struct {
	modelID string
	cfg     domain.ModelConfig
	pool    *MCPPool
	logger  *zap.Logger
}

func NewMCPBackend(modelID string, cfg domain.ModelConfig, pool *MCPPool, logger *zap.Logger) *MCPBackend {
	return &MCPBackend{
		modelID: modelID,
		cfg:     cfg,
		pool:    pool,
		logger:  logger,
	}
}

func (b *MCPBackend) Load(ctx context.Context) error {
	if len(b.cfg.Capabilities) == 0 {
		return fmt.Errorf("MCP model requires at least one capability")
	}
	endpoint := b.cfg.Endpoint
	if endpoint == "" || b.pool.Has(endpoint) || !isHTTPURL(endpoint) {
		return nil
	}
	return b.pool.ConnectStreamable(ctx, endpoint, endpoint, b.cfg.APIKey)
}

// TestConnection refreshes every server backing one of the model's
// capabilities and fails when any capability is left without a server.
func (b *MCPBackend) TestConnection(ctx context.Context) error {
	refreshed := make(map[string]bool)
	for _, capability := range b.cfg.Capabilities {
		name, _, err := b.pool.Locate(capability, b.cfg.Endpoint)
		if err != nil {
			return err
		}
		if refreshed[name] {
			continue
		}
		if err := b.pool.Refresh(ctx, name); err != nil {
			return err
		}
		refreshed[name] = true
	}
	return nil
}

func (b *MCPBackend) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	capability := capabilityFor(input, b.cfg)
	server, session, err := b.pool.Locate(capability, b.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: capability,
		Arguments: wireRequest{
			ModelID:  b.modelID,
			Text:     input.Text,
			Features: input.Features,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call MCP tool %s on %s: %w", capability, server, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: MCP call returned nil result", ErrInvalidResponse)
	}
	if res.IsError {
		return nil, fmt.Errorf("MCP tool %s on %s failed: %s", capability, server, firstTextContent(res.Content))
	}

	raw, err := resultPayload(res)
	if err != nil {
		return nil, err
	}
	w, err := decodeWirePrediction(raw)
	if err != nil {
		return nil, err
	}
	return w.toPrediction("", capability, domain.BackendMCP), nil
}

func (b *MCPBackend) Train(ctx context.Context, examples []domain.TrainingExample, mode domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	return nil, nil, ErrTrainingUnsupported
}

func resultPayload(res *mcp.CallToolResult) ([]byte, error) {
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return raw, nil
	}
	text := firstTextContent(res.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: MCP result has no content", ErrInvalidResponse)
	}
	return []byte(text), nil
}

func firstTextContent(content []mcp.Content) string {
	for _, part := range content {
		if txt, ok := part.(*mcp.TextContent); ok {
			return txt.Text
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
