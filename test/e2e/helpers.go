//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/agent"
	"github.com/cloo-solutions/outreachai/internal/api/handlers"
	"github.com/cloo-solutions/outreachai/internal/api/middleware"
	"github.com/cloo-solutions/outreachai/internal/cache"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/repository"
	"github.com/cloo-solutions/outreachai/internal/scraper"
	"github.com/cloo-solutions/outreachai/internal/server"
	"github.com/cloo-solutions/outreachai/internal/service"
	"github.com/cloo-solutions/outreachai/internal/testutil"
	"github.com/cloo-solutions/outreachai/internal/tools"
)

const apiToken = "e2e-token"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Site       *httptest.Server
	Server     *httptest.Server
	Model      *scriptedModel
	Status     knowledge.StoreStatus
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres, opens the knowledge store on it and serves the
// full router with a scripted model.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, func(url string) error {
		return repository.Migrate(url, "../../migrations", zap.NewNop())
	})

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body><nav>Home</nav><h1>Acme Plastics</h1>
<p>Acme runs 40 injection molding presses across two plants in Dayton, Ohio.</p></body></html>`)
	}))

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Site:       site,
		Model:      &scriptedModel{},
		HTTPClient: &http.Client{},
	}
	env.Status = env.OpenStore(false)
	env.Server = httptest.NewServer(env.router(env.Status))
	return env
}

// OpenStore opens a fresh store over the shared database.
func (e *E2ETestEnv) OpenStore(force bool) knowledge.StoreStatus {
	store := knowledge.NewStore(repository.NewChunkRepository(e.Pool), knowledge.NewHashEmbedder(0), zap.NewNop())
	return knowledge.Open(e.Ctx, store, force, zap.NewNop())
}

func (e *E2ETestEnv) router(status knowledge.StoreStatus) http.Handler {
	fetcher := scraper.New(e.Site.Client(), scraper.Config{}, zap.NewNop())
	dispatcher := func(store *knowledge.Store) agent.Dispatcher {
		return tools.NewRegistry(tools.RegistryConfig{Cache: cache.NewMemoryCache()}, zap.NewNop(),
			tools.Standard(nil, store, fetcher)...)
	}
	researcher := agent.NewResearcher(e.Model, status, dispatcher, agent.ResearcherConfig{}, zap.NewNop())
	knowledgeSvc := service.NewKnowledgeService(status, zap.NewNop())

	return server.NewRouter(server.RouterConfig{
		TokenValidator:   middleware.StaticToken{Token: apiToken},
		ResearchHandler:  handlers.NewResearchHandler(service.NewResearchService(researcher, knowledgeSvc, zap.NewNop())),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
	})
}

// Cleanup releases every resource started by SetupE2EEnv
func (e *E2ETestEnv) Cleanup() {
	e.Server.Close()
	e.Site.Close()
	e.Pool.Close()
	_ = e.PostgresC.Terminate(e.Ctx)
}

// APIResponse mirrors the response envelope
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	apiResp.StatusCode = resp.StatusCode
	return &apiResp, nil
}

// scriptedModel asks for the knowledge base and the target website, then
// writes a brief quoting what the tools returned.
type scriptedModel struct {
	mu    sync.Mutex
	calls int
}

func (m *scriptedModel) Complete(_ context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(req.Tools) == 0 {
		return &domain.ModelResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: "Legacy brief for Acme."}}, nil
	}

	var toolResults []string
	for _, msg := range req.Messages {
		if msg.Role == domain.RoleTool {
			toolResults = append(toolResults, msg.Content)
		}
	}
	if len(toolResults) > 0 {
		return &domain.ModelResponse{
			Message: domain.Message{Role: domain.RoleAssistant, Content: "## Brief\n" + joinLines(toolResults)},
			Usage:   domain.Usage{InputTokens: 100, OutputTokens: 50},
		}, nil
	}

	return &domain.ModelResponse{
		Message: domain.Message{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{
				{ID: "call_1", Name: tools.QueryKnowledgeBaseName, Arguments: json.RawMessage(`{"query":"injection molding OEE"}`)},
				{ID: "call_2", Name: tools.ScrapeWebsiteName, Arguments: json.RawMessage(`{"url":"` + siteURL(req) + `"}`)},
			},
		},
		Usage: domain.Usage{InputTokens: 80, OutputTokens: 20},
	}, nil
}

func siteURL(req domain.ModelRequest) string {
	for _, msg := range req.Messages {
		if msg.Role != domain.RoleUser {
			continue
		}
		for _, field := range bytes.Fields([]byte(msg.Content)) {
			if bytes.HasPrefix(field, []byte("http://")) {
				return string(field)
			}
		}
	}
	return "http://invalid.example"
}

func joinLines(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
