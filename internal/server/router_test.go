package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/outreachai/internal/agent"
	"github.com/cloo-solutions/outreachai/internal/api/handlers"
	"github.com/cloo-solutions/outreachai/internal/api/middleware"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/service"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockResearchService struct {
	mock.Mock
}

func (m *MockResearchService) Run(ctx context.Context, input service.ResearchInput) (*service.ResearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResearchOutput), args.Error(1)
}

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func (m *MockKnowledgeService) IndexOutreach(ctx context.Context, record *domain.OutreachRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockKnowledgeService) Status() service.StatusOutput {
	args := m.Called()
	return args.Get(0).(service.StatusOutput)
}

func setupRouter(validator middleware.TokenValidator) (http.Handler, *MockResearchService, *MockKnowledgeService) {
	researchSvc := new(MockResearchService)
	knowledgeSvc := new(MockKnowledgeService)

	router := NewRouter(RouterConfig{
		TokenValidator:   validator,
		ResearchHandler:  handlers.NewResearchHandler(researchSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
	})
	return router, researchSvc, knowledgeSvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter(new(MockTokenValidator))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _, _ := setupRouter(new(MockTokenValidator))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "outreachai_research_turns")
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	validator := new(MockTokenValidator)
	router, _, _ := setupRouter(validator)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/research"},
		{http.MethodPost, "/v1/knowledge/search"},
		{http.MethodPost, "/v1/knowledge/outreach"},
		{http.MethodGet, "/v1/knowledge/status"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	validator.AssertExpectations(t)
}

func TestRouter_AuthenticatedRoutes_WithValidAuth(t *testing.T) {
	validator := new(MockTokenValidator)
	router, researchSvc, _ := setupRouter(validator)

	validator.On("ValidateToken", mock.Anything, "s3cret").Return("crm", nil)
	researchSvc.On("Run", mock.Anything, service.ResearchInput{Target: "Acme Corp"}).
		Return(&service.ResearchOutput{Brief: &agent.Brief{Text: "brief", Mode: agent.ModeLegacy}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"target":"Acme Corp"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	validator.AssertExpectations(t)
	researchSvc.AssertExpectations(t)
}

func TestRouter_NoValidatorLeavesV1Open(t *testing.T) {
	router, _, knowledgeSvc := setupRouter(nil)
	knowledgeSvc.On("Status").Return(service.StatusOutput{Ready: true, Total: 12, BySource: map[string]int{"product": 12}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/knowledge/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	knowledgeSvc.AssertExpectations(t)
}

func TestRouter_BodyLimit(t *testing.T) {
	researchSvc := new(MockResearchService)
	router := NewRouter(RouterConfig{
		ResearchHandler:  handlers.NewResearchHandler(researchSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(new(MockKnowledgeService)),
		MaxBodyBytes:     16,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"target":"a very long target name"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	researchSvc.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}
