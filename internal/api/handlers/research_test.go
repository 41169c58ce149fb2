package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/outreachai/internal/agent"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/service"
)

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

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(method, path, bytes.NewReader(raw))
}

func TestResearchHandler_Run_Success(t *testing.T) {
	mockSvc := new(MockResearchService)
	handler := NewResearchHandler(mockSvc)

	input := service.ResearchInput{Target: "Acme Corp, Austin TX", Context: "met at SXSW", Index: true}
	mockSvc.On("Run", mock.Anything, input).Return(&service.ResearchOutput{
		Brief:          &agent.Brief{Text: "Acme runs 40 retail sites.", Mode: agent.ModeAgentic, Turns: 3},
		IndexedChunkID: "outreach-1",
	}, nil)

	req := jsonRequest(t, http.MethodPost, "/v1/research", ResearchRequest{
		Target:  "Acme Corp, Austin TX",
		Context: "met at SXSW",
		Index:   true,
	})
	w := httptest.NewRecorder()
	handler.Run(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "outreach-1", data["indexed_chunk_id"])
	brief := data["brief"].(map[string]interface{})
	assert.Equal(t, "Acme runs 40 retail sites.", brief["text"])
	mockSvc.AssertExpectations(t)
}

func TestResearchHandler_Run_Validation(t *testing.T) {
	mockSvc := new(MockResearchService)
	handler := NewResearchHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Run(w, httptest.NewRequest(http.MethodPost, "/v1/research", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler.Run(w, jsonRequest(t, http.MethodPost, "/v1/research", ResearchRequest{Target: "  "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "target is required")

	mockSvc.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestResearchHandler_Run_ModelError(t *testing.T) {
	mockSvc := new(MockResearchService)
	handler := NewResearchHandler(mockSvc)

	modelErr := domain.NewDomainErrorWithCause(domain.ErrCodeModelCall, "model call failed", errors.New("rate limited"))
	mockSvc.On("Run", mock.Anything, mock.Anything).Return(nil, modelErr)

	w := httptest.NewRecorder()
	handler.Run(w, jsonRequest(t, http.MethodPost, "/v1/research", ResearchRequest{Target: "Acme"}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrCodeModelCall, resp["code"])
}
