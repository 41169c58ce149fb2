package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/outreachai/internal/api"
	"github.com/cloo-solutions/outreachai/internal/service"
)

type ResearchService interface {
	Run(ctx context.Context, input service.ResearchInput) (*service.ResearchOutput, error)
}

type ResearchHandler struct {
	svc ResearchService
}

func NewResearchHandler(svc ResearchService) *ResearchHandler {
	return &ResearchHandler{svc: svc}
}

type ResearchRequest struct {
	Target       string `json:"target"`
	Context      string `json:"context,omitempty"`
	Index        bool   `json:"index,omitempty"`
	Company      string `json:"company,omitempty"`
	Industry     string `json:"industry,omitempty"`
	DealCategory string `json:"deal_category,omitempty"`
	EmailSent    bool   `json:"email_sent,omitempty"`
}

// Run handles POST /v1/research. The request blocks until the brief is ready.
func (h *ResearchHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Target) == "" {
		api.Error(w, http.StatusBadRequest, "target is required")
		return
	}

	out, err := h.svc.Run(r.Context(), service.ResearchInput{
		Target:       req.Target,
		Context:      req.Context,
		Index:        req.Index,
		Company:      req.Company,
		Industry:     req.Industry,
		DealCategory: req.DealCategory,
		EmailSent:    req.EmailSent,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}
