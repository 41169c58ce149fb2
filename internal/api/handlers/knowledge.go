package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/outreachai/internal/api"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/service"
)

type KnowledgeService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
	IndexOutreach(ctx context.Context, record *domain.OutreachRecord) (string, error)
	Status() service.StatusOutput
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type SearchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Expand   bool    `json:"expand,omitempty"`
}

type SearchResponse struct {
	Results []*service.SearchResult `json:"results"`
}

type OutreachRequest struct {
	Company      string `json:"company"`
	Industry     string `json:"industry,omitempty"`
	DealCategory string `json:"deal_category,omitempty"`
	Brief        string `json:"brief,omitempty"`
	Query        string `json:"query,omitempty"`
	EmailSent    bool   `json:"email_sent,omitempty"`
}

type OutreachResponse struct {
	ChunkID string `json:"chunk_id"`
}

func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		api.Error(w, http.StatusBadRequest, "top_k must be positive")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:    req.Query,
		TopK:     req.TopK,
		MinScore: req.MinScore,
		Expand:   req.Expand,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if results == nil {
		results = []*service.SearchResult{}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: results})
}

// IndexOutreach stores a completed outreach record as a past_outreach chunk.
func (h *KnowledgeHandler) IndexOutreach(w http.ResponseWriter, r *http.Request) {
	var req OutreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := domain.NewOutreachRecord(req.Company, req.Industry, req.DealCategory, req.Brief, time.Now().UTC())
	record.Query = req.Query
	record.EmailSent = req.EmailSent
	if err := domain.ValidateOutreachRecord(record); err != nil {
		api.HandleError(w, err)
		return
	}

	id, err := h.svc.IndexOutreach(r.Context(), record)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, OutreachResponse{ChunkID: id})
}

func (h *KnowledgeHandler) Status(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Status())
}
