package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/agent"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
)

// Researcher produces research briefs.
type Researcher interface {
	Research(ctx context.Context, req agent.Request) (*agent.Brief, error)
}

// ResearchInput describes one research run.
type ResearchInput struct {
	Target  string `json:"target"`
	Context string `json:"context,omitempty"`

	// Index stores the finished brief as an outreach record.
	Index        bool   `json:"index,omitempty"`
	Company      string `json:"company,omitempty"`
	Industry     string `json:"industry,omitempty"`
	DealCategory string `json:"deal_category,omitempty"`
	EmailSent    bool   `json:"email_sent,omitempty"`
}

// ResearchOutput is the brief plus the outcome of optional indexing.
type ResearchOutput struct {
	Brief          *agent.Brief `json:"brief"`
	IndexedChunkID string       `json:"indexed_chunk_id,omitempty"`
	IndexError     string       `json:"index_error,omitempty"`
}

type ResearchService struct {
	researcher Researcher
	knowledge  *KnowledgeService
	now        func() time.Time
	logger     *zap.Logger
}

func NewResearchService(researcher Researcher, knowledge *KnowledgeService, logger *zap.Logger) *ResearchService {
	return &ResearchService{researcher: researcher, knowledge: knowledge, now: time.Now, logger: logging.OrNop(logger)}
}

// Run researches input.Target. Only model failures are returned as errors;
// an indexing failure is reported in the output.
func (s *ResearchService) Run(ctx context.Context, input ResearchInput) (*ResearchOutput, error) {
	input.Target = strings.TrimSpace(input.Target)
	if input.Target == "" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrMissingRequiredField.Message,
			errors.New("target is required"))
	}

	brief, err := s.researcher.Research(ctx, agent.Request{Target: input.Target, Context: input.Context})
	if err != nil {
		return nil, err
	}

	out := &ResearchOutput{Brief: brief}
	if !input.Index {
		return out, nil
	}

	company := input.Company
	if company == "" {
		company = companyFromTarget(input.Target)
	}
	record := domain.NewOutreachRecord(company, input.Industry, input.DealCategory, brief.Text, s.now())
	record.EmailSent = input.EmailSent
	record.Query = input.Target

	if s.knowledge == nil {
		out.IndexError = domain.ErrStoreUnavailable.Message
		return out, nil
	}
	id, err := s.knowledge.IndexOutreach(ctx, record)
	if err != nil {
		s.logger.Warn("outreach indexing failed", zap.String("run_id", brief.RunID), zap.Error(err))
		out.IndexError = err.Error()
		return out, nil
	}
	out.IndexedChunkID = id
	return out, nil
}

// companyFromTarget takes the company name from the first line of a free
// form target, stopping at the first separator.
func companyFromTarget(target string) string {
	line := strings.TrimSpace(strings.SplitN(target, "\n", 2)[0])
	if i := strings.IndexAny(line, ",;(|"); i > 0 {
		line = line[:i]
	}
	if i := strings.Index(line, " - "); i > 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
