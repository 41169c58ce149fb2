package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

// DispatcherFactory builds the tool dispatcher around a ready store.
type DispatcherFactory func(store *knowledge.Store) Dispatcher

// ResearcherConfig configures both research modes.
type ResearcherConfig struct {
	Loop LoopConfig
	// Background is seller context folded into the legacy prompt.
	Background string
}

// Researcher is the research entry point. It runs the agentic loop when the
// knowledge store is ready and the legacy single-turn prompt otherwise.
type Researcher struct {
	model  Model
	status knowledge.StoreStatus
	loop   *Loop
	cfg    ResearcherConfig
	logger *zap.Logger
}

func NewResearcher(model Model, status knowledge.StoreStatus, tools DispatcherFactory, cfg ResearcherConfig, logger *zap.Logger) *Researcher {
	logger = logging.OrNop(logger)
	r := &Researcher{model: model, status: status, cfg: cfg, logger: logger}
	if ready, ok := status.(knowledge.Ready); ok && tools != nil {
		r.loop = NewLoop(model, tools(ready.Store), cfg.Loop, logger)
	}
	return r
}

// Mode reports which research mode Research will use.
func (r *Researcher) Mode() Mode {
	if r.loop != nil {
		return ModeAgentic
	}
	return ModeLegacy
}

// Status returns the store status the researcher was built with.
func (r *Researcher) Status() knowledge.StoreStatus {
	return r.status
}

// Research produces a brief for req. Errors are always ModelCallError.
func (r *Researcher) Research(ctx context.Context, req Request) (*Brief, error) {
	runID := uuid.NewString()
	mode := r.Mode()
	ctx, span := telemetry.StartSpan(ctx, "research.run", telemetry.SpanAttributes{
		RunID:     runID,
		Mode:      string(mode),
		Operation: "research",
	})
	defer span.End()

	logger := r.logger.With(zap.String("run_id", runID), zap.String("mode", string(mode)))
	logger.Info("research started", zap.String("target", firstLine(req.Target)))

	var (
		brief *Brief
		err   error
	)
	if r.loop != nil {
		brief, err = r.loop.Run(ctx, req)
	} else {
		brief, err = r.legacy(ctx, req)
	}
	if err != nil {
		span.SetError(err)
		telemetry.RecordResearchRun(string(mode), "error", 0)
		logger.Error("research failed", zap.Error(err))
		return nil, err
	}

	brief.RunID = runID
	if unavailable, ok := r.status.(knowledge.Unavailable); ok && unavailable.Reason != nil {
		brief.Degraded = unavailable.Reason.Error()
	} else if brief.Mode == ModeLegacy {
		brief.Degraded = domain.ErrStoreUnavailable.Message
	}

	outcome := "ok"
	if brief.Partial {
		outcome = "partial"
	}
	telemetry.RecordResearchRun(string(mode), outcome, brief.Turns)
	logger.Info("research complete",
		zap.Int("turns", brief.Turns),
		zap.Int("tool_calls", brief.ToolCalls),
		zap.Int("tool_errors", brief.ToolErrors),
		zap.Int("input_tokens", brief.Usage.InputTokens),
		zap.Int("output_tokens", brief.Usage.OutputTokens),
		zap.Bool("partial", brief.Partial))
	return brief, nil
}

// legacy is one tool-free model turn.
func (r *Researcher) legacy(ctx context.Context, req Request) (*Brief, error) {
	l := NewLoop(r.model, nil, r.cfg.Loop, r.logger)
	conv := NewConversation(
		domain.SystemMessage(legacySystem(r.cfg.Background)),
		domain.UserMessage(legacyUserPrompt(req.Target, req.Context)),
	)
	resp, err := l.complete(ctx, 1, domain.ModelRequest{
		Messages:    conv.Messages(),
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	msg := resp.Message
	msg.Role = domain.RoleAssistant
	msg.ToolCalls = nil
	conv = conv.Append(msg)

	brief := &Brief{
		Mode:         ModeLegacy,
		Turns:        1,
		Usage:        resp.Usage,
		Conversation: conv,
		Text:         strings.TrimSpace(msg.Content),
	}
	if brief.Text == "" {
		brief.Text = synthesize(req.Target, conv)
		brief.Partial = true
	}
	return brief, nil
}
