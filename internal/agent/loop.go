// Package agent runs the bounded research conversation between the language
// model and the research tools, and selects the legacy single-turn mode when
// the knowledge store is unavailable.
package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

const (
	DefaultMaxTurns       = 5
	DefaultToolResultMax  = 3000
	DefaultToolParallel   = 4
	truncatedMarker       = "\n\n[...truncated]"
	toolErrorPrefix       = "Error:"
	emptyFindingsFallback = "No research findings could be gathered for this target."
)

// Model completes one conversation turn.
type Model interface {
	Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error)
}

// Dispatcher executes tool calls. Dispatch never fails; problems are
// reported in the returned text.
type Dispatcher interface {
	Definitions() []domain.ToolDefinition
	Dispatch(ctx context.Context, call domain.ToolCall) string
}

type Mode string

const (
	ModeAgentic Mode = "agentic"
	ModeLegacy  Mode = "legacy"
)

// Brief is the outcome of one research run. Both modes produce it.
type Brief struct {
	RunID        string       `json:"run_id"`
	Text         string       `json:"text"`
	Mode         Mode         `json:"mode"`
	Turns        int          `json:"turns"`
	ToolCalls    int          `json:"tool_calls"`
	ToolErrors   int          `json:"tool_errors"`
	Usage        domain.Usage `json:"usage"`
	Partial      bool         `json:"partial"`
	Degraded     string       `json:"degraded,omitempty"`
	Conversation Conversation `json:"conversation"`
}

// Request describes the research target.
type Request struct {
	Target  string
	Context string
}

// LoopConfig bounds a run. A nil Temperature leaves the choice to the model.
type LoopConfig struct {
	MaxTurns      int
	Temperature   *float32
	MaxTokens     int
	ToolResultMax int
	Parallelism   int
}

// Loop drives the multi-turn tool-use conversation.
type Loop struct {
	model      Model
	dispatcher Dispatcher
	cfg        LoopConfig
	logger     *zap.Logger
}

func NewLoop(model Model, dispatcher Dispatcher, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.ToolResultMax <= 0 {
		cfg.ToolResultMax = DefaultToolResultMax
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultToolParallel
	}
	return &Loop{model: model, dispatcher: dispatcher, cfg: cfg, logger: logging.OrNop(logger)}
}

// Run researches req.Target. The model is called at most MaxTurns times; the
// last call offers no tools and asks for the final brief. Only model failures
// are returned as errors.
func (l *Loop) Run(ctx context.Context, req Request) (*Brief, error) {
	conv := NewConversation(
		domain.SystemMessage(agenticSystemPrompt),
		domain.UserMessage(agenticUserPrompt(req.Target, req.Context)),
	)
	brief := &Brief{Mode: ModeAgentic}

	for turn := 1; turn <= l.cfg.MaxTurns; turn++ {
		final := turn == l.cfg.MaxTurns
		modelReq := domain.ModelRequest{
			Temperature: l.cfg.Temperature,
			MaxTokens:   l.cfg.MaxTokens,
		}
		if final {
			if turn > 1 {
				conv = conv.Append(domain.UserMessage(wrapUpInstruction))
				l.logger.Info("turn budget reached, requesting final brief", zap.Int("max_turns", l.cfg.MaxTurns))
			}
		} else {
			modelReq.Tools = l.dispatcher.Definitions()
		}
		modelReq.Messages = conv.Messages()

		resp, err := l.complete(ctx, turn, modelReq)
		if err != nil {
			return nil, err
		}
		brief.Turns = turn
		brief.Usage = brief.Usage.Add(resp.Usage)

		msg := resp.Message
		msg.Role = domain.RoleAssistant
		msg.ToolCalls = domain.NormalizeToolCalls(msg.ToolCalls)

		if !msg.HasToolCalls() || final {
			// Calls requested on the tool-free final turn cannot be answered.
			msg.ToolCalls = nil
			conv = conv.Append(msg)
			brief.Conversation = conv
			brief.Text = strings.TrimSpace(msg.Content)
			if brief.Text == "" {
				brief.Text = synthesize(req.Target, conv)
				brief.Partial = true
			}
			return brief, nil
		}

		conv = conv.Append(msg)
		results := l.runTools(ctx, turn, msg.ToolCalls)
		for i, call := range msg.ToolCalls {
			brief.ToolCalls++
			if strings.HasPrefix(results[i], toolErrorPrefix) {
				brief.ToolErrors++
			}
			conv = conv.Append(domain.ToolResultMessage(call, results[i]))
		}
	}

	// MaxTurns >= 1 guarantees the final branch returns above.
	brief.Conversation = conv
	brief.Text = synthesize(req.Target, conv)
	brief.Partial = true
	return brief, nil
}

func (l *Loop) complete(ctx context.Context, turn int, req domain.ModelRequest) (*domain.ModelResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "research.turn", telemetry.SpanAttributes{
		Turn:      turn,
		Operation: "model.complete",
	})
	defer span.End()

	resp, err := l.model.Complete(ctx, req)
	if err != nil {
		span.SetError(err)
		if !domain.IsCode(err, domain.ErrCodeModelCall) {
			err = domain.NewDomainErrorWithCause(domain.ErrCodeModelCall, domain.ErrModelCall.Message, err)
		}
		return nil, fmt.Errorf("turn %d: %w", turn, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("turn %d: %w", turn, domain.ErrEmptyModelTurn)
	}
	return resp, nil
}

// runTools executes one turn's calls concurrently. Results are indexed by
// request position.
func (l *Loop) runTools(ctx context.Context, turn int, calls []domain.ToolCall) []string {
	results := make([]string, len(calls))
	var g errgroup.Group
	g.SetLimit(l.cfg.Parallelism)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			out := l.dispatcher.Dispatch(ctx, call)
			results[i] = truncate(out, l.cfg.ToolResultMax)
			l.logger.Debug("tool result",
				zap.Int("turn", turn),
				zap.String("tool", call.Name),
				zap.Int("chars", utf8.RuneCountInString(out)))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + truncatedMarker
}

// synthesize assembles a best-effort brief from the tool results gathered so
// far, used when the model never produced final text.
func synthesize(target string, conv Conversation) string {
	exchanges := conv.ToolExchanges()
	var b strings.Builder
	fmt.Fprintf(&b, "Research brief (partial): %s\n", firstLine(target))
	useful := 0
	for _, ex := range exchanges {
		if strings.HasPrefix(ex.Result, toolErrorPrefix) {
			continue
		}
		useful++
		fmt.Fprintf(&b, "\n## Finding %d (%s %s)\n%s\n", useful, ex.Call.Name, ex.Call.ArgumentsText(), ex.Result)
	}
	if useful == 0 {
		b.WriteString("\n" + emptyFindingsFallback + "\n")
	}
	return strings.TrimSpace(b.String())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
