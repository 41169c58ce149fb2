package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

// DefaultChatModel is the model used for research turns.
const DefaultChatModel = openai.GPT4o

// ChatAPI is the subset of the go-openai client used for chat completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatConfig configures ChatModel.
type ChatConfig struct {
	Model string
	// Temperature applies when a request leaves it unset.
	Temperature float32
	MaxTokens   int
	// MaxRetries bounds retries of rate-limited or 5xx responses.
	MaxRetries      uint64
	InitialInterval time.Duration
}

// ChatModel drives chat completions with tool calling.
type ChatModel struct {
	api    ChatAPI
	cfg    ChatConfig
	logger *zap.Logger
}

// NewChatModel creates a ChatModel over api.
func NewChatModel(api ChatAPI, cfg ChatConfig, logger *zap.Logger) *ChatModel {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	return &ChatModel{api: api, cfg: cfg, logger: logging.OrNop(logger)}
}

// Complete sends one turn to the model. Any failure is a ModelCallError.
func (m *ChatModel) Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "model.complete", telemetry.SpanAttributes{Operation: m.cfg.Model})
	defer span.End()

	chatReq, err := m.buildRequest(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeModelCall, domain.ErrModelCall.Message, err)
	}

	var resp openai.ChatCompletionResponse
	op := func() error {
		var callErr error
		resp, callErr = m.api.CreateChatCompletion(ctx, chatReq)
		if callErr != nil && !retryable(callErr) {
			return backoff.Permanent(callErr)
		}
		return callErr
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.cfg.InitialInterval
	notify := func(err error, wait time.Duration) {
		m.logger.Warn("model call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, m.cfg.MaxRetries), ctx), notify); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeModelCall, domain.ErrModelCall.Message, err)
	}

	if len(resp.Choices) == 0 {
		return nil, domain.ErrEmptyModelTurn
	}
	telemetry.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	return &domain.ModelResponse{
		Message: fromChatMessage(choice.Message),
		Usage: domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		StopReason: string(choice.FinishReason),
	}, nil
}

func (m *ChatModel) buildRequest(req domain.ModelRequest) (openai.ChatCompletionRequest, error) {
	temperature := m.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature == 0 {
		// The request field is omitempty; the smallest positive value is
		// sent instead so the API does not apply its own default.
		temperature = math.SmallestNonzeroFloat32
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.cfg.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	for _, msg := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, toChatMessage(msg))
	}
	for _, def := range req.Tools {
		if !json.Valid(def.Parameters) {
			return chatReq, fmt.Errorf("tool %s: parameters are not valid JSON", def.Name)
		}
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return chatReq, nil
}

func toChatMessage(msg domain.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	if msg.Role == domain.RoleTool {
		out.Name = msg.Name
	}
	for _, call := range msg.ToolCalls {
		args := call.ArgumentsText()
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return out
}

func fromChatMessage(msg openai.ChatCompletionMessage) domain.Message {
	out := domain.Message{
		Role:    domain.RoleAssistant,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: domain.ToolArguments(call.Function.Arguments),
		})
	}
	return out
}

// retryable reports whether err is a transient API failure.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
