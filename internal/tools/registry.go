package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/cache"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

const (
	DefaultTimeout  = 20 * time.Second
	DefaultCacheTTL = 6 * time.Hour

	// ErrorPrefix marks a tool result that reports a failure.
	ErrorPrefix = "Error: "
)

// RegistryConfig tunes dispatch behaviour.
type RegistryConfig struct {
	Timeout  time.Duration
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Registry holds the closed set of tools and turns every call into result text.
type Registry struct {
	tools  map[string]Tool
	order  []string
	cfg    RegistryConfig
	logger *zap.Logger
}

// NewRegistry registers tools in the given order. Later duplicates replace
// earlier ones without changing their position.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger, tools ...Tool) *Registry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	r := &Registry{tools: make(map[string]Tool, len(tools)), cfg: cfg, logger: logging.OrNop(logger)}
	for _, t := range tools {
		name := t.Definition().Name
		if _, ok := r.tools[name]; !ok {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

// Definitions lists the tool schemas offered to the model.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Dispatch executes call and returns its result text. Failures of any kind
// come back as text starting with ErrorPrefix so the model can react to them.
func (r *Registry) Dispatch(ctx context.Context, call domain.ToolCall) string {
	start := time.Now()
	tool, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("model requested unknown tool",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID))
		telemetry.RecordToolCall("unknown", "unknown_tool", time.Since(start))
		return errorText(call.Name, domain.ErrUnknownTool)
	}

	ctx, span := telemetry.StartSpan(ctx, "tool.dispatch", telemetry.SpanAttributes{
		Tool:      call.Name,
		Operation: "tool.dispatch",
	})
	defer span.End()

	cacheKey := ""
	if c, ok := tool.(Cacheable); ok && c.Cacheable() {
		cacheKey = cache.Key(call.Name, call.Arguments)
		if hit, found, err := r.cfg.Cache.Get(ctx, cacheKey); err != nil {
			r.logger.Warn("tool cache read failed", zap.String("tool", call.Name), zap.Error(err))
		} else if found {
			telemetry.RecordToolCall(call.Name, "cached", time.Since(start))
			return hit
		}
	}

	out, err := r.execute(ctx, tool, call)
	elapsed := time.Since(start)
	if err != nil {
		span.SetError(err)
		r.logger.Info("tool call failed",
			zap.String("tool", call.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		telemetry.RecordToolCall(call.Name, "error", elapsed)
		return errorText(call.Name, err)
	}

	if strings.HasPrefix(out, ErrorPrefix) {
		telemetry.RecordToolCall(call.Name, "error", elapsed)
		return out
	}
	telemetry.RecordToolCall(call.Name, "ok", elapsed)

	if cacheKey != "" {
		if err := r.cfg.Cache.Set(ctx, cacheKey, out, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("tool cache write failed", zap.String("tool", call.Name), zap.Error(err))
		}
	}
	return out
}

type outcome struct {
	text string
	err  error
}

// execute runs the tool under the per-call timeout. A tool that ignores its
// context is abandoned when the deadline passes.
func (r *Registry) execute(ctx context.Context, tool Tool, call domain.ToolCall) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", p))
				done <- outcome{err: domain.NewDomainErrorWithCause(domain.ErrCodeToolExecution,
					domain.ErrToolExecution.Message, fmt.Errorf("panic: %v", p))}
			}
		}()
		text, err := tool.Execute(callCtx, call.Arguments)
		done <- outcome{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", r.timeoutError()
		}
		return res.text, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", r.timeoutError()
	}
}

func (r *Registry) timeoutError() error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeToolExecution, domain.ErrToolTimeout.Message,
		fmt.Errorf("after %s", r.cfg.Timeout))
}

func errorText(tool string, err error) string {
	var de *domain.DomainError
	switch {
	case errors.Is(err, domain.ErrUnknownTool):
		return fmt.Sprintf("%s%s %q", ErrorPrefix, domain.ErrUnknownTool.Message, tool)
	case errors.Is(err, domain.ErrToolTimeout):
		if errors.As(err, &de) && de.Err != nil {
			return fmt.Sprintf("%s%s timed out %v", ErrorPrefix, tool, de.Err)
		}
		return fmt.Sprintf("%s%s timed out", ErrorPrefix, tool)
	case errors.Is(err, domain.ErrInvalidArguments):
		if errors.As(err, &de) && de.Err != nil {
			return fmt.Sprintf("%sinvalid arguments for %s: %v", ErrorPrefix, tool, de.Err)
		}
		return fmt.Sprintf("%sinvalid arguments for %s", ErrorPrefix, tool)
	case errors.As(err, &de):
		if de.Err != nil {
			return fmt.Sprintf("%s%s: %v", ErrorPrefix, de.Message, de.Err)
		}
		return ErrorPrefix + de.Message
	default:
		return ErrorPrefix + err.Error()
	}
}
