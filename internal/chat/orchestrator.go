package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/session"
)

const instrumentationName = "github.com/kalambet/jobhunter/internal/chat"

const (
	DefaultTemperature     float32 = 0.7
	DefaultMaxOutputTokens int32   = 2000
)

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Model    Model
	Search   Searcher
	Sessions session.Store

	// Locker, when set, serializes exchanges per session key. Without it,
	// concurrent messages for one key may overwrite each other's transcript.
	Locker *session.Locker

	Notifier Notifier
	Logger   *slog.Logger

	Temperature     float32
	MaxOutputTokens int32
}

// Orchestrator answers chat messages, calling the job search when the model
// asks for it, and keeps each session's transcript.
type Orchestrator struct {
	model     Model
	search    Searcher
	sessions  session.Store
	locker    *session.Locker
	notifier  Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *instruments
	temp      float32
	maxTokens int32
}

// New creates an Orchestrator. Zero generation parameters fall back to the
// defaults.
func New(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Temperature == 0 {
		d.Temperature = DefaultTemperature
	}
	if d.MaxOutputTokens == 0 {
		d.MaxOutputTokens = DefaultMaxOutputTokens
	}
	m, err := newInstruments(otel.Meter(instrumentationName))
	if err != nil {
		d.Logger.Warn("creating chat metrics", "error", err)
	}
	return &Orchestrator{
		model:     d.Model,
		search:    d.Search,
		sessions:  d.Sessions,
		locker:    d.Locker,
		notifier:  d.Notifier,
		logger:    d.Logger,
		tracer:    otel.Tracer(instrumentationName),
		metrics:   m,
		temp:      d.Temperature,
		maxTokens: d.MaxOutputTokens,
	}
}

// Handle runs one exchange for sessionKey. The transcript is written only
// when the whole exchange succeeds.
func (o *Orchestrator) Handle(ctx context.Context, sessionKey, message string, r *resume.Resume) (*Reply, error) {
	if err := resume.Validate(r); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	if o.locker != nil {
		unlock := o.locker.Lock(sessionKey)
		defer unlock()
	}

	ctx, span := o.tracer.Start(ctx, "chat.Handle", trace.WithAttributes(
		attribute.String("session.id", sessionKey),
	))
	defer span.End()

	start := time.Now()
	reply, err := o.handle(ctx, sessionKey, message, r)
	o.metrics.record(ctx, time.Since(start), reply, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("tool.used", reply.ToolUsed),
		attribute.Int("tool.results", len(reply.JobResults)),
	)
	return reply, nil
}

func (o *Orchestrator) handle(ctx context.Context, sessionKey, message string, r *resume.Resume) (*Reply, error) {
	history, err := o.sessions.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	cfg := Config{
		SystemInstruction: SystemInstruction(r),
		Tools:             []ToolDeclaration{SearchTool()},
		Temperature:       o.temp,
		MaxOutputTokens:   o.maxTokens,
	}

	conv, err := o.model.StartChat(ctx, cfg, history)
	if err != nil {
		return nil, collaboratorErr(err)
	}

	first, err := o.send(ctx, conv, message)
	if err != nil {
		return nil, collaboratorErr(err)
	}

	reply := &Reply{Text: first.Text}
	if len(first.ToolCalls) > 0 {
		results, jobs, err := o.runTools(ctx, first.ToolCalls)
		if err != nil {
			return nil, collaboratorErr(err)
		}
		text, err := o.sendToolResults(ctx, conv, results)
		if err != nil {
			return nil, collaboratorErr(err)
		}
		reply = &Reply{Text: text, ToolUsed: true, JobResults: jobs}
	}

	if strings.TrimSpace(reply.Text) == "" {
		return nil, collaboratorErr(errors.New("model returned an empty response"))
	}

	turns := append(history,
		session.Turn{Role: session.RoleUser, Text: message},
		session.Turn{Role: session.RoleAssistant, Text: reply.Text},
	)
	if err := o.sessions.Put(ctx, sessionKey, turns); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	o.logger.Debug("exchange completed",
		"session", sessionKey,
		"tool_used", reply.ToolUsed,
		"results", len(reply.JobResults),
		"turns", min(len(turns), session.MaxTurns),
	)
	o.notify(ctx, sessionKey, reply)
	return reply, nil
}

// Clear drops the transcript for sessionKey. Clearing an unknown key is
// not an error.
func (o *Orchestrator) Clear(ctx context.Context, sessionKey string) error {
	if o.locker != nil {
		unlock := o.locker.Lock(sessionKey)
		defer unlock()
	}
	return o.sessions.Clear(ctx, sessionKey)
}

func (o *Orchestrator) send(ctx context.Context, conv Conversation, message string) (ModelReply, error) {
	ctx, span := o.tracer.Start(ctx, "model.Send")
	defer span.End()

	reply, err := conv.Send(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ModelReply{}, err
	}
	span.SetAttributes(attribute.Int("tool.calls", len(reply.ToolCalls)))
	return reply, nil
}

func (o *Orchestrator) sendToolResults(ctx context.Context, conv Conversation, results []ToolResult) (string, error) {
	ctx, span := o.tracer.Start(ctx, "model.SendToolResults", trace.WithAttributes(
		attribute.Int("tool.results", len(results)),
	))
	defer span.End()

	text, err := conv.SendToolResults(ctx, results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

// runTools executes every tool call concurrently. Results for the model and
// listings for the caller are kept in request order. All calls are checked
// before any search runs.
func (o *Orchestrator) runTools(ctx context.Context, calls []ToolCall) ([]ToolResult, []JobResult, error) {
	args := make([]SearchArgs, len(calls))
	for i, call := range calls {
		a, err := ParseSearchCall(call)
		if err != nil {
			return nil, nil, err
		}
		args[i] = a
	}

	results := make([]ToolResult, len(calls))
	listings := make([][]JobResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			req := SearchRequest(args[i])

			sctx, span := o.tracer.Start(gctx, "search.Search", trace.WithAttributes(
				attribute.String("search.query", req.Query),
				attribute.StringSlice("search.domains", req.IncludeDomains),
			))
			defer span.End()

			o.metrics.searched(sctx)
			resp, err := o.search.Search(sctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return fmt.Errorf("searching %q: %w", args[i].Query, err)
			}
			results[i] = toolResult(call, resp)
			listings[i] = JobResults(resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var jobs []JobResult
	for _, l := range listings {
		jobs = append(jobs, l...)
	}
	return results, jobs, nil
}

func (o *Orchestrator) notify(ctx context.Context, sessionKey string, reply *Reply) {
	if o.notifier == nil {
		return
	}
	ex := Exchange{
		ID:        uuid.NewString(),
		SessionID: sessionKey,
		ToolUsed:  reply.ToolUsed,
		Results:   reply.JobResults,
		Timestamp: time.Now().UTC(),
	}
	if err := o.notifier.ExchangeCompleted(ctx, ex); err != nil {
		o.logger.Warn("publishing exchange failed", "session", sessionKey, "error", err)
	}
}

func collaboratorErr(err error) error {
	return fmt.Errorf("%w: %w", ErrCollaborator, err)
}
