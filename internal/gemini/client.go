package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/session"
)

const (
	DefaultChatModel  = "gemini-2.0-flash"
	DefaultParseModel = "gemini-2.5-flash"

	parseAttempts = 3
)

// ErrNoCandidates is returned when the API answers without any candidate,
// typically because the prompt was blocked.
var ErrNoCandidates = errors.New("model returned no candidates")

// generator is the subset of *genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects the models and endpoint.
type Config struct {
	APIKey     string
	ChatModel  string
	ParseModel string
	BaseURL    string
}

// Client is the Gemini language model: it drives chat turns with function
// calling and structures resume text into JSON.
type Client struct {
	gen        generator
	chatModel  string
	parseModel string
}

// New creates a client for the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newClient(c.Models, cfg), nil
}

func newClient(gen generator, cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ParseModel == "" {
		cfg.ParseModel = DefaultParseModel
	}
	return &Client{gen: gen, chatModel: cfg.ChatModel, parseModel: cfg.ParseModel}
}

// StartChat opens a conversation seeded with the session transcript.
func (c *Client) StartChat(_ context.Context, cfg chat.Config, history []session.Turn) (chat.Conversation, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(cfg.Temperature),
		MaxOutputTokens:   cfg.MaxOutputTokens,
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Parameters),
			})
		}
		gc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := make([]*genai.Content, 0, len(history)+4)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == session.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	return &conversation{gen: c.gen, model: c.chatModel, config: gc, contents: contents}, nil
}

// conversation accumulates the contents of one exchange so the follow-up
// call carries the model's function call next to its response.
type conversation struct {
	gen      generator
	model    string
	config   *genai.GenerateContentConfig
	contents []*genai.Content
}

func (c *conversation) Send(ctx context.Context, message string) (chat.ModelReply, error) {
	resp, err := c.generate(ctx, genai.NewContentFromText(message, genai.RoleUser))
	if err != nil {
		return chat.ModelReply{}, err
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return chat.ModelReply{Text: resp.Text()}, nil
	}
	reply := chat.ModelReply{ToolCalls: make([]chat.ToolCall, 0, len(calls))}
	for _, fc := range calls {
		reply.ToolCalls = append(reply.ToolCalls, chat.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	return reply, nil
}

func (c *conversation) SendToolResults(ctx context.Context, results []chat.ToolResult) (string, error) {
	parts := make([]*genai.Part, 0, len(results))
	for _, r := range results {
		p := genai.NewPartFromFunctionResponse(r.Name, r.Response)
		p.FunctionResponse.ID = r.ID
		parts = append(parts, p)
	}

	resp, err := c.generate(ctx, genai.NewContentFromParts(parts, genai.RoleUser))
	if err != nil {
		return "", err
	}
	if len(resp.FunctionCalls()) > 0 {
		return "", errors.New("model requested another tool call after tool results")
	}
	return resp.Text(), nil
}

func (c *conversation) generate(ctx context.Context, next *genai.Content) (*genai.GenerateContentResponse, error) {
	c.contents = append(c.contents, next)
	resp, err := c.gen.GenerateContent(ctx, c.model, c.contents, c.config)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if err := checkCandidates(resp); err != nil {
		return nil, err
	}
	if content := resp.Candidates[0].Content; content != nil {
		c.contents = append(c.contents, content)
	}
	return resp, nil
}

// StructureResume asks the parse model for a JSON resume that follows the
// resume schema. Failed calls are retried with a linear backoff.
func (c *Client) StructureResume(ctx context.Context, text string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resumeSchema,
	}
	contents := []*genai.Content{genai.NewContentFromText(resume.Prompt(text), genai.RoleUser)}

	return retry(ctx, parseAttempts, func() (string, error) {
		resp, err := c.gen.GenerateContent(ctx, c.parseModel, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("generating content: %w", err)
		}
		if err := checkCandidates(resp); err != nil {
			return "", err
		}
		out := resp.Text()
		if strings.TrimSpace(out) == "" {
			return "", errors.New("model returned empty resume JSON")
		}
		return out, nil
	})
}

func checkCandidates(resp *genai.GenerateContentResponse) error {
	if resp != nil && len(resp.Candidates) > 0 {
		return nil
	}
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: blocked (%s)", ErrNoCandidates, resp.PromptFeedback.BlockReason)
	}
	return ErrNoCandidates
}

// retry calls fn up to attempts times, waiting a little longer after each
// failure.
func retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(500*(i+1)) * time.Millisecond):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
