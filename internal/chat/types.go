package chat

import (
	"context"
	"errors"
	"time"

	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/search"
	"github.com/kalambet/jobhunter/internal/session"
)

var (
	// ErrInvalidResume marks a request rejected before any model call
	// because the resume context is absent or malformed.
	ErrInvalidResume = resume.ErrInvalid

	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("message is required")

	// ErrCollaborator wraps every failure of the language model or the job
	// search API. The exchange is discarded when it is returned.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrUnknownTool is returned when the model requests a tool other than
	// search_job_listings.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolArgs is returned when a tool call carries unusable arguments.
	ErrToolArgs = errors.New("invalid tool arguments")
)

// Model starts a chat with the language model.
type Model interface {
	StartChat(ctx context.Context, cfg Config, history []session.Turn) (Conversation, error)
}

// Conversation is one live exchange with the model: a user message
// followed, when the model asks for it, by a batch of tool results.
type Conversation interface {
	Send(ctx context.Context, message string) (ModelReply, error)
	SendToolResults(ctx context.Context, results []ToolResult) (string, error)
}

// Searcher runs job searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// Notifier is told about every committed exchange.
type Notifier interface {
	ExchangeCompleted(ctx context.Context, ex Exchange) error
}

// Config is what the model needs to answer a turn.
type Config struct {
	SystemInstruction string
	Tools             []ToolDeclaration
	Temperature       float32
	MaxOutputTokens   int32
}

// ToolDeclaration describes a callable tool to the model.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Schema is a minimal JSON-schema subset for tool parameters.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// ModelReply is the model's answer to a user message: text, or one or more
// tool calls.
type ModelReply struct {
	Text      string
	ToolCalls []ToolCall
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is returned to the model for the call with the same ID.
type ToolResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// JobResult is one listing surfaced to the caller.
type JobResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Reply is the outcome of a handled message.
type Reply struct {
	Text       string
	ToolUsed   bool
	JobResults []JobResult
}

// Exchange is published after a successful commit.
type Exchange struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	ToolUsed  bool        `json:"tool_used"`
	Results   []JobResult `json:"results,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
