package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/storage"
)

// mcpSessionKey is the chat session used when a client sends no session_id.
const mcpSessionKey = "mcp"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat    ChatService
	Search  chat.Searcher
	Resumes ResumeStore // optional; resume_id lookups and resources need it
}

// NewMCPServer creates an MCP server with the job hunter tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"jobhunter",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("jobhunter: resume-aware job search assistant backed by Gemini and Tavily."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool(chat.SearchToolName,
			mcp.WithDescription("Search for job openings on various job boards and company websites"),
			mcp.WithString("query", mcp.Description("Search query for job listings. Should include job title, skills, and location if specified."), mcp.Required()),
			mcp.WithArray("sites", mcp.Description("Specific job sites to search (e.g., linkedin.com, indeed.com, glassdoor.com)"), mcp.WithStringItems()),
		),
		mcpSearchJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("job_hunter_chat",
			mcp.WithDescription("Ask the job hunter assistant a question about the given resume. The assistant searches job boards when needed."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation key; turns with the same key share history")),
			mcp.WithString("resume_id", mcp.Description("ID of a saved resume to use as context")),
			mcp.WithString("resume", mcp.Description("Resume JSON to use as context when resume_id is not given")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_session",
			mcp.WithDescription("Forget the conversation history of a chat session."),
			mcp.WithString("session_id", mcp.Description("Conversation key to clear")),
		),
		mcpClearSession(deps),
	)

	if deps.Resumes != nil {
		s.AddResource(
			mcp.NewResource(
				"resumes://recent",
				"Recent Resumes",
				mcp.WithResourceDescription("Last 10 saved resumes (name and skills only)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpSearchJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := chat.ParseSearchCall(chat.ToolCall{
			Name: chat.SearchToolName,
			Args: req.GetArguments(),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		resp, err := deps.Search.Search(ctx, chat.SearchRequest(args))
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"answer":  resp.Answer,
			"results": chat.JobResults(resp),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		r, err := mcpResume(deps, req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		key := req.GetString("session_id", "")
		if key == "" {
			key = mcpSessionKey
		}

		reply, err := deps.Chat.Handle(ctx, key, message, r)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}
		if !reply.ToolUsed {
			return mcpText(reply.Text), nil
		}

		b, err := json.Marshal(reply.JobResults)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: reply.Text},
				mcp.TextContent{Type: "text", Text: string(b)},
			},
		}, nil
	}
}

// mcpResume resolves the resume context from resume_id or inline JSON.
func mcpResume(deps MCPDeps, req mcp.CallToolRequest) (*resume.Resume, error) {
	if id := req.GetString("resume_id", ""); id != "" {
		if deps.Resumes == nil {
			return nil, errors.New("saved resumes are not available")
		}
		saved, err := deps.Resumes.GetResume(id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("resume %s not found", id)
		}
		if err != nil {
			return nil, fmt.Errorf("loading resume %s: %w", id, err)
		}
		return &saved.Resume, nil
	}

	raw := req.GetString("resume", "")
	if raw == "" {
		return nil, errors.New("one of resume_id or resume is required")
	}
	var r resume.Resume
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("invalid resume JSON: %w", err)
	}
	return &r, nil
}

func mcpClearSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := req.GetString("session_id", "")
		if key == "" {
			key = mcpSessionKey
		}
		if err := deps.Chat.Clear(ctx, key); err != nil {
			return mcpError(fmt.Sprintf("failed to clear session: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Cleared session %s", key)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		saved, err := deps.Resumes.ListResumes(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list resumes: %w", err)
		}

		type resumeSummary struct {
			ID        string   `json:"id"`
			CreatedAt string   `json:"created_at"`
			Name      string   `json:"name"`
			Skills    []string `json:"skills"`
		}

		summaries := make([]resumeSummary, len(saved))
		for i, s := range saved {
			summaries[i] = resumeSummary{
				ID:        s.ID,
				CreatedAt: s.CreatedAt.Format(time.RFC3339),
				Name:      s.Resume.Name,
				Skills:    s.Resume.Skills,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resumes: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
