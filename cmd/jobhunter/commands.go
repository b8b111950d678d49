package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/jobhunter/internal/config"
	"github.com/kalambet/jobhunter/internal/gemini"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/storage"
)

// --- chat ---

type chatResponse struct {
	Response      string `json:"response"`
	ToolUsed      bool   `json:"toolUsed"`
	SearchResults []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source string `json:"source"`
	} `json:"searchResults"`
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the job hunter assistant",
	Long: `Chat with the job hunter assistant running on the local server.

Type /clear to forget the conversation and /quit to leave.

Examples:
  jobhunter chat --resume ./resume.json
  jobhunter chat --resume-id 3f2a... --session my-search`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resumeFile, _ := cmd.Flags().GetString("resume")
		resumeID, _ := cmd.Flags().GetString("resume-id")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		r, err := loadChatResume(ctx, client, resumeFile, resumeID)
		if err != nil {
			return err
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		printStep("Session %s (resume: %s)", sessionID, r.Name)
		return runChatLoop(ctx, client, os.Stdin, os.Stdout, sessionID, r)
	},
}

func init() {
	chatCmd.Flags().String("resume", "", "path to a resume JSON file")
	chatCmd.Flags().String("resume-id", "", "ID of a saved resume")
	chatCmd.Flags().String("session", "", "session ID (default: a new random ID)")
}

func loadChatResume(ctx context.Context, client *apiClient, file, id string) (*resume.Resume, error) {
	switch {
	case file != "":
		return readResumeFile(file)
	case id != "":
		var saved struct {
			Data resume.Resume `json:"data"`
		}
		if err := client.call(ctx, http.MethodGet, "/api/resume/"+id, nil, &saved); err != nil {
			return nil, err
		}
		return &saved.Data, nil
	default:
		return nil, fmt.Errorf("one of --resume or --resume-id is required")
	}
}

func readResumeFile(path string) (*resume.Resume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}
	var r resume.Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid resume JSON: %w", err)
	}
	if err := resume.Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// runChatLoop reads one message per line from in until EOF or /quit.
func runChatLoop(ctx context.Context, client *apiClient, in io.Reader, out io.Writer, sessionID string, r *resume.Resume) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, colorize(colorBold, "you> "))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := clearSession(ctx, client, sessionID); err != nil {
				printError("%v", err)
			} else {
				printSuccess("Session cleared")
			}
		default:
			reply, err := sendChat(ctx, client, sessionID, line, r)
			if err != nil {
				printError("%v", err)
				break
			}
			printReply(out, reply)
		}
		fmt.Fprint(out, colorize(colorBold, "you> "))
	}
	return scanner.Err()
}

func sendChat(ctx context.Context, client *apiClient, sessionID, message string, r *resume.Resume) (*chatResponse, error) {
	req := map[string]any{
		"message":    message,
		"resumeData": r,
		"sessionId":  sessionID,
	}
	var reply chatResponse
	if err := client.call(ctx, http.MethodPost, "/api/chat/job-hunter", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func printReply(out io.Writer, reply *chatResponse) {
	fmt.Fprintf(out, "%s %s\n", colorize(colorCyan, "assistant>"), reply.Response)
	if !reply.ToolUsed {
		return
	}
	if len(reply.SearchResults) == 0 {
		fmt.Fprintln(out, "  (search returned no listings)")
		return
	}
	for i, res := range reply.SearchResults {
		printListing(out, i+1, res.Title, res.Source, res.URL)
	}
}

func clearSession(ctx context.Context, client *apiClient, sessionID string) error {
	var result map[string]any
	return client.call(ctx, http.MethodPost, "/api/chat/clear-session", map[string]string{"sessionId": sessionID}, &result)
}

// --- clear ---

var clearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Forget a chat session's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := clearSession(cmd.Context(), client, args[0]); err != nil {
			return err
		}
		printSuccess("Cleared session %s", args[0])
		return nil
	},
}

// --- parse ---

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a PDF, DOCX or text resume into JSON",
	Long: `Parse a resume file with Gemini and print the structured result.
This runs locally and does not need the server.

Examples:
  jobhunter parse ./cv.pdf > resume.json
  jobhunter parse ./cv.docx --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")
		path := args[0]

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is not set (JOBHUNTER_GEMINI_API_KEY or GEMINI_API_KEY)")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		text, err := resume.ExtractText(resume.DetectMIME("", path), data)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		model, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			ParseModel: cfg.Gemini.ParseModel,
			BaseURL:    cfg.Gemini.BaseURL,
		})
		if err != nil {
			return err
		}

		printStep("Parsing %s with %s...", filepath.Base(path), cfg.Gemini.ParseModel)
		r, err := resume.NewParser(model).Parse(ctx, text)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}

		if !save {
			return nil
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()
		saved, err := store.SaveResume(storage.SavedResume{Resume: *r, SourceFile: filepath.Base(path)})
		if err != nil {
			return err
		}
		printSuccess("Saved resume %s", saved.ID)
		return nil
	},
}

func init() {
	parseCmd.Flags().Bool("save", false, "store the parsed resume in the local database")
}

// --- resume ---

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage saved resumes",
}

var resumeSaveCmd = &cobra.Command{
	Use:   "save <file.json>",
	Short: "Save a structured resume on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}
		var r resume.Resume
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("invalid resume JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		req := map[string]any{
			"resumeData": r,
			"sourceFile": filepath.Base(args[0]),
		}
		var result struct {
			ID string `json:"id"`
		}
		if err := client.call(cmd.Context(), http.MethodPost, "/api/resume/save", req, &result); err != nil {
			return err
		}
		printSuccess("Saved resume %s", result.ID)
		return nil
	},
}

var resumeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved resume as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var saved any
		if err := client.call(cmd.Context(), http.MethodGet, "/api/resume/"+args[0], nil, &saved); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(saved)
	},
}

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved resumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var saved []struct {
			ID        string        `json:"id"`
			CreatedAt string        `json:"createdAt"`
			Data      resume.Resume `json:"data"`
		}
		path := fmt.Sprintf("/api/resume?limit=%d", limit)
		if err := client.call(cmd.Context(), http.MethodGet, path, nil, &saved); err != nil {
			return err
		}
		if len(saved) == 0 {
			fmt.Println("No saved resumes.")
			return nil
		}
		for _, s := range saved {
			fmt.Printf("%s  %s  %s\n", colorize(colorCyan, shortID(s.ID)), s.CreatedAt, s.Data.Name)
		}
		return nil
	},
}

var resumeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var result map[string]string
		if err := client.call(cmd.Context(), http.MethodDelete, "/api/resume/"+args[0], nil, &result); err != nil {
			return err
		}
		printSuccess("Deleted resume %s", args[0])
		return nil
	},
}

func init() {
	resumeListCmd.Flags().Int("limit", 20, "maximum number of resumes to list")
	resumeCmd.AddCommand(resumeSaveCmd)
	resumeCmd.AddCommand(resumeShowCmd)
	resumeCmd.AddCommand(resumeListCmd)
	resumeCmd.AddCommand(resumeDeleteCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		fmt.Printf("\n  config file: %s\n", config.ConfigFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. API keys and other secrets are written to the\n" +
		"secrets file instead of config.json.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
