package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyText is returned when there is nothing to parse.
var ErrEmptyText = errors.New("resume text is empty")

// Structurer turns raw resume text into a JSON document that follows the
// Resume schema. Implemented by gemini.Client.
type Structurer interface {
	StructureResume(ctx context.Context, text string) (string, error)
}

// Parser asks a language model to structure extracted resume text.
type Parser struct {
	model Structurer
}

// NewParser creates a Parser backed by the given model.
func NewParser(model Structurer) *Parser {
	return &Parser{model: model}
}

// Parse structures text into a Resume. Nil lists in the model output are
// normalized to empty lists so the result validates.
func (p *Parser) Parse(ctx context.Context, text string) (*Resume, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	raw, err := p.model.StructureResume(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("structuring resume: %w", err)
	}

	var r Resume
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &r); err != nil {
		return nil, fmt.Errorf("decoding structured resume: %w", err)
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	return &r, nil
}

// Prompt is the instruction sent with the resume text.
func Prompt(text string) string {
	return "Extract structured information from this resume:\n\n" + text
}

// CleanJSON strips a surrounding markdown code fence from model output.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}
