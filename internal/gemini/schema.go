package gemini

import (
	"strings"

	"google.golang.org/genai"

	"github.com/kalambet/jobhunter/internal/chat"
)

func toSchema(s *chat.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toSchema(p)
		}
	}
	return out
}

var str = &genai.Schema{Type: genai.TypeString}

// resumeSchema mirrors resume.Resume.
var resumeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":    str,
		"email":   str,
		"phone":   str,
		"summary": str,
		"skills":  {Type: genai.TypeArray, Items: str},
		"experience": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"company":          str,
					"position":         str,
					"duration":         str,
					"responsibilities": {Type: genai.TypeArray, Items: str},
				},
			},
		},
		"education": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"institution": str,
					"degree":      str,
					"year":        str,
				},
			},
		},
	},
	Required:         []string{"name", "skills", "experience", "education"},
	PropertyOrdering: []string{"name", "email", "phone", "summary", "skills", "experience", "education"},
}
