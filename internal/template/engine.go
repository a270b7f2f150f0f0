package template

import (
	"bytes"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"

	"github.com/opsdesk/opsdesk/internal/models"
)

// Engine renders template subjects and bodies with data.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// RenderResult is the output of rendering.
type RenderResult struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Render substitutes data into a subject (text template) and an HTML body
// (html template with auto-escaping).
func (e *Engine) Render(subject, body string, data map[string]any) (*RenderResult, error) {
	result := &RenderResult{}

	s, err := e.renderText("subject", subject, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	result.Subject = s

	if body != "" {
		h, err := e.renderHTML("body", body, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render body: %w", err)
		}
		result.HTML = h
	}

	return result, nil
}

// Validate checks that the subject and body parse as templates.
func (e *Engine) Validate(subject, body string) error {
	if subject != "" {
		if _, err := textTemplate.New("subject").Parse(subject); err != nil {
			return fmt.Errorf("invalid subject template: %w", err)
		}
	}
	if body != "" {
		if _, err := htmlTemplate.New("body").Parse(body); err != nil {
			return fmt.Errorf("invalid body template: %w", err)
		}
	}
	return nil
}

func (e *Engine) renderText(name, tmplStr string, data map[string]any) (string, error) {
	t, err := textTemplate.New(name).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Engine) renderHTML(name, tmplStr string, data map[string]any) (string, error) {
	t, err := htmlTemplate.New(name).Parse(tmplStr)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SampleData builds preview data from the example values of a type's
// catalog variables. Unknown types yield an empty map.
func SampleData(templateType string) map[string]any {
	data := map[string]any{}
	tt := models.TemplateTypeByKey(templateType)
	if tt == nil {
		return data
	}
	for _, v := range tt.Variables {
		data[v.Name] = v.Example
	}
	return data
}
