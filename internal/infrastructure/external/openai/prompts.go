package openai

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompts and model parameters for SEO generation
type PromptConfig struct {
	SEO struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"seo"`
}

const defaultSEOSystem = `You are an e-commerce SEO specialist for Shopify stores. Always respond with a single valid JSON object.`

const defaultSEOTemplate = `Analyze this Shopify product and generate SEO-optimized metadata:

Product Title: {{.Title}}
Description: {{if .Description}}{{.Description}}{{else}}N/A{{end}}
Vendor: {{if .Vendor}}{{.Vendor}}{{else}}N/A{{end}}
Current Tags: {{if .Tags}}{{join .Tags ", "}}{{else}}N/A{{end}}
{{- if .CurrentSEO.Title}}
Current Meta Title: {{.CurrentSEO.Title}}
{{- end}}
{{- if .CurrentSEO.Description}}
Current Meta Description: {{.CurrentSEO.Description}}
{{- end}}

Generate a JSON response with:
{
  "metaTitle": "SEO-optimized title (max 60 characters)",
  "metaDescription": "Compelling meta description (max 160 characters)",
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "optimizedTags": ["tag1", "tag2", "tag3"],
  "confidence": 0.0
}

"confidence" is your confidence between 0 and 1 that the metadata can be published without human edits.

Focus on:
- Include primary keywords naturally
- Make it compelling for click-through
- Be specific and descriptive
`

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	var p PromptConfig
	p.SEO.Temperature = 0.4
	p.SEO.MaxTokens = 600
	p.SEO.System = defaultSEOSystem
	p.SEO.UserTemplate = defaultSEOTemplate
	return &p
}

// LoadPrompts loads prompt configuration from a YAML file. Fields missing
// from the file keep their built-in values.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if _, err := parseTemplate(prompts.SEO.UserTemplate); err != nil {
		return nil, err
	}
	return prompts, nil
}

func parseTemplate(templateStr string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Funcs(template.FuncMap{"join": strings.Join}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := parseTemplate(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
