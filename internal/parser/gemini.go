package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

const defaultParseTimeout = 8 * time.Second

// GeminiParser asks a Gemini model to pull procedure, date and time
// mentions out of a client message. Any failure (timeout, quota, garbage
// output) degrades to an empty Extraction; the caller keeps working.
type GeminiParser struct {
	model      *genai.GenerativeModel
	client     *genai.Client
	procedures []string
	timeout    time.Duration
	logger     *logging.Logger
}

// NewGeminiParser builds a parser backed by the given Gemini model.
// procedures constrains what the model is allowed to name.
func NewGeminiParser(ctx context.Context, apiKey, modelID string, procedures []string, timeout time.Duration, logger *logging.Logger) (*GeminiParser, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("parser: gemini api key required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultParseTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("parser: create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelID)
	model.ResponseMIMEType = "application/json"

	return &GeminiParser{
		model:      model,
		client:     client,
		procedures: procedures,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Close releases the underlying API client.
func (p *GeminiParser) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *GeminiParser) Parse(ctx context.Context, text string) Extraction {
	if p == nil || p.model == nil {
		return Extraction{}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.model.GenerateContent(ctx, genai.Text(p.prompt(text)))
	if err != nil {
		p.logger.Warn("parser: gemini request failed", "error", err)
		return Extraction{}
	}

	extraction, err := decodeExtraction(responseText(resp))
	if err != nil {
		p.logger.Warn("parser: unusable gemini output", "error", err)
		return Extraction{}
	}
	return extraction
}

func (p *GeminiParser) prompt(text string) string {
	var b strings.Builder
	b.WriteString("Ти помічник салону краси. З повідомлення клієнта витягни згадані деталі запису.\n")
	b.WriteString("Поверни JSON з полями procedure, date, time_or_range. Невідомі поля залиш порожніми.\n")
	b.WriteString("procedure може бути лише одним з: ")
	b.WriteString(strings.Join(p.procedures, ", "))
	b.WriteString("\ndate: ISO-дата або назва дня тижня, як написав клієнт.\n")
	b.WriteString("time_or_range: час HH:MM або вираз на кшталт \"після обіду\".\n\n")
	b.WriteString("Повідомлення: ")
	b.WriteString(text)
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func decodeExtraction(raw string) (Extraction, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a markdown fence despite the MIME hint.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return Extraction{}, fmt.Errorf("empty response")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	extraction.Procedure = strings.TrimSpace(extraction.Procedure)
	extraction.Date = strings.TrimSpace(extraction.Date)
	extraction.TimeOrRange = strings.TrimSpace(extraction.TimeOrRange)
	return extraction, nil
}

var _ Parser = (*GeminiParser)(nil)
