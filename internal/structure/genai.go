package structure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ricevute/internal/core"
)

// GenAIStructurer asks a generative language model to extract receipt
// fields, falling back to the rule-based parser when the model call or
// its output fails. The model must answer with a single JSON object in
// the receipt field layout.
type GenAIStructurer struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	fallback *RulesParser
}

var _ Structurer = (*GenAIStructurer)(nil)

// GenAIConfig configures the generative backend.
type GenAIConfig struct {
	// Endpoint is the API base, e.g. https://generativelanguage.googleapis.com.
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func NewGenAIStructurer(cfg GenAIConfig) *GenAIStructurer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GenAIStructurer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		fallback: NewRulesParser(),
	}
}

const extractionPrompt = `Extract the receipt fields from the OCR text below and answer with a single JSON object, no prose and no code fences. Use these keys: date (YYYY-MM-DD), storeName, payer, amountExclTax, amountInclTax, tax (numbers, omit when unknown), paymentMethod, expenseCategory, projectName, notes. Leave unknown string fields empty.

OCR text:
`

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Structure tries the model first and the rules on any failure. The
// result always comes from exactly one of the two paths.
func (g *GenAIStructurer) Structure(ctx context.Context, ocrText string) (core.Receipt, error) {
	if strings.TrimSpace(ocrText) == "" {
		return core.Receipt{}, core.ErrEmptyText
	}

	rec, err := g.generate(ctx, ocrText)
	if err != nil {
		slog.WarnContext(ctx, "Generative structuring failed, using rules",
			"model", g.model,
			"error", err)
		return g.fallback.Structure(ctx, ocrText)
	}
	return rec, nil
}

func (g *GenAIStructurer) generate(ctx context.Context, ocrText string) (core.Receipt, error) {
	if g.apiKey == "" {
		return core.Receipt{}, fmt.Errorf("missing API key")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: extractionPrompt + ocrText}}}},
	})
	if err != nil {
		return core.Receipt{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.Receipt{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.Receipt{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Receipt{}, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return core.Receipt{}, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return core.Receipt{}, fmt.Errorf("model returned no candidates")
	}

	return parseModelJSON(gr.Candidates[0].Content.Parts[0].Text)
}

// parseModelJSON decodes the model's answer, tolerating code fences some
// models wrap around JSON despite instructions.
func parseModelJSON(text string) (core.Receipt, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var rec core.Receipt
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return core.Receipt{}, fmt.Errorf("decode model answer: %w", err)
	}
	if rec.Date != "" && !core.ValidDate(rec.Date) {
		rec.Date = ""
	}
	return rec, nil
}
