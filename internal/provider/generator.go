package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenerateTimeout bounds one advice generation call.
const GenerateTimeout = 60 * time.Second

// Advice is the structured generation result, validated at this boundary.
// The confidence gate downstream decides whether it is good enough to serve.
type Advice struct {
	Summary    string   `json:"summary"`
	Checklist  []string `json:"checklist"`
	RiskLevel  string   `json:"risk_level"`
	Citations  []string `json:"citations"`
	Confidence float64  `json:"confidence"`
}

// advisePrompt frames the generation call. The model only sees scrubbed text
// and retrieved passages; raw incident text never reaches the provider.
const advisePrompt = `You are an event-operations safety advisor. Using ONLY the
reference passages below, give best-practice guidance for the reported
occurrence. Cite the source titles you relied on.

Incident category: %s

Occurrence (PII removed): %s

Reference passages:
%s

Respond with a single JSON object:
{
  "summary": "two or three sentences of guidance",
  "checklist": ["concrete next step", ...],
  "risk_level": "low" | "medium" | "high",
  "citations": ["source title", ...],
  "confidence": 0.0-1.0 (how well the passages cover this occurrence)
}`

// Advise runs one structured generation call and parses the response.
// A malformed or unparseable response is an error here, not a half-filled
// struct downstream.
func (c *Client) Advise(ctx context.Context, category, occurrence, passages string) (*Advice, error) {
	prompt := fmt.Sprintf(advisePrompt, category, occurrence, passages)

	genCtx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	resp, err := c.genai.Models.GenerateContent(genCtx, c.generationModel,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.2),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generating advice: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty generation response")
	}

	advice, err := parseAdvice(text)
	if err != nil {
		return nil, fmt.Errorf("parsing generation response: %w", err)
	}

	return advice, nil
}

// parseAdvice decodes the model's JSON output. Some models wrap JSON in
// markdown fences despite the response MIME type; strip them before decoding.
func parseAdvice(text string) (*Advice, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var advice Advice
	if err := json.Unmarshal([]byte(text), &advice); err != nil {
		return nil, fmt.Errorf("decoding advice JSON: %w", err)
	}

	if advice.Confidence < 0 || advice.Confidence > 1 {
		return nil, fmt.Errorf("confidence %.3f out of range [0,1]", advice.Confidence)
	}

	return &advice, nil
}
