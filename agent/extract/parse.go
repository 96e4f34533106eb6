package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
)

// parseResult decodes the model's JSON envelope. Models occasionally wrap
// JSON in markdown code fences despite instructions, so fences are
// stripped before decoding. Non-JSON output surfaces ErrExtraction.
func parseResult(raw string) (contractx.Result, error) {
	cleaned := stripCodeFences(raw)
	if cleaned == "" {
		return contractx.Result{}, fmt.Errorf("%w: empty model output", contractx.ErrExtraction)
	}

	var envelope struct {
		Intent    string         `json:"intent"`
		Data      contractx.Data `json:"data"`
		ReplyText string         `json:"reply_text"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return contractx.Result{}, fmt.Errorf("%w: decode model output: %v", contractx.ErrExtraction, err)
	}

	return contractx.Result{
		Intent:    contractx.NormalizeIntent(envelope.Intent),
		Data:      envelope.Data,
		ReplyText: strings.TrimSpace(envelope.ReplyText),
	}, nil
}

func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
