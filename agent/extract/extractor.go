// Package extract classifies one inbound event into a structured intent
// envelope using a chat-completion model, resolving any attached media
// first.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
)

const systemPrompt = `You are an ERP Assistant for a small Indian business shopkeeper.
Your job is to extract structured data from the user's input (Text, Audio, or Image).

POSSIBLE INTENTS:
1. "create_invoice": User is selling something. Extract customer name, items (name, quantity, price), and total.
2. "add_inventory": User is buying stock or counting stock. Extract items and quantities.
3. "query_ledger": User is asking a question about sales, stock, or balance.

OUTPUT FORMAT (JSON):
{
  "intent": "create_invoice" | "add_inventory" | "query_ledger" | "unknown",
  "data": {
    "customer_name": "string (or null)",
    "items": [{"name": "string", "quantity": number, "price": number or null}],
    "query_text": "string (for query_ledger)"
  },
  "reply_text": "A specialized, short, friendly Hinglish response acknowledging the action. If a price is missing, politely ask for it."
}

Start now. Output ONLY a valid JSON object. No other text.`

type Config struct {
	BaseURL            string        `split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `split_words:"true" required:"true"`
	Model              string        `split_words:"true" default:"gpt-4o-mini"`
	MaxCompletionToken int64         `split_words:"true" default:"2000"`
	Temperature        float64       `split_words:"true" default:"0.4"`
	Timeout            time.Duration `split_words:"true" default:"60s"`

	MediaAttempts    int           `split_words:"true" default:"3"`
	MediaBackoff     time.Duration `split_words:"true" default:"500ms"`
	MediaMaxDuration time.Duration `split_words:"true" default:"30s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return nil
}

// Classifier is the contract.Extractor implementation backed by an
// OpenAI-compatible chat-completion endpoint.
type Classifier struct {
	client  *openaisdk.Client
	fetcher contractx.MediaFetcher
	cfg     Config
}

func NewClassifier(cfg Config, fetcher contractx.MediaFetcher) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	client := openaisdk.NewClient(opts...)
	return &Classifier{
		client:  &client,
		fetcher: fetcher,
		cfg:     cfg,
	}, nil
}

// Extract resolves media when present, classifies the event, and parses
// the model's JSON envelope. It is polymorphic over input shape:
// text-only, media-only, or both.
func (c *Classifier) Extract(ctx context.Context, in contractx.Input) (contractx.Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && strings.TrimSpace(in.MediaURL) == "" {
		return contractx.Result{}, fmt.Errorf("%w: event has neither text nor media", contractx.ErrValidation)
	}

	parts := []openaisdk.ChatCompletionContentPartUnionParam{}
	if text != "" {
		parts = append(parts, openaisdk.TextContentPart("User Text Input: "+text))
	}

	if strings.TrimSpace(in.MediaURL) != "" {
		mediaPart, err := c.resolveMediaPart(ctx, in.MediaURL, in.MediaMIME)
		if err != nil {
			return contractx.Result{}, err
		}
		parts = append(parts, mediaPart)
	}

	reqCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	completion, err := c.client.Chat.Completions.New(reqCtx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.cfg.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(parts),
		},
		Temperature:         openaisdk.Float(c.cfg.Temperature),
		MaxCompletionTokens: openaisdk.Int(c.cfg.MaxCompletionToken),
	})
	if err != nil {
		return contractx.Result{}, fmt.Errorf("%w: chat completion: %v", contractx.ErrExtraction, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.Result{}, fmt.Errorf("%w: empty completion", contractx.ErrExtraction)
	}

	result, err := parseResult(completion.Choices[0].Message.Content)
	if err != nil {
		return contractx.Result{}, err
	}

	log.Debug().Str("intent", string(result.Intent)).Int("items", len(result.Data.Items)).Msg("classified inbound event")
	return result, nil
}

// resolveMediaPart downloads the referenced media with bounded retries
// and converts it into a chat-completion content part.
func (c *Classifier) resolveMediaPart(ctx context.Context, mediaURL, mediaMIME string) (openaisdk.ChatCompletionContentPartUnionParam, error) {
	raw, fetchedMIME, err := c.fetchWithRetry(ctx, mediaURL)
	if err != nil {
		return openaisdk.ChatCompletionContentPartUnionParam{}, err
	}

	mime := cleanMIME(mediaMIME)
	if mime == "" {
		mime = cleanMIME(fetchedMIME)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{
			URL: fmt.Sprintf("data:%s;base64,%s", mime, encoded),
		}), nil
	case strings.HasPrefix(mime, "audio/"):
		return openaisdk.InputAudioContentPart(openaisdk.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   encoded,
			Format: audioFormat(mime),
		}), nil
	default:
		return openaisdk.ChatCompletionContentPartUnionParam{},
			fmt.Errorf("%w: unsupported media type %q", contractx.ErrExtraction, mime)
	}
}

// fetchWithRetry wraps the fetcher in bounded retries with exponential
// backoff under a hard deadline. Exhaustion surfaces ErrDownload.
func (c *Classifier) fetchWithRetry(ctx context.Context, mediaURL string) ([]byte, string, error) {
	attempts := c.cfg.MediaAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := c.cfg.MediaBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	if c.cfg.MediaMaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MediaMaxDuration)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, mime, err := c.fetcher.FetchMedia(ctx, mediaURL)
		if err == nil {
			return raw, mime, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("url", mediaURL).Msg("media fetch failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, "", fmt.Errorf("%w: %v", contractx.ErrDownload, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, "", fmt.Errorf("%w: %v", contractx.ErrDownload, lastErr)
}

// cleanMIME drops any parameters from a MIME string, e.g.
// "audio/ogg; codecs=opus" becomes "audio/ogg".
func cleanMIME(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func audioFormat(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	default:
		return "wav"
	}
}
