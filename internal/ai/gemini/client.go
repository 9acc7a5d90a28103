package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Config holds Gemini client settings
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client classifies visitor intent and extracts fields via the Gemini
// API. It implements ai.IntentClassifier and ai.Extractor. All failures
// degrade to unknown/absent so the workflows can re-prompt instead of
// erroring out.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *logger.Logger
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		logger:      log.Named("gemini"),
	}, nil
}

const yesNoPrompt = `You are an intelligent assistant that classifies the intent of a user's response.

Classify the user's intent into one of the following categories:
- confirmation: if the user agrees, confirms, or requests to proceed.
  Examples: "はい", "大丈夫です", "承認します", "OKです", "いいですよ", "その通りです".
- decline: if the user declines, refuses, or rejects the request.
  Examples: "いいえ", "違います", "やめます", "だめです", "いらない", "ふようです".
- unknown: if the intent is unclear or cannot be classified.

User response: "%s"

Return ONLY the category name.`

// ClassifyYesNo sorts a reply into confirmation, decline, or unknown
func (c *Client) ClassifyYesNo(ctx context.Context, response string) string {
	text, err := c.generate(ctx, fmt.Sprintf(yesNoPrompt, response))
	if err != nil {
		c.logger.Error("Yes/no classification failed", logger.Error(err))
		return ai.IntentUnknown
	}
	switch strings.ToLower(text) {
	case ai.IntentConfirmation:
		return ai.IntentConfirmation
	case ai.IntentDecline:
		return ai.IntentDecline
	default:
		return ai.IntentUnknown
	}
}

const correctionPrompt = `You are an intelligent assistant that classifies the intent of a user's response.

Classify the user's intent into one of the following categories:
- confirmation: if the user agrees, confirms, or requests to proceed.
  Examples: "はい", "大丈夫です", "承認します", "OKです", "いいですよ", "その通りです", "はい、正しいです", "はい、間違いありません".
- correction: if the user indicates they want to make a correction or change.
  Examples: "修正したいです", "訂正します", "変更します", "いいえ、間違っています".
- unknown: if the intent is unclear or cannot be classified.

User response: "%s"

Return ONLY the category name.`

// ClassifyCorrection sorts a reply into confirmation, correction, or
// unknown
func (c *Client) ClassifyCorrection(ctx context.Context, response string) string {
	text, err := c.generate(ctx, fmt.Sprintf(correctionPrompt, response))
	if err != nil {
		c.logger.Error("Correction classification failed", logger.Error(err))
		return ai.IntentUnknown
	}
	switch strings.ToLower(text) {
	case ai.IntentConfirmation:
		return ai.IntentConfirmation
	case ai.IntentCorrection:
		return ai.IntentCorrection
	default:
		return ai.IntentUnknown
	}
}

const namePurposePrompt = `You are a reception assistant. Extract the visitor's name and the purpose of their visit from the utterance below.

Rules:
- The utterance is in Japanese.
- Return ONLY a JSON array of two strings: ["name", "purpose"].
- Use null for any element you cannot extract.
- The name is the visitor's own name, not the person they are asking for.

Utterance: "%s"`

// ExtractNamePurpose extracts the visitor's name and purpose
func (c *Client) ExtractNamePurpose(ctx context.Context, input string) (string, string) {
	return c.extractPair(ctx, fmt.Sprintf(namePurposePrompt, input))
}

const vendorNamePurposePrompt = `You are a reception assistant. Extract the visiting company-plus-person name and the purpose of the visit from the utterance below.

Rules:
- The utterance is in Japanese, spoken by a trade vendor.
- Return ONLY a JSON array of two strings: ["name", "purpose"].
- The name should combine company and person when both are present (e.g. "山田工務店の田中").
- Use null for any element you cannot extract.

Utterance: "%s"`

// ExtractVendorNamePurpose extracts a vendor's name and purpose
func (c *Client) ExtractVendorNamePurpose(ctx context.Context, input string) (string, string) {
	return c.extractPair(ctx, fmt.Sprintf(vendorNamePurposePrompt, input))
}

const phonePrompt = `Extract a phone number from the utterance below.

Rules:
- The utterance is in Japanese and may spell the number in words or full-width digits.
- Return ONLY the number using half-width digits and optional hyphens.
- Return null if no phone number is present.

Utterance: "%s"`

// ExtractPhone extracts and validates a phone number
func (c *Client) ExtractPhone(ctx context.Context, input string) (string, ai.PhoneExtraction) {
	text, err := c.generate(ctx, fmt.Sprintf(phonePrompt, input))
	if err != nil {
		c.logger.Error("Phone extraction failed", logger.Error(err))
		return "", ai.PhoneAbsent
	}
	phone := strings.Trim(text, `"'`)
	if phone == "" || strings.EqualFold(phone, "null") {
		return "", ai.PhoneAbsent
	}
	if !ai.IsValidJapanesePhoneNumber(phone) {
		c.logger.Info("Extracted phone failed validation",
			logger.String("phone", phone))
		return phone, ai.PhoneInvalid
	}
	return phone, ai.PhoneValid
}

// extractPair runs a prompt expected to return a two-element JSON array
func (c *Client) extractPair(ctx context.Context, prompt string) (string, string) {
	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Error("Extraction failed", logger.Error(err))
		return "", ""
	}

	// Models occasionally wrap the array in a code fence
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil || len(raw) != 2 {
		c.logger.Error("Unexpected extraction output",
			logger.String("output", text))
		return "", ""
	}
	return stringElement(raw[0]), stringElement(raw[1])
}

func stringElement(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}
