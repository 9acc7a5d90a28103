package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/skomatsu/stella/pkg/logger"
)

var nonDialChars = regexp.MustCompile(`[^\d+]`)

// LineNotifier pushes messages through the LINE Messaging API
type LineNotifier struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewLineNotifier creates a notifier against the given messaging API
// base URL (e.g. https://api.line.me/v2/bot)
func NewLineNotifier(baseURL, accessToken string, timeout time.Duration, log *logger.Logger) *LineNotifier {
	return &LineNotifier{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log.Named("line"),
	}
}

type buttonAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// PushCheckAvailability sends the availability question as a button
// template with the three fixed reply choices
func (n *LineNotifier) PushCheckAvailability(ctx context.Context, partyID, message, title string) {
	if title == "" {
		title = "来訪者が来ています。"
	}
	payload := map[string]any{
		"to": partyID,
		"messages": []any{
			map[string]any{
				"type":    "template",
				"altText": "来訪者が受付に来ています。ご対応できますか？",
				"template": map[string]any{
					"type":  "buttons",
					"title": title,
					"text":  message,
					"actions": []buttonAction{
						{Type: "message", Label: "今すぐ対応する", Text: "今すぐ対応する"},
						{Type: "message", Label: "2分以内に対応する", Text: "2分以内に対応する"},
						{Type: "message", Label: "対応出来ない", Text: "対応出来ない"},
					},
				},
			},
		},
	}
	n.post(ctx, "/message/push", payload)
}

// PushText sends a plain text message
func (n *LineNotifier) PushText(ctx context.Context, partyID, text string) {
	payload := map[string]any{
		"to": partyID,
		"messages": []any{
			map[string]any{"type": "text", "text": text},
		},
	}
	n.post(ctx, "/message/push", payload)
}

// PushContactCard sends the visitor's details with a tap-to-call action
// when a phone number was collected
func (n *LineNotifier) PushContactCard(ctx context.Context, partyID string, card ContactCard) {
	nameDisplay := card.Name
	if nameDisplay == "" {
		nameDisplay = "来訪者"
	}

	phone := nonDialChars.ReplaceAllString(card.Phone, "")
	var text string
	var actions []buttonAction
	if phone != "" {
		text = fmt.Sprintf("%s 連絡先は%sです。", card.Body, phone)
		actions = []buttonAction{
			{Type: "uri", Label: "お電話をかける", URI: "tel:" + phone},
		}
	} else {
		text = card.Body + " 連絡先はありません。"
		actions = []buttonAction{
			{Type: "message", Label: "連絡先なし", Text: "電話番号が登録されていません。"},
		}
	}
	// LINE caps the button template body at 60 characters
	if runes := []rune(text); len(runes) > 60 {
		text = string(runes[:60])
	}

	payload := map[string]any{
		"to": partyID,
		"messages": []any{
			map[string]any{
				"type":    "template",
				"altText": nameDisplay + "様がお寺に訪問しました",
				"template": map[string]any{
					"type":    "buttons",
					"title":   card.Title,
					"text":    text,
					"actions": actions,
				},
			},
		},
	}
	n.post(ctx, "/message/push", payload)
}

// PushNote sends a titled note as a flex bubble
func (n *LineNotifier) PushNote(ctx context.Context, partyID, title, body string) {
	payload := map[string]any{
		"to": partyID,
		"messages": []any{
			map[string]any{
				"type":    "flex",
				"altText": "伝言があります",
				"contents": map[string]any{
					"type": "bubble",
					"body": map[string]any{
						"type":   "box",
						"layout": "vertical",
						"contents": []any{
							map[string]any{
								"type":   "text",
								"text":   title,
								"weight": "bold",
								"size":   "lg",
								"align":  "start",
								"wrap":   true,
							},
							map[string]any{
								"type":   "text",
								"text":   body,
								"wrap":   true,
								"margin": "md",
							},
						},
					},
				},
			},
		},
	}
	n.post(ctx, "/message/push", payload)
}

// Reply answers a webhook event through the reply endpoint
func (n *LineNotifier) Reply(ctx context.Context, replyToken, text string) {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages": []any{
			map[string]any{"type": "text", "text": text},
		},
	}
	n.post(ctx, "/message/reply", payload)
}

// post delivers a payload and logs the outcome. Delivery failures stay
// here; an unreached party simply never responds.
func (n *LineNotifier) post(ctx context.Context, path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to encode push payload", logger.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Failed to build push request", logger.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.accessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Push request failed",
			logger.String("path", path),
			logger.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		n.logger.Error("Push rejected",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(respBody)))
		return
	}
	n.logger.Debug("Push delivered", logger.String("path", path))
}
