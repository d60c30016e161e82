package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"caseintake/internal/domain"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

const (
	maxHeaderFieldRunes = 256
	moreSourcesFormat   = "\n(+%d sumber lain)"
)

// Config controls the Bot API client.
type Config struct {
	BotToken   string
	ChatID     string
	APIBaseURL string
	// MinInterval spaces consecutive sends; zero disables pacing.
	MinInterval time.Duration
}

// Client implements ports.Deliverer with the Telegram Bot API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.telegram.org"
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return c
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts report as one HTML message. Every failure is a delivery error.
func (c *Client) Send(ctx context.Context, report domain.AnalyzedReportData) (domain.DeliveryResult, error) {
	result, err := c.send(ctx, report)
	if err != nil {
		return domain.DeliveryResult{}, domain.NewError(domain.ErrorCodeDelivery, err)
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, report domain.AnalyzedReportData) (domain.DeliveryResult, error) {
	if strings.TrimSpace(c.cfg.BotToken) == "" || strings.TrimSpace(c.cfg.ChatID) == "" {
		return domain.DeliveryResult{}, errors.New("Telegram bot token or chat id is not configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.DeliveryResult{}, err
		}
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                c.cfg.ChatID,
		Text:                  FormatReport(report),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.cfg.APIBaseURL, "/"), c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of the message.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return domain.DeliveryResult{}, fmt.Errorf("send to Telegram: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("read response: %w", err)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK || !parsed.OK {
		description := parsed.Description
		if description == "" {
			description = http.StatusText(resp.StatusCode)
		}
		return domain.DeliveryResult{}, fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, description)
	}

	return domain.DeliveryResult{MessageID: parsed.Result.MessageID}, nil
}

// FormatReport renders report as Telegram HTML within Telegram's limit.
// Sources take at most half of the space left after the header; the rest
// are counted in a trailing line. The summary is shortened to fit.
func FormatReport(report domain.AnalyzedReportData) string {
	var head strings.Builder
	fmt.Fprintf(&head, "<b>%s</b>\n", escapeWithin(report.Title, maxHeaderFieldRunes))
	fmt.Fprintf(&head, "<i>Pelapor: %s</i>\n\n", escapeWithin(report.Reporter, maxHeaderFieldRunes))

	remaining := maxMessageRunes - utf8.RuneCountInString(head.String())
	tail := formatSources(report.Sources, remaining/2)

	budget := remaining - utf8.RuneCountInString(tail)
	return head.String() + escapeWithin(strings.TrimSpace(report.Summary), budget) + tail
}

func formatSources(sources []domain.Source, limit int) string {
	if len(sources) == 0 {
		return ""
	}

	var tail strings.Builder
	tail.WriteString("\n\n<b>Sumber:</b>")
	used := utf8.RuneCountInString(tail.String())
	reserve := utf8.RuneCountInString(fmt.Sprintf(moreSourcesFormat, len(sources)))

	listed := 0
	for i, source := range sources {
		title := source.Title
		if title == "" {
			title = source.URI
		}
		line := fmt.Sprintf("\n%d. <a href=\"%s\">%s</a>", i+1, html.EscapeString(source.URI), html.EscapeString(title))
		n := utf8.RuneCountInString(line)
		if used+n+reserve > limit {
			break
		}
		tail.WriteString(line)
		used += n
		listed++
	}
	if listed < len(sources) {
		fmt.Fprintf(&tail, moreSourcesFormat, len(sources)-listed)
	}
	return tail.String()
}

// escapeWithin HTML-escapes s, dropping trailing runes until the escaped
// text plus an ellipsis fits in budget runes.
func escapeWithin(s string, budget int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}
	if budget <= 1 {
		return ""
	}
	runes := []rune(s)
	keep := budget - 1
	if keep > len(runes) {
		keep = len(runes)
	}
	for keep > 0 {
		escaped = html.EscapeString(string(runes[:keep]))
		over := utf8.RuneCountInString(escaped) - (budget - 1)
		if over <= 0 {
			return escaped + "…"
		}
		keep -= over
	}
	return "…"
}
