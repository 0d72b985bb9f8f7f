// Package telegram talks to the Telegram Bot API over plain HTTP and adapts
// it to the bot's transport: long polling or webhook delivery of updates,
// inline keyboards for choices and photo cards for catalog entries.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/netx"
	"github.com/leonid-shevtsov/telegold"
	"github.com/yuin/goldmark"
	"golang.org/x/time/rate"
)

// MaxDownloadBytes is the Bot API limit for files fetched by bots.
const MaxDownloadBytes = 20 << 20

// MaxCaptionRunes is the Bot API limit for photo captions.
const MaxCaptionRunes = 1024

var markdown = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

// APIError is a Bot API answer with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client is a thin Bot API client. Sending methods are paced by a shared
// limiter so bursts of replies stay under the flood limits.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client for baseURL (normally https://api.telegram.org).
// sendRate is the number of outgoing messages allowed per second.
func NewClient(baseURL, token string, httpClient *http.Client, sendRate float64) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	burst := int(sendRate)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// FileURL is the download location of a file returned by getFile.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
}

// call POSTs payload as JSON and decodes the result into out (may be nil).
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: marshal: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// the URL carries the token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram %s: %w", method, uerr.Err)
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("telegram %s: decode response (%s): %w", method, resp.Status, err)
	}
	if !r.OK {
		return &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
	}
	if out != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends Markdown text. If Telegram rejects the converted HTML
// the text is resent without formatting.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, markup *InlineKeyboardMarkup) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"chat_id":    chatID,
		"text":       ToHTML(text),
		"parse_mode": "HTML",
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	err := c.call(ctx, "sendMessage", payload, nil)
	if isParseError(err) {
		delete(payload, "parse_mode")
		payload["text"] = text
		err = c.call(ctx, "sendMessage", payload, nil)
	}
	return err
}

// SendPhoto sends a photo by URL with a Markdown caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string, markup *InlineKeyboardMarkup) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    ToHTML(truncateRunes(caption, MaxCaptionRunes)),
		"parse_mode": "HTML",
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "sendPhoto", payload, nil)
}

// AnswerCallbackQuery stops the client-side spinner of a pressed button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": id}, nil)
}

func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f)
	return f, err
}

// Download fetches a file by id, refusing anything above MaxDownloadBytes.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: no file_path for %s", fileID)
	}
	if f.FileSize > MaxDownloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", netx.ErrTooLarge, f.FileSize)
	}
	return netx.Download(ctx, c.http, c.FileURL(f.FilePath), MaxDownloadBytes)
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook is required before getUpdates works on a bot that had a
// webhook set.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

// ToHTML converts the bot's Markdown subset to Telegram HTML.
//
// Replies are line oriented: every line break is kept and only inline
// markup is interpreted. Each line is converted on its own with its leading
// block marker escaped, so a note line such as "1. first", "- item" or
// "---" stays literal text instead of becoming a list or a rule.
func ToHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = lineToHTML(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func lineToHTML(line string) string {
	rest := strings.TrimLeft(line, " \t")
	if rest == "" {
		return ""
	}
	indent := line[:len(line)-len(rest)]

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(literalBlock(rest)), &buf); err != nil {
		return line
	}
	return indent + strings.TrimSpace(buf.String())
}

// literalBlock escapes the marker that would make line a heading, quote,
// list item, rule or fence.
func literalBlock(line string) string {
	switch {
	case strings.HasPrefix(line, "#"), strings.HasPrefix(line, ">"),
		strings.HasPrefix(line, "```"), strings.HasPrefix(line, "~~~"):
		return `\` + line
	case isRule(line):
		return `\` + line
	case strings.IndexByte("-+*", line[0]) >= 0 && (len(line) == 1 || line[1] == ' ' || line[1] == '\t'):
		return `\` + line
	}

	digits := 0
	for digits < len(line) && digits < 10 && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		return line[:digits] + `\` + line[digits:]
	}
	return line
}

// isRule reports whether line is made of one of '-', '*', '_', '=' and
// spaces only, which Markdown reads as a rule or a heading underline.
func isRule(line string) bool {
	c := line[0]
	if strings.IndexByte("-*_=", c) < 0 {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != c && line[i] != ' ' && line[i] != '\t' {
			return false
		}
	}
	return true
}

func isParseError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(apiErr.Description, "can't parse entities")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
