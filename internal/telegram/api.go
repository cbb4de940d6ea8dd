// Package telegram is a small Bot API client covering what the bot sends and
// receives: long-polled updates, replies, admin promotion and custom titles,
// animation uploads and dice.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// RequestError is a non-OK Bot API response. Description is the service's
// own wording and is shown to users as-is when an admin call is declined.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	prefix := "telegram"
	if e.Method != "" {
		prefix = "telegram " + e.Method
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, desc)
		}
		return prefix + ": " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 {
		if body != "" {
			return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, body)
		}
		return fmt.Sprintf("%s: http %d", prefix, e.StatusCode)
	}
	if body != "" {
		return prefix + ": " + body
	}
	return prefix + ": request failed"
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var env apiResponse
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, method string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return nil, err
	}
	var out User
	if err := c.do(req, "getMe", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpdates long-polls for updates after offset and returns the next offset
// to acknowledge them.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	url := fmt.Sprintf("%s?timeout=%d&allowed_updates=%s", c.methodURL("getUpdates"), secs, `%5B%22message%22%5D`)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, offset, err
	}
	var updates []Update
	if err := c.do(req, "getUpdates", &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

func IsPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

func IsMarkdownParseError(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	desc := strings.ToLower(reqErr.Description)
	return strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity")
}

type sendMessageRequest struct {
	ChatID              int64  `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode,omitempty"`
	ReplyToMessageID    int64  `json:"reply_to_message_id,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// SendMessage sends text. When a MarkdownV2 message is rejected as
// unparseable it is resent once as plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	req := sendMessageRequest{
		ChatID:              chatID,
		Text:                text,
		ParseMode:           strings.TrimSpace(opts.ParseMode),
		ReplyToMessageID:    opts.ReplyToMessageID,
		DisableNotification: opts.DisableNotification,
	}
	err := c.postJSON(ctx, "sendMessage", req, nil)
	if err == nil || req.ParseMode == "" || !IsMarkdownParseError(err) {
		return err
	}
	req.ParseMode = ""
	return c.postJSON(ctx, "sendMessage", req, nil)
}

type sendDiceRequest struct {
	ChatID              int64  `json:"chat_id"`
	Emoji               string `json:"emoji,omitempty"`
	ReplyToMessageID    int64  `json:"reply_to_message_id,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// SendDice asks the service to roll its native die (1..6) in the chat and
// returns the rolled value.
func (c *Client) SendDice(ctx context.Context, chatID int64, opts SendOptions) (int, error) {
	var out struct {
		Dice *struct {
			Emoji string `json:"emoji"`
			Value int    `json:"value"`
		} `json:"dice,omitempty"`
	}
	err := c.postJSON(ctx, "sendDice", sendDiceRequest{
		ChatID:              chatID,
		ReplyToMessageID:    opts.ReplyToMessageID,
		DisableNotification: opts.DisableNotification,
	}, &out)
	if err != nil {
		return 0, err
	}
	if out.Dice == nil {
		return 0, nil
	}
	return out.Dice.Value, nil
}

type promoteChatMemberRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
	AdminRights
}

func (c *Client) PromoteChatMember(ctx context.Context, chatID, userID int64, rights AdminRights) error {
	return c.postJSON(ctx, "promoteChatMember", promoteChatMemberRequest{
		ChatID:      chatID,
		UserID:      userID,
		AdminRights: rights,
	}, nil)
}

type setCustomTitleRequest struct {
	ChatID      int64  `json:"chat_id"`
	UserID      int64  `json:"user_id"`
	CustomTitle string `json:"custom_title"`
}

func (c *Client) SetChatAdministratorCustomTitle(ctx context.Context, chatID, userID int64, title string) error {
	return c.postJSON(ctx, "setChatAdministratorCustomTitle", setCustomTitleRequest{
		ChatID:      chatID,
		UserID:      userID,
		CustomTitle: title,
	}, nil)
}

// SendAnimation uploads a local GIF/MP4 file as an animation.
func (c *Client) SendAnimation(ctx context.Context, chatID int64, filePath string, opts SendOptions) error {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return fmt.Errorf("missing file path")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is a directory: %s", filePath)
	}
	filename := filepath.Base(filePath)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		if opts.ReplyToMessageID != 0 {
			_ = mw.WriteField("reply_to_message_id", strconv.FormatInt(opts.ReplyToMessageID, 10))
		}
		if opts.DisableNotification {
			_ = mw.WriteField("disable_notification", "true")
		}

		part, err := mw.CreateFormFile("animation", filename)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendAnimation"), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, "sendAnimation", nil)
}
