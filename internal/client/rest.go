package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

// RESTClient talks to the service's HTTP surface: the fallback send path and
// paginated history.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient builds a client for the service base URL.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Code != "" {
			return apperrors.New(apperrors.Code(payload.Code), payload.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SendMessage persists a message over REST. Satisfies FallbackSender; the
// server does not broadcast for this path.
func (c *RESTClient) SendMessage(ctx context.Context, target Target, content, clientKey string) (models.Message, error) {
	body := map[string]any{
		"content":    content,
		"client_key": clientKey,
	}
	if target.TopicID != 0 {
		body["topic_id"] = target.TopicID
	} else {
		body["chat_id"] = target.ChatID
	}

	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/chat/messages", body, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// FetchHistory loads one history page, oldest-first.
func (c *RESTClient) FetchHistory(ctx context.Context, target Target, page, limit int) ([]models.Message, models.Pagination, error) {
	q := url.Values{}
	if target.TopicID != 0 {
		q.Set("topic_id", strconv.Itoa(target.TopicID))
	} else {
		q.Set("chat_id", strconv.Itoa(target.ChatID))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Messages   []models.Message  `json:"messages"`
		Pagination models.Pagination `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/messages?"+q.Encode(), nil, &out); err != nil {
		return nil, models.Pagination{}, err
	}
	return out.Messages, out.Pagination, nil
}

// ListBlocked returns the ids of users the caller has blocked, for local
// view filtering.
func (c *RESTClient) ListBlocked(ctx context.Context) ([]int, error) {
	var out struct {
		Blocked []models.UserBlock `json:"blocked"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/blocked", nil, &out); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(out.Blocked))
	for _, b := range out.Blocked {
		ids = append(ids, b.BlockedID)
	}
	return ids, nil
}
