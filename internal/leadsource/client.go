package leadsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// UpstreamStatusError возвращается при неуспешном статусе ответа источника.
type UpstreamStatusError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("lead source returned status %s", e.Status)
}

// Client получает кандидатов из внешнего вебхука.
// Таймаут задаётся дедлайном переданного контекста, а не самим клиентом.
type Client struct {
	httpClient *http.Client
}

// NewClient создаёт новый клиент источника лидов.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// Fetch запрашивает кандидатов по адресу sourceURL.
// Сначала выполняется GET; если источник не принимает этот метод,
// выполняется один повтор POST-запросом с пустым пробным телом —
// часть пользовательских автоматизаций отвечает только на него.
func (c *Client) Fetch(ctx context.Context, sourceURL string) ([]Candidate, error) {
	const op = "leadsource.Fetch"

	resp, err := c.doGet(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		_ = resp.Body.Close()
		resp, err = c.doProbePost(ctx, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s: %w", op, &UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates, err := parseCandidates(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return candidates, nil
}

func (c *Client) doGet(ctx context.Context, sourceURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) doProbePost(ctx context.Context, sourceURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sourceURL, bytes.NewBufferString("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
