// Package bridge реализует HTTP-клиент внешнего месседжинг-моста,
// который держит сессии канала и доставляет исходящие сообщения.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable возвращается, когда мост недоступен или отвечает 5xx.
// Для цикла опроса такая ошибка не фатальна и гасится повтором.
var ErrUnavailable = errors.New("bridge unavailable")

type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент месседжинг-моста.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return err
	}
	return nil
}

// Connect просит мост начать привязку сессии для аккаунта.
// Если сессия уже активна, мост возвращает её данные вместо кода сканирования.
func (c *Client) Connect(ctx context.Context, accountUID string) (*ConnectResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/sessions/connect", connectRequest{AccountUID: accountUID})
	if err != nil {
		return nil, err
	}
	var connectResp ConnectResponse
	if err := c.do(req, &connectResp); err != nil {
		return nil, err
	}
	return &connectResp, nil
}

// Status запрашивает состояние сессии аккаунта у моста.
func (c *Client) Status(ctx context.Context, accountUID string) (*StatusResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/sessions/"+accountUID+"/status", nil)
	if err != nil {
		return nil, err
	}
	var statusResp StatusResponse
	if err := c.do(req, &statusResp); err != nil {
		return nil, err
	}
	return &statusResp, nil
}

// Disconnect просит мост разорвать сессию аккаунта.
func (c *Client) Disconnect(ctx context.Context, accountUID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/sessions/"+accountUID+"/disconnect", nil)
	if err != nil {
		return err
	}
	var disconnectResp DisconnectResponse
	if err := c.do(req, &disconnectResp); err != nil {
		return err
	}
	if !disconnectResp.OK {
		return errors.New("bridge refused to disconnect session")
	}
	return nil
}

// SendMessage отправляет одно сообщение через подключённую сессию.
func (c *Client) SendMessage(ctx context.Context, instanceID, pairingSecret, to, text string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/messages", sendMessageRequest{
		InstanceID: instanceID,
		To:         to,
		Text:       text,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	req.Header.Set("X-Pairing-Secret", pairingSecret)
	return c.do(req, nil)
}
