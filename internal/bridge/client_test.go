package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Connect(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		wantErr      bool
		wantPairing  string
		wantActive   bool
		wantInstance string
	}{
		{
			name: "мост возвращает код для сканирования",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/sessions/connect", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"pairing_code":"QR-12345"}`))
			},
			wantPairing: "QR-12345",
		},
		{
			name: "сессия уже активна",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"already_connected":true,"instance_id":"inst-1","profile_name":"Shop"}`))
			},
			wantActive:   true,
			wantInstance: "inst-1",
		},
		{
			name: "мост отвечает 5xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient(srv.URL, "test-key", time.Second)
			resp, err := client.Connect(context.Background(), "acct-1")

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPairing, resp.PairingCode)
			assert.Equal(t, tt.wantActive, resp.AlreadyConnected)
			assert.Equal(t, tt.wantInstance, resp.InstanceID)
		})
	}
}

func TestClient_Status_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "test-key", 200*time.Millisecond)

	_, err := client.Status(context.Background(), "acct-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Disconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/acct-1/disconnect", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second)
	require.NoError(t, client.Disconnect(context.Background(), "acct-1"))
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret-1", r.Header.Get("X-Pairing-Secret"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second)
	err := client.SendMessage(context.Background(), "inst-1", "secret-1", "+79123456789", "hello")
	require.NoError(t, err)
}
