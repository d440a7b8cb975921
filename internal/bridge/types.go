package bridge

import "time"

// Запрос к мосту на начало привязки канала.
type connectRequest struct {
	AccountUID string `json:"account_uid"`
}

// ConnectResponse ответ моста на запрос привязки.
// Либо возвращается код для сканирования, либо признак уже активной сессии.
type ConnectResponse struct {
	AlreadyConnected bool   `json:"already_connected"`
	PairingCode      string `json:"pairing_code,omitempty"`
	InstanceID       string `json:"instance_id,omitempty"`
	ProfileName      string `json:"profile_name,omitempty"`
	PairingSecret    string `json:"pairing_secret,omitempty"`
}

// StatusResponse ответ моста о текущем состоянии сессии.
type StatusResponse struct {
	Status        string `json:"status"`
	Connected     bool   `json:"connected"`
	InstanceID    string `json:"instance_id,omitempty"`
	ProfileName   string `json:"profile_name,omitempty"`
	PairingSecret string `json:"pairing_secret,omitempty"`
}

// DisconnectResponse ответ моста на запрос отключения сессии.
type DisconnectResponse struct {
	OK bool `json:"ok"`
}

type sendMessageRequest struct {
	InstanceID string    `json:"instance_id"`
	To         string    `json:"to"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
