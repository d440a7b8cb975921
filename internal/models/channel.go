package models

import "time"

// Состояния подключения канала исходящих сообщений.
const (
	ChannelDisconnected   = "disconnected"
	ChannelPendingPairing = "pending_pairing"
	ChannelConnecting     = "connecting"
	ChannelConnected      = "connected"
)

// ChannelConnection хранит состояние привязки канала для аккаунта.
// Запись создаётся при первой попытке подключения и мутируется
// только контроллером привязки.
type ChannelConnection struct {
	AccountUID    string    // Аккаунт-владелец
	Status        string    // Текущее состояние
	InstanceID    string    // Идентификатор сессии у провайдера
	PairingSecret string    // Секрет сессии (аналог api-ключа)
	PairingCode   string    // Одноразовый код для сканирования
	ProfileName   string    // Имя профиля у провайдера
	UpdatedAt     time.Time // Время последнего изменения
}

// IsConnected сообщает, готов ли канал к отправке сообщений.
func (c *ChannelConnection) IsConnected() bool {
	return c != nil && c.Status == ChannelConnected
}
