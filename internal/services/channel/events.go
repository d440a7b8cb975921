package channel

import (
	"log/slog"
	"time"

	"github.com/leadpilot/leadpilot/internal/lib/sl"
)

// Ключи маршрутизации событий перехода канала.
const (
	RouteConnected    = "channel.connected"
	RouteDisconnected = "channel.disconnected"
)

// Event типизированное событие перехода состояния канала.
// Публикуется в очередь, подписчики (UI, нотификатор) читают её сами —
// контроллер никого не вызывает напрямую.
type Event struct {
	Type        string    `json:"type"`
	AccountUID  string    `json:"account_uid"`
	InstanceID  string    `json:"instance_id,omitempty"`
	ProfileName string    `json:"profile_name,omitempty"`
	At          time.Time `json:"at"`
}

// EventPublisher описывает публикацию событий в очередь.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// emit публикует событие перехода. Вызывается только на смене состояния,
// повторные наблюдения того же состояния событий не порождают.
func (c *Controller) emit(route, accountUID, instanceID, profileName string) {
	event := Event{
		Type:        route,
		AccountUID:  accountUID,
		InstanceID:  instanceID,
		ProfileName: profileName,
		At:          time.Now().UTC(),
	}
	if err := c.events.Publish(route, event); err != nil {
		c.log.Warn("failed to publish channel event",
			slog.String("route", route),
			slog.String("account_uid", accountUID),
			sl.Err(err))
	}
}
