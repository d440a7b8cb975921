package models

import "time"

// SyncRun представляет итог одного прохода синхронизации лидов
// из внешнего источника. Хранится только последний прогон по аккаунту.
type SyncRun struct {
	AccountUID   string    `json:"-"`
	SourceURL    string    `json:"source_url"`
	RanAt        time.Time `json:"ran_at"`
	Added        int       `json:"added"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	LimitReached bool      `json:"limit_reached"`
}

// DummySyncRequest используется для приёма запроса на синхронизацию из JSON.
type DummySyncRequest struct {
	SourceURL string `json:"source_url" validate:"required,url"`
}
