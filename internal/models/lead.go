package models

import (
	"errors"
	"strings"
	"time"
)

// Источники появления лида.
const (
	LeadSourceManual  = "manual"
	LeadSourceWebhook = "webhook"
)

// ErrNoContact возвращается, когда у лида нет ни телефона, ни почты.
var ErrNoContact = errors.New("lead has neither phone nor email")

// Lead представляет собой каноническую запись контакта.
// Поле DedupKey вычисляется из телефона (или почты, если телефона нет)
// и уникально в пределах одного аккаунта.
type Lead struct {
	ID         int       `json:"id"`          // Идентификатор записи
	AccountUID string    `json:"account_uid"` // Аккаунт-владелец
	Name       string    `json:"name"`        // Имя контакта
	Phone      string    `json:"phone"`       // Телефон в нормализованном виде
	Email      string    `json:"email"`       // Почта в нормализованном виде
	Source     string    `json:"source"`      // Откуда появился лид: manual или webhook
	DedupKey   string    `json:"-"`           // Ключ дедупликации
	CreatedAt  time.Time `json:"created_at"`  // Время создания
}

// DummyLead используется для приёма данных лида из JSON-запроса,
// прежде чем конвертировать их в Lead.
type DummyLead struct {
	Name  string `json:"name" validate:"required,min=1,max=200"` // Имя контакта
	Phone string `json:"phone"`                                  // Телефон (опционально)
	Email string `json:"email"`                                  // Почта (опционально)
}

// NormalizePhone приводит телефон к виду, пригодному для сравнения:
// остаются только цифры и ведущий знак "+".
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail приводит почту к нижнему регистру без крайних пробелов.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LeadDedupKey вычисляет ключ дедупликации: телефон, при его отсутствии — почта.
// Возвращает ErrNoContact, если нет ни того, ни другого.
func LeadDedupKey(phone, email string) (string, error) {
	if p := NormalizePhone(phone); p != "" {
		return "phone:" + p, nil
	}
	if e := NormalizeEmail(email); e != "" {
		return "email:" + e, nil
	}
	return "", ErrNoContact
}
