// Package leadsource реализует получение кандидатов в лиды
// из настроенного пользователем внешнего вебхука и нормализацию
// трёх допустимых форм ответа в один тип Candidate.
package leadsource

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrBadResponse возвращается, когда тело ответа источника
// не удаётся привести ни к одной из допустимых форм.
var ErrBadResponse = errors.New("lead source returned an unparseable payload")

// Candidate содержит сырые контактные данные одного кандидата.
// Поля-синонимы покрывают разные варианты именования во внешних автоматизациях.
type Candidate struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

// ContactName возвращает имя кандидата с учётом полей-синонимов.
func (c Candidate) ContactName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.FullName
}

// ContactPhone возвращает телефон кандидата с учётом полей-синонимов.
func (c Candidate) ContactPhone() string {
	if c.Phone != "" {
		return c.Phone
	}
	return c.PhoneNumber
}

// envelopeKeys перечисляет ключи объектов-обёрток, под которыми
// внешние источники отдают массив кандидатов.
var envelopeKeys = []string{"leads", "data", "items"}

// parseCandidates разбирает тело ответа источника.
// Допустимы: пустое тело (нет кандидатов), голый JSON-массив
// и объект с массивом под одним из ключей leads/data/items.
func parseCandidates(body []byte) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var list []Candidate
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, ErrBadResponse
	}
	for _, key := range envelopeKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, ErrBadResponse
		}
		return list, nil
	}
	return nil, ErrBadResponse
}
