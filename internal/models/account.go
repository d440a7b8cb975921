// Package models содержит доменные структуры: аккаунт, тарифные лимиты,
// лиды, подключение канала и результат синхронизации,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Account представляет аккаунт владельца лидов.
// Поля TrialStart/TrialEnd могут быть nil — это означает отсутствие пробного периода.
type Account struct {
	UID          string     // Идентификатор аккаунта (uuid)
	Email        string     // Электронная почта
	Username     string     // Имя пользователя
	PasswordHash string     // bcrypt-хэш пароля
	Role         string     // Роль ("user" или "admin")
	Plan         string     // Базовый тариф: free, business, enterprise
	TrialPlan    string     // Тариф, выданный на пробный период
	TrialStart   *time.Time // Начало пробного периода
	TrialEnd     *time.Time // Конец пробного периода
}

// EffectivePlan возвращает тариф, по которому действуют лимиты в момент now.
// Пока идёт пробный период, действует выданный на него тариф;
// после его истечения аккаунт сразу возвращается на базовый тариф.
func (a *Account) EffectivePlan(now time.Time) string {
	if a.TrialPlan != "" && a.TrialStart != nil && a.TrialEnd != nil &&
		!now.Before(*a.TrialStart) && now.Before(*a.TrialEnd) {
		return a.TrialPlan
	}
	return a.Plan
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
