package models

// Названия тарифов.
const (
	PlanFree       = "free"
	PlanBusiness   = "business"
	PlanEnterprise = "enterprise"
)

// Названия ресурсов, по которым ведётся учёт потребления.
const (
	ResourceLeads        = "leads"
	ResourceMessages     = "messages"
	ResourceMassMessages = "massMessages"
	ResourceImportBatch  = "importBatch"
)

// Unlimited обозначает отсутствие лимита по ресурсу.
const Unlimited = -1

// PlanLimits отображает название ресурса в целочисленный лимит,
// где -1 означает безлимит.
type PlanLimits map[string]int

var planLimits = map[string]PlanLimits{
	PlanFree: {
		ResourceLeads:        100,
		ResourceMessages:     50,
		ResourceMassMessages: 0,
		ResourceImportBatch:  25,
	},
	PlanBusiness: {
		ResourceLeads:        5000,
		ResourceMessages:     2000,
		ResourceMassMessages: 500,
		ResourceImportBatch:  500,
	},
	PlanEnterprise: {
		ResourceLeads:        Unlimited,
		ResourceMessages:     Unlimited,
		ResourceMassMessages: Unlimited,
		ResourceImportBatch:  Unlimited,
	},
}

// GetPlanLimits возвращает таблицу лимитов для тарифа.
// Неизвестный тариф трактуется как free.
func GetPlanLimits(plan string) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// LimitFor возвращает лимит тарифа по ресурсу.
// Неизвестный ресурс считается недоступным (лимит 0).
func (l PlanLimits) LimitFor(resource string) int {
	if v, ok := l[resource]; ok {
		return v
	}
	return 0
}

// ResourceUsage описывает потребление одного ресурса для отчёта в UI.
type ResourceUsage struct {
	Resource string `json:"resource"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit"`
}
