package models

import "time"

// ProductionPlan: Kalıcı üretim planı (tek global kayıt, slug='default').
// Daysler ve adetler JSON olarak saklanır; her kayıtta komple üzerine yazılır,
// geçmiş tutulmaz.
//
//	Dates: { "1": "YYYY-MM-DD", ... }
//	Pcs:   { "1": { "Naturalny": 0, "Ziołowy": 0, "Pomidorowy": 0 }, ... }
type ProductionPlan struct {
	ID        uint   `gorm:"primaryKey"`
	Slug      string `gorm:"size:32;uniqueIndex;not null;default:default"`
	DaysCount int    `gorm:"not null;default:1"`
	Dates     string `gorm:"type:jsonb;not null;default:'{}'"`
	Pcs       string `gorm:"type:jsonb;not null;default:'{}'"`

	UpdatedBy string `gorm:"size:64"`
	UpdatedAt time.Time
}

const PlanSlugDefault = "default"
