package audit

import (
	"encoding/json"
	"fmt"

	"sogukdepo-backend/internal/models"

	"gorm.io/gorm"
)

// Write: Olay günlüğüne tek kayıt ekler. Payload JSON'a çevrilemezse "null"
// yazılır; jsonb kolonu boş string kabul etmez.
// db parametresi transaction da olabilir; mutasyonla aynı tx içinde log
// yazmak isteyen servisler tx'i geçirir.
func Write(db *gorm.DB, model string, action models.EventAction, refID uint, payload any) error {
	payloadStr := "null"
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			payloadStr = string(b)
		}
	}

	entry := models.EventLog{
		Model:   model,
		Action:  action,
		RefID:   refID,
		Payload: payloadStr,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("olay günlüğü kaydedilemedi: %w", err)
	}

	return nil
}
