package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart: Soğuk hava deposundaki fiziksel taşıma arabası.
// Numara benzersizdir; üzerinde en fazla bir aktif yük bulunabilir
// (loads tablosundaki kısmi unique index ile garanti edilir).
type Cart struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"size:20;uniqueIndex;not null"`

	// Nominal kapasite [kg]
	CapacityKG decimal.Decimal `gorm:"type:numeric(7,2);not null;default:430.00"`

	// Boş araba ağırlığı (dara) [kg] - veri girişinde opsiyonel doldurulur
	TareKG decimal.NullDecimal `gorm:"type:numeric(5,1)"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Loads []Load
}
