package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TunnelDay: Bir üretim günü için soğutma tüneli kaydının başlığı.
// Günün tüm satırları her kayıtta komple silinip yeniden yazılır;
// satır bazında güncelleme yoktur.
type TunnelDay struct {
	ID        uint      `gorm:"primaryKey"`
	Date      time.Time `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Rows []TunnelRow `gorm:"foreignKey:DayID;constraint:OnDelete:CASCADE"`
}

// TunnelRow: Tünel tablosunun tek satırı; alanlar UI kolonlarına karşılık gelir.
type TunnelRow struct {
	ID    uint `gorm:"primaryKey"`
	DayID uint `gorm:"not null;index;index:idx_tunnel_rows_day_order,priority:1"`
	Day   TunnelDay

	ProductKind ProductKind `gorm:"size:20;not null;index"`
	ProductCode int         `gorm:"not null;index;check:chk_tunnel_rows_product_code,product_code >= 1 AND product_code <= 365"`

	BarProductionDate *time.Time

	// Süre/sıcaklıklar
	CoolingTimeMin *int `gorm:"check:chk_tunnel_rows_cooling_time,cooling_time_min IS NULL OR (cooling_time_min >= 0 AND cooling_time_min <= 600)"`
	TempTunnel     decimal.NullDecimal `gorm:"type:numeric(4,1)"`
	TempInlet      decimal.NullDecimal `gorm:"type:numeric(4,1)"`
	TempShellOut   decimal.NullDecimal `gorm:"type:numeric(4,1)"`
	TempCoreOut    decimal.NullDecimal `gorm:"type:numeric(4,1)"`

	// Alınan araba numaraları (CSV) + kayıt anında hesaplanan toplam kg.
	// SumTakenKG yazma anındaki yük durumlarından türetilmiş bir cache'tir;
	// sonradan yapılan ağırlık düzenlemelerini YANSITMAZ. Bilinen ve kabul
	// edilen bir sınırlama, bug değil.
	TakenCartsCSV string          `gorm:"size:512"`
	SumTakenKG    decimal.Decimal `gorm:"type:numeric(8,1);not null;default:0.0"`

	// Kullanıcının satırları eklediği sıra
	OrderNo int `gorm:"not null;default:0;index:idx_tunnel_rows_day_order,priority:2"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TakenCartsList: CSV'den boş olmayan araba numaralarını döner.
func (r *TunnelRow) TakenCartsList() []string {
	if r.TakenCartsCSV == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(r.TakenCartsCSV, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetTakenCarts: Numara listesinden CSV alanını doldurur.
func (r *TunnelRow) SetTakenCarts(carts []string) {
	var parts []string
	for _, c := range carts {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	r.TakenCartsCSV = strings.Join(parts, ",")
}
