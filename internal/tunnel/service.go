package tunnel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sogukdepo-backend/internal/audit"
	"sogukdepo-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrDayNotFound = errors.New("tünel günü bulunamadı")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NormalizeKind: Ürün çeşidini esnek kabul eder - tam değer veya
// büyük/küçük harf duyarsız eşleşme. Eski istemciler farklı yazımlar gönderiyor.
func NormalizeKind(raw string) (models.ProductKind, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, k := range models.ProductKinds() {
		if string(k) == raw || strings.EqualFold(string(k), raw) {
			return k, true
		}
	}
	return "", false
}

type RowInput struct {
	ProductKind       models.ProductKind
	ProductCode       int
	BarProductionDate *time.Time
	CoolingTimeMin    *int
	TempTunnel        decimal.NullDecimal
	TempInlet         decimal.NullDecimal
	TempShellOut      decimal.NullDecimal
	TempCoreOut       decimal.NullDecimal
	TakenCarts        []string
}

// SaveDay: Günün tüm satırlarını KOMPLE değiştirir - transaction içinde
// mevcut satırlar silinir, gelenler sırasıyla yazılır. Satır bazında
// güncelleme yoktur; ekran her zaman günün tamamını gönderir.
// sum_taken_kg her satır için kayıt anında hesaplanır ve cache'lenir.
func (s *Service) SaveDay(date time.Time, rows []RowInput) (*models.TunnelDay, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("en az bir satır gerekli")
	}
	for i, r := range rows {
		if !models.IsValidKind(r.ProductKind) {
			return nil, fmt.Errorf("satır %d: geçersiz ürün çeşidi: %s", i+1, r.ProductKind)
		}
		if r.ProductCode < 1 || r.ProductCode > 365 {
			return nil, fmt.Errorf("satır %d: ürün kodu 1-365 arasında olmalı", i+1)
		}
	}

	day := models.TunnelDay{Date: date}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", date).FirstOrCreate(&day).Error; err != nil {
			return err
		}
		if err := tx.Where("day_id = ?", day.ID).Delete(&models.TunnelRow{}).Error; err != nil {
			return err
		}

		records := make([]models.TunnelRow, 0, len(rows))
		for i, r := range rows {
			row := models.TunnelRow{
				DayID:             day.ID,
				ProductKind:       r.ProductKind,
				ProductCode:       r.ProductCode,
				BarProductionDate: r.BarProductionDate,
				CoolingTimeMin:    r.CoolingTimeMin,
				TempTunnel:        r.TempTunnel,
				TempInlet:         r.TempInlet,
				TempShellOut:      r.TempShellOut,
				TempCoreOut:       r.TempCoreOut,
				SumTakenKG:        s.sumWeightsFor(tx, r.ProductKind, r.ProductCode, r.TakenCarts),
				OrderNo:           i,
			}
			row.SetTakenCarts(r.TakenCarts)
			records = append(records, row)
		}

		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return err
		}

		return audit.Write(tx, "tunnel_day", models.EventActionUpdate, day.ID, map[string]any{
			"date": date.Format("2006-01-02"),
			"rows": len(records),
		})
	})
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// sumWeightsFor: Verilen araba numaraları için toplam kg. Her numara için
// (çeşit, kod, araba) eşleşen EN SON yük alınır; üretime alınmışsa snapshot,
// değilse güncel ağırlık kullanılır. Eşleşmeyen numaralar sessizce atlanır.
func (s *Service) sumWeightsFor(tx *gorm.DB, kind models.ProductKind, code int, cartNos []string) decimal.Decimal {
	total := decimal.Zero
	for _, no := range cartNos {
		no = strings.TrimSpace(no)
		if no == "" {
			continue
		}
		var load models.Load
		err := tx.
			Joins("JOIN carts ON carts.id = loads.cart_id").
			Where("loads.product_kind = ? AND loads.product_code = ? AND carts.number = ?", kind, code, no).
			Order("loads.id DESC").
			First(&load).Error
		if err != nil {
			continue
		}
		total = total.Add(load.TakenWeight())
	}
	return total.Round(1)
}

// DayByDate: Günün satırlarını ekleme sırasıyla döner. Gün yoksa ErrDayNotFound.
func (s *Service) DayByDate(date time.Time) (*models.TunnelDay, []models.TunnelRow, error) {
	var day models.TunnelDay
	err := s.db.Where("date = ?", date).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDayNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var rows []models.TunnelRow
	if err := s.db.Where("day_id = ?", day.ID).Order("order_no, id").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return &day, rows, nil
}

// CodesInStorage: Depoda aktif yükü olan ürün kodları (tek çeşit için, sıralı).
func (s *Service) CodesInStorage(kind models.ProductKind) ([]int, error) {
	var codes []int
	err := s.db.Model(&models.Load{}).
		Where("product_kind = ? AND status = ?", kind, models.LoadStatusInColdRoom).
		Distinct("product_code").
		Order("product_code").
		Pluck("product_code", &codes).Error
	return codes, err
}

// LatestPackingDate: (çeşit, kod) için depodaki en son paketleme tarihi.
// Eşleşme yoksa nil döner, hata değil.
func (s *Service) LatestPackingDate(kind models.ProductKind, code int) (*time.Time, error) {
	var load models.Load
	err := s.db.
		Where("product_kind = ? AND product_code = ? AND status = ?", kind, code, models.LoadStatusInColdRoom).
		Order("packing_date DESC, id DESC").
		First(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &load.PackingDate, nil
}

// CartsHolding: (çeşit, kod) taşıyan arabaların numaraları (depodakiler).
func (s *Service) CartsHolding(kind models.ProductKind, code int) ([]string, error) {
	var numbers []string
	err := s.db.Model(&models.Load{}).
		Joins("JOIN carts ON carts.id = loads.cart_id").
		Where("loads.product_kind = ? AND loads.product_code = ? AND loads.status = ?",
			kind, code, models.LoadStatusInColdRoom).
		Distinct("carts.number").
		Order("carts.number").
		Pluck("carts.number", &numbers).Error
	return numbers, err
}

type CartDetail struct {
	CartNumber    string
	TotalWeightKG *decimal.Decimal
	Tank          string
	LoadID        *uint
	IsTaken       bool
	Found         bool
}

// CartInfo: Tünel ekranındaki araba detay popup'ı için. (çeşit, kod, araba)
// eşleşen en son yük baz alınır; tank boşsa arabanın herhangi bir yükünden
// son bilinen tank değeri alınır.
func (s *Service) CartInfo(kind models.ProductKind, code int, cartNo string) (*CartDetail, error) {
	detail := &CartDetail{CartNumber: strings.TrimSpace(cartNo)}

	var load models.Load
	err := s.db.
		Joins("JOIN carts ON carts.id = loads.cart_id").
		Where("loads.product_kind = ? AND loads.product_code = ? AND carts.number = ?",
			kind, code, detail.CartNumber).
		Order("loads.id DESC").
		First(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return detail, nil
	}
	if err != nil {
		return nil, err
	}

	w := load.TakenWeight()
	id := load.ID
	detail.Found = true
	detail.TotalWeightKG = &w
	detail.LoadID = &id
	detail.IsTaken = load.Status == models.LoadStatusTakenToProduction
	detail.Tank = load.Tank

	if detail.Tank == "" {
		var last models.Load
		err := s.db.
			Joins("JOIN carts ON carts.id = loads.cart_id").
			Where("carts.number = ? AND loads.tank <> ''", detail.CartNumber).
			Order("loads.id DESC").
			First(&last).Error
		if err == nil {
			detail.Tank = last.Tank
		}
	}

	return detail, nil
}
