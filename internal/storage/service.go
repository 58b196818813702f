package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sogukdepo-backend/internal/audit"
	"sogukdepo-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCartNotFound = errors.New("araba bulunamadı")
	ErrCartOccupied = errors.New("arabada zaten aktif yük var")
	ErrLoadNotFound = errors.New("yük bulunamadı")
	ErrLoadTaken    = errors.New("yük üretime alınmış, ağırlığı değiştirilemez")
)

// Ekran bazlı ağırlık üst sınırları [kg]. Depo girişi 500 ile, düzenleme ve
// toplu giriş formu 800 ile sınırlı; veritabanı kolonu numeric(5,1) olduğundan
// 800 mutlak tavandır.
var (
	MaxStorageWeightKG = decimal.NewFromInt(500)
	MaxFormWeightKG    = decimal.NewFromInt(800)
)

// Service: Araba/yük yaşam döngüsü. Araba başına tek aktif yük kuralını ve
// üretime alma geçişini (CAS) uygular.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateLoadInput struct {
	CartID          uint
	PackingDate     time.Time
	ProductionShift models.Shift
	ProductKind     models.ProductKind
	ProductCode     int
	HandledBy       string
	Tank            string
	Pieces          int
	WeightKG        decimal.Decimal
	MaxWeightKG     decimal.Decimal // boş bırakılırsa MaxStorageWeightKG
}

// validateWeight: 0 <= v <= max ve 0,5'in katı.
func validateWeight(v, max decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("ağırlık negatif olamaz")
	}
	if v.GreaterThan(max) {
		return fmt.Errorf("ağırlık %s kg'ı aşamaz", max.String())
	}
	return models.ValidateHalfKG(v)
}

// CreateLoad: Arabaya yeni yük koyar. Araba doluysa ErrCartOccupied döner.
// Buradaki doluluk sorgusu yalnız erken uyarı; asıl garanti insert'te devreye
// giren kısmi unique index (uniq_active_load_per_cart).
func (s *Service) CreateLoad(in CreateLoadInput) (*models.Load, error) {
	if !models.IsValidKind(in.ProductKind) {
		return nil, fmt.Errorf("geçersiz ürün çeşidi: %s", in.ProductKind)
	}
	if in.ProductCode < 1 || in.ProductCode > 365 {
		return nil, fmt.Errorf("ürün kodu 1-365 arasında olmalı")
	}
	if in.Pieces == 0 {
		in.Pieces = 66
	}
	if in.Pieces < 1 || in.Pieces > 66 {
		return nil, fmt.Errorf("adet 1-66 arasında olmalı")
	}
	if in.ProductionShift == "" {
		in.ProductionShift = models.ShiftI
	}

	maxW := in.MaxWeightKG
	if maxW.IsZero() {
		maxW = MaxStorageWeightKG
	}

	// Kullanıcı girişi her zaman önce en yakın 0,5 kg'a yuvarlanır
	weight := models.RoundToHalfKG(in.WeightKG)
	if err := validateWeight(weight, maxW); err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := s.db.First(&cart, in.CartID).Error; err != nil {
		return nil, ErrCartNotFound
	}

	var activeCount int64
	s.db.Model(&models.Load{}).
		Where("cart_id = ? AND status = ?", cart.ID, models.LoadStatusInColdRoom).
		Count(&activeCount)
	if activeCount > 0 {
		return nil, ErrCartOccupied
	}

	packingDate := in.PackingDate
	if packingDate.IsZero() {
		packingDate = time.Now()
	}

	load := models.Load{
		CartID:          cart.ID,
		PackingDate:     packingDate,
		ProductionShift: in.ProductionShift,
		ProductKind:     in.ProductKind,
		ProductCode:     in.ProductCode,
		HandledBy:       strings.TrimSpace(in.HandledBy),
		Tank:            strings.TrimSpace(in.Tank),
		Pieces:          in.Pieces,
		TotalWeightKG:   weight,
		// İlk kayıt ağırlığı bir kez yazılır; sonraki düzenlemeler dokunmaz
		InitialWeightKG: decimal.NewNullDecimal(weight),
		ProducedAt:      time.Now(),
		Status:          models.LoadStatusInColdRoom,
	}

	if err := s.db.Create(&load).Error; err != nil {
		if isUniqueActiveLoadViolation(err) {
			// Yarışı kaybettik: aynı anda başka biri yük koymuş
			return nil, ErrCartOccupied
		}
		return nil, fmt.Errorf("yük oluşturulamadı: %w", err)
	}

	_ = audit.Write(s.db, "load", models.EventActionCreate, load.ID, load)

	return &load, nil
}

func isUniqueActiveLoadViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "uniq_active_load_per_cart") ||
		strings.Contains(strings.ToUpper(msg), "UNIQUE") ||
		strings.Contains(msg, "duplicate key")
}

type BatchCommon struct {
	PackingDate     time.Time
	ProductionShift models.Shift
	ProductKind     models.ProductKind
	ProductCode     int
	HandledBy       string
}

type BatchRow struct {
	CartNumber string
	WeightKG   decimal.Decimal
	TareKG     decimal.NullDecimal
	Tank       string
	Pieces     int
}

type BatchResult struct {
	Created         int
	SkippedOccupied []string
	SkippedMissing  []string
	SkippedInvalid  []string
}

// CreateBatch: Toplu giriş - her satır bir araba. Satırlar bağımsız işlenir;
// dolu/eksik araba satırı atlanır, kalanlar kaydedilir (partiyi bozmaz).
// Satırlar arası atomiklik bilerek yok.
func (s *Service) CreateBatch(common BatchCommon, rows []BatchRow, createIfMissing bool) (*BatchResult, error) {
	if !models.IsValidKind(common.ProductKind) {
		return nil, fmt.Errorf("geçersiz ürün çeşidi: %s", common.ProductKind)
	}
	if common.ProductCode < 1 || common.ProductCode > 365 {
		return nil, fmt.Errorf("ürün kodu 1-365 arasında olmalı")
	}

	result := &BatchResult{}

	for _, row := range rows {
		number := strings.TrimSpace(row.CartNumber)
		if number == "" {
			continue
		}

		// Dara satırın parçası: bozuksa satırın tamamı reddedilir,
		// sessizce düşürülmez
		var tare decimal.NullDecimal
		if row.TareKG.Valid {
			rounded := models.RoundToHalfKG(row.TareKG.Decimal)
			if err := validateWeight(rounded, MaxFormWeightKG); err != nil {
				result.SkippedInvalid = append(result.SkippedInvalid, fmt.Sprintf("%s: dara: %v", number, err))
				continue
			}
			tare = decimal.NewNullDecimal(rounded)
		}

		var cart models.Cart
		err := s.db.Where("number = ?", number).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !createIfMissing {
				result.SkippedMissing = append(result.SkippedMissing, number)
				continue
			}
			cart = models.Cart{Number: number}
			if err := s.db.Create(&cart).Error; err != nil {
				result.SkippedMissing = append(result.SkippedMissing, number)
				continue
			}
			_ = audit.Write(s.db, "cart", models.EventActionCreate, cart.ID, cart)
		} else if err != nil {
			return nil, fmt.Errorf("araba sorgulanamadı: %w", err)
		}

		// Satırda dara verilmişse arabaya yaz (sonraki girişlerde autofill)
		if tare.Valid {
			cart.TareKG = tare
			_ = s.db.Model(&cart).Update("tare_kg", cart.TareKG).Error
		}

		_, err = s.CreateLoad(CreateLoadInput{
			CartID:          cart.ID,
			PackingDate:     common.PackingDate,
			ProductionShift: common.ProductionShift,
			ProductKind:     common.ProductKind,
			ProductCode:     common.ProductCode,
			HandledBy:       common.HandledBy,
			Tank:            row.Tank,
			Pieces:          row.Pieces,
			WeightKG:        row.WeightKG,
			MaxWeightKG:     MaxFormWeightKG,
		})
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, ErrCartOccupied):
			result.SkippedOccupied = append(result.SkippedOccupied, number)
		default:
			result.SkippedInvalid = append(result.SkippedInvalid, fmt.Sprintf("%s: %v", number, err))
		}
	}

	return result, nil
}

// EditWeight: Yükün güncel ağırlığını günceller. InitialWeightKG'ye asla
// dokunmaz; edited_by/edited_at yazılır, version artar.
func (s *Service) EditWeight(loadID uint, newWeight decimal.Decimal, editedBy string) (*models.Load, error) {
	if err := validateWeight(newWeight, MaxFormWeightKG); err != nil {
		return nil, err
	}

	var load models.Load
	if err := s.db.First(&load, loadID).Error; err != nil {
		return nil, ErrLoadNotFound
	}

	// Üretime alınmış yükün ağırlığı donmuştur; canlı ağırlık snapshot'ın
	// altında kaymasın diye düzenleme reddedilir
	if load.Status == models.LoadStatusTakenToProduction {
		return nil, ErrLoadTaken
	}

	now := time.Now()
	err := s.db.Model(&models.Load{}).
		Where("id = ?", load.ID).
		Updates(map[string]interface{}{
			"total_weight_kg": newWeight,
			"edited_by":       strings.TrimSpace(editedBy),
			"edited_at":       now,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("ağırlık güncellenemedi: %w", err)
	}

	if err := s.db.First(&load, load.ID).Error; err != nil {
		return nil, err
	}

	_ = audit.Write(s.db, "load", models.EventActionUpdate, load.ID, load)

	return &load, nil
}

// MarkTaken: Yükü üretime alınmış olarak işaretler. İdempotent.
// Geçiş CAS ile yapılır: UPDATE ... WHERE id=? AND status=IN_COLD_ROOM AND
// version=?. Sıfır satır etkilenirse yarış kaybedilmiştir; hata değil -
// kayıt yeniden okunur ve güncel hali döner, çağıran status'a bakar.
func (s *Service) MarkTaken(loadID uint) (*models.Load, error) {
	var load models.Load
	if err := s.db.First(&load, loadID).Error; err != nil {
		return nil, ErrLoadNotFound
	}

	if load.Status == models.LoadStatusTakenToProduction {
		return &load, nil
	}

	now := time.Now()
	res := s.db.Model(&models.Load{}).
		Where("id = ? AND status = ? AND version = ?",
			load.ID, models.LoadStatusInColdRoom, load.Version).
		Updates(map[string]interface{}{
			"status":               models.LoadStatusTakenToProduction,
			"taken_at":             now,
			"cart_weight_snapshot": gorm.Expr("total_weight_kg"), // ağırlık snapshot'ı
			"version":              gorm.Expr("version + 1"),
			"updated_at":           now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("yük üretime alınamadı: %w", res.Error)
	}

	won := res.RowsAffected == 1

	if err := s.db.First(&load, load.ID).Error; err != nil {
		return nil, err
	}

	if won {
		_ = audit.Write(s.db, "load", models.EventActionTake, load.ID, load)
	}

	return &load, nil
}

// DeleteCart: Arabayı TÜM yük geçmişiyle birlikte siler. Geri dönüşü yok.
// Normal silme yolu FK (RESTRICT) tarafından bloklanır; bu açık kademeli
// silme tek istisnadır.
func (s *Service) DeleteCart(cartID uint) (string, error) {
	var cart models.Cart
	if err := s.db.First(&cart, cartID).Error; err != nil {
		return "", ErrCartNotFound
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return "", tx.Error
	}

	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.Load{}).Error; err != nil {
		tx.Rollback()
		return "", fmt.Errorf("yük geçmişi silinemedi: %w", err)
	}
	if err := tx.Delete(&cart).Error; err != nil {
		tx.Rollback()
		return "", fmt.Errorf("araba silinemedi: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return "", err
	}

	_ = audit.Write(s.db, "cart", models.EventActionDelete, cart.ID, cart)

	return cart.Number, nil
}

// PopNextLoad: Arabadaki en eski aktif yükü "kuyruktan çeker" (üretime alır).
// Postgres'te FOR UPDATE SKIP LOCKED ile kilitli satırlar atlanır; birden çok
// işçi birbirini bekletmeden farklı yükleri kapar. Kapacak yük yoksa veya
// yarış kaybedilirse (nil, nil) döner.
func (s *Service) PopNextLoad(cartID uint) (*models.Load, error) {
	var claimed *models.Load

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("cart_id = ? AND status = ?", cartID, models.LoadStatusInColdRoom).
			Order("created_at")
		// SKIP LOCKED yalnız Postgres'te var; sqlite (test) düz seçime düşer
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidate models.Load
		if err := q.First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Load{}).
			Where("id = ? AND status = ? AND version = ?",
				candidate.ID, models.LoadStatusInColdRoom, candidate.Version).
			Updates(map[string]interface{}{
				"status":               models.LoadStatusTakenToProduction,
				"taken_at":             now,
				"cart_weight_snapshot": gorm.Expr("total_weight_kg"),
				"version":              gorm.Expr("version + 1"),
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// Başka işçi kaptı; bu tur boş döneriz
			return nil
		}

		if err := tx.First(&candidate, candidate.ID).Error; err != nil {
			return err
		}
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claimed != nil {
		_ = audit.Write(s.db, "load", models.EventActionTake, claimed.ID, claimed)
	}

	return claimed, nil
}

// BoardCart: Tablo ekranının bir satırı - araba + varsa aktif yükü.
type BoardCart struct {
	Cart       models.Cart
	ActiveLoad *models.Load
}

var kindRank = map[models.ProductKind]int{
	models.KindNaturalny:  0,
	models.KindZiolowy:    1,
	models.KindPomidorowy: 2,
}

// Board: Tüm arabaları aktif yükleriyle listeler.
// Sıralama: Naturalny -> Ziołowy -> Pomidorowy -> boş arabalar, sonra numara.
func (s *Service) Board() ([]BoardCart, error) {
	var carts []models.Cart
	if err := s.db.Order("number").Find(&carts).Error; err != nil {
		return nil, fmt.Errorf("arabalar listelenemedi: %w", err)
	}

	var loads []models.Load
	if err := s.db.Where("status = ?", models.LoadStatusInColdRoom).Find(&loads).Error; err != nil {
		return nil, fmt.Errorf("yükler listelenemedi: %w", err)
	}

	activeByCart := make(map[uint]*models.Load, len(loads))
	for i := range loads {
		activeByCart[loads[i].CartID] = &loads[i]
	}

	board := make([]BoardCart, 0, len(carts))
	for _, cart := range carts {
		board = append(board, BoardCart{Cart: cart, ActiveLoad: activeByCart[cart.ID]})
	}

	rank := func(bc BoardCart) int {
		if bc.ActiveLoad == nil {
			return 3 // boşlar sona
		}
		if r, ok := kindRank[bc.ActiveLoad.ProductKind]; ok {
			return r
		}
		return 3
	}
	sort.SliceStable(board, func(i, j int) bool {
		ri, rj := rank(board[i]), rank(board[j])
		if ri != rj {
			return ri < rj
		}
		return board[i].Cart.Number < board[j].Cart.Number
	})

	return board, nil
}

// CartByNumber: Numaraya göre araba + doluluk durumu.
func (s *Service) CartByNumber(number string) (*models.Cart, bool, error) {
	var cart models.Cart
	err := s.db.Where("number = ?", strings.TrimSpace(number)).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrCartNotFound
	}
	if err != nil {
		return nil, false, err
	}

	var activeCount int64
	s.db.Model(&models.Load{}).
		Where("cart_id = ? AND status = ?", cart.ID, models.LoadStatusInColdRoom).
		Count(&activeCount)

	return &cart, activeCount > 0, nil
}
