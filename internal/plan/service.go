package plan

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sogukdepo-backend/internal/audit"
	"sogukdepo-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AvailableKGByKind: Depodaki aktif yüklerin çeşit bazında toplam ağırlığı.
// Toplama Go tarafında decimal ile yapılır; float yuvarlama hatası istemiyoruz.
func (s *Service) AvailableKGByKind() (map[models.ProductKind]decimal.Decimal, error) {
	out := map[models.ProductKind]decimal.Decimal{}
	for _, k := range models.ProductKinds() {
		out[k] = decimal.Zero
	}

	var loads []models.Load
	err := s.db.
		Where("status = ?", models.LoadStatusInColdRoom).
		Find(&loads).Error
	if err != nil {
		return nil, err
	}

	for _, l := range loads {
		if _, ok := out[l.ProductKind]; ok {
			out[l.ProductKind] = out[l.ProductKind].Add(l.TotalWeightKG)
		}
	}
	return out, nil
}

// LoadPlan: Kayıtlı planı okur. Hiç kaydedilmemişse bugünden başlayan
// tek günlük boş plan döner.
func (s *Service) LoadPlan(today time.Time) ([]Day, error) {
	var rec models.ProductionPlan
	err := s.db.Where("slug = ?", models.PlanSlugDefault).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NormalizeDays(1, map[int]time.Time{1: today}, nil, today), nil
	}
	if err != nil {
		return nil, err
	}

	// JSON anahtarları string - int'e çevrilemeyenler yok sayılır
	var rawDates map[string]string
	var rawPcs map[string]map[string]int
	if err := json.Unmarshal([]byte(rec.Dates), &rawDates); err != nil {
		rawDates = map[string]string{}
	}
	if err := json.Unmarshal([]byte(rec.Pcs), &rawPcs); err != nil {
		rawPcs = map[string]map[string]int{}
	}

	dates := map[int]time.Time{}
	for iStr, v := range rawDates {
		i, err := strconv.Atoi(iStr)
		if err != nil {
			continue
		}
		if d, err := time.Parse("2006-01-02", v); err == nil {
			dates[i] = d
		}
	}

	pcs := map[int]map[models.ProductKind]int{}
	for iStr, row := range rawPcs {
		i, err := strconv.Atoi(iStr)
		if err != nil {
			continue
		}
		pcs[i] = map[models.ProductKind]int{}
		for _, k := range models.ProductKinds() {
			if v := row[string(k)]; v > 0 {
				pcs[i][k] = v
			}
		}
	}

	return NormalizeDays(rec.DaysCount, dates, pcs, today), nil
}

// SavePlan: Planı tek global kayda yazar (upsert). Geçmiş tutulmaz.
func (s *Service) SavePlan(days []Day, updatedBy string) error {
	datesJSON := map[string]string{}
	pcsJSON := map[string]map[string]int{}
	for _, d := range days {
		key := strconv.Itoa(d.Index)
		datesJSON[key] = d.Date.Format("2006-01-02")
		row := map[string]int{}
		for _, k := range models.ProductKinds() {
			row[string(k)] = d.Pcs[k]
		}
		pcsJSON[key] = row
	}

	datesRaw, err := json.Marshal(datesJSON)
	if err != nil {
		return err
	}
	pcsRaw, err := json.Marshal(pcsJSON)
	if err != nil {
		return err
	}

	if len(updatedBy) > 64 {
		updatedBy = updatedBy[:64]
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec models.ProductionPlan
		err := tx.Where("slug = ?", models.PlanSlugDefault).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = models.ProductionPlan{Slug: models.PlanSlugDefault}
		} else if err != nil {
			return err
		}

		rec.DaysCount = len(days)
		rec.Dates = string(datesRaw)
		rec.Pcs = string(pcsRaw)
		rec.UpdatedBy = updatedBy

		if err := tx.Save(&rec).Error; err != nil {
			return err
		}

		return audit.Write(tx, "production_plan", models.EventActionUpdate, rec.ID, map[string]any{
			"days_count": len(days),
			"updated_by": updatedBy,
		})
	})
}

// Report: Kayıtlı plan + güncel depo durumundan hesaplanmış rapor.
func (s *Service) Report(today time.Time) (*Report, error) {
	days, err := s.LoadPlan(today)
	if err != nil {
		return nil, err
	}
	available, err := s.AvailableKGByKind()
	if err != nil {
		return nil, err
	}
	return Calculate(days, available), nil
}
