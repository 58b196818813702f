package report

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sogukdepo-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	dir string
}

func NewService(db *gorm.DB, exportDir string) *Service {
	return &Service{db: db, dir: exportDir}
}

type cartDump struct {
	ID         uint     `json:"id"`
	Number     string   `json:"number"`
	CapacityKG string   `json:"capacity_kg"`
	TareKG     *string  `json:"tare_kg"`
	CreatedAt  string   `json:"created_at"`
}

type loadDump struct {
	ID                 uint    `json:"id"`
	CartID             uint    `json:"cart_id"`
	CartNumber         string  `json:"cart_number"`
	PackingDate        string  `json:"packing_date"`
	ProductionShift    string  `json:"production_shift"`
	ProductKind        string  `json:"product_kind"`
	ProductCode        int     `json:"product_code"`
	Pieces             int     `json:"pieces"`
	TotalWeightKG      string  `json:"total_weight_kg"`
	InitialWeightKG    *string `json:"initial_weight_kg"`
	CartWeightSnapshot *string `json:"cart_weight_snapshot"`
	Status             string  `json:"status"`
	TakenAt            *string `json:"taken_at"`
	HandledBy          string  `json:"handled_by"`
	Tank               string  `json:"tank"`
	IsInStorage        bool    `json:"is_in_storage"`
}

type SnapshotResult struct {
	Carts     int `json:"carts"`
	Loads     int `json:"loads"`
	InStorage int `json:"in_storage"`
}

// atomicWriteJSON: Önce geçici dosyaya yazar, sonra rename eder.
// Okuyucular hiçbir zaman yarım dosya görmez; rename aynı dizinde atomiktir.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ExportSnapshot: Tüm araba/yük durumunu 3 JSON dosyasına döker:
// carts.json, loads.json, loads_in_storage.json (sadece depodakiler).
// Hata panik değil sonuç olarak döner; çağıran loglar.
func (s *Service) ExportSnapshot() (*SnapshotResult, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("export dizini oluşturulamadı: %w", err)
	}

	var carts []models.Cart
	if err := s.db.Order("id").Find(&carts).Error; err != nil {
		return nil, err
	}
	var loads []models.Load
	if err := s.db.Preload("Cart").Order("id").Find(&loads).Error; err != nil {
		return nil, err
	}

	cartDumps := make([]cartDump, 0, len(carts))
	for _, c := range carts {
		d := cartDump{
			ID:         c.ID,
			Number:     c.Number,
			CapacityKG: c.CapacityKG.StringFixed(2),
			CreatedAt:  c.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if c.TareKG.Valid {
			v := c.TareKG.Decimal.StringFixed(1)
			d.TareKG = &v
		}
		cartDumps = append(cartDumps, d)
	}

	loadDumps := make([]loadDump, 0, len(loads))
	inStorage := make([]loadDump, 0)
	for _, l := range loads {
		d := loadDump{
			ID:              l.ID,
			CartID:          l.CartID,
			CartNumber:      l.Cart.Number,
			PackingDate:     l.PackingDate.Format("2006-01-02"),
			ProductionShift: string(l.ProductionShift),
			ProductKind:     string(l.ProductKind),
			ProductCode:     l.ProductCode,
			Pieces:          l.Pieces,
			TotalWeightKG:   l.TotalWeightKG.StringFixed(1),
			Status:          string(l.Status),
			HandledBy:       l.HandledBy,
			Tank:            l.Tank,
			IsInStorage:     l.IsActive(),
		}
		if l.InitialWeightKG.Valid {
			v := l.InitialWeightKG.Decimal.StringFixed(1)
			d.InitialWeightKG = &v
		}
		if l.CartWeightSnapshot.Valid {
			v := l.CartWeightSnapshot.Decimal.StringFixed(1)
			d.CartWeightSnapshot = &v
		}
		if l.TakenAt != nil {
			v := l.TakenAt.Format("2006-01-02 15:04:05")
			d.TakenAt = &v
		}
		loadDumps = append(loadDumps, d)
		if d.IsInStorage {
			inStorage = append(inStorage, d)
		}
	}

	if err := atomicWriteJSON(filepath.Join(s.dir, "carts.json"), cartDumps); err != nil {
		return nil, fmt.Errorf("carts.json yazılamadı: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(s.dir, "loads.json"), loadDumps); err != nil {
		return nil, fmt.Errorf("loads.json yazılamadı: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(s.dir, "loads_in_storage.json"), inStorage); err != nil {
		return nil, fmt.Errorf("loads_in_storage.json yazılamadı: %w", err)
	}

	result := &SnapshotResult{
		Carts:     len(cartDumps),
		Loads:     len(loadDumps),
		InStorage: len(inStorage),
	}
	log.Printf("Snapshot JSON'a yazıldı: %d araba, %d yük (%d depoda)",
		result.Carts, result.Loads, result.InStorage)
	return result, nil
}
