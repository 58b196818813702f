package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoadStatus string

const (
	LoadStatusInColdRoom        LoadStatus = "IN_COLD_ROOM"        // Magazynek'te (soğuk depoda)
	LoadStatusTakenToProduction LoadStatus = "TAKEN_TO_PRODUCTION" // Üretime alındı
)

type ProductKind string

// Ürün çeşitleri (bar çeşidi) - etiket değerleri üretim tesisinin kendi adlandırması
const (
	KindNaturalny  ProductKind = "Naturalny"
	KindZiolowy    ProductKind = "Ziołowy"
	KindPomidorowy ProductKind = "Pomidorowy"
)

// ProductKinds: Sabit sıralama - planlama ve tablo ekranları bu sırayı kullanır
func ProductKinds() []ProductKind {
	return []ProductKind{KindNaturalny, KindZiolowy, KindPomidorowy}
}

func IsValidKind(k ProductKind) bool {
	for _, v := range ProductKinds() {
		if v == k {
			return true
		}
	}
	return false
}

type Shift string

const (
	ShiftI   Shift = "I"
	ShiftII  Shift = "II"
	ShiftIII Shift = "III"
)

// Load: Bir arabaya yerleştirilmiş ürün yükü.
// Aynı arabada aynı anda en fazla bir IN_COLD_ROOM yük olabilir;
// bu kural uygulama kontrolüne değil veritabanındaki kısmi unique
// index'e dayanır (uniq_active_load_per_cart).
type Load struct {
	ID uint `gorm:"primaryKey"`

	CartID uint `gorm:"not null;index;index:idx_loads_cart_status,priority:1"`
	Cart   Cart `gorm:"constraint:OnDelete:RESTRICT"`

	// Sınıflandırma
	PackingDate     time.Time   `gorm:"not null"`
	ProductionShift Shift       `gorm:"size:4;not null;default:I"`
	ProductKind     ProductKind `gorm:"size:20;not null;index"`
	ProductCode     int         `gorm:"not null;check:chk_loads_product_code,product_code >= 1 AND product_code <= 365"`

	// Etiket / ek bilgiler
	HandledBy string `gorm:"size:100"`
	Flavor    string `gorm:"size:50"`
	Tank      string `gorm:"size:50"`

	// Miktarlar
	Pieces int `gorm:"not null;default:66;check:chk_loads_pieces,pieces >= 1 AND pieces <= 66"`

	// Güncel ağırlık [kg] - her zaman 0,5 kg'ın katı, 1 ondalık basamak
	TotalWeightKG decimal.Decimal `gorm:"type:numeric(5,1);not null"`

	// İlk kayıttaki ağırlık - bir kez yazılır, sonraki düzenlemeler dokunmaz
	InitialWeightKG decimal.NullDecimal `gorm:"type:numeric(5,1)"`

	// Üretime alınma anındaki ağırlık snapshot'ı (MarkTaken yazar)
	CartWeightSnapshot decimal.NullDecimal `gorm:"type:numeric(5,1)"`

	// Durum
	ProducedAt time.Time  `gorm:"not null;index"`
	Status     LoadStatus `gorm:"size:32;not null;default:IN_COLD_ROOM;index;index:idx_loads_cart_status,priority:2"`
	TakenAt    *time.Time

	// Ağırlık düzenleme izi
	EditedBy string `gorm:"size:100"`
	EditedAt *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	// CAS için kayıt versiyonu; her mutasyonda +1
	Version uint `gorm:"not null;default:0"`
}

func (l *Load) IsActive() bool {
	return l.Status == LoadStatusInColdRoom
}

// TakenWeight: Gösterim/toplam için kullanılacak ağırlık.
// Yük üretime alınmışsa ve snapshot varsa snapshot, yoksa güncel ağırlık.
func (l *Load) TakenWeight() decimal.Decimal {
	if l.Status == LoadStatusTakenToProduction && l.CartWeightSnapshot.Valid {
		return l.CartWeightSnapshot.Decimal
	}
	return l.TotalWeightKG
}
