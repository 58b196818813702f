package database

import (
	"log"

	"sogukdepo-backend/internal/config"
	"sogukdepo-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("Migration hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate: AutoMigrate + elle yazılan index migration'ları.
// Testler in-memory sqlite üzerinde aynı şemayı kurmak için bunu çağırır.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Cart{},
		&models.Load{},
		&models.TunnelDay{},
		&models.TunnelRow{},
		&models.ProductionPlan{},
		&models.EventLog{},
	)
	if err != nil {
		return err
	}

	// Araba başına tek aktif yük kuralının asıl garantisi bu kısmi unique
	// index. Uygulamadaki "araba dolu mu" kontrolü sadece kullanıcıya erken
	// uyarı vermek için; eşzamanlı iki insert'ten birini burası düşürür.
	// AutoMigrate kısmi index üretemediği için elle.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_load_per_cart
		 ON loads (cart_id) WHERE status = 'IN_COLD_ROOM'`,
	).Error; err != nil {
		return err
	}

	return nil
}
