package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sogukdepo-backend/internal/auth"
	"sogukdepo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type LoadResponse struct {
	ID                 uint     `json:"id"`
	CartID             uint     `json:"cart_id"`
	CartNumber         string   `json:"cart_number"`
	PackingDate        string   `json:"packing_date"`
	ProductionShift    string   `json:"production_shift"`
	ProductKind        string   `json:"product_kind"`
	ProductCode        int      `json:"product_code"`
	Pieces             int      `json:"pieces"`
	TotalWeightKG      float64  `json:"total_weight_kg"`
	InitialWeightKG    *float64 `json:"initial_weight_kg"`
	CartWeightSnapshot *float64 `json:"cart_weight_snapshot"`
	Status             string   `json:"status"`
	TakenAt            *string  `json:"taken_at"`
	HandledBy          string   `json:"handled_by"`
	Tank               string   `json:"tank"`
	EditedBy           string   `json:"edited_by"`
	EditedAt           *string  `json:"edited_at"`
	Version            uint     `json:"version"`
}

func nullDecToFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return &f
}

func timeToStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02 15:04:05")
	return &s
}

func toLoadResponse(l *models.Load, cartNumber string) LoadResponse {
	w, _ := l.TotalWeightKG.Float64()
	return LoadResponse{
		ID:                 l.ID,
		CartID:             l.CartID,
		CartNumber:         cartNumber,
		PackingDate:        l.PackingDate.Format("2006-01-02"),
		ProductionShift:    string(l.ProductionShift),
		ProductKind:        string(l.ProductKind),
		ProductCode:        l.ProductCode,
		Pieces:             l.Pieces,
		TotalWeightKG:      w,
		InitialWeightKG:    nullDecToFloat(l.InitialWeightKG),
		CartWeightSnapshot: nullDecToFloat(l.CartWeightSnapshot),
		Status:             string(l.Status),
		TakenAt:            timeToStr(l.TakenAt),
		HandledBy:          l.HandledBy,
		Tank:               l.Tank,
		EditedBy:           l.EditedBy,
		EditedAt:           timeToStr(l.EditedAt),
		Version:            l.Version,
	}
}

// safeNext: ?next= parametresini açık redirect'e karşı doğrular.
// Sadece aynı origin'e giden göreli path kabul edilir ("/..." ama "//..." değil).
func safeNext(c *fiber.Ctx, fallback string) string {
	next := c.Query("next")
	if next == "" {
		next = c.FormValue("next")
	}
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") &&
		!strings.Contains(next, "\\") && !strings.Contains(next, "://") {
		return next
	}
	return fallback
}

// GET /api/storage/board
// Sadece AKTİF yükler görünür; boş arabalar listenin sonunda.
func BoardHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		board, err := svc.Board()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tablo yüklenemedi")
		}

		type BoardRow struct {
			CartID     uint          `json:"cart_id"`
			CartNumber string        `json:"cart_number"`
			CapacityKG float64       `json:"capacity_kg"`
			TareKG     *float64      `json:"tare_kg"`
			IsFree     bool          `json:"is_free"`
			Load       *LoadResponse `json:"load"`
		}

		rows := make([]BoardRow, 0, len(board))
		for _, bc := range board {
			cap, _ := bc.Cart.CapacityKG.Float64()
			row := BoardRow{
				CartID:     bc.Cart.ID,
				CartNumber: bc.Cart.Number,
				CapacityKG: cap,
				TareKG:     nullDecToFloat(bc.Cart.TareKG),
				IsFree:     bc.ActiveLoad == nil,
			}
			if bc.ActiveLoad != nil {
				lr := toLoadResponse(bc.ActiveLoad, bc.Cart.Number)
				row.Load = &lr
			}
			rows = append(rows, row)
		}

		return c.JSON(rows)
	}
}

type BatchRowRequest struct {
	CartNumber string   `json:"cart_number"`
	WeightKG   float64  `json:"weight_kg"`
	TareKG     *float64 `json:"tare_kg"`
	Tank       string   `json:"tank"`
	Pieces     int      `json:"pieces"`
}

type CreateBatchRequest struct {
	PackingDate         string            `json:"packing_date"` // "2025-12-09"
	ProductionShift     string            `json:"production_shift"`
	ProductKind         string            `json:"product_kind"`
	ProductCode         int               `json:"product_code"`
	HandledBy           string            `json:"handled_by"`
	CreateCartIfMissing bool              `json:"create_cart_if_missing"`
	Rows                []BatchRowRequest `json:"rows"`
}

// POST /api/storage/batches
// Parti girişi: aynı ortak bilgilerle birden çok arabaya yük. Dolu veya
// sistemde olmayan arabalar atlanır, parti devam eder.
func CreateBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if len(body.Rows) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "En az bir satır gerekli")
		}

		packingDate := time.Now()
		if body.PackingDate != "" {
			d, err := time.Parse("2006-01-02", body.PackingDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			packingDate = d
		}

		if body.HandledBy == "" {
			body.HandledBy = auth.CurrentUserName(c)
		}

		common := BatchCommon{
			PackingDate:     packingDate,
			ProductionShift: models.Shift(body.ProductionShift),
			ProductKind:     models.ProductKind(body.ProductKind),
			ProductCode:     body.ProductCode,
			HandledBy:       body.HandledBy,
		}

		rows := make([]BatchRow, 0, len(body.Rows))
		for _, r := range body.Rows {
			row := BatchRow{
				CartNumber: r.CartNumber,
				WeightKG:   decimal.NewFromFloat(r.WeightKG),
				Tank:       r.Tank,
				Pieces:     r.Pieces,
			}
			if r.TareKG != nil {
				row.TareKG = decimal.NewNullDecimal(decimal.NewFromFloat(*r.TareKG))
			}
			rows = append(rows, row)
		}

		result, err := svc.CreateBatch(common, rows, body.CreateCartIfMissing)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"created":          result.Created,
			"skipped_occupied": result.SkippedOccupied,
			"skipped_missing":  result.SkippedMissing,
			"skipped_invalid":  result.SkippedInvalid,
		})
	}
}

// POST /api/loads/:id/take?next=/tunnel?date=...
// Yükü üretime alır. İdempotent; yarış kaybedilirse de hata dönmez,
// güncel durum bildirilir. next verilmişse (ve güvenliyse) oraya yönlendirir.
func TakeToProductionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		loadID, err := c.ParamsInt("id")
		if err != nil || loadID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz yük ID")
		}

		var alreadyTaken bool
		var before models.Load
		if err := svc.db.First(&before, loadID).Error; err == nil {
			alreadyTaken = before.Status == models.LoadStatusTakenToProduction
		}

		load, err := svc.MarkTaken(uint(loadID))
		if errors.Is(err, ErrLoadNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Yük bulunamadı")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Yük üretime alınamadı")
		}

		if next := safeNext(c, ""); next != "" {
			return c.Redirect(next, fiber.StatusSeeOther)
		}

		msg := "Yük üretime alındı. Araba boş olarak geri döndü."
		if alreadyTaken {
			msg = "Bu yük zaten üretime alınmış."
		}

		var cartNumber string
		var cart models.Cart
		if err := svc.db.First(&cart, load.CartID).Error; err == nil {
			cartNumber = cart.Number
		}

		return c.JSON(fiber.Map{
			"message": msg,
			"load":    toLoadResponse(load, cartNumber),
		})
	}
}

type EditWeightRequest struct {
	WeightKG float64 `json:"weight_kg"`
	EditedBy string  `json:"edited_by"`
}

// PUT /api/loads/:id/weight
// Ağırlık düzenleme; initial_weight_kg değişmez.
func EditWeightHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		loadID, err := c.ParamsInt("id")
		if err != nil || loadID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz yük ID")
		}

		var body EditWeightRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		editedBy := strings.TrimSpace(body.EditedBy)
		if editedBy == "" {
			editedBy = auth.CurrentUserName(c)
		}
		if editedBy == "" {
			return fiber.NewError(fiber.StatusBadRequest, "edited_by zorunlu")
		}

		load, err := svc.EditWeight(uint(loadID), decimal.NewFromFloat(body.WeightKG), editedBy)
		if errors.Is(err, ErrLoadNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Yük bulunamadı")
		}
		if errors.Is(err, ErrLoadTaken) {
			return fiber.NewError(fiber.StatusConflict, "Yük üretime alınmış, ağırlığı değiştirilemez")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var cartNumber string
		var cart models.Cart
		if err := svc.db.First(&cart, load.CartID).Error; err == nil {
			cartNumber = cart.Number
		}

		return c.JSON(fiber.Map{
			"message": "Ağırlık güncellendi",
			"load":    toLoadResponse(load, cartNumber),
		})
	}
}

// DELETE /api/carts/:id
// DİKKAT: Araba tüm yük geçmişiyle birlikte silinir, geri alınamaz.
func DeleteCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cartID, err := c.ParamsInt("id")
		if err != nil || cartID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz araba ID")
		}

		number, err := svc.DeleteCart(uint(cartID))
		if errors.Is(err, ErrCartNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Araba bulunamadı")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Araba silinemedi")
		}

		return c.JSON(fiber.Map{
			"message": fmt.Sprintf("Araba %s ve tüm geçmişi silindi", number),
		})
	}
}

// POST /api/carts/:id/pop
// Arabadaki en eski aktif yükü üretime çeker (FIFO). Yük yoksa 200 + null.
func PopNextLoadHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cartID, err := c.ParamsInt("id")
		if err != nil || cartID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz araba ID")
		}

		load, err := svc.PopNextLoad(uint(cartID))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Yük çekilemedi")
		}

		if load == nil {
			return c.JSON(fiber.Map{"load": nil})
		}

		var cartNumber string
		var cart models.Cart
		if err := svc.db.First(&cart, load.CartID).Error; err == nil {
			cartNumber = cart.Number
		}

		return c.JSON(fiber.Map{"load": toLoadResponse(load, cartNumber)})
	}
}
