package report

import (
	"errors"
	"fmt"
	"log"
	"time"

	"sogukdepo-backend/internal/models"
	"sogukdepo-backend/internal/tunnel"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// POST /api/reports/snapshot
// Araba/yük durumunu JSON dosyalarına döker (carts.json, loads.json,
// loads_in_storage.json). Dosyalar atomik yazılır.
func SnapshotHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := svc.ExportSnapshot()
		if err != nil {
			log.Printf("Snapshot hatası: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Snapshot alınamadı: "+err.Error())
		}
		return c.JSON(result)
	}
}

// GET /api/reports/storage.xlsx
// Depo tablosunun anlık durumunu Excel olarak indirir.
func StorageXLSXHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var loads []models.Load
		err := svc.db.Preload("Cart").
			Where("status = ?", models.LoadStatusInColdRoom).
			Order("product_kind, product_code").
			Find(&loads).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Depo verisi yüklenemedi")
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Depo"
		f.SetSheetName("Sheet1", sheet)

		headers := []string{"Araba", "Paketleme Tarihi", "Vardiya", "Çeşit", "Kod",
			"Adet", "Ağırlık (kg)", "Tank", "Kaydeden"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for rowIdx, l := range loads {
			w, _ := l.TotalWeightKG.Float64()
			values := []any{
				l.Cart.Number,
				l.PackingDate.Format("2006-01-02"),
				string(l.ProductionShift),
				string(l.ProductKind),
				l.ProductCode,
				l.Pieces,
				w,
				l.Tank,
				l.HandledBy,
			}
			for colIdx, v := range values {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="depo_%s.xlsx"`, time.Now().Format("2006-01-02")))
		return f.Write(c.Response().BodyWriter())
	}
}

// GET /api/reports/tunnel.xlsx?date=2025-12-09
// Seçili günün tünel kaydını Excel olarak indirir.
func TunnelXLSXHandler(svc *Service, tunnelSvc *tunnel.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dateStr := c.Query("date")
		if dateStr == "" {
			return fiber.NewError(fiber.StatusBadRequest, "date parametresi zorunlu")
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

		_, rows, err := tunnelSvc.DayByDate(date)
		if errors.Is(err, tunnel.ErrDayNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Bu tarih için tünel kaydı yok")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tünel verisi yüklenemedi")
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Tünel " + dateStr
		f.SetSheetName("Sheet1", sheet)

		headers := []string{"Çeşit", "Kod", "Baton Üretim Tarihi", "Soğutma (dk)",
			"Tünel °C", "Giriş °C", "Kabuk Çıkış °C", "Çekirdek Çıkış °C",
			"Alınan Arabalar", "Toplam kg"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for rowIdx, r := range rows {
			sum, _ := r.SumTakenKG.Float64()
			values := []any{
				string(r.ProductKind),
				r.ProductCode,
				"",
				"",
				"", "", "", "",
				r.TakenCartsCSV,
				sum,
			}
			if r.BarProductionDate != nil {
				values[2] = r.BarProductionDate.Format("2006-01-02")
			}
			if r.CoolingTimeMin != nil {
				values[3] = *r.CoolingTimeMin
			}
			if r.TempTunnel.Valid {
				values[4], _ = r.TempTunnel.Decimal.Float64()
			}
			if r.TempInlet.Valid {
				values[5], _ = r.TempInlet.Decimal.Float64()
			}
			if r.TempShellOut.Valid {
				values[6], _ = r.TempShellOut.Decimal.Float64()
			}
			if r.TempCoreOut.Valid {
				values[7], _ = r.TempCoreOut.Decimal.Float64()
			}
			for colIdx, v := range values {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="tunel_%s.xlsx"`, dateStr))
		return f.Write(c.Response().BodyWriter())
	}
}
