package tunnel

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RowRequest struct {
	ProductKind       string   `json:"product_kind"`
	ProductCode       int      `json:"product_code"`
	BarProductionDate string   `json:"bar_production_date"` // "2025-12-09", boş olabilir
	CoolingTimeMin    *int     `json:"cooling_time_min"`
	TempTunnel        *float64 `json:"temp_tunnel"`
	TempInlet         *float64 `json:"temp_inlet"`
	TempShellOut      *float64 `json:"temp_shell_out"`
	TempCoreOut       *float64 `json:"temp_core_out"`
	TakenCarts        []string `json:"taken_carts"`
}

type SaveDayRequest struct {
	Date string       `json:"date"`
	Rows []RowRequest `json:"rows"`
}

type RowResponse struct {
	ProductKind       string   `json:"product_kind"`
	ProductCode       int      `json:"product_code"`
	BarProductionDate *string  `json:"bar_production_date"`
	CoolingTimeMin    *int     `json:"cooling_time_min"`
	TempTunnel        *float64 `json:"temp_tunnel"`
	TempInlet         *float64 `json:"temp_inlet"`
	TempShellOut      *float64 `json:"temp_shell_out"`
	TempCoreOut       *float64 `json:"temp_core_out"`
	TakenCarts        []string `json:"taken_carts"`
	SumTakenKG        float64  `json:"sum_taken_kg"`
}

func tempToDec(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v).Round(1))
}

func tempToFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return &f
}

// PUT /api/tunnel/day
// Seçili günün tünel tablosunu komple kaydeder (önceki satırlar silinir).
func SaveDayHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SaveDayRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		date, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

		rows := make([]RowInput, 0, len(body.Rows))
		for _, r := range body.Rows {
			kind, ok := NormalizeKind(r.ProductKind)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("Geçersiz ürün çeşidi: %s", r.ProductKind))
			}

			row := RowInput{
				ProductKind:    kind,
				ProductCode:    r.ProductCode,
				CoolingTimeMin: r.CoolingTimeMin,
				TempTunnel:     tempToDec(r.TempTunnel),
				TempInlet:      tempToDec(r.TempInlet),
				TempShellOut:   tempToDec(r.TempShellOut),
				TempCoreOut:    tempToDec(r.TempCoreOut),
				TakenCarts:     r.TakenCarts,
			}
			if r.BarProductionDate != "" {
				d, err := time.Parse("2006-01-02", r.BarProductionDate)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "Baton üretim tarihi formatı 'YYYY-MM-DD' olmalı")
				}
				row.BarProductionDate = &d
			}
			rows = append(rows, row)
		}

		day, err := svc.SaveDay(date, rows)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"message": fmt.Sprintf("%s günü için tünel verileri kaydedildi", body.Date),
			"day_id":  day.ID,
		})
	}
}

// GET /api/tunnel/day?date=2025-12-09
// Günün kayıtlı satırlarını form ön-dolumu için döner. Gün yoksa boş liste.
func DayHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dateStr := c.Query("date")
		date := time.Now().Truncate(24 * time.Hour)
		if dateStr != "" {
			d, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			date = d
		}

		_, rows, err := svc.DayByDate(date)
		if errors.Is(err, ErrDayNotFound) {
			return c.JSON(fiber.Map{"date": date.Format("2006-01-02"), "rows": []RowResponse{}})
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tünel günü yüklenemedi")
		}

		out := make([]RowResponse, 0, len(rows))
		for _, r := range rows {
			sum, _ := r.SumTakenKG.Float64()
			resp := RowResponse{
				ProductKind:    string(r.ProductKind),
				ProductCode:    r.ProductCode,
				CoolingTimeMin: r.CoolingTimeMin,
				TempTunnel:     tempToFloat(r.TempTunnel),
				TempInlet:      tempToFloat(r.TempInlet),
				TempShellOut:   tempToFloat(r.TempShellOut),
				TempCoreOut:    tempToFloat(r.TempCoreOut),
				TakenCarts:     r.TakenCartsList(),
				SumTakenKG:     sum,
			}
			if r.BarProductionDate != nil {
				s := r.BarProductionDate.Format("2006-01-02")
				resp.BarProductionDate = &s
			}
			if resp.TakenCarts == nil {
				resp.TakenCarts = []string{}
			}
			out = append(out, resp)
		}

		return c.JSON(fiber.Map{"date": date.Format("2006-01-02"), "rows": out})
	}
}

// GET /api/storeroom/codes?kind=Naturalny
// Depoda aktif yükü olan ürün kodları - tünel formundaki kod seçici için.
func CodesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := NormalizeKind(c.Query("kind"))
		if !ok {
			return c.JSON(fiber.Map{"codes": []int{}, "kind_normalized": nil})
		}

		codes, err := svc.CodesInStorage(kind)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kodlar yüklenemedi")
		}
		if codes == nil {
			codes = []int{}
		}

		return c.JSON(fiber.Map{"codes": codes, "kind_normalized": string(kind)})
	}
}

// GET /api/storeroom/lookup?kind=Naturalny&code=42
// (çeşit, kod) depoda var mı + en son paketleme tarihi.
func LookupHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := NormalizeKind(c.Query("kind"))
		code, err := strconv.Atoi(c.Query("code"))
		if !ok || err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"found":  false,
				"reason": "bad_params",
			})
		}

		latest, err := svc.LatestPackingDate(kind, code)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sorgu başarısız")
		}
		if latest == nil {
			return c.JSON(fiber.Map{"found": false})
		}

		return c.JSON(fiber.Map{
			"found":                   true,
			"latest_packing_date_iso": latest.Format("2006-01-02"),
		})
	}
}

// GET /api/storeroom/carts?kind=Naturalny&code=42
// (çeşit, kod) taşıyan arabaların numaraları.
func CartsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := NormalizeKind(c.Query("kind"))
		code, err := strconv.Atoi(c.Query("code"))
		if !ok || err != nil {
			return c.JSON(fiber.Map{"carts": []string{}})
		}

		carts, err := svc.CartsHolding(kind, code)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sorgu başarısız")
		}
		if carts == nil {
			carts = []string{}
		}

		return c.JSON(fiber.Map{"carts": carts})
	}
}

// GET /api/storeroom/cart-info?kind=Naturalny&code=42&cart=K-01
// Tek arabanın detayı: ağırlık (üretime alındıysa snapshot), tank, yük ID.
// edit_url/take_url sadece yük hâlâ depodayken döner.
func CartInfoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, kindOK := NormalizeKind(c.Query("kind"))
		code, codeErr := strconv.Atoi(c.Query("code"))
		cartNo := c.Query("cart")

		empty := fiber.Map{
			"cart":            cartNo,
			"total_weight_kg": nil,
			"tank_no":         nil,
			"load_id":         nil,
			"edit_url":        nil,
			"take_url":        nil,
			"is_taken":        nil,
		}
		if !kindOK || codeErr != nil || cartNo == "" {
			return c.JSON(empty)
		}

		detail, err := svc.CartInfo(kind, code, cartNo)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sorgu başarısız")
		}
		if !detail.Found {
			return c.JSON(empty)
		}

		var weight *float64
		if detail.TotalWeightKG != nil {
			f, _ := detail.TotalWeightKG.Float64()
			weight = &f
		}

		var tank any
		if detail.Tank != "" {
			tank = detail.Tank
		}

		var editURL, takeURL any
		if !detail.IsTaken && detail.LoadID != nil {
			editURL = fmt.Sprintf("/api/loads/%d/weight", *detail.LoadID)
			takeURL = fmt.Sprintf("/api/loads/%d/take", *detail.LoadID)
		}

		return c.JSON(fiber.Map{
			"cart":            detail.CartNumber,
			"total_weight_kg": weight,
			"tank_no":         tank,
			"load_id":         detail.LoadID,
			"edit_url":        editURL,
			"take_url":        takeURL,
			"is_taken":        detail.IsTaken,
		})
	}
}
