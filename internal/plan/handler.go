package plan

import (
	"time"

	"sogukdepo-backend/internal/auth"
	"sogukdepo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type kindKG map[string]float64

func toKindKG(m map[models.ProductKind]decimal.Decimal) kindKG {
	out := kindKG{}
	for k, v := range m {
		f, _ := v.Float64()
		out[string(k)] = f
	}
	return out
}

type DayResponse struct {
	Index     int            `json:"index"`
	Date      string         `json:"date"`
	Pcs       map[string]int `json:"pcs"`
	DemandKG  kindKG         `json:"demand_kg"`
	MissingKG kindKG         `json:"missing_kg"` // kümülatif açık
}

type ReportResponse struct {
	PieceWeightKG  float64       `json:"piece_weight_kg"`
	Days           []DayResponse `json:"days"`
	TotalDemandKG  kindKG        `json:"total_demand_kg"`
	GrandTotalKG   float64       `json:"grand_total_kg"`
	AvailableKG    kindKG        `json:"available_kg"`
	AvailableTotal float64       `json:"available_total_kg"`
	ToMakeKG       kindKG        `json:"to_make_kg"`
	ToMakeTotalKG  float64       `json:"to_make_total_kg"`
}

func toReportResponse(rep *Report) ReportResponse {
	pieceW, _ := PieceWeightKG.Float64()
	grand, _ := rep.GrandTotalKG.Float64()
	availTotal, _ := rep.AvailableTotal.Float64()
	toMakeTotal, _ := rep.ToMakeTotalKG.Float64()

	out := ReportResponse{
		PieceWeightKG:  pieceW,
		Days:           make([]DayResponse, 0, len(rep.Days)),
		TotalDemandKG:  toKindKG(rep.TotalDemandKG),
		GrandTotalKG:   grand,
		AvailableKG:    toKindKG(rep.AvailableKG),
		AvailableTotal: availTotal,
		ToMakeKG:       toKindKG(rep.ToMakeKG),
		ToMakeTotalKG:  toMakeTotal,
	}

	for _, d := range rep.Days {
		pcs := map[string]int{}
		for k, v := range d.Pcs {
			pcs[string(k)] = v
		}
		out.Days = append(out.Days, DayResponse{
			Index:     d.Index,
			Date:      d.Date.Format("2006-01-02"),
			Pcs:       pcs,
			DemandKG:  toKindKG(d.DemandKG),
			MissingKG: toKindKG(d.MissingKG),
		})
	}
	return out
}

// GET /api/plan
// Kayıtlı plan + güncel depoya göre hesaplanmış rapor.
func GetPlanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rep, err := svc.Report(time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Plan yüklenemedi")
		}
		return c.JSON(toReportResponse(rep))
	}
}

type SavePlanRequest struct {
	Days []struct {
		Date string         `json:"date"` // "2025-12-09"; boşsa otomatik doldurulur
		Pcs  map[string]int `json:"pcs"`
	} `json:"days"`
}

// PUT /api/plan
// Planı kaydeder ve güncel raporu döner. Gün sayısı 1-7'ye sıkıştırılır,
// tarihler kesin artan olacak şekilde düzeltilir; bozuk adetler 0 sayılır.
func SavePlanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SavePlanRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		today := time.Now()
		dates := map[int]time.Time{}
		pcs := map[int]map[models.ProductKind]int{}
		for idx, d := range body.Days {
			i := idx + 1
			if d.Date != "" {
				if parsed, err := time.Parse("2006-01-02", d.Date); err == nil {
					dates[i] = parsed
				}
			}
			pcs[i] = map[models.ProductKind]int{}
			for _, k := range models.ProductKinds() {
				if v := d.Pcs[string(k)]; v > 0 {
					pcs[i][k] = v
				}
			}
		}

		days := NormalizeDays(len(body.Days), dates, pcs, today)
		if err := svc.SavePlan(days, auth.CurrentUserName(c)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Plan kaydedilemedi")
		}

		rep, err := svc.Report(today)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Plan kaydedildi ama rapor hesaplanamadı")
		}
		return c.JSON(toReportResponse(rep))
	}
}
