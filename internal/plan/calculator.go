package plan

import (
	"time"

	"sogukdepo-backend/internal/models"

	"github.com/shopspring/decimal"
)

// PieceWeightKG: 1 adet baton = 0,15 kg. Adet -> kg çevriminin tek kaynağı.
var PieceWeightKG = decimal.RequireFromString("0.15")

const MaxPlanDays = 7

// Day: Planın tek günü - tarih + çeşit başına adet.
type Day struct {
	Index int
	Date  time.Time
	Pcs   map[models.ProductKind]int
}

// DayReport: Bir günün hesaplanmış çıktısı. MissingKG kümülatiftir:
// o güne KADAR biriken karşılanamayan ihtiyaç, sadece o günün açığı değil.
type DayReport struct {
	Index     int
	Date      time.Time
	Pcs       map[models.ProductKind]int
	DemandKG  map[models.ProductKind]decimal.Decimal
	MissingKG map[models.ProductKind]decimal.Decimal
}

// Report: Plan ekranının tamamı - günlük satırlar + global toplamlar.
type Report struct {
	Days            []DayReport
	TotalDemandKG   map[models.ProductKind]decimal.Decimal
	GrandTotalKG    decimal.Decimal
	AvailableKG     map[models.ProductKind]decimal.Decimal
	AvailableTotal  decimal.Decimal
	ToMakeKG        map[models.ProductKind]decimal.Decimal
	ToMakeTotalKG   decimal.Decimal
}

// Calculate: Saf hesap - DB'ye dokunmaz. Günler sıralı gelir.
// Mantık: her gün her çeşit için ihtiyaç stoğa mahsup edilir
// (used = min(need, remaining)); karşılanamayan kısım kümülatif açığa eklenir.
// Üretilecek toplam = max(toplam talep - eldeki, 0), çeşit başına.
func Calculate(days []Day, availableKG map[models.ProductKind]decimal.Decimal) *Report {
	kinds := models.ProductKinds()

	rep := &Report{
		TotalDemandKG: map[models.ProductKind]decimal.Decimal{},
		AvailableKG:   map[models.ProductKind]decimal.Decimal{},
		ToMakeKG:      map[models.ProductKind]decimal.Decimal{},
	}

	for _, k := range kinds {
		rep.TotalDemandKG[k] = decimal.Zero
		av := availableKG[k]
		rep.AvailableKG[k] = av
		rep.AvailableTotal = rep.AvailableTotal.Add(av)
	}

	remaining := map[models.ProductKind]decimal.Decimal{}
	cumulative := map[models.ProductKind]decimal.Decimal{}
	for _, k := range kinds {
		remaining[k] = rep.AvailableKG[k]
		cumulative[k] = decimal.Zero
	}

	for _, d := range days {
		dr := DayReport{
			Index:     d.Index,
			Date:      d.Date,
			Pcs:       map[models.ProductKind]int{},
			DemandKG:  map[models.ProductKind]decimal.Decimal{},
			MissingKG: map[models.ProductKind]decimal.Decimal{},
		}
		for _, k := range kinds {
			pcs := d.Pcs[k]
			if pcs < 0 {
				pcs = 0
			}
			need := decimal.NewFromInt(int64(pcs)).Mul(PieceWeightKG)

			used := need
			if remaining[k].LessThan(need) {
				used = remaining[k]
			}
			remaining[k] = remaining[k].Sub(used)
			cumulative[k] = cumulative[k].Add(need.Sub(used))

			dr.Pcs[k] = pcs
			dr.DemandKG[k] = need
			dr.MissingKG[k] = cumulative[k]

			rep.TotalDemandKG[k] = rep.TotalDemandKG[k].Add(need)
			rep.GrandTotalKG = rep.GrandTotalKG.Add(need)
		}
		rep.Days = append(rep.Days, dr)
	}

	for _, k := range kinds {
		toMake := rep.TotalDemandKG[k].Sub(rep.AvailableKG[k])
		if toMake.IsNegative() {
			toMake = decimal.Zero
		}
		rep.ToMakeKG[k] = toMake
		rep.ToMakeTotalKG = rep.ToMakeTotalKG.Add(toMake)
	}

	return rep
}

// NormalizeDays: Gün sayısını 1..MaxPlanDays'e sıkıştırır ve tarihleri
// kesin artan yapar: boş veya geri giden tarih bir önceki günün ertesine alınır.
func NormalizeDays(daysCount int, dates map[int]time.Time, pcs map[int]map[models.ProductKind]int, today time.Time) []Day {
	if daysCount < 1 {
		daysCount = 1
	}
	if daysCount > MaxPlanDays {
		daysCount = MaxPlanDays
	}

	out := make([]Day, 0, daysCount)
	var last time.Time
	for i := 1; i <= daysCount; i++ {
		d, ok := dates[i]
		if !ok || d.IsZero() {
			if i == 1 {
				d = today
			} else {
				d = last.AddDate(0, 0, 1)
			}
		}
		if len(out) > 0 && !d.After(last) {
			d = last.AddDate(0, 0, 1)
		}

		row := Day{Index: i, Date: d, Pcs: map[models.ProductKind]int{}}
		for _, k := range models.ProductKinds() {
			if p, ok := pcs[i]; ok {
				if v := p[k]; v > 0 {
					row.Pcs[k] = v
				} else {
					row.Pcs[k] = 0
				}
			} else {
				row.Pcs[k] = 0
			}
		}
		out = append(out, row)
		last = row.Date
	}
	return out
}
