package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// RoundToHalfKG: Ağırlığı en yakın 0,5 kg'a yuvarlar, 1 ondalık basamakla döner.
//
//	12.24 -> 12.0
//	12.26 -> 12.5
//	12.74 -> 12.5
//	12.76 -> 13.0
//
// .x5 sınırında yarım yukarı yuvarlanır (0.25 -> 0.5). Binary float
// kullanılmaz; tartıdan gelen değerlerde .05 sınırında kayma olmaması için
// hesap tamamen decimal üzerinde yapılır.
func RoundToHalfKG(v decimal.Decimal) decimal.Decimal {
	halfSteps := v.Mul(two).Round(0) // Round: yarımlar sıfırdan uzağa
	return halfSteps.Div(two).Round(1)
}

// ValidateHalfKG: Değer 0,5 kg'ın tam katı mı?
func ValidateHalfKG(v decimal.Decimal) error {
	doubled := v.Mul(two)
	if !doubled.Equal(doubled.Truncate(0)) {
		return fmt.Errorf("ağırlık 0,5 kg'ın katı olmalı (örn. 123.0 veya 123.5), gelen: %s", v.String())
	}
	return nil
}
