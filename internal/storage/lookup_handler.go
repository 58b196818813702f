package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GET /api/carts/info?number=K-01
// Parti giriş formu için: araba var mı, darası ve kapasitesi ne, boş mu.
func CartInfoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number := strings.TrimSpace(c.Query("number"))
		if number == "" {
			return fiber.NewError(fiber.StatusBadRequest, "number parametresi zorunlu")
		}

		cart, occupied, err := svc.CartByNumber(number)
		if errors.Is(err, ErrCartNotFound) {
			return c.JSON(fiber.Map{"exists": false})
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Araba sorgulanamadı")
		}

		cap, _ := cart.CapacityKG.Float64()
		return c.JSON(fiber.Map{
			"exists":      true,
			"cart_id":     cart.ID,
			"tare_kg":     nullDecToFloat(cart.TareKG),
			"capacity_kg": cap,
			"is_free":     !occupied,
		})
	}
}

// GET /api/carts/check?number=K-01
// Hızlı kontrol: numara girilirken anlık durum etiketi döner.
func CartCheckHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number := strings.TrimSpace(c.Query("number"))
		if number == "" {
			return c.JSON(fiber.Map{"exists": false, "occupied": false, "label": ""})
		}

		cart, occupied, err := svc.CartByNumber(number)
		if errors.Is(err, ErrCartNotFound) {
			return c.JSON(fiber.Map{
				"exists":   false,
				"occupied": false,
				"label":    fmt.Sprintf("Araba %s sistemde kayıtlı değil", number),
			})
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Araba sorgulanamadı")
		}

		label := fmt.Sprintf("Araba %s boş", cart.Number)
		if occupied {
			label = fmt.Sprintf("Araba %s DOLU - önce mevcut yük üretime alınmalı", cart.Number)
		}

		return c.JSON(fiber.Map{
			"exists":   true,
			"occupied": occupied,
			"label":    label,
			"tare_kg":  nullDecToFloat(cart.TareKG),
		})
	}
}
