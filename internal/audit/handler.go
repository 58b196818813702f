package audit

import (
	"fmt"

	"sogukdepo-backend/internal/database"
	"sogukdepo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type EventLogResponse struct {
	ID      uint               `json:"id"`
	Ts      string             `json:"ts"`
	Model   string             `json:"model"`
	Action  models.EventAction `json:"action"`
	RefID   uint               `json:"ref_id"`
	Payload string             `json:"payload"`
}

// GET /api/events?model=load&action=take&ref_id=12&limit=200
func ListEventsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.EventLog{})

		if m := c.Query("model"); m != "" {
			dbq = dbq.Where("model = ?", m)
		}
		if a := c.Query("action"); a != "" {
			dbq = dbq.Where("action = ?", a)
		}
		if ridStr := c.Query("ref_id"); ridStr != "" {
			var rid uint
			if _, err := fmt.Sscan(ridStr, &rid); err == nil && rid > 0 {
				dbq = dbq.Where("ref_id = ?", rid)
			}
		}

		limit := 200
		if lStr := c.Query("limit"); lStr != "" {
			var l int
			if _, err := fmt.Sscan(lStr, &l); err == nil && l > 0 && l <= 1000 {
				limit = l
			}
		}

		var events []models.EventLog
		if err := dbq.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Olaylar listelenemedi")
		}

		resp := make([]EventLogResponse, 0, len(events))
		for _, e := range events {
			resp = append(resp, EventLogResponse{
				ID:      e.ID,
				Ts:      e.Ts.Format("2006-01-02 15:04:05"),
				Model:   e.Model,
				Action:  e.Action,
				RefID:   e.RefID,
				Payload: e.Payload,
			})
		}

		return c.JSON(resp)
	}
}
