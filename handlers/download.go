package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripmate/services"
)

func (h *Handler) DownloadPDF(c *gin.Context) {
	p, ok := h.loadPlan(c)
	if !ok {
		return
	}

	pdfBytes, err := services.GeneratePDFBytes(p.document(h.now()))
	if err != nil {
		h.log.Error("PDF generation failed", zap.String("plan_id", p.row.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=tripmate-itinerary.pdf")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

func (h *Handler) DownloadCalendar(c *gin.Context) {
	p, ok := h.loadPlan(c)
	if !ok {
		return
	}

	body := services.BuildCalendar(p.row.ID, p.document(h.now()))
	c.Header("Content-Disposition", "attachment; filename=tripmate-trip.ics")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// Weather serves forecast and packing suggestions without creating a plan.
func (h *Handler) Weather(c *gin.Context) {
	destination := strings.TrimSpace(c.Query("destination"))
	if destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination query parameter is required"})
		return
	}

	w := h.weather.Lookup(c.Request.Context(), destination)
	c.JSON(http.StatusOK, gin.H{
		"weather":             w,
		"packing_suggestions": services.PackingSuggestions(w),
	})
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.plans == nil {
		dbStatus = "not initialized"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.plans.Ping(ctx); err != nil {
			dbStatus = "error: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "TripMate API",
		"database": dbStatus,
	})
}
