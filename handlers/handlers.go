package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pricewatch/models"

	"github.com/gorilla/mux"
)

// HistoryStore serves the reporting queries over the observation log.
type HistoryStore interface {
	Summary() ([]models.ProductSummary, error)
	History(productID string, limit int) ([]models.PriceObservation, error)
	CurrentPrice(productID string) (float64, bool, error)
	LowestPrice(productID string) (float64, bool, error)
}

// AlertStore serves the recorded drop events.
type AlertStore interface {
	ListAlerts(productID string, limit int) ([]models.DropEvent, error)
}

// ScanTrigger starts a scan pass in the background.
type ScanTrigger interface {
	ManualScan()
}

type Handlers struct {
	observations HistoryStore
	alerts       AlertStore
	scans        ScanTrigger
}

func NewHandlers(observations HistoryStore, alerts AlertStore, scans ScanTrigger) *Handlers {
	return &Handlers{
		observations: observations,
		alerts:       alerts,
		scans:        scans,
	}
}

// GetProducts returns the per-product price summary.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.observations.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product summary")
		return
	}
	if summaries == nil {
		summaries = []models.ProductSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetProductDetails returns current and lowest price for one product.
func (h *Handlers) GetProductDetails(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	current, hasCurrent, err := h.observations.CurrentPrice(productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get current price")
		return
	}
	if !hasCurrent {
		writeError(w, http.StatusNotFound, "Product has no observations")
		return
	}

	lowest, _, err := h.observations.LowestPrice(productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lowest price")
		return
	}

	writeJSON(w, http.StatusOK, models.ProductSummary{
		ProductID:    productID,
		CurrentPrice: &current,
		LowestPrice:  &lowest,
	})
}

// GetProductHistory returns recent observations for one product.
func (h *Handlers) GetProductHistory(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	limit := queryInt(r, "limit", 20)

	history, err := h.observations.History(productID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}
	if history == nil {
		history = []models.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, history)
}

// GetProductAlerts returns recent drop events for one product.
func (h *Handlers) GetProductAlerts(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	limit := queryInt(r, "limit", 20)

	alerts, err := h.alerts.ListAlerts(productID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alerts")
		return
	}
	if alerts == nil {
		alerts = []models.DropEvent{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// TriggerScan starts a manual scan pass.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	h.scans.ManualScan()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
