package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/cryptofolio/backend/src/logger"
	"github.com/username/cryptofolio/backend/src/services"
	"github.com/username/cryptofolio/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func reportYear(r *http.Request) (int, error) {
	yearStr := chi.URLParam(r, "year")
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1000 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", yearStr)
	}
	return year, nil
}

func (h *ReportHandler) HandleGetTaxReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	year, err := reportYear(r)
	if err != nil {
		utils.SendJSONError(w, "Year must be a 4-digit number", http.StatusBadRequest)
		return
	}

	report, err := h.reportService.GetTaxReport(userID, year)
	if err != nil {
		if errors.Is(err, services.ErrReportFailed) {
			logger.L.Warn("Tax report computation rejected input", "userID", userID, "year", year, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Cannot compute report: %v", err), http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Failed to compute tax report", "userID", userID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to compute tax report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag check", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding tax report response", "userID", userID, "error", err)
	}
}

// HandleExportTaxReport streams the report as a CSV attachment, the
// download counterpart of the JSON endpoint.
func (h *ReportHandler) HandleExportTaxReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	year, err := reportYear(r)
	if err != nil {
		utils.SendJSONError(w, "Year must be a 4-digit number", http.StatusBadRequest)
		return
	}

	// Compute before writing headers so failures still produce a JSON error.
	if _, err := h.reportService.GetTaxReport(userID, year); err != nil {
		if errors.Is(err, services.ErrReportFailed) {
			utils.SendJSONError(w, fmt.Sprintf("Cannot compute report: %v", err), http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Failed to compute tax report for export", "userID", userID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to compute tax report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=taxreport-%d.csv", year))

	if err := h.reportService.WriteTaxReportCSV(w, userID, year); err != nil {
		logger.L.Error("Failed streaming tax report CSV", "userID", userID, "year", year, "error", err)
	}
}
