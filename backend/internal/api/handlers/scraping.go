package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ps-vitor/offplan-sys/backend/internal/api/models"
	"github.com/ps-vitor/offplan-sys/backend/internal/services/scraping"
)

// Scraper runs one scrape.
type Scraper interface {
	ScrapeAndStore(ctx context.Context) (*scraping.Report, error)
}

type ScrapingHandler struct {
	scraper Scraper
	logger  *slog.Logger
}

func NewScrapingHandler(scraper Scraper, logger *slog.Logger) *ScrapingHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScrapingHandler{scraper: scraper, logger: logger}
}

func (h *ScrapingHandler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	// The run is not tied to the client connection.
	report, err := h.scraper.ScrapeAndStore(context.WithoutCancel(r.Context()))
	if errors.Is(err, scraping.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("scrape failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "scrape failed",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ScrapeResult{
		RunID:       report.RunID,
		ListSource:  report.ListSource,
		Projects:    report.Projects,
		NewProjects: report.NewProjects,
		Fetched:     report.Fetched,
		Cached:      report.Cached,
		Skipped:     report.Skipped,
		Missing:     report.Missing,
		Details:     report.Details,
		Merged:      report.Merged,
	})
}
