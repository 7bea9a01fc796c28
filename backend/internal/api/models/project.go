package models

import (
	"time"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// ProjectList is the body of GET /api/projects.
type ProjectList struct {
	Source      string          `json:"source"`
	LastUpdated time.Time       `json:"lastUpdated"`
	AgeHours    float64         `json:"ageHours"`
	IsStale     bool            `json:"isStale"`
	Count       int             `json:"count"`
	Data        []domain.Record `json:"data"`
}

// ScrapeResult is the body of POST /api/scrape.
type ScrapeResult struct {
	RunID       string `json:"runId"`
	ListSource  string `json:"listSource"`
	Projects    int    `json:"projects"`
	NewProjects int    `json:"newProjects"`
	Fetched     int    `json:"fetched"`
	Cached      int    `json:"cached"`
	Skipped     int    `json:"skipped"`
	Missing     int    `json:"missing"`
	Details     int    `json:"details"`
	Merged      int    `json:"merged"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
