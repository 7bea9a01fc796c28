// Package app assembles the scraper and the read API from configuration.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ps-vitor/offplan-sys/backend/internal/config"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
	scraperclient "github.com/ps-vitor/offplan-sys/backend/internal/scrapers/remapp"
	"github.com/ps-vitor/offplan-sys/backend/internal/scraping/collectors/remapp"
	"github.com/ps-vitor/offplan-sys/backend/internal/services/credentials"
	"github.com/ps-vitor/offplan-sys/backend/internal/services/project"
	"github.com/ps-vitor/offplan-sys/backend/internal/services/scraping"
)

// App holds the wired services of one process.
type App struct {
	Files    *repositories.FileProjectRepository
	Mirror   *repositories.SQLiteProjectRepository
	Scraper  *scraping.ScraperService
	Projects *project.ProjectService
}

// New wires every service from cfg. The SQLite mirror is opened only when
// cfg.Database.Path is set, and then also backs the read service.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rc := cfg.Scraping.Remapp

	files, err := repositories.NewFileProjectRepository(rc.OutputDir)
	if err != nil {
		return nil, err
	}

	a := &App{Files: files}
	var store project.Store = files
	var mirror scraping.Mirror

	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		a.Mirror, err = repositories.NewSQLiteProjectRepository(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite mirror: %w", err)
		}
		store = a.Mirror
		mirror = a.Mirror
	}

	client := scraperclient.NewClient(scraperclient.Endpoints{
		List:   rc.ListURL,
		Detail: rc.DetailURL,
		Login:  rc.LoginURL,
	}, rc.UserAgent, rc.Timeout())

	provider := credentials.NewProvider(client, repositories.NewEnvStore(rc.EnvPath), credentials.Credentials{
		Token:    rc.Token,
		Username: rc.Username,
		Password: rc.Password,
	}, logger)

	lister := remapp.NewLister(client, provider, logger)
	details := remapp.NewDetailFetcher(client, remapp.RetryPolicy{
		MaxRetries: rc.RetryPolicy.MaxRetries,
		Backoff:    rc.Backoff(),
	}, remapp.Sleep, logger)

	a.Scraper = scraping.NewScraperService(scraping.Deps{
		Repo:        files,
		Lister:      lister,
		Details:     details,
		Credentials: provider,
		Mirror:      mirror,
		Logger:      logger,
	}, scraping.Options{
		UseLocalList:    rc.UseLocalList,
		IncrementalMode: rc.IncrementalMode,
		RehydrateOnly:   rc.RehydrateOnly,
		PageScanLimit:   rc.PageScanLimit,
		LogEvery:        rc.LogEvery,
		DetailSleep:     rc.DetailSleep(),
	})

	a.Projects = project.NewProjectService(store, cfg.App.CacheTTL())
	return a, nil
}

// Close releases the SQLite mirror if one was opened.
func (a *App) Close() error {
	if a.Mirror == nil {
		return nil
	}
	return a.Mirror.Close()
}
