// Package scraping runs one full scrape: list, details, merge and publish.
package scraping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
	"github.com/ps-vitor/offplan-sys/backend/internal/scraping/collectors/remapp"
	"github.com/ps-vitor/offplan-sys/backend/internal/scraping/incremental"
	"github.com/ps-vitor/offplan-sys/backend/internal/scraping/merge"
)

// ErrRunInProgress is returned when a scrape is started while another runs.
var ErrRunInProgress = errors.New("scrape already in progress")

// ListFetcher reads the project list.
type ListFetcher interface {
	FetchPage(ctx context.Context, page int) (domain.Page, error)
	FetchAll(ctx context.Context) ([]domain.Record, error)
}

// DetailFetcher reads one project detail.
type DetailFetcher interface {
	Fetch(ctx context.Context, ref domain.ProjectRef, token string) (any, error)
}

// Credentials resolves and renews the bearer token.
type Credentials interface {
	Resolve(ctx context.Context) (string, error)
	Renew(ctx context.Context) (string, error)
}

// Mirror receives a copy of the merged output.
type Mirror interface {
	Save(ctx context.Context, merged []domain.Record) error
}

// Options select the list strategy and pacing.
type Options struct {
	UseLocalList    bool
	IncrementalMode bool
	RehydrateOnly   bool
	PageScanLimit   int
	LogEvery        int
	DetailSleep     time.Duration
}

// Deps are the collaborators of a ScraperService. Mirror, Sleep, Now and
// Logger are optional.
type Deps struct {
	Repo        repositories.ProjectRepository
	Lister      ListFetcher
	Details     DetailFetcher
	Credentials Credentials
	Mirror      Mirror
	Sleep       remapp.Sleeper
	Now         func() time.Time
	Logger      *slog.Logger
}

// List sources reported in Report.ListSource.
const (
	ListFromCache       = "cache"
	ListFromIncremental = "incremental"
	ListFromFullFetch   = "full"
)

// Report summarises a run.
type Report struct {
	RunID       string
	ListSource  string
	Projects    int
	NewProjects int
	Details     int
	Fetched     int
	Cached      int
	Skipped     int
	Missing     int
	Merged      int
	Indexed     int
}

type ScraperService struct {
	deps    Deps
	opts    Options
	running atomic.Bool
}

func NewScraperService(deps Deps, opts Options) *ScraperService {
	if deps.Sleep == nil {
		deps.Sleep = remapp.Sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.PageScanLimit <= 0 {
		opts.PageScanLimit = incremental.DefaultPageLimit
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 50
	}
	return &ScraperService{deps: deps, opts: opts}
}

// ScrapeAndStore runs one scrape. Only one run may execute at a time.
func (s *ScraperService) ScrapeAndStore(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	report := &Report{RunID: uuid.NewString()}
	log := s.deps.Logger.With("run_id", report.RunID)

	projects, err := s.collectProjects(ctx, log, report)
	if err != nil {
		return report, fmt.Errorf("list phase: %w", err)
	}
	report.Projects = len(projects)

	details, err := s.deps.Repo.LoadDetails(ctx)
	if err != nil {
		return report, fmt.Errorf("load details log: %w", err)
	}
	if len(details) > 0 {
		log.Info("resuming with cached details", "details", len(details))
	}

	if s.opts.RehydrateOnly {
		log.Info("rehydrate-only mode: skipping API calls")
	} else {
		details, err = s.collectDetails(ctx, log, projects, details, report)
		if err != nil {
			return report, fmt.Errorf("detail phase: %w", err)
		}
	}
	report.Details = len(details)

	if err := s.publish(ctx, log, projects, details, report); err != nil {
		return report, fmt.Errorf("publish: %w", err)
	}
	return report, nil
}

func (s *ScraperService) collectProjects(ctx context.Context, log *slog.Logger, report *Report) ([]domain.Record, error) {
	repo := s.deps.Repo

	existing, err := repo.LoadList(ctx)
	if errors.Is(err, domain.ErrMalformedCache) {
		log.Warn("ignoring unreadable list cache", "error", err)
		existing = nil
	} else if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		log.Info("loaded existing projects", "projects", len(existing))
	}

	var state *domain.IncrementalState
	if s.opts.IncrementalMode {
		state, err = repo.LoadState(ctx)
		if errors.Is(err, domain.ErrMalformedCache) {
			log.Warn("ignoring unreadable incremental state", "error", err)
			state = nil
		} else if err != nil {
			return nil, err
		}
	}

	switch {
	case s.opts.UseLocalList && len(existing) > 0 && !s.opts.IncrementalMode:
		report.ListSource = ListFromCache
		log.Info("using cached list", "projects", len(existing))
		return existing, nil

	case s.opts.IncrementalMode && len(existing) > 0 && state != nil:
		log.Info("incremental mode: checking for new projects", "highest_project_id", state.HighestProjectID)
		res, err := incremental.Reconcile(ctx, s.deps.Lister, existing, state, s.opts.PageScanLimit)
		if err != nil {
			return nil, err
		}
		if res.FullFetchRequired {
			log.Warn("no known project within page limit, switching to full fetch",
				"pages_scanned", res.PagesScanned)
			return s.fullFetch(ctx, log, report)
		}

		report.ListSource = ListFromIncremental
		report.NewProjects = len(res.New)
		if len(res.New) == 0 {
			log.Info("no new projects found")
			return existing, nil
		}
		if err := repo.SaveList(ctx, res.Projects); err != nil {
			return nil, err
		}
		log.Info("found new projects", "new", len(res.New), "total", len(res.Projects))
		return res.Projects, nil

	default:
		return s.fullFetch(ctx, log, report)
	}
}

func (s *ScraperService) fullFetch(ctx context.Context, log *slog.Logger, report *Report) ([]domain.Record, error) {
	projects, err := s.deps.Lister.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Repo.SaveList(ctx, projects); err != nil {
		return nil, err
	}
	report.ListSource = ListFromFullFetch
	log.Info("saved list items", "projects", len(projects))
	return projects, nil
}

func (s *ScraperService) collectDetails(ctx context.Context, log *slog.Logger, projects, details []domain.Record, report *Report) ([]domain.Record, error) {
	token, err := s.deps.Credentials.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	detailsLog, err := s.deps.Repo.OpenDetailsLog()
	if err != nil {
		return nil, err
	}
	defer detailsLog.Close()

	errorLog, err := s.deps.Repo.OpenErrorLog()
	if err != nil {
		return nil, err
	}
	defer errorLog.Close()

	seen := domain.NewSeenSet(details)
	total := len(projects)

	for i, item := range projects {
		index := i + 1
		ref := item.Ref()

		switch {
		case !ref.Valid():
			report.Skipped++
		case seen.Has(ref):
			report.Cached++
		default:
			payload, err := s.fetchDetail(ctx, log, ref, &token)
			if err != nil {
				return nil, err
			}
			report.Fetched++

			if detail, ok := detailData(payload); ok {
				if ref.HasID {
					detail = detail.Clone()
					detail[domain.FieldFkProjectID] = ref.ID
				}
				if err := detailsLog.Append(detail); err != nil {
					return nil, err
				}
				details = append(details, detail)
				seen.Add(detail)
			} else {
				report.Missing++
				entry := map[string]any{
					"id":       item[domain.FieldID],
					"slug":     item[domain.FieldSlug],
					"response": payload,
				}
				if err := errorLog.Append(entry); err != nil {
					return nil, err
				}
			}

			if err := s.deps.Sleep(ctx, s.opts.DetailSleep); err != nil {
				return nil, err
			}
		}

		if index%s.opts.LogEvery == 0 {
			log.Info("progress",
				"processed", index,
				"total", total,
				"fetched", report.Fetched,
				"cached", report.Cached,
				"skipped", report.Skipped,
				"missing", report.Missing)
		}
	}

	return details, nil
}

// fetchDetail retries the whole fetch once with a renewed token after a 401
// or 403. A second auth failure is returned to the caller.
func (s *ScraperService) fetchDetail(ctx context.Context, log *slog.Logger, ref domain.ProjectRef, token *string) (any, error) {
	payload, err := s.deps.Details.Fetch(ctx, ref, *token)
	if err == nil || !domain.IsAuthFailure(err) {
		return payload, err
	}

	log.Info("detail endpoint rejected token, logging in again", "project", ref.String())
	renewed, renewErr := s.deps.Credentials.Renew(ctx)
	if renewErr != nil {
		return nil, errors.Join(renewErr, err)
	}
	*token = renewed

	return s.deps.Details.Fetch(ctx, ref, renewed)
}

// detailData extracts the object under "data" of a detail response.
func detailData(payload any) (domain.Record, bool) {
	doc, ok := domain.AsRecord(payload)
	if !ok {
		return nil, false
	}
	return domain.AsRecord(doc["data"])
}

func (s *ScraperService) publish(ctx context.Context, log *slog.Logger, projects, details []domain.Record, report *Report) error {
	repo := s.deps.Repo

	if err := repo.SaveDetails(ctx, details); err != nil {
		return err
	}
	log.Info("saved project details", "details", len(details))

	merged, index := merge.Merge(projects, details)
	report.Merged = len(merged)
	report.Indexed = len(index)

	if err := repo.SaveMerged(ctx, merged); err != nil {
		return err
	}
	log.Info("saved merged projects", "projects", len(merged))

	if err := repo.SaveFkIndex(ctx, index); err != nil {
		return err
	}
	log.Info("saved details by fk", "entries", len(index))

	if s.deps.Mirror != nil {
		if err := s.deps.Mirror.Save(ctx, merged); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
		log.Info("mirrored merged projects to database")
	}

	if s.opts.IncrementalMode && len(projects) > 0 {
		if err := repo.SaveState(ctx, domain.NewIncrementalState(projects, s.deps.Now())); err != nil {
			return err
		}
		log.Info("saved incremental state")
	}
	return nil
}
