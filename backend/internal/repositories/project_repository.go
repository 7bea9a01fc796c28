package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// Artifact file names inside the output directory.
const (
	ListCacheFile     = "projects_from_api.json"
	DetailsLogFile    = "projects_details.jsonl"
	DetailsErrorsFile = "projects_details_errors.jsonl"
	StateFile         = "incremental_state.json"
	DetailsFile       = "projects_details.json"
	MergedFile        = "projects_merged.json"
	FkIndexFile       = "projects_details_by_fk.json"

	backupSuffix = ".bak"
)

// ErrSnapshotUnavailable is returned when neither the merged output nor its
// backup can be read.
var ErrSnapshotUnavailable = errors.New("merged snapshot unavailable")

// Snapshot is a merged project list together with where it came from.
type Snapshot struct {
	Source      string
	LastUpdated time.Time
	Projects    []domain.Record
}

// ProjectRepository stores every artifact of a scrape run.
type ProjectRepository interface {
	LoadList(ctx context.Context) ([]domain.Record, error)
	SaveList(ctx context.Context, projects []domain.Record) error
	LoadState(ctx context.Context) (*domain.IncrementalState, error)
	SaveState(ctx context.Context, state domain.IncrementalState) error
	LoadDetails(ctx context.Context) ([]domain.Record, error)
	OpenDetailsLog() (*AppendLog, error)
	OpenErrorLog() (*AppendLog, error)
	SaveDetails(ctx context.Context, details []domain.Record) error
	SaveMerged(ctx context.Context, merged []domain.Record) error
	SaveFkIndex(ctx context.Context, index domain.FkIndex) error
}

// FileProjectRepository keeps artifacts as JSON files in one directory.
type FileProjectRepository struct {
	dir string
}

// NewFileProjectRepository creates the output directory if needed.
func NewFileProjectRepository(dir string) (*FileProjectRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileProjectRepository{dir: dir}, nil
}

// Path returns the full path of an artifact.
func (r *FileProjectRepository) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// LoadList returns the cached list, nil if there is none. A cache that cannot
// be parsed yields an error wrapping domain.ErrMalformedCache.
func (r *FileProjectRepository) LoadList(_ context.Context) ([]domain.Record, error) {
	f, err := os.Open(r.Path(ListCacheFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open list cache: %w", err)
	}
	defer f.Close()

	projects, err := domain.DecodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCache, ListCacheFile, err)
	}
	return projects, nil
}

// SaveList replaces the list cache.
func (r *FileProjectRepository) SaveList(_ context.Context, projects []domain.Record) error {
	return writeJSON(r.Path(ListCacheFile), nonNil(projects), false)
}

// LoadState returns the saved incremental state, nil if absent. A malformed
// state file yields domain.ErrMalformedCache.
func (r *FileProjectRepository) LoadState(_ context.Context) (*domain.IncrementalState, error) {
	data, err := os.ReadFile(r.Path(StateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read incremental state: %w", err)
	}

	var state domain.IncrementalState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCache, StateFile, err)
	}
	return &state, nil
}

// SaveState replaces the incremental state.
func (r *FileProjectRepository) SaveState(_ context.Context, state domain.IncrementalState) error {
	return writeJSON(r.Path(StateFile), state, false)
}

// LoadDetails reads every record in the details append-log.
func (r *FileProjectRepository) LoadDetails(_ context.Context) ([]domain.Record, error) {
	return ReadLog(r.Path(DetailsLogFile))
}

// OpenDetailsLog opens the details append-log for writing.
func (r *FileProjectRepository) OpenDetailsLog() (*AppendLog, error) {
	return OpenAppendLog(r.Path(DetailsLogFile))
}

// OpenErrorLog opens the details error log for writing.
func (r *FileProjectRepository) OpenErrorLog() (*AppendLog, error) {
	return OpenAppendLog(r.Path(DetailsErrorsFile))
}

// SaveDetails writes the details snapshot.
func (r *FileProjectRepository) SaveDetails(_ context.Context, details []domain.Record) error {
	return writeJSON(r.Path(DetailsFile), nonNil(details), false)
}

// SaveMerged writes the merged output, keeping the previous one as a backup.
func (r *FileProjectRepository) SaveMerged(_ context.Context, merged []domain.Record) error {
	return writeJSON(r.Path(MergedFile), nonNil(merged), true)
}

// SaveFkIndex writes the fk index as a JSON object keyed by project id.
func (r *FileProjectRepository) SaveFkIndex(_ context.Context, index domain.FkIndex) error {
	out := make(map[string]domain.Record, len(index))
	for id, detail := range index {
		out[strconv.FormatInt(id, 10)] = detail
	}
	return writeJSON(r.Path(FkIndexFile), out, false)
}

// List returns the merged output, falling back to its backup.
func (r *FileProjectRepository) List(_ context.Context) (Snapshot, error) {
	var firstErr error
	for _, name := range []string{MergedFile, MergedFile + backupSuffix} {
		path := r.Path(name)
		snap, err := readSnapshot(path, name)
		if err == nil {
			return snap, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, firstErr)
}

// Get returns one merged project by id.
func (r *FileProjectRepository) Get(ctx context.Context, id int64) (domain.Record, error) {
	snap, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range snap.Projects {
		if pid, ok := p.ID(); ok && pid == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func readSnapshot(path, source string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Snapshot{}, err
	}
	projects, err := domain.DecodeRecords(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCache, source, err)
	}
	return Snapshot{Source: source, LastUpdated: info.ModTime(), Projects: projects}, nil
}

func nonNil(records []domain.Record) []domain.Record {
	if records == nil {
		return []domain.Record{}
	}
	return records
}
