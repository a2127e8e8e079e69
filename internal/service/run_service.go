package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/export"
	"cardsync/internal/extract"
	"cardsync/internal/logging"
	"cardsync/internal/port"
)

// Reconciler reconciles records against the remote store.
type Reconciler interface {
	Reconcile(ctx context.Context, records []domain.Record) *domain.SyncReport
}

// CreateRunInput is the DTO for starting a run.
type CreateRunInput struct {
	Strategy domain.Strategy
	Images   []ImageUpload
}

// RunDetail is a run as seen by clients. Run is set while the run is live
// in this process; Results is filled from history otherwise.
type RunDetail struct {
	Summary domain.RunSummary  `json:"summary"`
	Run     *domain.Run        `json:"run,omitempty"`
	Results []domain.RunResult `json:"results,omitempty"`
}

// Artifact is a rendered download.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RunService drives the upload, process, sync and clear lifecycle.
type RunService interface {
	CreateRun(ctx context.Context, input CreateRunInput) (*domain.Run, error)
	ReplaceImages(ctx context.Context, id uuid.UUID, uploads []ImageUpload) (*domain.Run, error)
	Process(ctx context.Context, id uuid.UUID) ([]domain.Record, error)
	Sync(ctx context.Context, id uuid.UUID) (*domain.SyncReport, error)
	Get(ctx context.Context, id uuid.UUID) (*RunDetail, error)
	List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error)
	Artifact(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*Artifact, error)
	Clear(ctx context.Context, id uuid.UUID) error
}

// RunServiceConfig holds the settings the run service needs.
type RunServiceConfig struct {
	DefaultStrategy domain.Strategy
	ModelConfigured bool
	MaxFileSize     int64
	MaxFiles        int
	WorkDir         string
	Bucket          string
	PresignExpiry   int64
	Recipients      []string
}

// RunServiceDeps are the collaborators of the run service. Repo, Storage
// and Mailer may be nil.
type RunServiceDeps struct {
	Extractors map[domain.Strategy]port.Extractor
	Reconciler Reconciler
	Repo       port.RunRepository
	Storage    port.ObjectStorage
	Mailer     port.EmailSender
}

type runState struct {
	run  *domain.Run
	busy bool
}

type runService struct {
	deps   RunServiceDeps
	cfg    RunServiceConfig
	logger *zap.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*runState
}

// NewRunService creates a new RunService implementation.
func NewRunService(deps RunServiceDeps, cfg RunServiceConfig, logger *zap.Logger) RunService {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = domain.StrategyOCR
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &runService{
		deps:   deps,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		runs:   make(map[uuid.UUID]*runState),
	}
}

func (s *runService) CreateRun(ctx context.Context, input CreateRunInput) (*domain.Run, error) {
	strategy := input.Strategy
	if strategy == "" {
		strategy = s.cfg.DefaultStrategy
	}
	if !domain.ValidStrategies[strategy] {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, strategy)
	}
	if _, ok := s.deps.Extractors[strategy]; !ok {
		return nil, fmt.Errorf("%w: %q is not available", domain.ErrInvalidStrategy, strategy)
	}

	validated, err := s.validateUploads(input.Images)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	dir, err := os.MkdirTemp(s.cfg.WorkDir, "cardsync-run-"+id.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("runService.CreateRun: creating work dir: %w", err)
	}
	images, err := writeImages(dir, validated)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("runService.CreateRun: %w", err)
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:        id,
		Strategy:  strategy,
		Status:    domain.RunStatusUploaded,
		Images:    images,
		WorkDir:   dir,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.runs[id] = &runState{run: run}
	s.mu.Unlock()

	s.logger.Info("runService.CreateRun: run created",
		zap.String("run_id", id.String()), zap.String("strategy", string(strategy)), zap.Int("images", len(images)))

	if s.deps.Repo != nil {
		summary := run.Summary()
		if err := s.deps.Repo.Create(ctx, &summary); err != nil {
			s.logger.Warn("runService.CreateRun: failed to record run history",
				zap.String("run_id", id.String()), zap.Error(err))
		}
	}
	return snapshot(run), nil
}

func (s *runService) ReplaceImages(ctx context.Context, id uuid.UUID, uploads []ImageUpload) (*domain.Run, error) {
	validated, err := s.validateUploads(uploads)
	if err != nil {
		return nil, err
	}

	run, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.release(id)

	dir, err := os.MkdirTemp(s.cfg.WorkDir, "cardsync-run-"+id.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("runService.ReplaceImages: creating work dir: %w", err)
	}
	images, err := writeImages(dir, validated)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("runService.ReplaceImages: %w", err)
	}

	s.mu.Lock()
	oldDir := run.WorkDir
	oldKey := run.ArtifactKey
	run.Images = images
	run.WorkDir = dir
	run.Records = nil
	run.Report = nil
	run.ArtifactKey = ""
	run.Status = domain.RunStatusUploaded
	run.UpdatedAt = time.Now().UTC()
	out := snapshot(run)
	s.mu.Unlock()

	if err := os.RemoveAll(oldDir); err != nil {
		s.logger.Warn("runService.ReplaceImages: failed to remove old images", zap.String("dir", oldDir), zap.Error(err))
	}
	if oldKey != "" && s.deps.Storage != nil {
		if err := s.deps.Storage.Delete(ctx, s.cfg.Bucket, oldKey); err != nil {
			s.logger.Warn("runService.ReplaceImages: failed to delete stale artifact", zap.String("key", oldKey), zap.Error(err))
		}
	}
	s.recordStatus(ctx, id, domain.RunStatusUploaded)
	return out, nil
}

func (s *runService) Process(ctx context.Context, id uuid.UUID) ([]domain.Record, error) {
	if !s.cfg.ModelConfigured {
		return nil, domain.ErrMissingModelKey
	}

	run, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.release(id)

	s.mu.Lock()
	images := append([]domain.Image(nil), run.Images...)
	strategy := run.Strategy
	s.mu.Unlock()

	if len(images) == 0 {
		return nil, domain.ErrNoImages
	}
	extractor, ok := s.deps.Extractors[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not available", domain.ErrInvalidStrategy, strategy)
	}

	start := time.Now()
	records := extract.ExtractAll(ctx, extractor, images, s.logger)
	failed := 0
	for _, r := range records {
		if r.IsError() {
			failed++
		}
	}
	s.logger.Info("runService.Process: extraction finished",
		zap.String("run_id", id.String()),
		zap.Int("images", len(images)),
		zap.Int("error_records", failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	artifactKey := s.archive(ctx, id, records)

	s.mu.Lock()
	run.Records = records
	run.Report = nil
	run.ArtifactKey = artifactKey
	run.Status = domain.RunStatusExtracted
	run.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.recordStatus(ctx, id, domain.RunStatusExtracted)
	return records, nil
}

func (s *runService) Sync(ctx context.Context, id uuid.UUID) (*domain.SyncReport, error) {
	run, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.release(id)

	s.mu.Lock()
	records := run.Records
	s.mu.Unlock()
	if records == nil {
		return nil, domain.ErrNotExtracted
	}

	report := s.deps.Reconciler.Reconcile(ctx, records)

	s.mu.Lock()
	run.Report = report
	run.Status = domain.RunStatusSynced
	run.UpdatedAt = time.Now().UTC()
	summary := run.Summary()
	images := append([]domain.Image(nil), run.Images...)
	artifactKey := run.ArtifactKey
	s.mu.Unlock()

	if s.deps.Repo != nil {
		if err := s.deps.Repo.SaveReport(ctx, &summary, buildResults(id, images, records, report)); err != nil {
			s.logger.Warn("runService.Sync: failed to save run history", zap.String("run_id", id.String()), zap.Error(err))
		}
	}
	s.sendSummary(ctx, domain.RunSummaryMail{
		RunID:         id,
		Images:        len(images),
		Counts:        report.Counts(),
		ReadFailed:    report.ReadFailed,
		ChunkFailures: report.ChunkFailures,
	}, artifactKey)

	return report, nil
}

func (s *runService) Get(ctx context.Context, id uuid.UUID) (*RunDetail, error) {
	s.mu.Lock()
	if st, ok := s.runs[id]; ok {
		run := snapshot(st.run)
		s.mu.Unlock()
		return &RunDetail{Summary: run.Summary(), Run: run}, nil
	}
	s.mu.Unlock()

	if s.deps.Repo == nil {
		return nil, domain.ErrRunNotFound
	}
	summary, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.deps.Repo.ListResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("runService.Get: %w", err)
	}
	return &RunDetail{Summary: *summary, Results: results}, nil
}

func (s *runService) List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error) {
	if s.deps.Repo != nil {
		return s.deps.Repo.List(ctx, offset, limit)
	}

	s.mu.Lock()
	summaries := make([]domain.RunSummary, 0, len(s.runs))
	for _, st := range s.runs {
		summaries = append(summaries, st.run.Summary())
	}
	s.mu.Unlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	total := len(summaries)
	if offset >= total {
		return []domain.RunSummary{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return summaries[offset:end], total, nil
}

func (s *runService) Artifact(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*Artifact, error) {
	if format == "" {
		format = domain.ExportJSON
	}
	switch format {
	case domain.ExportJSON, domain.ExportCSV, domain.ExportXLSX:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFormat, format)
	}

	records, err := s.recordsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := export.Render(records, format)
	if err != nil {
		return nil, fmt.Errorf("runService.Artifact: %w", err)
	}
	return &Artifact{
		Filename:    export.BuildFilename("run_"+id.String()[:8], format),
		ContentType: export.ContentType(format),
		Data:        data,
	}, nil
}

func (s *runService) Clear(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	st, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrRunNotFound
	}
	if st.busy {
		s.mu.Unlock()
		return domain.ErrRunBusy
	}
	delete(s.runs, id)
	dir := st.run.WorkDir
	s.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("runService.Clear: failed to remove images", zap.String("dir", dir), zap.Error(err))
	}
	s.logger.Info("runService.Clear: run cleared", zap.String("run_id", id.String()))
	s.recordStatus(ctx, id, domain.RunStatusCleared)
	return nil
}

// acquire marks a live run busy. A run already busy yields ErrRunBusy.
func (s *runService) acquire(id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	if st.busy {
		return nil, domain.ErrRunBusy
	}
	st.busy = true
	return st.run, nil
}

func (s *runService) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.runs[id]; ok {
		st.busy = false
	}
}

func (s *runService) recordsFor(ctx context.Context, id uuid.UUID) ([]domain.Record, error) {
	s.mu.Lock()
	if st, ok := s.runs[id]; ok {
		records := st.run.Records
		s.mu.Unlock()
		if records == nil {
			return nil, domain.ErrNotExtracted
		}
		return records, nil
	}
	s.mu.Unlock()

	if s.deps.Repo == nil {
		return nil, domain.ErrRunNotFound
	}
	if _, err := s.deps.Repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	results, err := s.deps.Repo.ListResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("runService.Artifact: %w", err)
	}
	var records []domain.Record
	for _, r := range results {
		if r.Position < 0 {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal(r.Record, &rec); err != nil {
			return nil, fmt.Errorf("runService.Artifact: decoding result %d: %w", r.Position, err)
		}
		records = append(records, rec)
	}
	if records == nil {
		return nil, domain.ErrNotExtracted
	}
	return records, nil
}

// archive uploads the JSON artifact when object storage is configured and
// returns its key. Failures are logged and yield an empty key.
func (s *runService) archive(ctx context.Context, id uuid.UUID, records []domain.Record) string {
	if s.deps.Storage == nil {
		return ""
	}
	data, err := export.JSON(records)
	if err != nil {
		s.logger.Warn("runService.archive: rendering artifact failed", zap.Error(err))
		return ""
	}
	key := export.ArchiveKey(id)
	_, err = s.deps.Storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: export.ContentType(domain.ExportJSON),
		Size:        int64(len(data)),
	})
	if err != nil {
		s.logger.Warn("runService.archive: artifact upload failed",
			zap.String("run_id", id.String()), zap.Error(err))
		return ""
	}
	return key
}

func (s *runService) sendSummary(ctx context.Context, mail domain.RunSummaryMail, artifactKey string) {
	if s.deps.Mailer == nil || len(s.cfg.Recipients) == 0 {
		return
	}
	if artifactKey != "" && s.deps.Storage != nil {
		url, err := s.deps.Storage.GetPresignedURL(ctx, s.cfg.Bucket, artifactKey, s.cfg.PresignExpiry)
		if err != nil {
			s.logger.Warn("runService.sendSummary: presign failed", zap.Error(err))
		} else {
			mail.ArtifactURL = url
		}
	}
	if err := s.deps.Mailer.SendRunSummary(ctx, s.cfg.Recipients, mail); err != nil {
		s.logger.Warn("runService.sendSummary: failed to send summary mail",
			zap.String("run_id", mail.RunID.String()), zap.Error(err))
	}
}

func (s *runService) recordStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) {
	if s.deps.Repo == nil {
		return
	}
	if err := s.deps.Repo.UpdateStatus(ctx, id, status); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("runService: failed to update run history",
			zap.String("run_id", id.String()), zap.String("status", string(status)), zap.Error(err))
	}
}

// buildResults pairs each reconciliation result with its image and record.
// Records the report does not cover are kept with an empty status so the
// artifact can be rebuilt from history.
func buildResults(id uuid.UUID, images []domain.Image, records []domain.Record, report *domain.SyncReport) []domain.RunResult {
	out := make([]domain.RunResult, 0, len(report.Results))
	covered := make(map[int]bool, len(records))
	for _, res := range report.Results {
		covered[res.Index] = true
		r := domain.RunResult{
			RunID:    id,
			Position: res.Index,
			Status:   res.Status,
			Message:  res.Message,
		}
		if res.Index >= 0 && res.Index < len(images) {
			r.Source = images[res.Index].Name
		}
		if res.Index >= 0 && res.Index < len(records) {
			r.Record, _ = json.Marshal(records[res.Index])
		}
		out = append(out, r)
	}
	for i := range records {
		if covered[i] {
			continue
		}
		r := domain.RunResult{RunID: id, Position: i}
		if i < len(images) {
			r.Source = images[i].Name
		}
		r.Record, _ = json.Marshal(records[i])
		out = append(out, r)
	}
	return out
}

// snapshot returns a copy of run safe to hand out while the original keeps
// changing under the service lock.
func snapshot(run *domain.Run) *domain.Run {
	c := *run
	c.Images = append([]domain.Image(nil), run.Images...)
	if run.Records != nil {
		c.Records = append([]domain.Record(nil), run.Records...)
	}
	return &c
}
