// Package service implements the deliverable lifecycle: scheduling, runs,
// review decisions and the derived quality signal.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/archive"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/generate"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/quality"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/schedule"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/store"
	"github.com/Kvkthecreator/yarnnnn-sub006/pkg/logger"
)

// crossPlatformTypes are deliverable types that aggregate across tools and
// may be created without a bound source. Everything else requires at least
// one source.
var crossPlatformTypes = map[string]bool{
	"research_brief": true,
	"trend_digest":   true,
}

type Deliverables struct {
	store      *store.Queries
	policy     quality.Policy
	generator  *generate.Client
	archiver   *archive.Archiver
	summarizer quality.Summarizer
	claimTTL   time.Duration
	now        func() time.Time
}

func NewDeliverables(q *store.Queries, policy quality.Policy, gen *generate.Client, arch *archive.Archiver, summarizer quality.Summarizer, claimTTL time.Duration) *Deliverables {
	return &Deliverables{
		store:      q,
		policy:     policy,
		generator:  gen,
		archiver:   arch,
		summarizer: summarizer,
		claimTTL:   claimTTL,
		now:        time.Now,
	}
}

// CreateInput is the validated shape of a new deliverable.
type CreateInput struct {
	Title       string            `json:"title"`
	Type        string            `json:"type"`
	Destination model.Destination `json:"destination"`
	Sources     []model.Source    `json:"sources"`
	Schedule    model.Schedule    `json:"schedule"`
}

// UpdateInput patches the human-editable settings. Nil fields stay as they
// are.
type UpdateInput struct {
	Title       *string            `json:"title,omitempty"`
	Destination *model.Destination `json:"destination,omitempty"`
	Sources     *[]model.Source    `json:"sources,omitempty"`
	Schedule    *model.Schedule    `json:"schedule,omitempty"`
}

// Detail is the full read model for one deliverable.
type Detail struct {
	Deliverable *model.Deliverable     `json:"deliverable"`
	Versions    []model.Version        `json:"versions"`
	Feedback    *model.FeedbackSummary `json:"feedback_summary,omitempty"`
}

// Create validates and persists a new active deliverable with its first
// next_run_at computed.
func (s *Deliverables) Create(ctx context.Context, tenant string, input CreateInput) (*model.Deliverable, error) {
	if input.Title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if input.Type == "" {
		return nil, invalid("type", "must not be empty")
	}
	if input.Destination.Platform == "" || input.Destination.Target == "" {
		return nil, invalid("destination", "platform and target are required")
	}
	if err := validateSchedule(input.Schedule); err != nil {
		return nil, err
	}
	if !crossPlatformTypes[input.Type] && len(input.Sources) == 0 {
		return nil, invalid("sources", "at least one source is required for platform-bound deliverables")
	}
	for _, src := range input.Sources {
		if src.Scope != model.ScopeDelta && src.Scope != model.ScopeFull {
			return nil, invalid("sources", "scope must be delta or full")
		}
	}

	now := s.now()
	d := &model.Deliverable{
		ID:           uuid.New().String(),
		Tenant:       tenant,
		Title:        input.Title,
		Type:         input.Type,
		Destination:  input.Destination,
		Sources:      input.Sources,
		Schedule:     input.Schedule,
		Status:       model.DeliverableActive,
		QualityTrend: model.TrendStable,
		NextRunAt:    schedule.Resolve(input.Schedule, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDeliverable(ctx, d); err != nil {
		return nil, err
	}

	logger.Info(ctx, "deliverable created", "deliverable_id", d.ID, "type", d.Type)
	return d, nil
}

func validateSchedule(sched model.Schedule) error {
	switch sched.Frequency {
	case model.FreqDaily, model.FreqWeekly, model.FreqBiweekly, model.FreqMonthly:
		return nil
	case "":
		return invalid("schedule", "frequency is required")
	default:
		return invalid("schedule", "unsupported frequency "+sched.Frequency)
	}
}

// List returns the tenant's deliverables, optionally filtered by status.
func (s *Deliverables) List(ctx context.Context, tenant, statusFilter string) ([]model.Deliverable, error) {
	switch statusFilter {
	case "", model.DeliverableActive, model.DeliverablePaused, model.DeliverableArchived:
	default:
		return nil, invalid("status", "unknown status filter "+statusFilter)
	}
	return s.store.ListDeliverables(ctx, tenant, statusFilter)
}

// Get returns the deliverable with its full version history and feedback
// summary.
func (s *Deliverables) Get(ctx context.Context, tenant, id string) (*Detail, error) {
	d, err := s.store.GetDeliverable(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Deliverable: d, Versions: versions}
	if summary := s.summarize(ctx, versions); summary != nil {
		detail.Feedback = summary
	}
	return detail, nil
}

// Update applies a settings patch. A schedule change recomputes next_run_at
// when the deliverable is active.
func (s *Deliverables) Update(ctx context.Context, tenant, id string, patch UpdateInput) (*model.Deliverable, error) {
	d, err := s.store.GetDeliverable(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if d.Status == model.DeliverableArchived {
		return nil, ErrConflict
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, invalid("title", "must not be empty")
		}
		d.Title = *patch.Title
	}
	if patch.Destination != nil {
		if patch.Destination.Platform == "" || patch.Destination.Target == "" {
			return nil, invalid("destination", "platform and target are required")
		}
		d.Destination = *patch.Destination
	}
	if patch.Sources != nil {
		d.Sources = *patch.Sources
	}
	if patch.Schedule != nil {
		if err := validateSchedule(*patch.Schedule); err != nil {
			return nil, err
		}
		d.Schedule = *patch.Schedule
		if d.Status == model.DeliverableActive {
			d.NextRunAt = schedule.Resolve(d.Schedule, s.now())
		}
	}

	if err := s.store.UpdateDeliverableSettings(ctx, d); err != nil {
		return nil, err
	}
	return s.store.GetDeliverable(ctx, tenant, id)
}

// Pause stops scheduling. No implicit runs happen while paused.
func (s *Deliverables) Pause(ctx context.Context, tenant, id string) error {
	err := s.store.SetDeliverableStatus(ctx, tenant, id,
		[]string{model.DeliverableActive}, model.DeliverablePaused, nil)
	if err != nil {
		return err
	}
	logger.Info(ctx, "deliverable paused", "deliverable_id", id)
	return nil
}

// Resume reactivates scheduling, recomputing next_run_at from now.
func (s *Deliverables) Resume(ctx context.Context, tenant, id string) error {
	d, err := s.store.GetDeliverable(ctx, tenant, id)
	if err != nil {
		return err
	}
	next := schedule.Resolve(d.Schedule, s.now())
	err = s.store.SetDeliverableStatus(ctx, tenant, id,
		[]string{model.DeliverablePaused}, model.DeliverableActive, next)
	if err != nil {
		return err
	}
	logger.Info(ctx, "deliverable resumed", "deliverable_id", id)
	return nil
}

// Archive is terminal: history stays readable but the deliverable never
// schedules or accepts runs again.
func (s *Deliverables) Archive(ctx context.Context, tenant, id string) error {
	err := s.store.SetDeliverableStatus(ctx, tenant, id,
		[]string{model.DeliverableActive, model.DeliverablePaused}, model.DeliverableArchived, nil)
	if err != nil {
		return err
	}
	logger.Info(ctx, "deliverable archived", "deliverable_id", id)
	return nil
}

// RunNow requests an out-of-band generation. The storage layer refuses a
// second run while one is in flight.
func (s *Deliverables) RunNow(ctx context.Context, tenant, id string) (*model.Version, error) {
	d, err := s.store.GetDeliverable(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DeliverableActive {
		return nil, ErrConflict
	}

	v := &model.Version{
		ID:            uuid.New().String(),
		DeliverableID: d.ID,
		Status:        model.VersionGenerating,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}

	logger.Info(ctx, "run requested", "deliverable_id", d.ID, "version_id", v.ID, "number", v.Number)

	if s.generator != nil && s.generator.Enabled() {
		go s.dispatchRun(d, v.ID)
	}
	return v, nil
}

// dispatchRun notifies the external generator. A refused request fails the
// version immediately so the slot frees up; a draft or a failure report
// arrives later through the generation callback.
func (s *Deliverables) dispatchRun(d *model.Deliverable, versionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	resp, err := s.generator.StartRun(ctx, d, versionID)
	if err != nil {
		logger.Error(ctx, "generation request failed", "version_id", versionID, "error", err)
		if failErr := s.store.FailVersion(ctx, versionID, err.Error(), s.now()); failErr != nil {
			logger.Error(ctx, "failed to mark version failed", "version_id", versionID, "error", failErr)
		}
		return
	}
	logger.Info(ctx, "generation started", "version_id", versionID, "run_id", resp.Data.RunID)
}

// CompleteGeneration records the generator's result for a version: a draft
// stages it for review, a failure terminates it with the error attached.
// Completing a run also consumes the schedule slot, so next_run_at advances.
func (s *Deliverables) CompleteGeneration(ctx context.Context, versionID, draft, errMsg string) error {
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}

	now := s.now()
	if errMsg != "" {
		if err := s.store.FailVersion(ctx, versionID, errMsg, now); err != nil {
			return err
		}
	} else {
		if err := s.store.StageVersion(ctx, versionID, draft, now); err != nil {
			return err
		}
	}

	// Advance the schedule regardless of outcome; the run happened.
	if err := s.advanceSchedule(ctx, v.DeliverableID); err != nil {
		logger.Warn(ctx, "failed to advance schedule", "deliverable_id", v.DeliverableID, "error", err)
	}
	return nil
}

func (s *Deliverables) advanceSchedule(ctx context.Context, deliverableID string) error {
	// Status may have changed mid-run; only active deliverables keep a
	// next_run_at.
	d, err := s.store.GetDeliverableAnyTenant(ctx, deliverableID)
	if err != nil {
		return err
	}
	if d.Status != model.DeliverableActive {
		return nil
	}
	return s.store.SetNextRun(ctx, deliverableID, schedule.Resolve(d.Schedule, s.now()))
}
