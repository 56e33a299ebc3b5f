package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/quality"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/store"
)

func newTestService(t *testing.T) *Deliverables {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDeliverables(store.NewQueries(db), quality.DefaultPolicy(), nil, nil, nil, 15*time.Minute)
}

func validInput() CreateInput {
	return CreateInput{
		Title: "Weekly status report",
		Type:  "status_report",
		Destination: model.Destination{
			Platform: "slack",
			Target:   "#leadership",
			Format:   "markdown",
		},
		Sources: []model.Source{
			{Platform: "github", Scope: model.ScopeDelta, FallbackDays: 7, MaxItems: 50},
		},
		Schedule: model.Schedule{Frequency: model.FreqWeekly, Day: "friday", TimeOfDay: "16:00"},
	}
}

func mustCreate(t *testing.T, s *Deliverables, tenant string) *model.Deliverable {
	t.Helper()
	d, err := s.Create(context.Background(), tenant, validInput())
	if err != nil {
		t.Fatalf("Failed to create deliverable: %v", err)
	}
	return d
}

// stageDraft runs the external half of the lifecycle: request a run, then
// deliver the draft through the generation callback.
func stageDraft(t *testing.T, s *Deliverables, tenant, deliverableID, draft string) *model.Version {
	t.Helper()
	ctx := context.Background()
	v, err := s.RunNow(ctx, tenant, deliverableID)
	if err != nil {
		t.Fatalf("Failed to request run: %v", err)
	}
	if err := s.CompleteGeneration(ctx, v.ID, draft, ""); err != nil {
		t.Fatalf("Failed to complete generation: %v", err)
	}
	return v
}

func TestCreateComputesNextRun(t *testing.T) {
	s := newTestService(t)
	d := mustCreate(t, s, "tenant1")

	if d.Status != model.DeliverableActive {
		t.Errorf("Expected active, got %s", d.Status)
	}
	if d.NextRunAt == nil {
		t.Fatal("Expected next_run_at for active deliverable")
	}
	if !d.NextRunAt.After(time.Now()) {
		t.Errorf("Expected next_run_at in the future, got %v", d.NextRunAt)
	}
	if d.NextRunAt.Weekday() != time.Friday {
		t.Errorf("Expected a Friday, got %v", d.NextRunAt.Weekday())
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"empty title", func(in *CreateInput) { in.Title = "" }},
		{"empty type", func(in *CreateInput) { in.Type = "" }},
		{"missing destination target", func(in *CreateInput) { in.Destination.Target = "" }},
		{"missing frequency", func(in *CreateInput) { in.Schedule.Frequency = "" }},
		{"unknown frequency", func(in *CreateInput) { in.Schedule.Frequency = "hourly" }},
		{"no sources for platform-bound type", func(in *CreateInput) { in.Sources = nil }},
		{"bad source scope", func(in *CreateInput) { in.Sources[0].Scope = "partial" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := s.Create(ctx, "tenant1", input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateCrossPlatformNeedsNoSources(t *testing.T) {
	s := newTestService(t)

	input := validInput()
	input.Type = "research_brief"
	input.Sources = nil
	if _, err := s.Create(context.Background(), "tenant1", input); err != nil {
		t.Errorf("Expected cross-platform type without sources to be valid: %v", err)
	}
}

func TestPauseResumeNextRun(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	if err := s.Pause(ctx, "tenant1", d.ID); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	detail, err := s.Get(ctx, "tenant1", d.ID)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if detail.Deliverable.Status != model.DeliverablePaused {
		t.Errorf("Expected paused, got %s", detail.Deliverable.Status)
	}
	if detail.Deliverable.NextRunAt != nil {
		t.Error("Paused deliverable must have no next_run_at")
	}

	// Pausing twice conflicts: status is no longer active.
	if err := s.Pause(ctx, "tenant1", d.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on double pause, got %v", err)
	}

	if err := s.Resume(ctx, "tenant1", d.ID); err != nil {
		t.Fatalf("Failed to resume: %v", err)
	}
	detail, _ = s.Get(ctx, "tenant1", d.ID)
	if detail.Deliverable.Status != model.DeliverableActive {
		t.Errorf("Expected active, got %s", detail.Deliverable.Status)
	}
	if detail.Deliverable.NextRunAt == nil {
		t.Error("Resumed deliverable must have next_run_at recomputed")
	}
}

func TestArchiveIsTerminal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	if err := s.Archive(ctx, "tenant1", d.ID); err != nil {
		t.Fatalf("Failed to archive: %v", err)
	}

	// No further runs, no resume, no edits.
	if _, err := s.RunNow(ctx, "tenant1", d.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on run after archive, got %v", err)
	}
	if err := s.Resume(ctx, "tenant1", d.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on resume after archive, got %v", err)
	}
	title := "new title"
	if _, err := s.Update(ctx, "tenant1", d.ID, UpdateInput{Title: &title}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on update after archive, got %v", err)
	}

	// History stays readable.
	if _, err := s.Get(ctx, "tenant1", d.ID); err != nil {
		t.Errorf("Archived deliverable must remain readable: %v", err)
	}
}

func TestRunNowGuardsInFlight(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	if _, err := s.RunNow(ctx, "tenant1", d.ID); err != nil {
		t.Fatalf("First run should succeed: %v", err)
	}
	if _, err := s.RunNow(ctx, "tenant1", d.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict while a run is generating, got %v", err)
	}
}

func TestCompleteGenerationStagesAndAdvancesSchedule(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	before := *d.NextRunAt

	v := stageDraft(t, s, "tenant1", d.ID, "Draft content")

	detail, _ := s.Get(ctx, "tenant1", d.ID)
	if len(detail.Versions) != 1 {
		t.Fatalf("Expected 1 version, got %d", len(detail.Versions))
	}
	got := detail.Versions[0]
	if got.ID != v.ID || got.Status != model.VersionStaged {
		t.Errorf("Expected staged version, got %s", got.Status)
	}
	if got.DraftContent != "Draft content" {
		t.Errorf("Expected draft content, got %q", got.DraftContent)
	}
	if !detail.Deliverable.NextRunAt.After(before) && !detail.Deliverable.NextRunAt.Equal(before) {
		t.Errorf("Expected next_run_at to advance or hold, got %v -> %v", before, detail.Deliverable.NextRunAt)
	}
}

func TestCompleteGenerationFailure(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	v, err := s.RunNow(ctx, "tenant1", d.ID)
	if err != nil {
		t.Fatalf("Failed to request run: %v", err)
	}
	if err := s.CompleteGeneration(ctx, v.ID, "", "source unavailable"); err != nil {
		t.Fatalf("Failed to record failure: %v", err)
	}

	detail, _ := s.Get(ctx, "tenant1", d.ID)
	got := detail.Versions[0]
	if got.Status != model.VersionFailed || got.ErrorMsg != "source unavailable" {
		t.Errorf("Expected failed version with message, got %s %q", got.Status, got.ErrorMsg)
	}

	// The slot frees up for another attempt.
	if _, err := s.RunNow(ctx, "tenant1", d.ID); err != nil {
		t.Errorf("Expected new run after failure: %v", err)
	}
}

func TestApproveUneditedDraft(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "Hello world")

	approved, err := s.Approve(ctx, "tenant1", d.ID, v.ID, nil)
	if err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	if approved.Status != model.VersionApproved {
		t.Errorf("Expected approved, got %s", approved.Status)
	}
	if approved.FinalContent == nil || *approved.FinalContent != "Hello world" {
		t.Error("Unedited approval must carry the draft as final content")
	}
	if approved.EditDistance == nil || *approved.EditDistance != 0 {
		t.Errorf("Expected edit distance 0, got %v", approved.EditDistance)
	}

	detail, _ := s.Get(ctx, "tenant1", d.ID)
	if detail.Deliverable.QualityScore == nil || *detail.Deliverable.QualityScore != 1 {
		t.Errorf("Expected quality 1 after perfect approval, got %v", detail.Deliverable.QualityScore)
	}
}

func TestApproveEditedDraftLowersQuality(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "The week went fine with steady progress on all projects.")

	edited := "Shipped the migration. Two incidents, both resolved. Hiring is behind."
	approved, err := s.Approve(ctx, "tenant1", d.ID, v.ID, &edited)
	if err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	if approved.EditDistance == nil || *approved.EditDistance <= 0 {
		t.Errorf("Expected positive edit distance, got %v", approved.EditDistance)
	}

	detail, _ := s.Get(ctx, "tenant1", d.ID)
	if detail.Deliverable.QualityScore == nil || *detail.Deliverable.QualityScore >= 1 {
		t.Errorf("Expected quality below 1, got %v", detail.Deliverable.QualityScore)
	}
}

func TestApproveConflictsOnSecondDecision(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "draft")

	if _, err := s.Approve(ctx, "tenant1", d.ID, v.ID, nil); err != nil {
		t.Fatalf("First approval should succeed: %v", err)
	}
	if _, err := s.Approve(ctx, "tenant1", d.ID, v.ID, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on second approval, got %v", err)
	}
	if _, err := s.Reject(ctx, "tenant1", d.ID, v.ID, "notes"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on reject after approval, got %v", err)
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "draft")

	_, err := s.Reject(ctx, "tenant1", d.ID, v.ID, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for empty notes, got %v", err)
	}

	// Version state must be untouched.
	detail, _ := s.Get(ctx, "tenant1", d.ID)
	if detail.Versions[0].Status != model.VersionStaged {
		t.Errorf("Expected version still staged, got %s", detail.Versions[0].Status)
	}

	if _, err := s.Reject(ctx, "tenant1", d.ID, v.ID, "wrong tone, missing data"); err != nil {
		t.Fatalf("Reject with notes should succeed: %v", err)
	}
}

func TestClaimMarksReviewing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "draft")

	claimed, err := s.Claim(ctx, "tenant1", d.ID, v.ID, "alice")
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if claimed.Status != model.VersionReviewing || claimed.ClaimedBy != "alice" {
		t.Errorf("Expected reviewing by alice, got %s %q", claimed.Status, claimed.ClaimedBy)
	}

	// A reviewing version still accepts the decision.
	if _, err := s.Approve(ctx, "tenant1", d.ID, v.ID, nil); err != nil {
		t.Errorf("Approval from reviewing should succeed: %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")
	v := stageDraft(t, s, "tenant1", d.ID, "draft")

	if _, err := s.Get(ctx, "tenant2", d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign tenant, got %v", err)
	}
	if _, err := s.Approve(ctx, "tenant2", d.ID, v.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound approving foreign version, got %v", err)
	}
}

func TestFeedbackSummaryStreak(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	// One approval, then two consecutive rejections.
	v := stageDraft(t, s, "tenant1", d.ID, "first draft")
	if _, err := s.Approve(ctx, "tenant1", d.ID, v.ID, nil); err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	for i := 0; i < 2; i++ {
		v = stageDraft(t, s, "tenant1", d.ID, "another draft")
		if _, err := s.Reject(ctx, "tenant1", d.ID, v.ID, "not usable"); err != nil {
			t.Fatalf("Failed to reject: %v", err)
		}
	}

	summary, err := s.FeedbackSummary(ctx, "tenant1", d.ID)
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}
	if !summary.HasFeedback {
		t.Error("Expected has_feedback after an approval")
	}
	if summary.ApprovedVersions != 1 {
		t.Errorf("Expected 1 approved version, got %d", summary.ApprovedVersions)
	}
	if summary.RejectionStreak != 2 {
		t.Errorf("Expected rejection streak 2, got %d", summary.RejectionStreak)
	}
	if !summary.AllRejected {
		t.Error("Expected all-rejected condition after two consecutive rejections")
	}
	if summary.AvgQuality != 100 {
		t.Errorf("Expected avg quality 100 for a perfect approval, got %f", summary.AvgQuality)
	}
}

func TestFeedbackSummaryEmptyHistory(t *testing.T) {
	s := newTestService(t)
	d := mustCreate(t, s, "tenant1")

	summary, err := s.FeedbackSummary(context.Background(), "tenant1", d.ID)
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}
	if summary.HasFeedback || summary.ApprovedVersions != 0 || summary.AllRejected {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}

func TestQualityTrendAfterApprovals(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := mustCreate(t, s, "tenant1")

	// Heavily edited approvals followed by a clean one: trend improves.
	drafts := []struct{ draft, final string }{
		{"completely wrong angle on everything here", "A full rewrite of the entire report from scratch today"},
		{"still quite far from what is wanted", "Another nearly complete rewrite of the full text again"},
		{"Hello world", "Hello world"},
	}
	for _, pair := range drafts {
		v := stageDraft(t, s, "tenant1", d.ID, pair.draft)
		final := pair.final
		if _, err := s.Approve(ctx, "tenant1", d.ID, v.ID, &final); err != nil {
			t.Fatalf("Failed to approve: %v", err)
		}
	}

	detail, _ := s.Get(ctx, "tenant1", d.ID)
	if detail.Deliverable.QualityTrend != model.TrendImproving {
		t.Errorf("Expected improving trend, got %s", detail.Deliverable.QualityTrend)
	}
}
