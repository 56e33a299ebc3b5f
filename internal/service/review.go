package service

import (
	"context"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/quality"
	"github.com/Kvkthecreator/yarnnnn-sub006/pkg/logger"
)

// consecutive rejections before the all-rejected condition trips
const allRejectedAfter = 2

// Attention projects every version awaiting the tenant's review, oldest
// staged first.
func (s *Deliverables) Attention(ctx context.Context, tenant string) ([]model.AttentionItem, error) {
	return s.store.ListAttention(ctx, tenant)
}

// Claim takes the advisory review lock on a staged version. A stale claim
// (older than the configured TTL) may be taken over by another supervisor.
func (s *Deliverables) Claim(ctx context.Context, tenant, deliverableID, versionID, reviewer string) (*model.Version, error) {
	if _, err := s.ownedVersion(ctx, tenant, deliverableID, versionID); err != nil {
		return nil, err
	}
	if err := s.store.ClaimVersion(ctx, versionID, reviewer, s.now(), s.claimTTL); err != nil {
		return nil, err
	}
	return s.store.GetVersion(ctx, versionID)
}

// Approve commits an approval. finalContent nil means the draft shipped
// unedited. The edit-distance score, the owning deliverable's rolling
// quality and its trend are all recomputed as side effects.
func (s *Deliverables) Approve(ctx context.Context, tenant, deliverableID, versionID string, finalContent *string) (*model.Version, error) {
	d, err := s.store.GetDeliverable(ctx, tenant, deliverableID)
	if err != nil {
		return nil, err
	}
	v, err := s.ownedVersion(ctx, tenant, deliverableID, versionID)
	if err != nil {
		return nil, err
	}

	final := v.DraftContent
	if finalContent != nil {
		final = *finalContent
	}

	format := d.Destination.Format
	score := quality.EditDistance(
		quality.ReduceForScoring(v.DraftContent, format),
		quality.ReduceForScoring(final, format),
	)

	if err := s.store.ApproveVersion(ctx, versionID, final, score, s.now()); err != nil {
		return nil, err
	}

	s.recomputeQuality(ctx, d, score)

	if s.archiver != nil {
		go s.archiveFinal(d, v.Number, final)
	}

	logger.Info(ctx, "version approved",
		"deliverable_id", deliverableID,
		"version_id", versionID,
		"edit_distance", score,
		"rating", s.policy.Classify(score),
	)
	return s.store.GetVersion(ctx, versionID)
}

// Reject commits a rejection. Feedback notes are mandatory and checked
// before any state change. The draft is discarded; final_content stays
// unset.
func (s *Deliverables) Reject(ctx context.Context, tenant, deliverableID, versionID, notes string) (*model.Version, error) {
	if notes == "" {
		return nil, invalid("feedback_notes", "required when rejecting a version")
	}
	if _, err := s.store.GetDeliverable(ctx, tenant, deliverableID); err != nil {
		return nil, err
	}
	if _, err := s.ownedVersion(ctx, tenant, deliverableID, versionID); err != nil {
		return nil, err
	}

	if err := s.store.RejectVersion(ctx, versionID, notes, s.now()); err != nil {
		return nil, err
	}

	logger.Info(ctx, "version rejected", "deliverable_id", deliverableID, "version_id", versionID)
	return s.store.GetVersion(ctx, versionID)
}

// FeedbackSummary builds the derived feedback aggregate for one deliverable.
func (s *Deliverables) FeedbackSummary(ctx context.Context, tenant, id string) (*model.FeedbackSummary, error) {
	if _, err := s.store.GetDeliverable(ctx, tenant, id); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := s.summarize(ctx, versions)
	if summary == nil {
		summary = &model.FeedbackSummary{}
	}
	return summary, nil
}

// summarize derives the feedback aggregate from a version history. Returns
// nil when no version has completed review yet.
func (s *Deliverables) summarize(ctx context.Context, versions []model.Version) *model.FeedbackSummary {
	var approved []model.Version
	var qualitySum float64
	streak := 0
	completed := 0

	for _, v := range versions {
		switch v.Status {
		case model.VersionApproved:
			completed++
			streak = 0
			approved = append(approved, v)
			if v.EditDistance != nil {
				qualitySum += 1 - *v.EditDistance
			}
		case model.VersionRejected:
			completed++
			streak++
		}
	}
	if completed == 0 {
		return nil
	}

	summary := &model.FeedbackSummary{
		HasFeedback:      len(approved) > 0,
		ApprovedVersions: len(approved),
		RejectionStreak:  streak,
		AllRejected:      streak >= allRejectedAfter,
	}
	if len(approved) > 0 {
		summary.AvgQuality = qualitySum / float64(len(approved)) * 100
		summary.LearnedPreferences = s.policy.ExtractPreferences(ctx, approved, s.summarizer)
	}
	return summary
}

// recomputeQuality folds one newly approved score into the deliverable's
// rolling quality signal and refreshes the trend.
func (s *Deliverables) recomputeQuality(ctx context.Context, d *model.Deliverable, score float64) {
	scores, err := s.store.ApprovedScores(ctx, d.ID)
	if err != nil {
		logger.Warn(ctx, "failed to load approved scores", "deliverable_id", d.ID, "error", err)
		return
	}

	rolled := s.policy.RollQuality(d.QualityScore, score)
	trend := s.policy.Trend(scores)
	if err := s.store.SetDeliverableQuality(ctx, d.ID, rolled, trend); err != nil {
		logger.Warn(ctx, "failed to update quality", "deliverable_id", d.ID, "error", err)
	}
}

func (s *Deliverables) archiveFinal(d *model.Deliverable, number int, content string) {
	ctx := context.Background()
	object, err := s.archiver.StoreFinal(ctx, d.Tenant, d.ID, number, content, d.Destination.Format)
	if err != nil {
		logger.Warn(ctx, "failed to archive final artifact",
			"deliverable_id", d.ID, "version_number", number, "error", err)
		return
	}
	logger.Info(ctx, "final artifact archived", "deliverable_id", d.ID, "object", object)
}

// ownedVersion verifies the version exists and belongs to the tenant's
// deliverable before any transition touches it.
func (s *Deliverables) ownedVersion(ctx context.Context, tenant, deliverableID, versionID string) (*model.Version, error) {
	if _, err := s.store.GetDeliverable(ctx, tenant, deliverableID); err != nil {
		return nil, err
	}
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.DeliverableID != deliverableID {
		return nil, ErrNotFound
	}
	return v, nil
}
