package model

import (
	"time"
)

// DeliverableStatus constants
const (
	DeliverableActive   = "active"
	DeliverablePaused   = "paused"
	DeliverableArchived = "archived"
)

// VersionStatus constants
const (
	VersionGenerating = "generating"
	VersionStaged     = "staged"
	VersionReviewing  = "reviewing"
	VersionApproved   = "approved"
	VersionRejected   = "rejected"
	VersionFailed     = "failed"
)

// Frequency constants
const (
	FreqDaily    = "daily"
	FreqWeekly   = "weekly"
	FreqBiweekly = "biweekly"
	FreqMonthly  = "monthly"
)

// Trend constants
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Source scope constants
const (
	ScopeDelta = "delta"
	ScopeFull  = "full"
)

// Schedule describes when a deliverable runs. Day holds a weekday name for
// weekly/biweekly rules or a day-of-month for monthly rules.
type Schedule struct {
	Frequency string `json:"frequency" yaml:"frequency"`
	Day       string `json:"day,omitempty" yaml:"day"`
	TimeOfDay string `json:"time_of_day,omitempty" yaml:"time_of_day"`
}

// Destination is where produced content ends up.
type Destination struct {
	Platform string `json:"platform"`
	Target   string `json:"target"`
	Format   string `json:"format"`
}

// Source is one data input feeding a deliverable run.
type Source struct {
	Platform     string `json:"platform"`
	Scope        string `json:"scope"` // delta or full
	FallbackDays int    `json:"fallback_days,omitempty"`
	MaxItems     int    `json:"max_items,omitempty"`
}

// Deliverable represents a recurring content-production contract.
type Deliverable struct {
	ID           string      `json:"id"`
	Tenant       string      `json:"tenant"`
	Title        string      `json:"title"`
	Type         string      `json:"type"`
	Destination  Destination `json:"destination"`
	Sources      []Source    `json:"sources"`
	Schedule     Schedule    `json:"schedule"`
	Status       string      `json:"status"` // active, paused, archived
	QualityScore *float64    `json:"quality_score,omitempty"`
	QualityTrend string      `json:"quality_trend"`
	NextRunAt    *time.Time  `json:"next_run_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Version is one produced artifact of a deliverable. Versions are append-only;
// approved, rejected and failed are terminal.
type Version struct {
	ID            string     `json:"id"`
	DeliverableID string     `json:"deliverable_id"`
	Number        int        `json:"number"`
	Status        string     `json:"status"`
	DraftContent  string     `json:"draft_content"`
	FinalContent  *string    `json:"final_content,omitempty"`
	EditDistance  *float64   `json:"edit_distance_score,omitempty"`
	FeedbackNotes string     `json:"feedback_notes,omitempty"`
	ErrorMsg      string     `json:"error_msg,omitempty"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StagedAt      *time.Time `json:"staged_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// InFlight reports whether the version still occupies its deliverable's
// single production slot.
func (v *Version) InFlight() bool {
	switch v.Status {
	case VersionGenerating, VersionStaged, VersionReviewing:
		return true
	}
	return false
}

// Awaiting reports whether the version is waiting on a human decision.
func (v *Version) Awaiting() bool {
	return v.Status == VersionStaged || v.Status == VersionReviewing
}

// AttentionItem is a projection of one version awaiting review. It is never
// stored; the queue rebuilds it from the version collection on every refresh.
type AttentionItem struct {
	DeliverableID string    `json:"deliverable_id"`
	VersionID     string    `json:"version_id"`
	Title         string    `json:"title"`
	StagedAt      time.Time `json:"staged_at"`
}

// FeedbackSummary is a derived, read-only aggregate over a deliverable's
// completed versions.
type FeedbackSummary struct {
	HasFeedback        bool     `json:"has_feedback"`
	AvgQuality         float64  `json:"avg_quality"` // percentage
	ApprovedVersions   int      `json:"approved_versions"`
	LearnedPreferences []string `json:"learned_preferences"`
	RejectionStreak    int      `json:"rejection_streak"`
	AllRejected        bool     `json:"all_rejected"`
}
