package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// Deliverables

func (q *Queries) CreateDeliverable(ctx context.Context, d *model.Deliverable) error {
	destination, err := json.Marshal(d.Destination)
	if err != nil {
		return fmt.Errorf("marshaling destination: %w", err)
	}
	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO deliverables (id, tenant, title, type, destination, sources,
		     frequency, day, time_of_day, status, quality_trend, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Tenant, d.Title, d.Type, string(destination), string(sources),
		d.Schedule.Frequency, d.Schedule.Day, d.Schedule.TimeOfDay,
		d.Status, d.QualityTrend, fmtTimePtr(d.NextRunAt), fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating deliverable: %w", err)
	}
	return nil
}

const deliverableColumns = `id, tenant, title, type, destination, sources,
    frequency, day, time_of_day, status, quality_score, quality_trend,
    next_run_at, created_at, updated_at`

func scanDeliverable(row sq.RowScanner) (*model.Deliverable, error) {
	var d model.Deliverable
	var destination, sources, createdAt, updatedAt string
	var nextRunAt sql.NullString
	var quality sql.NullFloat64

	err := row.Scan(&d.ID, &d.Tenant, &d.Title, &d.Type, &destination, &sources,
		&d.Schedule.Frequency, &d.Schedule.Day, &d.Schedule.TimeOfDay,
		&d.Status, &quality, &d.QualityTrend, &nextRunAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning deliverable: %w", err)
	}

	if err := json.Unmarshal([]byte(destination), &d.Destination); err != nil {
		return nil, fmt.Errorf("parsing destination: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &d.Sources); err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}
	if quality.Valid {
		d.QualityScore = &quality.Float64
	}
	d.NextRunAt = parseTimePtr(nextRunAt)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

func (q *Queries) GetDeliverable(ctx context.Context, tenant, id string) (*model.Deliverable, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+deliverableColumns+` FROM deliverables WHERE id = ? AND tenant = ?`, id, tenant)
	return scanDeliverable(row)
}

// GetDeliverableAnyTenant looks a deliverable up by id alone. Only for
// internal paths like the generation callback, which authenticates by
// correlation id rather than supervisor token.
func (q *Queries) GetDeliverableAnyTenant(ctx context.Context, id string) (*model.Deliverable, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+deliverableColumns+` FROM deliverables WHERE id = ?`, id)
	return scanDeliverable(row)
}

// ListDeliverables returns the tenant's deliverables, optionally filtered by
// status, most recently updated first.
func (q *Queries) ListDeliverables(ctx context.Context, tenant, statusFilter string) ([]model.Deliverable, error) {
	builder := sq.Select(deliverableColumns).
		From("deliverables").
		Where(sq.Eq{"tenant": tenant}).
		OrderBy("updated_at DESC")
	if statusFilter != "" {
		builder = builder.Where(sq.Eq{"status": statusFilter})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deliverables: %w", err)
	}
	defer rows.Close()

	var results []model.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

// UpdateDeliverableSettings rewrites the human-editable fields. Archived
// deliverables are excluded in the UPDATE itself, so a concurrent archive
// between the caller's read and this write surfaces as ErrConflict instead
// of being overwritten.
func (q *Queries) UpdateDeliverableSettings(ctx context.Context, d *model.Deliverable) error {
	destination, err := json.Marshal(d.Destination)
	if err != nil {
		return fmt.Errorf("marshaling destination: %w", err)
	}
	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE deliverables
		 SET title = ?, destination = ?, sources = ?, frequency = ?, day = ?,
		     time_of_day = ?, next_run_at = ?, updated_at = ?
		 WHERE id = ? AND tenant = ? AND status != ?`,
		d.Title, string(destination), string(sources),
		d.Schedule.Frequency, d.Schedule.Day, d.Schedule.TimeOfDay,
		fmtTimePtr(d.NextRunAt), fmtTime(time.Now()),
		d.ID, d.Tenant, model.DeliverableArchived,
	)
	if err != nil {
		return fmt.Errorf("updating deliverable: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res,
		"SELECT 1 FROM deliverables WHERE id = ? AND tenant = ?", d.ID, d.Tenant)
}

// SetDeliverableStatus transitions the deliverable's status conditionally:
// the update only lands if the current status is one of from.
func (q *Queries) SetDeliverableStatus(ctx context.Context, tenant, id string, from []string, to string, nextRunAt *time.Time) error {
	query, args, err := sq.Update("deliverables").
		Set("status", to).
		Set("next_run_at", fmtTimePtr(nextRunAt)).
		Set("updated_at", fmtTime(time.Now())).
		Where(sq.Eq{"id": id, "tenant": tenant, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building status update: %w", err)
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating deliverable status: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res,
		`SELECT 1 FROM deliverables WHERE id = ? AND tenant = ?`, id, tenant)
}

// SetDeliverableQuality records the recomputed rolling quality signal.
func (q *Queries) SetDeliverableQuality(ctx context.Context, id string, score float64, trend string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE deliverables SET quality_score = ?, quality_trend = ?, updated_at = ? WHERE id = ?`,
		score, trend, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating quality: %w", err)
	}
	return nil
}

// SetNextRun updates the derived next_run_at.
func (q *Queries) SetNextRun(ctx context.Context, id string, nextRunAt *time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE deliverables SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		fmtTimePtr(nextRunAt), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating next run: %w", err)
	}
	return nil
}

// Versions

// CreateVersion appends a new version in generating state. It fails with
// ErrConflict when the deliverable already has a version in flight, enforcing
// the one-draft-at-a-time rule at the storage layer.
func (q *Queries) CreateVersion(ctx context.Context, v *model.Version) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var inFlight int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM versions
		 WHERE deliverable_id = ? AND status IN ('generating', 'staged', 'reviewing')`,
		v.DeliverableID).Scan(&inFlight)
	if err != nil {
		return fmt.Errorf("checking in-flight versions: %w", err)
	}
	if inFlight > 0 {
		return ErrConflict
	}

	var maxNumber sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(number) FROM versions WHERE deliverable_id = ?`, v.DeliverableID).Scan(&maxNumber)
	if err != nil {
		return fmt.Errorf("determining version number: %w", err)
	}
	v.Number = int(maxNumber.Int64) + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, deliverable_id, number, status, draft_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.DeliverableID, v.Number, v.Status, v.DraftContent, fmtTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}
	return tx.Commit()
}

const versionColumns = `id, deliverable_id, number, status, draft_content, final_content,
    edit_distance, feedback_notes, error_msg, claimed_by, claimed_at,
    created_at, staged_at, completed_at`

func scanVersion(row sq.RowScanner) (*model.Version, error) {
	var v model.Version
	var createdAt string
	var finalContent sql.NullString
	var editDistance sql.NullFloat64
	var claimedAt, stagedAt, completedAt sql.NullString

	err := row.Scan(&v.ID, &v.DeliverableID, &v.Number, &v.Status, &v.DraftContent,
		&finalContent, &editDistance, &v.FeedbackNotes, &v.ErrorMsg,
		&v.ClaimedBy, &claimedAt, &createdAt, &stagedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning version: %w", err)
	}

	if finalContent.Valid {
		v.FinalContent = &finalContent.String
	}
	if editDistance.Valid {
		v.EditDistance = &editDistance.Float64
	}
	v.ClaimedAt = parseTimePtr(claimedAt)
	v.CreatedAt = parseTime(createdAt)
	v.StagedAt = parseTimePtr(stagedAt)
	v.CompletedAt = parseTimePtr(completedAt)
	return &v, nil
}

func (q *Queries) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = ?`, id)
	return scanVersion(row)
}

// ListVersions returns the full append-only history of a deliverable, oldest
// first.
func (q *Queries) ListVersions(ctx context.Context, deliverableID string) ([]model.Version, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE deliverable_id = ? ORDER BY number ASC`,
		deliverableID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var results []model.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *v)
	}
	return results, rows.Err()
}

// StageVersion records completed generation: the draft lands and the version
// becomes eligible for review. Only reachable from generating.
func (q *Queries) StageVersion(ctx context.Context, id, draft string, stagedAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE versions SET status = 'staged', draft_content = ?, staged_at = ?
		 WHERE id = ? AND status = 'generating'`,
		draft, fmtTime(stagedAt), id)
	if err != nil {
		return fmt.Errorf("staging version: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res, `SELECT 1 FROM versions WHERE id = ?`, id)
}

// FailVersion marks a generation failure. Terminal; the reviewer can only
// acknowledge it.
func (q *Queries) FailVersion(ctx context.Context, id, errMsg string, completedAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE versions SET status = 'failed', error_msg = ?, completed_at = ?
		 WHERE id = ? AND status = 'generating'`,
		errMsg, fmtTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("failing version: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res, `SELECT 1 FROM versions WHERE id = ?`, id)
}

// ClaimVersion takes the advisory review claim. A staged version is always
// claimable; a reviewing one only by the same reviewer or once the previous
// claim has aged past ttl. The timestamp comparison is textual, which is
// safe because stored times are fixed-width UTC.
func (q *Queries) ClaimVersion(ctx context.Context, id, reviewer string, now time.Time, ttl time.Duration) error {
	cutoff := fmtTime(now.Add(-ttl))
	res, err := q.db.ExecContext(ctx,
		`UPDATE versions SET status = 'reviewing', claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND (
		     status = 'staged'
		     OR (status = 'reviewing' AND (claimed_by = ? OR claimed_at < ?))
		 )`,
		reviewer, fmtTime(now), id, reviewer, cutoff)
	if err != nil {
		return fmt.Errorf("claiming version: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res, `SELECT 1 FROM versions WHERE id = ?`, id)
}

// ApproveVersion commits an approval, conditioned on the version still
// awaiting a decision. A second concurrent decision sees zero rows and gets
// ErrConflict.
func (q *Queries) ApproveVersion(ctx context.Context, id, finalContent string, editDistance float64, completedAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE versions SET status = 'approved', final_content = ?, edit_distance = ?, completed_at = ?
		 WHERE id = ? AND status IN ('staged', 'reviewing')`,
		finalContent, editDistance, fmtTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("approving version: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res, `SELECT 1 FROM versions WHERE id = ?`, id)
}

// RejectVersion commits a rejection with the supervisor's feedback notes.
// final_content stays unset; the draft is discarded.
func (q *Queries) RejectVersion(ctx context.Context, id, notes string, completedAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE versions SET status = 'rejected', feedback_notes = ?, completed_at = ?
		 WHERE id = ? AND status IN ('staged', 'reviewing')`,
		notes, fmtTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("rejecting version: %w", err)
	}
	return q.conflictIfUnchanged(ctx, res, `SELECT 1 FROM versions WHERE id = ?`, id)
}

// InFlightVersion returns the deliverable's single in-flight version, or
// ErrNotFound when no run is in progress.
func (q *Queries) InFlightVersion(ctx context.Context, deliverableID string) (*model.Version, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE deliverable_id = ? AND status IN ('generating', 'staged', 'reviewing')
		 ORDER BY number DESC LIMIT 1`,
		deliverableID)
	return scanVersion(row)
}

// ApprovedScores returns the edit-distance scores of approved versions in
// approval order, feeding the trend computation.
func (q *Queries) ApprovedScores(ctx context.Context, deliverableID string) ([]float64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT edit_distance FROM versions
		 WHERE deliverable_id = ? AND status = 'approved' AND edit_distance IS NOT NULL
		 ORDER BY number ASC`,
		deliverableID)
	if err != nil {
		return nil, fmt.Errorf("listing approved scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ListAttention projects every version awaiting review across the tenant's
// deliverables, oldest staged first (first-in-first-out triage).
func (q *Queries) ListAttention(ctx context.Context, tenant string) ([]model.AttentionItem, error) {
	query, args, err := sq.Select("v.deliverable_id", "v.id", "d.title", "v.staged_at").
		From("versions v").
		Join("deliverables d ON d.id = v.deliverable_id").
		Where(sq.Eq{"d.tenant": tenant, "v.status": []string{model.VersionStaged, model.VersionReviewing}}).
		OrderBy("v.staged_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building attention query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attention items: %w", err)
	}
	defer rows.Close()

	var items []model.AttentionItem
	for rows.Next() {
		var item model.AttentionItem
		var stagedAt sql.NullString
		if err := rows.Scan(&item.DeliverableID, &item.VersionID, &item.Title, &stagedAt); err != nil {
			return nil, fmt.Errorf("scanning attention item: %w", err)
		}
		if t := parseTimePtr(stagedAt); t != nil {
			item.StagedAt = *t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// conflictIfUnchanged disambiguates a zero-row conditional update: the row
// either does not exist (ErrNotFound) or is no longer in the expected state
// (ErrConflict).
func (q *Queries) conflictIfUnchanged(ctx context.Context, res sql.Result, existsQuery string, args ...any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var one int
	err = q.db.QueryRowContext(ctx, existsQuery, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking row existence: %w", err)
	}
	return ErrConflict
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
