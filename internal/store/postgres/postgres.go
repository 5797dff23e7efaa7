package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres-backed store on an open database.
// Schema setup is handled by migrations, not here.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Integrations() store.Integrations         { return &integrations{db: s.db} }
func (s *pgStore) Calendars() store.Calendars               { return &calendars{db: s.db} }
func (s *pgStore) Events() store.Events                     { return &events{db: s.db} }
func (s *pgStore) Storylines() store.Storylines             { return &storylines{db: s.db} }
func (s *pgStore) SyncStatuses() store.SyncStatuses         { return &syncStatuses{db: s.db} }
func (s *pgStore) NotificationLogs() store.NotificationLogs { return &notificationLogs{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Integrations ---

type integrations struct{ db *sql.DB }

func (r *integrations) Create(ctx context.Context, in *model.Integration) (*model.Integration, error) {
	out := *in
	if out.IntegrationID == "" {
		out.IntegrationID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = model.IntegrationPending
	}
	var created time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO integrations (integration_id, user_id, provider_kind, status, credential_ref)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING creation_time
    `, out.IntegrationID, out.UserID, out.ProviderKind, out.Status, out.CredentialRef)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out.CreationTime = created
	return &out, nil
}

func (r *integrations) Get(ctx context.Context, integrationID string) (*model.Integration, error) {
	var out model.Integration
	var last *time.Time
	row := r.db.QueryRowContext(ctx, `
        SELECT integration_id, user_id, provider_kind, status, credential_ref, last_sync_time, creation_time
        FROM integrations WHERE integration_id=$1
    `, integrationID)
	if err := row.Scan(&out.IntegrationID, &out.UserID, &out.ProviderKind, &out.Status, &out.CredentialRef, &last, &out.CreationTime); err != nil {
		return nil, mapNotFound(err)
	}
	out.LastSyncTime = last
	return &out, nil
}

func (r *integrations) ListActive(ctx context.Context) ([]*model.Integration, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT integration_id, user_id, provider_kind, status, credential_ref, last_sync_time, creation_time
        FROM integrations WHERE status=$1 ORDER BY creation_time
    `, model.IntegrationActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Integration
	for rows.Next() {
		var in model.Integration
		var last *time.Time
		if err := rows.Scan(&in.IntegrationID, &in.UserID, &in.ProviderKind, &in.Status, &in.CredentialRef, &last, &in.CreationTime); err != nil {
			return nil, err
		}
		in.LastSyncTime = last
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *integrations) SetStatus(ctx context.Context, integrationID, status string) error {
	return execOne(ctx, r.db, `UPDATE integrations SET status=$1 WHERE integration_id=$2`, status, integrationID)
}

func (r *integrations) TouchLastSync(ctx context.Context, integrationID string, at time.Time) error {
	return execOne(ctx, r.db, `UPDATE integrations SET last_sync_time=$1 WHERE integration_id=$2`, at, integrationID)
}

// --- Calendars ---

type calendars struct{ db *sql.DB }

func (r *calendars) Upsert(ctx context.Context, c *model.Calendar) (*model.Calendar, error) {
	out := *c
	if out.CalendarID == "" {
		out.CalendarID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO calendars (calendar_id, integration_id, provider_id, display_name, time_zone, is_primary, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (integration_id, provider_id) DO UPDATE SET
            display_name=EXCLUDED.display_name,
            time_zone=EXCLUDED.time_zone,
            is_primary=EXCLUDED.is_primary
        RETURNING calendar_id, is_active, creation_time
    `, out.CalendarID, out.IntegrationID, out.ProviderID, out.DisplayName, out.TimeZone, out.IsPrimary, out.IsActive)
	if err := row.Scan(&out.CalendarID, &out.IsActive, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *calendars) Get(ctx context.Context, calendarID string) (*model.Calendar, error) {
	var out model.Calendar
	row := r.db.QueryRowContext(ctx, `
        SELECT calendar_id, integration_id, provider_id, display_name, time_zone, is_primary, is_active, creation_time
        FROM calendars WHERE calendar_id=$1
    `, calendarID)
	if err := row.Scan(&out.CalendarID, &out.IntegrationID, &out.ProviderID, &out.DisplayName, &out.TimeZone, &out.IsPrimary, &out.IsActive, &out.CreationTime); err != nil {
		return nil, mapNotFound(err)
	}
	return &out, nil
}

func (r *calendars) ListActive(ctx context.Context, integrationID string) ([]*model.Calendar, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT calendar_id, integration_id, provider_id, display_name, time_zone, is_primary, is_active, creation_time
        FROM calendars WHERE integration_id=$1 AND is_active ORDER BY is_primary DESC, display_name
    `, integrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Calendar
	for rows.Next() {
		var c model.Calendar
		if err := rows.Scan(&c.CalendarID, &c.IntegrationID, &c.ProviderID, &c.DisplayName, &c.TimeZone, &c.IsPrimary, &c.IsActive, &c.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *calendars) SetActive(ctx context.Context, calendarID string, active bool) error {
	return execOne(ctx, r.db, `UPDATE calendars SET is_active=$1 WHERE calendar_id=$2`, active, calendarID)
}

// --- Events ---

type events struct{ db *sql.DB }

const eventColumns = `event_id, calendar_id, provider_event_id, title, description, start_time, end_time,
        is_all_day, location, meeting_link, attendee_count, status, fingerprint, creation_time, update_time`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var desc, loc, link *string
	err := scanner.Scan(&e.EventID, &e.CalendarID, &e.ProviderEventID, &e.Title, &desc, &e.StartTime, &e.EndTime,
		&e.IsAllDay, &loc, &link, &e.AttendeeCount, &e.Status, &e.Fingerprint, &e.CreationTime, &e.UpdateTime)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		e.Description = *desc
	}
	if loc != nil {
		e.Location = *loc
	}
	if link != nil {
		e.MeetingLink = *link
	}
	return &e, nil
}

func (r *events) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	out := *e
	if out.EventID == "" {
		out.EventID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = model.EventConfirmed
	}
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO events (event_id, calendar_id, provider_event_id, title, description, start_time, end_time,
            is_all_day, location, meeting_link, attendee_count, status, fingerprint)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING creation_time, update_time
    `, out.EventID, out.CalendarID, out.ProviderEventID, out.Title, out.Description, out.StartTime, out.EndTime,
		out.IsAllDay, out.Location, out.MeetingLink, out.AttendeeCount, out.Status, out.Fingerprint)
	if err := row.Scan(&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *events) Update(ctx context.Context, e *model.Event) (*model.Event, error) {
	out := *e
	row := r.db.QueryRowContext(ctx, `
        UPDATE events SET title=$1, description=$2, start_time=$3, end_time=$4, is_all_day=$5, location=$6,
            meeting_link=$7, attendee_count=$8, status=$9, fingerprint=$10, update_time=now()
        WHERE event_id=$11
        RETURNING update_time
    `, out.Title, out.Description, out.StartTime, out.EndTime, out.IsAllDay, out.Location,
		out.MeetingLink, out.AttendeeCount, out.Status, out.Fingerprint, out.EventID)
	if err := row.Scan(&out.UpdateTime); err != nil {
		return nil, mapNotFound(err)
	}
	return &out, nil
}

func (r *events) Get(ctx context.Context, eventID string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id=$1`, eventID)
	e, err := scanEvent(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return e, nil
}

func (r *events) GetByProviderID(ctx context.Context, calendarID, providerEventID string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+eventColumns+` FROM events WHERE calendar_id=$1 AND provider_event_id=$2
    `, calendarID, providerEventID)
	e, err := scanEvent(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return e, nil
}

func (r *events) ListWindow(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+eventColumns+` FROM events
        WHERE calendar_id=$1 AND status<>$2 AND start_time>=$3 AND start_time<$4
        ORDER BY start_time
    `, calendarID, model.EventCancelled, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *events) List(ctx context.Context, req model.ListEventsRequest) ([]*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if req.CalendarID != "" {
		q += ` AND calendar_id=` + arg(req.CalendarID)
	}
	if req.IntegrationID != "" {
		q += ` AND calendar_id IN (SELECT calendar_id FROM calendars WHERE integration_id=` + arg(req.IntegrationID) + `)`
	}
	if req.From != nil {
		q += ` AND start_time>=` + arg(*req.From)
	}
	if req.To != nil {
		q += ` AND start_time<` + arg(*req.To)
	}
	q += ` ORDER BY start_time`
	if req.Limit > 0 {
		q += ` LIMIT ` + arg(req.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *events) MarkCancelled(ctx context.Context, eventID string) error {
	return execOne(ctx, r.db, `
        UPDATE events SET status=$1, update_time=now() WHERE event_id=$2
    `, model.EventCancelled, eventID)
}

// --- Storylines ---

type storylines struct{ db *sql.DB }

const storylineColumns = `storyline_id, event_id, theme, story_text, plain_text, emoji, provider,
        tokens_used, fingerprint, creation_time, expiry_time, is_active`

func scanStoryline(scanner interface{ Scan(...any) error }) (*model.Storyline, error) {
	var s model.Storyline
	var emoji *string
	err := scanner.Scan(&s.StorylineID, &s.EventID, &s.Theme, &s.StoryText, &s.PlainText, &emoji, &s.Provider,
		&s.TokensUsed, &s.Fingerprint, &s.CreationTime, &s.ExpiryTime, &s.IsActive)
	if err != nil {
		return nil, err
	}
	if emoji != nil {
		s.Emoji = *emoji
	}
	return &s, nil
}

func (r *storylines) GetActive(ctx context.Context, eventID, theme string) (*model.Storyline, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+storylineColumns+` FROM storylines
        WHERE event_id=$1 AND theme=$2 AND is_active
    `, eventID, theme)
	s, err := scanStoryline(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return s, nil
}

func (r *storylines) Supersede(ctx context.Context, s *model.Storyline) (*model.Storyline, error) {
	out := *s
	if out.StorylineID == "" {
		out.StorylineID = uuid.NewString()
	}
	out.IsActive = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        UPDATE storylines SET is_active=false WHERE event_id=$1 AND theme=$2 AND is_active
    `, out.EventID, out.Theme); err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx, `
        INSERT INTO storylines (storyline_id, event_id, theme, story_text, plain_text, emoji, provider,
            tokens_used, fingerprint, expiry_time, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true)
        RETURNING creation_time
    `, out.StorylineID, out.EventID, out.Theme, out.StoryText, out.PlainText, out.Emoji, out.Provider,
		out.TokensUsed, out.Fingerprint, out.ExpiryTime)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *storylines) ListRecent(ctx context.Context, eventID, theme string, limit int) ([]*model.Storyline, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+storylineColumns+` FROM storylines
        WHERE event_id=$1 AND theme=$2 ORDER BY creation_time DESC LIMIT $3
    `, eventID, theme, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Storyline
	for rows.Next() {
		s, err := scanStoryline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *storylines) DeactivateByEvent(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE storylines SET is_active=false WHERE event_id=$1`, eventID)
	return err
}

// --- SyncStatuses ---

type syncStatuses struct{ db *sql.DB }

func (r *syncStatuses) Append(ctx context.Context, s *model.SyncStatus) (*model.SyncStatus, error) {
	out := *s
	if out.SyncStatusID == "" {
		out.SyncStatusID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO sync_statuses (sync_status_id, integration_id, outcome, events_processed, error_detail)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING timestamp
    `, out.SyncStatusID, out.IntegrationID, out.Outcome, out.EventsProcessed, out.ErrorDetail)
	if err := row.Scan(&out.Timestamp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *syncStatuses) Finish(ctx context.Context, syncStatusID, outcome string, eventsProcessed int, errorDetail string) error {
	return execOne(ctx, r.db, `
        UPDATE sync_statuses SET outcome=$1, events_processed=$2, error_detail=$3 WHERE sync_status_id=$4
    `, outcome, eventsProcessed, errorDetail, syncStatusID)
}

func (r *syncStatuses) Latest(ctx context.Context, integrationID string) (*model.SyncStatus, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT sync_status_id, integration_id, outcome, events_processed, error_detail, timestamp
        FROM sync_statuses WHERE integration_id=$1 ORDER BY timestamp DESC LIMIT 1
    `, integrationID)
	return scanSyncStatus(row)
}

func (r *syncStatuses) List(ctx context.Context, integrationID string, limit int) ([]*model.SyncStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT sync_status_id, integration_id, outcome, events_processed, error_detail, timestamp
        FROM sync_statuses WHERE integration_id=$1 ORDER BY timestamp DESC LIMIT $2
    `, integrationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SyncStatus
	for rows.Next() {
		s, err := scanSyncStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSyncStatus(scanner interface{ Scan(...any) error }) (*model.SyncStatus, error) {
	var s model.SyncStatus
	var detail *string
	if err := scanner.Scan(&s.SyncStatusID, &s.IntegrationID, &s.Outcome, &s.EventsProcessed, &detail, &s.Timestamp); err != nil {
		return nil, mapNotFound(err)
	}
	if detail != nil {
		s.ErrorDetail = *detail
	}
	return &s, nil
}

// --- NotificationLogs ---

type notificationLogs struct{ db *sql.DB }

func (r *notificationLogs) Upsert(ctx context.Context, n *model.NotificationLog) error {
	out := *n
	if out.Outcome == "" {
		out.Outcome = model.NotifyPending
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO notification_logs (event_id, scheduled_time, outcome, attempt_count, delivered_time, error_detail)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (event_id) DO UPDATE SET
            scheduled_time=EXCLUDED.scheduled_time,
            outcome=EXCLUDED.outcome,
            attempt_count=EXCLUDED.attempt_count,
            error_detail=EXCLUDED.error_detail
        WHERE notification_logs.outcome<>'delivered'
    `, out.EventID, out.ScheduledTime, out.Outcome, out.AttemptCount, out.DeliveredTime, out.ErrorDetail)
	return err
}

func (r *notificationLogs) Get(ctx context.Context, eventID string) (*model.NotificationLog, error) {
	var n model.NotificationLog
	var delivered *time.Time
	var detail *string
	row := r.db.QueryRowContext(ctx, `
        SELECT event_id, scheduled_time, outcome, attempt_count, delivered_time, error_detail
        FROM notification_logs WHERE event_id=$1
    `, eventID)
	if err := row.Scan(&n.EventID, &n.ScheduledTime, &n.Outcome, &n.AttemptCount, &delivered, &detail); err != nil {
		return nil, mapNotFound(err)
	}
	n.DeliveredTime = delivered
	if detail != nil {
		n.ErrorDetail = *detail
	}
	return &n, nil
}

func (r *notificationLogs) RecordAttempt(ctx context.Context, eventID, outcome, errorDetail string, at time.Time) error {
	var delivered *time.Time
	if outcome == model.NotifyDelivered {
		delivered = &at
	}
	return execOne(ctx, r.db, `
        UPDATE notification_logs
        SET attempt_count=attempt_count+1, outcome=$1, error_detail=$2, delivered_time=COALESCE($3, delivered_time)
        WHERE event_id=$4
    `, outcome, errorDetail, delivered, eventID)
}

func (r *notificationLogs) ListPending(ctx context.Context) ([]*model.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT event_id, scheduled_time, outcome, attempt_count, delivered_time, error_detail
        FROM notification_logs WHERE outcome=$1 ORDER BY scheduled_time
    `, model.NotifyPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.NotificationLog
	for rows.Next() {
		var n model.NotificationLog
		var delivered *time.Time
		var detail *string
		if err := rows.Scan(&n.EventID, &n.ScheduledTime, &n.Outcome, &n.AttemptCount, &delivered, &detail); err != nil {
			return nil, err
		}
		n.DeliveredTime = delivered
		if detail != nil {
			n.ErrorDetail = *detail
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *notificationLogs) Delete(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notification_logs WHERE event_id=$1`, eventID)
	return err
}

func execOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
