package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

// NewWithDB constructs a SQLite-backed store on an open database.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Integrations() store.Integrations         { return &integrations{db: s.db} }
func (s *sqliteStore) Calendars() store.Calendars               { return &calendars{db: s.db} }
func (s *sqliteStore) Events() store.Events                     { return &events{db: s.db} }
func (s *sqliteStore) Storylines() store.Storylines             { return &storylines{db: s.db} }
func (s *sqliteStore) SyncStatuses() store.SyncStatuses         { return &syncStatuses{db: s.db} }
func (s *sqliteStore) NotificationLogs() store.NotificationLogs { return &notificationLogs{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
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
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	if out.Status == "" {
		out.Status = model.IntegrationPending
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO Integrations (IntegrationId, UserId, ProviderKind, Status, CredentialRef, LastSyncTime, CreationTime)
        VALUES (?,?,?,?,?,?,?)
    `, out.IntegrationID, out.UserID, out.ProviderKind, out.Status, out.CredentialRef, out.LastSyncTime, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *integrations) Get(ctx context.Context, integrationID string) (*model.Integration, error) {
	var out model.Integration
	var last sql.NullTime
	row := r.db.QueryRowContext(ctx, `
        SELECT IntegrationId, UserId, ProviderKind, Status, CredentialRef, LastSyncTime, CreationTime
        FROM Integrations WHERE IntegrationId=?
    `, integrationID)
	if err := row.Scan(&out.IntegrationID, &out.UserID, &out.ProviderKind, &out.Status, &out.CredentialRef, &last, &out.CreationTime); err != nil {
		return nil, mapNotFound(err)
	}
	if last.Valid {
		t := last.Time
		out.LastSyncTime = &t
	}
	return &out, nil
}

func (r *integrations) ListActive(ctx context.Context) ([]*model.Integration, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT IntegrationId, UserId, ProviderKind, Status, CredentialRef, LastSyncTime, CreationTime
        FROM Integrations WHERE Status=? ORDER BY CreationTime
    `, model.IntegrationActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Integration
	for rows.Next() {
		var in model.Integration
		var last sql.NullTime
		if err := rows.Scan(&in.IntegrationID, &in.UserID, &in.ProviderKind, &in.Status, &in.CredentialRef, &last, &in.CreationTime); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			in.LastSyncTime = &t
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *integrations) SetStatus(ctx context.Context, integrationID, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE Integrations SET Status=? WHERE IntegrationId=?`, status, integrationID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *integrations) TouchLastSync(ctx context.Context, integrationID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE Integrations SET LastSyncTime=? WHERE IntegrationId=?`, at, integrationID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Calendars ---

type calendars struct{ db *sql.DB }

func (r *calendars) Upsert(ctx context.Context, c *model.Calendar) (*model.Calendar, error) {
	out := *c
	if out.CalendarID == "" {
		out.CalendarID = uuid.NewString()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO Calendars (CalendarId, IntegrationId, ProviderId, DisplayName, TimeZone, IsPrimary, IsActive, CreationTime)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(IntegrationId, ProviderId) DO UPDATE SET
            DisplayName=excluded.DisplayName,
            TimeZone=excluded.TimeZone,
            IsPrimary=excluded.IsPrimary
    `, out.CalendarID, out.IntegrationID, out.ProviderID, out.DisplayName, out.TimeZone, out.IsPrimary, out.IsActive, out.CreationTime)
	if err != nil {
		return nil, err
	}
	// Re-read so the caller sees the stored row (upsert may keep the
	// original CalendarId and IsActive flag).
	row := r.db.QueryRowContext(ctx, `
        SELECT CalendarId, IsActive, CreationTime FROM Calendars WHERE IntegrationId=? AND ProviderId=?
    `, out.IntegrationID, out.ProviderID)
	if err := row.Scan(&out.CalendarID, &out.IsActive, &out.CreationTime); err != nil {
		return nil, mapNotFound(err)
	}
	return &out, nil
}

func (r *calendars) Get(ctx context.Context, calendarID string) (*model.Calendar, error) {
	var out model.Calendar
	row := r.db.QueryRowContext(ctx, `
        SELECT CalendarId, IntegrationId, ProviderId, DisplayName, TimeZone, IsPrimary, IsActive, CreationTime
        FROM Calendars WHERE CalendarId=?
    `, calendarID)
	if err := row.Scan(&out.CalendarID, &out.IntegrationID, &out.ProviderID, &out.DisplayName, &out.TimeZone, &out.IsPrimary, &out.IsActive, &out.CreationTime); err != nil {
		return nil, mapNotFound(err)
	}
	return &out, nil
}

func (r *calendars) ListActive(ctx context.Context, integrationID string) ([]*model.Calendar, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT CalendarId, IntegrationId, ProviderId, DisplayName, TimeZone, IsPrimary, IsActive, CreationTime
        FROM Calendars WHERE IntegrationId=? AND IsActive=1 ORDER BY IsPrimary DESC, DisplayName
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
	res, err := r.db.ExecContext(ctx, `UPDATE Calendars SET IsActive=? WHERE CalendarId=?`, active, calendarID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Events ---

type events struct{ db *sql.DB }

const eventColumns = `EventId, CalendarId, ProviderEventId, Title, Description, StartTime, EndTime,
        IsAllDay, Location, MeetingLink, AttendeeCount, Status, Fingerprint, CreationTime, UpdateTime`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var desc, loc, link sql.NullString
	err := scanner.Scan(&e.EventID, &e.CalendarID, &e.ProviderEventID, &e.Title, &desc, &e.StartTime, &e.EndTime,
		&e.IsAllDay, &loc, &link, &e.AttendeeCount, &e.Status, &e.Fingerprint, &e.CreationTime, &e.UpdateTime)
	if err != nil {
		return nil, err
	}
	e.Description = desc.String
	e.Location = loc.String
	e.MeetingLink = link.String
	return &e, nil
}

func (r *events) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	out := *e
	if out.EventID == "" {
		out.EventID = uuid.NewString()
	}
	now := time.Now().UTC()
	if out.CreationTime.IsZero() {
		out.CreationTime = now
	}
	out.UpdateTime = now
	if out.Status == "" {
		out.Status = model.EventConfirmed
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO Events (`+eventColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
    `, out.EventID, out.CalendarID, out.ProviderEventID, out.Title, out.Description, out.StartTime, out.EndTime,
		out.IsAllDay, out.Location, out.MeetingLink, out.AttendeeCount, out.Status, out.Fingerprint, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *events) Update(ctx context.Context, e *model.Event) (*model.Event, error) {
	out := *e
	out.UpdateTime = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
        UPDATE Events SET Title=?, Description=?, StartTime=?, EndTime=?, IsAllDay=?, Location=?,
            MeetingLink=?, AttendeeCount=?, Status=?, Fingerprint=?, UpdateTime=?
        WHERE EventId=?
    `, out.Title, out.Description, out.StartTime, out.EndTime, out.IsAllDay, out.Location,
		out.MeetingLink, out.AttendeeCount, out.Status, out.Fingerprint, out.UpdateTime, out.EventID)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *events) Get(ctx context.Context, eventID string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM Events WHERE EventId=?`, eventID)
	e, err := scanEvent(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return e, nil
}

func (r *events) GetByProviderID(ctx context.Context, calendarID, providerEventID string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+eventColumns+` FROM Events WHERE CalendarId=? AND ProviderEventId=?
    `, calendarID, providerEventID)
	e, err := scanEvent(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return e, nil
}

func (r *events) ListWindow(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+eventColumns+` FROM Events
        WHERE CalendarId=? AND Status<>? AND StartTime>=? AND StartTime<?
        ORDER BY StartTime
    `, calendarID, model.EventCancelled, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *events) List(ctx context.Context, req model.ListEventsRequest) ([]*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM Events WHERE 1=1`
	var args []any
	if req.CalendarID != "" {
		q += ` AND CalendarId=?`
		args = append(args, req.CalendarID)
	}
	if req.IntegrationID != "" {
		q += ` AND CalendarId IN (SELECT CalendarId FROM Calendars WHERE IntegrationId=?)`
		args = append(args, req.IntegrationID)
	}
	if req.From != nil {
		q += ` AND StartTime>=?`
		args = append(args, *req.From)
	}
	if req.To != nil {
		q += ` AND StartTime<?`
		args = append(args, *req.To)
	}
	q += ` ORDER BY StartTime`
	if req.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, req.Limit)
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
	res, err := r.db.ExecContext(ctx, `
        UPDATE Events SET Status=?, UpdateTime=? WHERE EventId=?
    `, model.EventCancelled, time.Now().UTC(), eventID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Storylines ---

type storylines struct{ db *sql.DB }

const storylineColumns = `StorylineId, EventId, Theme, StoryText, PlainText, Emoji, Provider,
        TokensUsed, Fingerprint, CreationTime, ExpiryTime, IsActive`

func scanStoryline(scanner interface{ Scan(...any) error }) (*model.Storyline, error) {
	var s model.Storyline
	var emoji sql.NullString
	err := scanner.Scan(&s.StorylineID, &s.EventID, &s.Theme, &s.StoryText, &s.PlainText, &emoji, &s.Provider,
		&s.TokensUsed, &s.Fingerprint, &s.CreationTime, &s.ExpiryTime, &s.IsActive)
	if err != nil {
		return nil, err
	}
	s.Emoji = emoji.String
	return &s, nil
}

func (r *storylines) GetActive(ctx context.Context, eventID, theme string) (*model.Storyline, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+storylineColumns+` FROM Storylines
        WHERE EventId=? AND Theme=? AND IsActive=1
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
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	out.IsActive = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        UPDATE Storylines SET IsActive=0 WHERE EventId=? AND Theme=? AND IsActive=1
    `, out.EventID, out.Theme); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO Storylines (`+storylineColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
    `, out.StorylineID, out.EventID, out.Theme, out.StoryText, out.PlainText, out.Emoji, out.Provider,
		out.TokensUsed, out.Fingerprint, out.CreationTime, out.ExpiryTime, out.IsActive); err != nil {
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
        SELECT `+storylineColumns+` FROM Storylines
        WHERE EventId=? AND Theme=? ORDER BY CreationTime DESC LIMIT ?
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
	_, err := r.db.ExecContext(ctx, `UPDATE Storylines SET IsActive=0 WHERE EventId=?`, eventID)
	return err
}

// --- SyncStatuses ---

type syncStatuses struct{ db *sql.DB }

func (r *syncStatuses) Append(ctx context.Context, s *model.SyncStatus) (*model.SyncStatus, error) {
	out := *s
	if out.SyncStatusID == "" {
		out.SyncStatusID = uuid.NewString()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO SyncStatuses (SyncStatusId, IntegrationId, Outcome, EventsProcessed, ErrorDetail, Timestamp)
        VALUES (?,?,?,?,?,?)
    `, out.SyncStatusID, out.IntegrationID, out.Outcome, out.EventsProcessed, out.ErrorDetail, out.Timestamp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *syncStatuses) Finish(ctx context.Context, syncStatusID, outcome string, eventsProcessed int, errorDetail string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE SyncStatuses SET Outcome=?, EventsProcessed=?, ErrorDetail=? WHERE SyncStatusId=?
    `, outcome, eventsProcessed, errorDetail, syncStatusID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *syncStatuses) Latest(ctx context.Context, integrationID string) (*model.SyncStatus, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT SyncStatusId, IntegrationId, Outcome, EventsProcessed, ErrorDetail, Timestamp
        FROM SyncStatuses WHERE IntegrationId=? ORDER BY Timestamp DESC LIMIT 1
    `, integrationID)
	return scanSyncStatus(row)
}

func (r *syncStatuses) List(ctx context.Context, integrationID string, limit int) ([]*model.SyncStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT SyncStatusId, IntegrationId, Outcome, EventsProcessed, ErrorDetail, Timestamp
        FROM SyncStatuses WHERE IntegrationId=? ORDER BY Timestamp DESC LIMIT ?
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
	var detail sql.NullString
	if err := scanner.Scan(&s.SyncStatusID, &s.IntegrationID, &s.Outcome, &s.EventsProcessed, &detail, &s.Timestamp); err != nil {
		return nil, mapNotFound(err)
	}
	s.ErrorDetail = detail.String
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
        INSERT INTO NotificationLogs (EventId, ScheduledTime, Outcome, AttemptCount, DeliveredTime, ErrorDetail)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT(EventId) DO UPDATE SET
            ScheduledTime=excluded.ScheduledTime,
            Outcome=excluded.Outcome,
            AttemptCount=excluded.AttemptCount,
            ErrorDetail=excluded.ErrorDetail
        WHERE NotificationLogs.Outcome<>'delivered'
    `, out.EventID, out.ScheduledTime, out.Outcome, out.AttemptCount, out.DeliveredTime, out.ErrorDetail)
	return err
}

func (r *notificationLogs) Get(ctx context.Context, eventID string) (*model.NotificationLog, error) {
	var n model.NotificationLog
	var delivered sql.NullTime
	var detail sql.NullString
	row := r.db.QueryRowContext(ctx, `
        SELECT EventId, ScheduledTime, Outcome, AttemptCount, DeliveredTime, ErrorDetail
        FROM NotificationLogs WHERE EventId=?
    `, eventID)
	if err := row.Scan(&n.EventID, &n.ScheduledTime, &n.Outcome, &n.AttemptCount, &delivered, &detail); err != nil {
		return nil, mapNotFound(err)
	}
	if delivered.Valid {
		t := delivered.Time
		n.DeliveredTime = &t
	}
	n.ErrorDetail = detail.String
	return &n, nil
}

func (r *notificationLogs) RecordAttempt(ctx context.Context, eventID, outcome, errorDetail string, at time.Time) error {
	var delivered any
	if outcome == model.NotifyDelivered {
		delivered = at
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE NotificationLogs
        SET AttemptCount=AttemptCount+1, Outcome=?, ErrorDetail=?, DeliveredTime=COALESCE(?, DeliveredTime)
        WHERE EventId=?
    `, outcome, errorDetail, delivered, eventID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *notificationLogs) ListPending(ctx context.Context) ([]*model.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT EventId, ScheduledTime, Outcome, AttemptCount, DeliveredTime, ErrorDetail
        FROM NotificationLogs WHERE Outcome=? ORDER BY ScheduledTime
    `, model.NotifyPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.NotificationLog
	for rows.Next() {
		var n model.NotificationLog
		var delivered sql.NullTime
		var detail sql.NullString
		if err := rows.Scan(&n.EventID, &n.ScheduledTime, &n.Outcome, &n.AttemptCount, &delivered, &detail); err != nil {
			return nil, err
		}
		if delivered.Valid {
			t := delivered.Time
			n.DeliveredTime = &t
		}
		n.ErrorDetail = detail.String
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *notificationLogs) Delete(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM NotificationLogs WHERE EventId=?`, eventID)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
