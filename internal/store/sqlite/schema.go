package sqlite

import (
	"database/sql"
)

// EnsureSchema creates the pipeline tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Integrations (
            IntegrationId TEXT PRIMARY KEY,
            UserId TEXT NOT NULL,
            ProviderKind TEXT NOT NULL,
            Status TEXT NOT NULL,
            CredentialRef TEXT NOT NULL,
            LastSyncTime TIMESTAMP,
            CreationTime TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS Calendars (
            CalendarId TEXT PRIMARY KEY,
            IntegrationId TEXT NOT NULL REFERENCES Integrations(IntegrationId),
            ProviderId TEXT NOT NULL,
            DisplayName TEXT NOT NULL,
            TimeZone TEXT NOT NULL,
            IsPrimary BOOLEAN NOT NULL DEFAULT 0,
            IsActive BOOLEAN NOT NULL DEFAULT 1,
            CreationTime TIMESTAMP NOT NULL,
            UNIQUE(IntegrationId, ProviderId)
        );`,
		`CREATE TABLE IF NOT EXISTS Events (
            EventId TEXT PRIMARY KEY,
            CalendarId TEXT NOT NULL REFERENCES Calendars(CalendarId),
            ProviderEventId TEXT NOT NULL,
            Title TEXT NOT NULL,
            Description TEXT,
            StartTime TIMESTAMP NOT NULL,
            EndTime TIMESTAMP NOT NULL,
            IsAllDay BOOLEAN NOT NULL DEFAULT 0,
            Location TEXT,
            MeetingLink TEXT,
            AttendeeCount INTEGER NOT NULL DEFAULT 0,
            Status TEXT NOT NULL,
            Fingerprint TEXT NOT NULL,
            CreationTime TIMESTAMP NOT NULL,
            UpdateTime TIMESTAMP NOT NULL,
            UNIQUE(CalendarId, ProviderEventId)
        );`,
		`CREATE TABLE IF NOT EXISTS Storylines (
            StorylineId TEXT PRIMARY KEY,
            EventId TEXT NOT NULL REFERENCES Events(EventId),
            Theme TEXT NOT NULL,
            StoryText TEXT NOT NULL,
            PlainText TEXT NOT NULL,
            Emoji TEXT,
            Provider TEXT NOT NULL,
            TokensUsed INTEGER NOT NULL DEFAULT 0,
            Fingerprint TEXT NOT NULL,
            CreationTime TIMESTAMP NOT NULL,
            ExpiryTime TIMESTAMP NOT NULL,
            IsActive BOOLEAN NOT NULL DEFAULT 1
        );`,
		`CREATE INDEX IF NOT EXISTS idx_storylines_event_theme
            ON Storylines(EventId, Theme, IsActive);`,
		`CREATE TABLE IF NOT EXISTS SyncStatuses (
            SyncStatusId TEXT PRIMARY KEY,
            IntegrationId TEXT NOT NULL REFERENCES Integrations(IntegrationId),
            Outcome TEXT NOT NULL,
            EventsProcessed INTEGER NOT NULL DEFAULT 0,
            ErrorDetail TEXT,
            Timestamp TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_syncstatuses_integration
            ON SyncStatuses(IntegrationId, Timestamp);`,
		`CREATE TABLE IF NOT EXISTS NotificationLogs (
            EventId TEXT PRIMARY KEY REFERENCES Events(EventId),
            ScheduledTime TIMESTAMP NOT NULL,
            Outcome TEXT NOT NULL,
            AttemptCount INTEGER NOT NULL DEFAULT 0,
            DeliveredTime TIMESTAMP,
            ErrorDetail TEXT
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
