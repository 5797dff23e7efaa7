package calendar

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// CredentialSource resolves an Integration's opaque credential
// reference into a usable bearer token. Token acquisition and refresh
// happen outside this service; a reference that cannot be resolved is
// treated the same as an expired credential.
type CredentialSource interface {
	Resolve(ctx context.Context, ref string) (Credential, error)
}

// StaticCredentialSource serves credentials from a fixed map, used in
// tests and single-tenant deployments.
type StaticCredentialSource map[string]Credential

func (s StaticCredentialSource) Resolve(_ context.Context, ref string) (Credential, error) {
	c, ok := s[ref]
	if !ok {
		return Credential{}, errors.Wrapf(model.ErrAuthExpired, "unknown credential reference %q", ref)
	}
	return c, nil
}

// FileCredentialSource reads credentials from a JSON file mapping
// reference to {"accessToken": ..., "expiry": RFC3339}. The file is
// re-read when its mtime changes so an external refresher can rotate
// tokens without a restart.
type FileCredentialSource struct {
	path string

	mu      sync.Mutex
	loaded  StaticCredentialSource
	modTime time.Time
}

func NewFileCredentialSource(path string) *FileCredentialSource {
	return &FileCredentialSource{path: path}
}

func (f *FileCredentialSource) Resolve(ctx context.Context, ref string) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.refreshLocked(); err != nil {
		return Credential{}, err
	}
	return f.loaded.Resolve(ctx, ref)
}

func (f *FileCredentialSource) refreshLocked() error {
	info, err := os.Stat(f.path)
	if err != nil {
		return errors.Wrap(err, "stat credentials file")
	}
	if f.loaded != nil && info.ModTime().Equal(f.modTime) {
		return nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrap(err, "read credentials file")
	}
	var entries map[string]struct {
		AccessToken string    `json:"accessToken"`
		Expiry      time.Time `json:"expiry"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errors.Wrap(err, "parse credentials file")
	}

	out := make(StaticCredentialSource, len(entries))
	for ref, e := range entries {
		out[ref] = Credential{AccessToken: e.AccessToken, Expiry: e.Expiry}
	}
	f.loaded = out
	f.modTime = info.ModTime()
	return nil
}
