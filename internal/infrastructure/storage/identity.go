package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/jonboulle/clockwork"
)

// IdentityCache keeps the last submitted profile on disk so a quick restart
// can skip the profile form. Entries older than the TTL are ignored.
type IdentityCache struct {
	path  string
	ttl   time.Duration
	clock clockwork.Clock
}

type identityRecord struct {
	Identity domain.Identity `json:"identity"`
	SavedAt  time.Time       `json:"savedAt"`
}

func NewIdentityCache(path string, ttl time.Duration, clock clockwork.Clock) (*IdentityCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create identity cache directory: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IdentityCache{path: path, ttl: ttl, clock: clock}, nil
}

func (c *IdentityCache) Load() (domain.Identity, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("failed to read identity cache: %w", err)
	}

	var rec identityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Identity{}, false, fmt.Errorf("failed to decode identity cache: %w", err)
	}
	if c.ttl > 0 && c.clock.Since(rec.SavedAt) > c.ttl {
		return domain.Identity{}, false, nil
	}

	id, err := domain.NewIdentity(rec.Identity.Nickname, rec.Identity.Gender, rec.Identity.Age)
	if err != nil {
		return domain.Identity{}, false, nil
	}
	return id, true, nil
}

// Save writes through a temp file so a crash never leaves half a record.
func (c *IdentityCache) Save(id domain.Identity) error {
	id.SelfID = ""
	data, err := json.Marshal(identityRecord{Identity: id, SavedAt: c.clock.Now()})
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	return nil
}

func (c *IdentityCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear identity cache: %w", err)
	}
	return nil
}
