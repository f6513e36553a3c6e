// Package store persists critique sessions. Each backend keeps at most one
// session per content id: a later save supersedes the earlier one.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

// Store is the session store contract the studio depends on.
type Store interface {
	// Save persists s atomically, replacing any session under s.ContentID.
	Save(ctx context.Context, s *critique.Session) error
	// Load returns the session for contentID or an error wrapping
	// critique.ErrNotFound.
	Load(ctx context.Context, contentID string) (*critique.Session, error)
	Delete(ctx context.Context, contentID string) error
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Summary describes a stored session without its audio payload.
type Summary struct {
	ID        string
	ContentID string
	CreatedAt time.Time
	Duration  time.Duration
	Strokes   int
	Actions   int
	Dual      bool
}

func summarize(s *critique.Session) Summary {
	return Summary{
		ID:        s.ID,
		ContentID: s.ContentID,
		CreatedAt: s.CreatedAt,
		Duration:  s.Duration(),
		Strokes:   len(s.Strokes),
		Actions:   len(s.TransportActions),
		Dual:      s.Audio.Dual(),
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // "sqlite", "redis" or "memory"
	Path        string // sqlite database file
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "sqlite":
		path := opts.Path
		if path == "" {
			path = DefaultDBPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		return OpenSQLite(ctx, path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", opts.RedisAddr, err)
		}
		var ropts []RedisOption
		if opts.RedisPrefix != "" {
			ropts = append(ropts, WithPrefix(opts.RedisPrefix))
		}
		ropts = append(ropts, WithTTL(opts.RedisTTL))
		return NewRedisStore(client, ropts...), nil
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "critvid", "critiques.sqlite")
}

func checkSession(s *critique.Session) error {
	if s == nil {
		return fmt.Errorf("save session: nil session")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func notFound(contentID string) error {
	return fmt.Errorf("content %q: %w", contentID, critique.ErrNotFound)
}
