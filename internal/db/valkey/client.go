// Package valkey implements db.Store with rueidis against Valkey and its search
// module. Redis Stack accepts the same FT.* commands.
package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/pairfecto/backend/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
}

// Store is safe for concurrent use.
type Store struct {
	client rueidis.Client
}

// NewStore dials lazily; use WaitForReady to block until the server answers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("valkey: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		ClientName:   "pairfecto",
		DisableCache: true,
		// FT.SEARCH replies are walked as flat RESP2 arrays.
		AlwaysRESP2: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey: create client: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases every connection.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with doubling backoff (50ms up to 1s) until the server
// answers or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := 50 * time.Millisecond
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("valkey not ready after %s: %w", timeout, err)
		case <-time.After(wait):
		}
		wait = min(2*wait, time.Second)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// ft builds an FT.* command; rueidis has no typed builders for the search module.
func (s *Store) ft(command string, args ...string) rueidis.Completed {
	return s.b().Arbitrary(command).Args(args...).Build()
}

// serverErrContains reports whether err is a server reply whose message contains substr.
func serverErrContains(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), substr)
}

func isUnknownIndex(err error) bool {
	return serverErrContains(err, "unknown index name") || serverErrContains(err, "not found")
}
