package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

const defaultRedisPrefix = "critvid"

// RedisStore keeps each session as one JSON document keyed by content id,
// a small summary hash beside it, and a set indexing every stored content id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires stored sessions after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "critvid".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the document, its summary and the index entry in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, sess *critique.Session) error {
	if err := checkSession(sess); err != nil {
		return err
	}
	data, err := critique.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ContentID), data, s.ttl)
		pipe.Del(ctx, s.summaryKey(sess.ContentID))
		pipe.HSet(ctx, s.summaryKey(sess.ContentID), summaryFields(summarize(sess)))
		if s.ttl > 0 {
			pipe.Expire(ctx, s.summaryKey(sess.ContentID), s.ttl)
		}
		pipe.SAdd(ctx, s.indexKey(), sess.ContentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, contentID string) (*critique.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(contentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(contentID)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return critique.Unmarshal(data)
}

func (s *RedisStore) Delete(ctx context.Context, contentID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.sessionKey(contentID))
		pipe.Del(ctx, s.summaryKey(contentID))
		pipe.SRem(ctx, s.indexKey(), contentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if del.Val() == 0 {
		return notFound(contentID)
	}
	return nil
}

// List reads the summary hash of every indexed session in one pipeline. A
// document saved without a summary is loaded instead. Index entries whose
// document expired are pruned as they are found.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.summaryKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis read summaries: %w", err)
	}
	out := make([]Summary, 0, len(ids))
	var stale []any
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) > 0 {
			sum, err := parseSummary(fields)
			if err != nil {
				return nil, fmt.Errorf("redis summary %s: %w", id, err)
			}
			out = append(out, sum)
			continue
		}
		sess, err := s.Load(ctx, id)
		if errors.Is(err, critique.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(sess))
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis prune index: %w", err)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) sessionKey(contentID string) string {
	return fmt.Sprintf("%s:critique:%s", s.prefix, contentID)
}

func (s *RedisStore) summaryKey(contentID string) string {
	return fmt.Sprintf("%s:summary:%s", s.prefix, contentID)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":critiques"
}

func summaryFields(sum Summary) map[string]any {
	return map[string]any{
		"id":        sum.ID,
		"contentId": sum.ContentID,
		"createdAt": sum.CreatedAt.UnixNano(),
		"duration":  int64(sum.Duration),
		"strokes":   sum.Strokes,
		"actions":   sum.Actions,
		"dual":      strconv.FormatBool(sum.Dual),
	}
}

func parseSummary(fields map[string]string) (Summary, error) {
	sum := Summary{ID: fields["id"], ContentID: fields["contentId"]}
	var ints [4]int64
	for i, name := range []string{"createdAt", "duration", "strokes", "actions"} {
		n, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return Summary{}, fmt.Errorf("field %s: %w", name, err)
		}
		ints[i] = n
	}
	dual, err := strconv.ParseBool(fields["dual"])
	if err != nil {
		return Summary{}, fmt.Errorf("field dual: %w", err)
	}
	sum.CreatedAt = timeFromUnixNano(ints[0])
	sum.Duration = time.Duration(ints[1])
	sum.Strokes = int(ints[2])
	sum.Actions = int(ints[3])
	sum.Dual = dual
	return sum, nil
}
