// Package redis stores user documents in Redis. Each document is a hash;
// favorites live in a companion hash keyed by job ID plus a sorted set that
// records insertion order, scored by a per-document counter.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/msomdec/internsync/internal/domain"
)

const (
	fieldEmail       = "email"
	fieldDisplayName = "displayName"
	fieldCreatedAt   = "createdAt"
	fieldIsLocalUser = "isLocalUser"
)

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// DocumentStore implements domain.DocumentStore on Redis.
type DocumentStore struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a store whose keys all start with prefix.
func NewDocumentStore(rdb goredis.UniversalClient, prefix string) *DocumentStore {
	if prefix == "" {
		prefix = "internsync"
	}
	return &DocumentStore{rdb: rdb, prefix: prefix}
}

func (s *DocumentStore) docKey(uid string) string      { return s.prefix + ":users:" + uid }
func (s *DocumentStore) favKey(uid string) string      { return s.docKey(uid) + ":favorites" }
func (s *DocumentStore) favOrderKey(uid string) string { return s.docKey(uid) + ":favorites:order" }
func (s *DocumentStore) favSeqKey(uid string) string   { return s.docKey(uid) + ":favorites:seq" }

func (s *DocumentStore) Get(ctx context.Context, uid string) (*domain.UserDocument, error) {
	fields, err := s.rdb.HGetAll(ctx, s.docKey(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("get user document: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	doc := &domain.UserDocument{
		UID:         uid,
		Email:       fields[fieldEmail],
		DisplayName: fields[fieldDisplayName],
		IsLocalUser: fields[fieldIsLocalUser] == "1",
	}
	if v := fields[fieldCreatedAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.CreatedAt = ts
		}
	}

	favorites, err := s.listFavorites(ctx, uid)
	if err != nil {
		return nil, err
	}
	doc.Favorites = favorites
	return doc, nil
}

func (s *DocumentStore) listFavorites(ctx context.Context, uid string) ([]domain.FavoriteJobRef, error) {
	ids, err := s.rdb.ZRange(ctx, s.favOrderKey(uid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list favorite order: %w", err)
	}
	favorites := []domain.FavoriteJobRef{}
	if len(ids) == 0 {
		return favorites, nil
	}

	values, err := s.rdb.HMGet(ctx, s.favKey(uid), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Order entry without data; a concurrent remove won the race.
			continue
		}
		var ref domain.FavoriteJobRef
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			return nil, fmt.Errorf("decode favorite %s: %w", ids[i], err)
		}
		favorites = append(favorites, ref)
	}
	return favorites, nil
}

func (s *DocumentStore) Merge(ctx context.Context, uid string, patch domain.DocumentPatch) error {
	values := map[string]any{}
	if patch.Email != nil {
		values[fieldEmail] = *patch.Email
	}
	if patch.DisplayName != nil {
		values[fieldDisplayName] = *patch.DisplayName
	}
	if patch.CreatedAt != nil {
		values[fieldCreatedAt] = patch.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if patch.IsLocalUser != nil {
		values[fieldIsLocalUser] = boolField(*patch.IsLocalUser)
	}

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		// Materialize the document even for an empty patch.
		p.HSetNX(ctx, s.docKey(uid), fieldIsLocalUser, boolField(false))
		if len(values) > 0 {
			p.HSet(ctx, s.docKey(uid), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge user document: %w", err)
	}
	return nil
}

func (s *DocumentStore) PutFavorite(ctx context.Context, uid string, ref domain.FavoriteJobRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode favorite: %w", err)
	}

	seq, err := s.rdb.Incr(ctx, s.favSeqKey(uid)).Result()
	if err != nil {
		return fmt.Errorf("next favorite position: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSetNX(ctx, s.docKey(uid), fieldIsLocalUser, boolField(false))
		p.HSet(ctx, s.favKey(uid), string(ref.ID), data)
		// NX keeps the original position when the favorite already exists.
		p.ZAddNX(ctx, s.favOrderKey(uid), goredis.Z{
			Score:  float64(seq),
			Member: string(ref.ID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put document favorite: %w", err)
	}
	return nil
}

func (s *DocumentStore) RemoveFavorite(ctx context.Context, uid string, jobID domain.JobID) error {
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HDel(ctx, s.favKey(uid), string(jobID))
		p.ZRem(ctx, s.favOrderKey(uid), string(jobID))
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("remove document favorite: %w", err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
