package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per user and announces writes on a pub/sub
// channel so other daemons sharing the server can follow changes.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

type Option func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTimeout bounds every get and put.
func WithTimeout(d time.Duration) Option {
	return func(s *RedisStore) {
		s.timeout = d
	}
}

func NewRedisStore(address, password string, db int, opts ...Option) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

func NewRedisStoreFromClient(client *redis.Client, opts ...Option) *RedisStore {
	store := &RedisStore{
		client:  client,
		prefix:  "nightdisplay:settings:",
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(user int) string {
	return s.prefix + "user:" + strconv.Itoa(user)
}

func (s *RedisStore) channel(user int) string {
	return s.prefix + "changed:" + strconv.Itoa(user)
}

func (s *RedisStore) get(key string, user int) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.client.HGet(ctx, s.key(user), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s for user %d: %w", key, user, err)
	}
	return val, nil
}

func (s *RedisStore) put(key string, value any, user int) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(user), key, value)
	pipe.Publish(ctx, s.channel(user), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("settings: write %s for user %d: %w", key, user, err)
	}
	return nil
}

func (s *RedisStore) GetFloat(key string, def float64, user int) (float64, error) {
	raw, err := s.get(key, user)
	if err != nil {
		return def, err
	}
	v, err := toFloat(raw, def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (s *RedisStore) PutFloat(key string, value float64, user int) error {
	return s.put(key, strconv.FormatFloat(value, 'f', -1, 64), user)
}

func (s *RedisStore) GetInt(key string, def int, user int) (int, error) {
	raw, err := s.get(key, user)
	if err != nil {
		return def, err
	}
	v, err := toInt(raw, def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (s *RedisStore) PutInt(key string, value int, user int) error {
	return s.put(key, strconv.Itoa(value), user)
}

func (s *RedisStore) Watch(ctx context.Context, user int) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, s.channel(user))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("settings: subscribe: %w", err)
	}

	msgs := sub.Channel()
	out := make(chan string, 16)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
