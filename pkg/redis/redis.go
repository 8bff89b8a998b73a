package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity probe at construction time.
const pingTimeout = 5 * time.Second

// Config carries the Redis connection settings, populated from REDIS_*
// environment variables. Timeouts are in seconds.
type Config struct {
	URL          string `split_words:"true" required:"true"`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// New parses the URL, applies the configured timeouts and returns a client
// that has answered one PING, so a misconfigured address fails at startup
// instead of on the first turn.
func (c *Config) New() (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(c.DialTimeout) * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// MustNew is New for wiring paths where a missing Redis is unrecoverable.
func (c *Config) MustNew() *redis.Client {
	client, err := c.New()
	if err != nil {
		panic(err)
	}
	return client
}
