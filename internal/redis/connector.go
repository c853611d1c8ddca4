package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/utils"
)

// ConnectOptions defines the Redis client and how hard New tries to reach it.
type ConnectOptions struct {
	Addr         string
	User         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // total budget for connection attempts
	RetryInterval  time.Duration // first wait between attempts, doubled each time
	MaxWait        time.Duration // cap on the wait between attempts
	PingTimeout    time.Duration
	WarnThreshold  int // attempts logged at warn before switching to error
}

func (o ConnectOptions) validate() error {
	switch {
	case o.Addr == "":
		return fmt.Errorf("redis address is required")
	case o.ConnectTimeout <= 0:
		return fmt.Errorf("ConnectTimeout must be > 0, got %v", o.ConnectTimeout)
	case o.RetryInterval <= 0:
		return fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval)
	case o.MaxWait <= 0:
		return fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait)
	case o.PingTimeout <= 0:
		return fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout)
	case o.WarnThreshold < 0:
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold)
	}
	return nil
}

// backoff yields capped exponential waits.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) wait() time.Duration {
	w := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return w
}

// New creates a Redis client and blocks until it answers a PING or the
// connect budget is spent. Routing state lives only in Redis, so callers
// treat an error here as fatal.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		log.Error("invalid redis connect options", logger.Error(err))
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := connect(ctx, client, opts, log.With(logger.String("addr", opts.Addr))); err != nil {
		utils.Close(client)
		return nil, err
	}
	return client, nil
}

func connect(ctx context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))
	started := time.Now()
	b := &backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(started)))
			} else {
				log.Info("connected to redis")
			}
			return nil
		}

		wait := b.wait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable, giving up",
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}
	}
}
