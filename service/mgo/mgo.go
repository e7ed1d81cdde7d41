package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "TaskFlow/data/database/mgo/mongoutil"
	"TaskFlow/logger"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoManager keeps one live client for the process, reconnecting
// with backoff when the server drops. First readiness is signalled
// once through readyCh.
type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{}
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = MongoManager{readyCh: make(chan struct{})}

// StartAsync runs until ctx is cancelled: connect with exponential
// backoff, then health-check; on repeated failures reconnect.
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := mgo.NewMongoDB(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.client = cli
					globalMgr.mu.Unlock()
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					logger.Infof("[mongo] connected %s/%s", cfg.URI, cfg.Database)
					break
				}

				globalMgr.lastErr.Store(err)
				logger.Warnf("[mongo] connect attempt=%d err=%v", attempt, err)

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// health loop
			fails := 0
			ticker := time.NewTicker(healthEvery)
		health:
			for {
				select {
				case <-ctx.Done():
					ticker.Stop()
					return
				case <-ticker.C:
					globalMgr.mu.RLock()
					cli := globalMgr.client
					globalMgr.mu.RUnlock()
					if cli == nil {
						ticker.Stop()
						break health
					}
					pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
					err := cli.Ping(pingCtx)
					cancel()
					if err != nil {
						fails++
						logger.Warnf("[mongo] health fail %d/%d err=%v", fails, failThresh, err)
						if fails >= failThresh {
							_ = cli.Disconnect(context.Background())
							globalMgr.mu.Lock()
							globalMgr.client = nil
							globalMgr.mu.Unlock()
							ticker.Stop()
							break health
						}
					} else {
						fails = 0
					}
				}
			}
		}
	}()
}

// WaitReady blocks until the first successful connect or ctx expiry.
func WaitReady(ctx context.Context) error {
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		if err, ok := globalMgr.lastErr.Load().(error); ok {
			return errors.Wrap(err, "mongo not ready")
		}
		return errors.Wrap(ctx.Err(), "mongo not ready")
	}
}

// GetDB returns the live database handle, or nil while disconnected.
func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil
	}
	return globalMgr.client.DB()
}
