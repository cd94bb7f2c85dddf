package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ticketing/internal/logger"
)

// ScanLock holds a short-lived exclusive lock per QR value so duplicate
// scans from two gates collapse into one database transaction. The lock
// expires on its own; a crashed scanner never wedges a QR code.
type ScanLock struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewScanLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *ScanLock {
	return &ScanLock{Client: client, TTL: ttl, Logger: log}
}

func (l *ScanLock) key(qrCode string) string {
	return "scan_lock:" + qrCode
}

// Acquire returns false when another scan of the same QR is in flight.
func (l *ScanLock) Acquire(ctx context.Context, qrCode string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, l.key(qrCode), "1", l.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *ScanLock) Release(ctx context.Context, qrCode string) error {
	return l.Client.Del(ctx, l.key(qrCode)).Err()
}
