package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// telemetryBuffer bounds queued telemetry; overflow is dropped.
const telemetryBuffer = 100

// RedisBridge connects the relay to Redis pub/sub.
// Frames published on the frame channel are ingested like HTTP uploads, and
// every broadcast is reported on the telemetry channel.
type RedisBridge struct {
	rdb              *redis.Client
	ingest           *IngestEndpoint
	frameChannel     string
	telemetryChannel string

	// telemetry delivers broadcast outcomes to publishTelemetry.
	telemetry chan telemetryMessage
}

// newRedisClient creates a Redis client from the configuration.
func newRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "",
		DB:       cfg.RedisDB,
		Protocol: 2,
	})
}

func NewRedisBridge(rdb *redis.Client, ingest *IngestEndpoint, frameChannel, telemetryChannel string) *RedisBridge {
	return &RedisBridge{
		rdb:              rdb,
		ingest:           ingest,
		frameChannel:     frameChannel,
		telemetryChannel: telemetryChannel,
		telemetry:        make(chan telemetryMessage, telemetryBuffer),
	}
}

// Observe queues telemetry for frame without blocking the ingest path.
// It is registered with IngestEndpoint.AddObserver.
func (b *RedisBridge) Observe(frame *Frame, result BroadcastResult) {
	msg := telemetryMessage{
		Seq:        frame.Seq,
		Bytes:      len(frame.Bytes),
		Attempted:  result.Attempted,
		Delivered:  result.Delivered,
		Skipped:    result.Skipped,
		Dropped:    result.Dropped,
		ReceivedAt: frame.ReceivedAt.UnixMilli(),
	}
	select {
	case b.telemetry <- msg:
	default:
		debugLog("Telemetry queue full, dropping seq=%d", frame.Seq)
	}
}

// Run subscribes to the frame channel and publishes telemetry until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	go b.publishTelemetry(ctx)
	return b.subscribeFrames(ctx)
}

// subscribeFrames ingests every payload published on the frame channel.
func (b *RedisBridge) subscribeFrames(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.frameChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.frameChannel, err)
	}
	ch := pubsub.Channel()

	infoLog("Subscribed to %s", b.frameChannel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			data := []byte(msg.Payload)
			if _, err := b.ingest.Ingest(data, int64(len(data))); err != nil {
				if errors.Is(err, ErrInvalidFrame) {
					debugLog("Ignoring empty frame from %s", msg.Channel)
					continue
				}
				errorLog("Error ingesting frame from Redis: %v", err)
			}
		}
	}
}

// publishTelemetry drains the telemetry queue to Redis.
func (b *RedisBridge) publishTelemetry(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.telemetry:
			payload, err := json.Marshal(msg)
			if err != nil {
				errorLog("Error encoding telemetry: %v", err)
				continue
			}
			if err := b.rdb.Publish(ctx, b.telemetryChannel, payload).Err(); err != nil {
				debugLog("Error publishing telemetry: %v", err)
			}
		}
	}
}
