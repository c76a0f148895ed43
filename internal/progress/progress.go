// Package progress publishes run progress to Redis pub/sub so clients can
// follow a question while it is being answered.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// Event kinds.
const (
	KindMessage      = "message"
	KindTaskStarted  = "task_started"
	KindTaskFinished = "task_finished"
)

// Event is the JSON payload published for every progress update.
type Event struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message,omitempty"`
	TaskIndex int       `json:"task_index,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher implements compiler.Observer and compiler.Notifier.
type Publisher struct {
	client  publisher
	channel string
	now     func() time.Time
}

var (
	_ compiler.Observer = (*Publisher)(nil)
	_ compiler.Notifier = (*Publisher)(nil)
)

// NewPublisher publishes on channel through client.
func NewPublisher(client publisher, channel string) *Publisher {
	if channel == "" {
		channel = "askgraph:progress"
	}
	return &Publisher{client: client, channel: channel, now: time.Now}
}

// NewRedisClient connects to the configured Redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Channel returns the channel events for runID are published on.
func (p *Publisher) Channel(runID string) string {
	return p.channel + ":" + runID
}

func (p *Publisher) Notify(ctx context.Context, runID, message string) error {
	return p.publish(ctx, Event{RunID: runID, Kind: KindMessage, Message: message})
}

func (p *Publisher) TaskStarted(ctx context.Context, runID string, task compiler.Task) error {
	return p.publish(ctx, Event{
		RunID:     runID,
		Kind:      KindTaskStarted,
		Message:   fmt.Sprintf("Executing task %d: %s", task.Index, task.Action()),
		TaskIndex: task.Index,
		Tool:      task.Name,
		Status:    string(task.Status),
	})
}

func (p *Publisher) TaskFinished(ctx context.Context, runID string, task compiler.Task, err error) error {
	ev := Event{
		RunID:     runID,
		Kind:      KindTaskFinished,
		TaskIndex: task.Index,
		Tool:      task.Name,
		Status:    string(task.Status),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return p.publish(ctx, ev)
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	ev.Time = p.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.Channel(ev.RunID), data).Err(); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}
