package notify

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/metrics"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// RealtimeSender pushes a message to a recipient's live connections
type RealtimeSender interface {
	Send(recipientID string, msg models.Message) int
}

// WebhookDeliverer posts one event to one registered endpoint
type WebhookDeliverer interface {
	Deliver(ctx context.Context, hook models.WebhookRegistration, event models.Event) error
}

// EventMirror republishes events to a message broker
type EventMirror interface {
	Publish(event models.Event) error
}

// OrganizationStore supplies webhook registrations
type OrganizationStore interface {
	FindOrganizationByID(context.Context, primitive.ObjectID) (*models.Organization, error)
}

// FanoutOptions sizes the worker pool
type FanoutOptions struct {
	Workers   int
	QueueSize int
	// DeliveryTimeout bounds the work done for a single notification
	DeliveryTimeout time.Duration
}

// Fanout delivers notifications on a pool of background workers. Publish never waits
// for delivery, and a failure toward one target never affects another.
type Fanout struct {
	realtime RealtimeSender
	webhooks WebhookDeliverer
	mirror   EventMirror
	orgs     OrganizationStore
	metrics  *metrics.Recorder
	opts     FanoutOptions

	mu      sync.RWMutex
	closed  bool
	started bool
	queue   chan models.Notification
	wg      sync.WaitGroup
}

// NewFanout builds a fan-out. mirror and rec may be nil.
func NewFanout(opts FanoutOptions, realtime RealtimeSender, webhooks WebhookDeliverer, mirror EventMirror, orgs OrganizationStore, rec *metrics.Recorder) *Fanout {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}
	return &Fanout{
		realtime: realtime,
		webhooks: webhooks,
		mirror:   mirror,
		orgs:     orgs,
		metrics:  rec,
		opts:     opts,
		queue:    make(chan models.Notification, opts.QueueSize),
	}
}

// Start launches the workers
func (f *Fanout) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.closed {
		return
	}
	f.started = true
	for i := 0; i < f.opts.Workers; i++ {
		f.wg.Add(1)
		go f.work()
	}
}

// Publish queues n for delivery. When the queue is full or the fan-out is closed the
// notification is dropped and counted.
func (f *Fanout) Publish(n models.Notification) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.metrics.RecordNotification("queue", metrics.ResultDropped)
		return
	}
	select {
	case f.queue <- n:
	default:
		f.metrics.RecordNotification("queue", metrics.ResultDropped)
		zap.S().Warnw("notification queue full, dropping notification", "messages", len(n.Messages), "hasEvent", n.Event != nil)
	}
}

// Close stops accepting notifications and waits for the queued ones to be delivered
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	started := f.started
	f.mu.Unlock()

	if !started {
		return
	}
	f.wg.Wait()
}

func (f *Fanout) work() {
	defer f.wg.Done()
	for n := range f.queue {
		f.deliver(n)
	}
}

func (f *Fanout) deliver(n models.Notification) {
	for _, m := range n.Messages {
		f.sendRealtime(m)
	}
	if n.Event == nil || n.OrganizationID == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.opts.DeliveryTimeout)
	defer cancel()

	if f.mirror != nil {
		f.mirrorEvent(*n.Event)
	}
	org, err := f.orgs.FindOrganizationByID(ctx, *n.OrganizationID)
	if err != nil {
		zap.S().Errorw("could not load webhooks",
			"organizationId", n.OrganizationID.Hex(),
			"eventType", n.Event.EventType,
			"error", err)
		return
	}
	for _, hook := range org.Webhooks {
		if hook.Subscribes(n.Event.EventType) {
			f.sendWebhook(ctx, hook, *n.Event)
		}
	}
}

func (f *Fanout) sendRealtime(m models.DirectMessage) {
	defer f.contain("websocket", m.RecipientID)
	if f.realtime.Send(m.RecipientID, m.Message) == 0 {
		zap.S().Debugw("recipient not connected", "recipientId", m.RecipientID, "type", m.Message.Type)
	}
}

func (f *Fanout) sendWebhook(ctx context.Context, hook models.WebhookRegistration, event models.Event) {
	defer f.contain("webhook", hook.URL)
	if err := f.webhooks.Deliver(ctx, hook, event); err != nil {
		f.metrics.RecordNotification("webhook", metrics.ResultFailed)
		zap.S().Errorw("webhook delivery failed",
			"url", hook.URL,
			"eventType", event.EventType,
			"organizationId", event.OrganizationID,
			"error", err)
		return
	}
	f.metrics.RecordNotification("webhook", metrics.ResultDelivered)
}

func (f *Fanout) mirrorEvent(event models.Event) {
	defer f.contain("mqtt", event.EventType)
	if err := f.mirror.Publish(event); err != nil {
		f.metrics.RecordNotification("mqtt", metrics.ResultFailed)
		zap.S().Errorw("mqtt mirror failed", "eventType", event.EventType, "error", err)
		return
	}
	f.metrics.RecordNotification("mqtt", metrics.ResultDelivered)
}

// contain keeps a panicking target from taking the worker down
func (f *Fanout) contain(target, recipient string) {
	if r := recover(); r != nil {
		f.metrics.RecordNotification(target, metrics.ResultFailed)
		zap.S().Errorw("notification target panicked", "target", target, "recipient", recipient, "panic", r)
	}
}
