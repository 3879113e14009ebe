package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// queueSize is the buffer size for the event queue
	queueSize = 1000

	// maxResponseBodySize limits how much of the response body we log (1KB)
	maxResponseBodySize = 1024

	DefaultMaxRetries = 3
	DefaultTimeout    = 10 * time.Second
)

// Dispatcher delivers events to every configured endpoint from a single
// background worker, retrying failed deliveries with exponential backoff.
type Dispatcher struct {
	endpoints []Endpoint
	client    *http.Client
	log       *zap.Logger
	queue     chan Event
	done      chan struct{}
	stop      chan struct{}

	// mu guards closed and the queue send against close(queue).
	mu     sync.RWMutex
	closed bool

	// backoff returns the wait before retry n (0-based).
	backoff func(attempt int) time.Duration
}

// NewEndpoints builds endpoints for urls sharing one signing secret.
func NewEndpoints(urls []string, secret string) []Endpoint {
	eps := make([]Endpoint, 0, len(urls))
	for _, u := range urls {
		eps = append(eps, Endpoint{URL: u, Secret: secret, MaxRetries: DefaultMaxRetries, Timeout: DefaultTimeout})
	}
	return eps
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(endpoints []Endpoint, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{},
		log:       log.Named("webhook"),
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

// Start begins processing events from the queue
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close gracefully shuts down the webhook dispatcher.
// Queued events are still delivered, but pending retry waits are cut short.
// Close is safe to call multiple times - subsequent calls are no-ops.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.stop)
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return nil
}

// Dispatch queues an event for webhook delivery
// This is non-blocking and will not slow down the caller.
// Events dispatched after Close are discarded.
func (d *Dispatcher) Dispatch(event Event) {
	if len(d.endpoints) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
		d.log.Debug("event queued",
			zap.String("event", event.Type),
			zap.String("resource", event.Resource.Type+"/"+event.Resource.ID),
			zap.Int("queue_size", len(d.queue)))
	default:
		d.log.Error("queue full, dropping event",
			zap.Int("capacity", queueSize),
			zap.String("event", event.Type),
			zap.String("resource", event.Resource.Type+"/"+event.Resource.ID))
		telemetry.WebhookDeliveries.WithLabelValues(event.Type, "dropped").Inc()
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, ep := range d.endpoints {
			d.deliverWithRetry(context.Background(), ep, event)
		}
	}
}

// deliverWithRetry attempts to deliver an event to an endpoint with retry logic
func (d *Dispatcher) deliverWithRetry(ctx context.Context, ep Endpoint, event Event) bool {
	payload, signature, err := Sign(event, ep.Secret)
	if err != nil {
		d.log.Error("failed to sign event payload", zap.String("event", event.Type), zap.Error(err))
		return false
	}

	deliveryID := uuid.New().String()
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	for attempt := 0; attempt <= ep.MaxRetries; attempt++ {
		status, body, err := d.send(ctx, ep.URL, timeout, payload, signature, event.Type, deliveryID)
		success := err == nil && status >= 200 && status < 300

		fields := []zap.Field{
			zap.String("delivery_id", deliveryID),
			zap.String("url", ep.URL),
			zap.String("event", event.Type),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", ep.MaxRetries+1),
		}
		if success {
			d.log.Info("delivery succeeded", fields...)
			telemetry.WebhookDeliveries.WithLabelValues(event.Type, "success").Inc()
			return true
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.String("response", body))
		}

		if attempt == ep.MaxRetries {
			d.log.Warn("delivery failed permanently", fields...)
			telemetry.WebhookDeliveries.WithLabelValues(event.Type, "failure").Inc()
			return false
		}

		wait := d.backoff(attempt)
		d.log.Info("delivery failed, retrying", append(fields, zap.Duration("retry_in", wait))...)
		select {
		case <-time.After(wait):
		case <-d.stop:
			d.log.Warn("dispatcher closing, abandoning retries", fields...)
			telemetry.WebhookDeliveries.WithLabelValues(event.Type, "failure").Inc()
			return false
		}
	}
	return false
}

func (d *Dispatcher) send(ctx context.Context, url string, timeout time.Duration, payload []byte, signature, eventType, deliveryID string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return resp.StatusCode, string(body), nil
}
