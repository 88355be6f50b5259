// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
	"github.com/tomtom215/dosehub/internal/websocket"
)

// ErrQueueFull is the final error of a notification evicted from a full backlog.
var ErrQueueFull = errors.New("notification queue full")

const breakerName = "notification-delivery"

// Deliverer hands a notification to connected clients and reports how many
// received it.
type Deliverer interface {
	DeliverNotification(notification any) (int, error)
}

// FailureObserver is called once for every notification that will never be
// delivered, either because its attempts ran out or because it was evicted.
type FailureObserver func(n *Notification, err error)

// Stats summarizes the queue and the delivery log.
type Stats struct {
	TotalSent             int     `json:"totalSent"`
	TotalFailed           int     `json:"totalFailed"`
	Queued                int     `json:"queued"`
	PendingRetries        int     `json:"pendingRetries"`
	Processing            bool    `json:"processing"`
	DeliveryRate          float64 `json:"deliveryRate"`
	AverageDeliveryTimeMs float64 `json:"averageDeliveryTimeMs"`
	BreakerState          string  `json:"breakerState,omitempty"`
}

// Layer turns escalated events into notifications and delivers them one at a
// time with bounded retries. It implements events.Escalator.
//
// Delivery flow:
//  1. Escalate* builds a notification and appends it to the ready queue
//  2. the worker pops the head, increments its attempt count and delivers it
//  3. on failure with attempts left it is scheduled for base×2^(attempts-1)
//  4. due retries re-enter the ready queue ahead of new notifications
type Layer struct {
	cfg       config.NotificationsConfig
	deliverer Deliverer
	breaker   *gobreaker.CircuitBreaker[int]
	log       *DeliveryLog
	now       func() time.Time
	wake      chan struct{}

	mu         sync.Mutex
	ready      []*Notification
	retries    *retrySchedule
	processing bool
	observer   FailureObserver
}

// NewLayer creates a layer delivering through deliverer. The circuit breaker
// is disabled when cfg.BreakerFailures is zero.
func NewLayer(cfg config.NotificationsConfig, deliverer Deliverer) *Layer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	l := &Layer{
		cfg:       cfg,
		deliverer: deliverer,
		log:       NewDeliveryLog(cfg.LogRetention),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		retries:   newRetrySchedule(),
	}
	if cfg.BreakerFailures > 0 {
		l.breaker = newBreaker(cfg)
	}
	return l
}

func newBreaker(cfg config.NotificationsConfig) *gobreaker.CircuitBreaker[int] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Nobody listening is not a transport fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, websocket.ErrNoRecipients)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// OnFailure registers the observer for undeliverable notifications.
func (l *Layer) OnFailure(fn FailureObserver) {
	l.mu.Lock()
	l.observer = fn
	l.mu.Unlock()
}

// Log returns the delivery log.
func (l *Layer) Log() *DeliveryLog {
	return l.log
}

// EscalateAlert queues a notification for a new CRITICAL or HIGH alert.
func (l *Layer) EscalateAlert(alert events.Record) {
	l.escalate(AlertNotification(alert, l.now(), l.cfg.MaxAttempts))
}

// EscalateReading queues a notification for a high dose reading.
func (l *Layer) EscalateReading(reading events.Record) {
	l.escalate(ReadingNotification(reading, l.now(), l.cfg.MaxAttempts))
}

// EscalatePersonnel queues a notification for a personnel change.
func (l *Layer) EscalatePersonnel(personnel events.Record, action string) {
	l.escalate(PersonnelNotification(personnel, action, l.now(), l.cfg.MaxAttempts))
}

// EscalateDevice queues a notification for a device status change.
func (l *Layer) EscalateDevice(device events.Record, status events.DeviceStatus) {
	l.escalate(DeviceNotification(device, status, l.now(), l.cfg.MaxAttempts))
}

func (l *Layer) escalate(n *Notification, err error) {
	if err != nil {
		logging.Warn().Err(err).Msg("Event not escalated")
		return
	}
	l.Enqueue(n)
}

// Enqueue appends n to the ready queue and returns its id. When the backlog
// is full the oldest pending notification is evicted first.
func (l *Layer) Enqueue(n *Notification) string {
	l.log.Queued(n)

	l.mu.Lock()
	var evicted *Notification
	if l.cfg.QueueSize > 0 && l.pendingLocked() >= l.cfg.QueueSize {
		evicted = l.evictOldestLocked()
	}
	l.ready = append(l.ready, n)
	depth := l.pendingLocked()
	l.mu.Unlock()

	metrics.NotificationQueueDepth.Set(float64(depth))
	if evicted != nil {
		l.finish(evicted, StatusEvicted, ErrQueueFull)
	}
	logging.Debug().
		Str("notification_id", n.ID).
		Str("type", string(n.Type)).
		Int("depth", depth).
		Msg("Notification queued")

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return n.ID
}

func (l *Layer) pendingLocked() int {
	return len(l.ready) + l.retries.Len()
}

// evictOldestLocked removes the pending notification with the earliest
// creation time from either the ready queue or the retry schedule.
func (l *Layer) evictOldestLocked() *Notification {
	var oldest *Notification
	readyIdx := -1
	for i, n := range l.ready {
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			oldest, readyIdx = n, i
		}
	}
	for _, n := range l.retries.All() {
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			oldest, readyIdx = n, -1
		}
	}
	if oldest == nil {
		return nil
	}
	if readyIdx >= 0 {
		l.ready = append(l.ready[:readyIdx], l.ready[readyIdx+1:]...)
	} else {
		l.retries.Remove(oldest.ID)
	}
	return oldest
}

// Serve drains the queue until ctx is canceled. It implements suture.Service.
func (l *Layer) Serve(ctx context.Context) error {
	logging.Info().Msg("Notification worker started")
	for {
		if err := ctx.Err(); err != nil {
			l.setProcessing(false)
			return err
		}

		n, wait := l.next(l.now())
		if n != nil {
			l.deliver(n)
			if l.cfg.Pacing > 0 {
				if !sleep(ctx, l.cfg.Pacing) {
					l.setProcessing(false)
					return ctx.Err()
				}
			}
			continue
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}
		select {
		case <-ctx.Done():
		case <-l.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (l *Layer) String() string {
	return "notification-worker"
}

// next pops the head of the ready queue after promoting due retries. With
// nothing ready it returns how long until the earliest retry, or -1 when
// there is none.
func (l *Layer) next(now time.Time) (*Notification, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if due := l.retries.PopDue(now); len(due) > 0 {
		l.ready = append(due, l.ready...)
	}
	if len(l.ready) > 0 {
		n := l.ready[0]
		l.ready[0] = nil
		l.ready = l.ready[1:]
		l.processing = true
		return n, 0
	}

	l.processing = false
	if e := l.retries.Peek(); e != nil {
		wait := e.due.Sub(now)
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		return nil, wait
	}
	return nil, -1
}

// deliver makes one attempt for n and either marks it delivered, schedules a
// retry, or fails it permanently.
func (l *Layer) deliver(n *Notification) {
	now := l.now()
	n.Delivery.Attempts++
	n.Delivery.LastAttemptAt = &now

	recipients, err := l.attempt(n)
	metrics.RecordNotificationAttempt(err == nil)
	attempt := Attempt{Timestamp: now, Success: err == nil, Recipients: recipients}
	if err != nil {
		attempt.Error = err.Error()
	}
	l.log.RecordAttempt(n.ID, attempt)

	if err == nil {
		n.Delivery.Delivered = true
		metrics.RecordNotificationDelivered(now.Sub(n.CreatedAt))
		logging.Info().
			Str("notification_id", n.ID).
			Str("type", string(n.Type)).
			Int("recipients", recipients).
			Int("attempt", n.Delivery.Attempts).
			Msg("Notification delivered")
		l.updateDepth()
		return
	}

	if n.Delivery.Attempts < n.Delivery.MaxAttempts {
		delay := Backoff(l.cfg.BaseDelay, l.cfg.MaxDelay, n.Delivery.Attempts)
		l.mu.Lock()
		l.retries.Push(n, now.Add(delay))
		l.mu.Unlock()
		l.updateDepth()
		logging.Warn().
			Err(err).
			Str("notification_id", n.ID).
			Int("attempt", n.Delivery.Attempts).
			Dur("retry_in", delay).
			Msg("Notification delivery failed, retrying")
		return
	}

	l.updateDepth()
	l.finish(n, StatusFailed, err)
}

func (l *Layer) attempt(n *Notification) (int, error) {
	if l.breaker == nil {
		return l.deliverer.DeliverNotification(n)
	}
	return l.breaker.Execute(func() (int, error) {
		return l.deliverer.DeliverNotification(n)
	})
}

// finish records a terminal failure and tells the observer.
func (l *Layer) finish(n *Notification, status Status, err error) {
	l.log.Finish(n.ID, status, err.Error())
	metrics.NotificationsTotal.WithLabelValues(string(status)).Inc()
	logging.Error().
		Err(err).
		Str("notification_id", n.ID).
		Str("type", string(n.Type)).
		Str("status", string(status)).
		Int("attempts", n.Delivery.Attempts).
		Msg("Notification not delivered")

	l.mu.Lock()
	observer := l.observer
	l.mu.Unlock()
	if observer != nil {
		observer(n, err)
	}
}

func (l *Layer) updateDepth() {
	l.mu.Lock()
	depth := l.pendingLocked()
	l.mu.Unlock()
	metrics.NotificationQueueDepth.Set(float64(depth))
}

func (l *Layer) setProcessing(v bool) {
	l.mu.Lock()
	l.processing = v
	l.mu.Unlock()
}

// Stats returns queue and delivery statistics. deliveryRate is the
// percentage of logged notifications delivered; the average delivery time
// runs from creation to the successful attempt.
func (l *Layer) Stats() Stats {
	l.mu.Lock()
	s := Stats{
		Queued:         len(l.ready),
		PendingRetries: l.retries.Len(),
		Processing:     l.processing,
	}
	l.mu.Unlock()

	sum := l.log.summarize()
	s.TotalSent = sum.total
	s.TotalFailed = sum.failed
	if sum.total > 0 {
		s.DeliveryRate = float64(sum.delivered) / float64(sum.total) * 100
	}
	if sum.delivered > 0 {
		s.AverageDeliveryTimeMs = float64(sum.deliveryTotal.Milliseconds()) / float64(sum.delivered)
	}
	if l.breaker != nil {
		s.BreakerState = l.breaker.State().String()
	}
	return s
}

// Backoff returns base×2^(attempts-1), capped at maxDelay when maxDelay is
// positive.
func Backoff(base, maxDelay time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		return 0
	}
	// Cap the shift to prevent overflow; the cap applies long before this.
	if attempts > 32 {
		if maxDelay > 0 {
			return maxDelay
		}
		attempts = 32
	}
	d := base << (attempts - 1)
	if maxDelay > 0 && (d > maxDelay || d < 0) {
		d = maxDelay
	}
	return d
}

// sleep waits for d or until ctx is canceled, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
