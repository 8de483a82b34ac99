package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/reddit-broker/internal/errorreporting"
	"github.com/onnwee/reddit-broker/internal/logger"
	"github.com/onnwee/reddit-broker/internal/metrics"
	"github.com/onnwee/reddit-broker/internal/reddit"
	"github.com/onnwee/reddit-broker/internal/tracing"
)

// defaultHeartbeat is the inactivity timeout on the inbound queue.
const defaultHeartbeat = 10 * time.Minute

// LoopConfig wires a dispatch loop together.
type LoopConfig struct {
	Queue        MessageQueue
	Deliveries   <-chan Delivery
	Registry     *Registry
	Reddit       *reddit.Client
	Auth         *reddit.Manager
	Clock        *RateClock
	InboundQueue string
	// Heartbeat overrides the inactivity timeout; zero means the default
	// ten minutes.
	Heartbeat time.Duration
}

// Loop is the request-dispatch engine. It owns the inbound channel, the rate
// clock, the response-queue ledger and the publish step, and processes one
// packet at a time.
type Loop struct {
	queue      MessageQueue
	deliveries <-chan Delivery
	registry   *Registry
	client     *reddit.Client
	auth       *reddit.Manager
	clock      *RateClock
	ledger     *Ledger
	inbound    string
	heartbeat  time.Duration
	log        *slog.Logger
	now        func() time.Time
	lastSweep  time.Time
}

// NewLoop builds a dispatch loop from its collaborators.
func NewLoop(cfg LoopConfig) *Loop {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Loop{
		queue:      cfg.Queue,
		deliveries: cfg.Deliveries,
		registry:   cfg.Registry,
		client:     cfg.Reddit,
		auth:       cfg.Auth,
		clock:      cfg.Clock,
		ledger:     NewLedger(),
		inbound:    cfg.InboundQueue,
		heartbeat:  heartbeat,
		log:        logger.WithComponent("dispatch"),
		now:        time.Now,
	}
}

// Run consumes packets until the context is cancelled or the queue
// connection fails. Queue I/O errors are fatal; the process supervisor is
// expected to restart the broker.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("dispatch loop started", "queue", l.inbound, "verbs", len(l.registry.Verbs()))
	l.lastSweep = l.now()
	for {
		l.maybeSweep()
		timer := time.NewTimer(l.heartbeat)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case d, ok := <-l.deliveries:
			timer.Stop()
			if !ok {
				return errors.New("inbound delivery channel closed")
			}
			if err := l.dispatch(ctx, d); err != nil {
				return err
			}
		case <-timer.C:
			logger.Log(l.log, logger.LevelTrace, "no packets received recently, still consuming")
			metrics.Heartbeats.Inc()
		}
	}
}

func (l *Loop) maybeSweep() {
	now := l.now()
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	if evicted := l.ledger.Sweep(now); evicted > 0 {
		l.log.Debug("swept response-queue ledger", "evicted", evicted, "remaining", l.ledger.Len())
	}
}

// dispatch runs one delivery through the full state machine. The returned
// error is always a queue I/O failure and aborts the loop.
func (l *Loop) dispatch(ctx context.Context, d Delivery) error {
	start := l.now()
	ctx, span := tracing.StartSpan(ctx, "broker.dispatch")
	defer span.End()

	pkt, err := ParsePacket(d.Body)
	if err != nil {
		l.log.Warn("dropping invalid packet", "error", err, "body_bytes", len(d.Body))
		return l.drop(d, "invalid")
	}
	span.SetAttributes(attribute.String("verb", pkt.Type), attribute.String("packet.uuid", pkt.UUID))
	plog := l.log.With("verb", pkt.Type, "uuid", pkt.UUID, "response_queue", pkt.ResponseQueue)

	created, stale := l.ledger.Check(pkt.ResponseQueue, pkt.VersionUTCSeconds, pkt.IgnoreVersion, l.now())
	if created && !pkt.Void() {
		if err := l.queue.Declare(pkt.ResponseQueue); err != nil {
			return err
		}
	}
	if stale {
		plog.Debug("dropping packet from stale client session", "version", pkt.VersionUTCSeconds)
		return l.drop(d, "stale")
	}

	handler, ok := l.registry.Lookup(pkt.Type)
	if !ok {
		plog.Warn("unknown verb")
		return l.drop(d, "unknown_verb")
	}

	if l.auth.NeedsRefresh() {
		if err := l.clock.Wait(ctx); err != nil {
			return err
		}
		_, refreshErr := l.auth.Refresh(ctx)
		l.clock.Touch()
		if refreshErr != nil {
			// Transient: leave the packet on the queue for a later attempt.
			plog.Warn("token refresh failed, requeueing packet", "error", refreshErr)
			metrics.PacketsTotal.WithLabelValues("auth_requeued").Inc()
			return l.queue.Nack(d.Tag, true)
		}
	}

	if handler.RequiresDelay {
		if err := l.clock.Wait(ctx); err != nil {
			return err
		}
	}
	status, info := l.invoke(ctx, handler, pkt, plog)
	if handler.RequiresDelay {
		l.clock.Touch()
	}

	style := ResolveStyle(pkt.Style, status)
	if !status.IsSentinel() && status.Code() == 401 {
		// The client still sees the 401 through the style outcome; the next
		// handler invocation must not reuse the rejected token.
		l.auth.Invalidate()
	}

	l.logOutcome(plog, style, status)
	span.SetAttributes(attribute.String("operation", style.Operation))
	metrics.DispatchDuration.WithLabelValues(pkt.Type).Observe(l.now().Sub(start).Seconds())
	return l.settle(d, pkt, status, info, style, plog)
}

// invoke runs the handler, mapping errors and panics to the failure sentinel.
func (l *Loop) invoke(ctx context.Context, handler Handler, pkt *Packet, plog *slog.Logger) (status Status, info any) {
	defer func() {
		if r := recover(); r != nil {
			plog.Error("handler panicked", "panic", r)
			errorreporting.CaptureError(fmt.Errorf("handler %s panicked: %v", handler.Name, r))
			status, info = StatusFailure, nil
		}
	}()
	s, i, err := handler.Invoke(ctx, l.client, l.auth.Current(), pkt.Args)
	if err != nil {
		plog.Warn("handler failed", "error", err)
		return StatusFailure, nil
	}
	return s, i
}

// logOutcome emits the per-packet line at the level the style entry chose.
func (l *Loop) logOutcome(plog *slog.Logger, style ResolvedStyle, status Status) {
	if strings.EqualFold(style.LogLevel, "NONE") {
		return
	}
	level, _ := logger.ParseLevel(style.LogLevel)
	logger.Log(plog, level, "dispatch complete", "status", status.String(), "operation", style.Operation)
}

// settle publishes the reply (or republishes the packet) and resolves the
// delivery.
func (l *Loop) settle(d Delivery, pkt *Packet, status Status, info any, style ResolvedStyle, plog *slog.Logger) error {
	switch style.Operation {
	case "copy":
		reply := map[string]any{
			"uuid":   pkt.UUID,
			"type":   "copy",
			"status": status.Code(),
			"info":   info,
		}
		if err := l.reply(pkt, "copy", reply); err != nil {
			return err
		}
		metrics.PacketsTotal.WithLabelValues("copy").Inc()
		return l.queue.Ack(d.Tag)

	case "success":
		if err := l.reply(pkt, "success", map[string]any{"uuid": pkt.UUID, "type": "success"}); err != nil {
			return err
		}
		metrics.PacketsTotal.WithLabelValues("success").Inc()
		return l.queue.Ack(d.Tag)

	case "retry":
		body, err := pkt.RepublishBody(style.IgnoreVersion)
		if err != nil {
			return fmt.Errorf("re-encode packet for retry: %w", err)
		}
		if err := l.queue.Publish(l.inbound, body); err != nil {
			return err
		}
		metrics.PacketsTotal.WithLabelValues("retry").Inc()
		return l.queue.Nack(d.Tag, false)

	default:
		if style.Operation != "failure" {
			plog.Warn("unrecognized style operation, treating as failure", "operation", style.Operation)
		}
		if err := l.reply(pkt, "failure", map[string]any{"uuid": pkt.UUID, "type": "failure"}); err != nil {
			return err
		}
		metrics.PacketsTotal.WithLabelValues("failure").Inc()
		return l.queue.Nack(d.Tag, false)
	}
}

// reply publishes to the packet's response queue unless replies are
// suppressed by the void prefix.
func (l *Loop) reply(pkt *Packet, replyType string, body map[string]any) error {
	if pkt.Void() {
		return nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s reply: %w", replyType, err)
	}
	if err := l.queue.Publish(pkt.ResponseQueue, encoded); err != nil {
		return err
	}
	metrics.RepliesTotal.WithLabelValues(replyType).Inc()
	return nil
}

// drop records a terminal drop and nacks without requeueing.
func (l *Loop) drop(d Delivery, outcome string) error {
	metrics.PacketsTotal.WithLabelValues(outcome).Inc()
	return l.queue.Nack(d.Tag, false)
}
