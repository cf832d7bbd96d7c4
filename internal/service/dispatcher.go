package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/observability/requestid"

	"go.uber.org/zap"
)

var (
	ErrQueueFull      = errors.New("sync queue is full")
	ErrShuttingDown   = errors.New("dispatcher is shutting down")
	ErrDuplicateEvent = errors.New("event already received")
)

// Processor runs one event through the configured backends.
type Processor interface {
	Process(ctx context.Context, event *domain.CallEvent) domain.SyncResult
}

// Guard detects webhook redeliveries.
type Guard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Journal persists finished results.
type Journal interface {
	InsertResult(ctx context.Context, result domain.SyncResult) error
}

// Recorder receives dispatcher and outcome metrics.
type Recorder interface {
	RecordDelivery(result string)
	RecordEvent(status string)
	RecordBackendOutcome(backend, state, errorKind string, d time.Duration)
	SetQueueDepth(n int)
}

// Delivery results reported to the Recorder.
const (
	DeliveryAccepted     = "accepted"
	DeliveryDuplicate    = "duplicate"
	DeliveryInvalid      = "invalid"
	DeliveryQueueFull    = "queue_full"
	DeliveryShuttingDown = "shutting_down"
)

const journalTimeout = 5 * time.Second

// DispatcherConfig wires the dispatcher. Guard, Journal and Recorder are optional.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Processor Processor
	Guard     Guard
	Journal   Journal
	Recorder  Recorder
	Logger    *logger.Logger
}

// job carries the request id of the webhook delivery so worker logs and
// outbound backend calls stay correlated with it.
type job struct {
	event     *domain.CallEvent
	requestID string
}

// Dispatcher desacopla o webhook do processamento: valida, enfileira e
// entrega os resultados a um único consumidor (log, métricas, journal).
type Dispatcher struct {
	cfg     DispatcherConfig
	log     *logger.Logger
	queue   chan job
	results chan domain.SyncResult

	mu       sync.RWMutex
	closed   bool
	workers  sync.WaitGroup
	sinkDone chan struct{}
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Dispatcher{
		cfg:      cfg,
		log:      log,
		queue:    make(chan job, cfg.QueueSize),
		results:  make(chan domain.SyncResult, cfg.Workers),
		sinkDone: make(chan struct{}),
	}
}

// Start launches the workers and the result sink. Processing runs detached
// from ctx cancellation; use Shutdown to stop.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		d.workers.Add(1)
		go d.work(base)
	}

	go func() {
		d.workers.Wait()
		close(d.results)
	}()
	go d.sink(base)

	d.log.Info(ctx, "dispatcher started",
		logger.Module("dispatcher"),
		logger.Action("start"),
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
	)
}

// Submit validates the event, drops redeliveries and enqueues it without
// blocking. Returns a *domain.ValidationError, ErrDuplicateEvent,
// ErrQueueFull or ErrShuttingDown when the event is not accepted.
func (d *Dispatcher) Submit(ctx context.Context, event *domain.CallEvent) error {
	if err := event.Validate(); err != nil {
		d.recordDelivery(DeliveryInvalid)
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.recordDelivery(DeliveryShuttingDown)
		return ErrShuttingDown
	}

	claimed := false
	if d.cfg.Guard != nil {
		ok, err := d.cfg.Guard.Claim(ctx, event.ID)
		switch {
		case err != nil:
			// Redis indisponível: processa mesmo assim.
			d.log.Warn(ctx, "dedup guard unavailable, accepting event",
				logger.Module("dispatcher"),
				logger.Action("submit"),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		case !ok:
			d.recordDelivery(DeliveryDuplicate)
			return ErrDuplicateEvent
		default:
			claimed = true
		}
	}

	select {
	case d.queue <- job{event: event, requestID: requestid.GetRequestID(ctx)}:
		d.recordDelivery(DeliveryAccepted)
		d.recordDepth()
		return nil
	default:
		if claimed {
			if err := d.cfg.Guard.Release(ctx, event.ID); err != nil {
				d.log.Warn(ctx, "failed to release dedup claim",
					logger.Module("dispatcher"),
					logger.Action("submit"),
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
			}
		}
		d.recordDelivery(DeliveryQueueFull)
		return ErrQueueFull
	}
}

// Shutdown stops intake, lets workers drain the queue and waits for the sink
// to flush every result, or for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.sinkDone:
		d.log.Info(ctx, "dispatcher drained",
			logger.Module("dispatcher"),
			logger.Action("shutdown"),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.workers.Done()
	for j := range d.queue {
		d.recordDepth()
		jctx := ctx
		if j.requestID != "" {
			jctx = requestid.SetRequestID(ctx, j.requestID)
		}
		d.results <- d.cfg.Processor.Process(jctx, j.event)
	}
}

func (d *Dispatcher) sink(ctx context.Context) {
	defer close(d.sinkDone)
	for result := range d.results {
		d.deliver(ctx, result)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, result domain.SyncResult) {
	ctx = logger.SetEventIDInContext(ctx, result.EventID)

	if d.cfg.Recorder != nil {
		d.cfg.Recorder.RecordEvent(string(result.Status))
		for _, o := range result.Outcomes {
			d.cfg.Recorder.RecordBackendOutcome(o.Backend, string(o.State), string(o.ErrorKind), o.Duration)
		}
	}

	fields := []logger.Field{
		logger.Module("dispatcher"),
		logger.Action("sink"),
		zap.String("status", string(result.Status)),
	}
	for name, o := range result.Outcomes {
		if o.Succeeded() {
			fields = append(fields, zap.String(name, string(o.State)))
		} else {
			fields = append(fields, zap.String(name, string(o.State)+":"+string(o.ErrorKind)))
		}
	}
	if result.Status == domain.OverallFailed {
		d.log.Warn(ctx, "call event sync failed", fields...)
	} else {
		d.log.Info(ctx, "call event sync finished", fields...)
	}

	if d.cfg.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	if err := d.cfg.Journal.InsertResult(jctx, result); err != nil {
		d.log.Error(ctx, "failed to journal sync result",
			logger.Module("dispatcher"),
			logger.Action("journal"),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) recordDelivery(result string) {
	if d.cfg.Recorder != nil {
		d.cfg.Recorder.RecordDelivery(result)
	}
}

func (d *Dispatcher) recordDepth() {
	if d.cfg.Recorder != nil {
		d.cfg.Recorder.SetQueueDepth(len(d.queue))
	}
}
