package dlqworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/events"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

const (
	defaultMsgChanCap = 100
	fetchBatchSize    = 10
	fetchMaxWait      = 5 * time.Second
	taskTimeout       = time.Minute
)

// dlqMessage is the part of *nats.Msg the worker acts on.
type dlqMessage interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
	Metadata() (*nats.MsgMetadata, error)
}

// Worker replays dead-lettered events through the event router with growing
// delays, and parks them as ExhaustedEvent rows once retries run out.
type Worker struct {
	cfg    *config.Config
	logger *zap.Logger
	js     jetstream.ClientInterface
	pool   *ants.Pool
	router events.RouterInterface
	store  storage.ExhaustedEventRepo
	msgCh  chan *nats.Msg
	stopWg sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker creates the worker pool and ensures the DLQ stream and pull consumer exist.
func NewWorker(ctx context.Context, cfg *config.Config, log *zap.Logger, jsClient jetstream.ClientInterface, router events.RouterInterface, exhaustedRepo storage.ExhaustedEventRepo) (*Worker, error) {
	log = log.Named("dlq_worker")
	pool, err := ants.NewPool(cfg.NATS.DLQWorkers,
		ants.WithLogger(logger.Printf{L: log.Named("ants_pool")}),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("Worker panic caught", zap.Any("error", p), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	if err := jsClient.SetupStream(ctx, StreamConfig(cfg)); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ stream '%s': %w", cfg.NATS.DLQStream, err)
	}
	if err := jsClient.SetupConsumer(ctx, cfg.NATS.DLQStream, consumerConfig(cfg)); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ consumer '%s' for stream '%s': %w", cfg.NATS.DLQConsumer, cfg.NATS.DLQStream, err)
	}

	log.Info("DLQ worker initialized",
		zap.String("stream", cfg.NATS.DLQStream),
		zap.String("consumer", cfg.NATS.DLQConsumer),
		zap.Int("pool_size", cfg.NATS.DLQWorkers),
	)
	return &Worker{
		cfg:    cfg,
		logger: log,
		js:     jsClient,
		pool:   pool,
		router: router,
		store:  exhaustedRepo,
		msgCh:  make(chan *nats.Msg, defaultMsgChanCap),
	}, nil
}

// StreamConfig is the DLQ stream definition.
func StreamConfig(cfg *config.Config) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      cfg.NATS.DLQStream,
		Subjects:  []string{cfg.NATS.DLQSubject + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(cfg.NATS.DLQMaxAgeDays) * 24 * time.Hour,
	}
}

func consumerConfig(cfg *config.Config) *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:       cfg.NATS.DLQConsumer,
		FilterSubject: cfg.NATS.DLQSubject + ".>",
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    cfg.NATS.DLQMaxDeliver,
		AckWait:       cfg.NATS.DLQAckWait,
		MaxAckPending: cfg.NATS.DLQMaxAckPending,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}
}

// Start runs the fetch and dispatch loops and blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	sub, err := w.js.SubscribePull(w.cfg.NATS.DLQStream, w.cfg.NATS.DLQSubject+".>", w.cfg.NATS.DLQConsumer)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create DLQ pull subscription: %w", err)
	}

	w.stopWg.Add(2)
	go w.fetchMessages(derivedCtx, sub)
	go w.dispatchMessages(derivedCtx)

	w.logger.Info("DLQ worker started")
	<-derivedCtx.Done()
	w.logger.Info("DLQ worker context cancelled, initiating shutdown...")
	return nil
}

// Stop cancels the loops, waits for them and releases the pool.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.stopWg.Wait()
	w.pool.Release()
	w.logger.Info("DLQ worker stopped")
}

func (w *Worker) fetchMessages(ctx context.Context, sub *nats.Subscription) {
	defer w.stopWg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		observer.IncDlqFetchRequest()
		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, nats.ErrConnectionClosed) {
				continue
			}
			observer.IncDlqFetchError()
			w.logger.Error("Failed to fetch DLQ messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			select {
			case w.msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) dispatchMessages(ctx context.Context) {
	defer w.stopWg.Done()

	for {
		observer.SetDlqQueueLength(len(w.msgCh))
		observer.SetDlqWorkersActive(w.pool.Running())

		select {
		case <-ctx.Done():
			return
		case msg := <-w.msgCh:
			current := msg
			subject := sourceSubject(current.Data)
			err := w.pool.Submit(func() {
				taskCtx, taskCancel := context.WithTimeout(context.Background(), taskTimeout)
				defer taskCancel()
				w.handle(taskCtx, current, current.Data)
			})
			if err != nil {
				w.logger.Error("Failed to submit task to ants pool", zap.Error(err))
				if nakErr := current.NakWithDelay(5 * time.Second); nakErr != nil {
					w.logger.Error("Failed to NAK message after pool submission error", zap.Error(nakErr))
					observer.IncDlqAckFailure(subject)
				}
				continue
			}
			observer.IncDlqTasksSubmitted(subject)
		}
	}
}

// handle re-routes one DLQ message. Success ACKs it, failure NAKs it with a
// growing delay, and the last allowed attempt persists it and terminates it.
func (w *Worker) handle(ctx context.Context, msg dlqMessage, data []byte) {
	startTime := time.Now()
	var payload model.DLQPayload
	defer func() {
		observer.ObserveDlqProcessingDuration(payload.SourceSubject, time.Since(startTime))
	}()

	meta, err := msg.Metadata()
	if err != nil {
		w.logger.Error("Failed to get DLQ message metadata", zap.Error(err))
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate message after metadata error", zap.Error(termErr))
		}
		observer.IncDlqAckFailure("")
		return
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		w.logger.Error("Failed to unmarshal DLQ payload",
			zap.Error(err),
			zap.Uint64("sequence", meta.Sequence.Stream),
			zap.ByteString("data", data),
		)
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate message after unmarshal error", zap.Error(termErr))
		}
		observer.IncDlqAckFailure("")
		return
	}

	log := w.logger.With(
		zap.String("source_subject", payload.SourceSubject),
		zap.Uint64("stream_sequence", meta.Sequence.Stream),
		zap.Uint64("num_delivered", meta.NumDelivered),
	)
	routerMetadata := &model.MessageMetadata{
		MessageSubject:   payload.SourceSubject,
		StreamSequence:   meta.Sequence.Stream,
		ConsumerSequence: meta.Sequence.Consumer,
		Timestamp:        meta.Timestamp,
		NumDelivered:     meta.NumDelivered,
		Stream:           meta.Stream,
		Consumer:         meta.Consumer,
	}

	processingErr := w.router.Route(logger.WithLogger(ctx, log), routerMetadata, payload.OriginalPayload)
	if processingErr == nil {
		log.Info("Replayed event from DLQ")
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK replayed message", zap.Error(ackErr))
			observer.IncDlqAckFailure(payload.SourceSubject)
			return
		}
		observer.IncDlqAckSuccess(payload.SourceSubject)
		return
	}

	log.Warn("Failed to replay event from DLQ", zap.Error(processingErr))

	if int(meta.NumDelivered) >= w.cfg.NATS.DLQMaxRetries {
		exhausted := model.ExhaustedEvent{
			SourceSubject:   payload.SourceSubject,
			LastError:       processingErr.Error(),
			RetryCount:      int(payload.RetryCount + meta.NumDelivered),
			EventTimestamp:  payload.Timestamp,
			DLQPayload:      datatypes.JSON(data),
			OriginalPayload: datatypes.JSON(payload.OriginalPayload),
		}
		if saveErr := w.store.Save(ctx, exhausted); saveErr != nil {
			log.Error("Failed to save exhausted event, terminating message anyway", zap.Error(saveErr))
		} else {
			observer.IncDlqTasksDropped(payload.SourceSubject)
		}
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to terminate exhausted message", zap.Error(termErr))
		}
		observer.IncDlqAckFailure(payload.SourceSubject)
		return
	}

	delay := calculateBackoffDelay(int(meta.NumDelivered), w.cfg.NATS.DLQBaseDelayMinutes, w.cfg.NATS.DLQMaxDelayMinutes)
	log.Info("Retrying DLQ message with backoff", zap.Duration("delay", delay))
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		log.Error("Failed to NAK message with delay", zap.Error(nakErr))
		observer.IncDlqAckFailure(payload.SourceSubject)
		return
	}
	observer.IncDlqTaskRetry(payload.SourceSubject)
}

func sourceSubject(data []byte) string {
	var payload struct {
		SourceSubject string `json:"source_subject"`
	}
	_ = json.Unmarshal(data, &payload)
	return payload.SourceSubject
}

// calculateBackoffDelay doubles the base delay per attempt, capped at the max delay.
func calculateBackoffDelay(retryCount int, baseDelayMinutes, maxDelayMinutes int) time.Duration {
	baseDelay := time.Duration(baseDelayMinutes) * time.Minute
	maxDelay := time.Duration(maxDelayMinutes) * time.Minute

	if retryCount <= 0 {
		return baseDelay
	}

	delay := baseDelay * time.Duration(1<<uint(retryCount-1))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}
