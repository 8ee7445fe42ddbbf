package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	consumerType = "leads"

	// duplicateWindow bounds Nats-Msg-Id based duplicate detection on the leads stream.
	duplicateWindow = 2 * time.Minute
)

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // processed, ACK it
	ActionNakDelay                     // retryable error, NAK with calculated delay
	ActionDLQ                          // max deliveries reached or fatal error, publish to DLQ then ACK
)

// LeadConsumer is the durable push consumer feeding LeadCreated events to the router.
type LeadConsumer struct {
	client     jetstream.ClientInterface
	router     RouterInterface
	cfg        config.ConsumerNatsConfig
	dlqSubject string
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewLeadConsumer creates the consumer. Setup must run before Start.
func NewLeadConsumer(client jetstream.ClientInterface, router RouterInterface, cfg config.ConsumerNatsConfig, dlqSubject string) *LeadConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.Log.Named("lead_consumer").With(
		zap.String("stream", cfg.Stream),
		zap.String("consumer", cfg.Consumer),
	))

	return &LeadConsumer{
		client:     client,
		router:     router,
		cfg:        cfg,
		dlqSubject: dlqSubject,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// StreamConfig is the leads stream definition.
func (c *LeadConsumer) StreamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       c.cfg.Stream,
		Subjects:   c.cfg.SubjectList,
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     time.Duration(c.cfg.MaxAge*24) * time.Hour,
		Duplicates: duplicateWindow,
	}
}

// Setup ensures the leads stream and the durable consumer exist.
func (c *LeadConsumer) Setup(ctx context.Context) error {
	log := logger.FromContext(c.ctx)

	if err := c.client.SetupStream(ctx, c.StreamConfig()); err != nil {
		return fmt.Errorf("failed to setup leads stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: c.cfg.SubjectList,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}
	if err := c.client.SetupConsumer(ctx, c.cfg.Stream, consumerCfg); err != nil {
		return fmt.Errorf("failed to setup leads consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("Lead consumer setup complete")
	return nil
}

// Start subscribes to the leads stream
func (c *LeadConsumer) Start() error {
	log := logger.FromContext(c.ctx)

	sub, err := c.client.SubscribePush(subscribeSubject(c.cfg.SubjectList), c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe lead consumer", zap.Error(err), zap.String("group", c.cfg.QueueGroup))
		return fmt.Errorf("failed to subscribe lead consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("Lead consumer subscribed")
	return nil
}

// Stop drains the subscription and cancels in-flight handler contexts.
func (c *LeadConsumer) Stop() {
	log := logger.FromContext(c.ctx)
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining lead subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("Lead consumer stopped")
}

func subscribeSubject(subjects []string) string {
	if len(subjects) == 1 {
		return subjects[0]
	}
	return "v1.>"
}

// dlqSubjectFor names the DLQ subject for a source subject, e.g.
// v1.dlq.leads + v1.leads.created = v1.dlq.leads.v1_leads_created.
func dlqSubjectFor(base, sourceSubject string) string {
	return base + "." + strings.ReplaceAll(sourceSubject, ".", "_")
}

// determineAckNakAction decides the fate of a message from the processing
// result and delivery count.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	numDelivered := metadata.NumDelivered
	if numDelivered >= uint64(maxDeliver) || !apperrors.IsRetryable(processingErr) {
		return ActionDLQ, 0
	}

	delay = nakBaseDelay
	if numDelivered > 1 {
		delay = nakBaseDelay * (1 << (numDelivered - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// inboundMsg is the part of *nats.Msg the consumer acts on.
type inboundMsg interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
	Metadata() (*nats.MsgMetadata, error)
}

func (c *LeadConsumer) handleMessage(msg *nats.Msg) {
	c.process(msg, msg.Subject, msg.Header, msg.Data)
}

func (c *LeadConsumer) process(msg inboundMsg, subject string, header nats.Header, data []byte) {
	startTime := utils.Now()
	eventType, _ := model.MapToBaseEventType(subject)
	et := string(eventType)
	log := logger.FromContext(c.ctx)

	defer func() {
		observer.ObserveEventProcessingDuration(et, consumerType, time.Since(startTime))
		if r := recover(); r != nil {
			log.Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", subject),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(et, consumerType)
			observer.IncEventProcessingAction(et, consumerType, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	if eventType == "" {
		log.Warn("Unknown event type, terminating", zap.String("subject", subject))
		observer.IncEventProcessingAction(et, consumerType, "term_unknown_type", "unknown_event_type")
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to terminate message for unknown event type", zap.Error(termErr))
		}
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncEventProcessingAction(et, consumerType, "nak_metadata_error", "metadata")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	msgID := header.Get(nats.MsgIdHdr)
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		MessageID:        msgID,
		MessageSubject:   subject,
	}
	observer.IncEventsReceived(et, consumerType)

	log = log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
		zap.Uint64("num_delivered", metadata.NumDelivered),
		zap.String("subject", subject),
	)
	msgCtx := logger.WithLogger(c.ctx, log)

	processingErr := c.router.Route(msgCtx, internalMetadata, data)
	action, nakDelay := determineAckNakAction(processingErr, metadata, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}

	switch action {
	case ActionAck:
		log.Info("Processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(et, consumerType)
		observer.IncEventProcessingAction(et, consumerType, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNakDelay:
		log.Warn("NAKing message with delay for redelivery",
			zap.Error(processingErr),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", nakDelay),
		)
		observer.IncEventsFailed(et, consumerType)
		observer.IncEventProcessingAction(et, consumerType, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			log.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionDLQ:
		observer.IncEventsFailed(et, consumerType)
		c.sendToDLQ(msgCtx, msg, subject, data, msgID, metadata.NumDelivered, processingErr, errorType)
	}
}

// sendToDLQ publishes the failed message to the DLQ and ACKs it. If the
// publish fails the message is NAKed so it is not lost.
func (c *LeadConsumer) sendToDLQ(ctx context.Context, msg inboundMsg, sourceSubject string, data []byte, msgID string, numDelivered uint64, processingErr error, errorType string) {
	log := logger.FromContext(ctx)
	eventType, _ := model.MapToBaseEventType(sourceSubject)
	et := string(eventType)

	classification := "fatal"
	if apperrors.IsRetryable(processingErr) {
		classification = "retryable"
	} else if !apperrors.IsFatal(processingErr) {
		classification = "unknown"
	}
	log.Warn("Sending message to DLQ",
		zap.Error(processingErr),
		zap.String("error_type", classification),
		zap.Int("max_deliver", c.cfg.MaxDeliver),
	)

	original := json.RawMessage(data)
	if !json.Valid(data) {
		// keep undecodable payloads as a JSON string so the envelope still marshals
		original, _ = json.Marshal(string(data))
	}
	dlqData, err := json.Marshal(model.DLQPayload{
		SourceSubject:   sourceSubject,
		OriginalPayload: original,
		Error:           processingErr.Error(),
		ErrorType:       classification,
		RetryCount:      numDelivered,
		MaxRetry:        c.cfg.MaxDeliver,
		Timestamp:       utils.Now(),
	})
	if err != nil {
		log.Error("Failed to marshal DLQ payload, NAKing original message", zap.Error(err))
		observer.IncEventProcessingAction(et, consumerType, "nak_dlq_marshal_fail", "dlq_marshal_fail")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message after DLQ marshal error", zap.Error(nakErr))
		}
		return
	}

	subject := dlqSubjectFor(c.dlqSubject, sourceSubject)
	headers := map[string]string{"Original-Nats-Msg-Id": msgID}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Publish(pubCtx, subject, dlqData, headers); err != nil {
		log.Error("Failed to publish message to DLQ, NAKing original message",
			zap.Error(err),
			zap.String("dlq_subject", subject),
		)
		observer.IncEventProcessingAction(et, consumerType, "nak_dlq_publish_fail", "dlq_publish_fail")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message after DLQ publish error", zap.Error(nakErr))
		}
		return
	}

	log.Info("Message published to DLQ", zap.String("dlq_subject", subject))
	observer.IncEventProcessingAction(et, consumerType, "dlq_published_ack", errorType)
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message after DLQ publish", zap.Error(ackErr))
	}
}
