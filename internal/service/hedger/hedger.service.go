package hedger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultTransactionRequestTimeout = 10 * time.Second
	guardReleaseTimeout              = 2 * time.Second
)

var (
	_ entity.Publisher  = (*HedgerService)(nil)
	_ entity.Subscriber = (*HedgerService)(nil)
)

type RequestGuard interface {
	Acquire(ctx context.Context, requestID string) (bool, error)
	Release(ctx context.Context, requestID string) error
}

type ResultBroadcaster interface {
	Broadcast(event entity.TransactionResultEvent)
}

type BalanceReader interface {
	Balances() map[string]decimal.Decimal
}

type ResultRecorder interface {
	Create(ctx context.Context, record *entity.TransactionResultRecord) error
	GetByRequestID(ctx context.Context, requestID string) (*entity.TransactionResultRecord, error)
}

// HedgerService serves transaction requests against the venues loaded at
// startup. Requests come in directly from the gateway or through the
// JetStream transaction request subject.
type HedgerService struct {
	processor   TransactionRequestProcessor
	venues      []entity.Venue
	balances    BalanceReader
	guard       RequestGuard
	broadcaster ResultBroadcaster
	recorder    ResultRecorder
	js          nats.JetStreamContext
}

// NewHedgerService builds the service. guard, broadcaster, recorder and js
// are optional.
func NewHedgerService(
	processor TransactionRequestProcessor,
	venues []entity.Venue,
	balances BalanceReader,
	guard RequestGuard,
	broadcaster ResultBroadcaster,
	recorder ResultRecorder,
	js nats.JetStreamContext,
) *HedgerService {
	return &HedgerService{
		processor:   processor,
		venues:      venues,
		balances:    balances,
		guard:       guard,
		broadcaster: broadcaster,
		recorder:    recorder,
		js:          js,
	}
}

func (s *HedgerService) Venues() []entity.Venue {
	return s.venues
}

func (s *HedgerService) Balances() map[string]decimal.Decimal {
	return s.balances.Balances()
}

// ProcessTransaction processes request once per request id. An invalid request
// is still a processed request: its reason is reported in the result, not as
// an error.
func (s *HedgerService) ProcessTransaction(ctx context.Context, request entity.TransactionRequest) (*entity.TransactionResultEvent, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	logger := logrus.WithFields(logrus.Fields{
		"request_id": request.RequestID,
		"side":       request.Side,
		"amount":     request.Amount.String(),
	})

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, request.RequestID)
		if err != nil {
			logger.Error(err)
			return nil, ErrRequestGuardFailed
		}
		if !acquired {
			logger.Warn("duplicate transaction request")
			return nil, ErrDuplicateRequest
		}

		// nothing touched the ledger yet, free the id for the retry
		if err := ctx.Err(); err != nil {
			s.releaseGuard(ctx, logger, request.RequestID)
			return nil, err
		}
	}

	result := s.processor.ProcessTransaction(request, s.venues)

	event := &entity.TransactionResultEvent{
		RequestID:   request.RequestID,
		Request:     request,
		Result:      result,
		ProcessedAt: time.Now().UTC(),
	}

	// the ledger is already reduced, a failed write is only logged
	if s.recorder != nil {
		s.recordResult(ctx, logger, *event)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(*event)
	}

	return event, nil
}

func (s *HedgerService) releaseGuard(ctx context.Context, logger *logrus.Entry, requestID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardReleaseTimeout)
	defer cancel()

	if err := s.guard.Release(releaseCtx, requestID); err != nil {
		logger.Errorf("failed to release request guard: %v", err)
	}
}

func (s *HedgerService) recordResult(ctx context.Context, logger *logrus.Entry, event entity.TransactionResultEvent) {
	record, err := entity.NewTransactionResultRecord(event)
	if err != nil {
		logger.Error(err)
		return
	}

	err = s.recorder.Create(ctx, record)
	if err != nil {
		logger.Errorf("failed to store transaction result: %v", err)
	}
}

// TransactionResult returns the stored result of a processed request.
func (s *HedgerService) TransactionResult(ctx context.Context, requestID string) (*entity.TransactionResultRecord, error) {
	if s.recorder == nil {
		return nil, ErrResultStoreDisabled
	}

	record, err := s.recorder.GetByRequestID(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionResultNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// EnqueueTransaction publishes request for the hedger worker and returns its
// request id.
func (s *HedgerService) EnqueueTransaction(ctx context.Context, request entity.TransactionRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	err := util.PublishEvent(s.js, constant.HedgerStreamSubjectTransactionRequest, entity.TransactionRequestEvent{
		Data: request,
	})
	if err != nil {
		logrus.WithField("request_id", request.RequestID).Error(err)
		return "", ErrPublishRequestFailed
	}

	return request.RequestID, nil
}

func (s *HedgerService) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.HedgerStreamName,
		Subjects:  []string{constant.HedgerStreamSubjectAll},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
	}

	stream, err := s.js.StreamInfo(constant.HedgerStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.HedgerStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.HedgerStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

func (s *HedgerService) JetstreamEventSubscribe(ctx context.Context) error {
	err := s.JetstreamEventInit(ctx)
	if err != nil {
		logrus.Error(err)
		return err
	}

	timeout := config.Env.NatsJetstream.TimeoutHandler[constant.HedgerTimeoutHandlerTransactionRequest]
	if timeout <= 0 {
		timeout = defaultTransactionRequestTimeout
	}

	_, err = s.js.QueueSubscribe(
		constant.HedgerStreamSubjectTransactionRequest,
		constant.HedgerQueueName,
		func(msg *nats.Msg) {
			err := util.ProcessWithTimeout(timeout, msg, s.handleTransactionRequestEvent)
			if err != nil {
				logrus.Errorf("error processing message: %v", err)
				return
			}

			err = msg.Ack()
			if err != nil {
				logrus.Errorf("failed to acknowledge message: %v", err)
				return
			}
		},
		nats.ManualAck(),
		nats.Durable(constant.HedgerQueueGroup),
	)
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

func (s *HedgerService) handleTransactionRequestEvent(ctx context.Context, msg *nats.Msg) (err error) {
	logger := logrus.WithFields(logrus.Fields{
		"req": string(msg.Data),
	})

	var req *entity.TransactionRequestEvent
	err = json.Unmarshal(msg.Data, &req)
	if err != nil {
		logger.Error(err)
		// a malformed payload will never succeed, drop it
		return nil
	}

	if req.Data.RequestID == "" {
		requestID, idErr := jetstreamRequestID(msg)
		if idErr != nil {
			logger.WithError(idErr).Error("transaction request without request_id is not a jetstream message, dropped")
			return nil
		}
		req.Data.RequestID = requestID
	}

	defer func() {
		if err != nil {
			logger.Error(err)
			req.RetryCount++
			if req.RetryCount >= config.Env.NatsJetstream.MaxRetries {
				return
			}

			err := util.PublishEvent(s.js, constant.HedgerStreamSubjectTransactionRequest, req)
			if err != nil {
				logger.Error(err)
				return
			}
		}
	}()

	event, err := s.ProcessTransaction(ctx, req.Data)
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return nil
		}
		return err
	}

	// the ledger is already reduced, so a failed result publish is not retried
	publishErr := util.PublishEvent(s.js, constant.HedgerStreamSubjectTransactionResult, event)
	if publishErr != nil {
		logger.WithField("request_id", event.RequestID).Errorf("failed to publish transaction result: %v", publishErr)
	}

	return nil
}

// jetstreamRequestID names an id-less request after its stream sequence, which
// stays the same across redeliveries of the message.
func jetstreamRequestID(msg *nats.Msg) (string, error) {
	meta, err := msg.Metadata()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("js-%s-%d", meta.Stream, meta.Sequence.Stream), nil
}

// SubscribeTransactionResults forwards results published by hedger workers to
// the broadcaster. Only results published after subscribing are delivered.
func (s *HedgerService) SubscribeTransactionResults(ctx context.Context) (*nats.Subscription, error) {
	if s.broadcaster == nil {
		return nil, nil
	}

	err := s.JetstreamEventInit(ctx)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}

	sub, err := s.js.Subscribe(
		constant.HedgerStreamSubjectTransactionResult,
		s.handleTransactionResultEvent,
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}

	return sub, nil
}

func (s *HedgerService) handleTransactionResultEvent(msg *nats.Msg) {
	var event entity.TransactionResultEvent
	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		logrus.WithField("result", string(msg.Data)).Error(err)
		return
	}

	s.broadcaster.Broadcast(event)
}
