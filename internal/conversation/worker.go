package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	clientLockStripes   = 64
	deleteTimeout       = 5 * time.Second
	sendTimeout         = 10 * time.Second
)

// Worker consumes inbound chat events from the queue, runs them through
// the state machine and delivers the reply. One client's failure never
// stops the loop.
type Worker struct {
	machine   *Machine
	queue     queueClient
	messenger notify.Messenger
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup

	clientLocks [clientLockStripes]sync.Mutex
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewWorker constructs a queue consumer around the state machine.
func NewWorker(machine *Machine, queue queueClient, messenger notify.Messenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if machine == nil {
		panic("conversation: machine cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		machine:   machine,
		queue:     queue,
		messenger: messenger,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("chat worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("chat worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive chat events", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		// Poison message: drop it so it does not loop forever.
		w.logger.Error("failed to decode chat event", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	// Events for one client must never interleave: two quick messages
	// racing Get/Put on the dialogue state would lose a transition.
	lock := w.lockFor(payload.Event.ClientID)
	lock.Lock()
	reply, err := w.machine.Handle(ctx, payload.Event)
	lock.Unlock()
	if err != nil {
		w.logger.Error("chat event rejected", "error", err, "job_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if reply.Text != "" {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := w.messenger.Send(sendCtx, payload.Event.ClientID, notify.Message{Text: reply.Text, Buttons: reply.Buttons}); err != nil {
			w.logger.Warn("reply delivery failed", "client_id", payload.Event.ClientID, "error", err)
		}
		cancel()
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) lockFor(clientID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return &w.clientLocks[h.Sum32()%clientLockStripes]
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete chat event", "error", err)
	}
}
