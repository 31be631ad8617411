package payoutgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/payout"
)

// DispatchJob is one payout submission to the upstream rails.
type DispatchJob struct {
	PayoutID              int64
	BeneficiaryID         int64
	Method                string
	DestinationAccountRef string
	NetAmount             int64
	Currency              string
	Attempt               int
}

type Worker struct {
	ID         int
	WorkerPool chan chan DispatchJob
	JobChannel chan DispatchJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan DispatchJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan DispatchJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(DispatchJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing dispatch", "worker_id", w.ID, "payout_id", job.PayoutID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client submits payouts to the upstream payment rails through a bounded
// worker pool. Outcomes do not come back on this path: the rails report
// them asynchronously to the dispatch callback endpoint.
type Client struct {
	dispatchURL     string
	apiKey          string
	callbackURL     string
	dispatchTimeout time.Duration
	logger          *slog.Logger

	jobQueue   chan DispatchJob
	workerPool chan chan DispatchJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

const maxSubmitAttempts = 3

func NewClient(cfg errors.PayoutConfig, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	jobQueueSize := cfg.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		dispatchURL:     cfg.DispatchURL,
		apiKey:          cfg.DispatchAPIKey,
		callbackURL:     cfg.CallbackURL,
		dispatchTimeout: timeout,
		logger:          logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan DispatchJob, jobQueueSize),
		workerPool: make(chan chan DispatchJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processDispatchJob)
		}

		go c.dispatch()

		c.logger.Info("payout dispatch worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					c.logger.Info("dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down payout dispatch client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("payout dispatch client shutdown complete")
}

// SubmitPayout queues a payout for submission. A full queue is reported to
// the caller; the payout stays pending and can be resubmitted.
func (c *Client) SubmitPayout(ctx context.Context, p *payout.Payout) error {
	job := DispatchJob{
		PayoutID:              p.ID,
		BeneficiaryID:         p.BeneficiaryID,
		Method:                p.Method,
		DestinationAccountRef: p.DestinationAccountRef,
		NetAmount:             p.NetAmount,
		Currency:              p.Currency,
		Attempt:               1,
	}

	select {
	case c.jobQueue <- job:
		c.logger.Info("payout dispatch queued",
			"payout_id", p.ID,
			"net_amount", p.NetAmount,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("dispatch queue full, payout not queued",
			"payout_id", p.ID,
			"queue_capacity", cap(c.jobQueue))
		return fmt.Errorf("dispatch queue full")
	}
}

func (c *Client) processDispatchJob(job DispatchJob) {
	err := c.submitToRails(job)
	if err == nil {
		return
	}

	c.logger.Warn("payout submission failed",
		"payout_id", job.PayoutID,
		"attempt", job.Attempt,
		"error", err)

	if job.Attempt >= maxSubmitAttempts {
		// submission never reached the rails, so there is no outcome to
		// wait for; the payout stays pending for operator resubmission
		c.logger.Error("payout submission exhausted retries",
			"payout_id", job.PayoutID,
			"attempts", job.Attempt)
		return
	}

	backoff := time.Duration(job.Attempt) * 5 * time.Second
	select {
	case <-time.After(backoff):
	case <-c.ctx.Done():
		c.logger.Info("dispatch retry cancelled", "payout_id", job.PayoutID)
		return
	}

	job.Attempt++
	select {
	case c.jobQueue <- job:
	default:
		c.logger.Error("dispatch queue full, dropping retry", "payout_id", job.PayoutID)
	}
}

func (c *Client) submitToRails(job DispatchJob) error {
	payload := map[string]interface{}{
		"reference":           fmt.Sprintf("payout-%d", job.PayoutID),
		"method":              job.Method,
		"destination_account": job.DestinationAccountRef,
		"amount":              job.NetAmount,
		"currency":            job.Currency,
		"callback_url":        c.callbackURL,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.dispatchTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.dispatchURL+"/payouts", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpClient := &http.Client{Timeout: c.dispatchTimeout}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("rails returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		Data struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return fmt.Errorf("failed to decode dispatch response: %w", err)
	}

	c.logger.Info("payout submitted to rails",
		"payout_id", job.PayoutID,
		"provider_ref", apiResponse.Data.ID,
		"status", apiResponse.Data.Status)

	return nil
}
