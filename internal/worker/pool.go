package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/mailer"
	"github.com/ignite/pulsemail/internal/pkg/logger"
	"github.com/ignite/pulsemail/internal/template"
	"github.com/ignite/pulsemail/internal/tracking"
)

// errCampaignPaused signals that a job was parked back on the queue because
// its campaign is paused. Not a failure.
var errCampaignPaused = errors.New("campaign paused")

// CampaignStore is the pool's view of campaign persistence. Jobs carry no
// principal, so reads are by id and the row names its owner.
type CampaignStore interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, userID, id string, status domain.CampaignStatus) error
}

// ContactStore loads the recipient for rendering and mailability checks.
type ContactStore interface {
	Get(ctx context.Context, userID, id string) (*domain.Contact, error)
}

// TemplateStore loads the campaign's template.
type TemplateStore interface {
	Get(ctx context.Context, userID, id string) (*domain.Template, error)
}

// LogStore settles email log rows and detects run completion.
type LogStore interface {
	MarkSent(ctx context.Context, logID string) error
	MarkFailed(ctx context.Context, logID, reason string) error
	PendingCount(ctx context.Context, runID string) (int, error)
	SentCount(ctx context.Context, runID string) (int, error)
	CompleteRun(ctx context.Context, runID string) error
}

// Pool runs N workers that block-pop send jobs off the Redis queue, render
// and deliver them, and settle the outcome.
type Pool struct {
	rdb          *redis.Client
	queueKey     string
	numWorkers   int
	pollInterval time.Duration

	campaigns CampaignStore
	contacts  ContactStore
	templates TemplateStore
	logs      LogStore
	engine    *template.Engine
	links     *tracking.LinkBuilder
	sender    mailer.Sender

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sent   int64
	failed int64
}

// PoolDeps bundles the stores and rendering pieces a pool needs.
type PoolDeps struct {
	Campaigns CampaignStore
	Contacts  ContactStore
	Templates TemplateStore
	Logs      LogStore
	Engine    *template.Engine
	Links     *tracking.LinkBuilder
	Sender    mailer.Sender
}

// NewPool creates a send worker pool. Zero values fall back to 4 workers
// and a 5 second poll interval.
func NewPool(rdb *redis.Client, queueKey string, numWorkers int, pollInterval time.Duration, deps PoolDeps) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Pool{
		rdb:          rdb,
		queueKey:     queueKey,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		campaigns:    deps.Campaigns,
		contacts:     deps.Contacts,
		templates:    deps.Templates,
		logs:         deps.Logs,
		engine:       deps.Engine,
		links:        deps.Links,
		sender:       deps.Sender,
	}
}

// Start launches the workers. Returns an error if the pool is already
// running.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("worker pool already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Info("send worker pool started", "workers", p.numWorkers, "queue", p.queueKey)
	return nil
}

// Stop cancels the workers and waits for them to drain their current job.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	logger.Info("send worker pool stopped",
		"sent", atomic.LoadInt64(&p.sent), "failed", atomic.LoadInt64(&p.failed))
}

// Stats reports lifetime delivery counters.
func (p *Pool) Stats() map[string]int64 {
	return map[string]int64{
		"sent":   atomic.LoadInt64(&p.sent),
		"failed": atomic.LoadInt64(&p.failed),
	}
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		res, err := p.rdb.BRPop(p.ctx, p.pollInterval, p.queueKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			logger.Error("queue pop", "worker", n, "error", err)
			time.Sleep(p.pollInterval)
			continue
		}

		var job SendJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			logger.Error("drop malformed job", "worker", n, "error", err)
			continue
		}

		if err := p.process(p.ctx, &job); err != nil {
			if errors.Is(err, errCampaignPaused) {
				// Back off so a paused campaign's jobs don't hot-loop
				// between pop and requeue.
				time.Sleep(p.pollInterval)
				continue
			}
			logger.Error("process send job", "worker", n,
				"log_id", job.LogID, "campaign_id", job.CampaignID, "error", err)
		}
	}
}

func (p *Pool) process(ctx context.Context, job *SendJob) error {
	c, err := p.campaigns.GetByID(ctx, job.CampaignID)
	if err != nil {
		return p.fail(ctx, job, nil, "campaign not found")
	}

	switch c.Status {
	case domain.CampaignSending:
	case domain.CampaignPaused:
		b, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal paused job: %w", err)
		}
		if err := p.rdb.LPush(ctx, p.queueKey, b).Err(); err != nil {
			return fmt.Errorf("requeue paused job: %w", err)
		}
		return errCampaignPaused
	default:
		return p.fail(ctx, job, c, fmt.Sprintf("campaign is %s", c.Status))
	}

	contact, err := p.contacts.Get(ctx, c.UserID, job.ContactID)
	if err != nil {
		return p.fail(ctx, job, c, "contact not found")
	}
	if !contact.IsMailable() {
		return p.fail(ctx, job, c, "contact not mailable")
	}

	if c.TemplateID == nil {
		return p.fail(ctx, job, c, "campaign has no template")
	}
	tmpl, err := p.templates.Get(ctx, c.UserID, *c.TemplateID)
	if err != nil {
		return p.fail(ctx, job, c, "template not found")
	}

	rc := template.RecipientContext(contact, c)
	subject, err := p.engine.Render("", tmpl.Subject, rc)
	if err != nil {
		return p.fail(ctx, job, c, "render subject: "+err.Error())
	}
	bodyKey := fmt.Sprintf("%s@%d", tmpl.ID, tmpl.UpdatedAt.Unix())
	htmlBody, err := p.engine.Render(bodyKey, tmpl.HTMLBody, rc)
	if err != nil {
		return p.fail(ctx, job, c, "render body: "+err.Error())
	}
	htmlBody = p.links.InjectTracking(htmlBody, c.ID, contact.ID)

	var textBody string
	if tmpl.TextBody != "" {
		textBody, err = p.engine.Render("", tmpl.TextBody, rc)
		if err != nil {
			return p.fail(ctx, job, c, "render text: "+err.Error())
		}
	}

	res, err := p.sender.Send(ctx, &mailer.Message{
		CampaignID: c.ID,
		ContactID:  contact.ID,
		To:         contact.Email,
		FromName:   c.FromName,
		FromEmail:  c.FromEmail,
		Subject:    subject,
		HTMLBody:   htmlBody,
		TextBody:   textBody,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if !res.Success {
		reason := "provider rejected"
		if res.Error != nil {
			reason = res.Error.Error()
		}
		return p.fail(ctx, job, c, reason)
	}

	if err := p.logs.MarkSent(ctx, job.LogID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	atomic.AddInt64(&p.sent, 1)

	return p.finishIfDrained(ctx, c, job.RunID)
}

// fail settles the log row as failed. The run completion check still runs:
// a run can finish on its last failure.
func (p *Pool) fail(ctx context.Context, job *SendJob, c *domain.Campaign, reason string) error {
	if err := p.logs.MarkFailed(ctx, job.LogID, reason); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	atomic.AddInt64(&p.failed, 1)
	logger.Warn("send failed", "log_id", job.LogID, "campaign_id", job.CampaignID, "reason", reason)

	if c == nil {
		return nil
	}
	return p.finishIfDrained(ctx, c, job.RunID)
}

// finishIfDrained completes the run and the campaign once no pending rows
// remain. Racing workers may both observe zero; CompleteRun's completed_at
// guard and the status-conditioned campaign update make the double call
// harmless.
func (p *Pool) finishIfDrained(ctx context.Context, c *domain.Campaign, runID string) error {
	if runID == "" {
		return nil
	}
	n, err := p.logs.PendingCount(ctx, runID)
	if err != nil {
		return fmt.Errorf("pending count: %w", err)
	}
	if n > 0 {
		return nil
	}

	if err := p.logs.CompleteRun(ctx, runID); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if c.Status == domain.CampaignSending {
		final := domain.CampaignCompleted
		sent, err := p.logs.SentCount(ctx, runID)
		if err != nil {
			return fmt.Errorf("sent count: %w", err)
		}
		if sent == 0 {
			// Not one delivery made it out.
			final = domain.CampaignFailed
		}
		if err := p.campaigns.UpdateStatus(ctx, c.UserID, c.ID, final); err != nil {
			return fmt.Errorf("finish campaign: %w", err)
		}
	}
	logger.Info("run drained", "campaign_id", c.ID, "run_id", runID)
	return nil
}
