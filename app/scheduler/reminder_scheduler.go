// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bf1digital/spot-dispatch/app/services"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/repository"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	remindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_dispatch_reminders_sent_total",
		Help: "SMS reminders handed to the gateway successfully",
	})
	remindersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_dispatch_reminders_failed_total",
		Help: "SMS reminders the gateway rejected or that timed out",
	})
	campaignsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_dispatch_campaigns_expired_total",
		Help: "Campaigns expired after exhausting the reminder cap",
	})
	leaseLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_dispatch_scheduler_lease_skipped_total",
		Help: "Ticks skipped because another replica holds the scheduler lease",
	})
)

// ReminderScheduler drives the SMS retry loop: every interval it claims due
// campaigns and sends the first notice or the single reminder, expiring
// campaigns that exhaust the reminder cap unconfirmed.
type ReminderScheduler struct {
	campaignRepo repository.CampaignRepository
	attemptRepo  repository.AttemptRepository
	logRepo      repository.AssignmentLogRepository
	assignRepo   repository.AssignmentRepository
	sms          services.SMSService
	rdb          *redis.Client
	logger       *log.Logger

	siteCfg  *config.SiteConfig
	schedCfg *config.SchedulerConfig
	provider string
}

// NewReminderScheduler creates a new reminder scheduler instance. rdb may be
// nil when no redis is configured; the lease is then skipped and every
// replica runs (single-replica deployments).
func NewReminderScheduler(
	campaignRepo repository.CampaignRepository,
	attemptRepo repository.AttemptRepository,
	logRepo repository.AssignmentLogRepository,
	assignRepo repository.AssignmentRepository,
	sms services.SMSService,
	rdb *redis.Client,
	logger *log.Logger,
	siteCfg *config.SiteConfig,
	schedCfg *config.SchedulerConfig,
	provider string,
) *ReminderScheduler {
	if schedCfg.Interval <= 0 {
		schedCfg.Interval = time.Minute
	}
	if schedCfg.BatchLimit <= 0 {
		schedCfg.BatchLimit = 100
	}
	if logger == nil {
		logger = log.Default()
	}

	return &ReminderScheduler{
		campaignRepo: campaignRepo,
		attemptRepo:  attemptRepo,
		logRepo:      logRepo,
		assignRepo:   assignRepo,
		sms:          sms,
		rdb:          rdb,
		logger:       logger,
		siteCfg:      siteCfg,
		schedCfg:     schedCfg,
		provider:     provider,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *ReminderScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.schedCfg.Interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *ReminderScheduler) runOnce(ctx context.Context) {
	if !s.acquireLease(ctx) {
		leaseLost.Inc()
		return
	}

	processed, err := s.ProcessDue(ctx, utils.UTCNow(), s.schedCfg.BatchLimit)
	if err != nil {
		s.logger.Printf("scheduler: batch failed: %v", err)
		return
	}
	if processed > 0 {
		s.logger.Printf("scheduler: processed %d due campaigns", processed)
	}
}

// acquireLease takes the per-tick replica lease. The TTL matches the tick
// interval, so a crashed holder frees the slot by the next tick.
func (s *ReminderScheduler) acquireLease(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, s.schedCfg.LockKey, "1", s.schedCfg.Interval).Result()
	if err != nil {
		// Redis down: run anyway rather than silently stalling reminders.
		s.logger.Printf("scheduler: lease check failed, proceeding: %v", err)
		return true
	}
	return ok
}

// ProcessDue runs one reminder batch and returns how many campaigns were
// advanced. A failed send never aborts the batch; each campaign is claimed
// with a conditional update so concurrent replicas advance it at most once.
func (s *ReminderScheduler) ProcessDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.campaignRepo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	processed := 0
	for _, campaign := range due {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if campaign.NextAttemptAt == nil {
			continue
		}
		seen := *campaign.NextAttemptAt

		phone := ""
		if campaign.ToPhone != nil {
			phone = *campaign.ToPhone
		}
		if phone == "" {
			if err := s.campaignRepo.ClearNextAttempt(ctx, campaign.ID); err != nil {
				s.logger.Printf("scheduler: clear next attempt %s: %v", campaign.ID, err)
			}
			continue
		}

		text, err := s.buildMessage(ctx, campaign)
		if err != nil {
			s.logger.Printf("scheduler: build message %s: %v", campaign.ID, err)
			continue
		}

		reminderCount := campaign.ReminderCount + 1
		if reminderCount > utils.MaxReminderCount {
			reminderCount = utils.MaxReminderCount
		}
		var nextAttemptAt *time.Time
		status := models.CampaignStatusActive
		if campaign.ReminderCount == 0 {
			next := now.Add(utils.ReminderDelay)
			nextAttemptAt = &next
		} else {
			text = "RAPPEL — " + text
			if reminderCount >= utils.MaxReminderCount {
				status = models.CampaignStatusExpired
			}
		}

		claimed, err := s.campaignRepo.ClaimDue(ctx, campaign.ID, seen, nextAttemptAt, reminderCount, status)
		if err != nil {
			s.logger.Printf("scheduler: claim %s: %v", campaign.ID, err)
			continue
		}
		if !claimed {
			// Another replica advanced it, or a confirmation won the race.
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, utils.ChannelCallTimeout)
		outcome := s.sms.Send(callCtx, phone, text)
		cancel()

		s.recordAttempt(ctx, campaign, phone, text, outcome)
		s.recordAudit(ctx, campaign, outcome.OK)

		if outcome.OK {
			remindersSent.Inc()
		} else {
			remindersFailed.Inc()
		}
		if status == models.CampaignStatusExpired {
			campaignsExpired.Inc()
			s.appendLog(ctx, campaign.AssignmentID, models.LogLabelCampaignExpired, campaign.RecipientKind.String())
		}

		processed++
	}

	return processed, nil
}

// buildMessage assembles the SMS text: event essentials, the confirm code
// and the one-click confirmation link.
func (s *ReminderScheduler) buildMessage(ctx context.Context, campaign *models.NotificationCampaign) (string, error) {
	assignment := campaign.Assignment
	if assignment == nil {
		var err error
		assignment, err = s.assignRepo.ByID(ctx, campaign.AssignmentID)
		if err != nil {
			return "", err
		}
		if assignment == nil {
			return "", fmt.Errorf("assignment %s not found", campaign.AssignmentID)
		}
	}

	confirmURL := fmt.Sprintf("%s/assignments/confirm/%s/%s/", s.siteCfg.BaseURL, campaign.ID, campaign.ConfirmCode)
	return fmt.Sprintf(
		"Assignation BF1 TV: %s le %s à %s — %s. Code %s. Lien %s",
		assignment.EventTitle,
		assignment.EventDate.Format("2006-01-02"),
		assignment.StartTime.Format("15:04"),
		assignment.Address,
		campaign.ConfirmCode,
		confirmURL,
	), nil
}

func (s *ReminderScheduler) recordAttempt(ctx context.Context, campaign *models.NotificationCampaign, phone, text string, outcome services.SendResult) {
	attempt := &models.NotificationAttempt{
		ID:                uuid.New(),
		CampaignID:        campaign.ID,
		Channel:           models.AttemptChannelSMS,
		To:                phone,
		Body:              text,
		Provider:          s.provider,
		ProviderMessageID: outcome.ProviderMessageID,
	}
	if outcome.OK {
		attempt.Status = models.AttemptStatusSent
		now := utils.UTCNow()
		attempt.SentAt = &now
	} else {
		attempt.Status = models.AttemptStatusFailed
		if outcome.Err != nil {
			attempt.Error = outcome.Err.Error()
		}
	}
	if err := s.attemptRepo.Save(ctx, attempt); err != nil {
		s.logger.Printf("scheduler: record attempt %s: %v", campaign.ID, err)
	}
}

func (s *ReminderScheduler) recordAudit(ctx context.Context, campaign *models.NotificationCampaign, ok bool) {
	label := models.LogLabelSMSReminderSent
	if !ok {
		label = models.LogLabelSMSReminderFailed
	}
	s.appendLog(ctx, campaign.AssignmentID, label, campaign.RecipientKind.String())
}

func (s *ReminderScheduler) appendLog(ctx context.Context, assignmentID uuid.UUID, label, note string) {
	entry := &models.AssignmentLog{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Label:        label,
		Note:         note,
		At:           utils.UTCNow(),
	}
	if err := s.logRepo.Save(ctx, entry); err != nil {
		s.logger.Printf("scheduler: record audit %s: %v", assignmentID, err)
	}
}
