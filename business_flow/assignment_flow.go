// Package businessflow contains the core business logic and use cases for assignment notification workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bf1digital/spot-dispatch/app/dto"
	"github.com/bf1digital/spot-dispatch/app/services"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/repository"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentFlow handles coverage assignment intake and the notification
// kick-off that follows an assignment decision.
type AssignmentFlow interface {
	CreateAssignment(ctx context.Context, req *dto.CreateAssignmentRequest, metadata *ClientMetadata) (*dto.CreateAssignmentResponse, error)
	TriggerNotifications(ctx context.Context, assignmentID uuid.UUID, metadata *ClientMetadata) (*dto.CreateCampaignsResponse, error)
	ListLogs(ctx context.Context, assignmentID uuid.UUID) ([]dto.AssignmentLogDTO, error)
}

// AssignmentFlowImpl implements the assignment business flow
type AssignmentFlowImpl struct {
	assignmentRepo   repository.AssignmentRepository
	campaignRepo     repository.CampaignRepository
	attemptRepo      repository.AttemptRepository
	logRepo          repository.AssignmentLogRepository
	notificationFlow NotificationFlow
	emailService     services.EmailService
	renderer         services.DocumentRenderer
	siteCfg          *config.SiteConfig
	db               *gorm.DB
}

// NewAssignmentFlow creates a new assignment flow instance
func NewAssignmentFlow(
	assignmentRepo repository.AssignmentRepository,
	campaignRepo repository.CampaignRepository,
	attemptRepo repository.AttemptRepository,
	logRepo repository.AssignmentLogRepository,
	notificationFlow NotificationFlow,
	emailService services.EmailService,
	renderer services.DocumentRenderer,
	siteCfg *config.SiteConfig,
	db *gorm.DB,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		assignmentRepo:   assignmentRepo,
		campaignRepo:     campaignRepo,
		attemptRepo:      attemptRepo,
		logRepo:          logRepo,
		notificationFlow: notificationFlow,
		emailService:     emailService,
		renderer:         renderer,
		siteCfg:          siteCfg,
		db:               db,
	}
}

// CreateAssignment persists a new coverage assignment in the assigned state.
func (f *AssignmentFlowImpl) CreateAssignment(ctx context.Context, req *dto.CreateAssignmentRequest, metadata *ClientMetadata) (*dto.CreateAssignmentResponse, error) {
	eventDate, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		return nil, NewBusinessError("INVALID_EVENT_DATE", "Event date must be YYYY-MM-DD", err)
	}
	startTime, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return nil, NewBusinessError("INVALID_START_TIME", "Start time must be HH:MM", err)
	}
	var endTime *time.Time
	if req.EndTime != nil {
		parsed, err := time.Parse("15:04", *req.EndTime)
		if err != nil {
			return nil, NewBusinessError("INVALID_END_TIME", "End time must be HH:MM", err)
		}
		endTime = &parsed
	}

	assignment := &models.CoverageAssignment{
		ID:           uuid.New(),
		Status:       models.AssignmentStatusAssigned,
		EventTitle:   req.EventTitle,
		EventDate:    eventDate,
		StartTime:    startTime,
		EndTime:      endTime,
		Address:      req.Address,
		MeetingPoint: req.MeetingPoint,
		Description:  req.Description,

		JournalistName:  req.JournalistName,
		JournalistEmail: req.JournalistEmail,
		JournalistPhone: req.JournalistPhone,
		DriverName:      req.DriverName,
		DriverPhone:     req.DriverPhone,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.assignmentRepo.Save(txCtx, assignment); err != nil {
			return err
		}
		entry := &models.AssignmentLog{
			ID:           uuid.New(),
			AssignmentID: assignment.ID,
			Label:        models.LogLabelAssignmentCreated,
			At:           utils.UTCNow(),
		}
		return f.logRepo.Save(txCtx, entry)
	})
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_CREATION_FAILED", "Failed to create assignment", err)
	}

	return &dto.CreateAssignmentResponse{
		ID:        assignment.ID.String(),
		Status:    assignment.Status.String(),
		CreatedAt: assignment.CreatedAt,
	}, nil
}

// TriggerNotifications prepares the campaigns for an assignment, sends the
// initial email notice inline where an email contact exists, and arms the
// SMS reminder loop for phone-bearing campaigns so the next scheduler pass
// delivers the first SMS.
func (f *AssignmentFlowImpl) TriggerNotifications(ctx context.Context, assignmentID uuid.UUID, metadata *ClientMetadata) (*dto.CreateCampaignsResponse, error) {
	campaigns, err := f.notificationFlow.CreateCampaigns(ctx, assignmentID, metadata)
	if err != nil {
		return nil, err
	}

	for _, campaign := range campaigns {
		if campaign.Status != models.CampaignStatusActive {
			continue
		}
		if campaign.ToEmail != nil && *campaign.ToEmail != "" {
			f.sendInitialEmail(ctx, campaign)
		}
		if campaign.ToPhone != nil && *campaign.ToPhone != "" {
			if err := f.campaignRepo.ScheduleFirstReminder(ctx, campaign.ID, utils.UTCNow()); err == nil && campaign.NextAttemptAt == nil {
				campaign.NextAttemptAt = utils.UTCNowPtr()
			}
		}
	}

	resp := &dto.CreateCampaignsResponse{}
	for _, campaign := range campaigns {
		resp.Campaigns = append(resp.Campaigns, ToCampaignDTO(campaign))
	}
	return resp, nil
}

// sendInitialEmail delivers the first notice. Unlike the operator "notify
// now" action this does not confirm the campaign: the recipient still has to
// acknowledge via the embedded link or by SMS.
func (f *AssignmentFlowImpl) sendInitialEmail(ctx context.Context, campaign *models.NotificationCampaign) {
	assignment := campaign.Assignment
	if assignment == nil {
		return
	}

	confirmURL := fmt.Sprintf("%s/assignments/confirm/%s/%s/", f.siteCfg.BaseURL, campaign.ID, campaign.ConfirmCode)

	var attachments []services.Attachment
	if pdf, err := f.renderer.RenderAssignmentPDF(ctx, assignment); err == nil {
		attachments = append(attachments, services.Attachment{
			Filename:    fmt.Sprintf("bf1-couverture-%s.pdf", assignment.EventDate.Format("20060102")),
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}
	icsName, icsData := services.BuildAssignmentICS(assignment, f.siteCfg.ICSTimezone, f.siteCfg.UIDDomain)
	attachments = append(attachments, services.Attachment{
		Filename:    icsName,
		ContentType: "text/calendar; charset=utf-8",
		Data:        icsData,
	})

	label := recipientLabel(campaign, assignment)
	msg := services.EmailMessage{
		To:      *campaign.ToEmail,
		Subject: fmt.Sprintf("[BF1 TV] Assignation couverture — %s", assignment.EventTitle),
		TextBody: fmt.Sprintf(
			"Bonjour %s,\n\nVous êtes assigné(e) à la couverture « %s » le %s à %s — %s.\nCode de confirmation: %s\nConfirmer: %s\n\nCordialement,\nBF1 TV",
			label, assignment.EventTitle, assignment.EventDate.Format("2006-01-02"),
			assignment.StartTime.Format("15:04"), assignment.Address,
			campaign.ConfirmCode, confirmURL),
		HTMLBody: fmt.Sprintf(
			"<p>Bonjour %s,</p><p>Vous êtes assigné(e) à la couverture <b>%s</b> le %s à %s — %s.</p><p>Code de confirmation: <b>%s</b><br/><a href=%q>Confirmer la réception</a></p><p>Cordialement,<br/>BF1 TV</p>",
			label, assignment.EventTitle, assignment.EventDate.Format("2006-01-02"),
			assignment.StartTime.Format("15:04"), assignment.Address,
			campaign.ConfirmCode, confirmURL),
		Attachments: attachments,
	}

	result := f.emailService.Send(ctx, msg)

	status := models.AttemptStatusSent
	logLabel := models.LogLabelInitialEmailSent
	attempt := &models.NotificationAttempt{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		Channel:    models.AttemptChannelEmail,
		To:         *campaign.ToEmail,
		Subject:    msg.Subject,
		Body:       msg.TextBody,
	}
	if result.OK {
		now := utils.UTCNow()
		attempt.SentAt = &now
	} else {
		status = models.AttemptStatusFailed
		logLabel = models.LogLabelInitialEmailFailed
		if result.Err != nil {
			attempt.Error = result.Err.Error()
		}
	}
	attempt.Status = status
	_ = f.attemptRepo.Save(ctx, attempt)

	entry := &models.AssignmentLog{
		ID:           uuid.New(),
		AssignmentID: campaign.AssignmentID,
		Label:        logLabel,
		Note:         *campaign.ToEmail,
		At:           utils.UTCNow(),
	}
	_ = f.logRepo.Save(ctx, entry)
}

// ListLogs returns the audit trail of an assignment, newest first.
func (f *AssignmentFlowImpl) ListLogs(ctx context.Context, assignmentID uuid.UUID) ([]dto.AssignmentLogDTO, error) {
	assignment, err := f.assignmentRepo.ByID(ctx, assignmentID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "Assignment not found", ErrAssignmentNotFound)
	}

	entries, err := f.logRepo.ListByAssignment(ctx, assignmentID, 200, 0)
	if err != nil {
		return nil, NewBusinessError("LOG_LOOKUP_FAILED", "Failed to list assignment logs", err)
	}

	logs := make([]dto.AssignmentLogDTO, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, dto.AssignmentLogDTO{
			Label: entry.Label,
			Note:  entry.Note,
			At:    entry.At,
		})
	}
	return logs, nil
}
