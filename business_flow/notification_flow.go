// Package businessflow contains the core business logic and use cases for assignment notification workflows
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bf1digital/spot-dispatch/app/dto"
	"github.com/bf1digital/spot-dispatch/app/services"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/repository"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationFlow handles campaign creation, confirmation matching and
// operator-triggered explicit sends.
type NotificationFlow interface {
	CreateCampaigns(ctx context.Context, assignmentID uuid.UUID, metadata *ClientMetadata) ([]*models.NotificationCampaign, error)
	CampaignByIDAndCode(ctx context.Context, campaignID uuid.UUID, code string) (*models.NotificationCampaign, error)
	ConfirmWeb(ctx context.Context, campaignID uuid.UUID, code string) (*models.NotificationCampaign, error)
	ConfirmInboundSMS(ctx context.Context, from, body string) (*models.NotificationCampaign, error)
	NotifyEmail(ctx context.Context, campaignID uuid.UUID, metadata *ClientMetadata) (*dto.NotifyEmailResponse, error)
	NotifyWhatsApp(ctx context.Context, campaignID uuid.UUID, metadata *ClientMetadata) (*dto.NotifyWhatsAppResponse, error)
}

// NotificationFlowImpl implements the notification business flow
type NotificationFlowImpl struct {
	assignmentRepo  repository.AssignmentRepository
	campaignRepo    repository.CampaignRepository
	attemptRepo     repository.AttemptRepository
	logRepo         repository.AssignmentLogRepository
	emailService    services.EmailService
	whatsappService services.WhatsAppService
	renderer        services.DocumentRenderer
	siteCfg         *config.SiteConfig
	db              *gorm.DB
}

// NewNotificationFlow creates a new notification flow instance
func NewNotificationFlow(
	assignmentRepo repository.AssignmentRepository,
	campaignRepo repository.CampaignRepository,
	attemptRepo repository.AttemptRepository,
	logRepo repository.AssignmentLogRepository,
	emailService services.EmailService,
	whatsappService services.WhatsAppService,
	renderer services.DocumentRenderer,
	siteCfg *config.SiteConfig,
	db *gorm.DB,
) NotificationFlow {
	return &NotificationFlowImpl{
		assignmentRepo:  assignmentRepo,
		campaignRepo:    campaignRepo,
		attemptRepo:     attemptRepo,
		logRepo:         logRepo,
		emailService:    emailService,
		whatsappService: whatsappService,
		renderer:        renderer,
		siteCfg:         siteCfg,
		db:              db,
	}
}

type campaignRecipient struct {
	kind  models.RecipientKind
	label string
	email *string
	phone *string
}

// CreateCampaigns prepares one campaign per recipient attached to the
// assignment. The operation is idempotent: an existing active or confirmed
// campaign for the exact (recipient kind, email, phone) tuple is reused, so
// repeated assignment edits never fan out duplicate threads.
func (f *NotificationFlowImpl) CreateCampaigns(ctx context.Context, assignmentID uuid.UUID, metadata *ClientMetadata) ([]*models.NotificationCampaign, error) {
	assignment, err := f.assignmentRepo.ByID(ctx, assignmentID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "Assignment not found", ErrAssignmentNotFound)
	}

	recipients := resolveRecipients(assignment)
	if len(recipients) == 0 {
		return nil, NewBusinessError("NO_RECIPIENTS", "Assignment has no journalist or driver to notify", ErrNoRecipients)
	}

	var campaigns []*models.NotificationCampaign
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		for _, r := range recipients {
			campaign, err := f.campaignRepo.FindReusable(txCtx, assignment.ID, r.kind, r.email, r.phone)
			if err != nil {
				return err
			}
			if campaign == nil {
				code, err := utils.GenerateConfirmCode()
				if err != nil {
					return err
				}
				campaign = &models.NotificationCampaign{
					ID:            uuid.New(),
					AssignmentID:  assignment.ID,
					RecipientKind: r.kind,
					ToEmail:       r.email,
					ToPhone:       r.phone,
					ConfirmCode:   code,
					Status:        models.CampaignStatusActive,
					NextAttemptAt: nil,
				}
				if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
					return err
				}
			}

			if r.email != nil {
				exists, err := f.attemptRepo.ExistsByCampaignAndChannel(txCtx, campaign.ID, models.AttemptChannelEmail)
				if err != nil {
					return err
				}
				if !exists {
					attempt := &models.NotificationAttempt{
						ID:         uuid.New(),
						CampaignID: campaign.ID,
						Channel:    models.AttemptChannelEmail,
						Status:     models.AttemptStatusQueued,
						To:         *r.email,
						Subject:    "Assignation couverture",
						Body:       "PDF",
					}
					if err := f.attemptRepo.Save(txCtx, attempt); err != nil {
						return err
					}
				}
			}

			entry := &models.AssignmentLog{
				ID:           uuid.New(),
				AssignmentID: assignment.ID,
				Label:        models.LogLabelNotificationsPrepared,
				Note:         r.kind.String(),
				At:           utils.UTCNow(),
			}
			if err := f.logRepo.Save(txCtx, entry); err != nil {
				return err
			}

			campaign.Assignment = assignment
			campaigns = append(campaigns, campaign)
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Failed to prepare notification campaigns", err)
	}

	return campaigns, nil
}

// CampaignByIDAndCode loads a campaign and gates it behind exact code
// equality, the shared guard of the confirm, pdf and ics endpoints.
func (f *NotificationFlowImpl) CampaignByIDAndCode(ctx context.Context, campaignID uuid.UUID, code string) (*models.NotificationCampaign, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil || campaign.ConfirmCode != code || code == "" {
		return nil, NewBusinessError("INVALID_CONFIRM_CODE", "Invalid confirm code", ErrInvalidConfirmCode)
	}

	assignment, err := f.assignmentRepo.ByID(ctx, campaign.AssignmentID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("INVALID_CONFIRM_CODE", "Invalid confirm code", ErrInvalidConfirmCode)
	}
	campaign.Assignment = assignment

	return campaign, nil
}

// ConfirmWeb handles one-click confirmation links. A repeat visit is a
// no-op, not an error: the recipient just sees the confirmation page again.
func (f *NotificationFlowImpl) ConfirmWeb(ctx context.Context, campaignID uuid.UUID, code string) (*models.NotificationCampaign, error) {
	campaign, err := f.CampaignByIDAndCode(ctx, campaignID, code)
	if err != nil {
		return nil, err
	}

	if _, err := f.confirm(ctx, campaign, "web"); err != nil {
		return nil, NewBusinessError("CONFIRMATION_FAILED", "Failed to record confirmation", err)
	}

	return campaign, nil
}

// ConfirmInboundSMS matches an inbound message to a campaign by its confirm
// code. The sender's phone tail is preferred when several campaigns share
// the code; recency breaks the remaining ties.
func (f *NotificationFlowImpl) ConfirmInboundSMS(ctx context.Context, from, body string) (*models.NotificationCampaign, error) {
	code := utils.ExtractConfirmCode(body)
	if code == "" {
		return nil, NewBusinessError("CODE_MISSING", "No confirm code in message body", ErrCodeMissing)
	}

	candidates, err := f.campaignRepo.ListActiveByCode(ctx, code, utils.InboundMatchScanLimit)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaigns by code", err)
	}

	var campaign *models.NotificationCampaign
	if tail := utils.PhoneTail(utils.NormalizePhone(from), utils.PhoneTailLength); tail != "" {
		for _, c := range candidates {
			if c.ToPhone == nil {
				continue
			}
			if utils.PhoneTail(*c.ToPhone, utils.PhoneTailLength) == tail {
				campaign = c
				break
			}
		}
	}
	if campaign == nil && len(candidates) > 0 {
		campaign = candidates[0]
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "No active campaign for this code", ErrCampaignNotFound)
	}

	if _, err := f.confirm(ctx, campaign, "sms"); err != nil {
		return nil, NewBusinessError("CONFIRMATION_FAILED", "Failed to record confirmation", err)
	}

	return campaign, nil
}

// NotifyEmail performs the operator "send now" action: the full assignment
// sheet goes out by email with PDF and calendar attachments, and a
// successful send confirms the campaign. Sending the complete notice counts
// as a confirmed handoff for this channel.
func (f *NotificationFlowImpl) NotifyEmail(ctx context.Context, campaignID uuid.UUID, metadata *ClientMetadata) (*dto.NotifyEmailResponse, error) {
	campaign, assignment, err := f.campaignWithAssignment(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.ToEmail == nil || *campaign.ToEmail == "" {
		return nil, NewBusinessError("CONTACT_MISSING", "No email address for this recipient", ErrContactMissing)
	}

	attachments := f.buildAttachments(ctx, assignment)

	label := recipientLabel(campaign, assignment)
	msg := services.EmailMessage{
		To:      *campaign.ToEmail,
		Subject: fmt.Sprintf("[BF1 TV] Assignation couverture — %s", assignment.EventTitle),
		TextBody: fmt.Sprintf(
			"Bonjour %s,\n\nVeuillez trouver en pièce jointe la fiche complète de la couverture assignée.\n\nCordialement,\nBF1 TV",
			label),
		HTMLBody: fmt.Sprintf(
			"<p>Bonjour %s,</p><p>Veuillez trouver en pièce jointe la fiche complète de la couverture assignée.</p><p>Cordialement,<br/>BF1 TV</p>",
			label),
		Attachments: attachments,
	}

	result := f.emailService.Send(ctx, msg)
	f.appendSendAttempt(ctx, campaign, models.AttemptChannelEmail, *campaign.ToEmail, msg.Subject, "PDF", "", result, nil)

	if !result.OK {
		return nil, NewBusinessError("EMAIL_SEND_FAILED", "Failed to send notification email", errors.Join(ErrChannelSendFailed, result.Err))
	}

	confirmed, err := f.campaignRepo.Confirm(ctx, campaign.ID, "email", utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("CONFIRMATION_FAILED", "Failed to record confirmation", err)
	}

	f.appendLog(ctx, campaign.AssignmentID, models.LogLabelEmailNoticeSent, *campaign.ToEmail)

	return &dto.NotifyEmailResponse{
		Sent:      true,
		Confirmed: confirmed || campaign.IsConfirmed(),
		To:        *campaign.ToEmail,
	}, nil
}

// NotifyWhatsApp performs the operator WhatsApp action. When a programmatic
// gateway is configured the message is sent directly; otherwise a wa.me deep
// link is prepared for the operator to open. Both modes confirm the campaign
// and record the generated link and PDF URL in the attempt meta.
func (f *NotificationFlowImpl) NotifyWhatsApp(ctx context.Context, campaignID uuid.UUID, metadata *ClientMetadata) (*dto.NotifyWhatsAppResponse, error) {
	campaign, assignment, err := f.campaignWithAssignment(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.ToPhone == nil || *campaign.ToPhone == "" {
		return nil, NewBusinessError("CONTACT_MISSING", "No phone number for this recipient", ErrContactMissing)
	}

	pdfURL := fmt.Sprintf("%s/assignments/pdf/%s/%s/", f.siteCfg.BaseURL, campaign.ID, campaign.ConfirmCode)
	title := assignment.EventTitle
	if title == "" {
		title = "Couverture BF1"
	}
	text := fmt.Sprintf("Assignation BF1 TV — %s\n\nFiche PDF complète:\n%s", title, pdfURL)

	result := f.whatsappService.Send(ctx, *campaign.ToPhone, text, nil)

	var deepLink string
	if errors.Is(result.Err, services.ErrNotConfigured) {
		// Deep-link mode: no gateway, the operator opens the chat themselves.
		deepLink = services.BuildWhatsAppDeepLink(*campaign.ToPhone, text)
		result = services.SendResult{OK: true}
	}

	meta := models.AttemptMeta{"pdf_url": pdfURL}
	if deepLink != "" {
		meta["link"] = deepLink
	}
	f.appendSendAttempt(ctx, campaign, models.AttemptChannelWhatsApp, *campaign.ToPhone, "", "PDF", "", result, meta)

	if !result.OK {
		return nil, NewBusinessError("WHATSAPP_SEND_FAILED", "Failed to send WhatsApp notification", errors.Join(ErrChannelSendFailed, result.Err))
	}

	confirmed, err := f.campaignRepo.Confirm(ctx, campaign.ID, "whatsapp", utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("CONFIRMATION_FAILED", "Failed to record confirmation", err)
	}

	f.appendLog(ctx, campaign.AssignmentID, models.LogLabelWhatsAppNoticeSent, *campaign.ToPhone)

	return &dto.NotifyWhatsAppResponse{
		Sent:      true,
		Confirmed: confirmed || campaign.IsConfirmed(),
		To:        *campaign.ToPhone,
		DeepLink:  deepLink,
		PDFURL:    pdfURL,
	}, nil
}

// confirm applies the idempotent confirmed transition and, when it wins,
// appends the confirmed attempt and the audit entry in the same transaction.
func (f *NotificationFlowImpl) confirm(ctx context.Context, campaign *models.NotificationCampaign, via string) (bool, error) {
	var won bool
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		won, err = f.campaignRepo.Confirm(txCtx, campaign.ID, via, utils.UTCNow())
		if err != nil {
			return err
		}
		if !won {
			return nil
		}

		channel := models.AttemptChannelWeb
		if via == "sms" {
			channel = models.AttemptChannelSMS
		}
		to := ""
		if campaign.ToPhone != nil {
			to = *campaign.ToPhone
		} else if campaign.ToEmail != nil {
			to = *campaign.ToEmail
		}
		now := utils.UTCNow()
		attempt := &models.NotificationAttempt{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			Channel:    channel,
			Status:     models.AttemptStatusConfirmed,
			To:         to,
			Body:       "confirmed",
			SentAt:     &now,
		}
		if err := f.attemptRepo.Save(txCtx, attempt); err != nil {
			return err
		}

		entry := &models.AssignmentLog{
			ID:           uuid.New(),
			AssignmentID: campaign.AssignmentID,
			Label:        models.LogLabelConfirmationReceived,
			Note:         fmt.Sprintf("%s — %s", campaign.RecipientKind, via),
			At:           now,
		}
		return f.logRepo.Save(txCtx, entry)
	})
	return won, err
}

func (f *NotificationFlowImpl) campaignWithAssignment(ctx context.Context, campaignID uuid.UUID) (*models.NotificationCampaign, *models.CoverageAssignment, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	assignment, err := f.assignmentRepo.ByID(ctx, campaign.AssignmentID)
	if err != nil {
		return nil, nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return nil, nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "Assignment not found", ErrAssignmentNotFound)
	}
	campaign.Assignment = assignment

	return campaign, assignment, nil
}

// buildAttachments collects the PDF sheet and the calendar file. A failing
// or unconfigured renderer drops the PDF but never blocks the send: the
// email still carries the calendar and the essential details.
func (f *NotificationFlowImpl) buildAttachments(ctx context.Context, assignment *models.CoverageAssignment) []services.Attachment {
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

	return attachments
}

// appendSendAttempt records the outcome of a channel call. Attempt
// bookkeeping is best-effort: a failed insert must not mask the send result.
func (f *NotificationFlowImpl) appendSendAttempt(ctx context.Context, campaign *models.NotificationCampaign, channel models.AttemptChannel, to, subject, body, provider string, result services.SendResult, meta models.AttemptMeta) {
	status := models.AttemptStatusFailed
	attempt := &models.NotificationAttempt{
		ID:                uuid.New(),
		CampaignID:        campaign.ID,
		Channel:           channel,
		To:                to,
		Subject:           subject,
		Body:              body,
		Provider:          provider,
		ProviderMessageID: result.ProviderMessageID,
		Meta:              meta,
	}
	if result.OK {
		status = models.AttemptStatusSent
		now := utils.UTCNow()
		attempt.SentAt = &now
	} else if result.Err != nil {
		attempt.Error = result.Err.Error()
	}
	attempt.Status = status

	_ = f.attemptRepo.Save(ctx, attempt)
}

func (f *NotificationFlowImpl) appendLog(ctx context.Context, assignmentID uuid.UUID, label, note string) {
	entry := &models.AssignmentLog{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Label:        label,
		Note:         note,
		At:           utils.UTCNow(),
	}
	_ = f.logRepo.Save(ctx, entry)
}

func resolveRecipients(assignment *models.CoverageAssignment) []campaignRecipient {
	var recipients []campaignRecipient
	if assignment.HasJournalist() {
		recipients = append(recipients, campaignRecipient{
			kind:  models.RecipientKindJournalist,
			label: utils.Deref(assignment.JournalistName),
			email: contactEmail(assignment.JournalistEmail),
			phone: contactPhone(assignment.JournalistPhone),
		})
	}
	if assignment.HasDriver() {
		recipients = append(recipients, campaignRecipient{
			kind:  models.RecipientKindDriver,
			label: utils.Deref(assignment.DriverName),
			phone: contactPhone(assignment.DriverPhone),
		})
	}
	return recipients
}

func recipientLabel(campaign *models.NotificationCampaign, assignment *models.CoverageAssignment) string {
	switch campaign.RecipientKind {
	case models.RecipientKindJournalist:
		if assignment.HasJournalist() {
			return *assignment.JournalistName
		}
		return "Journaliste"
	case models.RecipientKindDriver:
		if assignment.HasDriver() {
			return *assignment.DriverName
		}
		return "Chauffeur"
	}
	return ""
}

func contactEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return utils.ToPtr(trimmed)
}

func contactPhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	normalized := utils.NormalizePhone(*phone)
	if normalized == "" {
		return nil
	}
	return utils.ToPtr(normalized)
}
