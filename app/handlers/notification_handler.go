// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bf1digital/spot-dispatch/app/dto"
	"github.com/bf1digital/spot-dispatch/app/services"
	businessflow "github.com/bf1digital/spot-dispatch/business_flow"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// NotificationHandlerInterface defines the contract for notification handlers
type NotificationHandlerInterface interface {
	ConfirmWeb(c fiber.Ctx) error
	DownloadPDF(c fiber.Ctx) error
	DownloadICS(c fiber.Ctx) error
	NotifyEmail(c fiber.Ctx) error
	NotifyWhatsApp(c fiber.Ctx) error
	InboundSMS(c fiber.Ctx) error
}

// NotificationHandler handles confirmation pages, document downloads, the
// operator notify actions and the inbound SMS webhook
type NotificationHandler struct {
	notificationFlow businessflow.NotificationFlow
	renderer         services.DocumentRenderer
	siteCfg          *config.SiteConfig
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(
	notificationFlow businessflow.NotificationFlow,
	renderer services.DocumentRenderer,
	siteCfg *config.SiteConfig,
) *NotificationHandler {
	return &NotificationHandler{
		notificationFlow: notificationFlow,
		renderer:         renderer,
		siteCfg:          siteCfg,
	}
}

func (h *NotificationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *NotificationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ConfirmWeb handles the one-click confirmation link from SMS and email
// notices. Responses are plain text: recipients open these on feature
// phones, not API clients.
func (h *NotificationHandler) ConfirmWeb(c fiber.Ctx) error {
	campaignID, code, ok := h.campaignParams(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Lien de confirmation invalide.")
	}

	campaign, err := h.notificationFlow.ConfirmWeb(h.createRequestContext(c, "/assignments/confirm"), campaignID, code)
	if err != nil {
		if businessflow.IsInvalidConfirmCode(err) {
			return c.Status(fiber.StatusNotFound).SendString("Lien de confirmation invalide.")
		}
		log.Println("Web confirmation failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Une erreur est survenue. Merci de réessayer.")
	}

	title := ""
	if campaign.Assignment != nil {
		title = campaign.Assignment.EventTitle
	}
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(fmt.Sprintf("Réception confirmée pour « %s ». Merci !", title))
}

// DownloadPDF serves the assignment sheet rendered by the document service.
// The confirm code acts as the access token; the PDF is never stored.
func (h *NotificationHandler) DownloadPDF(c fiber.Ctx) error {
	campaignID, code, ok := h.campaignParams(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Document introuvable.")
	}

	ctx := h.createRequestContext(c, "/assignments/pdf")
	campaign, err := h.notificationFlow.CampaignByIDAndCode(ctx, campaignID, code)
	if err != nil {
		if businessflow.IsInvalidConfirmCode(err) {
			return c.Status(fiber.StatusNotFound).SendString("Document introuvable.")
		}
		log.Println("PDF lookup failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Une erreur est survenue.")
	}

	pdf, err := h.renderer.RenderAssignmentPDF(ctx, campaign.Assignment)
	if err != nil {
		log.Println("PDF rendering failed", err)
		return c.Status(fiber.StatusServiceUnavailable).SendString("Le document n'est pas disponible pour le moment.")
	}

	filename := fmt.Sprintf("bf1-couverture-%s.pdf", campaign.Assignment.EventDate.Format("20060102"))
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(pdf)
}

// DownloadICS serves the calendar entry for the assignment
func (h *NotificationHandler) DownloadICS(c fiber.Ctx) error {
	campaignID, code, ok := h.campaignParams(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Document introuvable.")
	}

	campaign, err := h.notificationFlow.CampaignByIDAndCode(h.createRequestContext(c, "/assignments/ics"), campaignID, code)
	if err != nil {
		if businessflow.IsInvalidConfirmCode(err) {
			return c.Status(fiber.StatusNotFound).SendString("Document introuvable.")
		}
		log.Println("ICS lookup failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Une erreur est survenue.")
	}

	filename, data := services.BuildAssignmentICS(campaign.Assignment, h.siteCfg.ICSTimezone, h.siteCfg.UIDDomain)
	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

// NotifyEmail handles the operator "send full notice by email" action
func (h *NotificationHandler) NotifyEmail(c fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("campaign_id"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	metadata := h.clientMetadata(c)

	result, err := h.notificationFlow.NotifyEmail(h.createRequestContext(c, "/assignments/notify/email"), campaignID, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsContactMissing(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Recipient has no email address", "CONTACT_MISSING", nil)
		}
		if businessflow.IsChannelSendFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Email delivery failed", "EMAIL_SEND_FAILED", nil)
		}

		log.Println("Email notice failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send email notice", "EMAIL_NOTICE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Email notice sent successfully", result)
}

// NotifyWhatsApp handles the operator WhatsApp action: a programmatic send
// when the gateway is configured, otherwise a wa.me deep link the operator
// opens on their own phone.
func (h *NotificationHandler) NotifyWhatsApp(c fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("campaign_id"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	metadata := h.clientMetadata(c)

	result, err := h.notificationFlow.NotifyWhatsApp(h.createRequestContext(c, "/assignments/notify/whatsapp"), campaignID, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsContactMissing(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Recipient has no phone number", "CONTACT_MISSING", nil)
		}
		if businessflow.IsChannelSendFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "WhatsApp delivery failed", "WHATSAPP_SEND_FAILED", nil)
		}

		log.Println("WhatsApp notice failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send WhatsApp notice", "WHATSAPP_NOTICE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "WhatsApp notice prepared successfully", result)
}

// InboundSMS handles the SMS gateway webhook. Gateways disagree on field
// names, so the sender and body are looked up under every name seen in the
// wild, in the form body first and the query string second.
func (h *NotificationHandler) InboundSMS(c fiber.Ctx) error {
	from := firstValue(c, "from", "From", "sender", "msisdn")
	body := firstValue(c, "body", "Body", "text", "message")

	_, err := h.notificationFlow.ConfirmInboundSMS(h.createRequestContext(c, "/webhooks/sms/inbound"), from, body)
	if err != nil {
		if businessflow.IsCodeMissing(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.InboundSMSResponse{OK: false, Error: "code_missing"})
		}
		if businessflow.IsCampaignNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.InboundSMSResponse{OK: false, Error: "campaign_not_found"})
		}

		log.Println("Inbound SMS handling failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.InboundSMSResponse{OK: false, Error: "internal_error"})
	}

	return c.JSON(dto.InboundSMSResponse{OK: true})
}

// campaignParams extracts and validates the campaign id and code path segments
func (h *NotificationHandler) campaignParams(c fiber.Ctx) (uuid.UUID, string, bool) {
	campaignID, err := uuid.Parse(c.Params("campaign_id"))
	if err != nil {
		return uuid.Nil, "", false
	}
	code := c.Params("code")
	if code == "" {
		return uuid.Nil, "", false
	}
	return campaignID, code, true
}

// firstValue returns the first non-empty value among the given field names,
// checking the form body before the query string
func firstValue(c fiber.Ctx, names ...string) string {
	for _, name := range names {
		if v := c.FormValue(name); v != "" {
			return v
		}
	}
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	return ""
}

// clientMetadata captures the caller's identity for audit entries
func (h *NotificationHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}
	if operator, ok := c.Locals("operator").(string); ok {
		metadata.SetOperator(operator)
	}
	return metadata
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *NotificationHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *NotificationHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
