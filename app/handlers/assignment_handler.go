// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/bf1digital/spot-dispatch/app/dto"
	businessflow "github.com/bf1digital/spot-dispatch/business_flow"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AssignmentHandlerInterface defines the contract for assignment handlers
type AssignmentHandlerInterface interface {
	CreateAssignment(c fiber.Ctx) error
	TriggerNotifications(c fiber.Ctx) error
	ListLogs(c fiber.Ctx) error
}

// AssignmentHandler handles assignment-related HTTP requests
type AssignmentHandler struct {
	assignmentFlow businessflow.AssignmentFlow
	validator      *validator.Validate
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentFlow businessflow.AssignmentFlow) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentFlow: assignmentFlow,
		validator:      validator.New(),
	}
}

func (h *AssignmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AssignmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateAssignment handles the coverage assignment intake
func (h *AssignmentHandler) CreateAssignment(c fiber.Ctx) error {
	var req dto.CreateAssignmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := h.clientMetadata(c)

	result, err := h.assignmentFlow.CreateAssignment(h.createRequestContext(c, "/api/v1/assignments"), &req, metadata)
	if err != nil {
		log.Println("Assignment creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Assignment creation failed", "ASSIGNMENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Assignment created successfully", result)
}

// TriggerNotifications prepares the notification campaigns for an assignment
// and kicks off the initial notices.
func (h *AssignmentHandler) TriggerNotifications(c fiber.Ctx) error {
	assignmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid assignment ID", "INVALID_ASSIGNMENT_ID", nil)
	}

	metadata := h.clientMetadata(c)

	result, err := h.assignmentFlow.TriggerNotifications(h.createRequestContext(c, "/api/v1/assignments/:id/notifications"), assignmentID, metadata)
	if err != nil {
		if businessflow.IsAssignmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Assignment not found", "ASSIGNMENT_NOT_FOUND", nil)
		}
		if businessflow.IsNoRecipients(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Assignment has no reachable recipients", "NO_RECIPIENTS", nil)
		}

		log.Println("Notification trigger failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to prepare notifications", "NOTIFICATION_TRIGGER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Notifications prepared successfully", result)
}

// ListLogs returns the audit trail of an assignment
func (h *AssignmentHandler) ListLogs(c fiber.Ctx) error {
	assignmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid assignment ID", "INVALID_ASSIGNMENT_ID", nil)
	}

	logs, err := h.assignmentFlow.ListLogs(h.createRequestContext(c, "/api/v1/assignments/:id/logs"), assignmentID)
	if err != nil {
		if businessflow.IsAssignmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Assignment not found", "ASSIGNMENT_NOT_FOUND", nil)
		}

		log.Println("Log listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list assignment logs", "LOG_LISTING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assignment logs retrieved successfully", fiber.Map{
		"items": logs,
	})
}

// clientMetadata captures the caller's identity for audit entries
func (h *AssignmentHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
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
func (h *AssignmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *AssignmentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
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
