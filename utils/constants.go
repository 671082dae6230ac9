package utils

import (
	"time"
)

// Notification campaign constants
const (
	// ConfirmCodeLength is the number of digits in a confirmation code
	ConfirmCodeLength = 6

	// MaxReminderCount caps SMS reminders per campaign (first send + one reminder)
	MaxReminderCount = 2

	// ReminderDelay is the gap between the first SMS and its single reminder
	ReminderDelay = 30 * time.Minute

	// PhoneTailLength is the number of trailing digits compared when matching
	// an inbound sender against a stored recipient phone
	PhoneTailLength = 8

	// InboundMatchScanLimit bounds how many same-code candidates are scanned
	// for a phone-tail match before falling back to recency
	InboundMatchScanLimit = 25
)

// Outbound call constants
const (
	// ChannelCallTimeout is the per-call timeout for SMS/WhatsApp/renderer HTTP calls
	ChannelCallTimeout = 15 * time.Second
)

// Request-scoped context keys set by the HTTP layer for observability
const (
	RequestIDKey  = "request_id"
	UserAgentKey  = "user_agent"
	IPAddressKey  = "ip_address"
	EndpointKey   = "endpoint"
	TimeoutKey    = "timeout"
	CancelFuncKey = "cancel_func"
)
