package notifications

import (
	"context"
	"slices"
	"strings"
)

// Notification types.
const (
	TypeStageChanged = "stage_changed"
	TypeReminder     = "reminder"
	TypeAssignment   = "assignment"
	TypePayment      = "payment"
	TypeSystem       = "system"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Channel identifies a delivery route.
type Channel string

// Delivery channels. In-app delivery is the persisted record itself.
const (
	ChannelInApp    Channel = "in_app"
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

var (
	validTypes      = []string{TypeStageChanged, TypeReminder, TypeAssignment, TypePayment, TypeSystem}
	validPriorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
)

// ValidType reports whether t is a known notification type.
func ValidType(t string) bool {
	return slices.Contains(validTypes, strings.TrimSpace(t))
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	return slices.Contains(validPriorities, strings.TrimSpace(p))
}

// Draft is the input to Create.
type Draft struct {
	UserID     string
	Type       string
	Priority   string
	Title      string
	Message    string
	LinkedType string
	LinkedID   string
	LinkedName string
	Metadata   map[string]any
	CreatedBy  string
}

// Payload is what a channel sender transmits.
type Payload struct {
	NotificationID string
	Type           string
	Priority       string
	Title          string
	Message        string
}

// Sender delivers a payload to one target on one channel. target is the
// push subscription, email address or phone number.
type Sender interface {
	Send(ctx context.Context, target string, p Payload) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target string, p Payload) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, target string, p Payload) error {
	return f(ctx, target, p)
}

// Contact holds the delivery addresses of a user.
type Contact struct {
	Email string
	Phone string
}

// Directory resolves a user's delivery addresses. A nil contact means the
// user is unknown.
type Directory interface {
	Contact(ctx context.Context, userID string) (*Contact, error)
}

// FanOutOptions requests channels that are not governed by preferences.
type FanOutOptions struct {
	SMS      bool
	WhatsApp bool
}

// ChannelFailure records a failed channel attempt.
type ChannelFailure struct {
	Channel Channel
	Error   string
}

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	Attempted []Channel
	Delivered []Channel
	Failed    []ChannelFailure
	Skipped   []Channel
}

// AttemptedChannel reports whether ch was attempted.
func (r DeliveryReport) AttemptedChannel(ch Channel) bool {
	return slices.Contains(r.Attempted, ch)
}

// DeliveredChannel reports whether ch delivered successfully.
func (r DeliveryReport) DeliveredChannel(ch Channel) bool {
	return slices.Contains(r.Delivered, ch)
}
