package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/preferences"
	"crmflow/internal/services"
	"crmflow/internal/store"
)

const defaultSendTimeout = 10 * time.Second

// PreferenceSource returns the effective channel preferences of a user.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (preferences.Preference, error)
}

// Options configures a Router.
type Options struct {
	Store       *store.Store
	Preferences PreferenceSource
	Directory   Directory
	Senders     map[Channel]Sender
	Clock       clock.Clock
	Logger      *slog.Logger
	SendTimeout time.Duration
	// DedupWindow collapses identical unread notifications created within
	// the window. Zero disables dedup.
	DedupWindow time.Duration
}

// Router persists notifications and fans them out across channels.
type Router struct {
	store       *store.Store
	prefs       PreferenceSource
	directory   Directory
	senders     map[Channel]Sender
	clock       clock.Clock
	logger      *slog.Logger
	sendTimeout time.Duration
	dedupWindow time.Duration
}

// NewRouter constructs a Router.
func NewRouter(opts Options) *Router {
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	senders := make(map[Channel]Sender, len(opts.Senders))
	for ch, s := range opts.Senders {
		if s != nil {
			senders[ch] = s
		}
	}
	return &Router{
		store:       opts.Store,
		prefs:       opts.Preferences,
		directory:   opts.Directory,
		senders:     senders,
		clock:       clock.OrSystem(opts.Clock),
		logger:      logging.NewComponentLogger(opts.Logger, "notifications"),
		sendTimeout: timeout,
		dedupWindow: opts.DedupWindow,
	}
}

// Create validates d and persists it as an unread in-app notification. With a
// dedup window configured, an identical unread notification created inside
// the window is returned instead of inserting a new row.
func (r *Router) Create(ctx context.Context, d Draft) (*store.Notification, error) {
	n, _, err := r.create(ctx, d)
	return n, err
}

func (r *Router) create(ctx context.Context, d Draft) (*store.Notification, bool, error) {
	d = normalizeDraft(d)
	if err := validateDraft(d); err != nil {
		return nil, false, err
	}
	now := r.clock.Now()

	if r.dedupWindow > 0 {
		existing, err := r.store.FindRecentUnread(ctx, d.UserID, d.Type, d.LinkedID, d.Title, now.Add(-r.dedupWindow))
		if err != nil {
			return nil, false, services.Wrap(services.ErrTransient, "notifications", "create", "dedup lookup", err)
		}
		if existing != nil {
			r.logger.Debug("notification deduplicated",
				logging.String(logging.FieldNotificationID, existing.ID),
				logging.String(logging.FieldUserID, existing.UserID),
				logging.String(logging.FieldEventType, "notification_deduplicated"),
			)
			return existing, false, nil
		}
	}

	n := &store.Notification{
		ID:         uuid.NewString(),
		UserID:     d.UserID,
		Type:       d.Type,
		Priority:   d.Priority,
		Title:      d.Title,
		Message:    d.Message,
		LinkedType: d.LinkedType,
		LinkedID:   d.LinkedID,
		LinkedName: d.LinkedName,
		Metadata:   d.Metadata,
		CreatedBy:  d.CreatedBy,
		CreatedAt:  now,
	}
	if err := r.store.InsertNotification(ctx, n); err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "notifications", "create", "persist notification", err)
	}
	r.logger.Info("notification created",
		logging.String(logging.FieldNotificationID, n.ID),
		logging.String(logging.FieldUserID, n.UserID),
		logging.String("notification_type", n.Type),
		logging.String(logging.FieldEventType, "notification_created"),
	)
	return n, true, nil
}

// Notify creates the notification, looks up the recipient's preferences and
// fans out. Delivery failures are reported, never returned.
func (r *Router) Notify(ctx context.Context, d Draft, opts FanOutOptions) (*store.Notification, DeliveryReport, error) {
	n, created, err := r.create(ctx, d)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	if !created {
		return n, DeliveryReport{Delivered: []Channel{ChannelInApp}}, nil
	}
	var prefs preferences.Preference
	if r.prefs != nil {
		prefs, err = r.prefs.Get(ctx, n.UserID)
		if err != nil {
			logging.WarnWithContext(r.logger, "preference lookup failed; external channels skipped", "preference_lookup_failed",
				logging.String(logging.FieldUserID, n.UserID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "only the in-app notification was recorded"),
			)
			prefs = preferences.Preference{UserID: n.UserID}
		}
	}
	return n, r.FanOut(ctx, n, prefs, opts), nil
}

type attempt struct {
	channel Channel
	target  string
	sender  Sender
}

// FanOut delivers n on every channel allowed by prefs and opts. Channels run
// concurrently, each bounded by the send timeout. Failures are logged and
// recorded in the report; the in-app record is never affected.
func (r *Router) FanOut(ctx context.Context, n *store.Notification, prefs preferences.Preference, opts FanOutOptions) DeliveryReport {
	report := DeliveryReport{
		Attempted: []Channel{ChannelInApp},
		Delivered: []Channel{ChannelInApp},
	}
	if n == nil {
		return report
	}

	attempts, skipped := r.plan(ctx, n.UserID, prefs, opts)
	report.Skipped = skipped
	if len(attempts) == 0 {
		return report
	}

	payload := Payload{
		NotificationID: n.ID,
		Type:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		Message:        n.Message,
	}
	results := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			results[i] = r.sendWithTimeout(ctx, a, payload)
		}(i, a)
	}
	wg.Wait()

	for i, a := range attempts {
		report.Attempted = append(report.Attempted, a.channel)
		if err := results[i]; err != nil {
			failure := services.Wrap(services.ErrDeliveryFailure, "notifications", "fan_out",
				fmt.Sprintf("%s delivery failed", a.channel), err)
			report.Failed = append(report.Failed, ChannelFailure{Channel: a.channel, Error: failure.Error()})
			logging.WarnWithContext(r.logger, "notification delivery failed", "notification_delivery_failed",
				logging.String(logging.FieldNotificationID, n.ID),
				logging.String(logging.FieldUserID, n.UserID),
				logging.String(logging.FieldChannel, string(a.channel)),
				logging.Error(failure),
				logging.String(logging.FieldErrorHint, "check channel credentials and connectivity"),
				logging.String(logging.FieldImpact, "recipient still sees the in-app notification"),
			)
			continue
		}
		report.Delivered = append(report.Delivered, a.channel)
		r.logger.Debug("notification delivered",
			logging.String(logging.FieldNotificationID, n.ID),
			logging.String(logging.FieldChannel, string(a.channel)),
		)
	}
	return report
}

func (r *Router) plan(ctx context.Context, userID string, prefs preferences.Preference, opts FanOutOptions) ([]attempt, []Channel) {
	var (
		attempts []attempt
		skipped  []Channel
	)
	add := func(ch Channel, wanted bool, target string) {
		if !wanted {
			return
		}
		sender, ok := r.senders[ch]
		if !ok || strings.TrimSpace(target) == "" {
			skipped = append(skipped, ch)
			return
		}
		attempts = append(attempts, attempt{channel: ch, target: target, sender: sender})
	}

	add(ChannelPush, prefs.PushEnabled, prefs.PushSubscription)

	var contact Contact
	if prefs.EmailEnabled || opts.SMS || opts.WhatsApp {
		contact = r.resolveContact(ctx, userID)
	}
	add(ChannelEmail, prefs.EmailEnabled, contact.Email)
	add(ChannelSMS, opts.SMS, contact.Phone)
	add(ChannelWhatsApp, opts.WhatsApp, contact.Phone)
	return attempts, skipped
}

func (r *Router) resolveContact(ctx context.Context, userID string) Contact {
	if r.directory == nil {
		return Contact{}
	}
	c, err := r.directory.Contact(ctx, userID)
	if err != nil {
		logging.WarnWithContext(r.logger, "contact lookup failed", "contact_lookup_failed",
			logging.String(logging.FieldUserID, userID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "email and phone channels skipped"),
		)
		return Contact{}
	}
	if c == nil {
		return Contact{}
	}
	return *c
}

func (r *Router) sendWithTimeout(ctx context.Context, a attempt, p Payload) error {
	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("sender panic: %v", rec)
			}
		}()
		done <- a.sender.Send(ctx, a.target, p)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "notifications", "send", string(a.channel), ctx.Err())
	}
}

// Get returns the notification with id.
func (r *Router) Get(ctx context.Context, id string) (*store.Notification, error) {
	n, err := r.store.GetNotification(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "notifications", "get", "load notification", err)
	}
	if n == nil {
		return nil, services.Wrap(services.ErrNotFound, "notifications", "get", "notification "+id, nil)
	}
	return n, nil
}

// MarkRead marks one notification read and returns the number of rows
// changed. Marking an already-read notification returns 0.
func (r *Router) MarkRead(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, services.Wrap(services.ErrInvalidArgument, "notifications", "mark_read", "notification id is required", nil)
	}
	changed, err := r.store.MarkNotificationRead(ctx, id, r.clock.Now())
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "notifications", "mark_read", "update notification", err)
	}
	if changed == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return 0, err
		}
	}
	return changed, nil
}

// MarkAllRead marks every unread notification of userID read.
func (r *Router) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, services.Wrap(services.ErrInvalidArgument, "notifications", "mark_all_read", "user id is required", nil)
	}
	changed, err := r.store.MarkAllNotificationsRead(ctx, userID, r.clock.Now())
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "notifications", "mark_all_read", "update notifications", err)
	}
	return changed, nil
}

// List returns notifications of userID newest first.
func (r *Router) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*store.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, services.Wrap(services.ErrInvalidArgument, "notifications", "list", "user id is required", nil)
	}
	out, err := r.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "notifications", "list", "query notifications", err)
	}
	return out, nil
}

// UnreadCount returns how many notifications of userID are unread.
func (r *Router) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := r.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "notifications", "unread_count", "count notifications", err)
	}
	return n, nil
}

func normalizeDraft(d Draft) Draft {
	d.UserID = strings.TrimSpace(d.UserID)
	d.Type = strings.TrimSpace(d.Type)
	d.Priority = strings.TrimSpace(d.Priority)
	d.Title = strings.TrimSpace(d.Title)
	d.Message = strings.TrimSpace(d.Message)
	return d
}

func validateDraft(d Draft) error {
	var missing []string
	if d.UserID == "" {
		missing = append(missing, "userId")
	}
	if d.Type == "" {
		missing = append(missing, "type")
	}
	if d.Priority == "" {
		missing = append(missing, "priority")
	}
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrInvalidArgument, "notifications", "create",
			"missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if !ValidType(d.Type) {
		return services.Wrap(services.ErrInvalidArgument, "notifications", "create", "unknown type "+d.Type, nil)
	}
	if !ValidPriority(d.Priority) {
		return services.Wrap(services.ErrInvalidArgument, "notifications", "create", "unknown priority "+d.Priority, nil)
	}
	return nil
}

// Channels lists the channels this router can deliver on, in-app first.
func (r *Router) Channels() []Channel {
	out := []Channel{ChannelInApp}
	for _, ch := range []Channel{ChannelPush, ChannelEmail, ChannelSMS, ChannelWhatsApp} {
		if _, ok := r.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
