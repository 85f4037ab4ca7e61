package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// Publisher fans a payload out on a channel. persistence.Redis implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService delivers notification intents carried by domain events
// and serves each user's inbox. Delivery is best effort.
type NotificationService struct {
	dispatcher   events.Dispatcher
	store        repository.Store
	publisher    Publisher
	logger       *zap.Logger
	cfg          config.NotificationConfig
	storeTimeout time.Duration
	now          func() time.Time
}

// NotificationDependencies bundles collaborators. Publisher is optional.
type NotificationDependencies struct {
	Dispatcher   events.Dispatcher
	Store        repository.Store
	Publisher    Publisher
	Logger       *zap.Logger
	Config       config.NotificationConfig
	StoreTimeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:   deps.Dispatcher,
		store:        deps.Store,
		publisher:    deps.Publisher,
		logger:       logger.Named("notifications"),
		cfg:          deps.Config,
		storeTimeout: orTimeout(deps.StoreTimeout),
		now:          systemClock,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug("delivering notifications",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int("count", len(event.Notifications)),
	)
	for _, intent := range event.Notifications {
		if err := n.Deliver(ctx, intent); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("event_id", event.ID),
				zap.Int64("recipient_id", intent.RecipientID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Deliver stores intent in the recipient's inbox and announces it on the
// recipient's channel. Failures are returned as dependency errors.
func (n *NotificationService) Deliver(ctx context.Context, intent domain.NotificationIntent) error {
	notification := &domain.Notification{
		RecipientID: intent.RecipientID,
		TicketID:    intent.TicketID,
		Type:        intent.Type,
		Message:     intent.Message,
		Status:      domain.NotificationStatusPending,
	}
	err := bounded(ctx, n.storeTimeout, func(ctx context.Context) error {
		return n.store.Notifications().Create(ctx, notification)
	})
	if err != nil {
		return apperrors.NewDependencyError("notification store", err)
	}

	if n.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(notificationMessage{
		ID:       notification.ID,
		TicketID: notification.TicketID,
		Type:     notification.Type,
		Message:  notification.Message,
	})
	if err != nil {
		return apperrors.NewDependencyError("notification encoding", err)
	}
	if err := n.publisher.Publish(ctx, n.channel(intent.RecipientID), payload); err != nil {
		return apperrors.NewDependencyError("notification fan-out", err)
	}
	return nil
}

type notificationMessage struct {
	ID       int64                   `json:"id"`
	TicketID *int64                  `json:"ticket_id,omitempty"`
	Type     domain.NotificationType `json:"type"`
	Message  string                  `json:"message"`
}

func (n *NotificationService) channel(userID int64) string {
	prefix := strings.TrimSpace(n.cfg.RedisChannelPrefix)
	if prefix == "" {
		prefix = "notifications"
	}
	return fmt.Sprintf("%s:%d", prefix, userID)
}

// ListForUser returns the principal's inbox, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, principal domain.Principal, onlyPending bool, limit, offset int) ([]domain.Notification, error) {
	var list []domain.Notification
	err := bounded(ctx, n.storeTimeout, func(ctx context.Context) error {
		var err error
		list, err = n.store.Notifications().ListForUser(ctx, principal.UserID, onlyPending, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// PendingCount returns how many unread notifications the principal has.
func (n *NotificationService) PendingCount(ctx context.Context, principal domain.Principal) (int, error) {
	var count int
	err := bounded(ctx, n.storeTimeout, func(ctx context.Context) error {
		var err error
		count, err = n.store.Notifications().CountPending(ctx, principal.UserID)
		return err
	})
	return count, err
}

// MarkRead flags one of the principal's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, principal domain.Principal, id int64) error {
	err := bounded(ctx, n.storeTimeout, func(ctx context.Context) error {
		return n.store.Notifications().MarkRead(ctx, id, principal.UserID, n.now())
	})
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
	}
	return err
}
