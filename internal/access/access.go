package access

import (
	"context"

	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

// Reader provides the read-only operations the CLI can serve with or without
// a running daemon.
type Reader interface {
	Entity(ctx context.Context, id string) (*api.Entity, error)
	History(ctx context.Context, entityID string) ([]api.StageInterval, error)
	Timeline(ctx context.Context, subjectID, before string, limit int) (*api.TimelinePage, error)
	Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) (*api.NotificationList, error)
}

// NewIPCReader returns a Reader backed by daemon IPC.
func NewIPCReader(client *ipc.Client) Reader {
	return &ipcReader{client: client}
}

// NewServiceReader returns a Reader backed by an in-process service.
func NewServiceReader(svc *api.Service) Reader {
	return &serviceReader{service: svc}
}

type ipcReader struct {
	client *ipc.Client
}

func (r *ipcReader) Entity(_ context.Context, id string) (*api.Entity, error) {
	return r.client.Entity(id)
}

func (r *ipcReader) History(_ context.Context, entityID string) ([]api.StageInterval, error) {
	resp, err := r.client.History(entityID)
	if err != nil {
		return nil, err
	}
	return resp.Intervals, nil
}

func (r *ipcReader) Timeline(_ context.Context, subjectID, before string, limit int) (*api.TimelinePage, error) {
	return r.client.Timeline(ipc.TimelineRequest{SubjectID: subjectID, Before: before, Limit: limit})
}

func (r *ipcReader) Notifications(_ context.Context, userID string, unreadOnly bool, limit int) (*api.NotificationList, error) {
	return r.client.Notifications(ipc.NotificationsRequest{UserID: userID, UnreadOnly: unreadOnly, Limit: limit})
}

type serviceReader struct {
	service *api.Service
}

func (r *serviceReader) Entity(ctx context.Context, id string) (*api.Entity, error) {
	e, err := r.service.Entity(ctx, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *serviceReader) History(ctx context.Context, entityID string) ([]api.StageInterval, error) {
	return r.service.History(ctx, entityID)
}

func (r *serviceReader) Timeline(ctx context.Context, subjectID, before string, limit int) (*api.TimelinePage, error) {
	page, err := r.service.Timeline(ctx, subjectID, before, limit)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *serviceReader) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) (*api.NotificationList, error) {
	list, err := r.service.Notifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	return &list, nil
}
