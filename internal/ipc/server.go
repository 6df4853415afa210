package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"crmflow/internal/api"
	"crmflow/internal/daemon"
	"crmflow/internal/logging"
	"crmflow/internal/services"
)

const serviceName = "CRMFlow"

// Server exposes daemon operations via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, api: d.Service(), logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun crmflow stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	api    *api.Service
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.StatusDTO()
	return nil
}

func (s *service) CreateEntity(req CreateEntityRequest, resp *api.Entity) error {
	out, err := s.api.CreateEntity(services.WithActor(s.ctx, req.Actor), req.Actor, req.Entity)
	*resp = out
	return err
}

func (s *service) Entity(req EntityRequest, resp *api.Entity) error {
	out, err := s.api.Entity(s.ctx, req.ID)
	*resp = out
	return err
}

func (s *service) Transition(req TransitionRequest, resp *api.TransitionResponse) error {
	ctx := services.WithEntityID(services.WithActor(s.ctx, req.Actor), req.EntityID)
	out, err := s.api.Transition(ctx, req.Actor, req.EntityID, req.Stage)
	*resp = out
	return err
}

func (s *service) History(req EntityRequest, resp *HistoryResponse) error {
	out, err := s.api.History(s.ctx, req.ID)
	resp.Intervals = out
	return err
}

func (s *service) Timeline(req TimelineRequest, resp *api.TimelinePage) error {
	out, err := s.api.Timeline(s.ctx, req.SubjectID, req.Before, req.Limit)
	*resp = out
	return err
}

func (s *service) AppendTimeline(req AppendTimelineRequest, resp *api.TimelineEvent) error {
	out, err := s.api.AppendTimeline(services.WithActor(s.ctx, req.Actor), req.Actor, req.Event)
	*resp = out
	return err
}

func (s *service) SendNotification(req SendNotificationRequest, resp *api.NotificationResponse) error {
	ctx := services.WithUserID(services.WithActor(s.ctx, req.Actor), req.Notification.UserID)
	out, err := s.api.SendNotification(ctx, req.Actor, req.Notification)
	*resp = out
	return err
}

func (s *service) Notifications(req NotificationsRequest, resp *api.NotificationList) error {
	out, err := s.api.Notifications(s.ctx, req.UserID, req.UnreadOnly, req.Limit)
	*resp = out
	return err
}

func (s *service) MarkRead(req MarkReadRequest, resp *api.MarkReadResponse) error {
	out, err := s.api.MarkRead(s.ctx, req.ID)
	*resp = out
	return err
}

func (s *service) MarkAllRead(req MarkAllReadRequest, resp *api.MarkReadResponse) error {
	out, err := s.api.MarkAllRead(s.ctx, req.UserID)
	*resp = out
	return err
}

func (s *service) SetPreferences(req SetPreferencesRequest, resp *api.Preference) error {
	out, err := s.api.SetPreferences(s.ctx, req.UserID, req.Preferences)
	*resp = out
	return err
}

func (s *service) UpsertUser(req api.UserRequest, resp *api.User) error {
	out, err := s.api.UpsertUser(s.ctx, req)
	*resp = out
	return err
}

func (s *service) AddEvent(req api.CalendarEventRequest, resp *api.CalendarEvent) error {
	out, err := s.api.AddCalendarEvent(s.ctx, req)
	*resp = out
	return err
}

func (s *service) SetReminder(req SetReminderRequest, resp *api.ReminderResponse) error {
	out, err := s.api.SetReminder(s.ctx, req.EventID, req.UserID, req.ReminderType)
	*resp = out
	return err
}

func (s *service) PollReminders(_ PollRequest, resp *api.PollResponse) error {
	out, err := s.api.PollReminders(s.ctx)
	*resp = out
	return err
}
