package access

import (
	"fmt"
	"log/slog"

	"crmflow/internal/api"
	"crmflow/internal/config"
	"crmflow/internal/engine"
	"crmflow/internal/ipc"
	"crmflow/internal/store"
)

// Session is a Reader and its cleanup function. Local is true when the
// daemon was unreachable and the database is read directly.
type Session struct {
	Reader Reader
	Local  bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// LocalOpener builds an in-process service and its cleanup function.
type LocalOpener func() (*api.Service, func() error, error)

// OpenWithFallback tries IPC-backed access first, then falls back to a
// service over the local database.
func OpenWithFallback(dial func() (*ipc.Client, error), openLocal LocalOpener) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{Reader: NewIPCReader(client), close: client.Close}, nil
		}
	}

	if openLocal == nil {
		return Session{}, fmt.Errorf("open local store: no opener configured")
	}
	svc, closeFn, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open local store: %w", err)
	}
	return Session{Reader: NewServiceReader(svc), Local: true, close: closeFn}, nil
}

// LocalService returns a LocalOpener over the database named by cfg. The
// engine is built but its reminder runner is never started.
func LocalService(cfg *config.Config, logger *slog.Logger) LocalOpener {
	return func() (*api.Service, func() error, error) {
		st, err := store.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		eng, err := engine.New(cfg, st, logger)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		return api.NewService(eng), st.Close, nil
	}
}
