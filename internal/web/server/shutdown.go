package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ShutdownHook is a function called during graceful shutdown, after the
// server stopped accepting requests
type ShutdownHook func(ctx context.Context) error

// RegisterHook registers a hook such as closing a database pool. Hooks run
// in registration order.
func (s *Server) RegisterHook(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Shutdown drains in-flight requests and runs the shutdown hooks. Hook
// failures do not stop later hooks; all errors are returned joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down", zap.Duration("timeout", s.config.ShutdownTimeout))

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for i, hook := range hooks {
		if err := hook(ctx); err != nil {
			s.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("server shutdown completed")
	return nil
}
