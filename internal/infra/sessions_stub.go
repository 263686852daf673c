//go:build !windows

package infra

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// WTSSessionManager is unavailable outside Windows.
type WTSSessionManager struct {
	logger *zap.Logger
}

// NewSessionManager returns a manager whose operations fail with ErrUnsupportedPlatform.
func NewSessionManager(logger *zap.Logger) domain.SessionManager {
	return &WTSSessionManager{logger: logger}
}

// ListSessions is not supported on this platform.
func (m *WTSSessionManager) ListSessions(host string) ([]domain.Session, error) {
	return nil, fmt.Errorf("terminal sessions: %w", domain.ErrUnsupportedPlatform)
}

// LogoffUser is not supported on this platform.
func (m *WTSSessionManager) LogoffUser(host, user string) ([]uint32, error) {
	return nil, fmt.Errorf("terminal sessions: %w", domain.ErrUnsupportedPlatform)
}
