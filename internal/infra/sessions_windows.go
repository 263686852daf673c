//go:build windows

package infra

import (
	"fmt"
	"strings"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/profprune/internal/domain"
)

var (
	wtsapi32                        = windows.NewLazySystemDLL("wtsapi32.dll")
	procWTSOpenServerW              = wtsapi32.NewProc("WTSOpenServerW")
	procWTSCloseServer              = wtsapi32.NewProc("WTSCloseServer")
	procWTSQuerySessionInformationW = wtsapi32.NewProc("WTSQuerySessionInformationW")
	procWTSLogoffSession            = wtsapi32.NewProc("WTSLogoffSession")
)

const (
	wtsCurrentServerHandle = 0
	wtsUserName            = 5
	wtsDomainName          = 7
)

// WTSSessionManager implements domain.SessionManager with the Remote Desktop Services API.
type WTSSessionManager struct {
	logger *zap.Logger
}

// NewSessionManager creates a session manager for local or remote hosts.
func NewSessionManager(logger *zap.Logger) domain.SessionManager {
	return &WTSSessionManager{logger: logger}
}

// ListSessions enumerates terminal-server sessions on host.
func (m *WTSSessionManager) ListSessions(host string) (sessions []domain.Session, err error) {
	server, err := openServer(host)
	if err != nil {
		return nil, err
	}
	defer closeServer(server)

	var info *windows.WTS_SESSION_INFO
	var count uint32
	if err := windows.WTSEnumerateSessions(server, 0, 1, &info, &count); err != nil {
		return nil, fmt.Errorf("failed to enumerate sessions on %s: %w", host, err)
	}
	defer windows.WTSFreeMemory(uintptr(unsafe.Pointer(info)))

	entries := unsafe.Slice(info, count)
	for _, e := range entries {
		session := domain.Session{
			ID:    e.SessionID,
			State: sessionStateName(e.State),
		}
		if e.WindowStationName != nil {
			session.Station = windows.UTF16PtrToString(e.WindowStationName)
		}
		user, uerr := querySessionString(server, e.SessionID, wtsUserName)
		dom, derr := querySessionString(server, e.SessionID, wtsDomainName)
		if err := multierr.Append(uerr, derr); err != nil {
			m.logger.Debug("session user query failed", zap.Uint32("session", e.SessionID), zap.Error(err))
		}
		session.UserName = qualifiedUser(dom, user)
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// LogoffUser logs off every interactive session owned by user and returns their IDs.
func (m *WTSSessionManager) LogoffUser(host, user string) ([]uint32, error) {
	sessions, err := m.ListSessions(host)
	if err != nil {
		return nil, err
	}

	server, err := openServer(host)
	if err != nil {
		return nil, err
	}
	defer closeServer(server)

	var loggedOff []uint32
	var errs error
	for _, id := range SessionsForUser(sessions, user) {
		r1, _, callErr := procWTSLogoffSession.Call(uintptr(server), uintptr(id), 1)
		if r1 == 0 {
			m.logger.Warn("logoff failed", zap.Uint32("session", id), zap.String("user", user), zap.Error(callErr))
			errs = multierr.Append(errs, fmt.Errorf("session %d: %w", id, callErr))
			continue
		}
		m.logger.Info("logged off session", zap.Uint32("session", id), zap.String("user", user))
		loggedOff = append(loggedOff, id)
	}
	return loggedOff, errs
}

func openServer(host string) (windows.Handle, error) {
	if connectHost(host) == "." {
		return wtsCurrentServerHandle, nil
	}
	name, err := windows.UTF16PtrFromString(strings.TrimSpace(host))
	if err != nil {
		return 0, err
	}
	r1, _, err := procWTSOpenServerW.Call(uintptr(unsafe.Pointer(name)))
	if r1 == 0 {
		return 0, fmt.Errorf("failed to open terminal server %s: %w", host, err)
	}
	return windows.Handle(r1), nil
}

func closeServer(server windows.Handle) {
	if server != wtsCurrentServerHandle {
		procWTSCloseServer.Call(uintptr(server))
	}
}

func querySessionString(server windows.Handle, sessionID uint32, infoClass uintptr) (string, error) {
	var buf uintptr
	var size uint32
	r1, _, err := procWTSQuerySessionInformationW.Call(
		uintptr(server),
		uintptr(sessionID),
		infoClass,
		uintptr(unsafe.Pointer(&buf)),
		uintptr(unsafe.Pointer(&size)),
	)
	if r1 == 0 {
		return "", err
	}
	defer windows.WTSFreeMemory(buf)
	if buf == 0 {
		return "", nil
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(buf))), nil
}
