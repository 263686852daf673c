//go:build windows

package infra

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/yusufpapurcu/wmi"
	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// sFalse is returned by CoInitializeEx when COM is already initialized on the thread.
const sFalse = 0x00000001

// WMIInventory implements domain.InventorySource over WMI/DCOM.
// Profiles are read from Win32_UserProfile and deleted with Delete_.
type WMIInventory struct {
	namespace string
	client    *wmi.Client
	logger    *zap.Logger
}

// NewWMIInventory creates a WMI-backed inventory source.
func NewWMIInventory(namespace string, logger *zap.Logger) domain.InventorySource {
	if namespace == "" {
		namespace = DefaultWMINamespace
	}
	return &WMIInventory{
		namespace: namespace,
		client: &wmi.Client{
			NonePtrZero:        true,
			PtrNil:             true,
			AllowMissingFields: true,
		},
		logger: logger,
	}
}

// ListProfiles queries Win32_UserProfile on host, excluding special profiles.
func (w *WMIInventory) ListProfiles(ctx context.Context, host string) ([]domain.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []win32UserProfile
	query := "SELECT SID, LocalPath, LastUseTime, Loaded FROM Win32_UserProfile " + profileQueryWhere
	if err := w.client.Query(query, &rows, connectHost(host), w.namespace); err != nil {
		return nil, fmt.Errorf("failed to query Win32_UserProfile on %s: %w", host, err)
	}

	profiles := make([]domain.ProfileRecord, 0, len(rows))
	for _, row := range rows {
		record, ok := row.toProfileRecord()
		if !ok {
			w.logger.Debug("discarding profile without derivable name",
				zap.String("host", host),
				zap.String("sid", row.SID))
			continue
		}
		profiles = append(profiles, record)
	}

	w.logger.Debug("listed profiles",
		zap.String("host", host),
		zap.Int("count", len(profiles)))
	return profiles, nil
}

// DeleteProfile binds the Win32_UserProfile instance by SID and calls Delete_,
// which removes the profile directory and its registry entry.
func (w *WMIInventory) DeleteProfile(ctx context.Context, host string, profile domain.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// COM apartments are per OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || (oleErr.Code() != ole.S_OK && oleErr.Code() != sFalse) {
			return fmt.Errorf("failed to initialize COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return fmt.Errorf("failed to create SWbemLocator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("failed to query SWbemLocator: %w", err)
	}
	defer locator.Release()

	servicesRaw, err := oleutil.CallMethod(locator, "ConnectServer", connectHost(host), w.namespace)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	services := servicesRaw.ToIDispatch()
	defer servicesRaw.Clear()

	instanceRaw, err := oleutil.CallMethod(services, "Get", profileObjectPath(profile.SecurityID))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, profile.SecurityID)
		}
		return fmt.Errorf("failed to bind profile %s: %w", profile.SecurityID, err)
	}
	instance := instanceRaw.ToIDispatch()
	defer instanceRaw.Clear()

	if _, err := oleutil.CallMethod(instance, "Delete_"); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", profile.Name, err)
	}
	return nil
}

// Ensure WMIInventory implements domain.InventorySource.
var _ domain.InventorySource = (*WMIInventory)(nil)
