// SPDX-License-Identifier: MPL-2.0

//go:build windows

package pathreg

import (
	"errors"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	machineEnvKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
	userEnvKey    = `Environment`
	pathValue     = "Path"

	hwndBroadcast   = 0xffff
	wmSettingChange = 0x001A
	smtoAbortIfHung = 0x0002
)

//nolint:gochecknoglobals // Lazily bound user32 procedure.
var procSendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

// RegistryStore persists the search path in the Windows registry, in the
// machine scope when Machine is set and the user scope otherwise.
type RegistryStore struct {
	Machine bool
}

// DefaultStore returns the machine-wide store when privileged and the
// per-user store otherwise.
func DefaultStore(privileged bool) (Store, error) {
	return &RegistryStore{Machine: privileged}, nil
}

// Location implements Store.
func (s *RegistryStore) Location() string {
	if s.Machine {
		return `HKLM\` + machineEnvKey
	}
	return `HKCU\` + userEnvKey
}

func (s *RegistryStore) open(access uint32) (registry.Key, error) {
	if s.Machine {
		return registry.OpenKey(registry.LOCAL_MACHINE, machineEnvKey, access)
	}
	return registry.OpenKey(registry.CURRENT_USER, userEnvKey, access)
}

// Load returns every entry of the persisted Path value.
func (s *RegistryStore) Load() ([]string, error) {
	k, err := s.open(registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() { _ = k.Close() }()

	raw, _, err := k.GetStringValue(pathValue)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, d := range strings.Split(raw, ";") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs, nil
}

// Save writes dirs back as an expandable string and notifies running
// programs that the environment changed.
func (s *RegistryStore) Save(dirs []string) error {
	k, err := s.open(registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer func() { _ = k.Close() }()

	if err := k.SetExpandStringValue(pathValue, strings.Join(dirs, ";")); err != nil {
		return err
	}
	broadcastEnvironmentChange()
	return nil
}

func broadcastEnvironmentChange() {
	env, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	// Best effort.
	_, _, _ = procSendMessageTimeout.Call(
		hwndBroadcast,
		wmSettingChange,
		0,
		uintptr(unsafe.Pointer(env)),
		smtoAbortIfHung,
		5000,
		0,
	)
}
