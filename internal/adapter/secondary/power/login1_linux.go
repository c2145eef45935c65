//go:build linux

package power

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
)

const (
	login1Dest    = "org.freedesktop.login1"
	login1Path    = dbus.ObjectPath("/org/freedesktop/login1")
	login1Inhibit = "org.freedesktop.login1.Manager.Inhibit"
)

// Login1 takes systemd-logind inhibitor locks. The lock lives as long as the
// returned file descriptor stays open.
type Login1 struct {
	Who string
}

// Acquire blocks sleep and idle until the lock is released.
func (l Login1) Acquire(reason string) (domain.PowerLock, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", err)
	}
	var fd dbus.UnixFD
	call := conn.Object(login1Dest, login1Path).Call(login1Inhibit, 0, "sleep:idle", l.Who, reason, "block")
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("inhibit: %w", err)
	}
	logging.Debugf("power: inhibitor fd %d held (%s)", fd, reason)
	return &inhibitor{fd: int(fd)}, nil
}

type inhibitor struct {
	fd   int
	once sync.Once
	err  error
}

func (i *inhibitor) Release() error {
	i.once.Do(func() {
		i.err = unix.Close(i.fd)
		logging.Debugf("power: inhibitor fd %d released", i.fd)
	})
	return i.err
}

// Default returns the logind manager.
func Default(who string) domain.PowerManager {
	return Login1{Who: who}
}
