package systemd

import (
	"errors"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
)

var ErrNoNotifySocket = errors.New("systemd-notify socket was not available")

// EntertainWatchdog sends a notification to the systemd watchdog
func EntertainWatchdog() error {
	log.Debug("Notifying systemd watchdog")
	return Notify(NotifyWatchdog)
}

// Notify sends the provided msg to the systemd socket
func Notify(msg string) error {
	name := os.Getenv(NotifySocketEnvVar)
	if name == "" {
		return ErrNoNotifySocket
	}

	// Abstract namespace sockets are announced with a leading @
	if name[0] == '@' {
		name = "\x00" + name[1:]
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	return err
}

// WatchdogInterval returns half the configured watchdog timeout, zero if the
// watchdog is disabled or meant for another process.
func WatchdogInterval() time.Duration {
	if pid := os.Getenv(WatchdogPIDEnvVar); pid != "" && pid != strconv.Itoa(os.Getpid()) {
		return 0
	}

	usec, err := strconv.ParseInt(os.Getenv(WatchdogEnvVar), 10, 64)
	if err != nil || usec <= 0 {
		return 0
	}

	return time.Duration(usec) * time.Microsecond / 2
}
