package systemd

const (
	NotifySocketEnvVar = "NOTIFY_SOCKET"
	NotifyWatchdog     = "WATCHDOG=1"
	NotifyStopping     = "STOPPING=1"
	NotifyReady        = "READY=1"

	// WatchdogEnvVar carries the watchdog interval in microseconds
	WatchdogEnvVar = "WATCHDOG_USEC"
	// WatchdogPIDEnvVar names the process the watchdog applies to
	WatchdogPIDEnvVar = "WATCHDOG_PID"
)
