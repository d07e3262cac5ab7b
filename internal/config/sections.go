package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
)

type DaemonConfig struct {
	Debug         bool   `toml:"debug"`
	Socket        string `toml:"socket" comment:"unix socket the command surface listens on"`
	MetricsListen string `toml:"metrics_listen,omitempty" comment:"host:port for the prometheus endpoint, empty disables it"`
}

type DaemonConfigManager struct {
	BaseConfigManager[DaemonConfig]
}

func verifyDaemon(d DaemonConfig) error {
	if d.Socket == "" || !filepath.IsAbs(d.Socket) {
		return fmt.Errorf("socket path %q must be absolute", d.Socket)
	}

	if d.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(d.MetricsListen); err != nil {
			return fmt.Errorf("invalid metrics listen address: %w", err)
		}
	}

	return nil
}

func NewDaemonConfigManager(config *DaemonConfig, mgr *Manager) *DaemonConfigManager {
	return &DaemonConfigManager{BaseConfigManager[DaemonConfig]{conf: config, mgr: mgr, check: verifyDaemon}}
}

type HubConfig struct {
	Present           bool         `toml:"present" comment:"false if the modem is wired to the host without a hub"`
	VendorID          HexID        `toml:"vid"`
	ProductID         HexID        `toml:"pid"`
	UhubctlBinary     string       `toml:"uhubctl,omitempty"`
	Location          string       `toml:"location" comment:"uhubctl hub location of the port feeding the modem"`
	Port              int          `toml:"port"`
	RootHubPath       string       `toml:"root_hub_path,omitempty" comment:"sysfs directory of the root hub, e.g. /sys/bus/usb/devices/usb1"`
	AutosuspendDelay  TOMLDuration `toml:"autosuspend_delay"`
	ActivationTimeout TOMLDuration `toml:"activation_timeout"`
}

type HubConfigManager struct {
	BaseConfigManager[HubConfig]
}

func verifyHub(h HubConfig) error {
	if !h.Present {
		return nil
	}

	if h.Location == "" || h.Port <= 0 {
		return errors.New("hub present but no port location configured")
	}

	if h.ActivationTimeout.Value() < 0 || h.AutosuspendDelay.Value() < 0 {
		return errors.New("negative hub timing")
	}

	return nil
}

func NewHubConfigManager(config *HubConfig, mgr *Manager) *HubConfigManager {
	return &HubConfigManager{BaseConfigManager[HubConfig]{conf: config, mgr: mgr, check: verifyHub}}
}

type ModemConfig struct {
	VendorID  HexID  `toml:"vid"`
	ProductID HexID  `toml:"pid"`
	SysfsPath string `toml:"sysfs_path,omitempty" comment:"sysfs directory of the modem for runtime pm"`
}

type ModemConfigManager struct {
	BaseConfigManager[ModemConfig]
}

func verifyModem(m ModemConfig) error {
	if m.VendorID == 0 || m.ProductID == 0 {
		return errors.New("modem vid and pid are mandatory")
	}

	return nil
}

func NewModemConfigManager(config *ModemConfig, mgr *Manager) *ModemConfigManager {
	return &ModemConfigManager{BaseConfigManager[ModemConfig]{conf: config, mgr: mgr, check: verifyModem}}
}

type LineBackend string

const (
	LineBackendSerial LineBackend = "serial"
	LineBackendSysfs  LineBackend = "sysfs"
)

// SupportedOptions lists the options for the config parser
func (b LineBackend) SupportedOptions() []LineBackend {
	return []LineBackend{
		LineBackendSerial,
		LineBackendSysfs,
	}
}

type LinesConfig struct {
	Backend      LineBackend  `toml:"backend" comment:"serial or sysfs"`
	Device       string       `toml:"device,omitempty" comment:"tty whose modem control lines are used by the serial backend"`
	GPIORoot     string       `toml:"gpio_root,omitempty"`
	HostWake     string       `toml:"host_wake"`
	LinkActive   string       `toml:"link_active"`
	SlaveWake    string       `toml:"slave_wake"`
	PollInterval TOMLDuration `toml:"poll_interval"`
}

type LinesConfigManager struct {
	BaseConfigManager[LinesConfig]
}

func verifyLines(l LinesConfig) error {
	switch l.Backend {
	case LineBackendSerial:
		if l.Device == "" {
			return errors.New("serial line backend needs a device")
		}
	case LineBackendSysfs:
	default:
		return fmt.Errorf("unsupported line backend %q, options: %v", l.Backend, l.Backend.SupportedOptions())
	}

	if l.HostWake == "" || l.LinkActive == "" || l.SlaveWake == "" {
		return errors.New("all three signal lines must be named")
	}

	return nil
}

func NewLinesConfigManager(config *LinesConfig, mgr *Manager) *LinesConfigManager {
	return &LinesConfigManager{BaseConfigManager[LinesConfig]{conf: config, mgr: mgr, check: verifyLines}}
}

type SuspendConfig struct {
	Logind bool `toml:"logind" comment:"follow systemd-logind suspend notifications"`
}

type SuspendConfigManager struct {
	BaseConfigManager[SuspendConfig]
}

func verifySuspend(SuspendConfig) error {
	return nil
}

func NewSuspendConfigManager(config *SuspendConfig, mgr *Manager) *SuspendConfigManager {
	return &SuspendConfigManager{BaseConfigManager[SuspendConfig]{conf: config, mgr: mgr, check: verifySuspend}}
}
