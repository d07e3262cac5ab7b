// Package config loads and stores the daemon configuration file
package config

import (
	"flag"
	"os"
	"sync"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	ProductName = "linkpm"

	DefaultConfigPath = "/etc/" + ProductName + "/config.toml"
	DefaultSocketPath = "/run/" + ProductName + "/" + ProductName + ".sock"

	DefaultDebugModeValue = false
)

type CLIFlags struct {
	ConfigPath string
	Debug      bool
}

type MainConfig struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Hub     HubConfig     `toml:"hub"`
	Modem   ModemConfig   `toml:"modem"`
	Lines   LinesConfig   `toml:"lines"`
	Suspend SuspendConfig `toml:"suspend"`
}

type ConfigManager interface {
	lock()
	unlock()
	Verify() error
}

type ConfigManagerKey string

const (
	CMDaemon  ConfigManagerKey = "daemon"
	CMHub     ConfigManagerKey = "hub"
	CMModem   ConfigManagerKey = "modem"
	CMLines   ConfigManagerKey = "lines"
	CMSuspend ConfigManagerKey = "suspend"
)

type ConfigManagerStore map[ConfigManagerKey]ConfigManager

type Manager struct {
	mu sync.RWMutex

	// The actual config, never share this with other code
	config *MainConfig

	// The config manager store (pointers)
	store ConfigManagerStore

	// The config path
	path string
}

func managerOf[T ConfigManager](m *Manager, key ConfigManagerKey) T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[key].(T)
	if !ok {
		log.Panic("implementation mistake, config manager missing", zap.String("key", string(key)))
	}
	return cm
}

func (m *Manager) Daemon() *DaemonConfigManager {
	return managerOf[*DaemonConfigManager](m, CMDaemon)
}

func (m *Manager) Hub() *HubConfigManager {
	return managerOf[*HubConfigManager](m, CMHub)
}

func (m *Manager) Modem() *ModemConfigManager {
	return managerOf[*ModemConfigManager](m, CMModem)
}

func (m *Manager) Lines() *LinesConfigManager {
	return managerOf[*LinesConfigManager](m, CMLines)
}

func (m *Manager) Suspend() *SuspendConfigManager {
	return managerOf[*SuspendConfigManager](m, CMSuspend)
}

// Load reads the config at path on top of the defaults. A missing file is
// only accepted if acceptEmptyConfig is set.
func (m *Manager) Load(path string, acceptEmptyConfig bool) error {
	data, err := os.ReadFile(path)
	if err == nil {
		if err = toml.Unmarshal(data, m.config); err != nil {
			log.Error("failed to unmarshal config file", zap.Error(err))
			return err
		}
	}

	if err != nil && !acceptEmptyConfig {
		return err
	}

	// Store the load path
	m.path = path

	// Each config section manager gets his own locking primitive
	m.store = ConfigManagerStore{
		CMDaemon:  NewDaemonConfigManager(&m.config.Daemon, m),
		CMHub:     NewHubConfigManager(&m.config.Hub, m),
		CMModem:   NewModemConfigManager(&m.config.Modem, m),
		CMLines:   NewLinesConfigManager(&m.config.Lines, m),
		CMSuspend: NewSuspendConfigManager(&m.config.Suspend, m),
	}

	// Verify all configs contain the mandatory values
	for _, value := range m.store {
		if err := value.Verify(); err != nil {
			return err
		}
	}

	log.Debug("active config", zap.Any("config", m.config), zap.String("path", m.path))

	return nil
}

// Save locks all configs and writes it to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Lock all config managers
	for _, value := range m.store {
		value.lock()
	}

	// Unlock the config managers when we are done
	defer func() {
		for _, value := range m.store {
			value.unlock()
		}
	}()

	// Marshal the config, does not use getters, so no locking => safe
	configData, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.path, configData, 0644); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		return err
	}

	return nil
}

// Default returns a configuration for a SIM7600 behind a USB3503 hub with the
// sideband lines on sysfs GPIOs
func Default() *MainConfig {
	return &MainConfig{
		Daemon: DaemonConfig{
			Debug:  DefaultDebugModeValue,
			Socket: DefaultSocketPath,
		},
		Hub: HubConfig{
			Present:           true,
			VendorID:          0x0424,
			ProductID:         0x3503,
			UhubctlBinary:     "uhubctl",
			Location:          "1-1",
			Port:              1,
			RootHubPath:       "/sys/bus/usb/devices/usb1",
			AutosuspendDelay:  TOMLDuration(2 * time.Second),
			ActivationTimeout: TOMLDuration(2 * time.Second),
		},
		Modem: ModemConfig{
			VendorID:  0x1e0e,
			ProductID: 0x9001,
		},
		Lines: LinesConfig{
			Backend:      LineBackendSysfs,
			GPIORoot:     "/sys/class/gpio",
			HostWake:     "gpio17",
			LinkActive:   "gpio27",
			SlaveWake:    "gpio22",
			PollInterval: TOMLDuration(20 * time.Millisecond),
		},
		Suspend: SuspendConfig{
			Logind: true,
		},
	}
}

func NewManager() *Manager {
	return &Manager{
		mu:     sync.RWMutex{},
		store:  make(ConfigManagerStore),
		config: Default(),
	}
}

func ParseCLIFlags() CLIFlags {
	flags, _ := parseCLIFlags(flag.CommandLine, os.Args[1:])
	return flags
}

func parseCLIFlags(set *flag.FlagSet, args []string) (CLIFlags, error) {
	flags := CLIFlags{}

	set.StringVar(&flags.ConfigPath, "config", DefaultConfigPath, "relative or absolute path to the config file")
	set.BoolVar(&flags.Debug, "debug", DefaultDebugModeValue, "true if the debug logging should be enabled")

	err := set.Parse(args)
	return flags, err
}
