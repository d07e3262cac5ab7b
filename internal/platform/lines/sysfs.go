package lines

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LeoCommon/linkpm/internal/linkpm"
)

// DefaultGPIORoot is where the kernel exports GPIOs
const DefaultGPIORoot = "/sys/class/gpio"

// Sysfs drives lines through exported GPIO value files. Line ids are the
// exported directory names like "gpio17".
type Sysfs struct {
	root string
}

func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = DefaultGPIORoot
	}

	return &Sysfs{root: root}
}

func (s *Sysfs) valuePath(line linkpm.LineID) (string, error) {
	name := string(line)
	if name == "" || strings.ContainsAny(name, "/.") {
		return "", NewUnknownLineError(line)
	}

	return filepath.Join(s.root, name, "value"), nil
}

func (s *Sysfs) Set(line linkpm.LineID, high bool) error {
	path, err := s.valuePath(line)
	if err != nil {
		return err
	}

	value := "0"
	if high {
		value = "1"
	}

	if err := os.WriteFile(path, []byte(value), 0); err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}
	return nil
}

func (s *Sysfs) Get(line linkpm.LineID) (bool, error) {
	path, err := s.valuePath(line)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", line, err)
	}

	switch strings.TrimSpace(string(data)) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}

	return false, fmt.Errorf("get %s: unexpected value %q", line, strings.TrimSpace(string(data)))
}
