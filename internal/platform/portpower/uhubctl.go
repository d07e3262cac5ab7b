// Package portpower switches the VBUS of a single hub port
package portpower

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/LeoCommon/linkpm/pkg/misc"
	"go.uber.org/zap"
)

const DefaultBinary = "uhubctl"

// Uhubctl powers a hub port with the uhubctl tool
type Uhubctl struct {
	Binary   string
	Location string
	Port     int
}

func NewUhubctl(location string, port int) *Uhubctl {
	return &Uhubctl{
		Binary:   DefaultBinary,
		Location: location,
		Port:     port,
	}
}

func (u *Uhubctl) args(on bool) []string {
	return []string{"-l", u.Location, "-p", strconv.Itoa(u.Port), "-a", misc.OnOff(on)}
}

// Power switches the port on or off, it satisfies linkpm.PortPowerFunc
func (u *Uhubctl) Power(ctx context.Context, on bool) error {
	binary := u.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, u.args(on)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error("port power cmd failed",
			zap.String("location", u.Location),
			zap.Int("port", u.Port),
			zap.Bool("on", on),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", binary, strings.Join(u.args(on), " "), err)
	}

	log.Debug("port power cmd executed", zap.String("location", u.Location), zap.Int("port", u.Port), zap.Bool("on", on))
	return nil
}
