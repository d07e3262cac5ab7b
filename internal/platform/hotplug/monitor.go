// Package hotplug follows USB bind and unbind uevents of the hub and the modem
package hotplug

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/DiscoResearchSat/go-udev/netlink"
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

// Device identifies a USB device by vendor and product id
type Device struct {
	VendorID  uint16
	ProductID uint16
}

func (d Device) String() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
}

// Handlers are called from the monitor goroutine
type Handlers struct {
	// HubEnumerated fires when the hub bound to its driver
	HubEnumerated func()
	// ModemAttached fires on modem bind (true) and unbind (false)
	ModemAttached func(attached bool)
}

type Monitor struct {
	hub      Device
	modem    Device
	handlers Handlers
}

func NewMonitor(hub, modem Device, handlers Handlers) *Monitor {
	return &Monitor{
		hub:      hub,
		modem:    modem,
		handlers: handlers,
	}
}

func ParseHexUINT16(str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(val), nil
}

// ParseProduct splits a uevent PRODUCT value like "1d50/6089/104" (VID/PID/REVISION)
func ParseProduct(product string) (Device, error) {
	s := strings.Split(product, "/")
	if len(s) < 2 {
		return Device{}, fmt.Errorf("malformed product string %q", product)
	}

	vid, err := ParseHexUINT16(s[0])
	if err != nil {
		return Device{}, fmt.Errorf("could not parse hex vid %q: %w", s[0], err)
	}

	pid, err := ParseHexUINT16(s[1])
	if err != nil {
		return Device{}, fmt.Errorf("could not parse hex pid %q: %w", s[1], err)
	}

	return Device{VendorID: vid, ProductID: pid}, nil
}

func matcher() netlink.Matcher {
	// BIND OR UNBIND
	matchRule := fmt.Sprintf("%s|%s", netlink.BIND, netlink.UNBIND)
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Action: &matchRule,
				Env: map[string]string{
					"DEVTYPE": "usb_device",
				},
			},
		},
	}
}

// Run connects to udev and dispatches events until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		log.Error("could not connect to udev, hotplug support not available", zap.Error(err))
		return err
	}
	defer conn.Close()

	// Buffered, a matcher compile error is reported before Monitor returns
	errs := make(chan error, 1)
	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := conn.Monitor(monitorCtx, errs, matcher())
	if queue == nil {
		return <-errs
	}

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			cancel()
			// The reader hands back its context error before closing the queue
			for {
				select {
				case _, ok := <-queue:
					if !ok {
						log.Info("stopped observing udev events")
						return nil
					}
				case <-errs:
				}
			}

		case uevent, ok := <-queue:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("udev monitor stopped: %w", lastErr)
			}
			m.handle(uevent)

		case err := <-errs:
			lastErr = err
			log.Error("udev monitor encountered an error", zap.Error(err))
		}
	}
}

func (m *Monitor) handle(uevent netlink.UEvent) {
	product, ok := uevent.Env["PRODUCT"]
	if !ok {
		log.Debug("device did not contain product indicator", zap.String("event", uevent.String()))
		return
	}

	dev, err := ParseProduct(product)
	if err != nil {
		log.Error("malformed product string", zap.String("product", product), zap.Error(err))
		return
	}

	bound := uevent.Action == netlink.BIND

	switch dev {
	case m.hub:
		log.Info("hub hotplug", zap.Stringer("device", dev), zap.Bool("bound", bound))
		if bound && m.handlers.HubEnumerated != nil {
			m.handlers.HubEnumerated()
		}
	case m.modem:
		log.Info("modem hotplug", zap.Stringer("device", dev), zap.Bool("bound", bound))
		if m.handlers.ModemAttached != nil {
			m.handlers.ModemAttached(bound)
		}
	default:
		log.Debug("no matching device found", zap.Stringer("device", dev))
	}
}
