// linkpmctl sends commands to a running link power manager
package main

import (
	"fmt"
	"os"

	"github.com/LeoCommon/linkpm/internal/config"
	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/alecthomas/kong"
)

// CLI definition & global flags
type CLI struct {
	Globals

	Debug bool `help:"Enable debug logging"`

	LinkActive        LinkActiveCmd        `cmd:"" name:"link-active" help:"Drive the link active line"`
	HostWake          HostWakeCmd          `cmd:"" name:"host-wake" help:"Show whether the modem asserts host wakeup"`
	Connected         ConnectedCmd         `cmd:"" help:"Show whether the modem is attached"`
	IsConnected       IsConnectedCmd       `cmd:"" name:"is-connected" help:"Show whether the link can carry traffic, kicks the hub if not"`
	PortOn            PortOnCmd            `cmd:"" name:"port-on" help:"Power the hub port after a modem boot"`
	PortOff           PortOffCmd           `cmd:"" name:"port-off" help:"Disconnect the link and power the hub port off"`
	BlockAutosuspend  BlockAutosuspendCmd  `cmd:"" name:"block-autosuspend" help:"Keep the modem from autosuspending"`
	EnableAutosuspend EnableAutosuspendCmd `cmd:"" name:"enable-autosuspend" help:"Let the modem autosuspend again"`
	Activate          ActivateCmd          `cmd:"" help:"Wait until the hub is active"`
	Status            StatusCmd            `cmd:"" help:"Show the hub state"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	log.Init(c.Debug)
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("linkpmctl"),
		kong.Description("Control the modem link power manager"),
		kong.UsageOnError(),
		kong.Vars{"socket": config.DefaultSocketPath},
	}, options...)

	return kong.New(cli, options...)
}

func main() {
	cli := CLI{}
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cli.out = os.Stdout
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "linkpmctl: %s\n", err)
		os.Exit(1)
	}
}
