package motor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/motorlink/pkg/cli/sh"
)

// ParseSwitch parses on/off style arguments.
func ParseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true", "start", "enable":
		return true, nil
	case "off", "0", "false", "end", "disable":
		return false, nil
	}
	return false, fmt.Errorf("Invalid switch %q, expect on/off", arg)
}

var (
	// TelemetryCmd requests telemetry.
	TelemetryCmd = ishell.Cmd{
		Name:    "telemetry",
		Aliases: []string{"t", "data"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoTelemetry(c)
		}),
	}

	// OverrideCmd switches USB override.
	OverrideCmd = ishell.Cmd{
		Name:    "override",
		Aliases: []string{"o"},
		Help:    "on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("on/off required"))
				return
			}
			en, err := ParseSwitch(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Done(c, sh.ClientFrom(c).Override(en))
		}),
	}

	// DutyCmd sets duty cycle.
	DutyCmd = ishell.Cmd{
		Name:    "duty",
		Aliases: []string{"dc"},
		Help:    "DUTY(-1..1)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("DUTY required"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid DUTY: %v", err))
				return
			}
			sh.Done(c, sh.ClientFrom(c).SetDuty(val))
		}),
	}

	// CurrentCmd sets current.
	CurrentCmd = ishell.Cmd{
		Name:    "current",
		Aliases: []string{"i"},
		Help:    "CURRENT(A)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CURRENT required"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid CURRENT: %v", err))
				return
			}
			sh.Done(c, sh.ClientFrom(c).SetCurrent(val))
		}),
	}

	// ConsoleCmd passes a command line to the device console, for
	// device commands shadowed by shell commands.
	ConsoleCmd = ishell.Cmd{
		Name:    "console",
		Aliases: []string{"!"},
		Help:    "COMMAND [ARGS...]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoConsole(c, strings.Join(c.Args, " "))
		}),
	}
)

func init() {
	sh.AddCmds(
		&TelemetryCmd,
		&OverrideCmd,
		&DutyCmd,
		&CurrentCmd,
		&ConsoleCmd,
	)
}
