// Command ptdump simulates the kernel's boot memory pipeline on the host and
// dumps the resulting page tables.
package main

import (
	"fmt"
	"io"
	"os"

	"baremetal/kernel/kfmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

const usage = `ptdump builds boot and kernel page tables for a machine layout using simulated RAM and prints or renders the result.`

const (
	layoutFlag  = "layout"
	verboseFlag = "verbose"
	bootFlag    = "boot"
	outFlag     = "out"
	cellFlag    = "cell"
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})

	log.SetOutput(os.Stderr)

	log.SetLevel(log.WarnLevel)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var kernelLog io.WriteCloser

	app := cli.NewApp()
	app.Name = "ptdump"
	app.Usage = usage
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    verboseFlag,
			Aliases: []string{"v"},
			Usage:   "Optional: verbose output, including kernel log messages",
		},
	}
	app.Commands = []*cli.Command{
		newMapCommand(),
		newTranslateCommand(),
		newRenderCommand(),
	}
	app.Before = func(cliCtx *cli.Context) error {
		if cliCtx.Bool(verboseFlag) {
			log.SetLevel(log.DebugLevel)
		}

		kernelLog = log.WithField("src", "kernel").WriterLevel(log.DebugLevel)
		kfmt.SetOutputSink(kernelLog)
		return nil
	}
	app.After = func(*cli.Context) error {
		if kernelLog == nil {
			return nil
		}

		kfmt.SetOutputSink(nil)
		return kernelLog.Close()
	}

	return app
}

// newLayoutFlag returns the --layout flag used by every command.
func newLayoutFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     layoutFlag,
		Aliases:  []string{"l"},
		Usage:    "Required: path to the TOML machine layout",
		Required: true,
	}
}

func newBootFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  bootFlag,
		Usage: "Optional: use the boot address space instead of the kernel address space",
	}
}

// simulateLayout loads the layout named by the command flags and runs the
// simulation.
func simulateLayout(cliCtx *cli.Context) (*Simulation, error) {
	cfg, err := LoadLayout(cliCtx.String(layoutFlag))
	if err != nil {
		return nil, err
	}

	sim, err := Simulate(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "simulation failed")
	}
	return sim, nil
}

func newMapCommand() *cli.Command {
	return &cli.Command{
		Name:  "map",
		Usage: "print the coalesced mappings of the simulated address space",
		Flags: []cli.Flag{newLayoutFlag(), newBootFlag()},
		Action: func(cliCtx *cli.Context) error {
			sim, err := simulateLayout(cliCtx)
			if err != nil {
				return err
			}
			defer sim.Close()

			as := sim.KernelAddressSpace()
			if cliCtx.Bool(bootFlag) {
				as = sim.BootAddressSpace()
			}

			out := cliCtx.App.Writer
			for _, run := range Runs(as) {
				fmt.Fprintln(out, run)
			}

			stats := sim.Stats()
			fmt.Fprintf(out, "pages: %d total, %d used, %d free; tables: %d boot, %d kernel\n",
				stats.TotalPages, stats.UsedPages, stats.FreePages, stats.BootTables, stats.KernelTables)
			return nil
		},
	}
}

func newTranslateCommand() *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Usage:     "translate virtual addresses using the simulated address space",
		ArgsUsage: "ADDR...",
		Flags:     []cli.Flag{newLayoutFlag(), newBootFlag()},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.NArg() == 0 {
				return errors.New("at least one address is required")
			}

			sim, err := simulateLayout(cliCtx)
			if err != nil {
				return err
			}
			defer sim.Close()

			out := cliCtx.App.Writer
			for _, arg := range cliCtx.Args().Slice() {
				virt, err := parseAddr(arg)
				if err != nil {
					return err
				}

				res, err := sim.Translate(virt, cliCtx.Bool(bootFlag))
				if err != nil {
					log.WithError(err).Debug("translation failed")
					fmt.Fprintf(out, "0x%016x -> unmapped\n", virt)
					continue
				}

				fmt.Fprintf(out, "0x%016x -> 0x%016x %s %s (level %d)\n", virt, res.PhysAddr, res.Perm, res.Attr, res.Level)
			}
			return nil
		},
	}
}

func newRenderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "render the RAM frame usage of the simulation as a PNG image",
		Flags: []cli.Flag{
			newLayoutFlag(),
			&cli.StringFlag{
				Name:     outFlag,
				Aliases:  []string{"o"},
				Usage:    "Required: output PNG path",
				Required: true,
			},
			&cli.IntFlag{
				Name:  cellFlag,
				Usage: "Optional: size in pixels of the square drawn for each frame",
				Value: 4,
			},
		},
		Action: func(cliCtx *cli.Context) error {
			sim, err := simulateLayout(cliCtx)
			if err != nil {
				return err
			}
			defer sim.Close()

			states := sim.FrameStates()
			if err := SaveFrameMap(states, cliCtx.Int(cellFlag), cliCtx.String(outFlag)); err != nil {
				return err
			}

			counts := CountStates(states)
			log.WithFields(log.Fields{
				"free":       counts[FrameFree],
				"used":       counts[FrameUsed],
				"table":      counts[FrameTable],
				"boot-table": counts[FrameBootTable],
				"reserved":   counts[FrameReserved],
			}).Debug("frame map rendered")

			fmt.Fprintf(cliCtx.App.Writer, "wrote %d frames to %s\n", len(states), cliCtx.String(outFlag))
			return nil
		},
	}
}
