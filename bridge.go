// This file is part of tsw-controller-bridge.
//
// tsw-controller-bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tsw-controller-bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tsw-controller-bridge.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/puyodead1/tsw-controller-bridge/commands"
	"github.com/puyodead1/tsw-controller-bridge/device"
	"github.com/puyodead1/tsw-controller-bridge/logger"
	"github.com/puyodead1/tsw-controller-bridge/paths"
	"github.com/puyodead1/tsw-controller-bridge/runtime"
)

func main() {
	if err := launch(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// launch dispatches on the optional calibrate subcommand; its absence enters
// the ordinary runtime orchestrator. Both run until the process receives an
// interrupt; the calibration wizard also stops when the operator enters q.
func launch(args []string, stdin *os.File, stdout *os.File) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	defaultConfigDir, err := paths.ResourcePath()
	if err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "calibrate" {
		fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
		configDir := fs.String("config-dir", defaultConfigDir, "directory to read and write mapping/calibration files")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		source := device.NewSDLSource()
		go func() {
			if err := source.Run(ctx); err != nil {
				logger.Logf("bridge", "device source exited: %v", err)
			}
		}()
		return commands.RunCalibrationMode(ctx, source, *configDir, stdin, stdout)
	}

	fs := flag.NewFlagSet("tsw-controller-bridge", flag.ExitOnError)
	configDir := fs.String("config-dir", defaultConfigDir, "directory to read mapping/calibration/profile files from")
	prefsPath := fs.String("prefs", "", "path to the persisted preferences file (defaults to <config-dir>/bridge.prefs)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *prefsPath == "" {
		*prefsPath = filepath.Join(*configDir, "bridge.prefs")
	}

	o, err := runtime.New(*configDir, *prefsPath)
	if err != nil {
		return err
	}

	logger.Logf("bridge", "starting with config dir %s", *configDir)
	return o.Run(ctx)
}
