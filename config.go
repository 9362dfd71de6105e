/* Copyright (c) 2017 Jeffrey Massung
 *
 * This software is provided 'as-is', without any express or implied
 * warranty.  In no event will the authors be held liable for any damages
 * arising from the use of this software.
 *
 * Permission is granted to anyone to use this software for any purpose,
 * including commercial applications, and to alter it and redistribute it
 * freely, subject to the following restrictions:
 *
 * 1. The origin of this software must not be misrepresented; you must not
 *    claim that you wrote the original software. If you use this software
 *    in a product, an acknowledgment in the product documentation would be
 *    appreciated but is not required.
 *
 * 2. Altered source versions must be plainly marked as such, and must not be
 *    misrepresented as being the original software.
 *
 * 3. This notice may not be removed or altered from any source distribution.
 */

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
)

// options are the command line settings.
type options struct {
	ROM   string
	TTY   bool
	Asm   bool
	Debug bool
	Quiet bool
}

// parseFlags parses the command line arguments, without the program name.
func parseFlags(args []string) (options, error) {
	var opts options

	flags := flag.NewFlagSet("chip8", flag.ContinueOnError)
	flags.BoolVar(&opts.TTY, "tty", false, "run in the terminal instead of a window")
	flags.BoolVar(&opts.Asm, "asm", false, "assemble the input file before running it")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging, including an instruction trace")
	flags.BoolVar(&opts.Quiet, "quiet", false, "only log errors")

	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: chip8 [options] [rom]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return opts, err
	}

	switch flags.NArg() {
	case 0:
	case 1:
		opts.ROM = flags.Arg(0)
	default:
		flags.Usage()
		return opts, errors.New("too many arguments")
	}

	return opts, nil
}

// createLogger creates a logger writing to w with the level selected on
// the command line.
func createLogger(opts options, w io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = w

	if opts.Debug {
		cfg.Level = log.DebugLevel
	} else if opts.Quiet {
		cfg.Level = log.ErrorLevel
	}

	// the log panel is narrow
	if _, ok := w.(*Logger); ok {
		cfg.TimeFormat = "-"
	}

	return log.NewWithConfig(cfg)
}
