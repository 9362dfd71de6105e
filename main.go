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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/massung/chip-8/chip8"
	"github.com/retroenv/retrogolib/log"
	"github.com/sqweek/dialog"
)

// Frontend presents a running VM to the user.
type Frontend interface {
	// ProcessEvents handles pending input and returns false once the user
	// asked to quit.
	ProcessEvents() bool

	// Refresh redraws the display.
	Refresh()

	// Sound turns the tone on or off. It is called on every timer tick.
	Sound(on bool)

	// Close releases the display, input and audio resources.
	Close()
}

// RefreshRate is how often the front end redraws the display.
const RefreshRate = 60

func init() {
	runtime.LockOSThread()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger := createLogger(opts, os.Stderr)

	if err := run(opts, logger); err != nil {
		logger.Error("Emulation failed", log.Err(err))
		os.Exit(1)
	}
}

// run loads the ROM and runs it until the user quits or the VM fails.
func run(opts options, logger *log.Logger) error {
	path, err := selectROM(opts)
	if err != nil {
		return err
	}

	var panel *Logger

	// the terminal is owned by the ui, so the vm logs into the panel
	if opts.TTY {
		panel = NewLog()
		logger = createLogger(opts, panel)
	}

	vm := chip8.New(chip8.WithLogger(logger))

	if err := loadROM(vm, path, opts.Asm); err != nil {
		return err
	}

	var frontend Frontend

	if opts.TTY {
		frontend, err = newTerminal(vm, panel)
	} else {
		frontend, err = newWindow(vm, logger, path)
	}
	if err != nil {
		return err
	}

	defer frontend.Close()

	showHelp(logger, opts.TTY)

	return loop(vm, frontend)
}

// loop runs the VM at a fixed instruction rate and ticks its timers at a
// fixed, independent rate.
func loop(vm *chip8.VM, frontend Frontend) error {
	clock := time.NewTicker(chip8.InstructionPeriod)
	defer clock.Stop()

	timers := time.NewTicker(chip8.TimerPeriod)
	defer timers.Stop()

	video := time.NewTicker(time.Second / RefreshRate)
	defer video.Stop()

	// loop until window closed or user quit
	for frontend.ProcessEvents() {
		select {
		case <-clock.C:
			if err := vm.Step(); err != nil {
				return err
			}
		case <-timers.C:
			tickTimers(vm, frontend)
		case <-video.C:
			frontend.Refresh()
		}
	}

	return nil
}

// tickTimers advances the VM timers and updates the tone. The tone follows
// the sound timer and stops on the tick it runs out.
func tickTimers(vm *chip8.VM, frontend Frontend) {
	if vm.TickTimers() {
		frontend.Sound(false)
		return
	}

	frontend.Sound(vm.Sounding())
}

// selectROM returns the ROM named on the command line, or asks for one.
func selectROM(opts options) (string, error) {
	if opts.ROM != "" {
		return opts.ROM, nil
	}

	if opts.TTY {
		return "", errors.New("no rom given")
	}

	path, err := openDialog()
	if errors.Is(err, dialog.ErrCancelled) {
		return "", errors.New("no rom selected")
	}
	return path, err
}

// openDialog asks the user to pick a ROM or assembly source file.
func openDialog() (string, error) {
	return dialog.File().
		Title("Load ROM").
		Filter("CHIP-8 ROM", "ch8", "c8").
		Filter("CHIP-8 assembly", "asm", "s").
		Load()
}

// isAssembly is true if the file extension marks assembly source.
func isAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asm", ".s":
		return true
	}
	return false
}

// loadROM loads a binary ROM into the VM, or assembles and loads source.
func loadROM(vm *chip8.VM, path string, asm bool) error {
	if !asm && !isAssembly(path) {
		return vm.LoadFile(path)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return &chip8.LoadError{Path: path, Err: err}
	}

	out, err := chip8.Assemble(source)
	if err != nil {
		return fmt.Errorf("assembling %s: %w", path, err)
	}

	if err := vm.Load(out.ROM); err != nil {
		return fmt.Errorf("assembling %s: %w", path, err)
	}
	return nil
}
