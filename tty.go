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
	"fmt"
	"time"

	"github.com/gdamore/tcell"
	"github.com/massung/chip-8/chip8"
)

// KeyHold is how long a key stays pressed after the terminal reported it.
// Terminals only report presses (and their auto-repeat), never releases.
const KeyHold = 250 * time.Millisecond

// LogLines is the height of the log panel below the screen.
const LogLines = 10

// terminal is the tcell front end. Two pixel rows share a character cell.
type terminal struct {
	vm     *chip8.VM
	screen tcell.Screen
	log    *Logger

	// events are polled on their own goroutine and consumed by
	// ProcessEvents, so the VM is only touched from the run loop.
	events chan tcell.Event

	// done is closed by Close to stop the poller, which closes stopped.
	done    chan struct{}
	stopped chan struct{}

	// held is the release deadline of each pressed key.
	held [chip8.KeyCount]time.Time

	sound bool
}

// newTerminal takes over the terminal to show the VM.
func newTerminal(vm *chip8.VM, log *Logger) (*terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("creating terminal screen: %w", err)
	}

	return newTerminalScreen(screen, vm, log)
}

// newTerminalScreen shows the VM on an uninitialized screen.
func newTerminalScreen(screen tcell.Screen, vm *chip8.VM, log *Logger) (*terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal screen: %w", err)
	}

	screen.HideCursor()
	screen.Clear()

	t := &terminal{
		vm:      vm,
		screen:  screen,
		log:     log,
		events:  make(chan tcell.Event, 64),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go t.pollEvents()

	return t, nil
}

// pollEvents forwards terminal events until the screen is finalized.
func (t *terminal) pollEvents() {
	defer close(t.stopped)

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			close(t.events)
			return
		}

		// nobody drains events after Close
		select {
		case t.events <- ev:
		case <-t.done:
			return
		}
	}
}

// ProcessEvents handles pending key presses and releases held keys whose
// hold expired.
func (t *terminal) ProcessEvents() bool {
	now := time.Now()

	for pending := true; pending; {
		select {
		case ev, ok := <-t.events:
			if !ok || !t.handleEvent(ev, now) {
				return false
			}
		default:
			pending = false
		}
	}

	for key, deadline := range t.held {
		if !deadline.IsZero() && now.After(deadline) {
			t.vm.ReleaseKey(uint8(key))
			t.held[key] = time.Time{}
		}
	}

	return true
}

// handleEvent returns false if the event asks to quit.
func (t *terminal) handleEvent(ev tcell.Event, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			t.vm.Reset()
			t.held = [chip8.KeyCount]time.Time{}
			t.log.Log("Rebooted")
		case tcell.KeyPgUp:
			t.log.ScrollUp()
		case tcell.KeyPgDn:
			t.log.ScrollDown(LogLines)
		case tcell.KeyHome:
			t.log.Home()
		case tcell.KeyEnd:
			t.log.End()
		case tcell.KeyRune:
			if key, ok := keyForRune(ev.Rune()); ok {
				// auto-repeat extends the hold
				if t.held[key].IsZero() {
					t.vm.PressKey(key)
				}
				t.held[key] = now.Add(KeyHold)
			}
		}
	case *tcell.EventResize:
		t.screen.Sync()
	}

	return true
}

// Refresh redraws the screen, status line and log panel.
func (t *terminal) Refresh() {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	// the screen, boxed
	box(t.screen, 0, 0, chip8.ScreenWidth+1, chip8.ScreenHeight/2+1)

	video := t.vm.Framebuffer()
	t.vm.ClearDirty()

	for y := 0; y < chip8.ScreenHeight; y += 2 {
		for x := 0; x < chip8.ScreenWidth; x++ {
			top := video[y*chip8.ScreenWidth+x] != 0
			bottom := video[(y+1)*chip8.ScreenWidth+x] != 0

			t.screen.SetContent(x+1, y/2+1, halfBlock(top, bottom), nil, style)
		}
	}

	// status line
	status := "          "
	if t.sound {
		status = "BEEP      "
	}
	if t.vm.Waiting() {
		status += "waiting for key"
	}
	clearRect(t.screen, 1, chip8.ScreenHeight/2+2, chip8.ScreenWidth, 1)
	drawString(t.screen, 1, chip8.ScreenHeight/2+2, style, status)

	// log panel
	y := chip8.ScreenHeight/2 + 3

	box(t.screen, 0, y, chip8.ScreenWidth+1, LogLines+1)
	clearRect(t.screen, 1, y+1, chip8.ScreenWidth, LogLines)

	for i, line := range t.log.Window(LogLines) {
		if len(line) > chip8.ScreenWidth {
			line = line[:chip8.ScreenWidth-3] + "..."
		}
		drawString(t.screen, 1, y+1+i, style, line)
	}

	t.screen.Show()
}

// Sound shows the tone in the status line.
func (t *terminal) Sound(on bool) {
	t.sound = on
}

// Close gives the terminal back.
func (t *terminal) Close() {
	close(t.done)
	t.screen.Fini()
	<-t.stopped
}

// halfBlock returns the character showing a top and a bottom pixel.
func halfBlock(top, bottom bool) rune {
	switch {
	case top && bottom:
		return '█'
	case top:
		return '▀'
	case bottom:
		return '▄'
	}
	return ' '
}

func drawString(s tcell.Screen, x, y int, style tcell.Style, str string) {
	for _, c := range str {
		s.SetContent(x, y, c, nil, style)
		x++
	}
}

func box(s tcell.Screen, x, y, w, h int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorGray)

	// corners
	s.SetContent(x, y, tcell.RuneULCorner, nil, style)
	s.SetContent(x+w, y, tcell.RuneURCorner, nil, style)
	s.SetContent(x, y+h, tcell.RuneLLCorner, nil, style)
	s.SetContent(x+w, y+h, tcell.RuneLRCorner, nil, style)

	// top/bottom
	for col := x + 1; col < x+w; col++ {
		s.SetContent(col, y, tcell.RuneHLine, nil, style)
		s.SetContent(col, y+h, tcell.RuneHLine, nil, style)
	}

	// left/right
	for row := y + 1; row < y+h; row++ {
		s.SetContent(x, row, tcell.RuneVLine, nil, style)
		s.SetContent(x+w, row, tcell.RuneVLine, nil, style)
	}
}

func clearRect(s tcell.Screen, x, y, w, h int) {
	for col := x; col < x+w; col++ {
		for row := y; row < y+h; row++ {
			s.SetContent(col, row, ' ', nil, tcell.StyleDefault)
		}
	}
}
