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

	"github.com/massung/chip-8/chip8"
	"github.com/retroenv/retrogolib/log"
	"github.com/veandco/go-sdl2/sdl"
)

// Scale is the size of a CHIP-8 pixel in the window.
const Scale = 10

// window is the SDL front end.
type window struct {
	vm     *chip8.VM
	logger *log.Logger

	window   *sdl.Window
	renderer *sdl.Renderer

	// screen is the render target for the CHIP-8 video memory.
	screen *sdl.Texture

	// audio is the queued audio device, 0 if there is none.
	audio sdl.AudioDeviceID

	// tone is one timer tick of square wave samples.
	tone []byte
}

// newWindow initializes SDL and opens a window showing the VM.
func newWindow(vm *chip8.VM, logger *log.Logger, title string) (*window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("initializing sdl: %w", err)
	}

	w := &window{
		vm:     vm,
		logger: logger,
	}

	if err := w.initScreen(title); err != nil {
		w.Close()
		return nil, err
	}

	// the emulator is still usable without sound
	if err := w.initAudio(); err != nil {
		logger.Error("Audio unavailable", log.Err(err))
	}

	return w, nil
}

// initScreen creates the window, renderer and render target.
func (w *window) initScreen(title string) error {
	var err error

	w.window, err = sdl.CreateWindow("CHIP-8 - "+title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		chip8.ScreenWidth*Scale, chip8.ScreenHeight*Scale,
		sdl.WINDOW_SHOWN)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}

	w.renderer, err = sdl.CreateRenderer(w.window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	// create a render target for the display
	w.screen, err = w.renderer.CreateTexture(sdl.PIXELFORMAT_RGB888, sdl.TEXTUREACCESS_TARGET, chip8.ScreenWidth, chip8.ScreenHeight)
	if err != nil {
		return fmt.Errorf("creating screen texture: %w", err)
	}

	w.refreshScreen()
	return nil
}

// Refresh redraws the window, updating the screen if video memory changed.
func (w *window) Refresh() {
	if w.vm.Dirty() {
		w.refreshScreen()
		w.vm.ClearDirty()
	}

	// stretch the render target to fit
	if err := w.renderer.Copy(w.screen, nil, nil); err != nil {
		w.logger.Error("Copying screen failed", log.Err(err))
	}

	w.renderer.Present()
}

// refreshScreen renders the CHIP-8 video memory to the render target.
func (w *window) refreshScreen() {
	if err := w.renderer.SetRenderTarget(w.screen); err != nil {
		w.logger.Error("Setting render target failed", log.Err(err))
		return
	}

	// the background color for the screen
	_ = w.renderer.SetDrawColor(143, 145, 133, 255)
	_ = w.renderer.Clear()

	// set the pixel color
	_ = w.renderer.SetDrawColor(17, 29, 43, 255)

	video := w.vm.Framebuffer()

	// draw all the pixels
	for p, on := range video {
		if on != 0 {
			_ = w.renderer.DrawPoint(int32(p%chip8.ScreenWidth), int32(p/chip8.ScreenWidth))
		}
	}

	// restore the render target
	_ = w.renderer.SetRenderTarget(nil)
}

// Close destroys everything newWindow created and shuts down SDL.
func (w *window) Close() {
	w.closeAudio()

	if w.screen != nil {
		_ = w.screen.Destroy()
	}
	if w.renderer != nil {
		_ = w.renderer.Destroy()
	}
	if w.window != nil {
		_ = w.window.Destroy()
	}

	sdl.Quit()
}
