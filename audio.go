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

const (
	// SampleRate of the tone in Hz.
	SampleRate = 24000

	// ToneFrequency of the square wave in Hz. A timer tick holds a whole
	// number of periods so queued ticks join without clicks.
	ToneFrequency = 480
)

// initAudio opens a queued audio device and builds the tone samples.
func (w *window) initAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     SampleRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  512,
	}

	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}

	w.audio = dev
	w.tone = squareWave(SampleRate/chip8.TimerRate, ToneFrequency, SampleRate)

	return nil
}

// squareWave returns n unsigned 8-bit samples of a square wave.
func squareWave(n, frequency, sampleRate int) []byte {
	samples := make([]byte, n)

	for i := range samples {
		if i*frequency*2/sampleRate%2 == 0 {
			samples[i] = 0xA0
		} else {
			samples[i] = 0x60
		}
	}

	return samples
}

// Sound keeps the tone queued while on, and silences it when off.
func (w *window) Sound(on bool) {
	if w.audio == 0 {
		return
	}

	if !on {
		sdl.PauseAudioDevice(w.audio, true)
		sdl.ClearQueuedAudio(w.audio)
		return
	}

	// keep about two ticks of tone queued
	if sdl.GetQueuedAudioSize(w.audio) < uint32(2*len(w.tone)) {
		if err := sdl.QueueAudio(w.audio, w.tone); err != nil {
			w.logger.Error("Queueing audio failed", log.Err(err))
			return
		}
	}

	sdl.PauseAudioDevice(w.audio, false)
}

// closeAudio closes the audio device, if one was opened.
func (w *window) closeAudio() {
	if w.audio != 0 {
		sdl.CloseAudioDevice(w.audio)
		w.audio = 0
	}
}
