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

package chip8

import "time"

// TimerRate is the frequency TickTimers must be called at, independent of the
// instruction rate.
const TimerRate = 60

// TimerPeriod is the time between two timer ticks.
const TimerPeriod = time.Second / TimerRate

// InstructionRate is the conventional number of instructions executed per
// second.
const InstructionRate = 700

// InstructionPeriod is the time between two steps at InstructionRate.
const InstructionPeriod = time.Second / InstructionRate

// TickTimers counts the delay and sound timers down toward zero. It returns
// true on the tick the sound timer runs out, which is the beep event for
// the audio collaborator.
func (vm *VM) TickTimers() (beep bool) {
	if vm.DT > 0 {
		vm.DT--
	}

	if vm.ST > 0 {
		if vm.ST == 1 {
			beep = true

			vm.logger.Debug("Beep")
		}

		vm.ST--
	}

	return beep
}
