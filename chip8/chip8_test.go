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

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// newTestVM creates a VM with a fixed random seed and the given program
// words loaded at 0x200.
func newTestVM(t *testing.T, program ...uint16) *VM {
	t.Helper()

	rom := make([]byte, 0, len(program)*2)
	for _, inst := range program {
		rom = append(rom, byte(inst>>8), byte(inst))
	}

	vm := New(WithLogger(log.NewTestLogger(t)), WithRand(rand.New(rand.NewSource(1))))
	assert.NoError(t, vm.Load(rom))
	return vm
}

// run steps the VM n times, failing the test on any error.
func run(t *testing.T, vm *VM, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		assert.NoError(t, vm.Step())
	}
}

func TestInitialize(t *testing.T) {
	vm := newTestVM(t)

	assert.Equal(t, uint16(ProgramStart), vm.PC)
	assert.Equal(t, uint16(0), vm.I)
	assert.Equal(t, uint8(0), vm.SP)
	assert.False(t, vm.Waiting())
	assert.Equal(t, fontSet[:], vm.Memory[FontAddress:FontAddress+len(fontSet)])

	// glyph for 0 is the first glyph
	assert.Equal(t, uint16(0x050), GlyphAddress(0))
	assert.Equal(t, uint16(0x050+15*5), GlyphAddress(0xF))
	assert.Equal(t, uint16(0x050+5), GlyphAddress(0x21))
}

func TestLoad(t *testing.T) {
	vm := newTestVM(t)

	assert.NoError(t, vm.Load([]byte{0x12, 0x34, 0x56}))
	assert.Equal(t, byte(0x12), vm.Memory[0x200])
	assert.Equal(t, byte(0x56), vm.Memory[0x202])

	// a program that exactly fills memory is fine
	assert.NoError(t, vm.Load(make([]byte, MaxROMSize)))

	err := vm.Load(make([]byte, MaxROMSize+1))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrROMTooLarge))

	var le *LoadError
	assert.True(t, errors.As(err, &le))
}

func TestLoadFile(t *testing.T) {
	vm := newTestVM(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "test.ch8")
	assert.NoError(t, os.WriteFile(path, []byte{0x60, 0x2A}, 0o644))
	assert.NoError(t, vm.LoadFile(path))
	run(t, vm, 1)
	assert.Equal(t, byte(0x2A), vm.V[0])

	missing := filepath.Join(dir, "missing.ch8")
	err := vm.LoadFile(missing)
	var le *LoadError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, missing, le.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	large := filepath.Join(dir, "large.ch8")
	assert.NoError(t, os.WriteFile(large, make([]byte, MaxROMSize+2), 0o644))
	err = vm.LoadFile(large)
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, large, le.Path)
	assert.True(t, errors.Is(err, ErrROMTooLarge))
}

func TestReadWord(t *testing.T) {
	vm := newTestVM(t, 0xABCD)

	w, err := vm.ReadWord(0x200)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), w)

	_, err = vm.ReadWord(0xFFE)
	assert.NoError(t, err)

	_, err = vm.ReadWord(0xFFF)
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, 0x1000, be.Address)
}

func TestLoadAndAddImmediate(t *testing.T) {
	for x := uint16(0); x < 0xF; x++ {
		for _, nn := range []uint16{0x00, 0x01, 0x7F, 0x80, 0xFF} {
			vm := newTestVM(t, 0x6000|x<<8|nn, 0x7000|x<<8|nn)
			vm.V[0xF] = 0x55

			run(t, vm, 2)

			assert.Equal(t, byte(nn+nn), vm.V[x])
			assert.Equal(t, byte(0x55), vm.Flag())
		}
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		inst   uint16
		vx, vy byte
		result byte
		flag   byte
	}{
		{"ld", 0x8120, 0x11, 0x22, 0x22, 0x99},
		{"or", 0x8121, 0xF0, 0x0F, 0xFF, 0x99},
		{"and", 0x8122, 0xF3, 0x3F, 0x33, 0x99},
		{"xor", 0x8123, 0xFF, 0x0F, 0xF0, 0x99},
		{"add overflow", 0x8124, 0xFF, 0x01, 0x00, 1},
		{"add", 0x8124, 0x10, 0x20, 0x30, 0},
		{"sub borrow", 0x8125, 0x01, 0x02, 0xFF, 0},
		{"sub", 0x8125, 0x05, 0x02, 0x03, 1},
		{"sub equal", 0x8125, 0x05, 0x05, 0x00, 1},
		{"shr odd", 0x8126, 0x03, 0x00, 0x01, 1},
		{"shr even", 0x8126, 0x04, 0x00, 0x02, 0},
		{"subn borrow", 0x8127, 0x02, 0x01, 0xFF, 0},
		{"subn", 0x8127, 0x02, 0x05, 0x03, 1},
		{"shl high", 0x812E, 0x81, 0x00, 0x02, 1},
		{"shl low", 0x812E, 0x41, 0x00, 0x82, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, tt.inst)
			vm.V[1] = tt.vx
			vm.V[2] = tt.vy
			vm.V[0xF] = 0x99

			run(t, vm, 1)

			assert.Equal(t, tt.result, vm.V[1])
			assert.Equal(t, tt.flag, vm.Flag())
			assert.Equal(t, uint16(0x202), vm.PC)
		})
	}
}

func TestFlagRegisterAsOperand(t *testing.T) {
	// the flag is written after the result, so VF holds the flag
	vm := newTestVM(t, 0x8F14)
	vm.V[0xF] = 0xFF
	vm.V[1] = 0x01

	run(t, vm, 1)
	assert.Equal(t, byte(1), vm.V[0xF])
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name   string
		inst   uint16
		vx, vy byte
		key    bool
		skip   bool
	}{
		{"se byte", 0x3142, 0x42, 0, false, true},
		{"se byte no", 0x3142, 0x41, 0, false, false},
		{"sne byte", 0x4142, 0x41, 0, false, true},
		{"sne byte no", 0x4142, 0x42, 0, false, false},
		{"se reg", 0x5120, 0x07, 0x07, false, true},
		{"se reg no", 0x5120, 0x07, 0x08, false, false},
		{"sne reg", 0x9120, 0x07, 0x08, false, true},
		{"sne reg no", 0x9120, 0x07, 0x07, false, false},
		{"skp", 0xE19E, 0x0A, 0, true, true},
		{"skp no", 0xE19E, 0x0A, 0, false, false},
		{"sknp", 0xE1A1, 0x0A, 0, false, true},
		{"sknp no", 0xE1A1, 0x0A, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, tt.inst)
			vm.V[1] = tt.vx
			vm.V[2] = tt.vy
			vm.SetKey(0x0A, tt.key)

			run(t, vm, 1)

			if tt.skip {
				assert.Equal(t, uint16(0x204), vm.PC)
			} else {
				assert.Equal(t, uint16(0x202), vm.PC)
			}
		})
	}
}

func TestJumpCallReturn(t *testing.T) {
	vm := newTestVM(t,
		0x2206, // 200: call 206
		0x1204, // 202: jp 204
		0x1204, // 204: jp 204
		0x00EE, // 206: ret
	)

	run(t, vm, 1)
	assert.Equal(t, uint16(0x206), vm.PC)
	assert.Equal(t, uint8(1), vm.SP)
	assert.Equal(t, uint16(0x202), vm.Stack[0])

	run(t, vm, 1)
	assert.Equal(t, uint16(0x202), vm.PC)
	assert.Equal(t, uint8(0), vm.SP)

	run(t, vm, 2)
	assert.Equal(t, uint16(0x204), vm.PC)
}

func TestJumpV0(t *testing.T) {
	vm := newTestVM(t, 0xB300)
	vm.V[0] = 0x10

	run(t, vm, 1)
	assert.Equal(t, uint16(0x310), vm.PC)
}

func TestStackErrors(t *testing.T) {
	// recursive call overflows after 16 levels
	vm := newTestVM(t, 0x2200)
	run(t, vm, StackSize)
	assert.Equal(t, uint8(StackSize), vm.SP)

	err := vm.Step()
	var se *StackError
	assert.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, ErrStackOverflow))
	assert.Equal(t, uint16(0x200), se.Address)

	// return with an empty stack
	vm = newTestVM(t, 0x00EE)
	err = vm.Step()
	assert.True(t, errors.Is(err, ErrStackUnderflow))
}

func TestInvalidOpcodes(t *testing.T) {
	for _, inst := range []uint16{0x0000, 0x0123, 0x5121, 0x8008, 0x800F, 0x9121, 0xE000, 0xE19F, 0xF000, 0xF0FF} {
		vm := newTestVM(t, inst)

		err := vm.Step()

		var de *DecodeError
		assert.True(t, errors.As(err, &de))
		assert.Equal(t, inst, de.Opcode)
		assert.Equal(t, uint16(0x200), de.Address)
	}
}

func TestFetchOutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0x1FFF)

	run(t, vm, 1)

	err := vm.Step()
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
}

func TestRandom(t *testing.T) {
	vm := newTestVM(t, 0xC10F, 0xC200)
	vm.V[2] = 0xFF

	run(t, vm, 2)

	expected := byte(rand.New(rand.NewSource(1)).Intn(0x100)) & 0x0F
	assert.Equal(t, expected, vm.V[1])
	assert.Equal(t, byte(0), vm.V[2])
}

func TestClearScreen(t *testing.T) {
	vm := newTestVM(t, 0x00E0)
	for i := range vm.Video {
		vm.Video[i] = 1
	}
	vm.ClearDirty()

	run(t, vm, 1)

	for _, p := range vm.Framebuffer() {
		assert.Equal(t, byte(0), p)
	}
	assert.True(t, vm.Dirty())

	vm.ClearDirty()
	assert.False(t, vm.Dirty())
}

func TestDrawGlyph(t *testing.T) {
	vm := newTestVM(t,
		0x6000, // ld v0, 0
		0xF029, // ld f, v0
		0xD005, // drw v0, v0, 5
		0xD005, // drw v0, v0, 5
	)

	run(t, vm, 3)

	expected := []string{
		"11110000",
		"10010000",
		"10010000",
		"10010000",
		"11110000",
	}

	for y, row := range expected {
		for x, c := range row {
			assert.Equal(t, byte(c-'0'), vm.Pixel(x, y))
		}
	}

	// nothing else was drawn
	for y := 0; y < ScreenHeight; y++ {
		for x := 8; x < ScreenWidth; x++ {
			assert.Equal(t, byte(0), vm.Pixel(x, y))
		}
	}

	assert.Equal(t, byte(0), vm.Flag())
	assert.True(t, vm.Dirty())

	// drawing again erases it and reports the collision
	run(t, vm, 1)
	assert.Equal(t, byte(1), vm.Flag())
	for _, p := range vm.Framebuffer() {
		assert.Equal(t, byte(0), p)
	}
}

func TestDrawClipAndWrap(t *testing.T) {
	vm := newTestVM(t, 0xD012)
	vm.I = 0x300
	vm.Memory[0x300] = 0xFF
	vm.Memory[0x301] = 0xFF

	// origin wraps to <60,31>, the sprite is clipped
	vm.V[0] = 60 + ScreenWidth
	vm.V[1] = 31 + ScreenHeight

	run(t, vm, 1)

	lit := 0
	for _, p := range vm.Video {
		lit += int(p)
	}
	assert.Equal(t, 4, lit)

	for x := 60; x < ScreenWidth; x++ {
		assert.Equal(t, byte(1), vm.Pixel(x, 31))
	}

	// nothing wrapped around to the left edge or top
	assert.Equal(t, byte(0), vm.Pixel(0, 31))
	assert.Equal(t, byte(0), vm.Pixel(60, 0))
}

func TestDrawOutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0xD002)
	vm.I = 0xFFF

	err := vm.Step()
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
}

func TestWaitForKey(t *testing.T) {
	vm := newTestVM(t, 0xF30A, 0x6101)

	run(t, vm, 1)
	assert.True(t, vm.Waiting())
	assert.Equal(t, State(WaitingForKey{Register: 3}), vm.State())

	// stepping while waiting does nothing
	run(t, vm, 10)
	assert.Equal(t, uint16(0x202), vm.PC)
	assert.Equal(t, byte(0), vm.V[1])

	// releasing a key does not resolve the wait
	vm.SetKey(0x7, false)
	assert.True(t, vm.Waiting())

	vm.PressKey(0xB)
	assert.False(t, vm.Waiting())
	assert.Equal(t, byte(0xB), vm.V[3])
	assert.True(t, vm.Keys[0xB])

	run(t, vm, 1)
	assert.Equal(t, byte(1), vm.V[1])
	assert.Equal(t, uint16(0x204), vm.PC)

	vm.ReleaseKey(0xB)
	assert.False(t, vm.Keys[0xB])
}

func TestSetKeyOutOfRange(t *testing.T) {
	vm := newTestVM(t, 0xF00A)
	run(t, vm, 1)

	vm.SetKey(0x10, true)
	assert.True(t, vm.Waiting())
}

func TestRegisterStoreLoad(t *testing.T) {
	vm := newTestVM(t,
		0xA300, // ld i, 300
		0xF355, // ld [i], v3
		0xF365, // ld v3, [i]
	)
	original := [4]byte{0x01, 0x23, 0x45, 0x67}
	copy(vm.V[:], original[:])
	vm.V[4] = 0x89

	run(t, vm, 2)
	assert.Equal(t, original[:], vm.Memory[0x300:0x304])
	assert.Equal(t, byte(0), vm.Memory[0x304])

	vm.V = [16]byte{}

	run(t, vm, 1)
	assert.Equal(t, original[:], vm.V[:4])
	assert.Equal(t, byte(0), vm.V[4])
	assert.Equal(t, uint16(0x300), vm.I)
}

func TestRegisterStoreOutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0xF155)
	vm.I = 0xFFF

	err := vm.Step()
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, 0x1000, be.Address)
}

func TestRegisterLoadOutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0xF165)
	vm.I = 0xFFF

	err := vm.Step()
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, 0x1000, be.Address)
	assert.Equal(t, byte(0), vm.V[0])
}

func TestBCDOutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0xF033)
	vm.I = 0xFFE
	vm.V[0] = 137

	err := vm.Step()
	var be *BoundsError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, 0x1000, be.Address)
	assert.Equal(t, byte(0), vm.Memory[0xFFE])
}

func TestStepTrace(t *testing.T) {
	var buf bytes.Buffer

	cfg := log.DefaultConfig()
	cfg.Level = log.DebugLevel
	cfg.Output = &buf
	cfg.TimeFormat = "-"

	vm := New(WithLogger(log.NewWithConfig(cfg)))
	assert.NoError(t, vm.Load([]byte{0x60, 0x0A}))
	assert.NoError(t, vm.Step())

	assert.Contains(t, buf.String(), "0200 - 600A  LD     V0, #0A")
}

func TestBCD(t *testing.T) {
	for _, n := range []byte{0, 9, 10, 99, 100, 137, 200, 255} {
		vm := newTestVM(t, 0xA400, 0xF533)
		vm.V[5] = n

		run(t, vm, 2)

		assert.Equal(t, []byte{n / 100, n / 10 % 10, n % 10}, vm.Memory[0x400:0x403])
	}
}

func TestIndexAndTimers(t *testing.T) {
	vm := newTestVM(t,
		0xA0FF, // ld i, 0ff
		0xF11E, // add i, v1
		0xF229, // ld f, v2
		0xF315, // ld dt, v3
		0xF418, // ld st, v4
		0xF507, // ld v5, dt
	)
	vm.V[1] = 0x02
	vm.V[2] = 0x0A
	vm.V[3] = 0x30
	vm.V[4] = 0x02

	run(t, vm, 2)
	assert.Equal(t, uint16(0x101), vm.I)

	run(t, vm, 1)
	assert.Equal(t, GlyphAddress(0xA), vm.I)

	run(t, vm, 2)
	assert.Equal(t, byte(0x30), vm.DT)
	assert.Equal(t, byte(0x02), vm.ST)
	assert.True(t, vm.Sounding())

	vm.TickTimers()

	run(t, vm, 1)
	assert.Equal(t, byte(0x2F), vm.V[5])
}

func TestTickTimers(t *testing.T) {
	vm := newTestVM(t)
	vm.DT = 2
	vm.ST = 2

	assert.False(t, vm.TickTimers())
	assert.Equal(t, byte(1), vm.DT)
	assert.Equal(t, byte(1), vm.ST)

	assert.True(t, vm.TickTimers())
	assert.Equal(t, byte(0), vm.DT)
	assert.Equal(t, byte(0), vm.ST)
	assert.False(t, vm.Sounding())

	// timers stop at zero
	assert.False(t, vm.TickTimers())
	assert.Equal(t, byte(0), vm.DT)
	assert.Equal(t, byte(0), vm.ST)
}

func TestReset(t *testing.T) {
	vm := newTestVM(t, 0xA200, 0xF055, 0x00E0)
	vm.V[0] = 0xEE

	run(t, vm, 3)
	assert.Equal(t, byte(0xEE), vm.Memory[0x200])
	vm.DT = 9
	vm.ClearDirty()

	vm.Reset()

	assert.Equal(t, uint16(ProgramStart), vm.PC)
	assert.Equal(t, byte(0xA2), vm.Memory[0x200])
	assert.Equal(t, byte(0), vm.V[0])
	assert.Equal(t, byte(0), vm.DT)
	assert.True(t, vm.Dirty())
}

func TestIndependentMachines(t *testing.T) {
	a := newTestVM(t, 0x6101)
	b := newTestVM(t, 0x6102)

	run(t, a, 1)
	run(t, b, 1)

	assert.Equal(t, byte(1), a.V[1])
	assert.Equal(t, byte(2), b.V[1])
}
