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
	"errors"
	"math/rand"
	"os"
	"time"

	"github.com/retroenv/retrogolib/log"
)

// VM is a CHIP-8 virtual machine: the Machine state plus the
// fetch-decode-execute logic that mutates it. Each VM is independent; there
// is no process-wide state.
type VM struct {
	Machine

	// rom is the pristine program image that Reset copies back into memory.
	rom []byte

	rand   *rand.Rand
	logger *log.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithLogger sets the logger used for lifecycle and trace messages.
func WithLogger(logger *log.Logger) Option {
	return func(vm *VM) {
		vm.logger = logger
	}
}

// WithRand sets the random source used by RND.
func WithRand(r *rand.Rand) Option {
	return func(vm *VM) {
		vm.rand = r
	}
}

// New creates an initialized CHIP-8 virtual machine with no program loaded.
func New(options ...Option) *VM {
	vm := &VM{}

	for _, option := range options {
		option(vm)
	}

	if vm.rand == nil {
		vm.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if vm.logger == nil {
		cfg := log.DefaultConfig()
		cfg.Level = log.ErrorLevel
		vm.logger = log.NewWithConfig(cfg)
	}

	vm.Reset()
	return vm
}

// Load copies a program into memory starting at 0x200 and resets the VM.
// Programs larger than MaxROMSize are rejected.
func (vm *VM) Load(program []byte) error {
	if len(program) > MaxROMSize {
		return &LoadError{Err: ErrROMTooLarge}
	}

	vm.rom = append(vm.rom[:0], program...)
	vm.Reset()

	vm.logger.Debug("Program loaded", log.Hex("size", len(program)))
	return nil
}

// LoadFile reads a ROM file and loads it.
func (vm *VM) LoadFile(path string) error {
	program, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	if err := vm.Load(program); err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return err
	}
	return nil
}

// Reset the virtual machine to its state right after the program was loaded.
func (vm *VM) Reset() {
	vm.Machine = Machine{}
	vm.Initialize()

	// restore the program image
	copy(vm.Memory[ProgramStart:], vm.rom)

	// the cleared display must be redrawn
	vm.dirty = true

	vm.logger.Debug("Reset", log.Hex("pc", vm.PC))
}

// SetKey updates the key latch. A press while waiting for a key resolves the
// wait and resumes execution.
func (vm *VM) SetKey(key uint8, pressed bool) {
	waiting := vm.Waiting()

	vm.Machine.SetKey(key, pressed)

	if waiting && !vm.Waiting() {
		vm.logger.Debug("Key wait resolved", log.Hex("key", key))
	}
}

// PressKey emulates a CHIP-8 key being pressed.
func (vm *VM) PressKey(key uint8) {
	vm.SetKey(key, true)
}

// ReleaseKey emulates a CHIP-8 key being released.
func (vm *VM) ReleaseKey(key uint8) {
	vm.SetKey(key, false)
}

// Step the virtual machine a single instruction. While waiting for a key
// Step does nothing. Any returned error is fatal to the run.
func (vm *VM) Step() error {
	if vm.Waiting() {
		return nil
	}

	address := vm.PC

	// fetch the next instruction
	inst, err := vm.ReadWord(address)
	if err != nil {
		return err
	}

	// advance the program counter
	vm.PC += 2

	vm.logger.Debug("Step", log.StringFunc("instruction", func() string { return vm.Disassemble(address) }))

	return vm.execute(address, inst)
}

// execute a single, already fetched instruction. The program counter has
// already been advanced past it.
func (vm *VM) execute(address, inst uint16) error {
	invalid := &DecodeError{Address: address, Opcode: inst}

	// 12-bit address operand
	a := inst & 0xFFF

	// byte and nibble operands
	b := byte(inst)
	n := byte(inst & 0xF)

	// x and y register operands
	x := byte(inst>>8) & 0xF
	y := byte(inst>>4) & 0xF

	switch inst & 0xF000 {
	case 0x0000:
		switch inst {
		case 0x00E0:
			vm.cls()
		case 0x00EE:
			return vm.ret(address)
		default:
			// SYS calls into RCA 1802 machine code are not supported
			return invalid
		}
	case 0x1000:
		vm.jump(a)
	case 0x2000:
		return vm.call(address, a)
	case 0x3000:
		vm.skipIf(x, b)
	case 0x4000:
		vm.skipIfNot(x, b)
	case 0x5000:
		if n != 0 {
			return invalid
		}
		vm.skipIfXY(x, y)
	case 0x6000:
		vm.loadX(x, b)
	case 0x7000:
		vm.addX(x, b)
	case 0x8000:
		switch n {
		case 0x0:
			vm.loadXY(x, y)
		case 0x1:
			vm.or(x, y)
		case 0x2:
			vm.and(x, y)
		case 0x3:
			vm.xor(x, y)
		case 0x4:
			vm.addXY(x, y)
		case 0x5:
			vm.subXY(x, y)
		case 0x6:
			vm.shr(x)
		case 0x7:
			vm.subYX(x, y)
		case 0xE:
			vm.shl(x)
		default:
			return invalid
		}
	case 0x9000:
		if n != 0 {
			return invalid
		}
		vm.skipIfNotXY(x, y)
	case 0xA000:
		vm.loadI(a)
	case 0xB000:
		vm.jumpV0(a)
	case 0xC000:
		vm.rnd(x, b)
	case 0xD000:
		return vm.drw(x, y, n)
	case 0xE000:
		switch b {
		case 0x9E:
			vm.skipIfPressed(x)
		case 0xA1:
			vm.skipIfNotPressed(x)
		default:
			return invalid
		}
	case 0xF000:
		switch b {
		case 0x07:
			vm.loadXDT(x)
		case 0x0A:
			vm.loadXK(x)
		case 0x15:
			vm.loadDTX(x)
		case 0x18:
			vm.loadSTX(x)
		case 0x1E:
			vm.addIX(x)
		case 0x29:
			vm.loadF(x)
		case 0x33:
			return vm.loadB(x)
		case 0x55:
			return vm.saveRegs(x)
		case 0x65:
			return vm.loadRegs(x)
		default:
			return invalid
		}
	}

	return nil
}

// clear the video display memory.
func (vm *VM) cls() {
	vm.Video = [ScreenWidth * ScreenHeight]byte{}
	vm.dirty = true
}

// return from subroutine.
func (vm *VM) ret(address uint16) error {
	if vm.SP == 0 {
		return &StackError{Address: address, Err: ErrStackUnderflow}
	}

	// pre-decrement and restore program counter
	vm.SP--
	vm.PC = vm.Stack[vm.SP]

	return nil
}

// call a subroutine at address.
func (vm *VM) call(address, target uint16) error {
	if vm.SP == StackSize {
		return &StackError{Address: address, Err: ErrStackOverflow}
	}

	// push the return address, which is already past the call
	vm.Stack[vm.SP] = vm.PC
	vm.SP++

	vm.PC = target
	return nil
}

// jump to address.
func (vm *VM) jump(address uint16) {
	vm.PC = address
}

// jump to address + v0.
func (vm *VM) jumpV0(address uint16) {
	vm.PC = address + uint16(vm.V[0])
}

// skip the next instruction.
func (vm *VM) skip(cond bool) {
	if cond {
		vm.PC += 2
	}
}

// skip next instruction if vx == n.
func (vm *VM) skipIf(x, b byte) {
	vm.skip(vm.V[x] == b)
}

// skip next instruction if vx != n.
func (vm *VM) skipIfNot(x, b byte) {
	vm.skip(vm.V[x] != b)
}

// skip next instruction if vx == vy.
func (vm *VM) skipIfXY(x, y byte) {
	vm.skip(vm.V[x] == vm.V[y])
}

// skip next instruction if vx != vy.
func (vm *VM) skipIfNotXY(x, y byte) {
	vm.skip(vm.V[x] != vm.V[y])
}

// skip next instruction if key(vx) is pressed. Only the low nibble of vx
// selects the key.
func (vm *VM) skipIfPressed(x byte) {
	vm.skip(vm.Keys[vm.V[x]&0xF])
}

// skip next instruction if key(vx) is not pressed.
func (vm *VM) skipIfNotPressed(x byte) {
	vm.skip(!vm.Keys[vm.V[x]&0xF])
}

// load n into vx.
func (vm *VM) loadX(x, b byte) {
	vm.V[x] = b
}

// load vy into vx.
func (vm *VM) loadXY(x, y byte) {
	vm.V[x] = vm.V[y]
}

// load delay timer into vx.
func (vm *VM) loadXDT(x byte) {
	vm.V[x] = vm.DT
}

// load vx into delay timer.
func (vm *VM) loadDTX(x byte) {
	vm.DT = vm.V[x]
}

// load vx into sound timer.
func (vm *VM) loadSTX(x byte) {
	vm.ST = vm.V[x]
}

// load vx with next key hit. Execution is suspended until SetKey resolves it.
func (vm *VM) loadXK(x byte) {
	vm.state = WaitingForKey{Register: x}

	vm.logger.Debug("Waiting for key", log.Hex("register", x))
}

// load address register.
func (vm *VM) loadI(address uint16) {
	vm.I = address
}

// add vx to the address register.
func (vm *VM) addIX(x byte) {
	vm.I += uint16(vm.V[x])
}

// load font sprite for vx into I.
func (vm *VM) loadF(x byte) {
	vm.I = GlyphAddress(vm.V[x])
}

// store the BCD of vx at I, I+1 and I+2.
func (vm *VM) loadB(x byte) error {
	mem, err := vm.memoryRange(vm.I, 3)
	if err != nil {
		return err
	}

	n := uint16(vm.V[x])
	b := uint16(0)

	// double dabble: 8 shifts, correcting each digit before the shift
	for i := uint(0); i < 8; i++ {
		if (b>>0)&0xF >= 5 {
			b += 3
		}
		if (b>>4)&0xF >= 5 {
			b += 3 << 4
		}
		if (b>>8)&0xF >= 5 {
			b += 3 << 8
		}

		// apply shift, pull next bit
		b = (b << 1) | (n >> (7 - i) & 1)
	}

	mem[0] = byte(b>>8) & 0xF
	mem[1] = byte(b>>4) & 0xF
	mem[2] = byte(b>>0) & 0xF

	return nil
}

// or vx with vy into vx.
func (vm *VM) or(x, y byte) {
	vm.V[x] |= vm.V[y]
}

// and vx with vy into vx.
func (vm *VM) and(x, y byte) {
	vm.V[x] &= vm.V[y]
}

// xor vx with vy into vx.
func (vm *VM) xor(x, y byte) {
	vm.V[x] ^= vm.V[y]
}

// shr vx 1 bit, set flag to LSB of vx before shift.
func (vm *VM) shr(x byte) {
	lsb := vm.V[x] & 1

	vm.V[x] >>= 1
	vm.setFlag(lsb == 1)
}

// shl vx 1 bit, set flag to MSB of vx before shift.
func (vm *VM) shl(x byte) {
	msb := vm.V[x] >> 7

	vm.V[x] <<= 1
	vm.setFlag(msb == 1)
}

// add n to vx, no carry.
func (vm *VM) addX(x, b byte) {
	vm.V[x] += b
}

// add vy to vx and set carry.
func (vm *VM) addXY(x, y byte) {
	sum := uint16(vm.V[x]) + uint16(vm.V[y])

	vm.V[x] = byte(sum)
	vm.setFlag(sum > 0xFF)
}

// subtract vy from vx, set flag if no borrow.
func (vm *VM) subXY(x, y byte) {
	noBorrow := vm.V[x] >= vm.V[y]

	vm.V[x] -= vm.V[y]
	vm.setFlag(noBorrow)
}

// subtract vx from vy and store in vx, set flag if no borrow.
func (vm *VM) subYX(x, y byte) {
	noBorrow := vm.V[y] >= vm.V[x]

	vm.V[x] = vm.V[y] - vm.V[x]
	vm.setFlag(noBorrow)
}

// load a random number & n into vx.
func (vm *VM) rnd(x, b byte) {
	vm.V[x] = byte(vm.rand.Intn(0x100)) & b
}

// draw an 8xN sprite at I to video memory at vx, vy. The origin wraps, but
// the sprite itself is clipped at the screen edges.
func (vm *VM) drw(x, y, n byte) error {
	sprite, err := vm.memoryRange(vm.I, int(n))
	if err != nil {
		return err
	}

	ox := int(vm.V[x]) % ScreenWidth
	oy := int(vm.V[y]) % ScreenHeight

	collision := false

	// draw each row of the sprite
	for row, s := range sprite {
		py := oy + row
		if py >= ScreenHeight {
			break
		}

		for col := 0; col < 8; col++ {
			px := ox + col
			if px >= ScreenWidth {
				break
			}

			if s&(0x80>>uint(col)) == 0 {
				continue
			}

			p := &vm.Video[py*ScreenWidth+px]

			// was a pixel turned off?
			if *p == 1 {
				collision = true
			}
			*p ^= 1
		}
	}

	vm.setFlag(collision)
	vm.dirty = true

	return nil
}

// save registers v0..vx to I.
func (vm *VM) saveRegs(x byte) error {
	mem, err := vm.memoryRange(vm.I, int(x)+1)
	if err != nil {
		return err
	}

	copy(mem, vm.V[:x+1])
	return nil
}

// load registers v0..vx from I.
func (vm *VM) loadRegs(x byte) error {
	mem, err := vm.memoryRange(vm.I, int(x)+1)
	if err != nil {
		return err
	}

	copy(vm.V[:x+1], mem)
	return nil
}
