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

// Memory map and geometry of the CHIP-8 virtual machine.
const (
	// MemorySize is the number of addressable bytes.
	MemorySize = 0x1000

	// ProgramStart is where every ROM is loaded and execution begins.
	ProgramStart = 0x200

	// MaxROMSize is the largest program that fits above ProgramStart.
	MaxROMSize = MemorySize - ProgramStart

	// FontAddress is the first byte of the reserved font glyph region.
	FontAddress = 0x050

	// StackSize is the maximum call depth.
	StackSize = 16

	// ScreenWidth and ScreenHeight are the framebuffer dimensions.
	ScreenWidth  = 64
	ScreenHeight = 32

	// KeyCount is the number of keys on the hexadecimal keypad.
	KeyCount = 16
)

// Machine holds the mutable state of the CHIP-8 virtual machine. It has no
// decoding logic of its own, only accessors; a VM executes instructions
// against it.
type Machine struct {
	// Memory addressable by CHIP-8. The first 512 bytes are reserved for
	// the interpreter; only the font glyphs live there.
	Memory [MemorySize]byte

	// Video is the 64x32 framebuffer, one byte (0 or 1) per pixel, stored
	// row major. Pixel <x,y> is Video[y*ScreenWidth+x].
	Video [ScreenWidth * ScreenHeight]byte

	// V are the 16 general purpose registers. VF doubles as the
	// carry/borrow/collision flag; use Flag and setFlag for that role.
	V [16]byte

	// I is the address register.
	I uint16

	// PC is the program counter. All programs begin at 0x200.
	PC uint16

	// Stack holds return addresses; SP is the number of entries in use.
	Stack [StackSize]uint16
	SP    uint8

	// DT and ST are the delay and sound timers, counting down at 60 Hz.
	DT byte
	ST byte

	// Keys hold the current pressed state of the 16 keypad keys.
	Keys [KeyCount]bool

	// dirty is set whenever the framebuffer changes and cleared by the
	// renderer once it has consumed a frame.
	dirty bool

	// state is Executing or WaitingForKey.
	state State
}

// Initialize resets the program counter, address register and stack pointer
// and installs the font table into its reserved region.
func (m *Machine) Initialize() {
	m.PC = ProgramStart
	m.I = 0
	m.SP = 0
	m.state = Executing{}

	copy(m.Memory[FontAddress:], fontSet[:])
}

// ReadWord returns the big-endian 16-bit value at address and address+1.
func (m *Machine) ReadWord(address uint16) (uint16, error) {
	if int(address)+1 >= MemorySize {
		return 0, &BoundsError{Address: int(address) + 1}
	}

	return uint16(m.Memory[address])<<8 | uint16(m.Memory[address+1]), nil
}

// memoryRange returns a slice of n bytes of memory starting at address, or a
// bounds error if any of them fall outside of memory.
func (m *Machine) memoryRange(address uint16, n int) ([]byte, error) {
	end := int(address) + n
	if end > MemorySize {
		return nil, &BoundsError{Address: end - 1}
	}

	return m.Memory[address:end], nil
}

// Flag returns the VF register in its role as the carry/borrow/collision flag.
func (m *Machine) Flag() byte {
	return m.V[0xF]
}

// setFlag writes VF as a flag, 1 if set and 0 otherwise.
func (m *Machine) setFlag(set bool) {
	if set {
		m.V[0xF] = 1
	} else {
		m.V[0xF] = 0
	}
}

// State returns the current execution state.
func (m *Machine) State() State {
	if m.state == nil {
		return Executing{}
	}
	return m.state
}

// Waiting returns true if execution is suspended until a key is pressed.
func (m *Machine) Waiting() bool {
	_, ok := m.state.(WaitingForKey)
	return ok
}

// SetKey updates the key latch. If the machine is waiting for a key and the
// key was pressed, the key value is written to the waiting register and
// normal execution resumes. Keys outside of 0x0-0xF are ignored.
func (m *Machine) SetKey(key uint8, pressed bool) {
	if key >= KeyCount {
		return
	}

	m.Keys[key] = pressed

	// resolve a pending key wait
	if w, ok := m.state.(WaitingForKey); ok && pressed {
		m.V[w.Register] = key
		m.state = Executing{}
	}
}

// PressKey emulates a CHIP-8 key being pressed.
func (m *Machine) PressKey(key uint8) {
	m.SetKey(key, true)
}

// ReleaseKey emulates a CHIP-8 key being released.
func (m *Machine) ReleaseKey(key uint8) {
	m.SetKey(key, false)
}

// Pixel returns the value (0 or 1) of the pixel at <x,y>.
func (m *Machine) Pixel(x, y int) byte {
	return m.Video[y*ScreenWidth+x]
}

// Framebuffer returns a copy of the video memory for a renderer to consume.
func (m *Machine) Framebuffer() [ScreenWidth * ScreenHeight]byte {
	return m.Video
}

// Dirty returns true if the framebuffer changed since it was last consumed.
func (m *Machine) Dirty() bool {
	return m.dirty
}

// ClearDirty is called by the renderer after it has consumed a frame.
func (m *Machine) ClearDirty() {
	m.dirty = false
}

// Sounding is true while the sound timer is non-zero.
func (m *Machine) Sounding() bool {
	return m.ST > 0
}
