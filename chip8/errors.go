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
	"fmt"
)

var (
	// ErrROMTooLarge is wrapped by a LoadError when a program does not fit
	// between ProgramStart and the end of memory.
	ErrROMTooLarge = errors.New("program too large to fit in memory")

	// ErrStackOverflow and ErrStackUnderflow are wrapped by StackError.
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
)

// LoadError is returned when a ROM cannot be read or does not fit in memory.
// Execution never starts after a load error.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading rom: %s", e.Err)
	}
	return fmt.Sprintf("loading rom %s: %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// DecodeError is returned by Step when the opcode matches no instruction.
type DecodeError struct {
	Address uint16
	Opcode  uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid opcode %04X at %04X", e.Opcode, e.Address)
}

// BoundsError is returned when an instruction reads or writes memory outside
// of 0x000-0xFFF.
type BoundsError struct {
	Address int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("memory access out of bounds at %04X", e.Address)
}

// StackError is returned by Step on a call with a full stack or a return
// with an empty one.
type StackError struct {
	Address uint16
	Err     error
}

func (e *StackError) Error() string {
	return fmt.Sprintf("%s at %04X", e.Err, e.Address)
}

func (e *StackError) Unwrap() error {
	return e.Err
}

// AssembleError is returned by Assemble. Line is 0 for errors found once
// all lines were read, such as unresolved labels, and Column is 0 when the
// error is not at a particular place in the line.
type AssembleError struct {
	Line   int
	Column int
	Msg    string
}

func (e *AssembleError) Error() string {
	switch {
	case e.Line == 0:
		return e.Msg
	case e.Column == 0:
		return fmt.Sprintf("line %d - %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d:%d - %s", e.Line, e.Column, e.Msg)
}
