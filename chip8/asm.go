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
	"bufio"
	"bytes"
	"fmt"
)

// Assembly is a completely assembled source file.
type Assembly struct {
	// ROM is the final, assembled bytes to load at ProgramStart.
	ROM []byte

	// Labels maps each label to its address.
	Labels map[string]int

	// unresolved maps the address of an instruction to the label it
	// references before that label is defined.
	unresolved map[int]string
}

// Assemble CHIP-8 source code into a ROM.
//
// Labels start at the beginning of a line with a '.', and everything else
// must be indented. Literals are decimal, #hex or $binary ('.' may be used
// for 0 bits). Comments start with ';'.
func Assemble(program []byte) (out *Assembly, err error) {
	var line int

	out = &Assembly{
		ROM:        make([]byte, ProgramStart, MemorySize),
		Labels:     make(map[string]int),
		unresolved: make(map[int]string),
	}

	// handle panics during assembly
	defer func() {
		if r := recover(); r != nil {
			ae := &AssembleError{Line: line}

			switch e := r.(type) {
			case scanError:
				ae.Column, ae.Msg = e.column, e.msg
			case error:
				ae.Msg = e.Error()
			default:
				ae.Msg = fmt.Sprint(r)
			}

			out, err = nil, ae
		}
	}()

	scanner := bufio.NewScanner(bytes.NewReader(bytes.ToUpper(program)))

	// parse and assemble
	for line = 1; scanner.Scan(); line++ {
		out.assemble(&tokenScanner{bytes: scanner.Bytes()})

		if len(out.ROM) > MemorySize {
			panic("program too large to fit in memory")
		}
	}

	// a line longer than the scan buffer stops Scan early
	if err := scanner.Err(); err != nil {
		panic(err)
	}

	// done with lines, errors from here on have no line number
	line = 0

	// resolve all forward label references
	for address, label := range out.unresolved {
		target, ok := out.Labels[label]
		if !ok {
			panic(fmt.Errorf("unresolved label: %s", label))
		}

		// only SYS, JP, CALL, LD I and WORD take a forward reference
		switch out.ROM[address] & 0xF0 {
		case 0x00, 0x10, 0x20, 0xA0, 0xB0:
		default:
			panic(fmt.Errorf("label is not an address operand: %s", label))
		}

		// addresses are 12-bit, so the high nibble of the opcode survives
		out.ROM[address] = byte(target>>8) | (out.ROM[address] & 0xF0)
		out.ROM[address+1] = byte(target & 0xFF)
	}

	// drop the reserved bytes from the rom
	out.ROM = out.ROM[ProgramStart:]

	return out, nil
}

// assemble a single line.
func (a *Assembly) assemble(s *tokenScanner) {
	t := s.scanToken()

	// assign labels
	if t.typ == tokenLabel {
		label := t.val.(string)

		if _, exists := a.Labels[label]; exists {
			panic(fmt.Errorf("duplicate label: %s", label))
		}

		a.Labels[label] = len(a.ROM)

		t = s.scanToken()
	}

	switch t.typ {
	case tokenInstruction:
		a.ROM = append(a.ROM, a.assembleInstruction(t.val.(string), s.scanOperands())...)
	case tokenEnd:
	default:
		panic("unexpected token")
	}
}

// operand matches one token against an expected type, expanding label
// references to addresses.
func (a *Assembly) operand(t token, typ tokenType, refs map[int]string, at int) (token, bool) {
	if t.typ == tokenRef && typ == tokenLit {
		label := t.val.(string)

		if address, exists := a.Labels[label]; exists {
			return token{typ: tokenLit, val: address}, true
		}

		// resolved once all labels are known
		refs[at] = label

		return token{typ: tokenLit, val: 0}, true
	}

	return t, t.typ == typ
}

// operands matches the tokens against the desired types.
func (a *Assembly) operands(tokens []token, m ...tokenType) ([]token, bool) {
	if len(tokens) != len(m) {
		return nil, false
	}

	ops := make([]token, 0, len(m))
	refs := make(map[int]string)

	for i, typ := range m {
		t, ok := a.operand(tokens[i], typ, refs, len(a.ROM))
		if !ok {
			return nil, false
		}

		ops = append(ops, t)
	}

	// only keep references for a matching form
	for at, label := range refs {
		a.unresolved[at] = label
	}

	return ops, true
}

// assembleInstruction encodes a single instruction.
func (a *Assembly) assembleInstruction(i string, tokens []token) []byte {
	switch i {
	case "CLS":
		if len(tokens) == 0 {
			return []byte{0x00, 0xE0}
		}
	case "RET":
		if len(tokens) == 0 {
			return []byte{0x00, 0xEE}
		}
	case "SYS":
		if ops, ok := a.operands(tokens, tokenLit); ok {
			return encode(0x0000 | address(ops[0]))
		}
	case "JP":
		if ops, ok := a.operands(tokens, tokenLit); ok {
			return encode(0x1000 | address(ops[0]))
		}
		if ops, ok := a.operands(tokens, tokenV, tokenLit); ok && reg(ops[0]) == 0 {
			return encode(0xB000 | address(ops[1]))
		}
	case "CALL":
		if ops, ok := a.operands(tokens, tokenLit); ok {
			return encode(0x2000 | address(ops[0]))
		}
	case "SE":
		if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
			return encode(0x5000 | reg(ops[0])<<8 | reg(ops[1])<<4)
		}
		if ops, ok := a.operands(tokens, tokenV, tokenLit); ok {
			return encode(0x3000 | reg(ops[0])<<8 | imm(ops[1]))
		}
	case "SNE":
		if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
			return encode(0x9000 | reg(ops[0])<<8 | reg(ops[1])<<4)
		}
		if ops, ok := a.operands(tokens, tokenV, tokenLit); ok {
			return encode(0x4000 | reg(ops[0])<<8 | imm(ops[1]))
		}
	case "SKP":
		if ops, ok := a.operands(tokens, tokenV); ok {
			return encode(0xE09E | reg(ops[0])<<8)
		}
	case "SKNP":
		if ops, ok := a.operands(tokens, tokenV); ok {
			return encode(0xE0A1 | reg(ops[0])<<8)
		}
	case "OR":
		return a.assembleALU(tokens, 0x1)
	case "AND":
		return a.assembleALU(tokens, 0x2)
	case "XOR":
		return a.assembleALU(tokens, 0x3)
	case "SUB":
		return a.assembleALU(tokens, 0x5)
	case "SUBN":
		return a.assembleALU(tokens, 0x7)
	case "SHR":
		return a.assembleShift(tokens, 0x6)
	case "SHL":
		return a.assembleShift(tokens, 0xE)
	case "ADD":
		if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
			return encode(0x8004 | reg(ops[0])<<8 | reg(ops[1])<<4)
		}
		if ops, ok := a.operands(tokens, tokenV, tokenLit); ok {
			return encode(0x7000 | reg(ops[0])<<8 | imm(ops[1]))
		}
		if ops, ok := a.operands(tokens, tokenI, tokenV); ok {
			return encode(0xF01E | reg(ops[1])<<8)
		}
	case "RND":
		if ops, ok := a.operands(tokens, tokenV, tokenLit); ok {
			return encode(0xC000 | reg(ops[0])<<8 | imm(ops[1]))
		}
	case "DRW":
		if ops, ok := a.operands(tokens, tokenV, tokenV, tokenLit); ok {
			return encode(0xD000 | reg(ops[0])<<8 | reg(ops[1])<<4 | nibble(ops[2]))
		}
	case "LD":
		return a.assembleLD(tokens)
	case "BYTE":
		return a.assembleBYTE(tokens)
	case "WORD":
		return a.assembleWORD(tokens)
	}

	panic(fmt.Errorf("illegal instruction: %s", i))
}

// assembleALU encodes the 8XYN register to register instructions.
func (a *Assembly) assembleALU(tokens []token, n uint16) []byte {
	if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
		return encode(0x8000 | reg(ops[0])<<8 | reg(ops[1])<<4 | n)
	}

	panic("illegal instruction")
}

// assembleShift encodes SHR and SHL, with an optional, ignored vy.
func (a *Assembly) assembleShift(tokens []token, n uint16) []byte {
	if ops, ok := a.operands(tokens, tokenV); ok {
		return encode(0x8000 | reg(ops[0])<<8 | n)
	}
	if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
		return encode(0x8000 | reg(ops[0])<<8 | reg(ops[1])<<4 | n)
	}

	panic("illegal instruction")
}

// assembleLD encodes all the forms of LD.
func (a *Assembly) assembleLD(tokens []token) []byte {
	if ops, ok := a.operands(tokens, tokenV, tokenV); ok {
		return encode(0x8000 | reg(ops[0])<<8 | reg(ops[1])<<4)
	}
	if ops, ok := a.operands(tokens, tokenV, tokenLit); ok {
		return encode(0x6000 | reg(ops[0])<<8 | imm(ops[1]))
	}
	if ops, ok := a.operands(tokens, tokenI, tokenLit); ok {
		return encode(0xA000 | address(ops[1]))
	}
	if ops, ok := a.operands(tokens, tokenV, tokenDT); ok {
		return encode(0xF007 | reg(ops[0])<<8)
	}
	if ops, ok := a.operands(tokens, tokenV, tokenK); ok {
		return encode(0xF00A | reg(ops[0])<<8)
	}
	if ops, ok := a.operands(tokens, tokenDT, tokenV); ok {
		return encode(0xF015 | reg(ops[1])<<8)
	}
	if ops, ok := a.operands(tokens, tokenST, tokenV); ok {
		return encode(0xF018 | reg(ops[1])<<8)
	}
	if ops, ok := a.operands(tokens, tokenF, tokenV); ok {
		return encode(0xF029 | reg(ops[1])<<8)
	}
	if ops, ok := a.operands(tokens, tokenB, tokenV); ok {
		return encode(0xF033 | reg(ops[1])<<8)
	}
	if ops, ok := a.operands(tokens, tokenAddress, tokenV); ok && indirectI(ops[0]) {
		return encode(0xF055 | reg(ops[1])<<8)
	}
	if ops, ok := a.operands(tokens, tokenV, tokenAddress); ok && indirectI(ops[1]) {
		return encode(0xF065 | reg(ops[0])<<8)
	}

	panic("illegal instruction")
}

// assembleBYTE encodes a list of byte literals and strings.
func (a *Assembly) assembleBYTE(tokens []token) []byte {
	b := make([]byte, 0, len(tokens))

	for _, t := range tokens {
		switch t.typ {
		case tokenLit:
			b = append(b, byte(imm(t)))
		case tokenText:
			b = append(b, t.val.(string)...)
		default:
			panic("illegal byte")
		}
	}

	return b
}

// assembleWORD encodes a list of 16-bit literals and label addresses.
func (a *Assembly) assembleWORD(tokens []token) []byte {
	b := make([]byte, 0, len(tokens)*2)

	for _, t := range tokens {
		refs := make(map[int]string)

		w, ok := a.operand(t, tokenLit, refs, len(a.ROM)+len(b))
		if !ok {
			panic("illegal word")
		}

		for at, label := range refs {
			a.unresolved[at] = label
		}

		n := w.val.(int)
		if n < -0x8000 || n > 0xFFFF {
			panic(fmt.Errorf("word out of range: %d", n))
		}

		b = append(b, encode(uint16(n))...)
	}

	return b
}

// encode an instruction word big-endian.
func encode(inst uint16) []byte {
	return []byte{byte(inst >> 8), byte(inst)}
}

// reg returns the v-register index of a token.
func reg(t token) uint16 {
	return uint16(t.val.(int))
}

// address validates a 12-bit address literal.
func address(t token) uint16 {
	n := t.val.(int)
	if n < 0 || n >= MemorySize {
		panic(fmt.Errorf("address out of range: %d", n))
	}

	return uint16(n)
}

// imm validates an 8-bit immediate literal. Negative values are stored in
// two's complement.
func imm(t token) uint16 {
	n := t.val.(int)
	if n < -0x80 || n > 0xFF {
		panic(fmt.Errorf("byte out of range: %d", n))
	}

	return uint16(n) & 0xFF
}

// nibble validates a 4-bit literal.
func nibble(t token) uint16 {
	n := t.val.(int)
	if n < 0 || n > 0xF {
		panic(fmt.Errorf("nibble out of range: %d", n))
	}

	return uint16(n)
}

// indirectI is true if an indirection token is [I].
func indirectI(t token) bool {
	return t.val.(token).typ == tokenI
}
