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
	"fmt"
	"strconv"
	"strings"
)

// tokenType identifies a scanned token.
type tokenType uint

// Lexical assembly tokens.
const (
	tokenEnd tokenType = iota
	tokenChar
	tokenLabel
	tokenRef
	tokenInstruction
	tokenAddress
	tokenOperand
	tokenV
	tokenI
	tokenB
	tokenF
	tokenK
	tokenDT
	tokenST
	tokenLit
	tokenText
)

// token is a parsed, lexical token.
type token struct {
	typ tokenType

	// tokens can have an optional value associated with them
	val interface{}
}

// keywords are the reserved identifiers that aren't V-registers.
var keywords = map[string]tokenType{
	"I":  tokenI,
	"B":  tokenB,
	"F":  tokenF,
	"K":  tokenK,
	"DT": tokenDT,
	"ST": tokenST,
}

// mnemonics are the instruction and data directive names.
var mnemonics = map[string]bool{
	"CLS": true, "RET": true, "SYS": true, "JP": true, "CALL": true,
	"SE": true, "SNE": true, "SKP": true, "SKNP": true, "LD": true,
	"OR": true, "AND": true, "XOR": true, "ADD": true, "SUB": true,
	"SUBN": true, "SHR": true, "SHL": true, "RND": true, "DRW": true,
	"BYTE": true, "WORD": true,
}

// scanError is raised by the scanner at a 1-based column of the line.
type scanError struct {
	column int
	msg    string
}

// tokenScanner scans a single line of assembly source.
type tokenScanner struct {
	bytes []byte

	// scan position
	pos int
}

// fail aborts the line with an error at byte offset at.
func (s *tokenScanner) fail(at int, format string, args ...interface{}) {
	panic(scanError{column: at + 1, msg: fmt.Sprintf(format, args...)})
}

// peek returns the current byte, or 0 at the end of the line.
func (s *tokenScanner) peek() byte {
	if s.pos < len(s.bytes) {
		return s.bytes[s.pos]
	}
	return 0
}

// skipWhile advances past all bytes in set and returns the skipped text.
func (s *tokenScanner) skipWhile(set string) string {
	start := s.pos

	for s.pos < len(s.bytes) && strings.IndexByte(set, s.bytes[s.pos]) >= 0 {
		s.pos++
	}

	return string(s.bytes[start:s.pos])
}

// scanToken reads the next token from the line.
func (s *tokenScanner) scanToken() token {
	for s.pos < len(s.bytes) && s.bytes[s.pos] <= ' ' {
		s.pos++
	}

	c := s.peek()

	switch {
	case c == 0:
		return token{typ: tokenEnd, val: ""}
	case c == ';':
		return s.scanComment()
	case s.pos == 0:
		// only a label may start a line
		if c != '.' {
			s.fail(s.pos, "expected .label")
		}
		return s.scanLabel()
	case c == '[':
		return s.scanIndirection()
	case c == ',':
		return s.scanOperand()
	case c == '#':
		return s.scanLiteral(16)
	case c == '$':
		return s.scanLiteral(2)
	case c == '-' || isDigit(c):
		return s.scanLiteral(10)
	case isIdentStart(c):
		return s.scanIdentifier()
	case c == '"' || c == '\'':
		return s.scanString(c)
	}

	s.pos++

	return token{typ: tokenChar, val: c}
}

// scanOperands scans a list of comma-separated tokens.
func (s *tokenScanner) scanOperands() []token {
	var tokens []token

	for t := s.scanToken(); t.typ != tokenEnd; t = t.val.(token) {
		tokens = append(tokens, t)

		at := s.pos

		// operands are separated by commas
		if t = s.scanToken(); t.typ == tokenEnd {
			break
		}
		if t.typ != tokenOperand {
			s.fail(at, "unexpected token")
		}
	}

	return tokens
}

// scanComment skips the rest of the line.
func (s *tokenScanner) scanComment() token {
	text := strings.TrimSpace(string(s.bytes[s.pos+1:]))

	s.pos = len(s.bytes)

	return token{typ: tokenEnd, val: text}
}

// scanOperand scans the token following a comma.
func (s *tokenScanner) scanOperand() token {
	at := s.pos

	s.pos++

	t := s.scanToken()
	if t.typ == tokenEnd {
		s.fail(at, "expected operand")
	}

	return token{typ: tokenOperand, val: t}
}

// scanLabel scans a label definition at the start of the line.
func (s *tokenScanner) scanLabel() token {
	s.pos++

	if isIdentStart(s.peek()) {
		if id := s.scanIdentifier(); id.typ == tokenRef {
			return token{typ: tokenLabel, val: id.val}
		}
	}

	s.fail(0, "expected label")
	return token{}
}

// scanIdentifier scans an instruction, register or label reference.
func (s *tokenScanner) scanIdentifier() token {
	id := s.skipWhile("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_")

	// v-registers
	if len(id) == 2 && id[0] == 'V' {
		if n, err := strconv.ParseUint(id[1:], 16, 4); err == nil {
			return token{typ: tokenV, val: int(n)}
		}
	}

	if typ, ok := keywords[id]; ok {
		return token{typ: typ}
	}

	if mnemonics[id] {
		return token{typ: tokenInstruction, val: id}
	}

	return token{typ: tokenRef, val: id}
}

// scanIndirection scans [I].
func (s *tokenScanner) scanIndirection() token {
	at := s.pos

	s.pos++

	t := s.scanToken()

	// the next token should close the indirection
	if c := s.scanToken(); c.typ != tokenChar || c.val.(byte) != ']' {
		s.fail(at, "illegal indirection")
	}

	return token{typ: tokenAddress, val: t}
}

// scanLiteral scans a decimal, #hex or $binary literal. Binary literals may
// use '.' for 0 bits.
func (s *tokenScanner) scanLiteral(base int) token {
	at := s.pos

	var digits string

	switch base {
	case 16:
		s.pos++
		digits = s.skipWhile("0123456789ABCDEF")
	case 2:
		s.pos++
		digits = strings.ReplaceAll(s.skipWhile(".01"), ".", "0")
	default:
		sign := ""
		if s.peek() == '-' {
			s.pos++
			sign = "-"
		}
		digits = sign + s.skipWhile("0123456789")
	}

	n, err := strconv.ParseInt(digits, base, 32)
	if err != nil {
		s.fail(at, "illegal literal: %s", s.bytes[at:s.pos])
	}

	return token{typ: tokenLit, val: int(n)}
}

// scanString scans a quoted string up to its closing quote or the end of
// the line.
func (s *tokenScanner) scanString(quote byte) token {
	s.pos++

	start := s.pos

	for s.pos < len(s.bytes) && s.bytes[s.pos] != quote {
		s.pos++
	}

	text := string(s.bytes[start:s.pos])

	// skip the closing quote
	if s.pos < len(s.bytes) {
		s.pos++
	}

	return token{typ: tokenText, val: text}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c == '_'
}
