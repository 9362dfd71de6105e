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
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDisassemble(t *testing.T) {
	tests := []struct {
		inst     uint16
		expected string
	}{
		{0x00E0, "CLS"},
		{0x00EE, "RET"},
		{0x0123, "SYS    #0123"},
		{0x1234, "JP     #0234"},
		{0x2ABC, "CALL   #0ABC"},
		{0x3A12, "SE     VA, #12"},
		{0x5120, "SE     V1, V2"},
		{0x6A12, "LD     VA, #12"},
		{0x8124, "ADD    V1, V2"},
		{0x8126, "SHR    V1"},
		{0x9120, "SNE    V1, V2"},
		{0xA300, "LD     I, #0300"},
		{0xB210, "JP     V0, #0210"},
		{0xC00F, "RND    V0, #0F"},
		{0xD125, "DRW    V1, V2, 5"},
		{0xE79E, "SKP    V7"},
		{0xE7A1, "SKNP   V7"},
		{0xF20A, "LD     V2, K"},
		{0xF633, "LD     B, V6"},
		{0xF355, "LD     [I], V3"},
		{0xF365, "LD     V3, [I]"},
		{0x5121, "??"},
		{0x8008, "??"},
		{0xE000, "??"},
		{0xF0FF, "??"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Disassemble(tt.inst))
	}
}

func TestDisassembleListing(t *testing.T) {
	vm := newTestVM(t, 0x600A, 0x00E0)

	assert.Equal(t, "0200 - 600A  LD     V0, #0A", vm.Disassemble(0x200))
	assert.Equal(t, "0202 - 00E0  CLS", vm.Disassemble(0x202))
	assert.Equal(t, "", vm.Disassemble(0xFFF))
}
