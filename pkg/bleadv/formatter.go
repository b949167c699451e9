// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"fmt"
	"strings"
)

// FormatHex renders bytes as "AA.98.43 (3)", the form FromHexString reads back
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	fmt.Fprintf(&sb, " (%d)", len(b))
	return sb.String()
}

// FormatWireParam renders an advertisement with its decoded TLV fields
func FormatWireParam(wp *WireParam) string {
	result := FormatHex(wp.Bytes())
	if wp.HasADFlag() {
		result += fmt.Sprintf(" flag=0x%02X", wp.ADFlag())
	}
	if wp.HasData() {
		result += fmt.Sprintf(" type=0x%02X data=%s", wp.DataType(), FormatHex(wp.Data()))
	}
	if wp.Duration > 0 {
		result += fmt.Sprintf(" dur=%s", wp.Duration)
	}
	return result
}

// FormatIdentification renders an identification result for terminal output
func FormatIdentification(id *Identification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Codec:   %s\n", id.Codec.ID())
	fmt.Fprintf(&sb, "Command: opcode=0x%02X args=[%d,%d,%d]\n",
		id.Command.Opcode, id.Command.Args[0], id.Command.Args[1], id.Command.Args[2])
	fmt.Fprintf(&sb, "Params:  id=0x%X index=%d tx=%d seed=0x%04X\n",
		id.Params.ID, id.Params.Index, id.Params.TxCount, id.Params.Seed)
	if id.Reencoded != nil {
		fmt.Fprintf(&sb, "Replay:  %s\n", FormatHex(id.Reencoded.Data()))
	}
	fmt.Fprintf(&sb, "Status:  %s\n", diffLabel(id.NoDiff))
	return sb.String()
}
