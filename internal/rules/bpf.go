// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"golang.org/x/net/bpf"

	rerrors "github.com/arkime/sessiond/internal/errors"
)

// BPFProgram wraps a compiled classic-BPF program. Assembling a filter
// expression (tcpdump-style syntax) into raw instructions is out of
// scope for this package; a rule document supplies the already
// assembled instruction list directly, and this type's only job is
// running it against packet bytes for EveryPacket/SessionSetup rules.
type BPFProgram struct {
	vm  *bpf.VM
	raw []bpf.Instruction
}

// RawBPFInstruction mirrors one YAML bpf: list entry before assembly.
type RawBPFInstruction struct {
	Op uint16
	Jt uint8
	Jf uint8
	K  uint32
}

// NewBPFProgram assembles raw into a runnable program.
func NewBPFProgram(raw []RawBPFInstruction) (*BPFProgram, error) {
	instructions := make([]bpf.Instruction, 0, len(raw))
	for _, r := range raw {
		instructions = append(instructions, bpf.RawInstruction{Op: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K})
	}
	vm, err := bpf.NewVM(instructions)
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.KindConfigError, "assembling bpf program")
	}
	return &BPFProgram{vm: vm, raw: instructions}, nil
}

// Matches runs the program against a raw packet and reports whether it
// fired: a non-zero return value counts as a match.
func (p *BPFProgram) Matches(packet []byte) bool {
	if p == nil || p.vm == nil {
		return false
	}
	n, err := p.vm.Run(packet)
	if err != nil {
		return false
	}
	return n > 0
}
