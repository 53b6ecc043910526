package wasm

import (
	"fmt"

	"github.com/wasmgc/wasmgc/internal/leb128"
)

// Opcode bytes for the MVP instruction set. Only the opcodes whose
// immediates carry an index into one of the five shared index spaces (or
// whose immediate shape must be skipped to find the next instruction) are
// named; everything else is handled by the default case of WalkInstructions.
const (
	OpcodeUnreachable byte = 0x00
	OpcodeNop         byte = 0x01
	OpcodeBlock       byte = 0x02
	OpcodeLoop        byte = 0x03
	OpcodeIf          byte = 0x04
	OpcodeElse        byte = 0x05
	OpcodeEnd         byte = 0x0b
	OpcodeBr          byte = 0x0c
	OpcodeBrIf        byte = 0x0d
	OpcodeBrTable     byte = 0x0e
	OpcodeReturn      byte = 0x0f
	OpcodeCall        byte = 0x10
	OpcodeCallIndirect byte = 0x11
	OpcodeDrop        byte = 0x1a
	OpcodeSelect      byte = 0x1b
	OpcodeLocalGet    byte = 0x20
	OpcodeLocalSet    byte = 0x21
	OpcodeLocalTee    byte = 0x22
	OpcodeGlobalGet   byte = 0x23
	OpcodeGlobalSet   byte = 0x24
	OpcodeI32Const    byte = 0x41
	OpcodeI64Const    byte = 0x42
	OpcodeF32Const    byte = 0x43
	OpcodeF64Const    byte = 0x44
)

// memoryOpFirst/memoryOpLast bound the contiguous range of load/store
// opcodes (i32.load .. i64.store32) that each carry an alignment hint and a
// byte offset, both ULEB128, neither an index into a tracked space.
const (
	memoryOpFirst byte = 0x28
	memoryOpLast  byte = 0x3e
	memorySize    byte = 0x3f
	memoryGrow    byte = 0x40
)

// RefKind identifies which shared index space an instruction's immediate,
// if any, refers to.
type RefKind int

const (
	RefNone RefKind = iota
	RefFunc
	RefGlobal
	RefType // call_indirect's type immediate
)

// InstrVisitor is called once per call, call_indirect, or global.get/set
// instruction in a function body, in encounter order; other instructions
// are skipped and never reach it, so kind is never RefNone. offset and
// length bound the immediate bytes that carry the reference, relative to
// the start of body.
//
// A non-nil error returned by visit aborts the walk.
type InstrVisitor func(kind RefKind, value uint32, offset, length int) error

// WalkInstructions scans body (a Code.Body, i.e. excluding locals) one
// instruction at a time, invoking visit for every instruction that carries
// a call, call_indirect, or global.get/set immediate, so that a single
// table of opcode immediate shapes serves both read-only analysis and
// index-rewriting.
func WalkInstructions(body []byte, visit InstrVisitor) error {
	i := 0
	for i < len(body) {
		op := body[i]
		start := i
		i++
		switch {
		case op == OpcodeUnreachable || op == OpcodeNop || op == OpcodeElse ||
			op == OpcodeEnd || op == OpcodeReturn || op == OpcodeDrop ||
			op == OpcodeSelect:
			// no immediate.
		case op == OpcodeBlock || op == OpcodeLoop || op == OpcodeIf:
			n, err := skipBlockType(body, i)
			if err != nil {
				return fmt.Errorf("block type at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeBr || op == OpcodeBrIf:
			n, err := skipULEB(body, i)
			if err != nil {
				return fmt.Errorf("br immediate at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeBrTable:
			n, err := skipBrTable(body, i)
			if err != nil {
				return fmt.Errorf("br_table immediates at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeCall:
			v, n, err := leb128.LoadUint32(body[i:])
			if err != nil {
				return fmt.Errorf("call immediate at offset %d: %w", start, err)
			}
			immOff, immLen := i, int(n)
			i += int(n)
			if err := visit(RefFunc, v, immOff, immLen); err != nil {
				return err
			}
		case op == OpcodeCallIndirect:
			typeIdx, n, err := leb128.LoadUint32(body[i:])
			if err != nil {
				return fmt.Errorf("call_indirect type immediate at offset %d: %w", start, err)
			}
			immOff, immLen := i, int(n)
			i += int(n)
			_, n2, err := leb128.LoadUint32(body[i:])
			if err != nil {
				return fmt.Errorf("call_indirect table immediate at offset %d: %w", start, err)
			}
			i += int(n2)
			if err := visit(RefType, typeIdx, immOff, immLen); err != nil {
				return err
			}
		case op == OpcodeLocalGet || op == OpcodeLocalSet || op == OpcodeLocalTee:
			n, err := skipULEB(body, i)
			if err != nil {
				return fmt.Errorf("local immediate at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeGlobalGet || op == OpcodeGlobalSet:
			v, n, err := leb128.LoadUint32(body[i:])
			if err != nil {
				return fmt.Errorf("global immediate at offset %d: %w", start, err)
			}
			immOff, immLen := i, int(n)
			i += int(n)
			if err := visit(RefGlobal, v, immOff, immLen); err != nil {
				return err
			}
		case op >= memoryOpFirst && op <= memoryOpLast:
			n1, err := skipULEB(body, i)
			if err != nil {
				return fmt.Errorf("memory align at offset %d: %w", start, err)
			}
			i += n1
			n2, err := skipULEB(body, i)
			if err != nil {
				return fmt.Errorf("memory offset at offset %d: %w", start, err)
			}
			i += n2
		case op == memorySize || op == memoryGrow:
			n, err := skipULEB(body, i)
			if err != nil {
				return fmt.Errorf("memory.size/grow reserved byte at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeI32Const:
			n, err := skipSLEB(body, i)
			if err != nil {
				return fmt.Errorf("i32.const immediate at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeI64Const:
			n, err := skipSLEB64(body, i)
			if err != nil {
				return fmt.Errorf("i64.const immediate at offset %d: %w", start, err)
			}
			i += n
		case op == OpcodeF32Const:
			if i+4 > len(body) {
				return fmt.Errorf("f32.const immediate at offset %d: unexpected EOF", start)
			}
			i += 4
		case op == OpcodeF64Const:
			if i+8 > len(body) {
				return fmt.Errorf("f64.const immediate at offset %d: unexpected EOF", start)
			}
			i += 8
		default:
			// Every other MVP opcode (comparisons, arithmetic, conversions,
			// etc.) carries no immediate and no index-space reference.
		}
	}
	return nil
}

func skipULEB(b []byte, off int) (int, error) {
	if off > len(b) {
		return 0, fmt.Errorf("unexpected EOF")
	}
	_, n, err := leb128.LoadUint64(b[off:])
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func skipSLEB(b []byte, off int) (int, error) {
	if off > len(b) {
		return 0, fmt.Errorf("unexpected EOF")
	}
	_, n, err := leb128.LoadInt32(b[off:])
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func skipSLEB64(b []byte, off int) (int, error) {
	if off > len(b) {
		return 0, fmt.Errorf("unexpected EOF")
	}
	_, n, err := leb128.LoadInt64(b[off:])
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// skipBlockType consumes a block type immediate: either the single byte
// 0x40 (empty), a single value-type byte, or a 33-bit signed LEB128 type
// index into the type section.
func skipBlockType(b []byte, off int) (int, error) {
	if off >= len(b) {
		return 0, fmt.Errorf("unexpected EOF")
	}
	switch b[off] {
	case 0x40, byte(ValueTypeI32), byte(ValueTypeI64), byte(ValueTypeF32), byte(ValueTypeF64),
		byte(ValueTypeFuncref), byte(ValueTypeExternref):
		return 1, nil
	default:
		_, n, err := leb128.DecodeInt33AsInt64(b[off:])
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}
}

// skipBrTable consumes br_table's immediates: a ULEB128 count N, N+1
// ULEB128 label indices.
func skipBrTable(b []byte, off int) (int, error) {
	count, n, err := leb128.LoadUint32(b[off:])
	if err != nil {
		return 0, err
	}
	total := int(n)
	for j := uint32(0); j < count+1; j++ {
		_, n, err := leb128.LoadUint32(b[off+total:])
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}
