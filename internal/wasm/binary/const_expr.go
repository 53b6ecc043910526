package binary

import (
	"fmt"

	"github.com/wasmgc/wasmgc/internal/wasm"
)

// decodeConstantExpression reads a single-instruction constant initializer
// (i32.const, i64.const, f32.const, f64.const, or global.get) followed by
// the terminating end opcode. Any other opcode is rejected with
// ErrMalformed.
func (r *reader) decodeConstantExpression() (wasm.ConstantExpression, error) {
	op, err := r.readByte()
	if err != nil {
		return wasm.ConstantExpression{}, fmt.Errorf("read const expression opcode: %w", err)
	}

	start := r.pos
	switch op {
	case wasm.OpcodeI32Const:
		if _, err := r.readInt32(); err != nil {
			return wasm.ConstantExpression{}, fmt.Errorf("read i32.const operand: %w", err)
		}
	case wasm.OpcodeI64Const:
		if _, err := r.readInt64(); err != nil {
			return wasm.ConstantExpression{}, fmt.Errorf("read i64.const operand: %w", err)
		}
	case wasm.OpcodeF32Const:
		if _, err := r.readBytes(4); err != nil {
			return wasm.ConstantExpression{}, fmt.Errorf("read f32.const operand: %w", err)
		}
	case wasm.OpcodeF64Const:
		if _, err := r.readBytes(8); err != nil {
			return wasm.ConstantExpression{}, fmt.Errorf("read f64.const operand: %w", err)
		}
	case wasm.OpcodeGlobalGet:
		if _, err := r.readUint32(); err != nil {
			return wasm.ConstantExpression{}, fmt.Errorf("read global.get operand: %w", err)
		}
	default:
		return wasm.ConstantExpression{}, WrapMalformed("invalid opcode for const expression: 0x%x", op)
	}
	data := append([]byte(nil), r.b[start:r.pos]...)

	end, err := r.readByte()
	if err != nil {
		return wasm.ConstantExpression{}, fmt.Errorf("look for end opcode: %w", err)
	}
	if end != wasm.OpcodeEnd {
		return wasm.ConstantExpression{}, WrapMalformed("expected end opcode for const expression, got 0x%x", end)
	}

	return wasm.ConstantExpression{Opcode: op, Data: data}, nil
}

func encodeConstantExpression(c wasm.ConstantExpression) []byte {
	out := make([]byte, 0, len(c.Data)+2)
	out = append(out, c.Opcode)
	out = append(out, c.Data...)
	out = append(out, wasm.OpcodeEnd)
	return out
}
