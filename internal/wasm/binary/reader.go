package binary

import (
	"fmt"

	"github.com/wasmgc/wasmgc/internal/leb128"
)

// reader is a forward-only cursor over a module's bytes, shared by every
// per-section decode function below.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("unexpected EOF")
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("unexpected EOF: need %d bytes, have %d", n, len(r.b)-r.pos)
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readUint32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.b[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readInt32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.b[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readInt64() (int64, error) {
	v, n, err := leb128.LoadInt64(r.b[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readName() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", fmt.Errorf("read name length: %w", err)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("read name: %w", err)
	}
	return string(b), nil
}

func (r *reader) atEOF() bool { return r.pos >= len(r.b) }

func (r *reader) remaining() int { return len(r.b) - r.pos }
