package iso

import (
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"
)

// Frames between a process host and its child. Each frame is one msgpack
// bin object whose payload starts with the frame kind.
const (
	frameProgram uint8 = iota + 1
	frameMessage
)

const nodeFields = 13

type frame struct {
	kind    uint8
	program string
	record  *CloneRecord
}

// appendRecord encodes a clone record. Handles cannot cross a process
// boundary.
func appendRecord(b []byte, rec *CloneRecord) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt(b, rec.Root)
	b = msgp.AppendArrayHeader(b, uint32(len(rec.Nodes)))
	for i := range rec.Nodes {
		n := &rec.Nodes[i]
		if n.Kind == cloneHandle {
			return nil, cloneErrorf("%s handle cannot leave the process", n.Str)
		}
		b = msgp.AppendArrayHeader(b, nodeFields)
		b = msgp.AppendUint8(b, uint8(n.Kind))
		b = msgp.AppendBool(b, n.Bool)
		b = msgp.AppendFloat64(b, n.Num)
		b = msgp.AppendString(b, n.Str)
		b = msgp.AppendArrayHeader(b, uint32(len(n.Keys)))
		for _, k := range n.Keys {
			b = msgp.AppendString(b, k)
		}
		b = msgp.AppendArrayHeader(b, uint32(len(n.Refs)))
		for _, ref := range n.Refs {
			b = msgp.AppendInt(b, ref)
		}
		b = msgp.AppendString(b, n.Name)
		b = msgp.AppendString(b, n.Message)
		b = msgp.AppendString(b, n.Stack)
		b = msgp.AppendBytes(b, n.Bytes)
		b = msgp.AppendBool(b, n.Moved)
		b = msgp.AppendInt(b, n.Offset)
		b = msgp.AppendInt(b, n.Length)
	}
	return b, nil
}

func readRecord(b []byte) (*CloneRecord, []byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	if sz != 2 {
		return nil, b, fmt.Errorf("clone record: want 2 fields, got %d", sz)
	}
	rec := &CloneRecord{}
	if rec.Root, b, err = msgp.ReadIntBytes(b); err != nil {
		return nil, b, err
	}
	count, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	rec.Nodes = make([]CloneNode, count)
	for i := range rec.Nodes {
		if b, err = readNode(b, &rec.Nodes[i]); err != nil {
			return nil, b, fmt.Errorf("clone record node %d: %w", i, err)
		}
	}
	return rec, b, nil
}

func readNode(b []byte, n *CloneNode) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != nodeFields {
		return b, fmt.Errorf("want %d fields, got %d", nodeFields, sz)
	}
	var kind uint8
	if kind, b, err = msgp.ReadUint8Bytes(b); err != nil {
		return b, err
	}
	n.Kind = cloneKind(kind)
	if n.Bool, b, err = msgp.ReadBoolBytes(b); err != nil {
		return b, err
	}
	if n.Num, b, err = msgp.ReadFloat64Bytes(b); err != nil {
		return b, err
	}
	if n.Str, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	var keys uint32
	if keys, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	if keys > 0 {
		n.Keys = make([]string, keys)
	}
	for i := range n.Keys {
		if n.Keys[i], b, err = msgp.ReadStringBytes(b); err != nil {
			return b, err
		}
	}
	var refs uint32
	if refs, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	if refs > 0 {
		n.Refs = make([]int, refs)
	}
	for i := range n.Refs {
		if n.Refs[i], b, err = msgp.ReadIntBytes(b); err != nil {
			return b, err
		}
	}
	if n.Name, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	if n.Message, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	if n.Stack, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	if n.Bytes, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return b, err
	}
	if n.Moved, b, err = msgp.ReadBoolBytes(b); err != nil {
		return b, err
	}
	if n.Offset, b, err = msgp.ReadIntBytes(b); err != nil {
		return b, err
	}
	n.Length, b, err = msgp.ReadIntBytes(b)
	return b, err
}

type frameWriter struct {
	w   *msgp.Writer
	buf []byte
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: msgp.NewWriter(w)}
}

func (fw *frameWriter) writeProgram(program string) error {
	fw.buf = msgp.AppendString(msgp.AppendUint8(fw.buf[:0], frameProgram), program)
	return fw.flush()
}

func (fw *frameWriter) writeRecord(rec *CloneRecord) error {
	b, err := appendRecord(msgp.AppendUint8(fw.buf[:0], frameMessage), rec)
	if err != nil {
		return err
	}
	fw.buf = b
	return fw.flush()
}

func (fw *frameWriter) flush() error {
	if err := fw.w.WriteBytes(fw.buf); err != nil {
		return err
	}
	return fw.w.Flush()
}

type frameReader struct {
	r   *msgp.Reader
	buf []byte
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: msgp.NewReader(r)}
}

// next returns io.EOF once the peer has closed its end.
func (fr *frameReader) next() (frame, error) {
	payload, err := fr.r.ReadBytes(fr.buf[:0])
	if err != nil {
		return frame{}, err
	}
	fr.buf = payload
	kind, rest, err := msgp.ReadUint8Bytes(payload)
	if err != nil {
		return frame{}, err
	}
	switch kind {
	case frameProgram:
		program, _, err := msgp.ReadStringBytes(rest)
		return frame{kind: kind, program: program}, err
	case frameMessage:
		rec, _, err := readRecord(rest)
		return frame{kind: kind, record: rec}, err
	}
	return frame{}, fmt.Errorf("unknown frame kind %d", kind)
}
