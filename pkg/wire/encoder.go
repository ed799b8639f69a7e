package wire

import "encoding/binary"

// encoder appends big-endian primitives to a growing buffer.
type encoder struct {
	buf []byte
}

func (pe *encoder) putInt16(v int16) {
	pe.buf = binary.BigEndian.AppendUint16(pe.buf, uint16(v))
}

func (pe *encoder) putInt32(v int32) {
	pe.buf = binary.BigEndian.AppendUint32(pe.buf, uint32(v))
}

// putString writes an int32 byte length followed by the UTF-8 bytes.
func (pe *encoder) putString(s string) {
	pe.putInt32(int32(len(s)))
	pe.buf = append(pe.buf, s...)
}

func (pe *encoder) bytes() []byte {
	return pe.buf
}

// decoder consumes big-endian primitives from a frame payload.
type decoder struct {
	buf []byte
	off int
}

func (pd *decoder) getInt16() (int16, error) {
	if pd.off+2 > len(pd.buf) {
		return 0, ErrInsufficientData
	}
	v := int16(binary.BigEndian.Uint16(pd.buf[pd.off:]))
	pd.off += 2
	return v, nil
}

func (pd *decoder) getInt32() (int32, error) {
	if pd.off+4 > len(pd.buf) {
		return 0, ErrInsufficientData
	}
	v := int32(binary.BigEndian.Uint32(pd.buf[pd.off:]))
	pd.off += 4
	return v, nil
}

func (pd *decoder) getString() (string, error) {
	n, err := pd.getInt32()
	if err != nil {
		return "", err
	}
	if n < 0 || pd.off+int(n) > len(pd.buf) {
		return "", ErrInsufficientData
	}
	s := string(pd.buf[pd.off : pd.off+int(n)])
	pd.off += int(n)
	return s, nil
}
