package protocol

import (
	"encoding/binary"
	"io"
)

// FrameLengthPrefix is the width of the length prefix that precedes every
// serialized packet on a peer stream.
const FrameLengthPrefix = 4

// WriteFrame writes the 4-byte big-endian length prefix followed by raw to w.
func WriteFrame(w io.Writer, raw []byte) error {
	var lenBuf [FrameLengthPrefix]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(raw)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(raw)
	return err
}

// ReadFrame reads a 4-byte length prefix from r, then exactly that many
// bytes. It returns io.EOF if the stream ends before the prefix is read at
// all, and io.ErrUnexpectedEOF if it ends mid-frame; either terminates the
// calling peer session (see transport package).
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [FrameLengthPrefix]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return raw, nil
}
