// Package link carries SAP messages between the remote SIM client and a
// networked SIM server over QUIC. Each message travels on a single
// bidirectional stream, prefixed by its length as a big endian uint16.
package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// NextProto is the ALPN protocol identifier negotiated by both ends.
const NextProto = "sap-quic"

// MaxFrameSize is the largest message a frame can carry.
const MaxFrameSize = 0xFFFF

var ErrFrameTooLarge = errors.New("link: frame too large")

// WriteFrame writes msg with its length prefix in a single Write.
func WriteFrame(w io.Writer, msg []byte) error {
	if len(msg) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(msg))
	}
	frame := make([]byte, 2+len(msg))
	binary.BigEndian.PutUint16(frame, uint16(len(msg)))
	copy(frame[2:], msg)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length prefixed message. A stream ending inside a
// frame yields io.ErrUnexpectedEOF; a clean end between frames yields io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	msg := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return msg, nil
}
