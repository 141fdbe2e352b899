package ucprof

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// PacketSize is the size of one trace record: tag, cycle count, context and
// target address, each a little-endian 32-bit word.
const PacketSize = 16

var (
	openTag  = [4]byte{'O', 0, 0, 0}
	closeTag = [4]byte{'C', 0, 0, 0}
)

// ReadPackets decodes a binary trace stream. A word that is not a known tag
// is skipped on its own, which lets the reader resynchronize after a lost
// fragment. A truncated trailing record is dropped.
func ReadPackets(r io.Reader, log logrus.Ext1FieldLogger) ([]Packet, error) {
	var (
		packets []Packet
		tag     [4]byte
		body    [PacketSize - 4]byte
		skipped int
	)
	br := bufio.NewReader(r)
	for {
		if _, err := io.ReadFull(br, tag[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("error reading trace: %w", err)
		}

		var typ EventType
		switch tag {
		case openTag:
			typ = Open
		case closeTag:
			typ = Close
		default:
			skipped++
			continue
		}

		if _, err := io.ReadFull(br, body[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warnf("Truncated trace record at packet %d dropped", len(packets))
				break
			}
			return nil, fmt.Errorf("error reading trace: %w", err)
		}

		packets = append(packets, Packet{
			Type:       typ,
			CycleCount: binary.LittleEndian.Uint32(body[0:4]),
			Context:    binary.LittleEndian.Uint32(body[4:8]),
			Address:    binary.LittleEndian.Uint32(body[8:12]),
		})
	}

	if skipped > 0 {
		log.Debugf("Skipped %d unrecognized trace words", skipped)
	}
	return packets, nil
}

// ReadPacketsFile reads every packet from the trace file at path.
func ReadPacketsFile(path string, log logrus.Ext1FieldLogger) ([]Packet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	packets, err := ReadPackets(f, log)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return packets, nil
}

// EncodePacket appends the wire form of p to buf.
func EncodePacket(buf []byte, p Packet) []byte {
	tag := openTag
	if p.Type == Close {
		tag = closeTag
	}
	buf = append(buf, tag[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, p.CycleCount)
	buf = binary.LittleEndian.AppendUint32(buf, p.Context)
	buf = binary.LittleEndian.AppendUint32(buf, p.Address)
	return buf
}
