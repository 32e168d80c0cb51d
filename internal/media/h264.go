package media

import (
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
)

// H264Depacketizer extracts NAL units from RTP H264 payloads.
// It maintains instance state for FU-A fragment reassembly,
// preventing corruption when multiple streams are active.
type H264Depacketizer struct {
	fuaBuf  []byte
	lastSeq uint16
	haveSeq bool
}

// NewH264Depacketizer creates a new depacketizer with its own reassembly buffer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize extracts NAL units from an RTP H264 payload.
// Handles single NAL, STAP-A, and FU-A packet types. A sequence gap inside a
// FU-A chain drops the partial fragment instead of emitting a corrupt NALU.
func (d *H264Depacketizer) Depacketize(seq uint16, payload []byte) [][]byte {
	if len(payload) < 1 {
		return nil
	}

	if d.fuaBuf != nil && d.haveSeq && seq != d.lastSeq+1 {
		d.fuaBuf = nil
	}
	d.lastSeq = seq
	d.haveSeq = true

	naluType := payload[0] & 0x1f

	switch {
	case naluType >= 1 && naluType <= 23:
		d.fuaBuf = nil
		return [][]byte{payload}

	case naluType == 24:
		d.fuaBuf = nil
		return d.depacketizeSTAPA(payload)

	case naluType == 28:
		return d.depacketizeFUA(payload)

	default:
		return nil
	}
}

func (d *H264Depacketizer) depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1 // skip STAP-A header byte

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

func (d *H264Depacketizer) depacketizeFUA(payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0 // F + NRI bits from FU indicator
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	if start {
		// Reconstruct NAL header: F+NRI from FU indicator + type from FU header
		d.fuaBuf = []byte{fnri | naluType}
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	} else {
		if d.fuaBuf == nil {
			// Orphan fragment, the start was lost.
			return nil
		}
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	}

	if end {
		if !start && d.fuaBuf == nil {
			return nil
		}
		nalu := d.fuaBuf
		d.fuaBuf = nil
		return [][]byte{nalu}
	}

	return nil
}

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// WriteTrackH264 reads RTP packets from an H264 remote track and writes the
// elementary stream in Annex B framing to w. Returns when the track ends or
// the writer fails.
func WriteTrackH264(track *webrtc.TrackRemote, w io.Writer) error {
	d := NewH264Depacketizer()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read rtp: %w", err)
		}
		for _, nalu := range d.Depacketize(pkt.SequenceNumber, pkt.Payload) {
			if _, err := w.Write(annexBStartCode); err != nil {
				return fmt.Errorf("write start code: %w", err)
			}
			if _, err := w.Write(nalu); err != nil {
				return fmt.Errorf("write nalu: %w", err)
			}
		}
	}
}
