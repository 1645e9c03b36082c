package packet

import (
	"fmt"
	"io"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
)

// captureSnapLen is large enough for any simulated datagram.
const captureSnapLen = 65535

// CaptureWriter writes packets to a pcap stream with raw-IP link type,
// stamped with simulated time.
type CaptureWriter struct {
	w     *pcapgo.Writer
	count int
}

// NewCaptureWriter writes the pcap file header to w.
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(captureSnapLen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("writing pcap header: %w", err)
	}
	return &CaptureWriter{w: pw}, nil
}

// Write records p with capture timestamp ts.
func (c *CaptureWriter) Write(p *Packet, ts time.Time) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := c.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("writing packet %d to pcap: %w", p.ID(), err)
	}
	c.count++
	return nil
}

// Count returns the number of packets written.
func (c *CaptureWriter) Count() int {
	return c.count
}
