package packet

import "github.com/gopacket/gopacket/layers"

// Classifier maps a packet to its traffic class. Implementations are
// stateless readers of the marking set at origination.
type Classifier interface {
	Classify(p *Packet) Marking
}

// DSCPClassifier reads the DSCP code point from the packet's TOS byte.
type DSCPClassifier struct{}

// Classify implements Classifier.
func (DSCPClassifier) Classify(p *Packet) Marking {
	return p.Marking()
}

// MarkingOfHeader reads the code point straight from a network header.
func MarkingOfHeader(hdr layers.IPv4) Marking {
	return MarkingFromTOS(hdr.TOS)
}
