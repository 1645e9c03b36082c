package packet

import (
	"fmt"
	"strconv"
	"strings"
)

// Marking is the differentiated-services code point a packet carries in the
// upper six bits of its IPv4 TOS byte. It is set once when the packet is
// originated and never changes afterwards.
type Marking uint8

// Well-known code points (RFC 2474, RFC 2597, RFC 3246).
const (
	BE   Marking = 0
	CS1  Marking = 8
	AF11 Marking = 10
	AF12 Marking = 12
	AF13 Marking = 14
	CS2  Marking = 16
	AF21 Marking = 18
	AF22 Marking = 20
	AF23 Marking = 22
	CS3  Marking = 24
	AF31 Marking = 26
	AF32 Marking = 28
	AF33 Marking = 30
	CS4  Marking = 32
	AF41 Marking = 34
	AF42 Marking = 36
	AF43 Marking = 38
	CS5  Marking = 40
	EF   Marking = 46
	CS6  Marking = 48
	CS7  Marking = 56
)

// MaxMarking is the largest valid code point.
const MaxMarking Marking = 63

var markingNames = map[Marking]string{
	BE: "BE", CS1: "CS1", AF11: "AF11", AF12: "AF12", AF13: "AF13",
	CS2: "CS2", AF21: "AF21", AF22: "AF22", AF23: "AF23",
	CS3: "CS3", AF31: "AF31", AF32: "AF32", AF33: "AF33",
	CS4: "CS4", AF41: "AF41", AF42: "AF42", AF43: "AF43",
	CS5: "CS5", EF: "EF", CS6: "CS6", CS7: "CS7",
}

var markingByName = func() map[string]Marking {
	m := make(map[string]Marking, len(markingNames))
	for k, v := range markingNames {
		m[v] = k
	}
	m["CS0"] = BE
	m["DEFAULT"] = BE
	return m
}()

func (m Marking) String() string {
	if name, ok := markingNames[m]; ok {
		return name
	}
	return fmt.Sprintf("DSCP%d", uint8(m))
}

// TOS returns the IPv4 TOS byte for the marking (ECN bits zero).
func (m Marking) TOS() uint8 {
	return uint8(m) << 2
}

// MarkingFromTOS extracts the code point from a TOS byte.
func MarkingFromTOS(tos uint8) Marking {
	return Marking(tos >> 2)
}

// ParseMarking accepts a code point name ("EF", "af41", "BE") or a decimal
// or 0x-prefixed number in [0, 63].
func ParseMarking(s string) (Marking, error) {
	s = strings.TrimSpace(s)
	if m, ok := markingByName[strings.ToUpper(s)]; ok {
		return m, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown marking %q", s)
	}
	if v > uint64(MaxMarking) {
		return 0, fmt.Errorf("marking %d out of range [0, %d]", v, MaxMarking)
	}
	return Marking(v), nil
}
