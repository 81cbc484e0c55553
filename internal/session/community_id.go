// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
)

const (
	protoTCP  = 6
	protoUDP  = 17
	protoICMP = 1
)

// CommunityID computes the Community ID flow hash (v1, unseeded) for a
// session: a matchable session pseudo-field computed on demand, undefined
// (ok=false) for ICMP sessions because the flow 5-tuple used here has no
// port-equivalent fields for ICMP.
func CommunityID(s Session) (string, bool) {
	var proto byte
	switch s.Protocol() {
	case "tcp":
		proto = protoTCP
	case "udp":
		proto = protoUDP
	default:
		return "", false
	}

	srcIP := s.SrcIP().To16()
	dstIP := s.DstIP().To16()
	if srcIP == nil || dstIP == nil {
		return "", false
	}
	// Community ID operates on the shortest representation: 4 bytes for
	// an IPv4-mapped address, 16 otherwise.
	if v4 := s.SrcIP().To4(); v4 != nil {
		srcIP = v4
		dstIP = s.DstIP().To4()
	}

	srcPort := uint16(s.SrcPort())
	dstPort := uint16(s.DstPort())

	// Order the two endpoints so the hash is direction-independent: the
	// "lower" of (addr,port) sorts first.
	flip := false
	switch {
	case bytes.Compare(dstIP, srcIP) < 0:
		flip = true
	case bytes.Equal(srcIP, dstIP) && dstPort < srcPort:
		flip = true
	}

	oneAddr, twoAddr := srcIP, dstIP
	onePort, twoPort := srcPort, dstPort
	if flip {
		oneAddr, twoAddr = dstIP, srcIP
		onePort, twoPort = dstPort, srcPort
	}

	h := sha1.New()
	var seed [2]byte // unseeded (0)
	h.Write(seed[:])
	h.Write(oneAddr)
	h.Write(twoAddr)
	h.Write([]byte{proto, 0})
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], onePort)
	binary.BigEndian.PutUint16(portBuf[2:4], twoPort)
	h.Write(portBuf[:])

	sum := h.Sum(nil)
	return "1:" + base64.StdEncoding.EncodeToString(sum), true
}
