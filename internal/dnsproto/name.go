// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"strconv"
	"strings"

	"github.com/arkime/sessiond/internal/wire"
)

// maxPointerHops bounds the number of compression-pointer dereferences a
// single name decode may follow. RFC 1035 names are capped at 255 octets;
// bounding hops (rather than relying on that alone) protects against
// pointer chains that bounce between a small set of offsets without ever
// growing the name past the length cap.
const maxPointerHops = 6

// maxNameLength is the RFC 1035 wire-format limit on a decoded name.
const maxNameLength = 255

// rootName is the sentinel used for the empty (root) name.
const rootName = "<root>"

// DecodeName decodes a possibly-compressed domain name starting at r's
// current position and advances r past the name as it appears in the
// original stream (i.e. past the first pointer taken, or past the
// terminating zero length if no pointer was taken). It never reads
// outside the message and never loops: more than maxPointerHops pointer
// dereferences is a soft failure.
func DecodeName(r *wire.Reader) (string, bool) {
	root := r.Root()
	var labels []string
	totalLen := 0
	hops := 0
	jumped := false

	// cur tracks the absolute offset in root we are currently reading
	// labels from. Before the first pointer is followed, advancing cur
	// also advances r; after that, r has already been left positioned
	// just past the pointer and must not move further.
	cur := r.AbsPos()

	for {
		if cur < 0 || cur >= len(root) {
			return "", false
		}
		length := root[cur]

		if length&0xC0 == 0xC0 {
			// Compression pointer: 14-bit offset from this byte and the next.
			if cur+1 >= len(root) {
				return "", false
			}
			offset := (int(length&0x3F) << 8) | int(root[cur+1])
			if !jumped {
				// Parent reader consumes exactly the 2 pointer bytes.
				if !r.Skip(2) {
					return "", false
				}
			}
			hops++
			if hops > maxPointerHops {
				return "", false
			}
			cur = offset
			jumped = true
			continue
		}

		if length == 0 {
			if !jumped {
				if !r.Skip(1) {
					return "", false
				}
			}
			break
		}

		labelStart := cur + 1
		labelEnd := labelStart + int(length)
		if labelEnd > len(root) {
			return "", false
		}

		totalLen += int(length) + 1
		if totalLen > maxNameLength {
			return "", false
		}

		labels = append(labels, sanitizeLabel(root[labelStart:labelEnd]))

		if !jumped {
			if !r.Skip(1 + int(length)) {
				return "", false
			}
		}
		cur = labelEnd
	}

	if len(labels) == 0 {
		return rootName, true
	}
	return strings.Join(labels, "."), true
}

// sanitizeLabel renders a raw label as safe UTF-8: non-ASCII bytes become
// M-<7-bit value>, non-printable ASCII bytes become ^<byte XOR 0x40>,
// everything else passes through unchanged.
func sanitizeLabel(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sanitizeByte(&sb, c)
	}
	return sb.String()
}

func sanitizeByte(sb *strings.Builder, c byte) {
	if c >= 0x80 {
		sb.WriteString("M-")
		sanitizeByte(sb, c&0x7F)
		return
	}
	if c < 0x20 || c == 0x7F {
		sb.WriteByte('^')
		sb.WriteByte(c ^ 0x40)
		return
	}
	sb.WriteByte(c)
}

// formatLowSevenBits is retained for callers that want the numeric escape
// form instead of the recursive character form; unused by DecodeName.
func formatLowSevenBits(c byte) string {
	return "M-" + strconv.Itoa(int(c&0x7F))
}
