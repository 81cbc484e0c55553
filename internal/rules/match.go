// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"math"
	"net"
)

func float32BitsOf(f float32) uint32 {
	return math.Float32bits(f)
}

// matchFieldValue reports whether v satisfies any matcher registered
// against f. Array/set/map-valued fields match when any member
// satisfies the matchers.
func matchFieldValue(f FieldMatch, v any) bool {
	switch t := v.(type) {
	case []any:
		for _, m := range t {
			if matchScalar(f, m) {
				return true
			}
		}
		return false
	case map[any]bool:
		for m := range t {
			if matchScalar(f, m) {
				return true
			}
		}
		return false
	case map[any]any:
		for m := range t {
			if matchScalar(f, m) {
				return true
			}
		}
		return false
	default:
		return matchScalar(f, v)
	}
}

func matchScalar(f FieldMatch, v any) bool {
	switch t := v.(type) {
	case int64:
		return matchInt(f, t)
	case int:
		return matchInt(f, int64(t))
	case uint32:
		for _, want := range f.Floats {
			if want == t {
				return true
			}
		}
		return false
	case float32:
		bits := float32BitsOf(t)
		for _, want := range f.Floats {
			if want == bits {
				return true
			}
		}
		return false
	case string:
		for _, want := range f.Strings {
			if want == t {
				return true
			}
		}
		for _, a := range f.Affixes {
			if a.Matches(t) {
				return true
			}
		}
		return false
	case net.IP:
		return matchIP(f, t)
	case bool:
		return false
	default:
		return false
	}
}

func matchInt(f FieldMatch, v int64) bool {
	for _, want := range f.Ints {
		if want == v {
			return true
		}
	}
	for _, r := range f.Ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

func matchIP(f FieldMatch, ip net.IP) bool {
	var addr []byte
	isIPv6 := true
	if v4 := ip.To4(); v4 != nil {
		addr, isIPv6 = v4, false
	} else {
		addr = ip.To16()
	}
	if addr == nil {
		return false
	}
	for _, c := range f.CIDRs {
		if c.IsIPv6 != isIPv6 {
			continue
		}
		if cidrContains(c, addr) {
			return true
		}
	}
	return false
}

func cidrContains(c CIDRMatch, addr []byte) bool {
	if len(c.Prefix) != len(addr) {
		return false
	}
	full := c.Bits / 8
	for i := 0; i < full; i++ {
		if c.Prefix[i] != addr[i] {
			return false
		}
	}
	rem := c.Bits % 8
	if rem == 0 {
		return true
	}
	mask := byte(0xFF << (8 - rem))
	return c.Prefix[full]&mask == addr[full]&mask
}
