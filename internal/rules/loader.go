// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	rerrors "github.com/arkime/sessiond/internal/errors"
	"github.com/arkime/sessiond/internal/session"
)

// ruleDocument is the top-level shape of one rule YAML file.
type ruleDocument struct {
	Version int        `yaml:"version"`
	Rules   []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	Name       string              `yaml:"name"`
	When       string              `yaml:"when"`
	BPF        []RawBPFInstruction `yaml:"bpf"`
	Fields     yaml.Node           `yaml:"fields"`
	Expression yaml.Node           `yaml:"expression"`
	Ops        yaml.Node           `yaml:"ops"`
	Log        bool                `yaml:"log"`
}

// LoadDocument parses raw YAML bytes into a fully resolved rule set.
// Every field expression is resolved against registry at load time;
// an unknown one is a fatal KindUnknownField error. The caller must
// not adopt any partial result: on error the returned slice is always
// nil.
func LoadDocument(data []byte, sourceName string, registry session.FieldsRegistry) ([]*Rule, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, rerrors.Wrap(err, rerrors.KindConfigError, "parsing rule document "+sourceName)
	}
	if doc.Version != 1 {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "%s: unsupported version %d, expected 1", sourceName, doc.Version)
	}

	rules := make([]*Rule, 0, len(doc.Rules))
	for i, ry := range doc.Rules {
		r, err := loadRule(ry, sourceName, registry)
		if err != nil {
			return nil, rerrors.Wrapf(err, rerrors.GetKind(err), "%s: rule %d", sourceName, i)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func loadRule(ry ruleYAML, sourceName string, registry session.FieldsRegistry) (*Rule, error) {
	if ry.Name == "" {
		return nil, rerrors.New(rerrors.KindConfigError, "rule missing required name")
	}

	trigger, saveFlags, err := parseWhen(ry.Name, ry.When)
	if err != nil {
		return nil, err
	}

	hasBPF := len(ry.BPF) > 0
	hasFields := !ry.Fields.IsZero()
	hasExpression := !ry.Expression.IsZero()

	if hasExpression {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "rule %q: expression is reserved and not supported", ry.Name)
	}

	selectors := 0
	if hasBPF {
		selectors++
	}
	if hasFields {
		selectors++
	}
	if selectors != 1 {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "rule %q: exactly one of bpf, fields must be present", ry.Name)
	}
	if hasBPF && trigger != TriggerEveryPacket && trigger != TriggerSessionSetup {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "rule %q: bpf is only valid for everyPacket and sessionSetup", ry.Name)
	}

	r := &Rule{
		Name:       ry.Name,
		SourceName: sourceName,
		Trigger:    trigger,
		SaveFlags:  saveFlags,
		LogMatches: ry.Log,
	}

	if hasBPF {
		prog, err := NewBPFProgram(ry.BPF)
		if err != nil {
			return nil, rerrors.Wrapf(err, rerrors.KindConfigError, "rule %q: bpf", ry.Name)
		}
		r.BPF = prog
	}
	if hasFields {
		fields, err := loadFields(&ry.Fields, ry.Name, registry)
		if err != nil {
			return nil, err
		}
		r.Fields = fields
	}
	if !ry.Ops.IsZero() {
		ops, err := loadOps(&ry.Ops, ry.Name, registry)
		if err != nil {
			return nil, err
		}
		r.Ops = ops
	}

	return r, nil
}

func parseWhen(ruleName, when string) (Trigger, int, error) {
	switch when {
	case "everyPacket":
		return TriggerEveryPacket, 0, nil
	case "sessionSetup":
		return TriggerSessionSetup, 0, nil
	case "afterClassify":
		return TriggerAfterClassify, 0, nil
	case "fieldSet":
		return TriggerFieldSet, 0, nil
	case "beforeMiddleSave":
		return TriggerBeforeSave, SaveMiddle, nil
	case "beforeFinalSave":
		return TriggerBeforeSave, SaveFinal, nil
	case "beforeBothSave":
		return TriggerBeforeSave, SaveBoth, nil
	default:
		return 0, 0, rerrors.Errorf(rerrors.KindConfigError, "rule %q: unknown when value %q", ruleName, when)
	}
}

// loadFields decodes the fields: mapping into resolved FieldMatch
// entries, aggregating duplicate field keys.
func loadFields(node *yaml.Node, ruleName string, registry session.FieldsRegistry) ([]FieldMatch, error) {
	if node.Kind != yaml.MappingNode {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "rule %q: fields must be a mapping", ruleName)
	}

	byPos := make(map[session.FieldPos]*FieldMatch)
	var order []session.FieldPos

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		expr, modifier := splitFieldKey(keyNode.Value)

		desc, ok := resolveFieldExpr(expr, registry)
		if !ok {
			return nil, rerrors.Errorf(rerrors.KindUnknownField, "rule %q: unknown field %q", ruleName, expr)
		}

		fm, exists := byPos[desc.Pos]
		if !exists {
			fm = &FieldMatch{Pos: desc.Pos, Kind: desc.Kind}
			byPos[desc.Pos] = fm
			order = append(order, desc.Pos)
		}

		if err := applyFieldValue(fm, desc, modifier, valNode, ruleName, expr); err != nil {
			return nil, err
		}
	}

	out := make([]FieldMatch, 0, len(order))
	for _, pos := range order {
		out = append(out, *byPos[pos])
	}
	return out, nil
}

func splitFieldKey(key string) (expr, modifier string) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func affixKindFor(modifier string) (AffixKind, bool) {
	switch modifier {
	case "tail", "endsWith":
		return AffixTail, true
	case "head", "startsWith":
		return AffixHead, true
	case "contains":
		return AffixContains, true
	default:
		return 0, false
	}
}

// applyFieldValue decodes one fields: value (scalar or sequence) into
// fm according to desc's kind and the optional modifier.
func applyFieldValue(fm *FieldMatch, desc session.FieldDescriptor, modifier string, val *yaml.Node, ruleName, expr string) error {
	values := scalarsOf(val)

	if modifier != "" {
		kind, ok := affixKindFor(modifier)
		if !ok {
			return rerrors.Errorf(rerrors.KindConfigError, "rule %q: unknown modifier %q on %q", ruleName, modifier, expr)
		}
		if desc.Kind != session.KindString {
			return rerrors.Errorf(rerrors.KindConfigError, "rule %q: modifier %q only valid on string fields (%q)", ruleName, modifier, expr)
		}
		for _, v := range values {
			fm.Affixes = append(fm.Affixes, AffixPattern{Kind: kind, Value: v})
		}
		return nil
	}

	switch desc.Kind {
	case session.KindIPv4, session.KindIPv6:
		for _, v := range values {
			cidr, err := parseCIDRValue(v)
			if err != nil {
				return rerrors.Wrapf(err, rerrors.KindConfigError, "rule %q: field %q", ruleName, expr)
			}
			fm.CIDRs = append(fm.CIDRs, cidr)
		}
	case session.KindString:
		fm.Strings = append(fm.Strings, values...)
	case session.KindFloat:
		for _, v := range values {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return rerrors.Wrapf(err, rerrors.KindConfigError, "rule %q: field %q", ruleName, expr)
			}
			fm.Floats = append(fm.Floats, float32BitsOf(float32(f)))
		}
	default:
		for _, v := range values {
			if r, ok := parseIntRange(v); ok {
				if r.Max-r.Min < rangeExpansionWidth {
					for n := r.Min; n <= r.Max; n++ {
						fm.Ints = append(fm.Ints, n)
					}
				} else {
					fm.Ranges = append(fm.Ranges, r)
				}
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return rerrors.Wrapf(err, rerrors.KindConfigError, "rule %q: field %q", ruleName, expr)
			}
			fm.Ints = append(fm.Ints, n)
		}
	}
	return nil
}

// parseIntRange recognizes a "min-max" value: a '-' that appears after
// the first character, so a leading negative number isn't mistaken for
// a range separator.
func parseIntRange(v string) (IntRange, bool) {
	if len(v) < 2 {
		return IntRange{}, false
	}
	rel := strings.Index(v[1:], "-")
	if rel < 0 {
		return IntRange{}, false
	}
	idx := rel + 1
	lo, err1 := strconv.ParseInt(v[:idx], 10, 64)
	hi, err2 := strconv.ParseInt(v[idx+1:], 10, 64)
	if err1 != nil || err2 != nil {
		return IntRange{}, false
	}
	return IntRange{Min: lo, Max: hi}, true
}

// parseCIDRValue classifies an IP matcher value: the ipv4/ipv6
// wildcards, otherwise a dot-containing literal is IPv4 and its absence
// is IPv6, each parsed as a CIDR (a bare address is treated as a /32 or
// /128 host route).
func parseCIDRValue(v string) (CIDRMatch, error) {
	switch v {
	case "ipv4":
		v = "0.0.0.0/0"
	case "ipv6":
		v = "::/0"
	}

	if !strings.Contains(v, "/") {
		if strings.Contains(v, ".") {
			v += "/32"
		} else {
			v += "/128"
		}
	}

	_, network, err := net.ParseCIDR(v)
	if err != nil {
		return CIDRMatch{}, rerrors.Wrap(err, rerrors.KindConfigError, "parsing CIDR "+v)
	}
	bits, _ := network.Mask.Size()
	isIPv6 := network.IP.To4() == nil
	prefix := network.IP.To4()
	if isIPv6 {
		prefix = network.IP.To16()
	}
	return CIDRMatch{Prefix: prefix, Bits: bits, IsIPv6: isIPv6}, nil
}

// scalarsOf flattens a YAML scalar or sequence node into its string
// values.
func scalarsOf(node *yaml.Node) []string {
	if node == nil || node.IsZero() {
		return nil
	}
	if node.Kind == yaml.SequenceNode {
		out := make([]string, 0, len(node.Content))
		for _, c := range node.Content {
			out = append(out, c.Value)
		}
		return out
	}
	return []string{node.Value}
}

// loadOps decodes the ops: mapping into an ordered operation list.
// Order is taken from the YAML mapping's declaration order, which
// yaml.Node preserves.
func loadOps(node *yaml.Node, ruleName string, registry session.FieldsRegistry) ([]Op, error) {
	if node.Kind != yaml.MappingNode {
		return nil, rerrors.Errorf(rerrors.KindConfigError, "rule %q: ops must be a mapping", ruleName)
	}

	var ops []Op
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		desc, ok := resolveFieldExpr(keyNode.Value, registry)
		if !ok {
			return nil, rerrors.Errorf(rerrors.KindUnknownField, "rule %q: unknown field %q in ops", ruleName, keyNode.Value)
		}
		ops = append(ops, Op{Pos: desc.Pos, Kind: desc.Kind, Value: opValue(desc.Kind, valNode)})
	}
	return ops, nil
}

func opValue(kind session.FieldKind, node *yaml.Node) any {
	switch kind {
	case session.KindInt:
		n, _ := strconv.ParseInt(node.Value, 10, 64)
		return n
	case session.KindFloat:
		f, _ := strconv.ParseFloat(node.Value, 32)
		return float32BitsOf(float32(f))
	default:
		return node.Value
	}
}

// NewSynthBPFRule builds a SessionSetup BPF rule from a
// dontSaveBPFs/minPacketsSaveBPFs config entry of the form
// "<bpf program name>[: <n>]", where n sets a packet-count field via
// ops. prog is the already assembled BPF program registered under that
// name; field is the session field the count is written to
// (_maxPacketsToSave or _minPacketsBeforeSavingSPI).
func NewSynthBPFRule(entry string, prog *BPFProgram, fieldPos session.FieldPos, ruleName string) *Rule {
	name, countStr, hasCount := strings.Cut(entry, ":")
	name = strings.TrimSpace(name)
	r := &Rule{
		Name:       ruleName + ":" + name,
		SourceName: "config",
		Trigger:    TriggerSessionSetup,
		BPF:        prog,
	}
	if hasCount {
		if n, err := strconv.ParseInt(strings.TrimSpace(countStr), 10, 64); err == nil {
			r.Ops = []Op{{Pos: fieldPos, Kind: session.KindInt, Value: n}}
		}
	}
	return r
}

// sortRulesBySource orders rules deterministically by source file then
// declaration order, for reproducible diagnostics and stable reload
// behavior across repeated loads of the same documents.
func sortRulesBySource(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].SourceName < rules[j].SourceName
	})
}
