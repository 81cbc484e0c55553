// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"strings"

	rerrors "github.com/arkime/sessiond/internal/errors"
	"github.com/arkime/sessiond/internal/rules"
	"github.com/arkime/sessiond/internal/session"
)

// LoadAllRuleFiles parses every path in paths and concatenates the
// resulting rule sets. A failure on any one file aborts the whole
// load and returns no partial result.
func LoadAllRuleFiles(paths []string, registry session.FieldsRegistry) ([]*rules.Rule, error) {
	var all []*rules.Rule
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, rerrors.Wrap(err, rerrors.KindConfigError, "reading rule file "+p)
		}
		parsed, err := rules.LoadDocument(data, p, registry)
		if err != nil {
			return nil, err
		}
		all = append(all, parsed...)
	}
	return all, nil
}

// BuildSynthBPFRules constructs the dontSaveBPFs/minPacketsSaveBPFs
// synthetic rule families from the config's string lists. namedPrograms
// maps a BPF program name to its already assembled form; fields are
// resolved against registry.
func BuildSynthBPFRules(dontSave, minPackets []string, namedPrograms map[string]*rules.BPFProgram, registry session.FieldsRegistry) []*rules.Rule {
	var out []*rules.Rule
	maxField, ok := registry.Resolve("_maxPacketsToSave")
	if !ok {
		return out
	}
	minField, ok := registry.Resolve("_minPacketsBeforeSavingSPI")
	if !ok {
		return out
	}
	for _, entry := range dontSave {
		out = append(out, synthFromEntry(entry, namedPrograms, maxField.Pos, "dontSaveBPFs"))
	}
	for _, entry := range minPackets {
		out = append(out, synthFromEntry(entry, namedPrograms, minField.Pos, "minPacketsSaveBPFs"))
	}
	return nonNilRules(out)
}

func synthFromEntry(entry string, namedPrograms map[string]*rules.BPFProgram, fieldPos session.FieldPos, ruleName string) *rules.Rule {
	name, _, _ := strings.Cut(entry, ":")
	prog, ok := namedPrograms[strings.TrimSpace(name)]
	if !ok {
		return nil
	}
	return rules.NewSynthBPFRule(entry, prog, fieldPos, ruleName)
}

func nonNilRules(in []*rules.Rule) []*rules.Rule {
	out := make([]*rules.Rule, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
