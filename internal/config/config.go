// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the session pipeline's HCL configuration and
// watches its rule documents for hot-reload.
package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	rerrors "github.com/arkime/sessiond/internal/errors"
)

// DNSRules is the configuration surface for the session pipeline: the
// OCSF-strict emission toggle, the two BPF-derived synthetic rule
// lists, and the set of rule document paths to load and watch.
type DNSRules struct {
	OCSFStrictMode     bool     `hcl:"ocsf_strict_mode,optional"`
	DontSaveBPFs       []string `hcl:"dont_save_bpfs,optional"`
	MinPacketsSaveBPFs []string `hcl:"min_packets_save_bpfs,optional"`
	RulesFiles         []string `hcl:"rules_files,optional"`
}

// Config is the top-level configuration document.
type Config struct {
	DNSRules DNSRules `hcl:"dns_rules,block"`
}

// Load reads and decodes an HCL configuration file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, rerrors.Wrap(err, rerrors.KindConfigError, "decoding configuration "+path)
	}
	return &cfg, nil
}
