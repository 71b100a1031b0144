package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/concord-labs/concord/pkg/contracts"
)

// GovernanceProfile is a YAML-tunable set of engine thresholds: the
// verification escalation bands, the per-risk compliance minimums, and
// the collaborator deadlines.
type GovernanceProfile struct {
	Name string `yaml:"name" json:"name"`

	Thresholds struct {
		LowEscalate float64 `yaml:"low_escalate" json:"low_escalate"`
		Automated   float64 `yaml:"automated" json:"automated"`
		HumanInLoop float64 `yaml:"human_in_loop" json:"human_in_loop"`
		Rigorous    float64 `yaml:"rigorous" json:"rigorous"`
	} `yaml:"thresholds" json:"thresholds"`

	ComplianceMinimums map[string]float64 `yaml:"compliance_minimums" json:"compliance_minimums"`

	// Rules maps a principle ID to a CEL source; a loaded rule decides
	// that principle's satisfaction instead of lexical evidence.
	Rules map[string]string `yaml:"rules" json:"rules,omitempty"`

	ReviewDeadline time.Duration `yaml:"review_deadline" json:"review_deadline"`
	SolverTimeout  time.Duration `yaml:"solver_timeout" json:"solver_timeout"`
}

// LoadProfile loads and parses one governance profile.
func LoadProfile(path string) (*GovernanceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	var profile GovernanceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return &profile, nil
}

// Apply overlays the profile on a config. Zero values in the profile
// keep the existing setting, so a profile may tune a single threshold.
func (p *GovernanceProfile) Apply(cfg *Config) {
	if p.Thresholds.LowEscalate > 0 {
		cfg.Verification.TLowEscalate = p.Thresholds.LowEscalate
	}
	if p.Thresholds.Automated > 0 {
		cfg.Verification.TAuto = p.Thresholds.Automated
	}
	if p.Thresholds.HumanInLoop > 0 {
		cfg.Verification.THitl = p.Thresholds.HumanInLoop
	}
	if p.Thresholds.Rigorous > 0 {
		cfg.Verification.TRigorous = p.Thresholds.Rigorous
	}
	if p.ReviewDeadline > 0 {
		cfg.Verification.ReviewDeadline = p.ReviewDeadline
	}
	if p.SolverTimeout > 0 {
		cfg.Verification.SolverTimeout = p.SolverTimeout
	}
}

// RiskThresholds converts the profile's compliance minimums to the
// scorer's risk-level map. Levels the profile does not set fall back to
// the provided defaults.
func (p *GovernanceProfile) RiskThresholds(defaults map[contracts.RiskLevel]float64) map[contracts.RiskLevel]float64 {
	out := make(map[contracts.RiskLevel]float64, len(defaults))
	for level, v := range defaults {
		out[level] = v
	}
	for level, v := range p.ComplianceMinimums {
		if v > 0 && v <= 1 {
			out[contracts.RiskLevel(level)] = v
		}
	}
	return out
}
