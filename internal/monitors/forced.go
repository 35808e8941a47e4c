package monitors

import (
	"fmt"
	"strings"
)

// Forced is an administrative monitor that always succeeds or always
// fails, used to pin a member UP or DOWN regardless of its real state.
type Forced struct {
	Base `mapstructure:",squash"`

	Status string `mapstructure:"status" json:"status"`
}

func newForced() *Forced {
	return &Forced{
		Base:   Base{IntervalSec: 3600, TimeoutSec: 1, NumRetries: 0},
		Status: "up",
	}
}

func (m *Forced) Name() string { return "forced" }

func (m *Forced) validate() error {
	if err := m.Base.validate(); err != nil {
		return err
	}

	m.Status = strings.ToLower(m.Status)
	if m.Status != "up" && m.Status != "down" {
		return fmt.Errorf(`status %q must be either "up" or "down"`, m.Status)
	}
	return nil
}

func (m *Forced) Run(dstIP string) error {
	if m.Status == "down" {
		return fmt.Errorf("forced down")
	}
	return nil
}
