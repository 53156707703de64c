package service

import (
	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/config"
)

// ApproverBindings maps approval levels to configured approver identities.
type ApproverBindings struct {
	first  []string
	second []string
}

// NewApproverBindings reads the bindings from configuration.
func NewApproverBindings(cfg config.ApprovalsConfig) ApproverBindings {
	return ApproverBindings{first: cfg.FirstLevelIDs, second: cfg.SecondLevelIDs}
}

func (b ApproverBindings) ids(level models.ApprovalLevel) []string {
	if level == models.ApprovalLevelSecond {
		return b.second
	}
	return b.first
}

// Default returns the first configured approver of level.
func (b ApproverBindings) Default(level models.ApprovalLevel) (string, bool) {
	ids := b.ids(level)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Bound reports whether id is configured for level.
func (b ApproverBindings) Bound(level models.ApprovalLevel, id string) bool {
	for _, candidate := range b.ids(level) {
		if candidate == id {
			return true
		}
	}
	return false
}

// LevelOf returns the level id is bound to. Unbound ids act at the first level.
func (b ApproverBindings) LevelOf(id string) models.ApprovalLevel {
	if b.Bound(models.ApprovalLevelSecond, id) && !b.Bound(models.ApprovalLevelFirst, id) {
		return models.ApprovalLevelSecond
	}
	return models.ApprovalLevelFirst
}
