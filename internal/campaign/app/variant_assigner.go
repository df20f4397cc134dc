package app

import (
	"math/rand"

	"github.com/rankedceo/crm-email/internal/campaign/domain"
)

// VariantAssigner picks a content variant per recipient. Assignment is
// uniform random per recipient, so variant groups are balanced only in
// expectation. The randomness source is injectable for tests.
type VariantAssigner struct {
	intn func(n int) int
}

func NewVariantAssigner() *VariantAssigner {
	return &VariantAssigner{intn: rand.Intn}
}

// NewVariantAssignerWithSource builds an assigner with a fixed choice
// function, used by tests for deterministic assignment.
func NewVariantAssignerWithSource(intn func(n int) int) *VariantAssigner {
	return &VariantAssigner{intn: intn}
}

// Assign returns the variant index for one recipient. A single-variant
// campaign always gets index 0.
func (a *VariantAssigner) Assign(variants []domain.Variant) int {
	if len(variants) <= 1 {
		return 0
	}
	return a.intn(len(variants))
}
