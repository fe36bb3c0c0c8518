package policy

import (
	"context"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// SKUPolicy forces disable on reserved region SKUs.
// It never consults the package registry.
type SKUPolicy struct {
	Reserved []string
}

func NewSKUPolicy(reserved []string) *SKUPolicy {
	return &SKUPolicy{Reserved: reserved}
}

func (p *SKUPolicy) Evaluate(_ context.Context, in core.Input) core.Decision {
	for _, sku := range p.Reserved {
		if in.SKU == sku {
			return core.Decision{Disable: true, Reason: "sku_reserved:" + sku}
		}
	}
	return core.Decision{Disable: false, Reason: "sku_ok"}
}
