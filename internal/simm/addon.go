package simm

import (
	"fmt"

	"github.com/openrisk/margin-engine/internal/crif"
)

// calcAddMargin applies the portfolio-level additional margins carried by
// parameter records: product class multipliers, fixed add-on amounts and
// notional-factor add-ons. All amounts accumulate into the already
// populated aggregate cells.
func (c *Calculator) calcAddMargin(net *crif.NetRecords, results *Results) error {
	const overwrite = false

	// Product class multipliers scale the margin of the named product
	// class by (factor - 1).
	for _, p := range net.Parameters(crif.RiskTypeProductClassMultiplier) {
		if p.ProductClass != crif.ProductClassEmpty {
			continue
		}
		qpc, err := crif.ParseProductClass(p.Qualifier)
		if err != nil {
			return err
		}
		if !results.Has(qpc, RiskClassAll, MarginTypeAll, BucketAll) {
			continue
		}
		im := results.Get(qpc, RiskClassAll, MarginTypeAll, BucketAll)
		factor := p.Amount
		if factor < 0 {
			return fmt.Errorf("simm: product class multiplier for %s must be non-negative, got %v", p.Qualifier, factor)
		}
		pcmMargin := (factor - 1.0) * im
		results.Add(qpc, RiskClassAll, MarginTypeAdditionalIM, BucketAll, pcmMargin, overwrite)
		results.Add(qpc, RiskClassAll, MarginTypeAll, BucketAll, pcmMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAdditionalIM, BucketAll, pcmMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAll, BucketAll, pcmMargin, overwrite)
	}

	// Fixed add-on amounts.
	for _, p := range net.Parameters(crif.RiskTypeAddOnFixedAmount) {
		if p.ProductClass != crif.ProductClassEmpty {
			continue
		}
		fixedMargin := p.AmountUSD
		results.Add(crif.ProductClassAddOnFixedAmount, RiskClassAll, MarginTypeAdditionalIM, BucketAll, fixedMargin, overwrite)
		results.Add(crif.ProductClassAddOnFixedAmount, RiskClassAll, MarginTypeAll, BucketAll, fixedMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAdditionalIM, BucketAll, fixedMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAll, BucketAll, fixedMargin, overwrite)
	}

	// Notional-factor add-ons: each factor record pairs with at most one
	// Notional record of the same qualifier and contributes
	// notional * factor / 100.
	notionals := net.Parameters(crif.RiskTypeNotional)
	for _, p := range net.Parameters(crif.RiskTypeAddOnNotionalFactor) {
		if p.ProductClass != crif.ProductClassEmpty {
			continue
		}
		var matches []crif.Record
		for _, n := range notionals {
			if n.ProductClass == crif.ProductClassEmpty && n.Qualifier == p.Qualifier {
				matches = append(matches, n)
			}
		}
		if len(matches) > 1 {
			return fmt.Errorf("simm: expected 0 or 1 Notional records for qualifier %s, got %d", p.Qualifier, len(matches))
		}
		if len(matches) == 0 {
			continue
		}
		notionalFactorMargin := matches[0].AmountUSD * p.Amount / 100.0
		results.Add(crif.ProductClassAddOnNotionalFactor, RiskClassAll, MarginTypeAdditionalIM, BucketAll, notionalFactorMargin, overwrite)
		results.Add(crif.ProductClassAddOnNotionalFactor, RiskClassAll, MarginTypeAll, BucketAll, notionalFactorMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAdditionalIM, BucketAll, notionalFactorMargin, overwrite)
		results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAll, BucketAll, notionalFactorMargin, overwrite)
	}

	return nil
}
