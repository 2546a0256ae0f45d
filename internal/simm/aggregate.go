package simm

import (
	"math"

	"github.com/openrisk/margin-engine/internal/crif"
)

// populateResults fills in the aggregate cells of a results cube from the
// leaf margins: margin types sum within a risk class, risk classes combine
// via the cross-risk-class correlations within a product class, and product
// classes sum to the portfolio total. The off-hierarchy combinations
// (wildcards on other dimensions) are filled in the same way.
func (c *Calculator) populateResults(results *Results) {
	pcs := c.cfg.ProductClasses()
	rcs := c.cfg.RiskClasses()
	mts := c.cfg.MarginTypes()

	// Margin per (product class, risk class): sum over margin types.
	for _, pc := range pcs {
		for _, rc := range rcs {
			riskClassMargin := 0.0
			has := false
			for _, mt := range mts {
				if results.Has(pc, rc, mt, BucketAll) {
					riskClassMargin += results.Get(pc, rc, mt, BucketAll)
					has = true
				}
			}
			if has {
				results.Add(pc, rc, MarginTypeAll, BucketAll, riskClassMargin, true)
			}
		}
	}

	// Margin per product class: correlation-weighted combination across
	// risk classes.
	for _, pc := range pcs {
		productClassMargin := 0.0
		has := false
		for i, rcOuter := range rcs {
			if !results.Has(pc, rcOuter, MarginTypeAll, BucketAll) {
				continue
			}
			has = true
			imo := results.Get(pc, rcOuter, MarginTypeAll, BucketAll)
			productClassMargin += imo * imo
			for _, rcInner := range rcs[:i] {
				if !results.Has(pc, rcInner, MarginTypeAll, BucketAll) {
					continue
				}
				imi := results.Get(pc, rcInner, MarginTypeAll, BucketAll)
				corr := c.cfg.RiskClassCorrelation(rcOuter, rcInner)
				productClassMargin += 2.0 * corr * imo * imi
			}
		}
		if has {
			results.Add(pc, RiskClassAll, MarginTypeAll, BucketAll,
				math.Sqrt(math.Max(productClassMargin, 0.0)), true)
		}
	}

	// The portfolio margin is the plain sum over product classes.
	im := 0.0
	for _, pc := range pcs {
		if results.Has(pc, RiskClassAll, MarginTypeAll, BucketAll) {
			im += results.Get(pc, RiskClassAll, MarginTypeAll, BucketAll)
		}
	}
	results.Add(crif.ProductClassAll, RiskClassAll, MarginTypeAll, BucketAll, im, true)

	// Across risk classes for each (product class, margin type).
	for _, pc := range pcs {
		for _, mt := range mts {
			margin := 0.0
			has := false
			for i, rcOuter := range rcs {
				if !results.Has(pc, rcOuter, mt, BucketAll) {
					continue
				}
				has = true
				imo := results.Get(pc, rcOuter, mt, BucketAll)
				margin += imo * imo
				for _, rcInner := range rcs[:i] {
					if !results.Has(pc, rcInner, mt, BucketAll) {
						continue
					}
					imi := results.Get(pc, rcInner, mt, BucketAll)
					corr := c.cfg.RiskClassCorrelation(rcOuter, rcInner)
					margin += 2.0 * corr * imo * imi
				}
			}
			if has {
				results.Add(pc, RiskClassAll, mt, BucketAll, math.Sqrt(math.Max(margin, 0.0)), true)
			}
		}
	}

	// Across product classes for each (risk class, margin type).
	for _, rc := range rcs {
		for _, mt := range mts {
			margin := 0.0
			has := false
			for _, pc := range pcs {
				if !results.Has(pc, rc, mt, BucketAll) {
					continue
				}
				has = true
				margin += results.Get(pc, rc, mt, BucketAll)
			}
			if has {
				results.Add(crif.ProductClassAll, rc, mt, BucketAll, margin, true)
			}
		}
	}

	// Across product classes and margin types for each risk class.
	for _, rc := range rcs {
		margin := 0.0
		has := false
		for _, pc := range pcs {
			if !results.Has(pc, rc, MarginTypeAll, BucketAll) {
				continue
			}
			has = true
			margin += results.Get(pc, rc, MarginTypeAll, BucketAll)
		}
		if has {
			results.Add(crif.ProductClassAll, rc, MarginTypeAll, BucketAll, margin, true)
		}
	}

	// Across product classes and risk classes for each margin type.
	for _, mt := range mts {
		margin := 0.0
		has := false
		for _, pc := range pcs {
			if !results.Has(pc, RiskClassAll, mt, BucketAll) {
				continue
			}
			has = true
			margin += results.Get(pc, RiskClassAll, mt, BucketAll)
		}
		if has {
			results.Add(crif.ProductClassAll, RiskClassAll, mt, BucketAll, margin, true)
		}
	}
}
