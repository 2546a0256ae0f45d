package simm

import (
	"fmt"
	"math"
	"sort"

	"github.com/openrisk/margin-engine/internal/crif"
)

// irQualifiers collects the sorted set of currencies appearing across the
// given interest-rate risk types.
func irQualifiers(sens []crif.Record, pc crif.ProductClass, rts ...crif.RiskType) []string {
	seen := make(map[string]bool)
	for _, r := range sens {
		if r.ProductClass != pc {
			continue
		}
		for _, rt := range rts {
			if r.RiskType == rt {
				seen[r.Qualifier] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

func filterQualifier(recs []crif.Record, qualifier string) []crif.Record {
	var out []crif.Record
	for _, r := range recs {
		if r.Qualifier == qualifier {
			out = append(out, r)
		}
	}
	return out
}

// single returns the at-most-one record for risk types that net to a single
// risk factor per currency (inflation, cross-currency basis).
func single(recs []crif.Record, qualifier string, rt crif.RiskType) (crif.Record, bool, error) {
	matches := filterQualifier(recs, qualifier)
	if len(matches) > 1 {
		return crif.Record{}, false, fmt.Errorf("simm: expected 0 or 1 %s records for qualifier %s, got %d", rt, qualifier, len(matches))
	}
	if len(matches) == 0 {
		return crif.Record{}, false, nil
	}
	return matches[0], true, nil
}

// irDeltaMargin computes the interest-rate delta margin of a product class.
// Unlike the generic bucket aggregation, currencies play the bucket role and
// the IRCurve, Inflation and XCcyBasis risk types merge per currency. The
// cross-currency basis is neither included in the concentration figure nor
// scaled by it.
func (c *Calculator) irDeltaMargin(pc crif.ProductClass, sens []crif.Record) (map[string]float64, bool, error) {
	bucketMargins := map[string]float64{BucketAll: 0}

	qualifiers := irQualifiers(sens, pc, crif.RiskTypeIRCurve, crif.RiskTypeXCcyBasis, crif.RiskTypeInflation)
	if len(qualifiers) == 0 {
		return bucketMargins, false, nil
	}

	irCurve := filterSens(sens, pc, crif.RiskTypeIRCurve)
	xccy := filterSens(sens, pc, crif.RiskTypeXCcyBasis)
	inflation := filterSens(sens, pc, crif.RiskTypeInflation)

	concentrationRisk := make(map[string]float64)
	deltaMargin := make(map[string]float64)
	sumWS := make(map[string]float64)

	for _, qualifier := range qualifiers {
		curve := filterQualifier(irCurve, qualifier)

		xccyRec, hasXccy, err := single(xccy, qualifier, crif.RiskTypeXCcyBasis)
		if err != nil {
			return nil, false, err
		}
		infRec, hasInf, err := single(inflation, qualifier, crif.RiskTypeInflation)
		if err != nil {
			return nil, false, err
		}

		cr := 0.0
		for _, r := range curve {
			cr += r.AmountUSD
		}
		if hasInf {
			cr += infRec.AmountUSD
		}
		cr /= c.cfg.ConcentrationThreshold(crif.RiskTypeIRCurve, qualifier, "")
		cr = math.Max(1.0, math.Sqrt(math.Abs(cr)))
		concentrationRisk[qualifier] = cr

		k := 0.0
		for i, outer := range curve {
			rwOuter, err := c.cfg.Weight(crif.RiskTypeIRCurve, qualifier, "", outer.Label1, "")
			if err != nil {
				return nil, false, err
			}
			wsOuter := rwOuter * outer.AmountUSD * cr
			sumWS[qualifier] += wsOuter
			k += wsOuter * wsOuter
			for _, inner := range curve[:i] {
				// phi, the sub-curve correlation on Label2.
				subCurveCorr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier, Label2: outer.Label2},
					CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier, Label2: inner.Label2}, "")
				if err != nil {
					return nil, false, err
				}
				// rho, the tenor correlation on Label1.
				tenorCorr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier, Label1: outer.Label1},
					CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier, Label1: inner.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				rwInner, err := c.cfg.Weight(crif.RiskTypeIRCurve, qualifier, "", inner.Label1, "")
				if err != nil {
					return nil, false, err
				}
				wsInner := rwInner * inner.AmountUSD * cr
				k += 2 * subCurveCorr * tenorCorr * wsOuter * wsInner
			}
		}

		wsInflation := 0.0
		if hasInf {
			rwInf, err := c.cfg.Weight(crif.RiskTypeInflation, qualifier, "", infRec.Label1, "")
			if err != nil {
				return nil, false, err
			}
			wsInflation = rwInf * infRec.AmountUSD * cr
			sumWS[qualifier] += wsInflation
			k += wsInflation * wsInflation
			corr, err := c.cfg.Correlation(
				CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier},
				CorrelationKey{RiskType: crif.RiskTypeInflation, Qualifier: qualifier}, "")
			if err != nil {
				return nil, false, err
			}
			for _, r := range curve {
				rw, err := c.cfg.Weight(crif.RiskTypeIRCurve, qualifier, "", r.Label1, "")
				if err != nil {
					return nil, false, err
				}
				ws := rw * r.AmountUSD * cr
				k += 2 * corr * ws * wsInflation
			}
		}

		if hasXccy {
			rwXccy, err := c.cfg.Weight(crif.RiskTypeXCcyBasis, qualifier, "", xccyRec.Label1, "")
			if err != nil {
				return nil, false, err
			}
			// No concentration scaling on the cross-currency basis.
			wsXccy := rwXccy * xccyRec.AmountUSD
			sumWS[qualifier] += wsXccy
			k += wsXccy * wsXccy
			corr, err := c.cfg.Correlation(
				CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: qualifier},
				CorrelationKey{RiskType: crif.RiskTypeXCcyBasis, Qualifier: qualifier}, "")
			if err != nil {
				return nil, false, err
			}
			for _, r := range curve {
				// The weight lookup here is calculation-currency aware,
				// matching the cross term as the methodology words it.
				rw, err := c.cfg.Weight(crif.RiskTypeIRCurve, qualifier, "", r.Label1, c.calcCcy)
				if err != nil {
					return nil, false, err
				}
				ws := rw * r.AmountUSD * cr
				k += 2 * corr * ws * wsXccy
			}
			if hasInf {
				corrInfX, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeInflation, Qualifier: qualifier},
					CorrelationKey{RiskType: crif.RiskTypeXCcyBasis, Qualifier: qualifier}, "")
				if err != nil {
					return nil, false, err
				}
				k += 2 * corrInfX * wsInflation * wsXccy
			}
		}

		deltaMargin[qualifier] = math.Sqrt(math.Max(k, 0.0))
	}

	total := 0.0
	for i, outer := range qualifiers {
		kOuter := deltaMargin[outer]
		total += kOuter * kOuter
		sOuter := clampToBucket(sumWS[outer], kOuter)
		for _, inner := range qualifiers[:i] {
			kInner := deltaMargin[inner]
			sInner := clampToBucket(sumWS[inner], kInner)
			g := math.Min(concentrationRisk[outer], concentrationRisk[inner]) /
				math.Max(concentrationRisk[outer], concentrationRisk[inner])
			corr, err := c.cfg.Correlation(
				CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: outer},
				CorrelationKey{RiskType: crif.RiskTypeIRCurve, Qualifier: inner}, "")
			if err != nil {
				return nil, false, err
			}
			total += 2.0 * sOuter * sInner * corr * g
		}
	}
	total = math.Sqrt(math.Max(total, 0.0))

	for q, m := range deltaMargin {
		bucketMargins[q] = m
	}
	bucketMargins[BucketAll] = total
	return bucketMargins, true, nil
}

// irVegaMargin computes the interest-rate vega margin, merging IRVol and
// InflationVol sensitivities per currency.
func (c *Calculator) irVegaMargin(pc crif.ProductClass, sens []crif.Record) (map[string]float64, bool, error) {
	bucketMargins := map[string]float64{BucketAll: 0}

	qualifiers := irQualifiers(sens, pc, crif.RiskTypeIRVol, crif.RiskTypeInflationVol)
	if len(qualifiers) == 0 {
		return bucketMargins, false, nil
	}

	irVol := filterSens(sens, pc, crif.RiskTypeIRVol)
	infVol := filterSens(sens, pc, crif.RiskTypeInflationVol)

	concentrationRisk := make(map[string]float64)
	vegaMargin := make(map[string]float64)
	sumWS := make(map[string]float64)

	for _, qualifier := range qualifiers {
		ir := filterQualifier(irVol, qualifier)
		inf := filterQualifier(infVol, qualifier)

		cr := 0.0
		for _, r := range ir {
			cr += r.AmountUSD
		}
		for _, r := range inf {
			cr += r.AmountUSD
		}
		cr /= c.cfg.ConcentrationThreshold(crif.RiskTypeIRVol, qualifier, "")
		cr = math.Max(1.0, math.Sqrt(math.Abs(cr)))
		concentrationRisk[qualifier] = cr

		k := 0.0
		for i, outer := range ir {
			rwOuter, err := c.cfg.Weight(crif.RiskTypeIRVol, qualifier, "", outer.Label1, "")
			if err != nil {
				return nil, false, err
			}
			wsOuter := rwOuter * outer.AmountUSD * cr
			sumWS[qualifier] += wsOuter
			k += wsOuter * wsOuter
			for _, inner := range ir[:i] {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: outer.Label1},
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: inner.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				rwInner, err := c.cfg.Weight(crif.RiskTypeIRVol, qualifier, "", inner.Label1, "")
				if err != nil {
					return nil, false, err
				}
				wsInner := rwInner * inner.AmountUSD * cr
				k += 2 * corr * wsOuter * wsInner
			}
		}

		// Inflation vol components, correlated against every IRVol tenor
		// and against earlier inflation vol entries.
		for i, outer := range inf {
			rwOuter, err := c.cfg.Weight(crif.RiskTypeInflationVol, qualifier, "", outer.Label1, "")
			if err != nil {
				return nil, false, err
			}
			wsOuter := rwOuter * outer.AmountUSD * cr
			sumWS[qualifier] += wsOuter
			k += wsOuter * wsOuter
			for _, inner := range ir {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeInflationVol, Qualifier: qualifier, Label1: outer.Label1},
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: inner.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				rwInner, err := c.cfg.Weight(crif.RiskTypeIRVol, qualifier, "", inner.Label1, "")
				if err != nil {
					return nil, false, err
				}
				wsInner := rwInner * inner.AmountUSD * cr
				k += 2 * corr * wsOuter * wsInner
			}
			for _, inner := range inf[:i] {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeInflationVol, Qualifier: qualifier, Label1: outer.Label1},
					CorrelationKey{RiskType: crif.RiskTypeInflationVol, Qualifier: qualifier, Label1: inner.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				rwInner, err := c.cfg.Weight(crif.RiskTypeInflationVol, qualifier, "", inner.Label1, "")
				if err != nil {
					return nil, false, err
				}
				wsInner := rwInner * inner.AmountUSD * cr
				k += 2 * corr * wsOuter * wsInner
			}
		}

		vegaMargin[qualifier] = math.Sqrt(math.Max(k, 0.0))
	}

	total := 0.0
	for i, outer := range qualifiers {
		kOuter := vegaMargin[outer]
		total += kOuter * kOuter
		sOuter := clampToBucket(sumWS[outer], kOuter)
		for _, inner := range qualifiers[:i] {
			kInner := vegaMargin[inner]
			sInner := clampToBucket(sumWS[inner], kInner)
			g := math.Min(concentrationRisk[outer], concentrationRisk[inner]) /
				math.Max(concentrationRisk[outer], concentrationRisk[inner])
			corr, err := c.cfg.Correlation(
				CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: outer},
				CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: inner}, c.calcCcy)
			if err != nil {
				return nil, false, err
			}
			total += 2.0 * sOuter * sInner * corr * g
		}
	}
	total = math.Sqrt(math.Max(total, 0.0))

	for q, m := range vegaMargin {
		bucketMargins[q] = m
	}
	bucketMargins[BucketAll] = total
	return bucketMargins, true, nil
}

// irCurvatureMargin computes the interest-rate curvature margin. Post-side
// sensitivities enter with flipped sign; inflation vol participates from
// methodology versions after 1.0 onward; the aggregate is scaled by the
// configured curvature scaling while the per-currency breakdown is not.
func (c *Calculator) irCurvatureMargin(pc crif.ProductClass, side Side, sens []crif.Record) (map[string]float64, bool, error) {
	bucketMargins := map[string]float64{BucketAll: 0}

	multiplier := 1.0
	if side == SidePost {
		multiplier = -1.0
	}

	qualifiers := irQualifiers(sens, pc, crif.RiskTypeIRVol, crif.RiskTypeInflationVol)
	if len(qualifiers) == 0 {
		return bucketMargins, false, nil
	}

	irVol := filterSens(sens, pc, crif.RiskTypeIRVol)
	infVol := filterSens(sens, pc, crif.RiskTypeInflationVol)

	curvatureMargin := make(map[string]float64)
	sumWS := make(map[string]float64)
	sumAllWS := 0.0
	sumAbsWS := 0.0

	for _, qualifier := range qualifiers {
		ir := filterQualifier(irVol, qualifier)
		inf := filterQualifier(infVol, qualifier)

		k := 0.0
		for i, outer := range ir {
			sfOuter, err := c.cfg.CurvatureWeight(crif.RiskTypeIRVol, outer.Qualifier, outer.Label1, "")
			if err != nil {
				return nil, false, err
			}
			wsOuter := sfOuter * (outer.AmountUSD * multiplier)
			sumWS[qualifier] += wsOuter
			sumAllWS += wsOuter
			sumAbsWS += math.Abs(wsOuter)
			k += wsOuter * wsOuter
			for _, inner := range ir[:i] {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: outer.Label1},
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: inner.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				sfInner, err := c.cfg.CurvatureWeight(crif.RiskTypeIRVol, inner.Qualifier, inner.Label1, "")
				if err != nil {
					return nil, false, err
				}
				wsInner := sfInner * (inner.AmountUSD * multiplier)
				k += 2 * corr * corr * wsOuter * wsInner
			}
		}

		if versionAfter(c.cfg.Version(), 1, 0) {
			infWS := 0.0
			for _, r := range inf {
				sf, err := c.cfg.CurvatureWeight(crif.RiskTypeInflationVol, r.Qualifier, r.Label1, "")
				if err != nil {
					return nil, false, err
				}
				infWS += sf * (r.AmountUSD * multiplier)
			}
			sumWS[qualifier] += infWS
			sumAllWS += infWS
			sumAbsWS += math.Abs(infWS)

			// Inflation vol nets to one element, so the only cross terms
			// are against the IRVol tenors.
			k += infWS * infWS
			for _, r := range ir {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: crif.RiskTypeInflationVol, Qualifier: qualifier},
					CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: qualifier, Label1: r.Label1}, "")
				if err != nil {
					return nil, false, err
				}
				sf, err := c.cfg.CurvatureWeight(crif.RiskTypeIRVol, r.Qualifier, r.Label1, "")
				if err != nil {
					return nil, false, err
				}
				irWS := sf * (r.AmountUSD * multiplier)
				k += 2 * corr * corr * infWS * irWS
			}
		}

		curvatureMargin[qualifier] = math.Sqrt(math.Max(k, 0.0))
	}

	if closeEnough(sumAbsWS, 0.0) {
		return bucketMargins, true, nil
	}

	theta := math.Min(sumAllWS/sumAbsWS, 0.0)

	total := 0.0
	for i, outer := range qualifiers {
		kOuter := curvatureMargin[outer]
		total += kOuter * kOuter
		sOuter := clampToBucket(sumWS[outer], kOuter)
		for _, inner := range qualifiers[:i] {
			kInner := curvatureMargin[inner]
			sInner := clampToBucket(sumWS[inner], kInner)
			corr, err := c.cfg.Correlation(
				CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: outer},
				CorrelationKey{RiskType: crif.RiskTypeIRVol, Qualifier: inner}, "")
			if err != nil {
				return nil, false, err
			}
			total += 2.0 * sOuter * sInner * corr * corr
		}
	}
	total = sumAllWS + lambda(theta)*math.Sqrt(math.Max(total, 0.0))

	for q, m := range curvatureMargin {
		bucketMargins[q] = m
	}
	bucketMargins[BucketAll] = c.cfg.CurvatureMarginScaling() * math.Max(total, 0.0)
	return bucketMargins, true, nil
}
