package simm

import (
	"math"
	"sort"

	"github.com/openrisk/margin-engine/internal/crif"
)

// filterSens selects the sensitivities of one product class and risk type,
// preserving the deterministic input order.
func filterSens(sens []crif.Record, pc crif.ProductClass, rt crif.RiskType) []crif.Record {
	var out []crif.Record
	for _, r := range sens {
		if r.ProductClass == pc && r.RiskType == rt {
			out = append(out, r)
		}
	}
	return out
}

// groupByBucket arranges records per bucket. Bucket iteration must be
// deterministic, so the sorted bucket list is returned alongside.
func groupByBucket(recs []crif.Record) (bucketNames []string, byBucket map[string][]crif.Record) {
	byBucket = make(map[string][]crif.Record)
	for _, r := range recs {
		byBucket[r.Bucket] = append(byBucket[r.Bucket], r)
	}
	for b := range byBucket {
		bucketNames = append(bucketNames, b)
	}
	sort.Strings(bucketNames)
	return bucketNames, byBucket
}

// margin computes the delta, vega or base correlation margin of one risk
// type within a product class. The returned map holds the per-bucket
// margins K_b plus the aggregate under BucketAll; for the FX risk class the
// breakdown is per currency instead of per bucket. The bool is false when
// no sensitivity of the risk type is present.
func (c *Calculator) margin(pc crif.ProductClass, rt crif.RiskType, sens []crif.Record) (map[string]float64, bool, error) {
	bucketMargins := map[string]float64{BucketAll: 0}

	riskClassIsFX := rt == crif.RiskTypeFX || rt == crif.RiskTypeFXVol

	recs := filterSens(sens, pc, rt)
	bucketNames, byBucket := groupByBucket(recs)
	if len(bucketNames) == 0 {
		return bucketMargins, false, nil
	}

	hvr := c.cfg.HistoricalVolatilityRatio(rt)

	// K_b per bucket and the plain weighted sensitivity sums entering S_b.
	bucketMargin := make(map[string]float64)
	sumWS := make(map[string]float64)

	for _, bucket := range bucketNames {
		sumWS[bucket] = 0

		// Concentration risk per qualifier within the bucket. FX
		// sensitivities in the calculation currency are out of scope
		// entirely.
		concentrationRisk := make(map[string]float64)
		for _, r := range byBucket[bucket] {
			if rt == crif.RiskTypeFX && r.Qualifier == c.calcCcy {
				continue
			}
			sigma, err := c.cfg.Sigma(rt, r.Qualifier, r.Bucket)
			if err != nil {
				return nil, false, err
			}
			concentrationRisk[r.Qualifier] += r.AmountUSD * sigma * hvr
		}
		for q := range concentrationRisk {
			cr := concentrationRisk[q] / c.cfg.ConcentrationThreshold(rt, q, bucket)
			concentrationRisk[q] = math.Max(1.0, math.Sqrt(math.Abs(cr)))
		}

		k := 0.0
		inBucket := byBucket[bucket]
		for i, outer := range inBucket {
			if rt == crif.RiskTypeFX && outer.Qualifier == c.calcCcy {
				if !c.quiet {
					c.log.Debug("skipping FX sensitivity in calculation currency",
						"qualifier", outer.Qualifier, "calculation_currency", c.calcCcy)
				}
				continue
			}
			rwOuter, err := c.cfg.Weight(rt, outer.Qualifier, outer.Bucket, outer.Label1, c.calcCcy)
			if err != nil {
				return nil, false, err
			}
			sigmaOuter, err := c.cfg.Sigma(rt, outer.Qualifier, outer.Bucket)
			if err != nil {
				return nil, false, err
			}
			wsOuter := rwOuter * (outer.AmountUSD * sigmaOuter * hvr) * concentrationRisk[outer.Qualifier]
			sumWS[bucket] += wsOuter
			k += wsOuter * wsOuter
			for _, inner := range inBucket[:i] {
				if rt == crif.RiskTypeFX && inner.Qualifier == c.calcCcy {
					continue
				}
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: rt, Qualifier: outer.Qualifier, Bucket: outer.Bucket, Label1: outer.Label1, Label2: outer.Label2},
					CorrelationKey{RiskType: rt, Qualifier: inner.Qualifier, Bucket: inner.Bucket, Label1: inner.Label1, Label2: inner.Label2},
					c.calcCcy)
				if err != nil {
					return nil, false, err
				}
				// f_{k,l} dampens cross terms between unevenly
				// concentrated qualifiers.
				f := math.Min(concentrationRisk[outer.Qualifier], concentrationRisk[inner.Qualifier]) /
					math.Max(concentrationRisk[outer.Qualifier], concentrationRisk[inner.Qualifier])
				rwInner, err := c.cfg.Weight(rt, inner.Qualifier, inner.Bucket, inner.Label1, c.calcCcy)
				if err != nil {
					return nil, false, err
				}
				sigmaInner, err := c.cfg.Sigma(rt, inner.Qualifier, inner.Bucket)
				if err != nil {
					return nil, false, err
				}
				wsInner := rwInner * (inner.AmountUSD * sigmaInner * hvr) * concentrationRisk[inner.Qualifier]
				k += 2 * corr * f * wsOuter * wsInner
			}
			// FX margins are reported per currency, buckets are unused.
			if riskClassIsFX {
				bucketMargins[outer.Qualifier] += wsOuter
			}
		}
		bucketMargin[bucket] = math.Sqrt(math.Max(k, 0.0))
	}

	// The Residual bucket never correlates across buckets; it is added back
	// after the cross-bucket aggregation.
	residualMargin := 0.0
	if m, ok := bucketMargin[bucketResidual]; ok {
		residualMargin = m
		delete(bucketMargin, bucketResidual)
	}

	nonResidual := make([]string, 0, len(bucketMargin))
	for b := range bucketMargin {
		nonResidual = append(nonResidual, b)
	}
	sort.Strings(nonResidual)

	total := 0.0
	for i, outerBucket := range nonResidual {
		kOuter := bucketMargin[outerBucket]
		total += kOuter * kOuter
		sOuter := clampToBucket(sumWS[outerBucket], kOuter)
		for _, innerBucket := range nonResidual[:i] {
			kInner := bucketMargin[innerBucket]
			sInner := clampToBucket(sumWS[innerBucket], kInner)
			gamma, err := c.cfg.BucketCorrelation(rt, outerBucket, innerBucket)
			if err != nil {
				return nil, false, err
			}
			total += 2.0 * sOuter * sInner * gamma
		}
	}
	total = math.Sqrt(math.Max(total, 0.0))

	total += residualMargin
	if !closeEnough(residualMargin, 0.0) {
		bucketMargins[bucketResidual] = residualMargin
	}

	if !riskClassIsFX {
		for b, m := range bucketMargin {
			bucketMargins[b] = m
		}
	} else {
		for b, m := range bucketMargins {
			bucketMargins[b] = math.Abs(m)
		}
	}

	bucketMargins[BucketAll] = total
	return bucketMargins, true, nil
}
