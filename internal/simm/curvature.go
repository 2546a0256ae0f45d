package simm

import (
	"math"
	"sort"

	"github.com/openrisk/margin-engine/internal/crif"
)

// curvatureMargin computes the curvature margin of one vol risk type within
// a product class. Post-side sensitivities enter with flipped sign. With
// rfLabels the per-qualifier netting that feeds the absolute sensitivity
// sums takes absolute values per risk factor rather than netting first,
// which is how the credit vol risk types aggregate.
func (c *Calculator) curvatureMargin(pc crif.ProductClass, rt crif.RiskType, side Side, sens []crif.Record, rfLabels bool) (map[string]float64, bool, error) {
	bucketMargins := map[string]float64{BucketAll: 0}

	riskClassIsFX := rt == crif.RiskTypeFX || rt == crif.RiskTypeFXVol

	multiplier := 1.0
	if side == SidePost {
		multiplier = -1.0
	}

	recs := filterSens(sens, pc, rt)
	bucketNames, byBucket := groupByBucket(recs)
	if len(bucketNames) == 0 {
		return bucketMargins, false, nil
	}

	// Equity vol bucket 12 curvature is zeroed from version 2.2 onward.
	zeroEquityBucket12 := versionAtLeast(c.cfg.Version(), 2, 2)

	curvatureMargin := make(map[string]float64)
	sumWS := make(map[string]float64)
	sumAbsWS := make(map[string]float64)

	for _, bucket := range bucketNames {
		// Per-qualifier accumulation feeding the bucket's absolute
		// sensitivity sum.
		absByQualifier := make(map[string]float64)

		k := 0.0
		inBucket := byBucket[bucket]
		for i, outer := range inBucket {
			sfOuter, err := c.cfg.CurvatureWeight(rt, outer.Qualifier, outer.Label1, c.calcCcy)
			if err != nil {
				return nil, false, err
			}
			sigmaOuter, err := c.cfg.Sigma(rt, outer.Qualifier, outer.Bucket)
			if err != nil {
				return nil, false, err
			}
			// The grouping of factors is deliberate: changing it changes
			// the rounding of the final margins.
			wsOuter := sfOuter * ((outer.AmountUSD * multiplier) * sigmaOuter)
			if zeroEquityBucket12 && bucket == "12" && rt == crif.RiskTypeEquityVol {
				wsOuter = 0.0
			}
			sumWS[bucket] += wsOuter
			if rfLabels {
				absByQualifier[outer.Qualifier] += math.Abs(wsOuter)
			} else {
				absByQualifier[outer.Qualifier] += wsOuter
			}
			k += wsOuter * wsOuter
			for _, inner := range inBucket[:i] {
				corr, err := c.cfg.Correlation(
					CorrelationKey{RiskType: rt, Qualifier: outer.Qualifier, Bucket: outer.Bucket, Label1: outer.Label1, Label2: outer.Label2},
					CorrelationKey{RiskType: rt, Qualifier: inner.Qualifier, Bucket: inner.Bucket, Label1: inner.Label1, Label2: inner.Label2},
					c.calcCcy)
				if err != nil {
					return nil, false, err
				}
				sfInner, err := c.cfg.CurvatureWeight(rt, inner.Qualifier, inner.Label1, c.calcCcy)
				if err != nil {
					return nil, false, err
				}
				sigmaInner, err := c.cfg.Sigma(rt, inner.Qualifier, inner.Bucket)
				if err != nil {
					return nil, false, err
				}
				wsInner := sfInner * ((inner.AmountUSD * multiplier) * sigmaInner)
				k += 2 * corr * corr * wsOuter * wsInner
			}
			if riskClassIsFX {
				bucketMargins[outer.Qualifier] += wsOuter
			}
		}
		curvatureMargin[bucket] = math.Sqrt(math.Max(k, 0.0))

		for _, v := range absByQualifier {
			sumAbsWS[bucket] += math.Abs(v)
		}
	}

	// Pull the Residual bucket out before cross-bucket aggregation; it gets
	// its own theta and lambda below.
	residualMargin := 0.0
	residualSum := 0.0
	residualAbsSum := 0.0
	if m, ok := curvatureMargin[bucketResidual]; ok {
		residualMargin = m
		residualSum = sumWS[bucketResidual]
		residualAbsSum = sumAbsWS[bucketResidual]
		delete(curvatureMargin, bucketResidual)
		delete(sumWS, bucketResidual)
		delete(sumAbsWS, bucketResidual)
	}

	nonResidual := make([]string, 0, len(curvatureMargin))
	for b := range curvatureMargin {
		nonResidual = append(nonResidual, b)
	}
	sort.Strings(nonResidual)

	sumSensis := 0.0
	sumAbsSensis := 0.0
	for _, b := range nonResidual {
		sumSensis += sumWS[b]
		sumAbsSensis += sumAbsWS[b]
	}

	total := 0.0
	if !closeEnough(sumAbsSensis, 0.0) {
		theta := math.Min(sumSensis/sumAbsSensis, 0.0)
		for i, outerBucket := range nonResidual {
			kOuter := curvatureMargin[outerBucket]
			total += kOuter * kOuter
			sOuter := clampToBucket(sumWS[outerBucket], kOuter)
			for _, innerBucket := range nonResidual[:i] {
				kInner := curvatureMargin[innerBucket]
				sInner := clampToBucket(sumWS[innerBucket], kInner)
				gamma, err := c.cfg.BucketCorrelation(rt, outerBucket, innerBucket)
				if err != nil {
					return nil, false, err
				}
				total += 2.0 * sOuter * sInner * gamma * gamma
			}
		}
		total = math.Max(sumSensis+lambda(theta)*math.Sqrt(math.Max(total, 0.0)), 0.0)
	}

	if !closeEnough(residualAbsSum, 0.0) {
		theta := math.Min(residualSum/residualAbsSum, 0.0)
		curvatureMargin[bucketResidual] = math.Max(residualSum+lambda(theta)*residualMargin, 0.0)
		total += curvatureMargin[bucketResidual]
	}

	if !riskClassIsFX {
		for b, m := range curvatureMargin {
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
