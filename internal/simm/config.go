// Package simm implements the ISDA SIMM initial margin calculation:
// splitting CRIF sensitivities by side, netting set and regulation, the
// delta, vega and curvature margin aggregation per risk class, additional
// margins, and winning-regulation selection.
//
// The arithmetic follows the published methodology exactly; all parameter
// tables live behind the Configuration interface so methodology versions
// can coexist.
package simm

import (
	"github.com/openrisk/margin-engine/internal/crif"
)

// Side distinguishes the two margin directions of a netting set.
type Side string

const (
	SideCall Side = "Call"
	SidePost Side = "Post"
)

// Sides returns both sides in canonical order.
func Sides() []Side { return []Side{SideCall, SidePost} }

// RiskClass is one of the six SIMM risk classes, plus the All wildcard
// used on the results side.
type RiskClass string

const (
	RiskClassInterestRate       RiskClass = "InterestRate"
	RiskClassCreditQualifying   RiskClass = "CreditQualifying"
	RiskClassCreditNonQualifying RiskClass = "CreditNonQualifying"
	RiskClassEquity             RiskClass = "Equity"
	RiskClassCommodity          RiskClass = "Commodity"
	RiskClassFX                 RiskClass = "FX"
	RiskClassAll                RiskClass = "All"
)

// MarginType is the margin component dimension of a result cell.
type MarginType string

const (
	MarginTypeDelta          MarginType = "Delta"
	MarginTypeVega           MarginType = "Vega"
	MarginTypeCurvature      MarginType = "Curvature"
	MarginTypeBaseCorr       MarginType = "BaseCorr"
	MarginTypeAdditionalIM   MarginType = "AdditionalIM"
	MarginTypeAll            MarginType = "All"
)

// BucketAll is the wildcard bucket on the results side.
const BucketAll = "All"

// bucketResidual collects risk factors outside the regular bucket scheme;
// it aggregates additively, never via cross-bucket correlation.
const bucketResidual = "Residual"

// CorrelationKey identifies one leg of a pairwise correlation lookup.
type CorrelationKey struct {
	RiskType  crif.RiskType
	Qualifier string
	Bucket    string
	Label1    string
	Label2    string
}

// Configuration supplies the versioned methodology parameters. Lookup
// methods return an error for combinations the version does not define;
// Sigma and HistoricalVolatilityRatio default to 1 where the methodology
// has no scaling.
type Configuration interface {
	// Version is the methodology version string, e.g. "2.3".
	Version() string

	// IsValidRiskType reports whether this version prices the risk type.
	IsValidRiskType(rt crif.RiskType) bool

	// ProductClasses, RiskClasses and MarginTypes enumerate the concrete
	// dimensions of the results cube, excluding the All wildcards.
	ProductClasses() []crif.ProductClass
	RiskClasses() []RiskClass
	MarginTypes() []MarginType

	// Weight returns the delta or vega risk weight of a risk factor.
	// The calculation currency disambiguates currency-dependent weights
	// (cross-currency basis in particular).
	Weight(rt crif.RiskType, qualifier, bucket, label1, calcCcy string) (float64, error)

	// Correlation returns the correlation between two risk factors of the
	// same risk class, used inside bucket aggregation.
	Correlation(first, second CorrelationKey, calcCcy string) (float64, error)

	// BucketCorrelation returns the cross-bucket correlation gamma for a
	// risk type and two non-residual buckets.
	BucketCorrelation(rt crif.RiskType, bucket1, bucket2 string) (float64, error)

	// ConcentrationThreshold returns the concentration threshold in USD
	// for a risk factor. Versions without a threshold return +Inf.
	ConcentrationThreshold(rt crif.RiskType, qualifier, bucket string) float64

	// CurvatureWeight returns the curvature scaling SF(t) for a vol risk
	// factor at the given tenor label.
	CurvatureWeight(rt crif.RiskType, qualifier, label1, calcCcy string) (float64, error)

	// Sigma is the volatility scaling applied to vega and curvature
	// sensitivities of EquityVol, CommodityVol and FXVol.
	Sigma(rt crif.RiskType, qualifier, bucket string) (float64, error)

	// HistoricalVolatilityRatio scales vega risk of a risk type.
	HistoricalVolatilityRatio(rt crif.RiskType) float64

	// RiskClassCorrelation is the cross-risk-class correlation psi used
	// when summing margins within a product class.
	RiskClassCorrelation(a, b RiskClass) float64

	// CurvatureMarginScaling scales the interest-rate curvature margin.
	CurvatureMarginScaling() float64
}
