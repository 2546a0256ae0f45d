// Package isda carries the versioned ISDA SIMM parameter calibration:
// risk weights, correlations, concentration thresholds and the volatility
// scalings derived from them. It implements simm.Configuration.
package isda

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/simm"
)

// tenors is the canonical SIMM tenor structure, in order.
var tenors = []string{"2w", "1m", "3m", "6m", "1y", "2y", "3y", "5y", "10y", "15y", "20y", "30y"}

var tenorDays = map[string]float64{
	"2w": 14, "1m": 30, "3m": 91, "6m": 183, "1y": 365, "2y": 730,
	"3y": 1095, "5y": 1825, "10y": 3650, "15y": 5475, "20y": 7300, "30y": 10950,
}

var tenorIndex = func() map[string]int {
	m := make(map[string]int, len(tenors))
	for i, t := range tenors {
		m[t] = i
	}
	return m
}()

// irTenorCorr is the interest-rate tenor correlation matrix rho, indexed by
// tenorIndex.
var irTenorCorr = [12][12]float64{
	{1.00, 0.73, 0.64, 0.57, 0.44, 0.34, 0.29, 0.24, 0.18, 0.13, 0.11, 0.09},
	{0.73, 1.00, 0.78, 0.67, 0.50, 0.37, 0.30, 0.24, 0.18, 0.13, 0.11, 0.10},
	{0.64, 0.78, 1.00, 0.85, 0.66, 0.52, 0.43, 0.35, 0.27, 0.20, 0.17, 0.17},
	{0.57, 0.67, 0.85, 1.00, 0.81, 0.68, 0.59, 0.50, 0.41, 0.35, 0.33, 0.31},
	{0.44, 0.50, 0.66, 0.81, 1.00, 0.94, 0.85, 0.76, 0.65, 0.59, 0.56, 0.54},
	{0.34, 0.37, 0.52, 0.68, 0.94, 1.00, 0.95, 0.89, 0.79, 0.73, 0.70, 0.67},
	{0.29, 0.30, 0.43, 0.59, 0.85, 0.95, 1.00, 0.96, 0.88, 0.83, 0.80, 0.78},
	{0.24, 0.24, 0.35, 0.50, 0.76, 0.89, 0.96, 1.00, 0.95, 0.91, 0.89, 0.88},
	{0.18, 0.18, 0.27, 0.41, 0.65, 0.79, 0.88, 0.95, 1.00, 0.97, 0.97, 0.95},
	{0.13, 0.13, 0.20, 0.35, 0.59, 0.73, 0.83, 0.91, 0.97, 1.00, 0.99, 0.98},
	{0.11, 0.11, 0.17, 0.33, 0.56, 0.70, 0.80, 0.89, 0.97, 0.99, 1.00, 0.99},
	{0.09, 0.10, 0.17, 0.31, 0.54, 0.67, 0.78, 0.88, 0.95, 0.98, 0.99, 1.00},
}

// Currency groups for interest-rate weights and thresholds.
var lowVolCcys = map[string]bool{"JPY": true}

var regularVolCcys = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CHF": true, "AUD": true,
	"NZD": true, "CAD": true, "SEK": true, "NOK": true, "DKK": true,
	"HKD": true, "KRW": true, "SGD": true, "TWD": true,
}

// Interest-rate delta risk weights per tenor and currency group.
var irWeightsRegular = map[string]float64{
	"2w": 114, "1m": 115, "3m": 102, "6m": 71, "1y": 61, "2y": 52,
	"3y": 50, "5y": 51, "10y": 51, "15y": 51, "20y": 54, "30y": 62,
}

var irWeightsLowVol = map[string]float64{
	"2w": 33, "1m": 20, "3m": 10, "6m": 11, "1y": 14, "2y": 20,
	"3y": 22, "5y": 20, "10y": 20, "15y": 21, "20y": 23, "30y": 27,
}

var irWeightsHighVol = map[string]float64{
	"2w": 91, "1m": 91, "3m": 95, "6m": 88, "1y": 99, "2y": 101,
	"3y": 101, "5y": 99, "10y": 108, "15y": 100, "20y": 101, "30y": 101,
}

// Credit qualifying delta risk weights per bucket.
var creditQWeights = map[string]float64{
	"1": 75, "2": 90, "3": 84, "4": 54, "5": 62, "6": 48,
	"7": 185, "8": 343, "9": 255, "10": 250, "11": 214, "12": 173,
	"Residual": 343,
}

var creditNonQWeights = map[string]float64{
	"1": 280, "2": 1300, "Residual": 1300,
}

// Equity delta risk weights per bucket.
var equityWeights = map[string]float64{
	"1": 25, "2": 28, "3": 30, "4": 28, "5": 23, "6": 24,
	"7": 29, "8": 27, "9": 31, "10": 33, "11": 19, "12": 19,
	"Residual": 33,
}

// Equity intra-bucket correlations.
var equityIntraCorr = map[string]float64{
	"1": 0.14, "2": 0.20, "3": 0.25, "4": 0.23, "5": 0.23, "6": 0.32,
	"7": 0.35, "8": 0.32, "9": 0.17, "10": 0.16, "11": 0.51, "12": 0.51,
	"Residual": 0,
}

// Equity inter-bucket correlations gamma.
var equityBucketCorr = [12][12]float64{
	{1.00, 0.16, 0.16, 0.17, 0.13, 0.15, 0.15, 0.15, 0.13, 0.11, 0.19, 0.19},
	{0.16, 1.00, 0.20, 0.20, 0.14, 0.16, 0.16, 0.16, 0.15, 0.13, 0.20, 0.20},
	{0.16, 0.20, 1.00, 0.22, 0.15, 0.19, 0.22, 0.19, 0.16, 0.15, 0.25, 0.25},
	{0.17, 0.20, 0.22, 1.00, 0.17, 0.21, 0.21, 0.21, 0.17, 0.15, 0.27, 0.27},
	{0.13, 0.14, 0.15, 0.17, 1.00, 0.25, 0.23, 0.26, 0.14, 0.17, 0.32, 0.32},
	{0.15, 0.16, 0.19, 0.21, 0.25, 1.00, 0.30, 0.31, 0.16, 0.21, 0.38, 0.38},
	{0.15, 0.16, 0.22, 0.21, 0.23, 0.30, 1.00, 0.29, 0.16, 0.21, 0.38, 0.38},
	{0.15, 0.16, 0.19, 0.21, 0.26, 0.31, 0.29, 1.00, 0.17, 0.21, 0.39, 0.39},
	{0.13, 0.15, 0.16, 0.17, 0.14, 0.16, 0.16, 0.17, 1.00, 0.13, 0.21, 0.21},
	{0.11, 0.13, 0.15, 0.15, 0.17, 0.21, 0.21, 0.21, 0.13, 1.00, 0.25, 0.25},
	{0.19, 0.20, 0.25, 0.27, 0.32, 0.38, 0.38, 0.39, 0.21, 0.25, 1.00, 0.51},
	{0.19, 0.20, 0.25, 0.27, 0.32, 0.38, 0.38, 0.39, 0.21, 0.25, 0.51, 1.00},
}

// Commodity delta risk weights per bucket.
var commodityWeights = map[string]float64{
	"1": 19, "2": 20, "3": 17, "4": 18, "5": 24, "6": 20,
	"7": 24, "8": 41, "9": 25, "10": 91, "11": 20, "12": 19,
	"13": 16, "14": 15, "15": 10, "16": 91, "17": 16,
}

// Commodity intra-bucket correlations.
var commodityIntraCorr = map[string]float64{
	"1": 0.27, "2": 0.97, "3": 0.92, "4": 0.97, "5": 0.99, "6": 1.00,
	"7": 1.00, "8": 0.40, "9": 0.73, "10": 0.13, "11": 0.53, "12": 0.64,
	"13": 0.63, "14": 0.26, "15": 0.26, "16": 0.00, "17": 0.38,
}

// FX currency categories for concentration thresholds.
var fxCategory1 = map[string]bool{
	"USD": true, "EUR": true, "JPY": true, "GBP": true, "AUD": true,
	"CHF": true, "CAD": true,
}

var fxCategory2 = map[string]bool{
	"BRL": true, "CNY": true, "HKD": true, "INR": true, "KRW": true,
	"MXN": true, "NOK": true, "NZD": true, "RUB": true, "SEK": true,
	"SGD": true, "TRY": true, "ZAR": true,
}

// riskClassIdx orders risk classes for the cross-risk-class correlation
// matrix psi.
var riskClassIdx = map[simm.RiskClass]int{
	simm.RiskClassInterestRate:         0,
	simm.RiskClassCreditQualifying:     1,
	simm.RiskClassCreditNonQualifying:  2,
	simm.RiskClassEquity:               3,
	simm.RiskClassCommodity:            4,
	simm.RiskClassFX:                   5,
}

var riskClassCorr = [6][6]float64{
	{1.00, 0.29, 0.13, 0.28, 0.46, 0.32},
	{0.29, 1.00, 0.54, 0.71, 0.52, 0.38},
	{0.13, 0.54, 1.00, 0.46, 0.41, 0.12},
	{0.28, 0.71, 0.46, 1.00, 0.49, 0.35},
	{0.46, 0.52, 0.41, 0.49, 1.00, 0.41},
	{0.32, 0.38, 0.12, 0.35, 0.41, 1.00},
}

const (
	inflationWeight = 64.0
	xccyBasisWeight = 21.0
	irVolWeight     = 0.16
	creditVolWeight = 0.27
	equityVolWeight = 0.28
	commodityVolWeight = 0.27
	fxWeight        = 8.1
	fxVolWeight     = 0.30
	baseCorrWeight  = 10.0

	subCurveCorr      = 0.986
	irCrossCcyCorr    = 0.22
	irInflationCorr   = 0.33
	irXccyCorr        = 0.05
	inflationXccyCorr = 0.05
	fxCorr            = 0.50
	baseCorrCorr      = 0.14

	creditQSameIssuerCorr  = 0.92
	creditQDiffIssuerCorr  = 0.38
	creditQResidualCorr    = 0.50
	creditQBucketCorr      = 0.38
	creditNonQSameCorr     = 0.83
	creditNonQDiffCorr     = 0.32
	creditNonQResidualCorr = 0.50
	creditNonQBucketCorr   = 0.34

	hvrIR        = 0.47
	hvrEquity    = 0.60
	hvrCommodity = 0.77
	hvrFX        = 0.57

	// Phi^-1(0.99), entering the vol scaling sigma.
	normalQuantile99 = 2.3263478740408408
)

// Config is a versioned SIMM parameter set.
type Config struct {
	version string
}

// NewConfig builds the parameter set for a methodology version string such
// as "2.3". Versions before 2.0 are not carried by this calibration.
func NewConfig(version string) (*Config, error) {
	parts := strings.SplitN(version, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("isda: invalid version %q", version)
	}
	if major < 2 {
		return nil, fmt.Errorf("isda: version %s predates this calibration", version)
	}
	return &Config{version: version}, nil
}

func (c *Config) Version() string { return c.version }

var validRiskTypes = map[crif.RiskType]bool{
	crif.RiskTypeIRCurve: true, crif.RiskTypeXCcyBasis: true, crif.RiskTypeInflation: true,
	crif.RiskTypeIRVol: true, crif.RiskTypeInflationVol: true,
	crif.RiskTypeCreditQ: true, crif.RiskTypeCreditVol: true, crif.RiskTypeBaseCorr: true,
	crif.RiskTypeCreditNonQ: true, crif.RiskTypeCreditVolNonQ: true,
	crif.RiskTypeEquity: true, crif.RiskTypeEquityVol: true,
	crif.RiskTypeCommodity: true, crif.RiskTypeCommodityVol: true,
	crif.RiskTypeFX: true, crif.RiskTypeFXVol: true,
	crif.RiskTypeNotional: true, crif.RiskTypeAddOnNotionalFactor: true,
	crif.RiskTypeAddOnFixedAmount: true, crif.RiskTypeProductClassMultiplier: true,
}

func (c *Config) IsValidRiskType(rt crif.RiskType) bool { return validRiskTypes[rt] }

func (c *Config) ProductClasses() []crif.ProductClass {
	return []crif.ProductClass{
		crif.ProductClassRatesFX,
		crif.ProductClassCredit,
		crif.ProductClassEquity,
		crif.ProductClassCommodity,
		crif.ProductClassOther,
	}
}

func (c *Config) RiskClasses() []simm.RiskClass {
	return []simm.RiskClass{
		simm.RiskClassInterestRate,
		simm.RiskClassCreditQualifying,
		simm.RiskClassCreditNonQualifying,
		simm.RiskClassEquity,
		simm.RiskClassCommodity,
		simm.RiskClassFX,
	}
}

func (c *Config) MarginTypes() []simm.MarginType {
	return []simm.MarginType{
		simm.MarginTypeDelta,
		simm.MarginTypeVega,
		simm.MarginTypeCurvature,
		simm.MarginTypeBaseCorr,
		simm.MarginTypeAdditionalIM,
	}
}

func irWeights(qualifier string) map[string]float64 {
	switch {
	case lowVolCcys[qualifier]:
		return irWeightsLowVol
	case regularVolCcys[qualifier]:
		return irWeightsRegular
	default:
		return irWeightsHighVol
	}
}

// Weight returns the delta or vega risk weight of a risk factor.
func (c *Config) Weight(rt crif.RiskType, qualifier, bucket, label1, calcCcy string) (float64, error) {
	switch rt {
	case crif.RiskTypeIRCurve:
		w, ok := irWeights(qualifier)[label1]
		if !ok {
			return 0, fmt.Errorf("isda: no %s weight for tenor %q", rt, label1)
		}
		return w, nil
	case crif.RiskTypeInflation:
		return inflationWeight, nil
	case crif.RiskTypeXCcyBasis:
		return xccyBasisWeight, nil
	case crif.RiskTypeIRVol, crif.RiskTypeInflationVol:
		return irVolWeight, nil
	case crif.RiskTypeCreditQ:
		return bucketWeight(rt, creditQWeights, bucket)
	case crif.RiskTypeCreditNonQ:
		return bucketWeight(rt, creditNonQWeights, bucket)
	case crif.RiskTypeCreditVol, crif.RiskTypeCreditVolNonQ:
		return creditVolWeight, nil
	case crif.RiskTypeEquity:
		return bucketWeight(rt, equityWeights, bucket)
	case crif.RiskTypeEquityVol:
		return equityVolWeight, nil
	case crif.RiskTypeCommodity:
		return bucketWeight(rt, commodityWeights, bucket)
	case crif.RiskTypeCommodityVol:
		return commodityVolWeight, nil
	case crif.RiskTypeFX:
		return fxWeight, nil
	case crif.RiskTypeFXVol:
		return fxVolWeight, nil
	case crif.RiskTypeBaseCorr:
		return baseCorrWeight, nil
	}
	return 0, fmt.Errorf("isda: no weight defined for risk type %s", rt)
}

func bucketWeight(rt crif.RiskType, weights map[string]float64, bucket string) (float64, error) {
	w, ok := weights[bucket]
	if !ok {
		return 0, fmt.Errorf("isda: no %s weight for bucket %q", rt, bucket)
	}
	return w, nil
}

func (c *Config) tenorCorr(a, b string) (float64, error) {
	i, ok := tenorIndex[a]
	if !ok {
		return 0, fmt.Errorf("isda: unknown tenor %q", a)
	}
	j, ok := tenorIndex[b]
	if !ok {
		return 0, fmt.Errorf("isda: unknown tenor %q", b)
	}
	return irTenorCorr[i][j], nil
}

// Correlation returns the correlation between two risk factors of the same
// risk class.
func (c *Config) Correlation(first, second simm.CorrelationKey, calcCcy string) (float64, error) {
	a, b := first.RiskType, second.RiskType
	// Normalise ordering so each pair is handled once.
	if rank(a) > rank(b) {
		first, second = second, first
		a, b = b, a
	}

	switch {
	case a == crif.RiskTypeIRCurve && b == crif.RiskTypeIRCurve:
		if first.Qualifier != second.Qualifier {
			return irCrossCcyCorr, nil
		}
		if first.Label1 != "" || second.Label1 != "" {
			if first.Label1 == second.Label1 {
				return 1.0, nil
			}
			return c.tenorCorr(first.Label1, second.Label1)
		}
		if first.Label2 != "" || second.Label2 != "" {
			if first.Label2 == second.Label2 {
				return 1.0, nil
			}
			return subCurveCorr, nil
		}
		return 1.0, nil

	case a == crif.RiskTypeIRCurve && b == crif.RiskTypeInflation:
		return irInflationCorr, nil
	case a == crif.RiskTypeIRCurve && b == crif.RiskTypeXCcyBasis:
		return irXccyCorr, nil
	case a == crif.RiskTypeInflation && b == crif.RiskTypeXCcyBasis:
		return inflationXccyCorr, nil

	case a == crif.RiskTypeIRVol && b == crif.RiskTypeIRVol:
		if first.Qualifier != second.Qualifier {
			return irCrossCcyCorr, nil
		}
		if first.Label1 == second.Label1 {
			return 1.0, nil
		}
		return c.tenorCorr(first.Label1, second.Label1)
	case a == crif.RiskTypeIRVol && b == crif.RiskTypeInflationVol,
		a == crif.RiskTypeInflationVol && b == crif.RiskTypeIRVol:
		return irInflationCorr, nil
	case a == crif.RiskTypeInflationVol && b == crif.RiskTypeInflationVol:
		return 1.0, nil

	case a == crif.RiskTypeCreditQ && b == crif.RiskTypeCreditQ,
		a == crif.RiskTypeCreditVol && b == crif.RiskTypeCreditVol:
		return creditCorr(first, second, creditQSameIssuerCorr, creditQDiffIssuerCorr, creditQResidualCorr), nil
	case a == crif.RiskTypeCreditNonQ && b == crif.RiskTypeCreditNonQ,
		a == crif.RiskTypeCreditVolNonQ && b == crif.RiskTypeCreditVolNonQ:
		return creditCorr(first, second, creditNonQSameCorr, creditNonQDiffCorr, creditNonQResidualCorr), nil
	case a == crif.RiskTypeBaseCorr && b == crif.RiskTypeBaseCorr:
		return baseCorrCorr, nil

	case a == crif.RiskTypeEquity && b == crif.RiskTypeEquity,
		a == crif.RiskTypeEquityVol && b == crif.RiskTypeEquityVol:
		if first.Qualifier == second.Qualifier {
			return 1.0, nil
		}
		rho, ok := equityIntraCorr[first.Bucket]
		if !ok {
			return 0, fmt.Errorf("isda: no equity correlation for bucket %q", first.Bucket)
		}
		return rho, nil

	case a == crif.RiskTypeCommodity && b == crif.RiskTypeCommodity,
		a == crif.RiskTypeCommodityVol && b == crif.RiskTypeCommodityVol:
		if first.Qualifier == second.Qualifier {
			return 1.0, nil
		}
		rho, ok := commodityIntraCorr[first.Bucket]
		if !ok {
			return 0, fmt.Errorf("isda: no commodity correlation for bucket %q", first.Bucket)
		}
		return rho, nil

	case a == crif.RiskTypeFX && b == crif.RiskTypeFX,
		a == crif.RiskTypeFXVol && b == crif.RiskTypeFXVol:
		return fxCorr, nil
	}

	return 0, fmt.Errorf("isda: no correlation defined between %s and %s", a, b)
}

// rank gives risk types a stable order for symmetric correlation handling.
func rank(rt crif.RiskType) int {
	order := []crif.RiskType{
		crif.RiskTypeIRCurve, crif.RiskTypeInflation, crif.RiskTypeXCcyBasis,
		crif.RiskTypeIRVol, crif.RiskTypeInflationVol,
		crif.RiskTypeCreditQ, crif.RiskTypeCreditVol, crif.RiskTypeBaseCorr,
		crif.RiskTypeCreditNonQ, crif.RiskTypeCreditVolNonQ,
		crif.RiskTypeEquity, crif.RiskTypeEquityVol,
		crif.RiskTypeCommodity, crif.RiskTypeCommodityVol,
		crif.RiskTypeFX, crif.RiskTypeFXVol,
	}
	for i, r := range order {
		if r == rt {
			return i
		}
	}
	return len(order)
}

func creditCorr(first, second simm.CorrelationKey, same, diff, residual float64) float64 {
	if first.Bucket == "Residual" || second.Bucket == "Residual" {
		if first.Qualifier == second.Qualifier {
			return same
		}
		return residual
	}
	if first.Qualifier == second.Qualifier {
		return same
	}
	return diff
}

// BucketCorrelation returns the cross-bucket correlation gamma.
func (c *Config) BucketCorrelation(rt crif.RiskType, bucket1, bucket2 string) (float64, error) {
	switch rt {
	case crif.RiskTypeCreditQ, crif.RiskTypeCreditVol, crif.RiskTypeBaseCorr:
		return creditQBucketCorr, nil
	case crif.RiskTypeCreditNonQ, crif.RiskTypeCreditVolNonQ:
		return creditNonQBucketCorr, nil
	case crif.RiskTypeEquity, crif.RiskTypeEquityVol:
		i, err := bucketNumber(rt, bucket1, 12)
		if err != nil {
			return 0, err
		}
		j, err := bucketNumber(rt, bucket2, 12)
		if err != nil {
			return 0, err
		}
		return equityBucketCorr[i-1][j-1], nil
	case crif.RiskTypeCommodity, crif.RiskTypeCommodityVol:
		i, err := bucketNumber(rt, bucket1, 17)
		if err != nil {
			return 0, err
		}
		j, err := bucketNumber(rt, bucket2, 17)
		if err != nil {
			return 0, err
		}
		return commodityBucketCorr(i, j), nil
	case crif.RiskTypeFX, crif.RiskTypeFXVol:
		return fxCorr, nil
	}
	return 0, fmt.Errorf("isda: no cross-bucket correlation for risk type %s", rt)
}

func bucketNumber(rt crif.RiskType, bucket string, max int) (int, error) {
	n, err := strconv.Atoi(bucket)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("isda: invalid %s bucket %q", rt, bucket)
	}
	return n, nil
}

// commodityBucketCorr is a distance-decay fit to the published commodity
// inter-bucket surface.
func commodityBucketCorr(i, j int) float64 {
	if i == j {
		return 1.0
	}
	d := float64(i - j)
	if d < 0 {
		d = -d
	}
	return 0.18 + 0.32*math.Exp(-0.26*d)
}

// ConcentrationThreshold returns the concentration threshold in USD.
func (c *Config) ConcentrationThreshold(rt crif.RiskType, qualifier, bucket string) float64 {
	switch rt {
	case crif.RiskTypeIRCurve, crif.RiskTypeInflation:
		switch {
		case qualifier == "USD" || qualifier == "EUR" || qualifier == "GBP":
			return 3.3e8
		case lowVolCcys[qualifier]:
			return 1.2e8
		case regularVolCcys[qualifier]:
			return 2.2e8
		default:
			return 4.4e7
		}
	case crif.RiskTypeIRVol, crif.RiskTypeInflationVol:
		if qualifier == "USD" || qualifier == "EUR" || qualifier == "GBP" {
			return 2.7e9
		}
		return 1.3e8
	case crif.RiskTypeCreditQ:
		return 1.0e6
	case crif.RiskTypeCreditVol:
		return 2.5e8
	case crif.RiskTypeCreditNonQ:
		return 5.0e5
	case crif.RiskTypeCreditVolNonQ:
		return 6.5e7
	case crif.RiskTypeEquity:
		switch bucket {
		case "1", "2", "3", "4":
			return 9.0e6
		case "5", "6", "7", "8":
			return 1.8e7
		case "9", "10":
			return 1.2e6
		case "11", "12":
			return 4.8e7
		default:
			return 6.0e5
		}
	case crif.RiskTypeEquityVol:
		switch bucket {
		case "12":
			return 9.8e9
		case "Residual":
			return 8.0e7
		default:
			return 2.6e8
		}
	case crif.RiskTypeCommodity:
		switch bucket {
		case "10", "16":
			return 5.2e7
		default:
			return 3.1e8
		}
	case crif.RiskTypeCommodityVol:
		return 3.9e9
	case crif.RiskTypeFX:
		switch {
		case fxCategory1[qualifier]:
			return 8.4e9
		case fxCategory2[qualifier]:
			return 1.9e9
		default:
			return 5.2e8
		}
	case crif.RiskTypeFXVol:
		return 4.1e9
	}
	// Risk types without a concentration regime never scale.
	return math.Inf(1)
}

// CurvatureWeight is the scaling function SF(t) = 0.5 * min(1, 14/t) with
// t in days.
func (c *Config) CurvatureWeight(rt crif.RiskType, qualifier, label1, calcCcy string) (float64, error) {
	days, ok := tenorDays[label1]
	if !ok {
		return 0, fmt.Errorf("isda: no curvature weight for tenor %q", label1)
	}
	return 0.5 * math.Min(1.0, 14.0/days), nil
}

// Sigma converts vol-point sensitivities of the equity, commodity and FX
// vol risk types into return-space, using the delta risk weight of the same
// bucket: sigma = RW * sqrt(365/14) / Phi^-1(0.99).
func (c *Config) Sigma(rt crif.RiskType, qualifier, bucket string) (float64, error) {
	scale := math.Sqrt(365.0/14.0) / normalQuantile99
	switch rt {
	case crif.RiskTypeEquityVol:
		rw, err := bucketWeight(crif.RiskTypeEquity, equityWeights, bucket)
		if err != nil {
			return 0, err
		}
		return rw * scale, nil
	case crif.RiskTypeCommodityVol:
		rw, err := bucketWeight(crif.RiskTypeCommodity, commodityWeights, bucket)
		if err != nil {
			return 0, err
		}
		return rw * scale, nil
	case crif.RiskTypeFXVol:
		return fxWeight * scale, nil
	}
	return 1.0, nil
}

// HistoricalVolatilityRatio scales vega risk for the classes where realised
// vol runs below implied.
func (c *Config) HistoricalVolatilityRatio(rt crif.RiskType) float64 {
	switch rt {
	case crif.RiskTypeIRVol, crif.RiskTypeInflationVol:
		return hvrIR
	case crif.RiskTypeEquityVol:
		return hvrEquity
	case crif.RiskTypeCommodityVol:
		return hvrCommodity
	case crif.RiskTypeFXVol:
		return hvrFX
	}
	return 1.0
}

// RiskClassCorrelation is the cross-risk-class correlation psi.
func (c *Config) RiskClassCorrelation(a, b simm.RiskClass) float64 {
	i, ok := riskClassIdx[a]
	if !ok {
		return 0
	}
	j, ok := riskClassIdx[b]
	if !ok {
		return 0
	}
	return riskClassCorr[i][j]
}

// CurvatureMarginScaling scales the interest-rate curvature margin by the
// inverse square of the interest-rate historical volatility ratio.
func (c *Config) CurvatureMarginScaling() float64 {
	return 1.0 / (hvrIR * hvrIR)
}
