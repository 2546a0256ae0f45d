// Package crif defines the CRIF (Common Risk Interchange Format) sensitivity
// record model consumed by the SIMM engine, along with netting-set keys,
// regulation-string parsing, and the net-sensitivity container that
// aggregates records sharing the same risk-factor key.
//
// Amounts cross the I/O boundary as shopspring/decimal and are held as
// float64 internally — the SIMM aggregation is transcendental (sqrt,
// correlation-weighted sums) and is defined over reals, not money.
package crif

import (
	"fmt"
	"sort"
)

// ProductClass is the SIMM product class of a sensitivity, as it appears in
// a CRIF file. Empty is used by add-on parameter records; the AddOn values
// are pseudo product classes used only on the results side.
type ProductClass string

const (
	ProductClassRatesFX   ProductClass = "RatesFX"
	ProductClassCredit    ProductClass = "Credit"
	ProductClassEquity    ProductClass = "Equity"
	ProductClassCommodity ProductClass = "Commodity"
	ProductClassOther     ProductClass = "Other"
	ProductClassEmpty     ProductClass = ""

	ProductClassAddOnNotionalFactor ProductClass = "AddOnNotionalFactor"
	ProductClassAddOnFixedAmount    ProductClass = "AddOnFixedAmount"

	// ProductClassAll is the wildcard aggregate key on the results side.
	ProductClassAll ProductClass = "All"
)

var productClasses = map[ProductClass]bool{
	ProductClassRatesFX:             true,
	ProductClassCredit:              true,
	ProductClassEquity:              true,
	ProductClassCommodity:           true,
	ProductClassOther:               true,
	ProductClassEmpty:               true,
	ProductClassAddOnNotionalFactor: true,
	ProductClassAddOnFixedAmount:    true,
	ProductClassAll:                 true,
}

// ParseProductClass validates a product class string, e.g. the qualifier of
// a ProductClassMultiplier parameter record.
func ParseProductClass(s string) (ProductClass, error) {
	pc := ProductClass(s)
	if !productClasses[pc] {
		return ProductClassEmpty, fmt.Errorf("crif: unknown product class %q", s)
	}
	return pc, nil
}

// RiskType is the CRIF risk type of a sensitivity. Values match the strings
// used in CRIF files ("Risk_IRCurve", "Param_AddOnFixedAmount", ...).
type RiskType string

const (
	RiskTypeIRCurve       RiskType = "Risk_IRCurve"
	RiskTypeXCcyBasis     RiskType = "Risk_XCcyBasis"
	RiskTypeInflation     RiskType = "Risk_Inflation"
	RiskTypeIRVol         RiskType = "Risk_IRVol"
	RiskTypeInflationVol  RiskType = "Risk_InflationVol"
	RiskTypeCreditQ       RiskType = "Risk_CreditQ"
	RiskTypeCreditVol     RiskType = "Risk_CreditVol"
	RiskTypeCreditNonQ    RiskType = "Risk_CreditNonQ"
	RiskTypeCreditVolNonQ RiskType = "Risk_CreditVolNonQ"
	RiskTypeEquity        RiskType = "Risk_Equity"
	RiskTypeEquityVol     RiskType = "Risk_EquityVol"
	RiskTypeCommodity     RiskType = "Risk_Commodity"
	RiskTypeCommodityVol  RiskType = "Risk_CommodityVol"
	RiskTypeFX            RiskType = "Risk_FX"
	RiskTypeFXVol         RiskType = "Risk_FXVol"
	RiskTypeBaseCorr      RiskType = "Risk_BaseCorr"

	// Parameter risk types. These carry SIMM calculation parameters
	// (multipliers, add-ons, notionals) rather than risk sensitivities.
	RiskTypeNotional               RiskType = "Notional"
	RiskTypeAddOnNotionalFactor    RiskType = "Param_AddOnNotionalFactor"
	RiskTypeAddOnFixedAmount       RiskType = "Param_AddOnFixedAmount"
	RiskTypeProductClassMultiplier RiskType = "Param_ProductClassMultiplier"
)

// simmParameterTypes identifies risk types whose records parameterise the
// calculation instead of contributing sensitivities.
var simmParameterTypes = map[RiskType]bool{
	RiskTypeNotional:               true,
	RiskTypeAddOnNotionalFactor:    true,
	RiskTypeAddOnFixedAmount:       true,
	RiskTypeProductClassMultiplier: true,
}

// NettingSetDetails is the composite netting-set key. NettingSetID alone is
// sufficient for most portfolios; the remaining fields qualify the key when
// one counterparty relationship spans several margin agreements. The struct
// is comparable and used as a map key throughout the engine.
type NettingSetDetails struct {
	NettingSetID      string `json:"netting_set_id"`
	AgreementType     string `json:"agreement_type,omitempty"`
	CallType          string `json:"call_type,omitempty"`
	InitialMarginType string `json:"initial_margin_type,omitempty"`
	LegalEntityID     string `json:"legal_entity_id,omitempty"`
}

// String renders the key for logs and error labels.
func (n NettingSetDetails) String() string {
	if n.AgreementType == "" && n.CallType == "" && n.InitialMarginType == "" && n.LegalEntityID == "" {
		return n.NettingSetID
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		n.NettingSetID, n.AgreementType, n.CallType, n.InitialMarginType, n.LegalEntityID)
}

// Record is one net risk sensitivity (or SIMM parameter) in CRIF terms.
// Immutable once constructed; records are value types and are net-summed by
// NetRecords, never mutated in place.
type Record struct {
	TradeID           string            `json:"trade_id"`
	TradeType         string            `json:"trade_type,omitempty"`
	IMModel           string            `json:"im_model,omitempty"`
	NettingSetDetails NettingSetDetails `json:"netting_set_details"`

	ProductClass ProductClass `json:"product_class"`
	RiskType     RiskType     `json:"risk_type"`
	Qualifier    string       `json:"qualifier"`
	Bucket       string       `json:"bucket"`
	Label1       string       `json:"label1"`
	Label2       string       `json:"label2"`

	AmountCurrency string  `json:"amount_currency"`
	Amount         float64 `json:"amount"`
	AmountUSD      float64 `json:"amount_usd"`

	CollectRegulations string `json:"collect_regulations,omitempty"`
	PostRegulations    string `json:"post_regulations,omitempty"`
}

// IsSimmParameter reports whether the record parameterises the calculation
// (add-ons, multipliers, notionals) rather than carrying a sensitivity.
func (r Record) IsSimmParameter() bool {
	return simmParameterTypes[r.RiskType]
}

// Key is the categorical risk-factor key a record nets on. The amount
// currency is deliberately not part of the key: only USD-converted amounts
// enter the calculation, and records differing only in native currency must
// net together (this matters for Risk_XCcyBasis and Risk_Inflation).
type Key struct {
	ProductClass ProductClass
	RiskType     RiskType
	Qualifier    string
	Bucket       string
	Label1       string
	Label2       string
}

// Key returns the record's netting key.
func (r Record) Key() Key {
	return Key{
		ProductClass: r.ProductClass,
		RiskType:     r.RiskType,
		Qualifier:    r.Qualifier,
		Bucket:       r.Bucket,
		Label1:       r.Label1,
		Label2:       r.Label2,
	}
}

func (k Key) less(o Key) bool {
	if k.ProductClass != o.ProductClass {
		return k.ProductClass < o.ProductClass
	}
	if k.RiskType != o.RiskType {
		return k.RiskType < o.RiskType
	}
	if k.Bucket != o.Bucket {
		return k.Bucket < o.Bucket
	}
	if k.Qualifier != o.Qualifier {
		return k.Qualifier < o.Qualifier
	}
	if k.Label1 != o.Label1 {
		return k.Label1 < o.Label1
	}
	return k.Label2 < o.Label2
}

// NetRecords holds the net sensitivities for one (side, netting set,
// regulation) triple. Records with equal keys are summed; iteration order
// is deterministic (sorted by key) so aggregation results are reproducible.
type NetRecords struct {
	records map[Key]Record
}

// NewNetRecords creates an empty container.
func NewNetRecords() *NetRecords {
	return &NetRecords{records: make(map[Key]Record)}
}

// Add nets a record into the container. The first record for a key fixes
// the descriptive fields (trade id, regulations, currency); subsequent
// records only contribute amounts.
func (n *NetRecords) Add(r Record) {
	key := r.Key()
	if existing, ok := n.records[key]; ok {
		existing.Amount += r.Amount
		existing.AmountUSD += r.AmountUSD
		if existing.AmountCurrency != r.AmountCurrency {
			// Mixed native currencies: only the USD amount is meaningful.
			existing.AmountCurrency = "USD"
			existing.Amount = existing.AmountUSD
		}
		n.records[key] = existing
		return
	}
	n.records[key] = r
}

// Has reports whether a record with the given key is present.
func (n *NetRecords) Has(key Key) bool {
	_, ok := n.records[key]
	return ok
}

// Len returns the number of netted records (parameters included).
func (n *NetRecords) Len() int {
	return len(n.records)
}

// Records returns all netted records sorted by key.
func (n *NetRecords) Records() []Record {
	out := make([]Record, 0, len(n.records))
	for _, r := range n.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().less(out[j].Key()) })
	return out
}

// Sensitivities returns the non-parameter records sorted by key.
func (n *NetRecords) Sensitivities() []Record {
	var out []Record
	for _, r := range n.records {
		if !r.IsSimmParameter() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().less(out[j].Key()) })
	return out
}

// Parameters returns the SIMM parameter records of the given risk type,
// sorted by key.
func (n *NetRecords) Parameters(rt RiskType) []Record {
	var out []Record
	for _, r := range n.records {
		if r.RiskType == rt {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().less(out[j].Key()) })
	return out
}

// HasSensitivities reports whether any non-parameter record is present.
func (n *NetRecords) HasSensitivities() bool {
	for _, r := range n.records {
		if !r.IsSimmParameter() {
			return true
		}
	}
	return false
}

// HasParameter reports whether any parameter record of the given risk type
// is present.
func (n *NetRecords) HasParameter(rt RiskType) bool {
	for _, r := range n.records {
		if r.RiskType == rt {
			return true
		}
	}
	return false
}
