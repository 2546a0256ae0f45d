package crif

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// column aliases accepted in CRIF headers. CRIF files in the wild mix the
// ISDA column names with snake_case exports; headers are matched after
// lowercasing and stripping underscores.
var columnAliases = map[string]string{
	"tradeid":            "TradeID",
	"tradetype":          "TradeType",
	"immodel":            "IMModel",
	"portfolioid":        "NettingSetID",
	"nettingsetid":       "NettingSetID",
	"agreementtype":      "AgreementType",
	"calltype":           "CallType",
	"initialmargintype":  "InitialMarginType",
	"legalentityid":      "LegalEntityID",
	"productclass":       "ProductClass",
	"risktype":           "RiskType",
	"qualifier":          "Qualifier",
	"bucket":             "Bucket",
	"label1":             "Label1",
	"label2":             "Label2",
	"amountcurrency":     "AmountCurrency",
	"amount":             "Amount",
	"amountusd":          "AmountUSD",
	"collectregulations": "CollectRegulations",
	"postregulations":    "PostRegulations",
}

func canonicalColumn(h string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), "_", "")
	return columnAliases[key]
}

// ReadCSV parses a CRIF file. Amounts are parsed as decimals and converted
// to float64 for the engine; a record missing AmountUSD falls back to
// Amount when the amount currency is USD, otherwise the row is rejected.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("crif: read header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		if name := canonicalColumn(h); name != "" {
			cols[name] = i
		}
	}
	for _, required := range []string{"ProductClass", "RiskType"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("crif: missing required column %s", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("crif: line %d: %w", line+1, err)
		}
		line++

		rec := Record{
			TradeID:   field(row, "TradeID"),
			TradeType: field(row, "TradeType"),
			IMModel:   field(row, "IMModel"),
			NettingSetDetails: NettingSetDetails{
				NettingSetID:      field(row, "NettingSetID"),
				AgreementType:     field(row, "AgreementType"),
				CallType:          field(row, "CallType"),
				InitialMarginType: field(row, "InitialMarginType"),
				LegalEntityID:     field(row, "LegalEntityID"),
			},
			ProductClass:       ProductClass(field(row, "ProductClass")),
			RiskType:           RiskType(field(row, "RiskType")),
			Qualifier:          field(row, "Qualifier"),
			Bucket:             field(row, "Bucket"),
			Label1:             field(row, "Label1"),
			Label2:             field(row, "Label2"),
			AmountCurrency:     field(row, "AmountCurrency"),
			CollectRegulations: field(row, "CollectRegulations"),
			PostRegulations:    field(row, "PostRegulations"),
		}
		if !productClasses[rec.ProductClass] {
			return nil, fmt.Errorf("crif: line %d: unknown product class %q", line, rec.ProductClass)
		}

		if s := field(row, "Amount"); s != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("crif: line %d: amount %q: %w", line, s, err)
			}
			rec.Amount = d.InexactFloat64()
		}
		switch s := field(row, "AmountUSD"); {
		case s != "":
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("crif: line %d: amount_usd %q: %w", line, s, err)
			}
			rec.AmountUSD = d.InexactFloat64()
		case rec.AmountCurrency == "USD" || rec.AmountCurrency == "":
			rec.AmountUSD = rec.Amount
		default:
			return nil, fmt.Errorf("crif: line %d: amount_usd missing and amount currency is %s", line, rec.AmountCurrency)
		}

		records = append(records, rec)
	}
	return records, nil
}
