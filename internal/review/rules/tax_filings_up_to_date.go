package rules

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// taxAgency and taxReturn are the QBO tax entities as carried in evidence
// meta items.
type taxAgency struct {
	agencyID          string
	displayName       string
	taxTrackedOnSales bool
}

type taxReturn struct {
	agencyID  string
	startDate review.Date
	endDate   review.Date
	fileDate  review.Date
}

func taxAgenciesFromMeta(meta map[string]any) []taxAgency {
	items, _ := metaItems(meta)
	out := make([]taxAgency, 0, len(items))
	for _, item := range items {
		out = append(out, taxAgency{
			agencyID:          stringField(item, "id"),
			displayName:       stringField(item, "display_name"),
			taxTrackedOnSales: parseBoolAny(item["tax_tracked_on_sales"]),
		})
	}
	return out
}

func taxReturnsFromMeta(meta map[string]any) []taxReturn {
	items, _ := metaItems(meta)
	out := make([]taxReturn, 0, len(items))
	for _, item := range items {
		tr := taxReturn{agencyID: stringField(item, "agency_id")}
		tr.startDate, _ = parseDateAny(item["start_date"])
		tr.endDate, _ = parseDateAny(item["end_date"])
		tr.fileDate, _ = parseDateAny(item["file_date"])
		out = append(out, tr)
	}
	return out
}

// inferMonthsBetween counts the inclusive months a return period spans
// (Jan 1..Mar 31 = 3).
func inferMonthsBetween(start, end review.Date) (int, bool) {
	if end.Before(start.Time) {
		return 0, false
	}
	months := review.MonthsBetween(start, end)
	if months <= 0 {
		return 0, false
	}
	return months, true
}

// expectedPeriodEnd walks the anchor forward (or back) by whole filing
// periods until it lands on the latest period end at or before the review
// period end. Only monthly, quarterly, and annual cadences are recognized.
func expectedPeriodEnd(periodEnd review.Date, cadenceMonths int, anchorEnd review.Date) (review.Date, bool) {
	switch cadenceMonths {
	case 1, 3, 12:
	default:
		return review.Date{}, false
	}
	if anchorEnd.IsZero() {
		return review.Date{}, false
	}
	current := anchorEnd
	if current.After(periodEnd.Time) {
		for current.After(periodEnd.Time) {
			current = current.AddMonthsPreserveEnd(-cadenceMonths)
		}
		return current, true
	}
	for {
		next := current.AddMonthsPreserveEnd(cadenceMonths)
		if next.After(periodEnd.Time) {
			return current, true
		}
		current = next
	}
}

// TaxFilingsUpToDateConfig names the tax evidence feeds and the status for
// delinquent filings.
type TaxFilingsUpToDateConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	TaxAgenciesEvidenceType   string   `mapstructure:"tax_agencies_evidence_type" json:"tax_agencies_evidence_type" yaml:"tax_agencies_evidence_type"`
	TaxReturnsEvidenceType    string   `mapstructure:"tax_returns_evidence_type" json:"tax_returns_evidence_type" yaml:"tax_returns_evidence_type"`
	ExcludeAgencyNamePatterns []string `mapstructure:"exclude_agency_name_patterns" json:"exclude_agency_name_patterns,omitempty" yaml:"exclude_agency_name_patterns,omitempty"`

	DelinquentStatus review.RuleStatus `mapstructure:"delinquent_status" json:"delinquent_status" yaml:"delinquent_status"`
}

func DefaultTaxFilingsUpToDateConfig() TaxFilingsUpToDateConfig {
	return TaxFilingsUpToDateConfig{
		BaseConfig:              review.DefaultBaseConfig(),
		TaxAgenciesEvidenceType: "tax_agencies",
		TaxReturnsEvidenceType:  "tax_returns",
		DelinquentStatus:        review.StatusFail,
	}
}

// Validate extends the base checks with the delinquent status.
func (c TaxFilingsUpToDateConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	switch c.DelinquentStatus {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		return nil
	}
	return eris.Errorf("rules: delinquent_status must be WARN, FAIL or NEEDS_REVIEW, got %q", c.DelinquentStatus)
}

// TaxFilingsUpToDate checks that every sales tax agency has filed through
// the most recent expected period, inferring cadence from the latest filed
// return.
type TaxFilingsUpToDate struct{}

func (TaxFilingsUpToDate) Info() review.Info {
	return review.Info{
		ID:        "BS-TAX-FILINGS-UP-TO-DATE",
		Title:     "Sales tax filings completed through most recent period",
		Reference: "Tax accounts",
		Sources:   []string{"QBO (TaxAgency, TaxReturn)"},
	}
}

func (TaxFilingsUpToDate) DefaultConfig() any { return DefaultTaxFilingsUpToDateConfig() }

func (r TaxFilingsUpToDate) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultTaxFilingsUpToDateConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	agenciesItem := ctx.Evidence.First(cfg.TaxAgenciesEvidenceType)
	returnsItem := ctx.Evidence.First(cfg.TaxReturnsEvidenceType)
	if agenciesItem == nil || returnsItem == nil {
		res := info.NewResult(missingStatus, "Missing tax agency/return data; cannot verify filings.")
		for _, item := range []*review.EvidenceItem{agenciesItem, returnsItem} {
			if item != nil {
				res.EvidenceUsed = append(res.EvidenceUsed, *item)
			}
		}
		res.HumanAction = "Provide TaxAgency and TaxReturn data from QBO."
		return res
	}

	agencies := taxAgenciesFromMeta(agenciesItem.Meta)
	returns := taxReturnsFromMeta(returnsItem.Meta)
	if len(agencies) == 0 || len(returns) == 0 {
		res := info.NewResult(missingStatus, "Tax agency/return data is empty; cannot verify filings.")
		res.EvidenceUsed = []review.EvidenceItem{*agenciesItem, *returnsItem}
		res.HumanAction = "Confirm TaxAgency and TaxReturn exports contain data."
		return res
	}

	var tracked []taxAgency
	for _, agency := range agencies {
		if !agency.taxTrackedOnSales {
			continue
		}
		if matchesAny(agency.displayName, cfg.ExcludeAgencyNamePatterns) {
			continue
		}
		tracked = append(tracked, agency)
	}
	if len(tracked) == 0 {
		res := info.NewResult(review.StatusNotApplicable, "No sales tax agencies tracked on sales; not applicable.")
		res.EvidenceUsed = []review.EvidenceItem{*agenciesItem}
		return res
	}

	var details []review.RuleResultDetail
	overall := review.StatusPass
	escalate := func(s review.RuleStatus) {
		if delinquencyRank[s] > delinquencyRank[overall] {
			overall = s
		}
	}
	agencyKey := func(a taxAgency) string {
		if a.agencyID != "" {
			return a.agencyID
		}
		return a.displayName
	}

	for _, agency := range tracked {
		var filed []taxReturn
		// Filings can happen after period end, so all filed returns count.
		for _, tr := range returns {
			if tr.agencyID == agency.agencyID && !tr.fileDate.IsZero() {
				filed = append(filed, tr)
			}
		}
		if len(filed) == 0 {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyKey(agency),
				Message: "No filed tax returns found for agency.",
				Values: map[string]any{
					"agency_name": agency.displayName,
					"period_end":  ctx.PeriodEnd.String(),
					"status":      string(missingStatus),
				},
			})
			continue
		}

		latest := filed[0]
		for _, tr := range filed[1:] {
			latestKey := latest.endDate
			if latestKey.IsZero() {
				latestKey = latest.fileDate
			}
			key := tr.endDate
			if key.IsZero() {
				key = tr.fileDate
			}
			if key.After(latestKey.Time) {
				latest = tr
			}
		}
		if latest.startDate.IsZero() || latest.endDate.IsZero() {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyKey(agency),
				Message: "Latest filed return missing period dates.",
				Values: map[string]any{
					"agency_name": agency.displayName,
					"period_end":  ctx.PeriodEnd.String(),
					"status":      string(missingStatus),
				},
			})
			continue
		}

		cadenceMonths, _ := inferMonthsBetween(latest.startDate, latest.endDate)
		expectedEnd, ok := expectedPeriodEnd(ctx.PeriodEnd, cadenceMonths, latest.endDate)
		if !ok {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyKey(agency),
				Message: "Unable to infer tax filing cadence for agency.",
				Values: map[string]any{
					"agency_name":        agency.displayName,
					"period_end":         ctx.PeriodEnd.String(),
					"latest_filed_start": latest.startDate.String(),
					"latest_filed_end":   latest.endDate.String(),
					"status":             string(missingStatus),
				},
			})
			continue
		}

		status := review.StatusPass
		if latest.endDate.Before(expectedEnd.Time) {
			status = cfg.DelinquentStatus
		}
		escalate(status)

		var fileDate any
		if !latest.fileDate.IsZero() {
			fileDate = latest.fileDate.String()
		}
		details = append(details, review.RuleResultDetail{
			Key:     agencyKey(agency),
			Message: "Tax filing cadence evaluated for agency.",
			Values: map[string]any{
				"agency_name":         agency.displayName,
				"period_end":          ctx.PeriodEnd.String(),
				"latest_filed_start":  latest.startDate.String(),
				"latest_filed_end":    latest.endDate.String(),
				"latest_file_date":    fileDate,
				"expected_period_end": expectedEnd.String(),
				"cadence_months":      cadenceMonths,
				"status":              string(status),
			},
		})
	}

	summary := "Sales tax filings are not up to date for one or more agencies."
	if overall == review.StatusPass {
		summary = fmt.Sprintf("Sales tax filings are up to date through %s.", ctx.PeriodEnd)
	}
	if overall == missingStatus {
		summary = "Missing or incomplete tax return data; cannot verify filings."
	}

	res := info.NewResult(overall, summary)
	res.Details = details
	res.EvidenceUsed = []review.EvidenceItem{*agenciesItem, *returnsItem}
	if overall == cfg.DelinquentStatus {
		res.HumanAction = "File missing sales tax returns and document filing periods."
	}
	return res
}
