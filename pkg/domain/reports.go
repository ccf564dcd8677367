package domain

import (
	"encoding/json"
	"fmt"
)

// ReportType tags entries of ScoresAndReports.Reports.
type ReportType string

// Report kinds.
const (
	ReportScore   ReportType = "score"
	ReportSection ReportType = "section"
)

// CalculationType selects how a score aggregates item scores.
type CalculationType string

// Score calculation types.
const (
	CalculationSum        CalculationType = "sum"
	CalculationAverage    CalculationType = "average"
	CalculationPercentage CalculationType = "percentage"
)

// ScoreConditional flags a score range with its own message.
type ScoreConditional struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Flag       bool        `json:"flag_score"`
	Message    string      `json:"message,omitempty"`
	ItemsPrint []string    `json:"items_print,omitempty"`
	Match      Match       `json:"match"`
	Conditions []Condition `json:"conditions"`
}

// ScoreReport aggregates item scores of an activity.
type ScoreReport struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	CalculationType  CalculationType    `json:"calculation_type"`
	ItemsScore       []string           `json:"items_score"`
	Message          string             `json:"message,omitempty"`
	ItemsPrint       []string           `json:"items_print,omitempty"`
	ConditionalLogic []ScoreConditional `json:"conditional_logic,omitempty"`
}

// SectionConditional gates a report section.
type SectionConditional struct {
	Match      Match       `json:"match"`
	Conditions []Condition `json:"conditions"`
}

// SectionReport prints a group of items under a heading.
type SectionReport struct {
	Name             string              `json:"name"`
	Message          string              `json:"message,omitempty"`
	ItemsPrint       []string            `json:"items_print,omitempty"`
	ConditionalLogic *SectionConditional `json:"conditional_logic,omitempty"`
}

// Report is one entry of a scores-and-reports list: exactly one of Score and
// Section is set, matching Type.
type Report struct {
	Type    ReportType
	Score   *ScoreReport
	Section *SectionReport
}

// MarshalJSON flattens the report into its tagged wire form.
func (r Report) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ReportScore:
		if r.Score == nil {
			return nil, fmt.Errorf("score report without body")
		}
		return json.Marshal(struct {
			Type ReportType `json:"type"`
			*ScoreReport
		}{r.Type, r.Score})
	case ReportSection:
		if r.Section == nil {
			return nil, fmt.Errorf("section report without body")
		}
		return json.Marshal(struct {
			Type ReportType `json:"type"`
			*SectionReport
		}{r.Type, r.Section})
	default:
		return nil, fmt.Errorf("unknown report type %q", r.Type)
	}
}

// UnmarshalJSON selects the report body from its "type" tag.
func (r *Report) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ReportType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case ReportScore:
		var s ScoreReport
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Report{Type: ReportScore, Score: &s}
	case ReportSection:
		var s SectionReport
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Report{Type: ReportSection, Section: &s}
	default:
		return &ValidationError{Kind: ValidationRequestShape, Path: "scores_and_reports.reports", Message: fmt.Sprintf("unknown report type %q", head.Type)}
	}
	return nil
}

// ScoresAndReports configures the per-activity report.
type ScoresAndReports struct {
	GenerateReport   bool     `json:"generate_report"`
	ShowScoreSummary bool     `json:"show_score_summary"`
	Reports          []Report `json:"reports"`
}

// Scores returns the score reports in declaration order.
func (s *ScoresAndReports) Scores() []*ScoreReport {
	if s == nil {
		return nil
	}
	out := make([]*ScoreReport, 0, len(s.Reports))
	for _, r := range s.Reports {
		if r.Type == ReportScore && r.Score != nil {
			out = append(out, r.Score)
		}
	}
	return out
}

// Sections returns the section reports in declaration order.
func (s *ScoresAndReports) Sections() []*SectionReport {
	if s == nil {
		return nil
	}
	out := make([]*SectionReport, 0, len(s.Reports))
	for _, r := range s.Reports {
		if r.Type == ReportSection && r.Section != nil {
			out = append(out, r.Section)
		}
	}
	return out
}

// SubscaleScoring selects how a subscale aggregates its members.
type SubscaleScoring string

// Subscale scoring modes.
const (
	SubscaleSum     SubscaleScoring = "sum"
	SubscaleAverage SubscaleScoring = "average"
)

// SubscaleItemType distinguishes item members from nested subscales.
type SubscaleItemType string

// Subscale member kinds.
const (
	SubscaleMemberItem     SubscaleItemType = "item"
	SubscaleMemberSubscale SubscaleItemType = "subscale"
)

// SubscaleItem names one member of a subscale.
type SubscaleItem struct {
	Name string           `json:"name"`
	Type SubscaleItemType `json:"type"`
}

// LookupRow maps a raw score range to a reported score.
type LookupRow struct {
	Score    string `json:"score"`
	RawScore string `json:"raw_score"`
	Age      *int   `json:"age,omitempty"`
	Sex      string `json:"sex,omitempty"`
	OptText  string `json:"opt_text,omitempty"`
}

// Subscale groups item scores under a name.
type Subscale struct {
	Name              string          `json:"name"`
	Scoring           SubscaleScoring `json:"scoring"`
	Items             []SubscaleItem  `json:"items"`
	SubscaleTableData []LookupRow     `json:"subscale_table_data,omitempty"`
}

// SubscaleSetting configures the subscales of an activity.
type SubscaleSetting struct {
	CalculateTotalScore  SubscaleScoring `json:"calculate_total_score,omitempty"`
	Subscales            []Subscale      `json:"subscales"`
	TotalScoresTableData []LookupRow     `json:"total_scores_table_data,omitempty"`
}
