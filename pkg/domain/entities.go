// Package domain defines the applet tree entities, their immutable history
// counterparts, typed errors, and the persistence contracts shared by the
// versioning core and its storage backends.
package domain

import (
	"sort"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, errors and audit entries.
const (
	EntityApplet          EntityType = "applet"
	EntityActivity        EntityType = "activity"
	EntityItem            EntityType = "activity_item"
	EntityFlow            EntityType = "flow"
	EntityFlowItem        EntityType = "flow_item"
	EntityAppletHistory   EntityType = "applet_history"
	EntityActivityHistory EntityType = "activity_history"
	EntityItemHistory     EntityType = "activity_item_history"
	EntityFlowHistory     EntityType = "flow_history"
	EntityFlowItemHistory EntityType = "flow_item_history"
	EntityEventLink       EntityType = "applet_event"
)

// LocalizedText maps a language code to display text.
type LocalizedText map[string]string

// Text returns the English value when present, otherwise the values of all
// languages joined in language order. Empty maps render as "".
func (t LocalizedText) Text() string {
	if len(t) == 0 {
		return ""
	}
	if v, ok := t["en"]; ok {
		return v
	}
	langs := make([]string, 0, len(t))
	for lang := range t {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	parts := make([]string, 0, len(langs))
	for _, lang := range langs {
		if v := t[lang]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}

// Encryption is the opaque public key material stored verbatim for an applet.
type Encryption struct {
	PublicKey string `json:"public_key"`
	Prime     string `json:"prime"`
	Base      string `json:"base"`
	AccountID string `json:"account_id"`
}

// ReportSettings configures the report server that receives generated reports.
type ReportSettings struct {
	ServerIP      string   `json:"report_server_ip"`
	PublicKey     string   `json:"report_public_key"`
	Recipients    []string `json:"report_recipients" validate:"omitempty,dive,email"`
	IncludeUserID bool     `json:"report_include_user_id"`
	IncludeCaseID bool     `json:"report_include_case_id"`
	EmailBody     string   `json:"report_email_body"`
}

// StreamSettings configures live response streaming.
type StreamSettings struct {
	Enabled   bool   `json:"stream_enabled"`
	IPAddress string `json:"stream_ip_address"`
	Port      *int   `json:"stream_port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// Applet is the mutable, current row of a versioned applet.
type Applet struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	Description    LocalizedText  `json:"description"`
	About          LocalizedText  `json:"about"`
	Image          string         `json:"image"`
	WatermarkURI   string         `json:"watermark"`
	ThemeID        string         `json:"theme_id"`
	Encryption     *Encryption    `json:"encryption,omitempty"`
	ReportSettings ReportSettings `json:"report_settings"`
	StreamSettings StreamSettings `json:"stream_settings"`
	Version        string         `json:"version"`
	OwnerID        string         `json:"owner_id"`
	IsDeleted      bool           `json:"is_deleted"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Activity is a named, ordered unit within an applet.
type Activity struct {
	ID                 string            `json:"id"`
	AppletID           string            `json:"applet_id"`
	Key                string            `json:"key"`
	Name               string            `json:"name"`
	Description        LocalizedText     `json:"description"`
	SplashScreen       string            `json:"splash_screen"`
	Image              string            `json:"image"`
	ShowAllAtOnce      bool              `json:"show_all_at_once"`
	IsSkippable        bool              `json:"is_skippable"`
	IsReviewable       bool              `json:"is_reviewable"`
	ResponseIsEditable bool              `json:"response_is_editable"`
	IsHidden           bool              `json:"is_hidden"`
	Order              int               `json:"order"`
	ScoresAndReports   *ScoresAndReports `json:"scores_and_reports,omitempty"`
	SubscaleSetting    *SubscaleSetting  `json:"subscale_setting,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Flow is an ordered composition of activity references within one applet.
type Flow struct {
	ID             string        `json:"id"`
	AppletID       string        `json:"applet_id"`
	Name           string        `json:"name"`
	Description    LocalizedText `json:"description"`
	IsSingleReport bool          `json:"is_single_report"`
	HideBadge      bool          `json:"hide_badge"`
	IsHidden       bool          `json:"is_hidden"`
	Order          int           `json:"order"`
	CreatedAt      time.Time     `json:"created_at"`
}

// FlowItem references one activity from a flow.
type FlowItem struct {
	ID         string `json:"id"`
	FlowID     string `json:"activity_flow_id"`
	ActivityID string `json:"activity_id"`
	Order      int    `json:"order"`
}

// ActivityFull is an activity together with its items in order.
type ActivityFull struct {
	Activity
	Items []Item `json:"items"`
}

// FlowFull is a flow together with its items in order.
type FlowFull struct {
	Flow
	Items []FlowItem `json:"items"`
}

// AppletFull is the materialised current tree of an applet.
type AppletFull struct {
	Applet
	Activities []ActivityFull `json:"activities"`
	Flows      []FlowFull     `json:"activity_flows"`
}

// EventLink joins an applet history version to a scheduler event version.
type EventLink struct {
	AppletIDVersion string    `json:"applet_id_version"`
	EventIDVersion  string    `json:"event_id_version"`
	IsDeleted       bool      `json:"is_deleted"`
	CreatedAt       time.Time `json:"created_at"`
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in a transaction.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change captures a mutation applied within a transaction. AppletID names the
// applet family the row belongs to so rules can scope their checks.
type Change struct {
	Entity   EntityType
	Action   Action
	AppletID string
	Before   any
	After    any
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but allows commit.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Rule+": "+v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
