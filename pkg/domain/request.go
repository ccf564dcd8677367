package domain

// ActivityRequest is a submitted activity. Key is stable across the
// create/update boundary and is what flow items reference. ID is kept when the
// caller resubmits an existing activity so history can track it.
type ActivityRequest struct {
	ID                 string            `json:"id,omitempty" validate:"omitempty,uuid"`
	Key                string            `json:"key" validate:"required"`
	Name               string            `json:"name" validate:"max=100"`
	Description        LocalizedText     `json:"description"`
	SplashScreen       string            `json:"splash_screen"`
	Image              string            `json:"image"`
	ShowAllAtOnce      bool              `json:"show_all_at_once"`
	IsSkippable        bool              `json:"is_skippable"`
	IsReviewable       bool              `json:"is_reviewable"`
	ResponseIsEditable bool              `json:"response_is_editable"`
	IsHidden           bool              `json:"is_hidden"`
	ScoresAndReports   *ScoresAndReports `json:"scores_and_reports,omitempty"`
	SubscaleSetting    *SubscaleSetting  `json:"subscale_setting,omitempty"`
	Items              []Item            `json:"items" validate:"required,min=1"`
}

// FlowItemRequest references an activity of the same request by key.
type FlowItemRequest struct {
	ID          string `json:"id,omitempty" validate:"omitempty,uuid"`
	ActivityKey string `json:"activity_key" validate:"required"`
}

// FlowRequest is a submitted flow.
type FlowRequest struct {
	ID             string            `json:"id,omitempty" validate:"omitempty,uuid"`
	Name           string            `json:"name" validate:"required,max=100"`
	Description    LocalizedText     `json:"description"`
	IsSingleReport bool              `json:"is_single_report"`
	HideBadge      bool              `json:"hide_badge"`
	IsHidden       bool              `json:"is_hidden"`
	Items          []FlowItemRequest `json:"items" validate:"required,min=1,dive"`
}

// AppletRequest is the create/update envelope for an applet tree.
//
// ExpectedVersion, when set on update, must equal the stored version or the
// update fails with a concurrent-update conflict.
type AppletRequest struct {
	DisplayName     string            `json:"display_name" validate:"required,min=1,max=100"`
	Description     LocalizedText     `json:"description"`
	About           LocalizedText     `json:"about"`
	Image           string            `json:"image" validate:"omitempty,max=2048"`
	WatermarkURI    string            `json:"watermark" validate:"omitempty,max=2048"`
	ThemeID         string            `json:"theme_id"`
	Encryption      *Encryption       `json:"encryption,omitempty"`
	ReportSettings  ReportSettings    `json:"report_settings"`
	StreamSettings  StreamSettings    `json:"stream_settings"`
	Activities      []ActivityRequest `json:"activities" validate:"required,min=1,dive"`
	Flows           []FlowRequest     `json:"activity_flows" validate:"dive"`
	ExpectedVersion string            `json:"expected_version,omitempty"`
}
