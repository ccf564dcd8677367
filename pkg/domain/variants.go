package domain

import (
	"encoding/json"
	"reflect"
	"strconv"
)

// Option is a single choice of a selection item.
type Option struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Image    string   `json:"image,omitempty"`
	Score    *float64 `json:"score"`
	Tooltip  string   `json:"tooltip,omitempty"`
	IsHidden bool     `json:"is_hidden"`
	Color    string   `json:"color,omitempty"`
	Value    int      `json:"value"`
}

// SelectionValues carries the options of singleSelect and multiSelect items.
type SelectionValues struct {
	PaletteName string   `json:"palette_name,omitempty"`
	Options     []Option `json:"options"`
}

func (*SelectionValues) ValuesKind() ValuesKind { return ValuesSelection }

// FindOption resolves an option reference by value first, then by id.
func (v *SelectionValues) FindOption(ref string) (Option, bool) {
	for _, opt := range v.Options {
		if strconv.Itoa(opt.Value) == ref {
			return opt, true
		}
	}
	for _, opt := range v.Options {
		if opt.ID == ref {
			return opt, true
		}
	}
	return Option{}, false
}

// HasDuplicateValues reports whether two options share a value.
func (v *SelectionValues) HasDuplicateValues() bool {
	seen := make(map[int]struct{}, len(v.Options))
	for _, opt := range v.Options {
		if _, ok := seen[opt.Value]; ok {
			return true
		}
		seen[opt.Value] = struct{}{}
	}
	return false
}

// SliderValues describes a single slider scale.
type SliderValues struct {
	MinLabel string    `json:"min_label"`
	MaxLabel string    `json:"max_label"`
	MinValue int       `json:"min_value"`
	MaxValue int       `json:"max_value"`
	MinImage string    `json:"min_image,omitempty"`
	MaxImage string    `json:"max_image,omitempty"`
	Scores   []float64 `json:"scores,omitempty"`
}

func (*SliderValues) ValuesKind() ValuesKind { return ValuesSlider }

// SliderRow is one scale of a sliderRows item.
type SliderRow struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	MinLabel string    `json:"min_label"`
	MaxLabel string    `json:"max_label"`
	MinValue int       `json:"min_value"`
	MaxValue int       `json:"max_value"`
	Scores   []float64 `json:"scores,omitempty"`
}

// SliderRowsValues carries the rows of a sliderRows item.
type SliderRowsValues struct {
	Rows []SliderRow `json:"rows"`
}

func (*SliderRowsValues) ValuesKind() ValuesKind { return ValuesSliderRows }

// Row is one row of a selection-rows matrix.
type Row struct {
	ID       string `json:"id"`
	RowName  string `json:"row_name"`
	RowImage string `json:"row_image,omitempty"`
	Tooltip  string `json:"tooltip,omitempty"`
}

// RowOption is one column of a selection-rows matrix.
type RowOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Image   string `json:"image,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// DataMatrixCell holds the score of one option within one row.
type DataMatrixCell struct {
	OptionID string   `json:"option_id"`
	Score    *float64 `json:"score"`
}

// DataMatrixRow holds the scores of every option of one row.
type DataMatrixRow struct {
	RowID   string           `json:"row_id"`
	Options []DataMatrixCell `json:"options"`
}

// SelectionRowsValues carries the matrix of singleSelectRows and multiSelectRows items.
type SelectionRowsValues struct {
	Rows       []Row           `json:"rows"`
	Options    []RowOption     `json:"options"`
	DataMatrix []DataMatrixRow `json:"data_matrix,omitempty"`
}

func (*SelectionRowsValues) ValuesKind() ValuesKind { return ValuesSelectionRows }

// NumberSelectValues bounds a numberSelect item.
type NumberSelectValues struct {
	MinValue int `json:"min_value"`
	MaxValue int `json:"max_value"`
}

func (*NumberSelectValues) ValuesKind() ValuesKind { return ValuesNumberSelect }

// DrawingValues references the example and background images of a drawing item.
type DrawingValues struct {
	DrawingExample    string `json:"drawing_example"`
	DrawingBackground string `json:"drawing_background"`
}

func (*DrawingValues) ValuesKind() ValuesKind { return ValuesDrawing }

// AudioValues limits audio recordings.
type AudioValues struct {
	MaxDuration int `json:"max_duration"`
}

func (*AudioValues) ValuesKind() ValuesKind { return ValuesAudio }

// AudioPlayerValues references the audio file played to the respondent.
type AudioPlayerValues struct {
	File string `json:"file"`
}

func (*AudioPlayerValues) ValuesKind() ValuesKind { return ValuesAudioPlayer }

// SettingKind distinguishes toggles from scalar settings.
type SettingKind int

const (
	SettingToggle SettingKind = iota
	SettingScalar
)

// Setting is one named config value used by the change generator.
type Setting struct {
	Label   string
	Kind    SettingKind
	Enabled bool
	Value   string
}

func toggle(label string, v bool) Setting {
	return Setting{Label: label, Kind: SettingToggle, Enabled: v}
}

func scalar(label string, v string) Setting {
	return Setting{Label: label, Kind: SettingScalar, Value: v}
}

func intScalar(label string, v int) Setting {
	if v == 0 {
		return scalar(label, "")
	}
	return scalar(label, strconv.Itoa(v))
}

// AdditionalResponseOption lets respondents add free text to an answer.
type AdditionalResponseOption struct {
	TextInputOption   bool `json:"text_input_option"`
	TextInputRequired bool `json:"text_input_required"`
}

// CommonConfig holds the settings shared by every interactive item.
type CommonConfig struct {
	RemoveBackButton         bool                     `json:"remove_back_button"`
	SkippableItem            bool                     `json:"skippable_item"`
	AdditionalResponseOption AdditionalResponseOption `json:"additional_response_option"`
	Timer                    int                      `json:"timer,omitempty"`
}

func (c CommonConfig) settings() []Setting {
	return []Setting{
		toggle("Remove Back Button", c.RemoveBackButton),
		toggle("Skippable Item", c.SkippableItem),
		toggle("Add Text Input Option", c.AdditionalResponseOption.TextInputOption),
		toggle("Input Required", c.AdditionalResponseOption.TextInputRequired),
		intScalar("Timer", c.Timer),
	}
}

// SingleSelectionConfig configures singleSelect items.
type SingleSelectionConfig struct {
	CommonConfig
	Randomize   bool `json:"randomize_options"`
	AddScores   bool `json:"add_scores"`
	SetAlerts   bool `json:"set_alerts"`
	AddTooltip  bool `json:"add_tooltip"`
	SetPalette  bool `json:"set_palette"`
	AutoAdvance bool `json:"auto_advance"`
}

func (*SingleSelectionConfig) ConfigKind() ConfigKind { return ConfigSingleSelection }

func (c *SingleSelectionConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(),
		toggle("Randomize Options", c.Randomize),
		toggle("Scores", c.AddScores),
		toggle("Alerts", c.SetAlerts),
		toggle("Tooltips", c.AddTooltip),
		toggle("Palette", c.SetPalette),
		toggle("Auto Advance", c.AutoAdvance),
	)
}

// MultiSelectionConfig configures multiSelect items.
type MultiSelectionConfig struct {
	CommonConfig
	Randomize  bool `json:"randomize_options"`
	AddScores  bool `json:"add_scores"`
	SetAlerts  bool `json:"set_alerts"`
	AddTooltip bool `json:"add_tooltip"`
	SetPalette bool `json:"set_palette"`
}

func (*MultiSelectionConfig) ConfigKind() ConfigKind { return ConfigMultiSelection }

func (c *MultiSelectionConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(),
		toggle("Randomize Options", c.Randomize),
		toggle("Scores", c.AddScores),
		toggle("Alerts", c.SetAlerts),
		toggle("Tooltips", c.AddTooltip),
		toggle("Palette", c.SetPalette),
	)
}

// SliderConfig configures slider items.
type SliderConfig struct {
	CommonConfig
	AddScores        bool `json:"add_scores"`
	SetAlerts        bool `json:"set_alerts"`
	ShowTickMarks    bool `json:"show_tick_marks"`
	ShowTickLabels   bool `json:"show_tick_labels"`
	ContinuousSlider bool `json:"continuous_slider"`
}

func (*SliderConfig) ConfigKind() ConfigKind { return ConfigSlider }

func (c *SliderConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(),
		toggle("Scores", c.AddScores),
		toggle("Alerts", c.SetAlerts),
		toggle("Tick Marks", c.ShowTickMarks),
		toggle("Tick Mark Labels", c.ShowTickLabels),
		toggle("Use Continuous Slider", c.ContinuousSlider),
	)
}

// SliderRowsConfig configures sliderRows items.
type SliderRowsConfig struct {
	CommonConfig
	AddScores bool `json:"add_scores"`
	SetAlerts bool `json:"set_alerts"`
}

func (*SliderRowsConfig) ConfigKind() ConfigKind { return ConfigSliderRows }

func (c *SliderRowsConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(),
		toggle("Scores", c.AddScores),
		toggle("Alerts", c.SetAlerts),
	)
}

// SelectionRowsConfig configures singleSelectRows and multiSelectRows items.
type SelectionRowsConfig struct {
	CommonConfig
	AddScores  bool `json:"add_scores"`
	SetAlerts  bool `json:"set_alerts"`
	AddTooltip bool `json:"add_tooltip"`
}

func (*SelectionRowsConfig) ConfigKind() ConfigKind { return ConfigSelectionRows }

func (c *SelectionRowsConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(),
		toggle("Scores", c.AddScores),
		toggle("Alerts", c.SetAlerts),
		toggle("Tooltips", c.AddTooltip),
	)
}

// TextConfig configures short text items.
type TextConfig struct {
	RemoveBackButton          bool   `json:"remove_back_button"`
	SkippableItem             bool   `json:"skippable_item"`
	MaxResponseLength         int    `json:"max_response_length"`
	CorrectAnswerRequired     bool   `json:"correct_answer_required"`
	CorrectAnswer             string `json:"correct_answer,omitempty"`
	NumericalResponseRequired bool   `json:"numerical_response_required"`
	ResponseDataIdentifier    bool   `json:"response_data_identifier"`
	ResponseRequired          bool   `json:"response_required"`
}

func (*TextConfig) ConfigKind() ConfigKind { return ConfigText }

func (c *TextConfig) Settings() []Setting {
	return []Setting{
		toggle("Remove Back Button", c.RemoveBackButton),
		toggle("Skippable Item", c.SkippableItem),
		intScalar("Max Response Length", c.MaxResponseLength),
		toggle("Correct Answer Required", c.CorrectAnswerRequired),
		scalar("Correct Answer", c.CorrectAnswer),
		toggle("Numerical Response Required", c.NumericalResponseRequired),
		toggle("Response Data Identifier", c.ResponseDataIdentifier),
		toggle("Response Required", c.ResponseRequired),
	}
}

// ParagraphTextConfig configures paragraph text items.
type ParagraphTextConfig struct {
	RemoveBackButton  bool `json:"remove_back_button"`
	SkippableItem     bool `json:"skippable_item"`
	MaxResponseLength int  `json:"max_response_length"`
	ResponseRequired  bool `json:"response_required"`
}

func (*ParagraphTextConfig) ConfigKind() ConfigKind { return ConfigParagraphText }

func (c *ParagraphTextConfig) Settings() []Setting {
	return []Setting{
		toggle("Remove Back Button", c.RemoveBackButton),
		toggle("Skippable Item", c.SkippableItem),
		intScalar("Max Response Length", c.MaxResponseLength),
		toggle("Response Required", c.ResponseRequired),
	}
}

// BasicConfig configures item types that only carry the common settings.
type BasicConfig struct {
	CommonConfig
}

func (*BasicConfig) ConfigKind() ConfigKind { return ConfigBasic }

func (c *BasicConfig) Settings() []Setting { return c.CommonConfig.settings() }

// AudioPlayerConfig configures audioPlayer items.
type AudioPlayerConfig struct {
	CommonConfig
	PlayOnce bool `json:"play_once"`
}

func (*AudioPlayerConfig) ConfigKind() ConfigKind { return ConfigAudioPlayer }

func (c *AudioPlayerConfig) Settings() []Setting {
	return append(c.CommonConfig.settings(), toggle("Play Once", c.PlayOnce))
}

// DrawingConfig configures drawing items.
type DrawingConfig struct {
	RemoveBackButton bool `json:"remove_back_button"`
	SkippableItem    bool `json:"skippable_item"`
	RemoveUndoButton bool `json:"remove_undo_button"`
	NavigationToTop  bool `json:"navigation_to_top"`
	Timer            int  `json:"timer,omitempty"`
}

func (*DrawingConfig) ConfigKind() ConfigKind { return ConfigDrawing }

func (c *DrawingConfig) Settings() []Setting {
	return []Setting{
		toggle("Remove Back Button", c.RemoveBackButton),
		toggle("Skippable Item", c.SkippableItem),
		toggle("Remove Undo Button", c.RemoveUndoButton),
		toggle("Navigation To Top", c.NavigationToTop),
		intScalar("Timer", c.Timer),
	}
}

// MessageConfig configures message items.
type MessageConfig struct {
	RemoveBackButton bool `json:"remove_back_button"`
	Timer            int  `json:"timer,omitempty"`
}

func (*MessageConfig) ConfigKind() ConfigKind { return ConfigMessage }

func (c *MessageConfig) Settings() []Setting {
	return []Setting{
		toggle("Remove Back Button", c.RemoveBackButton),
		intScalar("Timer", c.Timer),
	}
}

// PerformanceTaskConfig configures flanker, stability tracker and A/B trails
// items. Task parameters beyond the tracked scalars are stored verbatim.
type PerformanceTaskConfig struct {
	Trials       int             `json:"trials"`
	ShowFeedback bool            `json:"show_feedback"`
	IsLastTest   bool            `json:"is_last_test"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
}

func (*PerformanceTaskConfig) ConfigKind() ConfigKind { return ConfigPerformanceTask }

func (c *PerformanceTaskConfig) Settings() []Setting {
	return []Setting{
		intScalar("Trials", c.Trials),
		toggle("Show Feedback", c.ShowFeedback),
		toggle("Last Test", c.IsLastTest),
	}
}

// AddsScores reports whether cfg enables scoring for its item.
func AddsScores(cfg Config) bool {
	switch c := cfg.(type) {
	case *SingleSelectionConfig:
		return c != nil && c.AddScores
	case *MultiSelectionConfig:
		return c != nil && c.AddScores
	case *SliderConfig:
		return c != nil && c.AddScores
	case *SliderRowsConfig:
		return c != nil && c.AddScores
	case *SelectionRowsConfig:
		return c != nil && c.AddScores
	}
	return false
}

func isNilVariant(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// ValuesKindOf returns the kind of v, or ValuesNone for nil variants.
func ValuesKindOf(v ResponseValues) ValuesKind {
	if isNilVariant(v) {
		return ValuesNone
	}
	return v.ValuesKind()
}

// ConfigKindOf returns the kind of c, or "" for nil variants.
func ConfigKindOf(c Config) ConfigKind {
	if isNilVariant(c) {
		return ""
	}
	return c.ConfigKind()
}
