package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResponseType discriminates the kind of answer an item collects.
type ResponseType string

// Supported item response types.
const (
	ResponseSingleSelect     ResponseType = "singleSelect"
	ResponseMultiSelect      ResponseType = "multiSelect"
	ResponseSlider           ResponseType = "slider"
	ResponseSliderRows       ResponseType = "sliderRows"
	ResponseSingleSelectRows ResponseType = "singleSelectRows"
	ResponseMultiSelectRows  ResponseType = "multiSelectRows"
	ResponseText             ResponseType = "text"
	ResponseParagraphText    ResponseType = "paragraphText"
	ResponseNumberSelect     ResponseType = "numberSelect"
	ResponseDate             ResponseType = "date"
	ResponseTime             ResponseType = "time"
	ResponseTimeRange        ResponseType = "timeRange"
	ResponseGeolocation      ResponseType = "geolocation"
	ResponsePhoto            ResponseType = "photo"
	ResponseVideo            ResponseType = "video"
	ResponseAudio            ResponseType = "audio"
	ResponseAudioPlayer      ResponseType = "audioPlayer"
	ResponseDrawing          ResponseType = "drawing"
	ResponseMessage          ResponseType = "message"
	ResponseFlanker          ResponseType = "flanker"
	ResponseStabilityTracker ResponseType = "stabilityTracker"
	ResponseABTrails         ResponseType = "ABTrails"
)

// ValuesKind names a response_values variant.
type ValuesKind string

// Response value variants. ValuesNone marks response types that carry no values.
const (
	ValuesNone          ValuesKind = ""
	ValuesSelection     ValuesKind = "selection"
	ValuesSlider        ValuesKind = "slider"
	ValuesSliderRows    ValuesKind = "slider_rows"
	ValuesSelectionRows ValuesKind = "selection_rows"
	ValuesNumberSelect  ValuesKind = "number_select"
	ValuesDrawing       ValuesKind = "drawing"
	ValuesAudio         ValuesKind = "audio"
	ValuesAudioPlayer   ValuesKind = "audio_player"
)

// ConfigKind names a config variant.
type ConfigKind string

// Config variants.
const (
	ConfigSingleSelection ConfigKind = "single_selection"
	ConfigMultiSelection  ConfigKind = "multi_selection"
	ConfigSlider          ConfigKind = "slider"
	ConfigSliderRows      ConfigKind = "slider_rows"
	ConfigSelectionRows   ConfigKind = "selection_rows"
	ConfigText            ConfigKind = "text"
	ConfigParagraphText   ConfigKind = "paragraph_text"
	ConfigBasic           ConfigKind = "basic"
	ConfigAudioPlayer     ConfigKind = "audio_player"
	ConfigDrawing         ConfigKind = "drawing"
	ConfigMessage         ConfigKind = "message"
	ConfigPerformanceTask ConfigKind = "performance_task"
)

// ResponseValues is the closed sum type of per-response-type values.
type ResponseValues interface {
	ValuesKind() ValuesKind
}

// Config is the closed sum type of per-response-type configuration.
type Config interface {
	ConfigKind() ConfigKind
	// Settings enumerates every boolean and scalar setting of the variant in a
	// stable order.
	Settings() []Setting
}

type responseShape struct {
	config    ConfigKind
	values    ValuesKind
	newConfig func() Config
	newValues func() ResponseValues
}

// responseShapes maps each response type to the config and values variants it
// must carry. Response types whose values kind is ValuesNone must not carry values.
var responseShapes = map[ResponseType]responseShape{
	ResponseSingleSelect:     {ConfigSingleSelection, ValuesSelection, func() Config { return &SingleSelectionConfig{} }, func() ResponseValues { return &SelectionValues{} }},
	ResponseMultiSelect:      {ConfigMultiSelection, ValuesSelection, func() Config { return &MultiSelectionConfig{} }, func() ResponseValues { return &SelectionValues{} }},
	ResponseSlider:           {ConfigSlider, ValuesSlider, func() Config { return &SliderConfig{} }, func() ResponseValues { return &SliderValues{} }},
	ResponseSliderRows:       {ConfigSliderRows, ValuesSliderRows, func() Config { return &SliderRowsConfig{} }, func() ResponseValues { return &SliderRowsValues{} }},
	ResponseSingleSelectRows: {ConfigSelectionRows, ValuesSelectionRows, func() Config { return &SelectionRowsConfig{} }, func() ResponseValues { return &SelectionRowsValues{} }},
	ResponseMultiSelectRows:  {ConfigSelectionRows, ValuesSelectionRows, func() Config { return &SelectionRowsConfig{} }, func() ResponseValues { return &SelectionRowsValues{} }},
	ResponseText:             {ConfigText, ValuesNone, func() Config { return &TextConfig{} }, nil},
	ResponseParagraphText:    {ConfigParagraphText, ValuesNone, func() Config { return &ParagraphTextConfig{} }, nil},
	ResponseNumberSelect:     {ConfigBasic, ValuesNumberSelect, func() Config { return &BasicConfig{} }, func() ResponseValues { return &NumberSelectValues{} }},
	ResponseDate:             {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponseTime:             {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponseTimeRange:        {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponseGeolocation:      {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponsePhoto:            {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponseVideo:            {ConfigBasic, ValuesNone, func() Config { return &BasicConfig{} }, nil},
	ResponseAudio:            {ConfigBasic, ValuesAudio, func() Config { return &BasicConfig{} }, func() ResponseValues { return &AudioValues{} }},
	ResponseAudioPlayer:      {ConfigAudioPlayer, ValuesAudioPlayer, func() Config { return &AudioPlayerConfig{} }, func() ResponseValues { return &AudioPlayerValues{} }},
	ResponseDrawing:          {ConfigDrawing, ValuesDrawing, func() Config { return &DrawingConfig{} }, func() ResponseValues { return &DrawingValues{} }},
	ResponseMessage:          {ConfigMessage, ValuesNone, func() Config { return &MessageConfig{} }, nil},
	ResponseFlanker:          {ConfigPerformanceTask, ValuesNone, func() Config { return &PerformanceTaskConfig{} }, nil},
	ResponseStabilityTracker: {ConfigPerformanceTask, ValuesNone, func() Config { return &PerformanceTaskConfig{} }, nil},
	ResponseABTrails:         {ConfigPerformanceTask, ValuesNone, func() Config { return &PerformanceTaskConfig{} }, nil},
}

// Known reports whether rt is a supported response type.
func (rt ResponseType) Known() bool {
	_, ok := responseShapes[rt]
	return ok
}

// ExpectedConfig returns the config variant required for rt.
func (rt ResponseType) ExpectedConfig() ConfigKind { return responseShapes[rt].config }

// ExpectedValues returns the values variant required for rt; ValuesNone means
// the item must not carry response values.
func (rt ResponseType) ExpectedValues() ValuesKind { return responseShapes[rt].values }

// IsSelection reports whether rt is an option-list type.
func (rt ResponseType) IsSelection() bool {
	return rt == ResponseSingleSelect || rt == ResponseMultiSelect
}

// IsSelectionRows reports whether rt is a row/option matrix type.
func (rt ResponseType) IsSelectionRows() bool {
	return rt == ResponseSingleSelectRows || rt == ResponseMultiSelectRows
}

// SupportsConditionalLogic reports whether rt may be the source of an item condition.
func (rt ResponseType) SupportsConditionalLogic() bool {
	switch rt {
	case ResponseSingleSelect, ResponseMultiSelect, ResponseSlider, ResponseNumberSelect,
		ResponseDate, ResponseTime, ResponseTimeRange, ResponseSliderRows,
		ResponseSingleSelectRows, ResponseMultiSelectRows:
		return true
	}
	return false
}

// Scoreable reports whether rt may appear in a score's items_score or a subscale.
func (rt ResponseType) Scoreable() bool {
	return rt == ResponseSingleSelect || rt == ResponseMultiSelect || rt == ResponseSlider
}

// Printable reports whether rt may appear in a report's items_print.
func (rt ResponseType) Printable() bool {
	return rt.Scoreable() || rt == ResponseText
}

// DecodeResponseValues decodes raw JSON into the values variant required by rt.
// A null or empty payload yields nil. A payload for a type that carries no
// values is a ValidationError.
func DecodeResponseValues(rt ResponseType, raw json.RawMessage) (ResponseValues, error) {
	shape, ok := responseShapes[rt]
	if !ok {
		return nil, &ValidationError{Kind: ValidationResponseTypeMismatch, Message: fmt.Sprintf("unknown response type %q", rt)}
	}
	if isNullJSON(raw) {
		return nil, nil
	}
	if shape.newValues == nil {
		return nil, &ValidationError{Kind: ValidationResponseTypeMismatch, Message: fmt.Sprintf("response type %s does not accept response values", rt)}
	}
	values := shape.newValues()
	if err := json.Unmarshal(raw, values); err != nil {
		return nil, fmt.Errorf("decode %s response values: %w", rt, err)
	}
	return values, nil
}

// DecodeConfig decodes raw JSON into the config variant required by rt. A null
// payload yields the zero config of that variant.
func DecodeConfig(rt ResponseType, raw json.RawMessage) (Config, error) {
	shape, ok := responseShapes[rt]
	if !ok {
		return nil, &ValidationError{Kind: ValidationResponseTypeMismatch, Message: fmt.Sprintf("unknown response type %q", rt)}
	}
	cfg := shape.newConfig()
	if isNullJSON(raw) {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", rt, err)
	}
	return cfg, nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Item is a single question/response unit within an activity.
type Item struct {
	ID               string            `json:"id"`
	ActivityID       string            `json:"activity_id"`
	Name             string            `json:"name"`
	Question         LocalizedText     `json:"question"`
	ResponseType     ResponseType      `json:"response_type"`
	ResponseValues   ResponseValues    `json:"-"`
	Config           Config            `json:"-"`
	ConditionalLogic *ConditionalLogic `json:"conditional_logic,omitempty"`
	IsHidden         bool              `json:"is_hidden"`
	Order            int               `json:"order"`
}

type itemJSON struct {
	ID               string            `json:"id"`
	ActivityID       string            `json:"activity_id,omitempty"`
	Name             string            `json:"name"`
	Question         LocalizedText     `json:"question"`
	ResponseType     ResponseType      `json:"response_type"`
	ResponseValues   json.RawMessage   `json:"response_values"`
	Config           json.RawMessage   `json:"config"`
	ConditionalLogic *ConditionalLogic `json:"conditional_logic,omitempty"`
	IsHidden         bool              `json:"is_hidden"`
	Order            int               `json:"order,omitempty"`
}

// MarshalJSON flattens the tagged variants into response_values and config.
func (i Item) MarshalJSON() ([]byte, error) {
	out, err := i.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON selects the response_values and config variants from response_type.
func (i *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	item, err := in.item()
	if err != nil {
		return err
	}
	*i = item
	return nil
}

func (i Item) wire() (itemJSON, error) {
	out := itemJSON{
		ID:               i.ID,
		ActivityID:       i.ActivityID,
		Name:             i.Name,
		Question:         i.Question,
		ResponseType:     i.ResponseType,
		ConditionalLogic: i.ConditionalLogic,
		IsHidden:         i.IsHidden,
		Order:            i.Order,
	}
	var err error
	if out.ResponseValues, err = marshalVariant(i.ResponseValues); err != nil {
		return itemJSON{}, fmt.Errorf("encode response values: %w", err)
	}
	if out.Config, err = marshalVariant(i.Config); err != nil {
		return itemJSON{}, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func (in itemJSON) item() (Item, error) {
	values, err := DecodeResponseValues(in.ResponseType, in.ResponseValues)
	if err != nil {
		return Item{}, annotate(err, in.Name)
	}
	cfg, err := DecodeConfig(in.ResponseType, in.Config)
	if err != nil {
		return Item{}, annotate(err, in.Name)
	}
	return Item{
		ID:               in.ID,
		ActivityID:       in.ActivityID,
		Name:             in.Name,
		Question:         in.Question,
		ResponseType:     in.ResponseType,
		ResponseValues:   values,
		Config:           cfg,
		ConditionalLogic: in.ConditionalLogic,
		IsHidden:         in.IsHidden,
		Order:            in.Order,
	}, nil
}

// Normalize fills a missing config with the zero variant of the item's
// response type so stored items always carry a config.
func (i *Item) Normalize() {
	if !isNilVariant(i.Config) {
		return
	}
	if shape, ok := responseShapes[i.ResponseType]; ok {
		i.Config = shape.newConfig()
	}
}

func marshalVariant(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case ResponseValues:
		if isNilVariant(t) {
			return json.RawMessage("null"), nil
		}
	case Config:
		if isNilVariant(t) {
			return json.RawMessage("null"), nil
		}
	}
	return json.Marshal(v)
}

func annotate(err error, itemName string) error {
	if verr, ok := err.(*ValidationError); ok && verr.Path == "" {
		cp := *verr
		cp.Path = "items." + itemName
		return &cp
	}
	return err
}
