package domain

// Match joins the conditions of a conditional-logic block.
type Match string

// Condition matching modes.
const (
	MatchAny Match = "any"
	MatchAll Match = "all"
)

// ConditionType names the comparison a condition performs.
type ConditionType string

// Supported condition types.
const (
	ConditionIncludesOption       ConditionType = "INCLUDES_OPTION"
	ConditionNotIncludesOption    ConditionType = "NOT_INCLUDES_OPTION"
	ConditionEqualToOption        ConditionType = "EQUAL_TO_OPTION"
	ConditionNotEqualToOption     ConditionType = "NOT_EQUAL_TO_OPTION"
	ConditionGreaterThan          ConditionType = "GREATER_THAN"
	ConditionLessThan             ConditionType = "LESS_THAN"
	ConditionEqual                ConditionType = "EQUAL"
	ConditionNotEqual             ConditionType = "NOT_EQUAL"
	ConditionBetween              ConditionType = "BETWEEN"
	ConditionOutsideOf            ConditionType = "OUTSIDE_OF"
	ConditionEqualToRowOption     ConditionType = "EQUAL_TO_ROW_OPTION"
	ConditionNotEqualToRowOption  ConditionType = "NOT_EQUAL_TO_ROW_OPTION"
	ConditionIncludesRowOption    ConditionType = "INCLUDES_ROW_OPTION"
	ConditionNotIncludesRowOption ConditionType = "NOT_INCLUDES_ROW_OPTION"
	ConditionScore                ConditionType = "SCORE_CONDITION"
)

// ReferencesOption reports whether the condition selects an option of a
// singleSelect or multiSelect source by value or id.
func (t ConditionType) ReferencesOption() bool {
	switch t {
	case ConditionIncludesOption, ConditionNotIncludesOption, ConditionEqualToOption, ConditionNotEqualToOption:
		return true
	}
	return false
}

// ReferencesRowOption reports whether the condition selects a row option of a
// selection-rows source by id.
func (t ConditionType) ReferencesRowOption() bool {
	switch t {
	case ConditionEqualToRowOption, ConditionNotEqualToRowOption, ConditionIncludesRowOption, ConditionNotIncludesRowOption:
		return true
	}
	return false
}

// ConditionPayload carries the operands of a condition. Only the fields
// relevant to the condition type are set.
type ConditionPayload struct {
	OptionValue string   `json:"option_value,omitempty"`
	Value       *float64 `json:"value,omitempty"`
	MinValue    *float64 `json:"min_value,omitempty"`
	MaxValue    *float64 `json:"max_value,omitempty"`
	RowIndex    *int     `json:"row_index,omitempty"`
	Flag        *bool    `json:"flag,omitempty"`
}

// Condition compares the answer (or score) named by ItemName.
type Condition struct {
	ItemName string           `json:"item_name"`
	Type     ConditionType    `json:"type"`
	Payload  ConditionPayload `json:"payload"`
}

// ConditionalLogic gates the visibility of an item.
type ConditionalLogic struct {
	Match      Match       `json:"match"`
	Conditions []Condition `json:"conditions"`
}
