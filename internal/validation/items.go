package validation

import (
	"fmt"
	"strconv"

	"appletcore/pkg/domain"
)

type activityContext struct {
	act   *domain.ActivityRequest
	items map[string]*domain.Item
	index map[string]int
}

func newActivityContext(act *domain.ActivityRequest) *activityContext {
	ctx := &activityContext{
		act:   act,
		items: make(map[string]*domain.Item, len(act.Items)),
		index: make(map[string]int, len(act.Items)),
	}
	for i := range act.Items {
		item := &act.Items[i]
		ctx.items[item.Name] = item
		ctx.index[item.Name] = i
	}
	return ctx
}

func (c *activityContext) fail(kind domain.ValidationKind, item, format string, args ...any) error {
	path := "activities." + c.act.Name
	if item != "" {
		path = itemPath(c.act.Name, item)
	}
	return &domain.ValidationError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

func checkResponseCoherence(c *activityContext) error {
	for _, item := range c.act.Items {
		rt := item.ResponseType
		if !rt.Known() {
			return c.fail(domain.ValidationResponseTypeMismatch, item.Name, "unknown response type %q", rt)
		}
		if got, want := domain.ConfigKindOf(item.Config), rt.ExpectedConfig(); got != "" && got != want {
			return c.fail(domain.ValidationResponseTypeMismatch, item.Name, "%s item carries %s config, want %s", rt, got, want)
		}
		got, want := domain.ValuesKindOf(item.ResponseValues), rt.ExpectedValues()
		switch {
		case want == domain.ValuesNone && got != domain.ValuesNone:
			return c.fail(domain.ValidationResponseTypeMismatch, item.Name, "%s item must not carry response values", rt)
		case want != domain.ValuesNone && got == domain.ValuesNone:
			return c.fail(domain.ValidationResponseTypeMismatch, item.Name, "%s item requires %s response values", rt, want)
		case got != want:
			return c.fail(domain.ValidationResponseTypeMismatch, item.Name, "%s item carries %s response values, want %s", rt, got, want)
		}
	}
	return nil
}

func checkScoresPresent(c *activityContext) error {
	for _, item := range c.act.Items {
		if !domain.AddsScores(item.Config) {
			continue
		}
		switch values := item.ResponseValues.(type) {
		case *domain.SelectionValues:
			for _, opt := range values.Options {
				if opt.Score == nil {
					return c.fail(domain.ValidationScoreMissing, item.Name, "option %q has no score", opt.Text)
				}
			}
		case *domain.SliderValues:
			if want := values.MaxValue - values.MinValue + 1; len(values.Scores) != want {
				return c.fail(domain.ValidationScoreMissing, item.Name, "slider needs %d scores, got %d", want, len(values.Scores))
			}
		case *domain.SliderRowsValues:
			for _, row := range values.Rows {
				if want := row.MaxValue - row.MinValue + 1; len(row.Scores) != want {
					return c.fail(domain.ValidationScoreMissing, item.Name, "slider row %q needs %d scores, got %d", row.Label, want, len(row.Scores))
				}
			}
		case *domain.SelectionRowsValues:
			if err := checkDataMatrix(c, item.Name, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkDataMatrix(c *activityContext, itemName string, values *domain.SelectionRowsValues) error {
	byRow := make(map[string]map[string]*float64, len(values.DataMatrix))
	for _, row := range values.DataMatrix {
		cells := make(map[string]*float64, len(row.Options))
		for _, cell := range row.Options {
			cells[cell.OptionID] = cell.Score
		}
		byRow[row.RowID] = cells
	}
	for _, row := range values.Rows {
		cells := byRow[row.ID]
		for _, opt := range values.Options {
			if score, ok := cells[opt.ID]; !ok || score == nil {
				return c.fail(domain.ValidationScoreMissing, itemName, "row %q option %q has no score", row.RowName, opt.Text)
			}
		}
	}
	return nil
}

func checkConditionalLogic(c *activityContext) error {
	for pos, item := range c.act.Items {
		if item.ConditionalLogic == nil {
			continue
		}
		for _, cond := range item.ConditionalLogic.Conditions {
			source, ok := c.items[cond.ItemName]
			if !ok {
				return c.fail(domain.ValidationConditionalItemMissing, item.Name, "condition references unknown item %q", cond.ItemName)
			}
			if c.index[cond.ItemName] >= pos {
				return c.fail(domain.ValidationConditionalItemOutOfOrder, item.Name, "condition item %q must precede %q", cond.ItemName, item.Name)
			}
			if !source.ResponseType.SupportsConditionalLogic() {
				return c.fail(domain.ValidationConditionalItemType, item.Name, "item %q of type %s cannot drive conditional logic", cond.ItemName, source.ResponseType)
			}
			if err := checkConditionOption(c, item.Name, source, cond); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkConditionOption resolves option references. Selection sources match
// option_value against option values first and ids second; selection-rows
// sources match row_index against rows and option_value against option ids.
func checkConditionOption(c *activityContext, itemName string, source *domain.Item, cond domain.Condition) error {
	switch {
	case cond.Type.ReferencesOption():
		values, ok := source.ResponseValues.(*domain.SelectionValues)
		if !ok {
			return c.fail(domain.ValidationConditionalItemType, itemName, "%s condition needs a selection item, %q is %s", cond.Type, source.Name, source.ResponseType)
		}
		if _, found := values.FindOption(cond.Payload.OptionValue); !found {
			return c.fail(domain.ValidationConditionalOptionMissing, itemName, "item %q has no option %q", source.Name, cond.Payload.OptionValue)
		}
	case cond.Type.ReferencesRowOption():
		values, ok := source.ResponseValues.(*domain.SelectionRowsValues)
		if !ok {
			return c.fail(domain.ValidationConditionalItemType, itemName, "%s condition needs a selection-rows item, %q is %s", cond.Type, source.Name, source.ResponseType)
		}
		if cond.Payload.RowIndex == nil || *cond.Payload.RowIndex < 0 || *cond.Payload.RowIndex >= len(values.Rows) {
			return c.fail(domain.ValidationConditionalOptionMissing, itemName, "item %q has no row %s", source.Name, rowIndexText(cond.Payload.RowIndex))
		}
		for _, opt := range values.Options {
			if opt.ID == cond.Payload.OptionValue {
				return nil
			}
		}
		return c.fail(domain.ValidationConditionalOptionMissing, itemName, "item %q has no row option %q", source.Name, cond.Payload.OptionValue)
	}
	return nil
}

func rowIndexText(idx *int) string {
	if idx == nil {
		return "<unset>"
	}
	return strconv.Itoa(*idx)
}
