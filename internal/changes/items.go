package changes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"appletcore/pkg/domain"
)

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func itemFields(oldI, newI domain.Item) []string {
	var m messages
	m.localized("Displayed Content", oldI.Question, newI.Question)
	m.text("Item Name", oldI.Name, newI.Name)
	m.number("Item Order", oldI.Order, newI.Order)
	m.toggle("Item Visibility", !oldI.IsHidden, !newI.IsHidden)
	if oldI.ResponseType != newI.ResponseType {
		m.add("Item Type was changed to %s", newI.ResponseType)
	}
	m.values(oldI.ResponseValues, newI.ResponseValues)
	m.config(oldI.Config, newI.Config)
	switch {
	case jsonEqual(oldI.ConditionalLogic, newI.ConditionalLogic):
	case newI.ConditionalLogic == nil:
		m.add("Conditional Logic was removed")
	case oldI.ConditionalLogic == nil:
		m.add("Conditional Logic was added")
	default:
		m.add("Conditional Logic was changed")
	}
	return m
}

func optionText(o domain.Option) string {
	return fmt.Sprintf("%s | %d", o.Text, o.Value)
}

// values dispatches on the new variant; a variant change (caused by a
// response type change) compares against the zero value of the new kind.
func (m *messages) values(oldV, newV domain.ResponseValues) {
	switch nv := newV.(type) {
	case *domain.SelectionValues:
		ov, _ := oldV.(*domain.SelectionValues)
		if ov == nil {
			ov = &domain.SelectionValues{}
		}
		m.options(ov.Options, nv.Options)
		m.text("Palette", ov.PaletteName, nv.PaletteName)
	case *domain.SliderValues:
		ov, _ := oldV.(*domain.SliderValues)
		if ov == nil {
			ov = &domain.SliderValues{}
		}
		m.slider("", *ov, *nv)
	case *domain.SliderRowsValues:
		ov, _ := oldV.(*domain.SliderRowsValues)
		if ov == nil {
			ov = &domain.SliderRowsValues{}
		}
		m.sliderRows(ov.Rows, nv.Rows)
	case *domain.SelectionRowsValues:
		ov, _ := oldV.(*domain.SelectionRowsValues)
		if ov == nil {
			ov = &domain.SelectionRowsValues{}
		}
		m.selectionRows(*ov, *nv)
	case *domain.NumberSelectValues:
		ov, _ := oldV.(*domain.NumberSelectValues)
		if ov == nil {
			ov = &domain.NumberSelectValues{}
		}
		m.number("Min Value", ov.MinValue, nv.MinValue)
		m.number("Max Value", ov.MaxValue, nv.MaxValue)
	case *domain.DrawingValues:
		ov, _ := oldV.(*domain.DrawingValues)
		if ov == nil {
			ov = &domain.DrawingValues{}
		}
		m.text("Drawing Example", ov.DrawingExample, nv.DrawingExample)
		m.text("Drawing Background", ov.DrawingBackground, nv.DrawingBackground)
	case *domain.AudioValues:
		ov, _ := oldV.(*domain.AudioValues)
		if ov == nil {
			ov = &domain.AudioValues{}
		}
		m.number("Max Duration", ov.MaxDuration, nv.MaxDuration)
	case *domain.AudioPlayerValues:
		ov, _ := oldV.(*domain.AudioPlayerValues)
		if ov == nil {
			ov = &domain.AudioPlayerValues{}
		}
		m.text("Audio File", ov.File, nv.File)
	}
}

// options matches options by id across versions.
func (m *messages) options(oldOpts, newOpts []domain.Option) {
	oldByID := make(map[string]domain.Option, len(oldOpts))
	for _, o := range oldOpts {
		oldByID[o.ID] = o
	}
	newIDs := make(map[string]struct{}, len(newOpts))
	for _, o := range newOpts {
		newIDs[o.ID] = struct{}{}
	}
	for _, o := range oldOpts {
		if _, ok := newIDs[o.ID]; !ok {
			m.add("%s option was removed", optionText(o))
		}
	}
	for _, n := range newOpts {
		o, ok := oldByID[n.ID]
		if !ok {
			m.add("%s option was added", optionText(n))
			continue
		}
		if o.Text != n.Text || o.Value != n.Value {
			m.add("%s option name was changed to %s", optionText(o), optionText(n))
		}
	}
}

func (m *messages) slider(prefix string, oldS, newS domain.SliderValues) {
	m.text(prefix+"Min Label", oldS.MinLabel, newS.MinLabel)
	m.text(prefix+"Max Label", oldS.MaxLabel, newS.MaxLabel)
	m.number(prefix+"Min Value", oldS.MinValue, newS.MinValue)
	m.number(prefix+"Max Value", oldS.MaxValue, newS.MaxValue)
	m.text(prefix+"Min Image", oldS.MinImage, newS.MinImage)
	m.text(prefix+"Max Image", oldS.MaxImage, newS.MaxImage)
	if !jsonEqual(oldS.Scores, newS.Scores) {
		m.add("%sScores were changed", prefix)
	}
}

func sliderOf(r domain.SliderRow) domain.SliderValues {
	return domain.SliderValues{
		MinLabel: r.MinLabel,
		MaxLabel: r.MaxLabel,
		MinValue: r.MinValue,
		MaxValue: r.MaxValue,
		Scores:   r.Scores,
	}
}

func (m *messages) sliderRows(oldRows, newRows []domain.SliderRow) {
	oldByID := make(map[string]domain.SliderRow, len(oldRows))
	for _, r := range oldRows {
		oldByID[r.ID] = r
	}
	newIDs := make(map[string]struct{}, len(newRows))
	for _, r := range newRows {
		newIDs[r.ID] = struct{}{}
	}
	for _, r := range oldRows {
		if _, ok := newIDs[r.ID]; !ok {
			m.add("Row %s was removed", r.Label)
		}
	}
	for _, n := range newRows {
		o, ok := oldByID[n.ID]
		if !ok {
			m.add("Row %s was added", n.Label)
			continue
		}
		if o.Label != n.Label {
			m.add("Row %s was renamed to %s", o.Label, n.Label)
		}
		m.slider("Row "+n.Label+" ", sliderOf(o), sliderOf(n))
	}
}

func (m *messages) selectionRows(oldV, newV domain.SelectionRowsValues) {
	oldRows := make(map[string]domain.Row, len(oldV.Rows))
	for _, r := range oldV.Rows {
		oldRows[r.ID] = r
	}
	newRows := make(map[string]struct{}, len(newV.Rows))
	for _, r := range newV.Rows {
		newRows[r.ID] = struct{}{}
	}
	for _, r := range oldV.Rows {
		if _, ok := newRows[r.ID]; !ok {
			m.add("Row %s was removed", r.RowName)
		}
	}
	for _, n := range newV.Rows {
		o, ok := oldRows[n.ID]
		switch {
		case !ok:
			m.add("Row %s was added", n.RowName)
		case o.RowName != n.RowName:
			m.add("Row %s was renamed to %s", o.RowName, n.RowName)
		}
	}

	oldOpts := make(map[string]domain.RowOption, len(oldV.Options))
	for _, o := range oldV.Options {
		oldOpts[o.ID] = o
	}
	newOpts := make(map[string]struct{}, len(newV.Options))
	for _, o := range newV.Options {
		newOpts[o.ID] = struct{}{}
	}
	for _, o := range oldV.Options {
		if _, ok := newOpts[o.ID]; !ok {
			m.add("%s option was removed", o.Text)
		}
	}
	for _, n := range newV.Options {
		o, ok := oldOpts[n.ID]
		switch {
		case !ok:
			m.add("%s option was added", n.Text)
		case o.Text != n.Text:
			m.add("%s option name was changed to %s", o.Text, n.Text)
		}
	}
	if !jsonEqual(oldV.DataMatrix, newV.DataMatrix) {
		m.add("Scores were changed")
	}
}

// config enumerates every setting of both variants by label. Labels missing
// from the old variant compare against the zero setting.
func (m *messages) config(oldC, newC domain.Config) {
	if newC == nil {
		return
	}
	oldByLabel := map[string]domain.Setting{}
	if oldC != nil {
		for _, s := range oldC.Settings() {
			oldByLabel[s.Label] = s
		}
	}
	for _, n := range newC.Settings() {
		o := oldByLabel[n.Label]
		switch n.Kind {
		case domain.SettingToggle:
			m.toggle(n.Label, o.Enabled, n.Enabled)
		case domain.SettingScalar:
			m.text(n.Label, o.Value, n.Value)
		}
	}
}
