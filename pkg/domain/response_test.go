package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestEveryResponseTypeHasShape(t *testing.T) {
	for rt, shape := range responseShapes {
		if shape.newConfig == nil {
			t.Fatalf("%s: missing config constructor", rt)
		}
		if got := shape.newConfig().ConfigKind(); got != shape.config {
			t.Fatalf("%s: config constructor yields %s, want %s", rt, got, shape.config)
		}
		if shape.values == ValuesNone {
			if shape.newValues != nil {
				t.Fatalf("%s: none-valued type has a values constructor", rt)
			}
			continue
		}
		if got := shape.newValues().ValuesKind(); got != shape.values {
			t.Fatalf("%s: values constructor yields %s, want %s", rt, got, shape.values)
		}
	}
}

func TestItemJSONSelectsVariants(t *testing.T) {
	raw := []byte(`{
		"id": "i1",
		"name": "q1",
		"question": {"en": "How are you?"},
		"response_type": "singleSelect",
		"response_values": {"options": [{"id": "o1", "text": "good", "value": 0, "score": 1}, {"id": "o2", "text": "bad", "value": 1}]},
		"config": {"add_scores": true, "remove_back_button": true},
		"order": 1
	}`)
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	values, ok := item.ResponseValues.(*SelectionValues)
	if !ok || len(values.Options) != 2 {
		t.Fatalf("expected selection values, got %#v", item.ResponseValues)
	}
	if values.Options[0].Score == nil || *values.Options[0].Score != 1 || values.Options[1].Score != nil {
		t.Fatalf("unexpected scores %+v", values.Options)
	}
	cfg, ok := item.Config.(*SingleSelectionConfig)
	if !ok || !cfg.AddScores || !cfg.RemoveBackButton {
		t.Fatalf("expected single selection config, got %#v", item.Config)
	}
	if !AddsScores(item.Config) {
		t.Fatalf("expected scoring config")
	}

	encoded, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again Item
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	if !reflect.DeepEqual(item, again) {
		t.Fatalf("item changed across encode: %#v vs %#v", item, again)
	}
}

func TestItemJSONRejectsValuesOnNoneValuedType(t *testing.T) {
	raw := []byte(`{"name": "free", "response_type": "text", "response_values": {"options": []}}`)
	var item Item
	err := json.Unmarshal(raw, &item)
	if !IsValidation(err, ValidationResponseTypeMismatch) {
		t.Fatalf("expected response-type-mismatch, got %v", err)
	}
	verr := err.(*ValidationError)
	if verr.Path != "items.free" {
		t.Fatalf("expected item path, got %q", verr.Path)
	}
}

func TestItemJSONNullConfigYieldsZeroVariant(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"name": "d", "response_type": "date", "config": null}`), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := item.Config.(*BasicConfig); !ok {
		t.Fatalf("expected basic config, got %#v", item.Config)
	}
	if item.ResponseValues != nil {
		t.Fatalf("expected no values, got %#v", item.ResponseValues)
	}
}

func TestNormalizeFillsConfig(t *testing.T) {
	item := Item{Name: "s", ResponseType: ResponseSlider}
	item.Normalize()
	if ConfigKindOf(item.Config) != ConfigSlider {
		t.Fatalf("expected slider config, got %v", item.Config)
	}
	var typedNil *SliderValues
	if ValuesKindOf(typedNil) != ValuesNone {
		t.Fatalf("typed nil values must report none")
	}
}

func TestSelectionFindOption(t *testing.T) {
	values := &SelectionValues{Options: []Option{{ID: "a", Value: 0}, {ID: "b", Value: 0}, {ID: "c", Value: 2}}}
	if opt, ok := values.FindOption("0"); !ok || opt.ID != "a" {
		t.Fatalf("expected first option by value, got %+v", opt)
	}
	if opt, ok := values.FindOption("c"); !ok || opt.Value != 2 {
		t.Fatalf("expected option by id, got %+v", opt)
	}
	if _, ok := values.FindOption("9"); ok {
		t.Fatalf("expected miss")
	}
	if !values.HasDuplicateValues() {
		t.Fatalf("expected duplicate values")
	}
}

func TestReportJSONTagged(t *testing.T) {
	raw := []byte(`{"generate_report": true, "reports": [
		{"type": "score", "id": "sumScore_total", "name": "total", "calculation_type": "sum", "items_score": ["q1"]},
		{"type": "section", "name": "intro", "items_print": ["q1"]}
	]}`)
	var sr ScoresAndReports
	if err := json.Unmarshal(raw, &sr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(sr.Scores()) != 1 || sr.Scores()[0].ID != "sumScore_total" {
		t.Fatalf("unexpected scores %+v", sr.Scores())
	}
	if len(sr.Sections()) != 1 || sr.Sections()[0].Name != "intro" {
		t.Fatalf("unexpected sections %+v", sr.Sections())
	}
	encoded, err := json.Marshal(sr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again ScoresAndReports
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	if !reflect.DeepEqual(sr, again) {
		t.Fatalf("reports changed across encode")
	}
	if err := json.Unmarshal([]byte(`{"type": "chart"}`), new(Report)); !IsValidation(err, ValidationRequestShape) {
		t.Fatalf("expected request-shape error, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	score := 1.0
	tree := AppletFull{
		Applet: Applet{ID: "a", Description: LocalizedText{"en": "d"}, ReportSettings: ReportSettings{Recipients: []string{"x@example.org"}}},
		Activities: []ActivityFull{{
			Activity: Activity{ID: "act", Name: "act1"},
			Items: []Item{{
				ID: "i", Name: "q1", ResponseType: ResponseSingleSelect,
				ResponseValues: &SelectionValues{Options: []Option{{ID: "o", Text: "one", Score: &score}}},
				Config:         &SingleSelectionConfig{},
			}},
		}},
	}
	cp := tree.Clone()
	cp.Description["en"] = "changed"
	cp.ReportSettings.Recipients[0] = "y@example.org"
	cp.Activities[0].Items[0].ResponseValues.(*SelectionValues).Options[0].Text = "uno"

	if tree.Description["en"] != "d" || tree.ReportSettings.Recipients[0] != "x@example.org" {
		t.Fatalf("applet fields shared with clone")
	}
	if tree.Activities[0].Items[0].ResponseValues.(*SelectionValues).Options[0].Text != "one" {
		t.Fatalf("item variants shared with clone")
	}
}
