package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/pkg/domain"
)

func selection(opts ...domain.Option) *domain.SelectionValues {
	return &domain.SelectionValues{Options: opts}
}

func snapshot(version string, mutate func(*domain.AppletHistoryFull)) domain.AppletHistoryFull {
	h := domain.AppletHistoryFull{
		AppletHistory: domain.AppletHistory{
			IDVersion: domain.IDVersionOf("a1", version),
			UserID:    "u1",
			Applet: domain.Applet{
				ID:          "a1",
				DisplayName: "A",
				Description: domain.LocalizedText{"en": "desc"},
				Version:     version,
				ThemeID:     "theme-1",
			},
		},
		Activities: []domain.ActivityHistoryFull{{
			ActivityHistory: domain.ActivityHistory{
				IDVersion: domain.IDVersionOf("act-1", version),
				Activity:  domain.Activity{ID: "act-1", AppletID: "a1", Key: "k1", Name: "act1", Order: 1},
			},
			Items: []domain.ItemHistory{{
				IDVersion: domain.IDVersionOf("item-1", version),
				Item: domain.Item{
					ID:             "item-1",
					ActivityID:     "act-1",
					Name:           "q1",
					Question:       domain.LocalizedText{"en": "How are you?"},
					ResponseType:   domain.ResponseSingleSelect,
					ResponseValues: selection(domain.Option{ID: "o1", Text: "o1", Value: 0}, domain.Option{ID: "o2", Text: "o2", Value: 1}),
					Config:         &domain.SingleSelectionConfig{},
					Order:          1,
				},
			}},
		}},
		Flows: []domain.FlowHistoryFull{{
			FlowHistory: domain.FlowHistory{
				IDVersion: domain.IDVersionOf("flow-1", version),
				Flow:      domain.Flow{ID: "flow-1", AppletID: "a1", Name: "Morning", Order: 1},
			},
			Items: []domain.FlowItemHistory{{
				IDVersion: domain.IDVersionOf("fi-1", version),
				FlowItem:  domain.FlowItem{ID: "fi-1", FlowID: "flow-1", ActivityID: "act-1", Order: 1},
			}},
		}},
	}
	if mutate != nil {
		mutate(&h)
	}
	return h
}

func item(h *domain.AppletHistoryFull) *domain.Item {
	return &h.Activities[0].Items[0].Item
}

func TestCompareIdenticalSnapshotsIsEmpty(t *testing.T) {
	v := snapshot("1.0.0", nil)
	cs := Compare(v, v)
	assert.True(t, cs.Empty())
	assert.Empty(t, cs.Lines())
	assert.Equal(t, 0, cs.Count())
}

func TestCompareIgnoresVersionAndTheme(t *testing.T) {
	cs := Compare(snapshot("1.0.0", nil), snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.ThemeID = "theme-2"
	}))
	assert.True(t, cs.Empty(), "unexpected changes: %v", cs.Lines())
	assert.Equal(t, "1.0.0", cs.FromVersion)
	assert.Equal(t, "1.0.1", cs.ToVersion)
}

func TestActivityRenameYieldsSingleChange(t *testing.T) {
	cs := Compare(snapshot("1.0.0", nil), snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.Activities[0].Name = "act1b"
	}))
	require.Equal(t, 1, cs.Count())
	require.Len(t, cs.Activities, 1)
	act := cs.Activities[0]
	assert.Equal(t, Updated, act.Action)
	assert.Equal(t, "act1", act.Name)
	assert.Equal(t, []string{"Activity Name was changed to act1b"}, act.Changes)
	assert.Empty(t, act.Items)
	assert.Equal(t, []string{
		"Activity act1 was updated",
		"  Activity Name was changed to act1b",
	}, cs.Lines())
}

func TestOptionAddedRemovedAndRenamed(t *testing.T) {
	base := snapshot("1.0.0", nil)
	withO3 := snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		v := item(h).ResponseValues.(*domain.SelectionValues)
		v.Options = append(v.Options, domain.Option{ID: "o3", Text: "o3", Value: 2})
	})
	added := Compare(base, withO3)
	require.Len(t, added.Activities, 1)
	require.Len(t, added.Activities[0].Items, 1)
	assert.Equal(t, []string{"o3 | 2 option was added"}, added.Activities[0].Items[0].Changes)

	removed := Compare(withO3, snapshot("1.0.2", nil))
	require.Len(t, removed.Activities, 1)
	assert.Equal(t, []string{"o3 | 2 option was removed"}, removed.Activities[0].Items[0].Changes)

	renamed := Compare(base, snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		item(h).ResponseValues.(*domain.SelectionValues).Options[1].Text = "two"
	}))
	assert.Equal(t, []string{"o2 | 1 option name was changed to two | 1"}, renamed.Activities[0].Items[0].Changes)
}

func TestAppletFieldMessages(t *testing.T) {
	port := 9000
	cs := Compare(snapshot("1.0.0", func(h *domain.AppletHistoryFull) {
		h.Image = "old.png"
		h.ReportSettings.IncludeUserID = true
	}), snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.DisplayName = "B"
		h.Description = nil
		h.WatermarkURI = "wm.png"
		h.StreamSettings.Enabled = true
		h.StreamSettings.Port = &port
		h.Encryption = &domain.Encryption{PublicKey: "pk"}
	}))
	assert.Equal(t, []string{
		"Applet Name was changed to B",
		"Applet Description was cleared",
		"Applet Image was cleared",
		"Applet Watermark was set to wm.png",
		"Stream Data was enabled",
		"Stream Port was set to 9000",
		"Include Respondent ID was disabled",
		"Encryption was set to pk",
	}, cs.Applet)
}

func TestEncryptionMessagesCarryPublicKey(t *testing.T) {
	withKey := func(key string) func(*domain.AppletHistoryFull) {
		return func(h *domain.AppletHistoryFull) {
			if key != "" {
				h.Encryption = &domain.Encryption{PublicKey: key, AccountID: "acc"}
			}
		}
	}
	changed := Compare(snapshot("1.0.0", withKey("pk1")), snapshot("1.0.1", withKey("pk2")))
	assert.Equal(t, []string{"Encryption was changed to pk2"}, changed.Applet)

	cleared := Compare(snapshot("1.0.0", withKey("pk1")), snapshot("1.0.1", withKey("")))
	assert.Equal(t, []string{"Encryption was cleared"}, cleared.Applet)
}

func TestItemFieldAndConfigMessages(t *testing.T) {
	cs := Compare(snapshot("1.0.0", nil), snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		it := item(h)
		it.Question = domain.LocalizedText{"en": "How do you feel?"}
		it.IsHidden = true
		it.Config = &domain.SingleSelectionConfig{Randomize: true}
		it.ConditionalLogic = &domain.ConditionalLogic{Match: domain.MatchAll}
	}))
	require.Len(t, cs.Activities, 1)
	require.Len(t, cs.Activities[0].Items, 1)
	assert.Equal(t, []string{
		"Displayed Content was changed to How do you feel?",
		"Item Visibility was disabled",
		"Randomize Options was enabled",
		"Conditional Logic was added",
	}, cs.Activities[0].Items[0].Changes)
}

func TestSliderAndRowsMessages(t *testing.T) {
	oldV := snapshot("1.0.0", func(h *domain.AppletHistoryFull) {
		it := item(h)
		it.ResponseType = domain.ResponseSliderRows
		it.ResponseValues = &domain.SliderRowsValues{Rows: []domain.SliderRow{
			{ID: "r1", Label: "Mood", MinValue: 0, MaxValue: 5},
			{ID: "r2", Label: "Energy", MinValue: 0, MaxValue: 5},
		}}
		it.Config = &domain.SliderRowsConfig{}
	})
	newV := snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		it := item(h)
		it.ResponseType = domain.ResponseSliderRows
		it.ResponseValues = &domain.SliderRowsValues{Rows: []domain.SliderRow{
			{ID: "r1", Label: "Feeling", MinValue: 0, MaxValue: 7},
			{ID: "r3", Label: "Sleep", MinValue: 1, MaxValue: 3},
		}}
		it.Config = &domain.SliderRowsConfig{}
	})
	cs := Compare(oldV, newV)
	require.Len(t, cs.Activities, 1)
	assert.Equal(t, []string{
		"Row Energy was removed",
		"Row Mood was renamed to Feeling",
		"Row Feeling Max Value was changed to 7",
		"Row Sleep was added",
	}, cs.Activities[0].Items[0].Changes)
}

func TestAddedAndRemovedEntitiesAreOrdered(t *testing.T) {
	oldV := snapshot("1.0.0", nil)
	newV := snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.Activities = append([]domain.ActivityHistoryFull{{
			ActivityHistory: domain.ActivityHistory{Activity: domain.Activity{ID: "act-0", Name: "intro", Order: 1}},
		}}, h.Activities...)
		h.Activities[1].Order = 2
		h.Flows = nil
	})
	cs := Compare(oldV, newV)
	require.Len(t, cs.Activities, 2)
	assert.Equal(t, "intro", cs.Activities[0].Name)
	assert.Equal(t, Added, cs.Activities[0].Action)
	assert.Equal(t, []string{"Activity Order was changed to 2"}, cs.Activities[1].Changes)
	require.Len(t, cs.Flows, 1)
	assert.Equal(t, Removed, cs.Flows[0].Action)
	assert.Equal(t, []string{
		"Activity intro was added",
		"Activity act1 was updated",
		"  Activity Order was changed to 2",
		"Activity Flow Morning was removed",
	}, cs.Lines())
}

func TestFlowItemChangesResolveActivityNames(t *testing.T) {
	newV := snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.Activities = append(h.Activities, domain.ActivityHistoryFull{
			ActivityHistory: domain.ActivityHistory{Activity: domain.Activity{ID: "act-2", Name: "evening", Order: 2}},
		})
		h.Flows[0].Items = append(h.Flows[0].Items, domain.FlowItemHistory{
			FlowItem: domain.FlowItem{ID: "fi-2", FlowID: "flow-1", ActivityID: "act-2", Order: 2},
		})
		h.Flows[0].HideBadge = true
	})
	cs := Compare(snapshot("1.0.0", nil), newV)
	require.Len(t, cs.Flows, 1)
	f := cs.Flows[0]
	assert.Equal(t, []string{"Hide Badge was enabled"}, f.Changes)
	require.Len(t, f.Items, 1)
	assert.Equal(t, "evening", f.Items[0].Activity)
	assert.Equal(t, Added, f.Items[0].Action)
	assert.Contains(t, cs.Lines(), "  Flow item evening was added")
}

func TestScoresAndReportsChangeIsReported(t *testing.T) {
	cs := Compare(snapshot("1.0.0", nil), snapshot("1.0.1", func(h *domain.AppletHistoryFull) {
		h.Activities[0].ScoresAndReports = &domain.ScoresAndReports{GenerateReport: true}
	}))
	require.Len(t, cs.Activities, 1)
	assert.Equal(t, []string{"Scores & Reports was changed"}, cs.Activities[0].Changes)
}
