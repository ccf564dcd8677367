package core

import (
	"strconv"

	"appletcore/pkg/domain"
)

// reindexOptions renumbers option values 0..n-1 in option order for every
// selection item whose options share a value. Option-valued conditions of the
// same activity that pointed at a renumbered item are rewritten to the new
// value of the first option that carried the old one. Items of other types
// are left alone. It reports whether anything changed.
func reindexOptions(req *domain.AppletRequest) bool {
	changed := false
	for ai := range req.Activities {
		act := &req.Activities[ai]
		remap := map[string]map[string]string{}
		for ii := range act.Items {
			it := &act.Items[ii]
			values, ok := it.ResponseValues.(*domain.SelectionValues)
			if !ok || !values.HasDuplicateValues() {
				continue
			}
			mapping := make(map[string]string, len(values.Options))
			for oi := range values.Options {
				old := strconv.Itoa(values.Options[oi].Value)
				if _, seen := mapping[old]; !seen {
					mapping[old] = strconv.Itoa(oi)
				}
				values.Options[oi].Value = oi
			}
			remap[it.Name] = mapping
			changed = true
		}
		if len(remap) == 0 {
			continue
		}
		for ii := range act.Items {
			logic := act.Items[ii].ConditionalLogic
			if logic == nil {
				continue
			}
			for ci := range logic.Conditions {
				cond := &logic.Conditions[ci]
				mapping, ok := remap[cond.ItemName]
				if !ok || !cond.Type.ReferencesOption() {
					continue
				}
				if v, ok := mapping[cond.Payload.OptionValue]; ok {
					cond.Payload.OptionValue = v
				}
			}
		}
	}
	return changed
}
