package validation

import (
	"appletcore/pkg/domain"
)

func checkScoresAndReports(c *activityContext) error {
	sr := c.act.ScoresAndReports
	if sr == nil {
		return nil
	}
	scoreNames := map[string]struct{}{}
	scoreIDs := map[string]struct{}{}
	conditionIDs := map[string]struct{}{}
	for _, score := range sr.Scores() {
		if _, dup := scoreNames[score.Name]; dup {
			return c.fail(domain.ValidationDuplicateScoreName, "", "score name %q is used twice", score.Name)
		}
		scoreNames[score.Name] = struct{}{}
		if _, dup := scoreIDs[score.ID]; dup {
			return c.fail(domain.ValidationDuplicateScoreID, "", "score id %q is used twice", score.ID)
		}
		scoreIDs[score.ID] = struct{}{}

		for _, name := range score.ItemsScore {
			if err := c.requireItem(name, domain.ResponseType.Scoreable); err != nil {
				return err
			}
		}
		if err := c.requirePrintable(score.ItemsPrint); err != nil {
			return err
		}

		condNames := map[string]struct{}{}
		for _, cond := range score.ConditionalLogic {
			if _, dup := condNames[cond.Name]; dup {
				return c.fail(domain.ValidationDuplicateScoreConditionName, "", "score %q has two conditions named %q", score.Name, cond.Name)
			}
			condNames[cond.Name] = struct{}{}
			if _, dup := conditionIDs[cond.ID]; dup {
				return c.fail(domain.ValidationDuplicateScoreConditionID, "", "score condition id %q is used twice", cond.ID)
			}
			conditionIDs[cond.ID] = struct{}{}
			for _, inner := range cond.Conditions {
				if inner.ItemName != score.ID {
					return c.fail(domain.ValidationScoreConditionItemName, "", "condition %q of score %q must reference %q, not %q", cond.Name, score.Name, score.ID, inner.ItemName)
				}
			}
			if err := c.requirePrintable(cond.ItemsPrint); err != nil {
				return err
			}
		}
	}

	sectionNames := map[string]struct{}{}
	for _, section := range sr.Sections() {
		if _, dup := sectionNames[section.Name]; dup {
			return c.fail(domain.ValidationDuplicateSectionName, "", "section name %q is used twice", section.Name)
		}
		sectionNames[section.Name] = struct{}{}
		for _, name := range section.ItemsPrint {
			if _, ok := c.items[name]; !ok {
				return c.fail(domain.ValidationSectionPrintItemMissing, "", "section %q prints unknown item %q", section.Name, name)
			}
		}
		if section.ConditionalLogic == nil {
			continue
		}
		for _, cond := range section.ConditionalLogic.Conditions {
			_, isItem := c.items[cond.ItemName]
			_, isScore := scoreIDs[cond.ItemName]
			_, isScoreCondition := conditionIDs[cond.ItemName]
			if !isItem && !isScore && !isScoreCondition {
				return c.fail(domain.ValidationSectionConditionItemMissing, "", "section %q condition references unknown %q", section.Name, cond.ItemName)
			}
		}
	}
	return nil
}

func (c *activityContext) requireItem(name string, allowed func(domain.ResponseType) bool) error {
	item, ok := c.items[name]
	if !ok {
		return c.fail(domain.ValidationScorePrintItemMissing, "", "unknown item %q", name)
	}
	if !allowed(item.ResponseType) {
		return c.fail(domain.ValidationScorePrintItemType, name, "%s items cannot be used here", item.ResponseType)
	}
	return nil
}

func (c *activityContext) requirePrintable(names []string) error {
	for _, name := range names {
		if err := c.requireItem(name, domain.ResponseType.Printable); err != nil {
			return err
		}
	}
	return nil
}

func checkSubscales(c *activityContext) error {
	setting := c.act.SubscaleSetting
	if setting == nil {
		return nil
	}
	names := make(map[string]struct{}, len(setting.Subscales))
	for _, sub := range setting.Subscales {
		if _, dup := names[sub.Name]; dup {
			return c.fail(domain.ValidationDuplicateSubscaleName, "", "subscale name %q is used twice", sub.Name)
		}
		names[sub.Name] = struct{}{}
	}
	for _, sub := range setting.Subscales {
		for _, member := range sub.Items {
			switch member.Type {
			case domain.SubscaleMemberSubscale:
				if member.Name == sub.Name {
					return c.fail(domain.ValidationSubscaleSelf, "", "subscale %q references itself", sub.Name)
				}
				if _, ok := names[member.Name]; !ok {
					return c.fail(domain.ValidationSubscaleItemMissing, "", "subscale %q references unknown subscale %q", sub.Name, member.Name)
				}
			default:
				item, ok := c.items[member.Name]
				if !ok {
					return c.fail(domain.ValidationSubscaleItemMissing, "", "subscale %q references unknown item %q", sub.Name, member.Name)
				}
				if !item.ResponseType.Scoreable() {
					return c.fail(domain.ValidationSubscaleItemType, member.Name, "subscale %q cannot include %s items", sub.Name, item.ResponseType)
				}
				if !domain.AddsScores(item.Config) {
					return c.fail(domain.ValidationSubscaleItemScore, member.Name, "subscale %q needs scores enabled on %q", sub.Name, member.Name)
				}
			}
		}
	}
	return nil
}

func checkFlows(req domain.AppletRequest) error {
	keys := make(map[string]struct{}, len(req.Activities))
	for _, act := range req.Activities {
		keys[act.Key] = struct{}{}
	}
	for _, flow := range req.Flows {
		for _, fi := range flow.Items {
			if _, ok := keys[fi.ActivityKey]; !ok {
				return &domain.ValidationError{
					Kind:    domain.ValidationFlowActivityMissing,
					Path:    "activity_flows." + flow.Name,
					Message: "flow item references unknown activity key " + fi.ActivityKey,
				}
			}
		}
	}
	return nil
}
