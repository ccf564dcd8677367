package changes

import (
	"fmt"
	"strconv"
	"strings"

	"appletcore/pkg/domain"
)

// messages accumulates field-level change text.
type messages []string

// text compares two display values.
func (m *messages) text(label, oldV, newV string) {
	switch {
	case oldV == newV:
	case newV == "":
		*m = append(*m, label+" was cleared")
	case oldV == "":
		*m = append(*m, fmt.Sprintf("%s was set to %s", label, newV))
	default:
		*m = append(*m, fmt.Sprintf("%s was changed to %s", label, newV))
	}
}

func (m *messages) localized(label string, oldV, newV domain.LocalizedText) {
	if localizedEqual(oldV, newV) {
		return
	}
	oldT, newT := oldV.Text(), newV.Text()
	if oldT == newT {
		// Only a non-primary language changed.
		*m = append(*m, label+" was changed")
		return
	}
	m.text(label, oldT, newT)
}

func (m *messages) toggle(label string, oldV, newV bool) {
	if oldV == newV {
		return
	}
	if newV {
		*m = append(*m, label+" was enabled")
		return
	}
	*m = append(*m, label+" was disabled")
}

func (m *messages) number(label string, oldV, newV int) {
	if oldV == newV {
		return
	}
	*m = append(*m, fmt.Sprintf("%s was changed to %d", label, newV))
}

func (m *messages) add(format string, args ...any) {
	*m = append(*m, fmt.Sprintf(format, args...))
}

func localizedEqual(a, b domain.LocalizedText) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func intPtrText(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func encryptionText(e *domain.Encryption) string {
	if e == nil {
		return ""
	}
	if e.PublicKey == "" {
		return e.AccountID
	}
	return e.PublicKey
}

func appletFields(oldA, newA domain.Applet) []string {
	var m messages
	m.text("Applet Name", oldA.DisplayName, newA.DisplayName)
	m.localized("Applet Description", oldA.Description, newA.Description)
	m.localized("About Applet Page", oldA.About, newA.About)
	m.text("Applet Image", oldA.Image, newA.Image)
	m.text("Applet Watermark", oldA.WatermarkURI, newA.WatermarkURI)

	oldS, newS := oldA.StreamSettings, newA.StreamSettings
	m.toggle("Stream Data", oldS.Enabled, newS.Enabled)
	m.text("Stream IP Address", oldS.IPAddress, newS.IPAddress)
	m.text("Stream Port", intPtrText(oldS.Port), intPtrText(newS.Port))

	oldR, newR := oldA.ReportSettings, newA.ReportSettings
	m.text("Report Server IP Address", oldR.ServerIP, newR.ServerIP)
	m.text("Report Public Encryption Key", oldR.PublicKey, newR.PublicKey)
	m.text("Email Recipients", strings.Join(oldR.Recipients, ", "), strings.Join(newR.Recipients, ", "))
	m.toggle("Include Respondent ID", oldR.IncludeUserID, newR.IncludeUserID)
	m.toggle("Include Case ID", oldR.IncludeCaseID, newR.IncludeCaseID)
	m.text("Email Body", oldR.EmailBody, newR.EmailBody)

	m.text("Encryption", encryptionText(oldA.Encryption), encryptionText(newA.Encryption))
	return m
}

func activityFields(oldA, newA domain.Activity) []string {
	var m messages
	m.text("Activity Name", oldA.Name, newA.Name)
	m.localized("Activity Description", oldA.Description, newA.Description)
	m.text("Activity Splash Screen", oldA.SplashScreen, newA.SplashScreen)
	m.text("Activity Image", oldA.Image, newA.Image)
	m.toggle("Show all questions at once", oldA.ShowAllAtOnce, newA.ShowAllAtOnce)
	m.toggle("Allow to skip all items", oldA.IsSkippable, newA.IsSkippable)
	m.toggle("Reviewable Activity", oldA.IsReviewable, newA.IsReviewable)
	m.toggle("Response Is Editable", oldA.ResponseIsEditable, newA.ResponseIsEditable)
	m.toggle("Activity Visibility", !oldA.IsHidden, !newA.IsHidden)
	m.number("Activity Order", oldA.Order, newA.Order)
	if !jsonEqual(oldA.ScoresAndReports, newA.ScoresAndReports) {
		m.add("Scores & Reports was changed")
	}
	if !jsonEqual(oldA.SubscaleSetting, newA.SubscaleSetting) {
		m.add("Subscale Setting was changed")
	}
	return m
}

func flowFields(oldF, newF domain.Flow) []string {
	var m messages
	m.text("Activity Flow Name", oldF.Name, newF.Name)
	m.localized("Activity Flow Description", oldF.Description, newF.Description)
	m.toggle("Combine reports into a single file", oldF.IsSingleReport, newF.IsSingleReport)
	m.toggle("Hide Badge", oldF.HideBadge, newF.HideBadge)
	m.toggle("Activity Flow Visibility", !oldF.IsHidden, !newF.IsHidden)
	m.number("Activity Flow Order", oldF.Order, newF.Order)
	return m
}
