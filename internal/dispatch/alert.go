package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/chat"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
)

// Action identifiers carried back by chat button callbacks.
const (
	ActionMarkInProgress = "mark-in-progress"
	ActionMarkDone       = "mark-done"
	ActionDamageSummary  = "ask-damage-summary"
	ActionActionAdvice   = "ask-action-advice"
	ActionSchedule       = "schedule-repair"
	actionSelectPrefix   = "select:"
)

// BuildAlert renders one defect record as an operator chat message. The
// action set is derived from the current repair status so a stale card
// cannot offer a transition the record no longer accepts.
func BuildAlert(record models.Defect) chat.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Location: %s\n", locationLine(record))
	fmt.Fprintf(&body, "Detected: %s\n", record.DetectTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&body, "Type: %s\n", classificationLine(record))
	fmt.Fprintf(&body, "Status: %s", record.RepairStatus)

	return chat.Message{
		Title:    alertTitle(record),
		Body:     body.String(),
		ImageURL: record.Image,
		Actions:  actionsFor(record.RepairStatus),
	}
}

func alertTitle(record models.Defect) string {
	kind := "unclassified defect"
	if record.DefectType != nil {
		kind = record.DefectType.String()
	}
	return fmt.Sprintf("Defect %s: %s", shortID(record.ID), kind)
}

func locationLine(record models.Defect) string {
	if record.Address != nil && *record.Address != "" {
		return *record.Address
	}
	return fmt.Sprintf("%.6f, %.6f", record.Latitude, record.Longitude)
}

func classificationLine(record models.Defect) string {
	if !record.Classified() {
		return "pending classification"
	}
	return fmt.Sprintf("%s (%s urgency)", record.DefectType, record.Urgency)
}

func actionsFor(status enums.RepairStatus) []chat.Action {
	if status == enums.RepairStatusDone {
		return nil
	}

	actions := []chat.Action{}
	if status == enums.RepairStatusUnaddressed {
		actions = append(actions, chat.Action{ID: ActionMarkInProgress, Label: "Start repair"})
	}
	actions = append(actions,
		chat.Action{ID: ActionMarkDone, Label: "Mark done"},
		chat.Action{ID: ActionDamageSummary, Label: "Damage summary"},
		chat.Action{ID: ActionActionAdvice, Label: "Repair advice"},
		chat.Action{ID: ActionSchedule, Label: "Schedule repair"},
	)
	return actions
}

// BuildOverview renders the sorted defect list with one selector action
// per record.
func BuildOverview(records []models.Defect) chat.Message {
	if len(records) == 0 {
		return chat.Message{Title: "Defect overview", Body: "No open defect records."}
	}

	var body strings.Builder
	actions := make([]chat.Action, 0, len(records))
	for i, record := range records {
		fmt.Fprintf(&body, "%d. %s - %s [%s]", i+1, summaryLabel(record), locationLine(record), record.RepairStatus)
		if i < len(records)-1 {
			body.WriteString("\n")
		}
		actions = append(actions, chat.Action{
			ID:    SelectActionID(record.ID),
			Label: fmt.Sprintf("#%d %s", i+1, shortID(record.ID)),
		})
	}

	return chat.Message{
		Title:   "Defect overview",
		Body:    body.String(),
		Actions: actions,
	}
}

func summaryLabel(record models.Defect) string {
	if !record.Classified() {
		return "unclassified"
	}
	return fmt.Sprintf("%s/%s", record.Urgency, record.DefectType)
}

// SelectActionID builds the selector callback id for a record.
func SelectActionID(defectID string) string {
	return actionSelectPrefix + defectID
}

// ParseSelectActionID extracts the record id from a selector callback.
func ParseSelectActionID(actionID string) (string, bool) {
	if !strings.HasPrefix(actionID, actionSelectPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(actionID, actionSelectPrefix)
	return id, id != ""
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// classificationHint feeds the stored classification to the model so
// follow-up answers stay consistent with the record.
func classificationHint(record models.Defect) string {
	if !record.Classified() {
		return ""
	}
	return fmt.Sprintf("type=%s urgency=%s", record.DefectType, record.Urgency)
}
