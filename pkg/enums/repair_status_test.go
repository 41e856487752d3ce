package enums

import "testing"

func TestRepairStatusForwardEdges(t *testing.T) {
	cases := []struct {
		from, to RepairStatus
		allowed  bool
	}{
		{RepairStatusUnaddressed, RepairStatusInProgress, true},
		{RepairStatusUnaddressed, RepairStatusDone, true},
		{RepairStatusInProgress, RepairStatusDone, true},
		{RepairStatusInProgress, RepairStatusUnaddressed, false},
		{RepairStatusDone, RepairStatusUnaddressed, false},
		{RepairStatusDone, RepairStatusInProgress, false},
		{RepairStatusDone, RepairStatusDone, false},
		{RepairStatusUnaddressed, RepairStatusUnaddressed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestRepairStatusDoneIsTerminal(t *testing.T) {
	if !RepairStatusDone.IsTerminal() {
		t.Fatal("done must be terminal")
	}
	if RepairStatusUnaddressed.IsTerminal() || RepairStatusInProgress.IsTerminal() {
		t.Fatal("only done is terminal")
	}
}

func TestParseRepairStatus(t *testing.T) {
	status, err := ParseRepairStatus("in-progress")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != RepairStatusInProgress {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParseRepairStatus("paused"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUrgencySeverityRankOrdering(t *testing.T) {
	if UrgencyHigh.SeverityRank() <= UrgencyMedium.SeverityRank() {
		t.Fatal("high must outrank medium")
	}
	if UrgencyMedium.SeverityRank() <= UrgencyLow.SeverityRank() {
		t.Fatal("medium must outrank low")
	}
	var unset Urgency
	if unset.SeverityRank() != 0 {
		t.Fatalf("unset urgency must rank 0, got %d", unset.SeverityRank())
	}
}

func TestParseQuestionKindFallsBack(t *testing.T) {
	if kind := ParseQuestionKind("무슨 손상인가요"); kind != QuestionDamageSummary {
		t.Fatalf("free text must fall back to damage summary, got %s", kind)
	}
	if kind := ParseQuestionKind("action-advice"); kind != QuestionActionAdvice {
		t.Fatalf("expected action-advice, got %s", kind)
	}
	if _, err := MustParseQuestionKind("whatever"); err == nil {
		t.Fatal("strict parse must reject unknown kinds")
	}
}

func TestDefectTypeValidation(t *testing.T) {
	for _, v := range []DefectType{DefectTypeCrack, DefectTypeSpalling, DefectTypePaintDamage, DefectTypeRebarExposure} {
		if !v.IsValid() {
			t.Fatalf("%s should be valid", v)
		}
	}
	if DefectType("water-leak").IsValid() {
		t.Fatal("unknown defect type should be invalid")
	}
}
