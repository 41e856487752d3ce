package enums

import "fmt"

// RepairStatus tracks remediation progress for a defect record.
type RepairStatus string

const (
	RepairStatusUnaddressed RepairStatus = "unaddressed"
	RepairStatusInProgress  RepairStatus = "in-progress"
	RepairStatusDone        RepairStatus = "done"
)

var validRepairStatuses = []RepairStatus{
	RepairStatusUnaddressed,
	RepairStatusInProgress,
	RepairStatusDone,
}

// Status only moves forward. Done is terminal; skipping straight from
// unaddressed to done is a legal edge.
var repairStatusEdges = map[RepairStatus][]RepairStatus{
	RepairStatusUnaddressed: {RepairStatusInProgress, RepairStatusDone},
	RepairStatusInProgress:  {RepairStatusDone},
	RepairStatusDone:        {},
}

// String implements fmt.Stringer.
func (r RepairStatus) String() string {
	return string(r)
}

// IsValid reports whether the value matches the canonical repair status set.
func (r RepairStatus) IsValid() bool {
	for _, candidate := range validRepairStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanTransition reports whether the status graph contains an edge to target.
func (r RepairStatus) CanTransition(target RepairStatus) bool {
	for _, next := range repairStatusEdges[r] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists.
func (r RepairStatus) IsTerminal() bool {
	return len(repairStatusEdges[r]) == 0 && r.IsValid()
}

// ParseRepairStatus converts raw input into RepairStatus.
func ParseRepairStatus(value string) (RepairStatus, error) {
	for _, candidate := range validRepairStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid repair status %q", value)
}
