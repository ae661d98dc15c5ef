package enums

import "fmt"

// AssignmentMethod maps to the assignment_method_enum in Postgres.
type AssignmentMethod string

const (
	AssignmentMethodDirect           AssignmentMethod = "direct"
	AssignmentMethodRoundRobin       AssignmentMethod = "round_robin"
	AssignmentMethodWorkloadBalanced AssignmentMethod = "workload_balanced"
	AssignmentMethodSkillBased       AssignmentMethod = "skill_based"
)

var validAssignmentMethods = []AssignmentMethod{
	AssignmentMethodDirect,
	AssignmentMethodRoundRobin,
	AssignmentMethodWorkloadBalanced,
	AssignmentMethodSkillBased,
}

// String implements fmt.Stringer.
func (m AssignmentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical assignment_method_enum.
func (m AssignmentMethod) IsValid() bool {
	for _, candidate := range validAssignmentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// RequiresTarget reports whether rules using the method must name a target employee.
func (m AssignmentMethod) RequiresTarget() bool {
	return m == AssignmentMethodDirect || m == AssignmentMethodSkillBased
}

// ParseAssignmentMethod converts raw input into an AssignmentMethod.
func ParseAssignmentMethod(value string) (AssignmentMethod, error) {
	for _, candidate := range validAssignmentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment method %q", value)
}

// DecisionMethod maps to the decision_method_enum in Postgres. It extends the
// rule methods with the paths the engine takes outside rule evaluation.
type DecisionMethod string

const (
	DecisionMethodDirect             DecisionMethod = "direct"
	DecisionMethodRoundRobin         DecisionMethod = "round_robin"
	DecisionMethodWorkloadBalanced   DecisionMethod = "workload_balanced"
	DecisionMethodSkillBased         DecisionMethod = "skill_based"
	DecisionMethodRelationship       DecisionMethod = "relationship"
	DecisionMethodFallbackRoundRobin DecisionMethod = "fallback_round_robin"
	DecisionMethodManual             DecisionMethod = "manual"
)

var validDecisionMethods = []DecisionMethod{
	DecisionMethodDirect,
	DecisionMethodRoundRobin,
	DecisionMethodWorkloadBalanced,
	DecisionMethodSkillBased,
	DecisionMethodRelationship,
	DecisionMethodFallbackRoundRobin,
	DecisionMethodManual,
}

// RoundRobinDecisionMethods are the ledger methods that advance the rotation.
var RoundRobinDecisionMethods = []DecisionMethod{
	DecisionMethodRoundRobin,
	DecisionMethodFallbackRoundRobin,
}

// String implements fmt.Stringer.
func (m DecisionMethod) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical decision_method_enum.
func (m DecisionMethod) IsValid() bool {
	for _, candidate := range validDecisionMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseDecisionMethod converts raw input into a DecisionMethod.
func ParseDecisionMethod(value string) (DecisionMethod, error) {
	for _, candidate := range validDecisionMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decision method %q", value)
}

// DecisionMethodFor maps a rule method onto its ledger method.
func DecisionMethodFor(m AssignmentMethod) DecisionMethod {
	return DecisionMethod(m)
}
