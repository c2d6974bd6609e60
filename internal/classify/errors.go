package classify

import "errors"

var (
	// ErrRuleNotFound indicates a missing rule.
	ErrRuleNotFound = errors.New("classify: rule not found")
	// ErrRuleTypeUnsupported indicates a declared but unimplemented rule type.
	ErrRuleTypeUnsupported = errors.New("classify: rule type not yet supported")
)
