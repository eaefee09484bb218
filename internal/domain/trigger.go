package domain

// TriggerCondition says when a workflow trigger fires relative to a property
// change.
type TriggerCondition string

const (
	TriggerAnyChange      TriggerCondition = "any_change"
	TriggerValueEquals    TriggerCondition = "value_equals"
	TriggerValueIncreases TriggerCondition = "value_increases"
)

// ValidTriggerCondition reports whether c is a supported condition.
func ValidTriggerCondition(c TriggerCondition) bool {
	switch c {
	case TriggerAnyChange, TriggerValueEquals, TriggerValueIncreases:
		return true
	}
	return false
}

// ActionType enumerates the side effects a trigger can dispatch.
type ActionType string

const (
	ActionWebhook          ActionType = "webhook"
	ActionCreateTask       ActionType = "create_task"
	ActionSendNotification ActionType = "send_notification"
)

// Action is one side effect of a matched trigger. Params carry
// action-specific settings such as the webhook URL or task title.
type Action struct {
	Type   ActionType        `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// Trigger is a declarative workflow rule: when the named property of the
// named object type changes in a way the condition matches, dispatch the
// actions.
type Trigger struct {
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	ObjectType string           `json:"objectType"`
	Property   string           `json:"property"`
	Condition  TriggerCondition `json:"triggerOn"`
	Value      string           `json:"triggerValue,omitempty"`
	Actions    []Action         `json:"actions"`
	Enabled    bool             `json:"enabled"`
	CreatedAt  string           `json:"createdAt"`
	UpdatedAt  string           `json:"updatedAt"`
}

// Matches evaluates the trigger's condition against one property change.
// value_equals compares the new value's canonical string form; value_increases
// is numeric only and fires when the value rises across the configured
// threshold (any rise if no threshold is set). A previously unset value counts
// as below every threshold.
func (t *Trigger) Matches(change PropertyChange) bool {
	if change.Property != t.Property {
		return false
	}
	switch t.Condition {
	case TriggerAnyChange:
		return !ValueEqual(change.Old, change.New)
	case TriggerValueEquals:
		return change.New != nil && ValueString(change.New) == t.Value
	case TriggerValueIncreases:
		newN, ok := ValueNumber(change.New)
		if !ok {
			return false
		}
		oldN, hadOld := ValueNumber(change.Old)
		if hadOld && newN <= oldN {
			return false
		}
		if t.Value == "" {
			return !hadOld || newN > oldN
		}
		threshold, ok := ValueNumber(t.Value)
		if !ok {
			return false
		}
		if hadOld && oldN >= threshold {
			return false
		}
		return newN >= threshold
	}
	return false
}

// RunStatus is the dispatch state of one trigger run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// TriggerRun records one dispatched action of a matched trigger, including
// retry attempts and the final outcome. Runs are the audit trail for
// fire-and-forget workflow execution.
type TriggerRun struct {
	ID         string     `json:"id"`
	TriggerID  string     `json:"triggerId"`
	ObjectID   string     `json:"objectId"`
	ActivityID int64      `json:"activityId"`
	Action     ActionType `json:"action"`
	Status     RunStatus  `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  string     `json:"createdAt"`
	UpdatedAt  string     `json:"updatedAt"`
}
