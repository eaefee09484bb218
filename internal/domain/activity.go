package domain

// ActivityType classifies an activity log entry.
type ActivityType string

const (
	ActivityRecordCreated      ActivityType = "record_created"
	ActivityPropertyChanged    ActivityType = "property_changed"
	ActivityStageChanged       ActivityType = "stage_changed"
	ActivityRecordArchived     ActivityType = "record_archived"
	ActivityRecordRestored     ActivityType = "record_restored"
	ActivityRecordDeleted      ActivityType = "record_deleted"
	ActivityAssociationAdded   ActivityType = "association_added"
	ActivityAssociationRemoved ActivityType = "association_removed"
	ActivityDealWon            ActivityType = "deal_won"
	ActivityDealLost           ActivityType = "deal_lost"
	ActivityDealReopened       ActivityType = "deal_reopened"
)

// PropertyChange is one old/new value pair inside an activity entry.
type PropertyChange struct {
	Property string `json:"property"`
	Old      any    `json:"old,omitempty"`
	New      any    `json:"new,omitempty"`
}

// ActivityEntry is an immutable audit event describing one change to a
// record. Entries are append-only; the auto-assigned ID doubles as the
// pagination cursor and gives a total order per object.
type ActivityEntry struct {
	ID           int64            `json:"id"`
	ObjectID     string           `json:"objectId"`
	ObjectType   string           `json:"objectType"`
	Type         ActivityType     `json:"type"`
	Changes      []PropertyChange `json:"changes,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	ActorID      string           `json:"actorId,omitempty"`
	AutomationID string           `json:"automationId,omitempty"`
	CreatedAt    string           `json:"createdAt"`
}

// Change returns the entry's change for the given property, or nil.
func (e *ActivityEntry) Change(property string) *PropertyChange {
	for i := range e.Changes {
		if e.Changes[i].Property == property {
			return &e.Changes[i]
		}
	}
	return nil
}

// ActivityPage is one page of an object's activity history, oldest first.
// Cursor is the ID of the last entry and resumes the query where it left off.
type ActivityPage struct {
	Entries []*ActivityEntry `json:"entries"`
	Cursor  int64            `json:"cursor"`
	HasMore bool             `json:"hasMore"`
}
