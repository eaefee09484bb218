package domain

// Relationship is a typed link from one record to another. Name is the
// relationship name as declared in the source type's allowed associations;
// InverseName, when set, makes the link traversable from the target side.
// Relationships are weak references: they never keep a deleted record's data
// alive, and deleted records drop out of traversal results.
type Relationship struct {
	ID          int64  `json:"id"`
	SourceID    string `json:"sourceId"`
	TargetID    string `json:"targetId"`
	Name        string `json:"name"`
	InverseName string `json:"inverseName,omitempty"`
	CreatedAt   string `json:"createdAt"`
}
