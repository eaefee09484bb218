package domain

// DefaultTenant is the tenant bootstrapped by the seed data. Requests that
// carry no tenant header land here.
const DefaultTenant = "default"

// RecordStatus is the lifecycle state of an object record.
type RecordStatus string

const (
	StatusActive   RecordStatus = "active"
	StatusArchived RecordStatus = "archived"
	StatusDeleted  RecordStatus = "deleted"
)

// Record is a single object record of some tenant-defined type. Property
// values carry their declared Go type: string, float64, bool, []string for
// multiselect, or a record ID string for reference properties.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	OwnerID    string         `json:"ownerId,omitempty"`
	Status     RecordStatus   `json:"status"`
	Properties map[string]any `json:"properties"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
	ArchivedAt string         `json:"archivedAt,omitempty"`
	DeletedAt  string         `json:"deletedAt,omitempty"`
}

// Deleted reports whether the record has been soft-deleted. Deleted records
// are read-only stubs: they stay visible to the activity log and existing
// relationships but reject mutation and new associations.
func (r *Record) Deleted() bool {
	return r.Status == StatusDeleted
}

// CreateInput holds the data needed to create a new record.
type CreateInput struct {
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	OwnerID    string         `json:"ownerId,omitempty"`
	Properties map[string]any `json:"properties"`
}

// UpdateInput is a partial property patch for an existing record. A nil
// property value clears the property. Reason, when set, is recorded on every
// activity entry the update produces.
type UpdateInput struct {
	Name       *string        `json:"name,omitempty"`
	OwnerID    *string        `json:"ownerId,omitempty"`
	Properties map[string]any `json:"properties"`
	Reason     string         `json:"reason,omitempty"`
}

// RecordPage is a cursor-paginated list of records.
type RecordPage struct {
	Results []*Record `json:"results"`
	After   string    `json:"after,omitempty"`
	HasMore bool      `json:"hasMore"`
}
