package domain

// DataType enumerates the value types a property definition can declare.
type DataType string

const (
	TypeString      DataType = "string"
	TypeNumber      DataType = "number"
	TypeBoolean     DataType = "boolean"
	TypeDate        DataType = "date"
	TypeSelect      DataType = "select"
	TypeMultiSelect DataType = "multiselect"
	TypeReference   DataType = "reference"
)

// ValidDataType reports whether dt is one of the supported data types.
func ValidDataType(dt DataType) bool {
	switch dt {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeSelect, TypeMultiSelect, TypeReference:
		return true
	}
	return false
}

// TypeFeatures are the per-type feature toggles.
type TypeFeatures struct {
	Versioning bool `json:"versioning"`
	Audit      bool `json:"audit"`
	Workflows  bool `json:"workflows"`
	Pipelines  bool `json:"pipelines"`
}

// AllowedAssociation declares one relationship name a type may use, and which
// target type it points at. Multiple=false restricts the source record to at
// most one live association of this name.
type AllowedAssociation struct {
	Name        string `json:"name"`
	TargetType  string `json:"targetType"`
	InverseName string `json:"inverseName,omitempty"`
	Multiple    bool   `json:"multiple"`
}

// ObjectType is a tenant-defined schema category such as "deal" or "ticket".
// InternalName is immutable once records of the type exist.
type ObjectType struct {
	ID                   string               `json:"id"`
	InternalName         string               `json:"internalName"`
	Label                string               `json:"label"`
	PluralLabel          string               `json:"pluralLabel,omitempty"`
	RecordPrefix         string               `json:"recordPrefix"`
	DisplayProperty      string               `json:"displayProperty,omitempty"`
	IsSystem             bool                 `json:"isSystem"`
	Features             TypeFeatures         `json:"features"`
	SearchableProperties []string             `json:"searchableProperties,omitempty"`
	AllowedAssociations  []AllowedAssociation `json:"allowedAssociations,omitempty"`
	CreatedAt            string               `json:"createdAt"`
	UpdatedAt            string               `json:"updatedAt"`
}

// Association returns the allowed-association config for name, or nil if the
// type does not permit that relationship name.
func (t *ObjectType) Association(name string) *AllowedAssociation {
	for i := range t.AllowedAssociations {
		if t.AllowedAssociations[i].Name == name {
			return &t.AllowedAssociations[i]
		}
	}
	return nil
}

// ValidationRules constrain a property's values beyond its data type. Zero
// values mean "no constraint"; Min/Max apply to numbers, MinLength/MaxLength
// and Pattern to strings.
type ValidationRules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength int      `json:"minLength,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Empty reports whether no rule is set.
func (v ValidationRules) Empty() bool {
	return v.Min == nil && v.Max == nil && v.MinLength == 0 && v.MaxLength == 0 && v.Pattern == ""
}

// SelectOption is one choice of a select or multiselect property.
type SelectOption struct {
	Value        string `json:"value"`
	Label        string `json:"label,omitempty"`
	DisplayOrder int    `json:"displayOrder,omitempty"`
}

// PropertyDefinition describes one custom field. ObjectType is empty for
// global definitions that apply to every type in the tenant. DataType never
// changes once values exist.
type PropertyDefinition struct {
	ID             string          `json:"id"`
	ObjectType     string          `json:"objectType,omitempty"`
	Name           string          `json:"name"`
	Label          string          `json:"label"`
	DataType       DataType        `json:"dataType"`
	Required       bool            `json:"required"`
	Unique         bool            `json:"unique"`
	Options        []SelectOption  `json:"options,omitempty"`
	ReferencedType string          `json:"referencedType,omitempty"`
	Rules          ValidationRules `json:"validationRules,omitempty"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

// Global reports whether the definition applies to all object types.
func (p *PropertyDefinition) Global() bool {
	return p.ObjectType == ""
}

// HasOption reports whether value is one of the definition's select options.
func (p *PropertyDefinition) HasOption(value string) bool {
	for _, o := range p.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Schema is the merged view of an object type: the type itself plus its
// effective property definitions, global first with type-scoped definitions
// overriding on name collision.
type Schema struct {
	Type       *ObjectType           `json:"type"`
	Properties []*PropertyDefinition `json:"properties"`
}

// Property returns the effective definition for name, or nil.
func (s *Schema) Property(name string) *PropertyDefinition {
	for _, p := range s.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// RequiredProperties returns the names of all required properties.
func (s *Schema) RequiredProperties() []string {
	var names []string
	for _, p := range s.Properties {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// MergeProperties combines global and type-scoped definitions into the
// effective set: global definitions come first in their stored order, and a
// type-scoped definition with the same name replaces the global one in place.
func MergeProperties(global, scoped []*PropertyDefinition) []*PropertyDefinition {
	merged := make([]*PropertyDefinition, 0, len(global)+len(scoped))
	index := make(map[string]int, len(global))
	for _, p := range global {
		index[p.Name] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range scoped {
		if i, ok := index[p.Name]; ok {
			merged[i] = p
			continue
		}
		merged = append(merged, p)
	}
	return merged
}
