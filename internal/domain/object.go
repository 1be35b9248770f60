package domain

import "reflect"

// ObjectType classifies persisted objects
type ObjectType string

const (
	ObjectTypeChannel ObjectType = "channel"
	ObjectTypeState   ObjectType = "state"
)

// ObjectCommon holds the descriptive part of an object definition
type ObjectCommon struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"`
	Unit  string `json:"unit,omitempty"`
	Read  bool   `json:"read,omitempty"`
	Write bool   `json:"write,omitempty"`
}

// Object is a persisted object definition in the object store
type Object struct {
	ID     string            `json:"_id"`
	Type   ObjectType        `json:"type"`
	Common ObjectCommon      `json:"common"`
	Native map[string]string `json:"native,omitempty"`
}

// Equal compares definitions ignoring map nil-vs-empty differences
func (o Object) Equal(other Object) bool {
	if o.ID != other.ID || o.Type != other.Type || !reflect.DeepEqual(o.Common, other.Common) {
		return false
	}
	if len(o.Native) != len(other.Native) {
		return false
	}
	for k, v := range o.Native {
		if other.Native[k] != v {
			return false
		}
	}
	return true
}

// Extend returns o with the non-empty parts of patch applied.
// Native keys are merged; a patch cannot clear a field.
func (o Object) Extend(patch Object) Object {
	if patch.Type != "" {
		o.Type = patch.Type
	}
	c := patch.Common
	if c.Name != "" {
		o.Common.Name = c.Name
	}
	if c.Role != "" {
		o.Common.Role = c.Role
	}
	if c.Type != "" {
		o.Common.Type = c.Type
	}
	if c.Unit != "" {
		o.Common.Unit = c.Unit
	}
	o.Common.Read = o.Common.Read || c.Read
	o.Common.Write = o.Common.Write || c.Write
	if len(patch.Native) > 0 {
		merged := make(map[string]string, len(o.Native)+len(patch.Native))
		for k, v := range o.Native {
			merged[k] = v
		}
		for k, v := range patch.Native {
			merged[k] = v
		}
		o.Native = merged
	}
	return o
}
