package common

// DenyList holds field names and record ids excluded from a migration
type DenyList struct {
	Fields map[string]struct{}
	IDs    map[string]struct{}
}

// NewDenyList builds a deny list from plain slices
func NewDenyList(fields, ids []string) DenyList {
	d := DenyList{
		Fields: make(map[string]struct{}, len(fields)),
		IDs:    make(map[string]struct{}, len(ids)),
	}
	for _, f := range fields {
		if f != "" {
			d.Fields[f] = struct{}{}
		}
	}
	for _, id := range ids {
		if id != "" {
			d.IDs[id] = struct{}{}
		}
	}
	return d
}

// DeniesField reports whether name is excluded
func (d DenyList) DeniesField(name string) bool {
	_, ok := d.Fields[name]
	return ok
}

// DeniesID reports whether a record id is excluded
func (d DenyList) DeniesID(id string) bool {
	if id == "" {
		return false
	}
	_, ok := d.IDs[id]
	return ok
}
