// Package lead defines the CRM-agnostic lead record and the free-text extractor
// that fills it from chat messages.
package lead

// Record is a generic lead/contact. An empty field means the value is unknown;
// no field is required to build a record.
type Record struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	LeadSource string `json:"lead_source,omitempty"`
}

// IsEmpty reports whether no field carries a value.
func (r Record) IsEmpty() bool {
	return r == Record{}
}

// HasContact reports whether the record can be reached by email or phone.
func (r Record) HasContact() bool {
	return r.Email != "" || r.Phone != ""
}
