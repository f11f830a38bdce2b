package crm

import (
	"github.com/leadbot/crm-assistant/internal/lead"
)

// Mapper translates a generic record into a CRM-specific payload.
type Mapper func(r lead.Record) Payload

// MapperFor returns the field mapper of a CRM.
func MapperFor(name Name) (Mapper, bool) {
	switch name {
	case Zoho:
		return MapZoho, true
	case HubSpot:
		return MapHubSpot, true
	default:
		return nil, false
	}
}

// MapZoho builds a Zoho Leads payload. Company, names and lead source get
// textual defaults; Email and Phone are sent only when known.
func MapZoho(r lead.Record) Payload {
	p := Payload{
		"Company":     orDefault(r.Company, "N/A"),
		"Last_Name":   orDefault(r.LastName, "Unknown"),
		"First_Name":  orDefault(r.FirstName, "Lead"),
		"Lead_Source": orDefault(r.LeadSource, DefaultLeadSource),
	}
	setIfPresent(p, "Email", r.Email)
	setIfPresent(p, "Phone", r.Phone)
	return p
}

// MapHubSpot builds HubSpot contact properties. Unknown fields are omitted;
// only lead_source is defaulted.
func MapHubSpot(r lead.Record) Payload {
	p := Payload{
		"lead_source": orDefault(r.LeadSource, DefaultLeadSource),
	}
	setIfPresent(p, "firstname", r.FirstName)
	setIfPresent(p, "lastname", r.LastName)
	setIfPresent(p, "email", r.Email)
	setIfPresent(p, "phone", r.Phone)
	setIfPresent(p, "company", r.Company)
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func setIfPresent(p Payload, key, v string) {
	if v != "" {
		p[key] = v
	}
}
