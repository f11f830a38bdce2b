package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadbot/crm-assistant/internal/lead"
)

var fullRecord = lead.Record{
	FirstName:  "Jane",
	LastName:   "Doe",
	Email:      "jane.doe@example.com",
	Phone:      "9876543210",
	Company:    "Example Co.",
	LeadSource: "Telegram",
}

func TestMapZoho(t *testing.T) {
	t.Run("full record keeps every value", func(t *testing.T) {
		assert.Equal(t, Payload{
			"Company":     "Example Co.",
			"Last_Name":   "Doe",
			"First_Name":  "Jane",
			"Email":       "jane.doe@example.com",
			"Phone":       "9876543210",
			"Lead_Source": "Telegram",
		}, MapZoho(fullRecord))
	})

	t.Run("empty record gets defaults without contact fields", func(t *testing.T) {
		assert.Equal(t, Payload{
			"Company":     "N/A",
			"Last_Name":   "Unknown",
			"First_Name":  "Lead",
			"Lead_Source": "Telegram Bot",
		}, MapZoho(lead.Record{}))
	})
}

func TestMapHubSpot(t *testing.T) {
	t.Run("full record keeps every key", func(t *testing.T) {
		assert.Equal(t, Payload{
			"firstname":   "Jane",
			"lastname":    "Doe",
			"email":       "jane.doe@example.com",
			"phone":       "9876543210",
			"company":     "Example Co.",
			"lead_source": "Telegram",
		}, MapHubSpot(fullRecord))
	})

	t.Run("empty record only carries lead source", func(t *testing.T) {
		assert.Equal(t, Payload{"lead_source": "Telegram Bot"}, MapHubSpot(lead.Record{}))
	})

	t.Run("partial record omits unknown keys", func(t *testing.T) {
		p := MapHubSpot(lead.Record{FirstName: "Jane", Phone: "9876543210"})
		assert.Equal(t, Payload{
			"firstname":   "Jane",
			"phone":       "9876543210",
			"lead_source": "Telegram Bot",
		}, p)
		assert.NotContains(t, p, "email")
	})
}

func TestMapperFor(t *testing.T) {
	_, ok := MapperFor(Zoho)
	assert.True(t, ok)
	_, ok = MapperFor(HubSpot)
	assert.True(t, ok)
	_, ok = MapperFor(Name("salesforce"))
	assert.False(t, ok)
}
