package model

// CrmLeadRef is the narrow read-only projection of a CRM lead the Scorer
// needs to score a candidate pair. The matching module never writes to
// crm_leads; the CRM Puller owns that table.
type CrmLeadRef struct {
	ID                string
	EmailNormalized   string
	PhoneNormalized   string
	AddressNormalized string
	AssignedUserID    *string
}
