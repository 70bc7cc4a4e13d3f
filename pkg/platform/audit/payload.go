package audit

import "time"

// Payload is the wire shape written to the outbox and relayed to Kafka.
type Payload struct {
	Category       string    `json:"category"`
	Timestamp      time.Time `json:"timestamp"`
	CitizenID      string    `json:"citizen_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Action         string    `json:"action"`
	DataCategory   string    `json:"data_category,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	Decision       string    `json:"decision,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
}

// NewPayload flattens an event into its wire shape; nil ids are omitted.
func NewPayload(e Event) Payload {
	p := Payload{
		Category:     string(e.Category),
		Timestamp:    e.Timestamp.UTC(),
		Action:       e.Action,
		DataCategory: string(e.DataCategory),
		Subject:      e.Subject,
		Decision:     e.Decision,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
		ActorID:      e.ActorID,
	}
	if !e.CitizenID.IsNil() {
		p.CitizenID = e.CitizenID.String()
	}
	if !e.OrganizationID.IsNil() {
		p.OrganizationID = e.OrganizationID.String()
	}
	return p
}
