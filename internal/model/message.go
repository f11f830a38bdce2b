// Package model holds the wire types shared by the transports and the
// lead event stream.
package model

// InboundMessage is one chat message delivered to the webhook.
type InboundMessage struct {
	// UserID defaults to the authenticated subject when empty.
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
}

// ReplyResponse carries the bot replies for one inbound message, in order.
type ReplyResponse struct {
	UserID  string   `json:"user_id"`
	Replies []string `json:"replies"`
}
