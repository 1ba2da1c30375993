package domain

import "time"

// MessageStatus is the lifecycle state of a MessageRequest.
type MessageStatus string

const (
	MessagePending   MessageStatus = "PENDING"
	MessageCompleted MessageStatus = "COMPLETED"
)

// MessageRequest is the front service's bus-side bookkeeping record: one per
// request/reply round trip published to the runner.
type MessageRequest struct {
	ID                     string        `bson:"_id" json:"id"`
	SubmitterID            string        `bson:"submitterId" json:"submitterId"`
	Status                 MessageStatus `bson:"status" json:"status"`
	IsError                bool          `bson:"isError" json:"isError"`
	StartingPositionInQueue int          `bson:"startingPositionInQueue,omitempty" json:"startingPositionInQueue,omitempty"`
	CorrelationID          string        `bson:"correlationId" json:"correlationId"`
	DocumentRef            string        `bson:"documentRef" json:"documentRef"`
	Response               []byte        `bson:"response,omitempty" json:"-"`
	ErrorPayload           []byte        `bson:"errorPayload,omitempty" json:"-"`
	CreatedAt              time.Time     `bson:"createdAt" json:"createdAt"`
	CompletedAt            *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Complete transitions the request to COMPLETED with a success payload.
func (m *MessageRequest) Complete(payload []byte, completedAt time.Time) {
	m.Status = MessageCompleted
	m.IsError = false
	m.Response = payload
	m.CompletedAt = &completedAt
}

// Fail transitions the request to COMPLETED with an error payload.
func (m *MessageRequest) Fail(payload []byte, completedAt time.Time) {
	m.Status = MessageCompleted
	m.IsError = true
	m.ErrorPayload = payload
	m.CompletedAt = &completedAt
}
