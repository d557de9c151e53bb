package domain

import (
	"time"

	"github.com/google/uuid"
)

type CallID uuid.UUID

func NewCallID() CallID {
	return CallID(uuid.New())
}

func (id CallID) String() string {
	return uuid.UUID(id).String()
}

func ParseCallID(s string) (CallID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CallID{}, err
	}
	return CallID(u), nil
}

type CallStatus string

const (
	CallPending CallStatus = "pending"
	CallActive  CallStatus = "active"
	CallEnded   CallStatus = "ended"
)

// CallRole identifies a participant's side of the call.
type CallRole string

const (
	RoleCaller   CallRole = "caller"
	RoleReceiver CallRole = "receiver"
)

// CallSession coordinates one voice call attempt between two plates.
// State machine: pending -> active -> ended, ended is terminal.
type CallSession struct {
	ID            CallID
	CallerPlate   Plate
	ReceiverPlate Plate
	Status        CallStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	EndedAt       *time.Time
}

func NewCallSession(caller, receiver Plate, now time.Time, ttl time.Duration) *CallSession {
	return &CallSession{
		ID:            NewCallID(),
		CallerPlate:   caller,
		ReceiverPlate: receiver,
		Status:        CallPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

// Expired reports lazy TTL expiry. Only pending sessions expire; an active
// call is torn down by its participants, not by the clock.
func (c *CallSession) Expired(now time.Time) bool {
	return c.Status == CallPending && now.After(c.ExpiresAt)
}

// Open reports whether the session still occupies its participants.
func (c *CallSession) Open(now time.Time) bool {
	switch c.Status {
	case CallPending:
		return !now.After(c.ExpiresAt)
	case CallActive:
		return true
	default:
		return false
	}
}

// RoleOf returns the side a plate plays in this call.
func (c *CallSession) RoleOf(p Plate) (CallRole, bool) {
	switch p {
	case c.CallerPlate:
		return RoleCaller, true
	case c.ReceiverPlate:
		return RoleReceiver, true
	default:
		return "", false
	}
}
