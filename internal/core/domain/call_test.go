package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallSessionLifecycle(t *testing.T) {
	now := time.Now()
	call := NewCallSession("ABC-1234", "XYZ-5678", now, 5*time.Minute)

	assert.Equal(t, CallPending, call.Status)
	assert.Equal(t, now.Add(5*time.Minute), call.ExpiresAt)
	assert.True(t, call.Open(now))
	assert.False(t, call.Expired(now))

	// Pending sessions expire lazily.
	later := now.Add(6 * time.Minute)
	assert.True(t, call.Expired(later))
	assert.False(t, call.Open(later))

	// Active sessions outlive the TTL.
	call.Status = CallActive
	assert.False(t, call.Expired(later))
	assert.True(t, call.Open(later))

	call.Status = CallEnded
	assert.False(t, call.Open(now))
}

func TestCallSessionRoleOf(t *testing.T) {
	call := NewCallSession("ABC-1234", "XYZ-5678", time.Now(), time.Minute)

	role, ok := call.RoleOf("ABC-1234")
	assert.True(t, ok)
	assert.Equal(t, RoleCaller, role)

	role, ok = call.RoleOf("XYZ-5678")
	assert.True(t, ok)
	assert.Equal(t, RoleReceiver, role)

	_, ok = call.RoleOf("OTHER-999")
	assert.False(t, ok)
}

func TestSignalingMessageValidate(t *testing.T) {
	id := NewCallID()

	_, err := NewSignalingMessage(id, SignalOffer, RoleCaller, "sdp")
	assert.NoError(t, err)

	_, err = NewSignalingMessage(id, "shout", RoleCaller, "sdp")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSignalingMessage(id, SignalAnswer, "bystander", "sdp")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
