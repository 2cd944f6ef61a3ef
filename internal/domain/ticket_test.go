package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	assert.True(t, TicketStatusOpen.CanTransitionTo(TicketStatusClosed))
	assert.True(t, TicketStatusOpen.CanTransitionTo(TicketStatusArchived))
	assert.True(t, TicketStatusClosed.CanTransitionTo(TicketStatusArchived))

	assert.False(t, TicketStatusClosed.CanTransitionTo(TicketStatusOpen))
	assert.False(t, TicketStatusArchived.CanTransitionTo(TicketStatusClosed))
	assert.False(t, TicketStatusArchived.CanTransitionTo(TicketStatusOpen))
	assert.False(t, TicketStatusOpen.CanTransitionTo(TicketStatusOpen))
}

func TestStatusTransitionRejectsUnknown(t *testing.T) {
	assert.False(t, TicketStatus("resolved").CanTransitionTo(TicketStatusArchived))
	assert.False(t, TicketStatusOpen.CanTransitionTo(TicketStatus("reopened")))
}

func TestParseHostingMode(t *testing.T) {
	mode, ok := ParseHostingMode("tickit")
	assert.True(t, ok)
	assert.Equal(t, HostingPlatform, mode)

	mode, ok = ParseHostingMode("self")
	assert.True(t, ok)
	assert.Equal(t, HostingSelf, mode)

	_, ok = ParseHostingMode("cloud")
	assert.False(t, ok)
}
