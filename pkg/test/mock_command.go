// Package test holds mocks shared by package tests.
package test

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/stretchr/testify/mock"
)

// MockCommand is a testify mock of commands.Command.
type MockCommand struct {
	mock.Mock
}

// NewMockCommand creates a MockCommand whose expectations are asserted when
// the test ends.
func NewMockCommand(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCommand {
	m := &MockCommand{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockCommand) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCommand) Description() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCommand) Options() []discord.CommandOption {
	args := m.Called()
	if opts := args.Get(0); opts != nil {
		return opts.([]discord.CommandOption)
	}
	return nil
}

func (m *MockCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	args := m.Called(ctx, s, e, data)
	return args.Error(0)
}
