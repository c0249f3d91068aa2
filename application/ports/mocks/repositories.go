// Package mocks provides testify mock implementations of the application ports.
package mocks

import (
	"context"
	"time"

	"collective-rides/application/ports"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/domain/events"
	"github.com/stretchr/testify/mock"
)

// MockClubRepository mocks ports.ClubRepository
type MockClubRepository struct {
	mock.Mock
}

func (m *MockClubRepository) Create(ctx context.Context, club *entities.Club, owner *entities.Membership) error {
	args := m.Called(ctx, club, owner)
	return args.Error(0)
}

func (m *MockClubRepository) GetByID(ctx context.Context, id valueobjects.ClubID) (*entities.Club, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Club), args.Error(1)
}

func (m *MockClubRepository) FindByName(ctx context.Context, name string) (*entities.Club, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Club), args.Error(1)
}

func (m *MockClubRepository) Update(ctx context.Context, before, after *entities.Club) error {
	args := m.Called(ctx, before, after)
	return args.Error(0)
}

func (m *MockClubRepository) List(ctx context.Context, opts ports.ClubListOptions) (ports.Page[*entities.Club], error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(ports.Page[*entities.Club]), args.Error(1)
}

// MockMembershipRepository mocks ports.MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Create(ctx context.Context, membership *entities.Membership) (*entities.Membership, error) {
	args := m.Called(ctx, membership)
	if fn, ok := args.Get(0).(func(context.Context, *entities.Membership) *entities.Membership); ok {
		return fn(ctx, membership), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Membership), args.Error(1)
}

// ReturnArg echoes the membership passed to Create
func ReturnArg(_ context.Context, membership *entities.Membership) *entities.Membership {
	return membership
}

func (m *MockMembershipRepository) Get(ctx context.Context, clubID valueobjects.ClubID, userID string) (*entities.Membership, error) {
	args := m.Called(ctx, clubID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Membership), args.Error(1)
}

func (m *MockMembershipRepository) Update(ctx context.Context, before, after *entities.Membership) error {
	args := m.Called(ctx, before, after)
	return args.Error(0)
}

func (m *MockMembershipRepository) ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts ports.MemberListOptions) (ports.Page[*entities.Membership], error) {
	args := m.Called(ctx, clubID, opts)
	return args.Get(0).(ports.Page[*entities.Membership]), args.Error(1)
}

func (m *MockMembershipRepository) ListByUser(ctx context.Context, userID string, opts ports.UserMembershipListOptions) (ports.Page[*entities.Membership], error) {
	args := m.Called(ctx, userID, opts)
	return args.Get(0).(ports.Page[*entities.Membership]), args.Error(1)
}

// MockInvitationRepository mocks ports.InvitationRepository
type MockInvitationRepository struct {
	mock.Mock
}

func (m *MockInvitationRepository) Create(ctx context.Context, invitation *entities.Invitation) error {
	args := m.Called(ctx, invitation)
	return args.Error(0)
}

func (m *MockInvitationRepository) GetByID(ctx context.Context, id valueobjects.InvitationID) (*entities.Invitation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Invitation), args.Error(1)
}

func (m *MockInvitationRepository) Update(ctx context.Context, before, after *entities.Invitation) error {
	args := m.Called(ctx, before, after)
	return args.Error(0)
}

func (m *MockInvitationRepository) Accept(ctx context.Context, before, after *entities.Invitation, membership, replaced *entities.Membership) error {
	args := m.Called(ctx, before, after, membership, replaced)
	return args.Error(0)
}

func (m *MockInvitationRepository) ListByInvitee(ctx context.Context, invitee ports.Invitee, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	args := m.Called(ctx, invitee, opts)
	return args.Get(0).(ports.Page[*entities.Invitation]), args.Error(1)
}

func (m *MockInvitationRepository) ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	args := m.Called(ctx, clubID, opts)
	return args.Get(0).(ports.Page[*entities.Invitation]), args.Error(1)
}

func (m *MockInvitationRepository) HasPendingInvitation(ctx context.Context, clubID valueobjects.ClubID, invitee string, now time.Time) (bool, error) {
	args := m.Called(ctx, clubID, invitee, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvitationRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Invitation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Invitation), args.Error(1)
}

// MockEventPublisher mocks ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}
