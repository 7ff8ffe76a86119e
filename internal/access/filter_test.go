package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/tasktime/internal/apperr"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) GetTaskOwnership(ctx context.Context, taskID string) (Ownership, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(Ownership), args.Error(1)
}

func (m *mockRegistry) GetCallerOrganizations(ctx context.Context, userID string) (map[string]struct{}, error) {
	args := m.Called(ctx, userID)
	orgs, _ := args.Get(0).(map[string]struct{})
	return orgs, args.Error(1)
}

func TestVisibleTaskIDs_OwnerAssigneeAndOrgMember(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("GetCallerOrganizations", mock.Anything, "alice").
		Return(map[string]struct{}{"acme": {}}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, "owned").
		Return(Ownership{OwnerID: "alice"}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, "assigned").
		Return(Ownership{OwnerID: "bob", AssigneeID: "alice"}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, "org").
		Return(Ownership{OwnerID: "bob", OrganizationID: "acme"}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, "foreign").
		Return(Ownership{OwnerID: "bob", OrganizationID: "globex"}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, "missing").
		Return(Ownership{}, apperr.New(apperr.KindNotFound, "task not found")).Once()

	f := NewFilter(reg)
	visible, err := f.VisibleTaskIDs(context.Background(),
		[]string{"owned", "assigned", "org", "foreign", "missing", "owned"}, "alice")
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"owned": {}, "assigned": {}, "org": {}}, visible)
	reg.AssertExpectations(t)
}

func TestVisibleTaskIDs_OrganizationsFetchedOncePerCall(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("GetCallerOrganizations", mock.Anything, "alice").Return(map[string]struct{}{}, nil).Once()
	reg.On("GetTaskOwnership", mock.Anything, mock.Anything).Return(Ownership{OwnerID: "bob"}, nil)

	_, err := NewFilter(reg).VisibleTaskIDs(context.Background(), []string{"a", "b", "c"}, "alice")
	require.NoError(t, err)
	reg.AssertNumberOfCalls(t, "GetCallerOrganizations", 1)
	reg.AssertNumberOfCalls(t, "GetTaskOwnership", 3)
}

func TestVisibleTaskIDs_RegistryErrorHidesOnlyThatTask(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("GetCallerOrganizations", mock.Anything, "alice").Return(map[string]struct{}{}, nil)
	reg.On("GetTaskOwnership", mock.Anything, "flaky").Return(Ownership{}, errors.New("registry down"))
	reg.On("GetTaskOwnership", mock.Anything, "mine").Return(Ownership{OwnerID: "alice"}, nil)

	visible, err := NewFilter(reg).VisibleTaskIDs(context.Background(), []string{"flaky", "mine"}, "alice")
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"mine": {}}, visible)
}

func TestVisibleTaskIDs_EmptyOrgNeverMatches(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("GetCallerOrganizations", mock.Anything, "alice").Return(map[string]struct{}{"": {}}, nil)
	reg.On("GetTaskOwnership", mock.Anything, "t1").Return(Ownership{OwnerID: "bob"}, nil)

	ok, err := NewFilter(reg).CanSee(context.Background(), "t1", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVisibleTaskIDs_NoCallerSeesNothing(t *testing.T) {
	reg := &mockRegistry{}

	visible, err := NewFilter(reg).VisibleTaskIDs(context.Background(), []string{"t1"}, "")
	require.NoError(t, err)
	require.Empty(t, visible)
	reg.AssertNotCalled(t, "GetCallerOrganizations", mock.Anything, mock.Anything)
}

func TestVisibleTaskIDs_OrganizationLookupFails(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("GetCallerOrganizations", mock.Anything, "alice").Return(nil, errors.New("boom"))

	_, err := NewFilter(reg).VisibleTaskIDs(context.Background(), []string{"t1"}, "alice")
	require.Error(t, err)
}
