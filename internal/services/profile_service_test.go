package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/internal/cache"
	"example.com/verdad/services/notifier/internal/models"
)

type MockProfileLookup struct {
	mock.Mock
}

func (m *MockProfileLookup) GetByEmails(ctx context.Context, emails []string) ([]models.Profile, error) {
	args := m.Called(ctx, emails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Profile), args.Error(1)
}

func (m *MockProfileLookup) Search(ctx context.Context, text string) ([]models.Profile, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Profile), args.Error(1)
}

func TestProfileGetByEmailsFetchesMissesFromStorage(t *testing.T) {
	store := new(MockProfileLookup)
	store.On("GetByEmails", mock.Anything, []string{"a@x.com", "b@x.com"}).
		Return([]models.Profile{
			{Name: "Alice", Email: "a@x.com"},
			{Name: "Bob", Email: "b@x.com"},
		}, nil)

	service := NewProfileService(store, &cache.RedisCache{})

	profiles, err := service.GetByEmails(context.Background(), []string{"a@x.com", "b@x.com"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	store.AssertExpectations(t)
}

func TestProfileGetByEmailsOmitsUnknownEmails(t *testing.T) {
	store := new(MockProfileLookup)
	store.On("GetByEmails", mock.Anything, []string{"a@x.com", "ghost@x.com"}).
		Return([]models.Profile{{Name: "Alice", Email: "a@x.com"}}, nil)

	service := NewProfileService(store, &cache.RedisCache{})

	profiles, err := service.GetByEmails(context.Background(), []string{"a@x.com", "ghost@x.com"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "a@x.com", profiles[0].Email)
}

func TestProfileGetByEmailsStorageFailure(t *testing.T) {
	store := new(MockProfileLookup)
	store.On("GetByEmails", mock.Anything, mock.Anything).
		Return(nil, errors.New("db down"))

	service := NewProfileService(store, &cache.RedisCache{})

	_, err := service.GetByEmails(context.Background(), []string{"a@x.com"})
	require.Error(t, err)
}

func TestProfileSearchPassesThrough(t *testing.T) {
	store := new(MockProfileLookup)
	store.On("Search", mock.Anything, "ali").
		Return([]models.Profile{{Name: "Alice", Email: "a@x.com"}}, nil)

	service := NewProfileService(store, &cache.RedisCache{})

	profiles, err := service.Search(context.Background(), "ali")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	store.AssertExpectations(t)
}
