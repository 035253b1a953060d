package service

import (
	"context"
	"strings"
	"sync"

	"flowauth/internal/model"
)

// fakeStore is an in-memory UserStore with per-method failure injection so
// tests can exercise the transient-error and duplicate-race paths.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	failures map[string][]error
	calls    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]model.User{},
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeStore) failOnce(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

func (f *fakeStore) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) put(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// begin records the call and pops a queued failure, if any.
func (f *fakeStore) begin(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	queue := f.failures[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failures[method] = queue[1:]
	return err
}

func (f *fakeStore) FindByID(_ context.Context, id string) (model.User, error) {
	if err := f.begin("FindByID"); err != nil {
		return model.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	if err := f.begin("FindByEmail"); err != nil {
		return model.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeStore) FindByGoogleID(_ context.Context, googleID string) (model.User, error) {
	if err := f.begin("FindByGoogleID"); err != nil {
		return model.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeStore) Create(_ context.Context, u model.User) (model.User, error) {
	if err := f.begin("Create"); err != nil {
		return model.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, model.ErrDuplicateUser
		}
		if existing.GoogleID != nil && u.GoogleID != nil && *existing.GoogleID == *u.GoogleID {
			return model.User{}, model.ErrDuplicateUser
		}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) LinkGoogle(_ context.Context, link model.GoogleLink) (model.User, error) {
	if err := f.begin("LinkGoogle"); err != nil {
		return model.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[link.UserID]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	googleID := link.GoogleID
	googleEmail := link.GoogleEmail
	u.GoogleID = &googleID
	u.GoogleEmail = &googleEmail
	u.GoogleRefreshToken = link.RefreshToken
	if u.ProfileImage == nil {
		u.ProfileImage = link.ProfileImage
	}

	f.users[link.UserID] = u
	return u, nil
}
