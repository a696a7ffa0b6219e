package gateway

import (
	"context"
	"sync"

	"member-portal/internal/session"
)

// Navigator moves the user to another route. In the CLI that means telling
// the member to sign in again; tests record the route.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// RecordingNavigator remembers the last route it was sent to.
type RecordingNavigator struct {
	mu       sync.Mutex
	location string
	count    int
}

func (r *RecordingNavigator) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = route
	r.count++
}

func (r *RecordingNavigator) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

func (r *RecordingNavigator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// UnauthorizedEffect is the single global side effect of a 401.
type UnauthorizedEffect func(ctx context.Context) error

// ClearAndNavigate clears the session and then navigates to loginRoute. The
// navigation happens even if clearing fails.
func ClearAndNavigate(creds *session.Credentials, nav Navigator, loginRoute string) UnauthorizedEffect {
	return func(ctx context.Context) error {
		err := creds.Clear(ctx)
		if nav != nil {
			nav.Navigate(loginRoute)
		}
		return err
	}
}
