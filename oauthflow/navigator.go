package oauthflow

import "context"

// Navigator moves the host to another surface. In a browser it changes the location, in the CLI
// it opens a browser or prints where the user should go.
type Navigator interface {
	// Redirect sends the user to an external URL, the provider authorization endpoint.
	Redirect(ctx context.Context, url string) error
	// Landing shows the authenticated landing surface.
	Landing()
	// Entry shows the unauthenticated entry surface.
	Entry()
}

// NopNavigator ignores every navigation request.
type NopNavigator struct{}

func (NopNavigator) Redirect(context.Context, string) error { return nil }
func (NopNavigator) Landing()                               {}
func (NopNavigator) Entry()                                 {}
