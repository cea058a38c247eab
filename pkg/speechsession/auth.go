package speechsession

import "context"

// AuthInfo carries whatever the transport needs to authenticate a
// connection attempt (bearer token, header set, etc.). It is opaque to
// this package beyond being handed to ConnectionFactory.Dial.
type AuthInfo struct {
	Token   string
	Headers map[string]string
}

// Auth fetches credentials for a connection attempt. fetchEventID is an
// opaque id minted per fetch, useful for correlating telemetry.
//
// FetchOnExpiry is invoked instead of Fetch exactly once, when a prior
// connection attempt was rejected with an auth-expiry status; it gives the
// collaborator a chance to force a token refresh rather than return a
// cached, already-expired credential.
type Auth interface {
	Fetch(ctx context.Context, fetchEventID string) (AuthInfo, error)
	FetchOnExpiry(ctx context.Context, fetchEventID string) (AuthInfo, error)
}

// StaticAuth is the simplest Auth implementation: it hands back a fixed
// bearer token for both a normal fetch and a post-403 refetch. Useful for
// a pre-issued long-lived key; a real deployment generally wants a token
// source that actually refreshes on FetchOnExpiry.
type StaticAuth struct {
	Token string
}

func (a StaticAuth) Fetch(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	return AuthInfo{Token: a.Token}, nil
}

func (a StaticAuth) FetchOnExpiry(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	return AuthInfo{Token: a.Token}, nil
}

// TokenSourceAuth calls a refresh function to obtain credentials,
// distinguishing a routine fetch from a post-403 forced refresh so the
// source can bypass any internal cache on the latter.
type TokenSourceAuth struct {
	Fetcher        func(ctx context.Context) (AuthInfo, error)
	ForceRefresher func(ctx context.Context) (AuthInfo, error)
}

func (a TokenSourceAuth) Fetch(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	return a.Fetcher(ctx)
}

func (a TokenSourceAuth) FetchOnExpiry(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	if a.ForceRefresher != nil {
		return a.ForceRefresher(ctx)
	}
	return a.Fetcher(ctx)
}
