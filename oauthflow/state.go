package oauthflow

// State is a step of the authorization-code login.
type State int

const (
	// Idle means no login is in progress and no session is held.
	Idle State = iota

	// AwaitingProviderRedirect means the user was sent to the provider and we wait for the callback.
	AwaitingProviderRedirect

	// ExchangingCode means the callback was accepted and the broker calls are running.
	ExchangingCode

	// Authenticated means a complete session is stored.
	Authenticated

	// Failed means the last login attempt ended in an error. Start must be called again.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingProviderRedirect:
		return "awaiting_provider_redirect"
	case ExchangingCode:
		return "exchanging_code"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
