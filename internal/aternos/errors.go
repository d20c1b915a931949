package aternos

import "errors"

var (
	// ErrAuth means the login form never appeared or the login did not
	// get past it.
	ErrAuth = errors.New("aternos: login failed")
	// ErrBlocked means an anti-bot interstitial was served instead of the
	// requested page.
	ErrBlocked = errors.New("aternos: blocked by challenge page")
	// ErrSessionExpired means injected cookies no longer log in.
	ErrSessionExpired = errors.New("aternos: session cookies expired")
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindAuth
	KindBlocked
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindBlocked:
		return "blocked"
	case KindExpired:
		return "expired"
	}
	return "unexpected"
}

// Classify maps err onto the failure kinds users get distinct replies for.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrSessionExpired):
		return KindExpired
	case errors.Is(err, ErrAuth):
		return KindAuth
	}
	return KindUnexpected
}
