package token

// Record is the OAuth state for one SmartThings integration: the client
// credential pair plus the current access/refresh token pair. The record is
// created empty, populated by Load or a code exchange, mutated in place by
// every successful refresh and persisted after every mutation. It is never
// deleted, only overwritten.
type Record struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string

	// ExpiresHint is the expires_in value last reported by the token
	// endpoint. It is advisory only; a 401 from the API is the expiry signal.
	ExpiresHint string
}

// Authenticated reports whether the record holds a usable token pair
func (r *Record) Authenticated() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}
