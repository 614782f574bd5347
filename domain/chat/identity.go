package chat

// Identity is the signed-in user as established by the external session.
// Calls receiving an Identity assume it has already been authenticated.
type Identity struct {
	UserID UserID
}
