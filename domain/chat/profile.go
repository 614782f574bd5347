package chat

const (
	AnonymousNickname = "Anonymous"
	DefaultAvatarRef  = "/default-avatar.png"
)

type Profile struct {
	ID        UserID
	Nickname  string
	AvatarRef string
}

// FallbackProfile is what a message shows when its author cannot be resolved.
func FallbackProfile(id UserID) Profile {
	return Profile{ID: id, Nickname: AnonymousNickname, AvatarRef: DefaultAvatarRef}
}

// WithDefaults fills every empty field with its fallback value.
func (p Profile) WithDefaults(id UserID) Profile {
	p.ID = id
	if p.Nickname == "" {
		p.Nickname = AnonymousNickname
	}
	if p.AvatarRef == "" {
		p.AvatarRef = DefaultAvatarRef
	}
	return p
}
