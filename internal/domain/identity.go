package domain

// Identity is the normalized "current user" handed to the chat core.
type Identity struct {
	ID   string `json:"id" yaml:"id"`
	Role Role   `json:"role" yaml:"role"`
}

// Empty reports whether the identity carries no user id.
func (i Identity) Empty() bool {
	return i.ID == ""
}

func (i Identity) String() string {
	if i.Role == "" {
		return i.ID
	}
	return i.ID + " (" + string(i.Role) + ")"
}
