package models

// User is the identity bound to a session after a successful auth frame.
// Profiles live in the external users collection; the service consumes them
// read-only.
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Teacher  bool   `json:"teacher"`
}

// UserDoc is the raw shape of a users/{user_id} document.
type UserDoc struct {
	Name      string `json:"name"`
	LastName  string `json:"lastName"`
	IsTeacher bool   `json:"isTeacher"`
}

// NewUser derives the session identity from a profile document.
func NewUser(userID string, doc UserDoc) *User {
	return &User{
		UserID:   userID,
		Username: doc.Name + " " + doc.LastName,
		Teacher:  doc.IsTeacher,
	}
}
