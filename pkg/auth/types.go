package auth

import "time"

// Role represents a user's system-wide role
type Role string

const (
	RoleUser  Role = "user"  // Manages own and assigned tasks
	RoleAdmin Role = "admin" // Manages users, sees every task
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated identity behind a request.
// It is rebuilt from a verified access token on every request and never stored.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never leaves the store
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal returns the principal a token for this user would carry
func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Role: u.Role}
}

// PublicUser is the user representation returned by handlers
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public strips everything but the client-visible fields
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// PublicUsers converts a slice of users for output
func PublicUsers(users []*User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// TokenPair is the result of a successful login
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
