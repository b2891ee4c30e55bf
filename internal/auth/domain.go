package auth

// Credentials is what login needs to check a password.
type Credentials struct {
	ID           int64
	Email        string
	Name         string
	LastName     string
	Role         string
	PasswordHash string
	IsActive     bool
}

// Profile is the user summary returned on login.
type Profile struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Role     string `json:"role"`
}

// LoginInput is the login body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User Profile `json:"user"`
}
