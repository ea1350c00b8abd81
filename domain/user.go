package domain

type User struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
	WalletPoints int64  `json:"walletPoints"`
}

// AuthResult is returned by OTP verification. IsNewUser gates registration.
type AuthResult struct {
	Token     string `json:"token"`
	User      *User  `json:"user"`
	IsNewUser bool   `json:"isNewUser"`
}

// Registration is the profile submitted by a new user after OTP login.
type Registration struct {
	Name  string `json:"name" validate:"required,min=2,max=80"`
	Email string `json:"email" validate:"required,email"`
}
