package users

// User is a user account. The password hash never leaves the repository.
type User struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Title     string `json:"title"`
	Email     string `json:"email"`
}

// Registration is the payload of a sign-up.
type Registration struct {
	Firstname string `json:"firstname" validate:"required,max=255"`
	Lastname  string `json:"lastname" validate:"required,max=255"`
	Title     string `json:"title" validate:"max=64"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Profile is the editable part of a user.
type Profile struct {
	Firstname string `json:"firstname" validate:"required,max=255"`
	Lastname  string `json:"lastname" validate:"required,max=255"`
	Title     string `json:"title" validate:"max=64"`
	Email     string `json:"email"`
}

// MaxList caps user listings.
const MaxList = 1024
