package models

// Clerk is an operator account. Kiosks are shared hardware, so clerks
// identify themselves with a name and a short PIN rather than email
// credentials.
type Clerk struct {
	// ID is the unique identifier for the clerk (UUID format).
	ID string

	// Name is the login name shown on receipts and in logs.
	Name string

	// PINHash is the bcrypt hash of the clerk's PIN. Never serialized.
	PINHash string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}
