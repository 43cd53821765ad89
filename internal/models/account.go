package models

// Account is an admin login. The password hash never leaves the server.
type Account struct {
	Base         `bson:",inline"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"password" json:"-"`
}
