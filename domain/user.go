package domain

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePharmacist
}

type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	FullName     string `db:"fullname" json:"fullname"`
	Email        string `db:"email" json:"email"`
	Phone        string `db:"phone" json:"phone"`
	Role         Role   `db:"role" json:"role"`
	Active       bool   `db:"active" json:"active"`
	CreatedAt    string `db:"created_at" json:"created_at,omitempty"`
}
