package domain

// Customer is the purchasing profile bound one-to-one to an account of the
// identity service.
type Customer struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}
