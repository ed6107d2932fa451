package entity

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	CustomerID string `json:"customerId"`
}

// Label returns the name shown in history entries, falling back to the email
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
