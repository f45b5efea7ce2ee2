package domain

// User is a customer who may start returns.
type User struct {
	ID             string `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address,omitempty"`
	ReturnCount    int    `json:"return_count"`
	AccountAgeDays int    `json:"account_age_days"`
}
