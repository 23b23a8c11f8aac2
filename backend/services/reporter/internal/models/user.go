package models

// User is a configured person sessions are attributed to.
type User struct {
	ID       string `yaml:"-" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Email    string `yaml:"email" json:"email"`
	Badge    string `yaml:"badge" json:"badge"`
	Street   string `yaml:"street" json:"street"`
	Postcode string `yaml:"postcode" json:"postcode"`
	City     string `yaml:"city" json:"city"`
}

// Variables returns the values usable as filename placeholders.
func (u User) Variables() map[string]string {
	return map[string]string{
		"id":       u.ID,
		"name":     u.Name,
		"email":    u.Email,
		"badge":    u.Badge,
		"street":   u.Street,
		"postcode": u.Postcode,
		"city":     u.City,
	}
}

// Fields exposes the user to templates.
func (u User) Fields() map[string]any {
	out := make(map[string]any, 7)
	for k, v := range u.Variables() {
		out[k] = v
	}
	return out
}
