package domain

// Address is a delivery address owned by the user service. At most one
// address per user is the default.
type Address struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName" validate:"required,min=2,max=80"`
	Phone     string `json:"phone" validate:"required,numeric,len=10"`
	Street    string `json:"street" validate:"required,min=5"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Pincode   string `json:"pincode" validate:"required,numeric,len=6"`
	IsDefault bool   `json:"isDefault"`
}

// SetDefault marks id as the single default address in the list.
func SetDefault(addresses []Address, id string) []Address {
	out := make([]Address, len(addresses))
	for i, a := range addresses {
		a.IsDefault = a.ID == id
		out[i] = a
	}
	return out
}

// DefaultAddress returns the default address, if any.
func DefaultAddress(addresses []Address) (Address, bool) {
	for _, a := range addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return Address{}, false
}
