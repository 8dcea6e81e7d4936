package entities

type Address struct {
	Street   string `json:"street"`
	PostCode string `json:"postCode"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

type Phone struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

type Email struct {
	Address string `json:"address"`
	Type    string `json:"type"`
}

// Institute is the hospital or lab a person belongs to
type Institute struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
	Phone   *Phone   `json:"phone,omitempty"`
	Email   *Email   `json:"email,omitempty"`
}

// Person is a mandator or a patient. Contact fields are optional.
type Person struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Address   *Address   `json:"address,omitempty"`
	Phone     *Phone     `json:"phone,omitempty"`
	Email     *Email     `json:"email,omitempty"`
	Institute *Institute `json:"institute,omitempty"`
}

// ClinicalData is a free key/value list kept in input order
type ClinicalData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AdminData struct {
	Mandator     *Person        `json:"mandator,omitempty"`
	Patient      *Person        `json:"patient,omitempty"`
	ClinicalData []ClinicalData `json:"clinicalData,omitempty"`
}
