package store

import "time"

type Client struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Phone     string
	Address   string
	Postcode  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appliance is one inspected appliance on a gas safety record. Stored as
// part of the record's appliances JSON array.
type Appliance struct {
	Location    string `json:"location"`
	Type        string `json:"type"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	FlueType    string `json:"flueType"`
	SafeToUse   bool   `json:"safeToUse"`
	DefectsNote string `json:"defectsNote,omitempty"`
}

type GasSafetyRecord struct {
	ID                string
	UserID            string
	ClientID          string
	CertificateNumber string
	PropertyAddress   string
	InspectionDate    time.Time
	NextDueDate       time.Time
	Appliances        []Appliance
	Defects           string
	RemedialWork      string
	EngineerName      string
	GasSafeNumber     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChecklistItem is one line of a service checklist, stored as JSON.
type ChecklistItem struct {
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
	Note    string `json:"note,omitempty"`
}

type ServiceChecklist struct {
	ID              string
	UserID          string
	ClientID        string
	PropertyAddress string
	ServiceDate     time.Time
	NextDueDate     time.Time
	Items           []ChecklistItem
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InvoiceLine is one billable line on an invoice, stored as JSON.
type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

type Invoice struct {
	ID            string
	UserID        string
	ClientID      string
	InvoiceNumber string
	Status        string // draft, sent, paid, overdue
	IssueDate     time.Time
	DueDate       time.Time
	Lines         []InvoiceLine
	Subtotal      float64
	VAT           float64
	Total         float64
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FormDraft is the single saved in-progress form per (user, form type).
type FormDraft struct {
	UserID    string
	FormType  string
	FormData  map[string]any
	UpdatedAt time.Time
}
