package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultClient      ResultType = "client"
	ResultCertificate ResultType = "certificate"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	ClientID string     `json:"clientId,omitempty"`
}

// Query describes a search request. UserID is mandatory; every engineer
// only ever searches their own book of work.
type Query struct {
	Text       string
	UserID     string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ClientRecord is the data we index for a client.
type ClientRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
}

// CertificateRecord is the data we index for a gas safety record.
type CertificateRecord struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	ClientID          string `json:"clientId"`
	CertificateNumber string `json:"certificateNumber"`
	PropertyAddress   string `json:"propertyAddress"`
	Defects           string `json:"defects"`
}
