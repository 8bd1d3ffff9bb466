package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"flamecert/api/internal/cache"
	"flamecert/api/internal/clock"
	"flamecert/api/internal/draft"
	"flamecert/api/internal/export"
	"flamecert/api/internal/media"
	"flamecert/api/internal/remote"
	"flamecert/api/internal/search"
	"flamecert/api/internal/status"
	"flamecert/api/internal/store"
	"flamecert/api/internal/util"
)

// vatRate is the UK standard rate applied to invoice subtotals.
const vatRate = 0.20

// dataStore defines the persistence operations the service depends on.
type dataStore interface {
	Ping(ctx context.Context) error

	ListClients(ctx context.Context, userID string) ([]store.Client, error)
	GetClient(ctx context.Context, userID, clientID string) (store.Client, error)
	InsertClient(ctx context.Context, item store.Client) (store.Client, error)
	UpdateClient(ctx context.Context, item store.Client) (store.Client, error)
	DeleteClient(ctx context.Context, userID, clientID string) error

	ListGasSafetyRecords(ctx context.Context, userID string) ([]store.GasSafetyRecord, error)
	GetGasSafetyRecord(ctx context.Context, userID, recordID string) (store.GasSafetyRecord, error)
	InsertGasSafetyRecord(ctx context.Context, item store.GasSafetyRecord) (store.GasSafetyRecord, error)
	UpdateGasSafetyRecord(ctx context.Context, item store.GasSafetyRecord) (store.GasSafetyRecord, error)
	DeleteGasSafetyRecord(ctx context.Context, userID, recordID string) error

	ListServiceChecklists(ctx context.Context, userID string) ([]store.ServiceChecklist, error)
	InsertServiceChecklist(ctx context.Context, item store.ServiceChecklist) (store.ServiceChecklist, error)
	UpdateServiceChecklist(ctx context.Context, item store.ServiceChecklist) (store.ServiceChecklist, error)
	DeleteServiceChecklist(ctx context.Context, userID, checklistID string) error

	ListInvoices(ctx context.Context, userID string) ([]store.Invoice, error)
	InsertInvoice(ctx context.Context, item store.Invoice) (store.Invoice, error)
	UpdateInvoice(ctx context.Context, item store.Invoice) (store.Invoice, error)
	DeleteInvoice(ctx context.Context, userID, invoiceID string) error
}

// Service wires the business operations together: Postgres behind
// read-through caches, the draft slots, search indexing, and exports.
type Service struct {
	store    dataStore
	drafts   draft.Backend
	search   *search.Service
	exporter *export.Service
	media    *media.Service
	clock    clock.Clock

	clientCache    *cache.Cache[[]store.Client]
	recordCache    *cache.Cache[[]store.GasSafetyRecord]
	checklistCache *cache.Cache[[]store.ServiceChecklist]
	invoiceCache   *cache.Cache[[]store.Invoice]
}

// ServiceOptions carries the optional collaborators. Nil fields disable
// the feature they back.
type ServiceOptions struct {
	Drafts       draft.Backend
	Search       *search.Service
	Exporter     *export.Service
	Media        *media.Service
	Clock        clock.Clock
	CacheTTL     time.Duration
	CacheMaxSize int
}

func NewService(st dataStore, opts ServiceOptions) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	cacheOpts := cache.Options{
		DefaultTTL: opts.CacheTTL,
		MaxSize:    opts.CacheMaxSize,
		Clock:      opts.Clock,
	}
	return &Service{
		store:          st,
		drafts:         opts.Drafts,
		search:         opts.Search,
		exporter:       opts.Exporter,
		media:          opts.Media,
		clock:          opts.Clock,
		clientCache:    cache.New[[]store.Client](cacheOpts),
		recordCache:    cache.New[[]store.GasSafetyRecord](cacheOpts),
		checklistCache: cache.New[[]store.ServiceChecklist](cacheOpts),
		invoiceCache:   cache.New[[]store.Invoice](cacheOpts),
	}
}

// Ping verifies the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CleanupCaches sweeps expired entries from every list cache. Wired to a
// periodic timer at startup.
func (s *Service) CleanupCaches() {
	s.clientCache.Cleanup()
	s.recordCache.Cleanup()
	s.checklistCache.Cleanup()
	s.invoiceCache.Cleanup()
}

// ---- Clients ----

// ClientInput is the write payload for a client.
type ClientInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
	Notes    string `json:"notes"`
}

// ClientPayload is the API shape of a client.
type ClientPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Postcode  string    `json:"postcode"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func clientPayload(c store.Client) ClientPayload {
	return ClientPayload{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Postcode:  c.Postcode,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Service) ListClients(ctx context.Context, userID string) ([]ClientPayload, error) {
	key := "clients:" + userID
	items, ok := s.clientCache.Get(key)
	if !ok {
		err := remote.Do(ctx, "list clients", func(ctx context.Context) error {
			var err error
			items, err = s.store.ListClients(ctx, userID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.clientCache.Set(key, items, 0)
	}

	payloads := make([]ClientPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, clientPayload(item))
	}
	return payloads, nil
}

func (s *Service) GetClient(ctx context.Context, userID, clientID string) (ClientPayload, error) {
	var item store.Client
	err := remote.Do(ctx, "get client", func(ctx context.Context) error {
		var err error
		item, err = s.store.GetClient(ctx, userID, clientID)
		return err
	})
	if err != nil {
		return ClientPayload{}, err
	}
	return clientPayload(item), nil
}

func (s *Service) CreateClient(ctx context.Context, userID string, input ClientInput) (ClientPayload, error) {
	if strings.TrimSpace(input.Name) == "" {
		return ClientPayload{}, validationError("name is required", nil)
	}

	item := store.Client{
		ID:       util.NewID("cl"),
		UserID:   userID,
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
		Address:  strings.TrimSpace(input.Address),
		Postcode: strings.TrimSpace(input.Postcode),
		Notes:    input.Notes,
	}
	err := remote.Do(ctx, "create client", func(ctx context.Context) error {
		var err error
		item, err = s.store.InsertClient(ctx, item)
		return err
	})
	if err != nil {
		return ClientPayload{}, err
	}

	s.clientCache.Delete("clients:" + userID)
	s.indexClient(item)
	return clientPayload(item), nil
}

func (s *Service) UpdateClient(ctx context.Context, userID, clientID string, input ClientInput) (ClientPayload, error) {
	if strings.TrimSpace(input.Name) == "" {
		return ClientPayload{}, validationError("name is required", nil)
	}

	item := store.Client{
		ID:       clientID,
		UserID:   userID,
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
		Address:  strings.TrimSpace(input.Address),
		Postcode: strings.TrimSpace(input.Postcode),
		Notes:    input.Notes,
	}
	err := remote.Do(ctx, "update client", func(ctx context.Context) error {
		var err error
		item, err = s.store.UpdateClient(ctx, item)
		return err
	})
	if err != nil {
		return ClientPayload{}, err
	}

	s.clientCache.Delete("clients:" + userID)
	s.indexClient(item)
	return clientPayload(item), nil
}

func (s *Service) DeleteClient(ctx context.Context, userID, clientID string) error {
	err := remote.Do(ctx, "delete client", func(ctx context.Context) error {
		return s.store.DeleteClient(ctx, userID, clientID)
	})
	if err != nil {
		return err
	}

	// Records cascade in the database, so both caches are stale now.
	s.clientCache.Delete("clients:" + userID)
	s.recordCache.Delete("records:" + userID)
	if s.search != nil {
		s.search.DeleteClient(clientID)
	}
	return nil
}

func (s *Service) indexClient(item store.Client) {
	if s.search == nil {
		return
	}
	s.search.IndexClient(search.ClientRecord{
		ID:       item.ID,
		UserID:   item.UserID,
		Name:     item.Name,
		Email:    item.Email,
		Address:  item.Address,
		Postcode: item.Postcode,
	})
}

// ---- Gas safety records ----

// RecordInput is the write payload for a gas safety record.
type RecordInput struct {
	ClientID          string            `json:"clientId"`
	CertificateNumber string            `json:"certificateNumber"`
	PropertyAddress   string            `json:"propertyAddress"`
	InspectionDate    time.Time         `json:"inspectionDate"`
	NextDueDate       time.Time         `json:"nextDueDate"`
	Appliances        []store.Appliance `json:"appliances"`
	Defects           string            `json:"defects"`
	RemedialWork      string            `json:"remedialWork"`
	EngineerName      string            `json:"engineerName"`
	GasSafeNumber     string            `json:"gasSafeNumber"`
}

// RecordPayload is the API shape of a gas safety record.
type RecordPayload struct {
	ID                string            `json:"id"`
	ClientID          string            `json:"clientId"`
	CertificateNumber string            `json:"certificateNumber"`
	PropertyAddress   string            `json:"propertyAddress"`
	InspectionDate    time.Time         `json:"inspectionDate"`
	NextDueDate       time.Time         `json:"nextDueDate"`
	DueStatus         status.DueStatus  `json:"dueStatus"`
	Appliances        []store.Appliance `json:"appliances"`
	Defects           string            `json:"defects"`
	RemedialWork      string            `json:"remedialWork"`
	EngineerName      string            `json:"engineerName"`
	GasSafeNumber     string            `json:"gasSafeNumber"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (s *Service) recordPayload(r store.GasSafetyRecord) RecordPayload {
	appliances := r.Appliances
	if appliances == nil {
		appliances = []store.Appliance{}
	}
	return RecordPayload{
		ID:                r.ID,
		ClientID:          r.ClientID,
		CertificateNumber: r.CertificateNumber,
		PropertyAddress:   r.PropertyAddress,
		InspectionDate:    r.InspectionDate,
		NextDueDate:       r.NextDueDate,
		DueStatus:         status.Classify(r.NextDueDate, s.clock.Now()),
		Appliances:        appliances,
		Defects:           r.Defects,
		RemedialWork:      r.RemedialWork,
		EngineerName:      r.EngineerName,
		GasSafeNumber:     r.GasSafeNumber,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (s *Service) listRecords(ctx context.Context, userID string) ([]store.GasSafetyRecord, error) {
	key := "records:" + userID
	items, ok := s.recordCache.Get(key)
	if ok {
		return items, nil
	}
	err := remote.Do(ctx, "list gas safety records", func(ctx context.Context) error {
		var err error
		items, err = s.store.ListGasSafetyRecords(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordCache.Set(key, items, 0)
	return items, nil
}

func (s *Service) ListGasSafetyRecords(ctx context.Context, userID string) ([]RecordPayload, error) {
	items, err := s.listRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	payloads := make([]RecordPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, s.recordPayload(item))
	}
	return payloads, nil
}

func (s *Service) GetGasSafetyRecord(ctx context.Context, userID, recordID string) (RecordPayload, error) {
	var item store.GasSafetyRecord
	err := remote.Do(ctx, "get gas safety record", func(ctx context.Context) error {
		var err error
		item, err = s.store.GetGasSafetyRecord(ctx, userID, recordID)
		return err
	})
	if err != nil {
		return RecordPayload{}, err
	}
	return s.recordPayload(item), nil
}

func (s *Service) validateRecordInput(input RecordInput) error {
	var problems []string
	if strings.TrimSpace(input.ClientID) == "" {
		problems = append(problems, "clientId is required")
	}
	if input.InspectionDate.IsZero() {
		problems = append(problems, "inspectionDate is required")
	}
	if len(problems) > 0 {
		return validationError(strings.Join(problems, "; "), problems)
	}
	return nil
}

func (s *Service) CreateGasSafetyRecord(ctx context.Context, userID string, input RecordInput) (RecordPayload, error) {
	if err := s.validateRecordInput(input); err != nil {
		return RecordPayload{}, err
	}

	nextDue := input.NextDueDate
	if nextDue.IsZero() {
		nextDue = status.NextDue(input.InspectionDate)
	}
	certNumber := strings.TrimSpace(input.CertificateNumber)
	if certNumber == "" {
		certNumber = fmt.Sprintf("CP12-%d-%s", s.clock.Now().Year(), strings.ToUpper(util.NewID("")[:6]))
	}

	item := store.GasSafetyRecord{
		ID:                util.NewID("gsr"),
		UserID:            userID,
		ClientID:          input.ClientID,
		CertificateNumber: certNumber,
		PropertyAddress:   strings.TrimSpace(input.PropertyAddress),
		InspectionDate:    input.InspectionDate,
		NextDueDate:       nextDue,
		Appliances:        input.Appliances,
		Defects:           input.Defects,
		RemedialWork:      input.RemedialWork,
		EngineerName:      strings.TrimSpace(input.EngineerName),
		GasSafeNumber:     strings.TrimSpace(input.GasSafeNumber),
	}
	err := remote.Do(ctx, "create gas safety record", func(ctx context.Context) error {
		var err error
		item, err = s.store.InsertGasSafetyRecord(ctx, item)
		return err
	})
	if err != nil {
		return RecordPayload{}, err
	}

	s.recordCache.Delete("records:" + userID)
	s.indexRecord(item)
	return s.recordPayload(item), nil
}

func (s *Service) UpdateGasSafetyRecord(ctx context.Context, userID, recordID string, input RecordInput) (RecordPayload, error) {
	if err := s.validateRecordInput(input); err != nil {
		return RecordPayload{}, err
	}

	nextDue := input.NextDueDate
	if nextDue.IsZero() {
		nextDue = status.NextDue(input.InspectionDate)
	}

	item := store.GasSafetyRecord{
		ID:                recordID,
		UserID:            userID,
		ClientID:          input.ClientID,
		CertificateNumber: strings.TrimSpace(input.CertificateNumber),
		PropertyAddress:   strings.TrimSpace(input.PropertyAddress),
		InspectionDate:    input.InspectionDate,
		NextDueDate:       nextDue,
		Appliances:        input.Appliances,
		Defects:           input.Defects,
		RemedialWork:      input.RemedialWork,
		EngineerName:      strings.TrimSpace(input.EngineerName),
		GasSafeNumber:     strings.TrimSpace(input.GasSafeNumber),
	}
	err := remote.Do(ctx, "update gas safety record", func(ctx context.Context) error {
		var err error
		item, err = s.store.UpdateGasSafetyRecord(ctx, item)
		return err
	})
	if err != nil {
		return RecordPayload{}, err
	}

	s.recordCache.Delete("records:" + userID)
	s.indexRecord(item)
	return s.recordPayload(item), nil
}

func (s *Service) DeleteGasSafetyRecord(ctx context.Context, userID, recordID string) error {
	err := remote.Do(ctx, "delete gas safety record", func(ctx context.Context) error {
		return s.store.DeleteGasSafetyRecord(ctx, userID, recordID)
	})
	if err != nil {
		return err
	}

	s.recordCache.Delete("records:" + userID)
	if s.search != nil {
		s.search.DeleteCertificate(recordID)
	}
	return nil
}

func (s *Service) indexRecord(item store.GasSafetyRecord) {
	if s.search == nil {
		return
	}
	s.search.IndexCertificate(search.CertificateRecord{
		ID:                item.ID,
		UserID:            item.UserID,
		ClientID:          item.ClientID,
		CertificateNumber: item.CertificateNumber,
		PropertyAddress:   item.PropertyAddress,
		Defects:           item.Defects,
	})
}

// ---- Service checklists ----

// ChecklistInput is the write payload for a service checklist.
type ChecklistInput struct {
	ClientID        string                `json:"clientId"`
	PropertyAddress string                `json:"propertyAddress"`
	ServiceDate     time.Time             `json:"serviceDate"`
	NextDueDate     time.Time             `json:"nextDueDate"`
	Items           []store.ChecklistItem `json:"items"`
	Notes           string                `json:"notes"`
}

// ChecklistPayload is the API shape of a service checklist.
type ChecklistPayload struct {
	ID              string                `json:"id"`
	ClientID        string                `json:"clientId"`
	PropertyAddress string                `json:"propertyAddress"`
	ServiceDate     time.Time             `json:"serviceDate"`
	NextDueDate     time.Time             `json:"nextDueDate"`
	DueStatus       status.DueStatus      `json:"dueStatus"`
	Items           []store.ChecklistItem `json:"items"`
	Notes           string                `json:"notes"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func (s *Service) checklistPayload(c store.ServiceChecklist) ChecklistPayload {
	items := c.Items
	if items == nil {
		items = []store.ChecklistItem{}
	}
	return ChecklistPayload{
		ID:              c.ID,
		ClientID:        c.ClientID,
		PropertyAddress: c.PropertyAddress,
		ServiceDate:     c.ServiceDate,
		NextDueDate:     c.NextDueDate,
		DueStatus:       status.Classify(c.NextDueDate, s.clock.Now()),
		Items:           items,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (s *Service) ListServiceChecklists(ctx context.Context, userID string) ([]ChecklistPayload, error) {
	key := "checklists:" + userID
	items, ok := s.checklistCache.Get(key)
	if !ok {
		err := remote.Do(ctx, "list service checklists", func(ctx context.Context) error {
			var err error
			items, err = s.store.ListServiceChecklists(ctx, userID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.checklistCache.Set(key, items, 0)
	}

	payloads := make([]ChecklistPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, s.checklistPayload(item))
	}
	return payloads, nil
}

func (s *Service) validateChecklistInput(input ChecklistInput) error {
	var problems []string
	if strings.TrimSpace(input.ClientID) == "" {
		problems = append(problems, "clientId is required")
	}
	if input.ServiceDate.IsZero() {
		problems = append(problems, "serviceDate is required")
	}
	if len(problems) > 0 {
		return validationError(strings.Join(problems, "; "), problems)
	}
	return nil
}

func (s *Service) CreateServiceChecklist(ctx context.Context, userID string, input ChecklistInput) (ChecklistPayload, error) {
	if err := s.validateChecklistInput(input); err != nil {
		return ChecklistPayload{}, err
	}

	nextDue := input.NextDueDate
	if nextDue.IsZero() {
		nextDue = status.NextDue(input.ServiceDate)
	}

	item := store.ServiceChecklist{
		ID:              util.NewID("chk"),
		UserID:          userID,
		ClientID:        input.ClientID,
		PropertyAddress: strings.TrimSpace(input.PropertyAddress),
		ServiceDate:     input.ServiceDate,
		NextDueDate:     nextDue,
		Items:           input.Items,
		Notes:           input.Notes,
	}
	err := remote.Do(ctx, "create service checklist", func(ctx context.Context) error {
		var err error
		item, err = s.store.InsertServiceChecklist(ctx, item)
		return err
	})
	if err != nil {
		return ChecklistPayload{}, err
	}

	s.checklistCache.Delete("checklists:" + userID)
	return s.checklistPayload(item), nil
}

func (s *Service) UpdateServiceChecklist(ctx context.Context, userID, checklistID string, input ChecklistInput) (ChecklistPayload, error) {
	if err := s.validateChecklistInput(input); err != nil {
		return ChecklistPayload{}, err
	}

	nextDue := input.NextDueDate
	if nextDue.IsZero() {
		nextDue = status.NextDue(input.ServiceDate)
	}

	item := store.ServiceChecklist{
		ID:              checklistID,
		UserID:          userID,
		ClientID:        input.ClientID,
		PropertyAddress: strings.TrimSpace(input.PropertyAddress),
		ServiceDate:     input.ServiceDate,
		NextDueDate:     nextDue,
		Items:           input.Items,
		Notes:           input.Notes,
	}
	err := remote.Do(ctx, "update service checklist", func(ctx context.Context) error {
		var err error
		item, err = s.store.UpdateServiceChecklist(ctx, item)
		return err
	})
	if err != nil {
		return ChecklistPayload{}, err
	}

	s.checklistCache.Delete("checklists:" + userID)
	return s.checklistPayload(item), nil
}

func (s *Service) DeleteServiceChecklist(ctx context.Context, userID, checklistID string) error {
	err := remote.Do(ctx, "delete service checklist", func(ctx context.Context) error {
		return s.store.DeleteServiceChecklist(ctx, userID, checklistID)
	})
	if err != nil {
		return err
	}
	s.checklistCache.Delete("checklists:" + userID)
	return nil
}

// ---- Invoices ----

// InvoiceInput is the write payload for an invoice. Totals are always
// recomputed server-side from the lines.
type InvoiceInput struct {
	ClientID      string              `json:"clientId"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Status        string              `json:"status"`
	IssueDate     time.Time           `json:"issueDate"`
	DueDate       time.Time           `json:"dueDate"`
	Lines         []store.InvoiceLine `json:"lines"`
	Notes         string              `json:"notes"`
}

// InvoicePayload is the API shape of an invoice.
type InvoicePayload struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"clientId"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Status        string              `json:"status"`
	IssueDate     time.Time           `json:"issueDate"`
	DueDate       time.Time           `json:"dueDate"`
	Lines         []store.InvoiceLine `json:"lines"`
	Subtotal      float64             `json:"subtotal"`
	VAT           float64             `json:"vat"`
	Total         float64             `json:"total"`
	Notes         string              `json:"notes"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func invoicePayload(i store.Invoice) InvoicePayload {
	lines := i.Lines
	if lines == nil {
		lines = []store.InvoiceLine{}
	}
	return InvoicePayload{
		ID:            i.ID,
		ClientID:      i.ClientID,
		InvoiceNumber: i.InvoiceNumber,
		Status:        i.Status,
		IssueDate:     i.IssueDate,
		DueDate:       i.DueDate,
		Lines:         lines,
		Subtotal:      i.Subtotal,
		VAT:           i.VAT,
		Total:         i.Total,
		Notes:         i.Notes,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func validInvoiceStatus(st string) bool {
	switch st {
	case "draft", "sent", "paid", "overdue":
		return true
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func invoiceTotals(lines []store.InvoiceLine) (subtotal, vat, total float64) {
	for _, line := range lines {
		subtotal += line.Quantity * line.UnitPrice
	}
	subtotal = round2(subtotal)
	vat = round2(subtotal * vatRate)
	total = round2(subtotal + vat)
	return subtotal, vat, total
}

func (s *Service) ListInvoices(ctx context.Context, userID string) ([]InvoicePayload, error) {
	key := "invoices:" + userID
	items, ok := s.invoiceCache.Get(key)
	if !ok {
		err := remote.Do(ctx, "list invoices", func(ctx context.Context) error {
			var err error
			items, err = s.store.ListInvoices(ctx, userID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.invoiceCache.Set(key, items, 0)
	}

	payloads := make([]InvoicePayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, invoicePayload(item))
	}
	return payloads, nil
}

func (s *Service) buildInvoice(userID, invoiceID string, input InvoiceInput) (store.Invoice, error) {
	if strings.TrimSpace(input.ClientID) == "" {
		return store.Invoice{}, validationError("clientId is required", nil)
	}
	st := input.Status
	if st == "" {
		st = "draft"
	}
	if !validInvoiceStatus(st) {
		return store.Invoice{}, validationError("status must be draft, sent, paid, or overdue", nil)
	}

	subtotal, vat, total := invoiceTotals(input.Lines)
	return store.Invoice{
		ID:            invoiceID,
		UserID:        userID,
		ClientID:      input.ClientID,
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		Status:        st,
		IssueDate:     input.IssueDate,
		DueDate:       input.DueDate,
		Lines:         input.Lines,
		Subtotal:      subtotal,
		VAT:           vat,
		Total:         total,
		Notes:         input.Notes,
	}, nil
}

func (s *Service) CreateInvoice(ctx context.Context, userID string, input InvoiceInput) (InvoicePayload, error) {
	item, err := s.buildInvoice(userID, util.NewID("inv"), input)
	if err != nil {
		return InvoicePayload{}, err
	}
	if item.InvoiceNumber == "" {
		item.InvoiceNumber = fmt.Sprintf("INV-%d-%s", s.clock.Now().Year(), strings.ToUpper(util.NewID("")[:6]))
	}
	if item.IssueDate.IsZero() {
		item.IssueDate = s.clock.Now()
	}
	if item.DueDate.IsZero() {
		item.DueDate = item.IssueDate.AddDate(0, 0, 30)
	}

	err = remote.Do(ctx, "create invoice", func(ctx context.Context) error {
		var err error
		item, err = s.store.InsertInvoice(ctx, item)
		return err
	})
	if err != nil {
		return InvoicePayload{}, err
	}

	s.invoiceCache.Delete("invoices:" + userID)
	return invoicePayload(item), nil
}

func (s *Service) UpdateInvoice(ctx context.Context, userID, invoiceID string, input InvoiceInput) (InvoicePayload, error) {
	item, err := s.buildInvoice(userID, invoiceID, input)
	if err != nil {
		return InvoicePayload{}, err
	}

	err = remote.Do(ctx, "update invoice", func(ctx context.Context) error {
		var err error
		item, err = s.store.UpdateInvoice(ctx, item)
		return err
	})
	if err != nil {
		return InvoicePayload{}, err
	}

	s.invoiceCache.Delete("invoices:" + userID)
	return invoicePayload(item), nil
}

func (s *Service) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	err := remote.Do(ctx, "delete invoice", func(ctx context.Context) error {
		return s.store.DeleteInvoice(ctx, userID, invoiceID)
	})
	if err != nil {
		return err
	}
	s.invoiceCache.Delete("invoices:" + userID)
	return nil
}

// ---- Drafts ----

func (s *Service) draftStore(userID string) (*draft.Store, error) {
	if s.drafts == nil {
		return nil, domainError(http.StatusServiceUnavailable, "DRAFTS_UNAVAILABLE", "Draft storage not configured", nil)
	}
	return draft.New(s.drafts, userID), nil
}

func (s *Service) SaveDraft(ctx context.Context, userID string, formType draft.FormType, formData map[string]any) error {
	ds, err := s.draftStore(userID)
	if err != nil {
		return err
	}
	if !draft.ValidFormType(formType) {
		return validationError("unknown form type", nil)
	}
	return ds.Save(ctx, formType, formData)
}

func (s *Service) LoadDraft(ctx context.Context, userID string, formType draft.FormType) (map[string]any, error) {
	ds, err := s.draftStore(userID)
	if err != nil {
		return nil, err
	}
	if !draft.ValidFormType(formType) {
		return nil, validationError("unknown form type", nil)
	}
	return ds.Load(ctx, formType)
}

func (s *Service) DeleteDraft(ctx context.Context, userID string, formType draft.FormType) error {
	ds, err := s.draftStore(userID)
	if err != nil {
		return err
	}
	if !draft.ValidFormType(formType) {
		return validationError("unknown form type", nil)
	}
	return ds.Delete(ctx, formType)
}

// ---- Search ----

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	return s.search.Search(q), nil
}

// ---- Export ----

func (s *Service) ExportCertificate(ctx context.Context, userID, recordID string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	return s.exporter.ExportCertificate(ctx, userID, recordID)
}

// ---- Photos ----

func (s *Service) mediaService() (*media.Service, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Photo storage not configured", nil)
	}
	return s.media, nil
}

func (s *Service) UploadPhoto(ctx context.Context, userID, recordID, filename, contentType string, body io.Reader, size int64) (media.Photo, error) {
	m, err := s.mediaService()
	if err != nil {
		return media.Photo{}, err
	}
	return m.UploadPhoto(ctx, userID, recordID, filename, contentType, body, size)
}

func (s *Service) ListPhotos(ctx context.Context, userID, recordID string) ([]media.Photo, error) {
	m, err := s.mediaService()
	if err != nil {
		return nil, err
	}
	return m.ListPhotos(ctx, userID, recordID)
}

func (s *Service) PhotoURL(ctx context.Context, userID, key string) (string, error) {
	m, err := s.mediaService()
	if err != nil {
		return "", err
	}
	return m.PresignedURL(ctx, userID, key)
}

func (s *Service) DeletePhoto(ctx context.Context, userID, key string) error {
	m, err := s.mediaService()
	if err != nil {
		return err
	}
	return m.DeletePhoto(ctx, userID, key)
}

// ---- Dashboard ----

// DueItem is one entry on the dashboard's renewals list.
type DueItem struct {
	RecordID        string           `json:"recordId"`
	ClientID        string           `json:"clientId"`
	PropertyAddress string           `json:"propertyAddress"`
	NextDueDate     time.Time        `json:"nextDueDate"`
	DueStatus       status.DueStatus `json:"dueStatus"`
}

// Dashboard summarizes the engineer's renewal pipeline.
type Dashboard struct {
	Overdue int       `json:"overdue"`
	DueSoon int       `json:"dueSoon"`
	Current int       `json:"current"`
	Items   []DueItem `json:"items"`
}

// GetDashboard classifies every gas safety record by its next due date.
// Only overdue and due-soon records make the items list.
func (s *Service) GetDashboard(ctx context.Context, userID string) (Dashboard, error) {
	records, err := s.listRecords(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.clock.Now()
	dash := Dashboard{Items: []DueItem{}}
	for _, r := range records {
		st := status.Classify(r.NextDueDate, now)
		switch st {
		case status.Overdue:
			dash.Overdue++
		case status.DueSoon:
			dash.DueSoon++
		default:
			dash.Current++
			continue
		}
		dash.Items = append(dash.Items, DueItem{
			RecordID:        r.ID,
			ClientID:        r.ClientID,
			PropertyAddress: r.PropertyAddress,
			NextDueDate:     r.NextDueDate,
			DueStatus:       st,
		})
	}
	return dash, nil
}
