package export

import (
	"context"
	"fmt"

	"flamecert/api/internal/store"
)

// DataStore defines the record access the exporter needs.
type DataStore interface {
	GetGasSafetyRecord(ctx context.Context, userID, recordID string) (store.GasSafetyRecord, error)
	GetClient(ctx context.Context, userID, clientID string) (store.Client, error)
}

// Service renders gas safety records as downloadable certificates.
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// ExportCertificate builds the certificate for one gas safety record and
// renders it to PDF.
func (s *Service) ExportCertificate(ctx context.Context, userID, recordID string) (*Result, error) {
	record, err := s.store.GetGasSafetyRecord(ctx, userID, recordID)
	if err != nil {
		return nil, fmt.Errorf("get gas safety record: %w", err)
	}

	client, err := s.store.GetClient(ctx, userID, record.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}

	data := CertificateData{
		CertificateNumber: record.CertificateNumber,
		ClientName:        client.Name,
		ClientAddress:     client.Address,
		PropertyAddress:   record.PropertyAddress,
		InspectionDate:    record.InspectionDate,
		NextDueDate:       record.NextDueDate,
		EngineerName:      record.EngineerName,
		GasSafeNumber:     record.GasSafeNumber,
		Defects:           record.Defects,
		RemedialWork:      record.RemedialWork,
	}
	for _, a := range record.Appliances {
		data.Appliances = append(data.Appliances, ApplianceRow{
			Location:    a.Location,
			Type:        a.Type,
			Make:        a.Make,
			Model:       a.Model,
			FlueType:    a.FlueType,
			SafeToUse:   a.SafeToUse,
			DefectsNote: a.DefectsNote,
		})
	}

	html, err := RenderCertificateHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := "Gas Safety Record " + record.CertificateNumber
	return exportPDF(html, title)
}
