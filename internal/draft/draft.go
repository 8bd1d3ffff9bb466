// Package draft persists a single in-progress form per (user, form type)
// so long multi-section forms survive navigation and crashes.
package draft

import (
	"context"
	"fmt"
	"strings"

	"flamecert/api/internal/remote"
)

type FormType string

const (
	FormGasSafety        FormType = "gas_safety"
	FormInvoice          FormType = "invoice"
	FormServiceChecklist FormType = "service_checklist"
)

func ValidFormType(ft FormType) bool {
	switch ft {
	case FormGasSafety, FormInvoice, FormServiceChecklist:
		return true
	}
	return false
}

// Backend is the durable slot storage. UpsertDraft must be last-write-wins
// on the (user, form type) pair; GetDraft returns nil (not an error) when
// no draft exists.
type Backend interface {
	UpsertDraft(ctx context.Context, userID, formType string, formData map[string]any) error
	GetDraft(ctx context.Context, userID, formType string) (map[string]any, error)
	DeleteDraft(ctx context.Context, userID, formType string) error
}

// Store binds a backend to one user's drafts.
type Store struct {
	backend Backend
	userID  string
}

func New(backend Backend, userID string) *Store {
	return &Store{backend: backend, userID: userID}
}

// Save upserts the draft slot for formType. A form the user never touched
// is not worth a row: when no top-level field holds meaningful data the
// save is skipped entirely, with zero backend calls.
func (s *Store) Save(ctx context.Context, formType FormType, formData map[string]any) error {
	if !ValidFormType(formType) {
		return fmt.Errorf("unknown form type %q", formType)
	}
	if !Meaningful(formData) {
		return nil
	}
	return remote.Do(ctx, "save draft", func(ctx context.Context) error {
		return s.backend.UpsertDraft(ctx, s.userID, string(formType), formData)
	})
}

// Load returns the stored draft, or nil when none exists.
func (s *Store) Load(ctx context.Context, formType FormType) (map[string]any, error) {
	if !ValidFormType(formType) {
		return nil, fmt.Errorf("unknown form type %q", formType)
	}
	var formData map[string]any
	err := remote.Do(ctx, "load draft", func(ctx context.Context) error {
		var err error
		formData, err = s.backend.GetDraft(ctx, s.userID, string(formType))
		return err
	})
	if err != nil {
		return nil, err
	}
	return formData, nil
}

// Delete removes the draft slot; used after submission or explicit discard.
func (s *Store) Delete(ctx context.Context, formType FormType) error {
	if !ValidFormType(formType) {
		return fmt.Errorf("unknown form type %q", formType)
	}
	return remote.Do(ctx, "delete draft", func(ctx context.Context) error {
		return s.backend.DeleteDraft(ctx, s.userID, string(formType))
	})
}

// Has reports whether a draft exists. Loads eagerly; the payload is
// discarded.
func (s *Store) Has(ctx context.Context, formType FormType) (bool, error) {
	formData, err := s.Load(ctx, formType)
	if err != nil {
		return false, err
	}
	return formData != nil, nil
}

// Meaningful reports whether formData contains anything a user actually
// entered. Strings count after trimming, numbers when nonzero, bools when
// true, slices when some element has a non-empty field of its own, and
// maps when some value is non-empty.
func Meaningful(formData map[string]any) bool {
	for _, value := range formData {
		if meaningfulValue(value) {
			return true
		}
	}
	return false
}

func meaningfulValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		for _, elem := range v {
			if meaningfulValue(elem) {
				return true
			}
		}
		return false
	case map[string]any:
		return Meaningful(v)
	default:
		return false
	}
}
