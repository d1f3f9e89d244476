// Package catalog reshapes the backend's plan and service maps into ordered lists.
package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// DefaultServiceDescription is used for service identifiers without a known description.
const DefaultServiceDescription = "Professional tax service"

var serviceDescriptions = map[string]string{
	"individual_tax_return": "Complete individual tax return preparation and filing",
	"business_tax_return":   "Comprehensive business tax return preparation and filing",
	"tax_consultation":      "One-on-one consultation with a certified tax professional",
	"document_review":       "Professional review of your tax documents and forms",
}

// Catalog is the normalized plan and service offering.
type Catalog struct {
	Plans    []entity.PlanDescriptor
	Services []entity.ServiceDescriptor
}

func (c Catalog) Plan(id string) (entity.PlanDescriptor, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return entity.PlanDescriptor{}, false
}

func (c Catalog) Service(id string) (entity.ServiceDescriptor, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return entity.ServiceDescriptor{}, false
}

// NormalizePlans converts {id: {name, price, features}} into a list in source
// order with the key injected as ID.
func NormalizePlans(raw json.RawMessage) ([]entity.PlanDescriptor, error) {
	if err := validate(compiledPlans, raw); err != nil {
		return nil, fmt.Errorf("plans: %w", err)
	}
	fields, err := entity.DecodeOrderedObject(raw)
	if err != nil {
		return nil, fmt.Errorf("plans: %w", err)
	}

	out := make([]entity.PlanDescriptor, 0, len(fields))
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		var p entity.PlanDescriptor
		if err := json.Unmarshal(f.Value, &p); err != nil {
			return nil, fmt.Errorf("plans: %q: %w", f.Key, err)
		}
		p.ID = f.Key
		if p.Features == nil {
			p.Features = []string{}
		}
		if i, dup := seen[f.Key]; dup {
			out[i] = p
			continue
		}
		seen[f.Key] = len(out)
		out = append(out, p)
	}
	return out, nil
}

// NormalizeServices converts {id: price} into a list in source order with a
// humanized name and a description from the fixed table.
func NormalizeServices(raw json.RawMessage) ([]entity.ServiceDescriptor, error) {
	if err := validate(compiledServices, raw); err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	fields, err := entity.DecodeOrderedObject(raw)
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}

	out := make([]entity.ServiceDescriptor, 0, len(fields))
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		var price entity.Money
		if err := json.Unmarshal(f.Value, &price); err != nil {
			return nil, fmt.Errorf("services: %q: %w", f.Key, err)
		}
		s := entity.ServiceDescriptor{
			ID:          f.Key,
			Name:        HumanizeService(f.Key),
			Price:       price,
			Description: ServiceDescription(f.Key),
		}
		if i, dup := seen[f.Key]; dup {
			out[i] = s
			continue
		}
		seen[f.Key] = len(out)
		out = append(out, s)
	}
	return out, nil
}

var wordStart = regexp.MustCompile(`\b\w`)

// HumanizeService replaces the first underscore with a space and upper-cases
// each letter that starts a word. Later underscores are kept and do not start
// words, so individual_tax_return becomes "Individual Tax_return".
func HumanizeService(id string) string {
	return wordStart.ReplaceAllStringFunc(strings.Replace(id, "_", " ", 1), strings.ToUpper)
}

// ServiceDescription looks up the fixed description for a service identifier.
func ServiceDescription(id string) string {
	if d, ok := serviceDescriptions[id]; ok {
		return d
	}
	return DefaultServiceDescription
}
