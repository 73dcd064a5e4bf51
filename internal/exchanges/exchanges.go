package exchanges

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
)

// FieldKind names the identity value that goes into a form field.
type FieldKind string

const (
	FieldLogin           FieldKind = "login"
	FieldEmail           FieldKind = "email"
	FieldPassword        FieldKind = "password"
	FieldPasswordConfirm FieldKind = "password_confirm"
	FieldDisplayName     FieldKind = "display_name"
)

// Field is a form input located by the first matching selector.
type Field struct {
	Kind      FieldKind
	Selectors []string
	Required  bool
}

// Form describes a marketplace sign-up page.
type Form struct {
	URL    string
	Fields []Field
	// Checkboxes locate an optional agreement box, clicked when present.
	Checkboxes []string
	Submit     []string
	// Captcha selectors match the widget element carrying data-sitekey.
	Captcha []string
	// Success selectors match any element shown only after a successful sign-up.
	Success []string
	// CaptchaOptional marks sites that accept a submission without a solved token.
	CaptchaOptional bool
}

// Marketplace is the per-exchange capability used by the scheduler and the registrar.
type Marketplace interface {
	ID() models.Marketplace
	DisplayName() string
	RegistrationForm() Form
	// DiscoverTask returns the next available task or nil when none is offered this cycle.
	DiscoverTask(ctx context.Context, account *models.ExchangeAccount, cycle int) (*models.Task, error)
	// ExecuteTask performs the task; it returns ctx.Err() when cancelled.
	ExecuteTask(ctx context.Context, task *models.Task) error
}

// Catalog maps marketplace ids to implementations.
type Catalog map[models.Marketplace]Marketplace

// NewCatalog builds a catalog from marketplaces.
func NewCatalog(markets ...Marketplace) Catalog {
	c := make(Catalog, len(markets))
	for _, m := range markets {
		c[m.ID()] = m
	}
	return c
}

// Get returns the marketplace registered under id.
func (c Catalog) Get(id models.Marketplace) (Marketplace, error) {
	m, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownMarketplace, id)
	}
	return m, nil
}

// Parse normalises a user supplied name and checks it is in the catalog.
func (c Catalog) Parse(name string) (models.Marketplace, error) {
	id := models.Marketplace(strings.ToLower(strings.TrimSpace(name)))
	if _, err := c.Get(id); err != nil {
		return "", err
	}
	return id, nil
}

// IDs returns the sorted marketplace ids.
func (c Catalog) IDs() []models.Marketplace {
	ids := make([]models.Marketplace, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	return models.SortMarketplaces(ids)
}
