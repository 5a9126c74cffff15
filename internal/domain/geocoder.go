package domain

import (
	"context"
	"errors"
)

// DefaultLimit is the number of candidates requested when a query does not set one.
const DefaultLimit = 5

// Provider errors. Clients wrap these so callers can branch with errors.Is.
var (
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrQuotaExceeded         = errors.New("quota exceeded")
	ErrInvalidServerResponse = errors.New("invalid server response")
)

// Coordinates is a WGS-84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AdminLevel is one administrative subdivision (state, county, ...) of a location.
type AdminLevel struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Code  string `json:"code,omitempty"`
}

// Location is a single geocoding candidate.
type Location struct {
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	FormattedAddress string       `json:"formatted_address,omitempty"`
	StreetNumber     string       `json:"street_number,omitempty"`
	StreetName       string       `json:"street_name,omitempty"`
	SubLocality      string       `json:"sub_locality,omitempty"`
	Locality         string       `json:"locality,omitempty"`
	PostalCode       string       `json:"postal_code,omitempty"`
	AdminLevels      []AdminLevel `json:"admin_levels,omitempty"`
	Country          string       `json:"country,omitempty"`
	CountryCode      string       `json:"country_code,omitempty"`
	Timezone         string       `json:"timezone,omitempty"`
	ProvidedBy       string       `json:"provided_by"`
}

// Collection is the ordered list of candidates a provider returned for a query.
type Collection []Location

// IsEmpty reports whether the provider found nothing.
func (c Collection) IsEmpty() bool { return len(c) == 0 }

// First returns the best candidate.
func (c Collection) First() (Location, bool) {
	if len(c) == 0 {
		return Location{}, false
	}
	return c[0], true
}

// GeocodeQuery is a forward geocoding request.
type GeocodeQuery struct {
	Text   string
	Limit  int
	Locale string
}

// NewGeocodeQuery creates a query for text with the default limit.
func NewGeocodeQuery(text string) GeocodeQuery {
	return GeocodeQuery{Text: text, Limit: DefaultLimit}
}

// WithLimit returns a copy of q with the candidate limit replaced.
func (q GeocodeQuery) WithLimit(limit int) GeocodeQuery {
	q.Limit = limit
	return q
}

// WithLocale returns a copy of q with the locale replaced.
func (q GeocodeQuery) WithLocale(locale string) GeocodeQuery {
	q.Locale = locale
	return q
}

// Provider translates an address (or IP address, for IP-based providers)
// into zero or more candidate locations.
type Provider interface {
	// Name identifies the provider in logs, metrics, and results.
	Name() string

	// Geocode runs a forward geocoding query. An empty collection with a nil
	// error means the provider found nothing.
	Geocode(ctx context.Context, q GeocodeQuery) (Collection, error)
}
