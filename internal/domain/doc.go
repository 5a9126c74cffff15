// Package domain holds the geocoding capability shared by every provider,
// plugin, and consumer in this module.
//
// # Providers
//
// A [Provider] answers a [GeocodeQuery] with a [Collection] of candidate
// [Location] values, best first. Street-address providers (Mapbox, Google Maps,
// Nominatim) and IP providers (MaxMind web service, GeoIP2 databases) share the
// same contract; IP providers reject non-IP queries with
// [ErrUnsupportedOperation].
//
// An empty collection is not an error. Transport and API failures are returned
// as errors, wrapping one of the sentinels in this package where the failure
// has a well-known meaning:
//
//	ErrInvalidCredentials     API key rejected
//	ErrQuotaExceeded          rate or daily quota hit
//	ErrInvalidServerResponse  response body could not be interpreted
//
// # Coordinates
//
// A location may lack coordinates (MaxMind answers loopback addresses with a
// "localhost" location and nothing else). Consumers that need a position must
// check [Location.Coordinates] for nil.
package domain
