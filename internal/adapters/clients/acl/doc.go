// Package acl is the anti-corruption layer between the board and the remote
// quote service.
//
// The remote service speaks its own dialect: numeric record ids, a "title"
// field holding the quote text, and ad-hoc error bodies. Nothing from that
// dialect crosses into the domain. Adapters here:
//
//   - decode wire DTOs (unexported) and translate them to [domain.RemoteRecord]
//   - map transport failures and HTTP statuses to domain errors via [MapHTTPError]
//   - report their health through [ports.HealthChecker]
//
// Error mapping:
//
//	404                     -> domain.ErrNotFound
//	400, 422                -> domain.ErrValidation
//	any other non-2xx       -> domain.ErrUnavailable
//	circuit open, retries   -> domain.ErrUnavailable
//	undecodable body        -> domain.ErrParse
//
// [QuoteSource] implements [ports.RemoteQuoteSource] on top of [BaseAdapter].
package acl
