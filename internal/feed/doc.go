// Package feed retrieves near-Earth-object records from the NASA NeoWs feed.
//
// The feed is requested one 7-day window at a time:
//
//	GET {endpoint}/feed?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD&api_key=KEY
//
// and answers with records grouped by close-approach date under the
// near_earth_objects object. The package validates the response envelope
// against an embedded JSON schema and extracts each record with gjson into a
// RawRecord. Records are returned as the feed describes them; deciding which
// records are usable is left to the caller.
//
// Failures are classified so callers can decide whether to retry:
//   - KindNetwork: transport failures, non-2xx responses and timeouts.
//     These are transient.
//   - KindParse: a body that is not JSON or does not match the expected
//     envelope. Retrying against the same feed is not expected to help.
package feed
