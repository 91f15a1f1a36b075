package bins

import "errors"

var (
	// ErrSessionInit means the landing page did not carry the expected session fields.
	ErrSessionInit = errors.New("error initialising bin checker session")
	// ErrLookup means the address lookup failed or returned an unreadable payload.
	ErrLookup = errors.New("error looking up addresses")
	// ErrSubmission means the schedule form submission was rejected.
	ErrSubmission = errors.New("error submitting address")
	// ErrNoAddressFound means the postcode returned no address candidates.
	ErrNoAddressFound = errors.New("no address found")
	// ErrScheduleParse means the schedule table could not be located at all.
	ErrScheduleParse = errors.New("error parsing schedule")
	// ErrUnknownSource means no fetcher is registered under the requested source.
	ErrUnknownSource = errors.New("unknown data source")
)
