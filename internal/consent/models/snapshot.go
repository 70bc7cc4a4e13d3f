package models

// OrganizationSnapshot is everything the consent side knows about one
// organization at a point in time. Slices are copies owned by the caller.
type OrganizationSnapshot struct {
	Grants   []*AccessGrant
	Consents []*Consent // allowed consents that list the organization
	Requests []*ConsentRequest
}

// GrantTotals counts a citizen's grants across their whole history.
type GrantTotals struct {
	Active int
	Total  int
}
