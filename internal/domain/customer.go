package domain

import "strconv"

// ============================================================
// Customer directory
// ============================================================

// Customer is a business partner record as returned by the directory.
// It is an immutable snapshot; identity is ID.
type Customer struct {
	ID   int    `json:"id" yaml:"id"`
	Code int    `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
	VAT  string `json:"vat" yaml:"vat"`
}

// String returns the display form used in choice prompts.
func (c Customer) String() string {
	return c.Name
}

// SearchType selects which directory filter a search term goes to.
type SearchType string

const (
	SearchByCode     SearchType = "code"
	SearchByVAT      SearchType = "vat"
	SearchByNamePart SearchType = "name"
)

// CustomerQuery carries exactly one populated filter, chosen by Type.
type CustomerQuery struct {
	Type     SearchType `json:"type"`
	Code     int        `json:"code,omitempty"`
	VAT      string     `json:"vat,omitempty"`
	NamePart string     `json:"name_part,omitempty"`
}

// Term returns the raw filter value regardless of type.
func (q CustomerQuery) Term() string {
	switch q.Type {
	case SearchByCode:
		return strconv.Itoa(q.Code)
	case SearchByVAT:
		return q.VAT
	case SearchByNamePart:
		return q.NamePart
	}
	return ""
}

// LookupResult is the outcome of one directory search.
// StatusCode follows HTTP semantics so 401/403 can drive a re-login.
type LookupResult struct {
	Success    bool       `json:"success"`
	StatusCode int        `json:"status_code"`
	Customers  []Customer `json:"customers"`
}

// IsAuthFailure reports whether the directory rejected the access token.
func (r *LookupResult) IsAuthFailure() bool {
	return r.StatusCode == 401 || r.StatusCode == 403
}
