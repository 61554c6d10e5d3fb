package service

import (
	"strconv"
	"strings"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

// vatPrefix marks a Czech VAT id (DIČ).
const vatPrefix = "CZ"

// ClassifySearch decides which directory filter a search term belongs to.
//
// Priority: "CZ" prefix → VAT, whole input is a base-10 int32 → code,
// anything else (including empty input) → name fragment.
func ClassifySearch(input string) domain.SearchType {
	if strings.HasPrefix(input, vatPrefix) {
		return domain.SearchByVAT
	}
	if _, err := strconv.ParseInt(input, 10, 32); err == nil {
		return domain.SearchByCode
	}
	return domain.SearchByNamePart
}

// BuildQuery classifies input and fills the matching filter.
func BuildQuery(input string) domain.CustomerQuery {
	t := ClassifySearch(input)
	q := domain.CustomerQuery{Type: t}
	switch t {
	case domain.SearchByVAT:
		q.VAT = input
	case domain.SearchByCode:
		code, _ := strconv.ParseInt(input, 10, 32)
		q.Code = int(code)
	default:
		q.NamePart = input
	}
	return q
}
