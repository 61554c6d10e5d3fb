package service

import (
	"testing"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

func TestClassifySearch(t *testing.T) {
	tests := []struct {
		input string
		want  domain.SearchType
	}{
		{"CZ12345678", domain.SearchByVAT},
		{"CZ", domain.SearchByVAT},
		{"cz12345678", domain.SearchByNamePart},
		{"1", domain.SearchByCode},
		{"123456", domain.SearchByCode},
		{"-5", domain.SearchByCode},
		{"2147483647", domain.SearchByCode},
		{"2147483648", domain.SearchByNamePart},
		{"12a", domain.SearchByNamePart},
		{"Test customer", domain.SearchByNamePart},
		{"", domain.SearchByNamePart},
	}

	for _, tt := range tests {
		if got := ClassifySearch(tt.input); got != tt.want {
			t.Errorf("ClassifySearch(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("42")
	if q.Type != domain.SearchByCode || q.Code != 42 || q.Term() != "42" {
		t.Errorf("unexpected code query %+v", q)
	}

	q = BuildQuery("CZ999")
	if q.Type != domain.SearchByVAT || q.VAT != "CZ999" {
		t.Errorf("unexpected vat query %+v", q)
	}

	q = BuildQuery("Dvořák")
	if q.Type != domain.SearchByNamePart || q.NamePart != "Dvořák" || q.Term() != "Dvořák" {
		t.Errorf("unexpected name query %+v", q)
	}
}
