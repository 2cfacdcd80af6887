package parser

import (
	"errors"
	"testing"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{name: "plain integer", input: "55", expected: 55},
		{name: "plain decimal", input: "80.50", expected: 80.50},
		{name: "range midpoint", input: "50-70", expected: 60},
		{name: "decimal range midpoint", input: "60.5-90.5", expected: 75.5},
		{name: "range with spaces", input: "50 - 70", expected: 60},
		{name: "surrounding whitespace", input: " 3500 ", expected: 3500},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "open range", input: "50-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Number(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Number(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.expected {
				t.Fatalf("Number(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected TitleInfo
		wantErr  bool
	}{
		{
			name:     "full title",
			input:    "整租·珠江新城 三室两厅 南向",
			expected: TitleInfo{RentType: "整租", Community: "珠江新城", Condition: "三室两厅 南向"},
		},
		{
			name:     "shared rental",
			input:    "合租·富力天朗明居 四居室 东卧",
			expected: TitleInfo{RentType: "合租", Community: "富力天朗明居", Condition: "四居室 东卧"},
		},
		{
			name:     "punctuation stripped before matching",
			input:    "整租·金碧花园（三期） 两室一厅",
			expected: TitleInfo{RentType: "整租", Community: "金碧花园三期", Condition: "两室一厅"},
		},
		{name: "no separator", input: "精选特价好房", wantErr: true},
		{name: "no condition", input: "整租·珠江新城", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Title(tt.input)
			if tt.wantErr {
				var invalid InvalidError
				if !errors.As(err, &invalid) || invalid.Reason != ReasonBadTitle {
					t.Fatalf("Title(%q) error = %v, want InvalidError(%s)", tt.input, err, ReasonBadTitle)
				}
				return
			}
			if err != nil {
				t.Fatalf("Title(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Fatalf("Title(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalListing(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		expected bool
	}{
		{name: "canonical path", link: "https://gz.lianjia.com/zufang/GZ123.html", expected: true},
		{name: "third party path", link: "https://gz.lianjia.com/apartment/123.html", expected: false},
		{name: "prefix inside path only", link: "https://gz.lianjia.com/other/zufang/1.html", expected: false},
		{name: "unparsable link", link: "://bad", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalListing(tt.link, "/zufang/"); got != tt.expected {
				t.Fatalf("CanonicalListing(%q) = %v, want %v", tt.link, got, tt.expected)
			}
		})
	}
}
