package gateshead_test

import (
	"testing"

	"github.com/adiazny/bin-calendar/internal/pkg/gateshead"
)

func TestCanonicalBinType(t *testing.T) {
	tests := []struct {
		raw        string
		wantType   string
		wantColour string
	}{
		{"Recycling - Paper and cardboard only", "Recycling - Paper and cardboard", "light blue with red top"},
		{"Recycling - Paper and cardboard ONLY", "Recycling - Paper and cardboard", "light blue with red top"},
		{"Household", "Household Waste", "green"},
		{"Household only", "Household Waste", "green"},
		{"  Garden \n", "Garden Waste", "garden"},
		{"Household Waste", "Household Waste", "green"},
		{"Recycling -  Glass, plastic and cans", "Recycling - Glass, plastic and cans", "dark blue"},
		{"Christmas tree", "Christmas tree", gateshead.UnknownColour},
		{"only", "only", gateshead.UnknownColour},
		{"Garden \x80\x80 only", "Garden \uFFFD", gateshead.UnknownColour},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.raw, func(t *testing.T) {
			// canonicalization must be stable across calls
			for i := 0; i < 3; i++ {
				got := gateshead.CanonicalBinType(tt.raw)
				if got != tt.wantType {
					t.Fatalf("CanonicalBinType(%q) = %q, want %q", tt.raw, got, tt.wantType)
				}
				if colour := gateshead.BinColour(got); colour != tt.wantColour {
					t.Fatalf("BinColour(%q) = %q, want %q", got, colour, tt.wantColour)
				}
			}
		})
	}
}
