package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"   ":                   "",
		"\t\n\r":                "",
		"Lou":                   "Lou",
		"  Lou  ":               "Lou",
		"Lou\tet\nMax":          "Lou et Max",
		"a  \r\n  b":            "a b",
		"il était  une   fois ": "il était une fois",
	}
	for in, want := range cases {
		got := NormalizeText(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, NormalizeText(got), "not idempotent for %q", in)
	}
}

func TestSubmission_CharactersFromIndexedKeys(t *testing.T) {
	s := Submission{"character2Name": "Lou", "character2Role": "cousin"}
	assert.Equal(t, []Character{{Name: "Lou", Relation: "cousin"}}, s.Characters())

	o := s.Order()
	assert.Equal(t, "- Lou (cousin)", o.CharacterList())
}

func TestSubmission_NoCharacters(t *testing.T) {
	o := Submission{}.Order()
	assert.Empty(t, o.Characters)
	assert.Equal(t, NoCharacters, o.CharacterList())
	assert.Equal(t, "", o.CharacterNames())
}

func TestSubmission_CharactersMixedSources(t *testing.T) {
	s := Submission{
		"character1Name":  " Max ",
		"character3Name":  "Zoé",
		"character3Role":  "sœur",
		"character11Name": "ignored",
		"characters": []any{
			map[string]any{"name": "Papi", "relation": "grand-père"},
			map[string]any{"name": ""},
			"junk",
		},
	}
	assert.Equal(t, []Character{
		{Name: "Max"},
		{Name: "Zoé", Relation: "sœur"},
		{Name: "Papi", Relation: "grand-père"},
	}, s.Characters())
	assert.Equal(t, "Max, Zoé (sœur), Papi (grand-père)", s.Order().CharacterNames())
}

func TestSubmission_OrderDefaultsAndTypes(t *testing.T) {
	o := Submission{
		"nom":          "Jeanne\tDupont",
		"email":        " a@b.com ",
		"instrumental": "on",
		"secondLangue": false,
		"accept_cgv":   true,
		"ages":         float64(4),
		"anecdotes":    nil,
	}.Order()

	assert.Equal(t, "Jeanne Dupont", o.Nom)
	assert.Equal(t, "a@b.com", o.Email)
	assert.Equal(t, DefaultPlan, o.Plan)
	assert.Equal(t, DefaultChildName, o.PrenomEnfants)
	assert.Equal(t, "4", o.Ages)
	assert.Equal(t, "", o.Anecdotes)
	assert.True(t, o.Instrumental)
	assert.False(t, o.SecondLangue)
	assert.True(t, o.AcceptCGV)
}

func TestOrder_NormalizeIsIdempotent(t *testing.T) {
	o := Order{
		Nom:        " Jeanne  ",
		Anecdotes:  "aime\nles\tchats",
		Characters: []Character{{Name: " Lou ", Relation: "cousin\n"}, {Name: "  "}},
	}
	once := o.Normalize()
	assert.Equal(t, once, once.Normalize())
	assert.Equal(t, "aime les chats", once.Anecdotes)
	assert.Equal(t, []Character{{Name: "Lou", Relation: "cousin"}}, once.Characters)
	assert.Equal(t, DefaultPlan, once.Plan)
}

func TestPaymentDetails(t *testing.T) {
	assert.Equal(t, "N/A", PaymentDetails{}.Reference())
	assert.Equal(t, "ORD-1", PaymentDetails{OrderID: "ORD-1"}.Reference())
	assert.Equal(t, "pi_1", PaymentDetails{ID: "pi_1", OrderID: "ORD-1"}.Reference())
	assert.Equal(t, "COMPLETED", PaymentDetails{}.StatusOrDefault())
	assert.Equal(t, "PENDING", PaymentDetails{Status: "PENDING"}.StatusOrDefault())
}
