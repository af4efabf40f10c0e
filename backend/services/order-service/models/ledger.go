package models

import (
	"time"
	_ "time/tzdata"
)

// LedgerWidth is the number of columns of the Commandes sheet (A:P).
const LedgerWidth = 16

// LedgerRow is one append-only row of the order ledger. Column order matches
// the sheet header: date, nom, email, plan, total, langue, prenomEnfants, ages,
// theme, style, personnages, anecdotes, instrumental, secondLangue, paiement, statut.
type LedgerRow [LedgerWidth]string

// Values converts the row to the cell slice expected by the Sheets API.
func (r LedgerRow) Values() []interface{} {
	out := make([]interface{}, LedgerWidth)
	for i, v := range r {
		out[i] = v
	}
	return out
}

// NewLedgerRow maps an order and its payment confirmation to a ledger row.
// The total column shows the server-resolved price.
func NewLedgerRow(o Order, p PaymentDetails, quote PriceQuote, at time.Time) LedgerRow {
	return LedgerRow{
		FormatFrenchDate(at),
		o.Nom,
		o.Email,
		o.Plan,
		quote.Display() + "€",
		o.Langue,
		o.PrenomEnfants,
		o.Ages,
		o.Theme,
		o.Style,
		o.CharacterNames(),
		o.Anecdotes,
		YesNo(o.Instrumental),
		YesNo(o.SecondLangue),
		p.Reference(),
		p.StatusOrDefault(),
	}
}

var paris = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatFrenchDate renders t in Paris time as "dd/mm/yyyy hh:mm:ss".
func FormatFrenchDate(t time.Time) string {
	return t.In(paris).Format("02/01/2006 15:04:05")
}
