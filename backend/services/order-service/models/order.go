package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fallback display values, used so rendered output never shows an empty field.
const (
	DefaultPlan      = "Découverte"
	DefaultChildName = "Enfant"
	Unspecified      = "Non spécifié"
	NoCharacters     = "Aucun personnage supplémentaire"
)

// MaxIndexedCharacters bounds the character{i}Name / character{i}Role scan.
const MaxIndexedCharacters = 10

// Character is an extra person named in the song.
type Character struct {
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
}

// String renders "Lou (cousin)", or just the name when no relation is set.
func (c Character) String() string {
	if c.Relation == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Relation)
}

// Order is the canonical, normalized order record shared by the three handlers.
type Order struct {
	Nom           string      `json:"nom"`
	Email         string      `json:"email"`
	Plan          string      `json:"plan"`
	PrenomEnfants string      `json:"prenomEnfants"`
	Ages          string      `json:"ages,omitempty"`
	Langue        string      `json:"langue,omitempty"`
	Theme         string      `json:"theme,omitempty"`
	Style         string      `json:"style,omitempty"`
	Anecdotes     string      `json:"anecdotes,omitempty"`
	Message       string      `json:"message,omitempty"`
	Instrumental  bool        `json:"instrumental,omitempty"`
	SecondLangue  bool        `json:"secondLangue,omitempty"`
	AcceptCGV     bool        `json:"accept_cgv"`
	Total         string      `json:"total,omitempty"`
	Characters    []Character `json:"characters,omitempty"`
}

// Submission is an untrusted order form as posted by the storefront.
type Submission map[string]any

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText collapses tabs, newlines and whitespace runs to a single
// space and trims the ends. NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(s string) string {
	s = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// String returns the normalized text value of key; absent or null keys give "".
func (s Submission) String(key string) string {
	switch v := s[key].(type) {
	case nil:
		return ""
	case string:
		return NormalizeText(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return NormalizeText(fmt.Sprint(v))
	}
}

// Bool reports whether key holds a truthy value (true, "true", "on", "oui", "1", non-zero number).
func (s Submission) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "oui", "yes", "1":
			return true
		}
	}
	return false
}

// Characters scans character1..character10 Name/Role keys in index order,
// then appends entries from a "characters" array of {name, relation}.
func (s Submission) Characters() []Character {
	var out []Character
	for i := 1; i <= MaxIndexedCharacters; i++ {
		name := s.String(fmt.Sprintf("character%dName", i))
		if name == "" {
			continue
		}
		out = append(out, Character{Name: name, Relation: s.String(fmt.Sprintf("character%dRole", i))})
	}

	list, _ := s["characters"].([]any)
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sub := Submission(entry)
		name := sub.String("name")
		if name == "" {
			continue
		}
		relation := sub.String("relation")
		if relation == "" {
			relation = sub.String("role")
		}
		out = append(out, Character{Name: name, Relation: relation})
	}
	return out
}

// Order builds the normalized order. Plan and child name fall back to
// DefaultPlan and DefaultChildName.
func (s Submission) Order() Order {
	o := Order{
		Nom:           s.String("nom"),
		Email:         s.String("email"),
		Plan:          s.String("plan"),
		PrenomEnfants: s.String("prenomEnfants"),
		Ages:          s.String("ages"),
		Langue:        s.String("langue"),
		Theme:         s.String("theme"),
		Style:         s.String("style"),
		Anecdotes:     s.String("anecdotes"),
		Message:       s.String("message"),
		Instrumental:  s.Bool("instrumental"),
		SecondLangue:  s.Bool("secondLangue"),
		AcceptCGV:     s.Bool("accept_cgv"),
		Total:         s.String("total"),
		Characters:    s.Characters(),
	}
	if o.Ages == "" {
		o.Ages = s.String("age")
	}
	return o.WithDefaults()
}

// WithDefaults fills the plan and child name when they are empty.
func (o Order) WithDefaults() Order {
	if o.Plan == "" {
		o.Plan = DefaultPlan
	}
	if o.PrenomEnfants == "" {
		o.PrenomEnfants = DefaultChildName
	}
	return o
}

// Normalize reapplies NormalizeText to every free-text field. Used on
// records decoded from storage, whose producer may not have normalized them.
func (o Order) Normalize() Order {
	for _, f := range []*string{
		&o.Nom, &o.Email, &o.Plan, &o.PrenomEnfants, &o.Ages, &o.Langue,
		&o.Theme, &o.Style, &o.Anecdotes, &o.Message, &o.Total,
	} {
		*f = NormalizeText(*f)
	}
	chars := make([]Character, 0, len(o.Characters))
	for _, c := range o.Characters {
		c.Name, c.Relation = NormalizeText(c.Name), NormalizeText(c.Relation)
		if c.Name != "" {
			chars = append(chars, c)
		}
	}
	o.Characters = chars
	if len(o.Characters) == 0 {
		o.Characters = nil
	}
	return o.WithDefaults()
}

// CharacterList renders characters as "- X" bullet lines, or the NoCharacters sentinel.
func (o Order) CharacterList() string {
	if len(o.Characters) == 0 {
		return NoCharacters
	}
	lines := make([]string, len(o.Characters))
	for i, c := range o.Characters {
		lines[i] = "- " + c.String()
	}
	return strings.Join(lines, "\n")
}

// CharacterNames joins characters with ", " for single-cell output.
func (o Order) CharacterNames() string {
	parts := make([]string, len(o.Characters))
	for i, c := range o.Characters {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// OrDefault returns v, or Unspecified when v is empty.
func OrDefault(v string) string {
	if v == "" {
		return Unspecified
	}
	return v
}

// YesNo renders a boolean the way the ledger and the mails show it.
func YesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

// PaymentDetails is the payment confirmation posted alongside a save-order request.
type PaymentDetails struct {
	ID      string `json:"id"`
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
}

// Reference returns the payment id, the order id, or "N/A".
func (p PaymentDetails) Reference() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.OrderID != "":
		return p.OrderID
	default:
		return "N/A"
	}
}

// StatusOrDefault returns the payment status, or "COMPLETED" when none was given.
func (p PaymentDetails) StatusOrDefault() string {
	if p.Status == "" {
		return "COMPLETED"
	}
	return p.Status
}
