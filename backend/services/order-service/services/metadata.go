package services

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/stripe/stripe-go/v80"
)

// Stripe rejects metadata values longer than 500 characters.
const MetadataValueLimit = 500

const (
	metaOrderData     = "orderData"
	metaMode          = "metadataMode"
	metaCustomerEmail = "customerEmail"
	metaCustomerName  = "customerName"
	metaChildName     = "childName"
	metaPlan          = "plan"
	metaCreatedAt     = "createdAt"
	metaPriceVersion  = "priceVersion"

	MetadataModeFull      = "full"
	MetadataModeEssential = "essential"

	productNamePrefix = "Chanson personnalisée LABBE kids - Formule "
	productDescPrefix = "Pour "
)

// PackMetadata attaches the serialized order when it fits in one metadata
// value, and the essential fields otherwise.
func PackMetadata(o models.Order, quote models.PriceQuote, createdAt time.Time) map[string]string {
	meta := map[string]string{metaPriceVersion: quote.Version}

	if raw, err := json.Marshal(o); err == nil && utf8.RuneCount(raw) <= MetadataValueLimit {
		meta[metaOrderData] = string(raw)
		meta[metaMode] = MetadataModeFull
		return meta
	}

	meta[metaMode] = MetadataModeEssential
	meta[metaCustomerEmail] = truncate(o.Email)
	meta[metaCustomerName] = truncate(o.Nom)
	meta[metaChildName] = truncate(o.PrenomEnfants)
	meta[metaPlan] = truncate(o.Plan)
	meta[metaCreatedAt] = createdAt.UTC().Format(time.RFC3339)
	return meta
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MetadataValueLimit {
		return s
	}
	return string([]rune(s)[:MetadataValueLimit])
}

// NeedsLookup reports whether the session metadata lacks a usable full order.
func NeedsLookup(sess *stripe.CheckoutSession) bool {
	raw, ok := sess.Metadata[metaOrderData]
	return !ok || !json.Valid([]byte(raw))
}

// ReconstructOrder recovers the order attached to a completed session. With
// full metadata the JSON is decoded; otherwise the essential fields are
// combined with the expanded product name and description, when present.
// It reports whether the full order was recovered.
func ReconstructOrder(sess *stripe.CheckoutSession) (models.Order, bool) {
	if raw, ok := sess.Metadata[metaOrderData]; ok {
		var o models.Order
		if err := json.Unmarshal([]byte(raw), &o); err == nil {
			if o.Email == "" {
				o.Email = sessionEmail(sess)
			}
			return o.Normalize(), true
		}
	}

	o := models.Order{
		Email:         sess.Metadata[metaCustomerEmail],
		Nom:           sess.Metadata[metaCustomerName],
		PrenomEnfants: sess.Metadata[metaChildName],
		Plan:          sess.Metadata[metaPlan],
	}
	if o.Email == "" {
		o.Email = sessionEmail(sess)
	}
	if o.Nom == "" && sess.CustomerDetails != nil {
		o.Nom = sess.CustomerDetails.Name
	}

	if product := firstProduct(sess); product != nil {
		if o.Plan == "" {
			o.Plan = afterPrefix(product.Name, productNamePrefix)
		}
		if o.PrenomEnfants == "" {
			o.PrenomEnfants = afterPrefix(product.Description, productDescPrefix)
		}
	}

	// Unknown here means unknown, not the intake defaults.
	if models.NormalizeText(o.Plan) == "" {
		o.Plan = models.Unspecified
	}
	if models.NormalizeText(o.PrenomEnfants) == "" {
		o.PrenomEnfants = models.Unspecified
	}
	return o.Normalize(), false
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerEmail != "" {
		return sess.CustomerEmail
	}
	if sess.CustomerDetails != nil {
		return sess.CustomerDetails.Email
	}
	return ""
}

func firstProduct(sess *stripe.CheckoutSession) *stripe.Product {
	if sess.LineItems == nil {
		return nil
	}
	for _, item := range sess.LineItems.Data {
		if item != nil && item.Price != nil && item.Price.Product != nil {
			return item.Price.Product
		}
	}
	return nil
}

func afterPrefix(s, prefix string) string {
	if i := strings.Index(s, prefix); i >= 0 {
		return strings.TrimSpace(s[i+len(prefix):])
	}
	return ""
}
