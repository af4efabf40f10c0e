package services

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/sender"
)

//go:embed templates/*
var templateFS embed.FS

const (
	customerSubject = "🎉 Confirmation de votre commande LABBE Kids"
	deliveryPromise = "2-3 jours ouvrables"
	dashboardURL    = "https://dashboard.stripe.com/payments/"
	adminFromName   = "LABBE Kids System"
)

// Confirmation is everything the composer needs about a paid order.
type Confirmation struct {
	Order         models.Order
	OrderRef      string
	PaymentRef    string
	PaymentStatus string
	Amount        string // major units, "14.90"
	PaidAt        time.Time
	Source        string
}

// NotificationPair is the customer confirmation and the operator alert for one order.
type NotificationPair struct {
	Customer sender.Message
	Admin    sender.Message
}

// Composer renders the two order notifications. It is safe for concurrent use.
type Composer struct {
	html         *htmltemplate.Template
	text         *texttemplate.Template
	adminEmail   string
	supportEmail string
	siteURL      string
}

func NewComposer(adminEmail, supportEmail, siteURL string) (*Composer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	return &Composer{
		html:         html,
		text:         text,
		adminEmail:   adminEmail,
		supportEmail: supportEmail,
		siteURL:      strings.TrimSuffix(siteURL, "/"),
	}, nil
}

type notificationView struct {
	CustomerName      string
	Email             string
	Amount            string
	OrderRef          string
	PaymentRef        string
	PaymentStatus     string
	Source            string
	Plan              string
	PlanLabel         string
	ChildName         string
	Ages              string
	Theme             string
	Langue            string
	Style             string
	Instrumental      bool
	SecondLangue      bool
	InstrumentalLabel string
	SecondLangueLabel string
	Characters        string
	Anecdotes         string
	Message           string
	Date              string
	Year              int
	DashboardURL      string
	Delivery          string
	SupportEmail      string
	SiteURL           string
	Details           string
}

func (c *Composer) view(conf Confirmation) notificationView {
	o := conf.Order
	name := o.Nom
	if name == "" {
		name = "Client"
	}
	v := notificationView{
		CustomerName:      name,
		Email:             o.Email,
		Amount:            conf.Amount,
		OrderRef:          models.OrDefault(conf.OrderRef),
		PaymentRef:        models.OrDefault(conf.PaymentRef),
		PaymentStatus:     models.OrDefault(conf.PaymentStatus),
		Source:            conf.Source,
		Plan:              models.OrDefault(o.Plan),
		PlanLabel:         models.OrDefault(models.PlanLabel(o.Plan)),
		ChildName:         models.OrDefault(o.PrenomEnfants),
		Ages:              models.OrDefault(o.Ages),
		Theme:             models.OrDefault(o.Theme),
		Langue:            models.OrDefault(o.Langue),
		Style:             models.OrDefault(o.Style),
		Instrumental:      o.Instrumental,
		SecondLangue:      o.SecondLangue,
		InstrumentalLabel: models.YesNo(o.Instrumental),
		SecondLangueLabel: models.YesNo(o.SecondLangue),
		Characters:        o.CharacterList(),
		Anecdotes:         models.OrDefault(o.Anecdotes),
		Message:           models.OrDefault(o.Message),
		Date:              models.FormatFrenchDate(conf.PaidAt),
		Year:              conf.PaidAt.Year(),
		Delivery:          deliveryPromise,
		SupportEmail:      c.supportEmail,
		SiteURL:           c.siteURL,
	}
	if strings.HasPrefix(conf.PaymentRef, "pi_") {
		v.DashboardURL = dashboardURL + conf.PaymentRef
	}
	return v
}

// Compose renders both messages. It does not modify conf and gives the same
// output for the same input.
func (c *Composer) Compose(conf Confirmation) (NotificationPair, error) {
	v := c.view(conf)

	customerHTML, err := c.renderHTML("customer_confirmation.html", v)
	if err != nil {
		return NotificationPair{}, err
	}

	var text bytes.Buffer
	if err := c.text.ExecuteTemplate(&text, "admin_alert.txt", v); err != nil {
		return NotificationPair{}, fmt.Errorf("template render failed: %w", err)
	}
	v.Details = strings.TrimSpace(text.String())

	adminHTML, err := c.renderHTML("admin_alert.html", v)
	if err != nil {
		return NotificationPair{}, err
	}

	return NotificationPair{
		Customer: sender.Message{
			To:      conf.Order.Email,
			Subject: customerSubject,
			HTML:    customerHTML,
		},
		Admin: sender.Message{
			To:       c.adminEmail,
			Subject:  fmt.Sprintf("🎵 NOUVELLE COMMANDE - %s - %s€", v.ChildName, conf.Amount),
			HTML:     adminHTML,
			Text:     v.Details,
			FromName: adminFromName,
		},
	}, nil
}

func (c *Composer) renderHTML(name string, v notificationView) (string, error) {
	var buf bytes.Buffer
	if err := c.html.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("template render failed: %w", err)
	}
	return buf.String(), nil
}
