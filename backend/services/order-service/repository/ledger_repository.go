package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// LedgerRepository appends order rows. Appended rows are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, row models.LedgerRow) error
}

type sheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	rangeA1       string
}

// ServiceAccountCredentials builds the JSON key expected by the Google client
// from the two values kept in the environment.
func ServiceAccountCredentials(clientEmail, privateKey string) []byte {
	b, _ := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": clientEmail,
		"private_key":  privateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	return b
}

// NewSheetsLedger creates a ledger over one spreadsheet range (e.g. "Commandes!A:P").
// Without extra options it authenticates with the given service account.
func NewSheetsLedger(ctx context.Context, spreadsheetID, rangeA1 string, opts ...option.ClientOption) (LedgerRepository, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &sheetsLedger{svc: svc, spreadsheetID: spreadsheetID, rangeA1: rangeA1}, nil
}

func (l *sheetsLedger) Append(ctx context.Context, row models.LedgerRow) error {
	_, err := l.svc.Spreadsheets.Values.
		Append(l.spreadsheetID, l.rangeA1, &sheets.ValueRange{
			Values: [][]interface{}{row.Values()},
		}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append to %s failed: %w", l.rangeA1, err)
	}
	return nil
}
