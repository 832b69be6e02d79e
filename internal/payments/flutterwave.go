package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
)

const flutterwaveHashHeader = "verif-hash"

// Flutterwave collects via a hosted payment link. Amounts travel in major units.
type Flutterwave struct {
	baseURL     string
	secretKey   string
	secretHash  string
	redirectURL string
	call        *caller
	now         func() time.Time
}

// NewFlutterwave builds the Flutterwave adapter.
func NewFlutterwave(cfg config.FlutterwaveConfig, callbackBaseURL string, opts CallerOptions) (*Flutterwave, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave secret key is required")
	}
	if strings.TrimSpace(cfg.SecretHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave secret hash is required")
	}
	return &Flutterwave{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		secretHash:  cfg.SecretHash,
		redirectURL: callbackURL(callbackBaseURL),
		call:        newCaller(enums.PaymentProviderFlutterwave, opts),
		now:         time.Now,
	}, nil
}

func (f *Flutterwave) Provider() enums.PaymentProvider { return enums.PaymentProviderFlutterwave }

type flutterwaveInitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (f *Flutterwave) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if strings.TrimSpace(req.Payer.Email) == "" {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave requires a payer email")
	}
	reference := invoiceReference("FLW", req.InvoiceID, f.now())
	body := map[string]any{
		"tx_ref":       reference,
		"amount":       req.Amount.StringFixed(2),
		"currency":     req.Currency,
		"redirect_url": f.redirectURL,
		"customer": map[string]string{
			"email":       req.Payer.Email,
			"phonenumber": req.Payer.Phone,
			"name":        req.Payer.Name,
		},
		"customizations": map[string]string{
			"title":       "Subscription payment",
			"description": "Invoice " + req.InvoiceNumber,
		},
		"meta": map[string]string{
			"invoiceId": req.InvoiceID.String(),
			"tenantId":  req.TenantID.String(),
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + f.secretKey}

	var out flutterwaveInitResponse
	if err := f.call.doJSON(ctx, "payments", http.MethodPost, f.baseURL+"/v3/payments", headers, body, &out); err != nil {
		return InitiateResult{}, err
	}
	if out.Status != "success" || out.Data.Link == "" {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave payment rejected: "+out.Message)
	}
	return InitiateResult{
		Provider:    enums.PaymentProviderFlutterwave,
		Reference:   reference,
		RedirectURL: out.Data.Link,
		Status:      "pending",
	}, nil
}

type flutterwaveMeta struct {
	InvoiceID string `json:"invoiceId"`
	TenantID  string `json:"tenantId"`
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64           `json:"id"`
		TxRef     string          `json:"tx_ref"`
		FlwRef    string          `json:"flw_ref"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		Status    string          `json:"status"`
		CreatedAt string          `json:"created_at"`
		Meta      flutterwaveMeta `json:"meta"`
	} `json:"data"`
	MetaData flutterwaveMeta `json:"meta_data"`
}

// NormalizeWebhook compares verif-hash with the configured secret hash and
// maps successful charges. flw_ref is the settlement key.
func (f *Flutterwave) NormalizeWebhook(_ context.Context, req WebhookRequest) (Notification, error) {
	got := req.Headers.Get(flutterwaveHashHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(f.secretHash)) != 1 {
		return Notification{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid flutterwave hash")
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode flutterwave event")
	}
	if !strings.EqualFold(event.Data.Status, "successful") {
		return rejected(event.Event, event.Data.TxRef, "charge status "+event.Data.Status), nil
	}
	if event.Data.FlwRef == "" {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave event missing flw_ref")
	}

	meta := event.Data.Meta
	if meta.InvoiceID == "" {
		meta = event.MetaData
	}
	invoiceID, tenantID, err := parseMetadataIDs(meta.InvoiceID, meta.TenantID)
	if err != nil {
		return Notification{}, err
	}

	return confirmed(PaymentConfirmed{
		Provider:    enums.PaymentProviderFlutterwave,
		EventType:   event.Event,
		Reference:   event.Data.TxRef,
		ProviderRef: event.Data.FlwRef,
		InvoiceID:   invoiceID,
		TenantID:    tenantID,
		Amount:      event.Data.Amount,
		Currency:    strings.ToUpper(event.Data.Currency),
		ReceivedAt:  parseTimeOr(event.Data.CreatedAt, f.now()),
	}), nil
}
