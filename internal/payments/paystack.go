package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"hash"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
)

const (
	paystackSignatureHeader = "x-paystack-signature"
	paystackChargeSuccess   = "charge.success"
)

// Paystack collects via hosted checkout and confirms over signed webhooks.
type Paystack struct {
	baseURL     string
	secretKey   string
	callbackURL string
	call        *caller
	now         func() time.Time
}

// NewPaystack builds the Paystack adapter.
func NewPaystack(cfg config.PaystackConfig, callbackBaseURL string, opts CallerOptions) (*Paystack, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paystack secret key is required")
	}
	return &Paystack{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: callbackURL(callbackBaseURL),
		call:        newCaller(enums.PaymentProviderPaystack, opts),
		now:         time.Now,
	}, nil
}

func (p *Paystack) Provider() enums.PaymentProvider { return enums.PaymentProviderPaystack }

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (p *Paystack) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if strings.TrimSpace(req.Payer.Email) == "" {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "paystack requires a payer email")
	}
	reference := invoiceReference("INV", req.InvoiceID, p.now())
	body := map[string]any{
		"email":        req.Payer.Email,
		"amount":       ToMinor(req.Amount),
		"currency":     req.Currency,
		"reference":    reference,
		"callback_url": p.callbackURL,
		"metadata": map[string]string{
			"invoiceId": req.InvoiceID.String(),
			"tenantId":  req.TenantID.String(),
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.secretKey}

	var out paystackInitResponse
	if err := p.call.doJSON(ctx, "initialize", http.MethodPost, p.baseURL+"/transaction/initialize", headers, body, &out); err != nil {
		return InitiateResult{}, err
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "paystack initialize rejected: "+out.Message)
	}
	if out.Data.Reference != "" {
		reference = out.Data.Reference
	}
	return InitiateResult{
		Provider:    enums.PaymentProviderPaystack,
		Reference:   reference,
		RedirectURL: out.Data.AuthorizationURL,
		Status:      "pending",
	}, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
		Metadata  struct {
			InvoiceID string `json:"invoiceId"`
			TenantID  string `json:"tenantId"`
		} `json:"metadata"`
	} `json:"data"`
}

// NormalizeWebhook verifies the HMAC-SHA512 signature and maps charge.success.
// The transaction reference is the settlement key.
func (p *Paystack) NormalizeWebhook(_ context.Context, req WebhookRequest) (Notification, error) {
	if !verifyHexHMAC(sha512.New, p.secretKey, req.Headers.Get(paystackSignatureHeader), req.Body) {
		return Notification{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid paystack signature")
	}

	var event paystackEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paystack event")
	}
	if event.Event != paystackChargeSuccess {
		return rejected(event.Event, event.Data.Reference, "event not handled"), nil
	}
	if event.Data.Status != "success" {
		return rejected(event.Event, event.Data.Reference, "charge status "+event.Data.Status), nil
	}
	if event.Data.Reference == "" {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "paystack event missing reference")
	}

	invoiceID, tenantID, err := parseMetadataIDs(event.Data.Metadata.InvoiceID, event.Data.Metadata.TenantID)
	if err != nil {
		return Notification{}, err
	}

	return confirmed(PaymentConfirmed{
		Provider:    enums.PaymentProviderPaystack,
		EventType:   event.Event,
		Reference:   event.Data.Reference,
		ProviderRef: event.Data.Reference,
		InvoiceID:   invoiceID,
		TenantID:    tenantID,
		Amount:      FromMinor(event.Data.Amount),
		Currency:    strings.ToUpper(event.Data.Currency),
		ReceivedAt:  parseTimeOr(event.Data.PaidAt, p.now()),
	}), nil
}

func verifyHexHMAC(h func() hash.Hash, secret, signature string, body []byte) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(h, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// parseMetadataIDs reads the invoice id (required) and the tenant id (optional)
// echoed back by a provider.
func parseMetadataIDs(invoiceRaw, tenantRaw string) (uuid.UUID, uuid.UUID, error) {
	invoiceID, err := uuid.Parse(strings.TrimSpace(invoiceRaw))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "notification missing invoice id")
	}
	tenantID := uuid.Nil
	if strings.TrimSpace(tenantRaw) != "" {
		tenantID, err = uuid.Parse(strings.TrimSpace(tenantRaw))
		if err != nil {
			return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "notification has malformed tenant id")
		}
	}
	return invoiceID, tenantID, nil
}

func parseTimeOr(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback.UTC()
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback.UTC()
	}
	return t.UTC()
}

func callbackURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + "/billing/payment-callback"
}
