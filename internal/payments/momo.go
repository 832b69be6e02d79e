package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
)

const (
	momoCallbackSecretHeader = "X-Callback-Secret"
	momoSubscriptionHeader   = "Ocp-Apim-Subscription-Key"
	momoStatusSuccessful     = "SUCCESSFUL"
	momoCountryCode          = "233"
	momoTokenSkew            = 30 * time.Second
)

// MoMo requests mobile money collections from MTN and confirms over callbacks.
type MoMo struct {
	cfg         config.MoMoConfig
	baseURL     string
	callbackURL string
	call        *caller
	now         func() time.Time
	newRef      func() uuid.UUID

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewMoMo builds the MTN MoMo collection adapter.
func NewMoMo(cfg config.MoMoConfig, callbackBaseURL string, opts CallerOptions) (*MoMo, error) {
	if strings.TrimSpace(cfg.SubscriptionKey) == "" || strings.TrimSpace(cfg.APIUser) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "momo subscription key, api user and api key are required")
	}
	if strings.TrimSpace(cfg.CallbackSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "momo callback secret is required")
	}
	return &MoMo{
		cfg:         cfg,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: strings.TrimRight(strings.TrimSpace(callbackBaseURL), "/"),
		call:        newCaller(enums.PaymentProviderMTNMoMo, opts),
		now:         time.Now,
		newRef:      uuid.New,
	}, nil
}

func (m *MoMo) Provider() enums.PaymentProvider { return enums.PaymentProviderMTNMoMo }

type momoToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (m *MoMo) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && m.now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	var out momoToken
	err := m.call.run(ctx, "token", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/collection/token/", nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(m.cfg.APIUser, m.cfg.APIKey)
		req.Header.Set(momoSubscriptionHeader, m.cfg.SubscriptionKey)
		resp, err := m.call.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return statusError(enums.PaymentProviderMTNMoMo, "token", resp.StatusCode, raw)
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "momo token response missing access_token")
	}

	m.token = out.AccessToken
	m.tokenExpiry = m.now().Add(time.Duration(out.ExpiresIn)*time.Second - momoTokenSkew)
	return m.token, nil
}

func (m *MoMo) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	msisdn, err := FormatMSISDN(req.Payer.Phone)
	if err != nil {
		return InitiateResult{}, err
	}
	token, err := m.accessToken(ctx)
	if err != nil {
		return InitiateResult{}, err
	}

	reference := m.newRef().String()
	headers := map[string]string{
		"Authorization":        "Bearer " + token,
		"X-Reference-Id":       reference,
		"X-Target-Environment": m.cfg.TargetEnvironment,
		momoSubscriptionHeader: m.cfg.SubscriptionKey,
	}
	if m.callbackURL != "" {
		headers["X-Callback-Url"] = m.callbackURL + "/api/v1/webhooks/mtn_momo"
	}
	body := map[string]any{
		"amount":     req.Amount.StringFixed(2),
		"currency":   req.Currency,
		"externalId": req.InvoiceID.String(),
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     msisdn,
		},
		"payerMessage": "Payment for invoice " + req.InvoiceNumber,
		"payeeNote":    "Invoice " + req.InvoiceNumber,
	}
	if err := m.call.doJSON(ctx, "requesttopay", http.MethodPost, m.baseURL+"/collection/v1_0/requesttopay", headers, body, nil); err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{
		Provider:  enums.PaymentProviderMTNMoMo,
		Reference: reference,
		Status:    "pending",
	}, nil
}

type momoCallback struct {
	FinancialTransactionID string          `json:"financialTransactionId"`
	ExternalID             string          `json:"externalId"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Status                 string          `json:"status"`
	Reason                 json.RawMessage `json:"reason"`
}

// NormalizeWebhook authenticates the callback secret and maps SUCCESSFUL
// collections. The callback carries no tenant, so TenantID stays Nil.
func (m *MoMo) NormalizeWebhook(_ context.Context, req WebhookRequest) (Notification, error) {
	got := req.Headers.Get(momoCallbackSecretHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(m.cfg.CallbackSecret)) != 1 {
		return Notification{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid momo callback secret")
	}

	var cb momoCallback
	if err := json.Unmarshal(req.Body, &cb); err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode momo callback")
	}
	if cb.Status != momoStatusSuccessful {
		return rejected("requesttopay."+strings.ToLower(cb.Status), cb.ExternalID, "collection status "+cb.Status), nil
	}
	if cb.FinancialTransactionID == "" {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "momo callback missing financialTransactionId")
	}
	invoiceID, _, err := parseMetadataIDs(cb.ExternalID, "")
	if err != nil {
		return Notification{}, err
	}

	return confirmed(PaymentConfirmed{
		Provider:    enums.PaymentProviderMTNMoMo,
		EventType:   "requesttopay.successful",
		Reference:   cb.ExternalID,
		ProviderRef: cb.FinancialTransactionID,
		InvoiceID:   invoiceID,
		Amount:      cb.Amount,
		Currency:    strings.ToUpper(cb.Currency),
		ReceivedAt:  m.now().UTC(),
	}), nil
}

// FormatMSISDN normalizes a local or international Ghanaian number to 233XXXXXXXXX.
func FormatMSISDN(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	switch {
	case strings.HasPrefix(n, momoCountryCode) && len(n) == 12:
		return n, nil
	case strings.HasPrefix(n, "0") && len(n) == 10:
		return momoCountryCode + n[1:], nil
	case len(n) == 9:
		return momoCountryCode + n, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid mobile money number %q", phone))
	}
}
