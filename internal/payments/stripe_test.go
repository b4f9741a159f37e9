package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
)

const testWebhookSecret = "whsec_test_secret"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signPayload(t *testing.T, payload []byte, secret string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestProvider(t *testing.T, backends *stripe.Backends) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Backends:      backends,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestNewStripeProviderRequiresSecrets(t *testing.T) {
	if _, err := NewStripeProvider(StripeConfig{SecretKey: "sk_test_1"}); err == nil {
		t.Fatal("expected error without webhook secret")
	}
}

func TestVerifyWebhook(t *testing.T) {
	p := newTestProvider(t, nil)
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount":1500,"currency":"eur","status":"succeeded","metadata":{"paymentId":"9","clientId":"4","packType":"5"}}}}`)

	t.Run("valid", func(t *testing.T) {
		evt, err := p.VerifyWebhook(payload, signPayload(t, payload, testWebhookSecret, time.Now()))
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if evt.Type != EventChargeSucceeded {
			t.Fatalf("unexpected type %q", evt.Type)
		}
		if evt.Charge.ID != "pi_1" || !evt.Charge.Succeeded() || evt.Charge.AmountCents != 1500 {
			t.Fatalf("unexpected charge %+v", evt.Charge)
		}
		if evt.Charge.Metadata["paymentId"] != "9" {
			t.Fatalf("unexpected metadata %+v", evt.Charge.Metadata)
		}
	})

	t.Run("forged", func(t *testing.T) {
		_, err := p.VerifyWebhook(payload, signPayload(t, payload, "whsec_other", time.Now()))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := signPayload(t, payload, testWebhookSecret, time.Now())
		tampered := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_2"}}}`)
		if _, err := p.VerifyWebhook(tampered, sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		if _, err := p.VerifyWebhook(payload, ""); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestCreateCharge(t *testing.T) {
	var (
		gotAmount, gotCurrency, gotClient, gotIdem string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" || r.Method != http.MethodPost {
			http.Error(w, `{"error":{"message":"unexpected"}}`, http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		gotAmount = r.PostForm.Get("amount")
		gotCurrency = r.PostForm.Get("currency")
		gotClient = r.PostForm.Get("metadata[clientId]")
		gotIdem = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"pi_123","object":"payment_intent","amount":1500,"currency":"eur","status":"requires_payment_method","client_secret":"pi_123_secret_abc","metadata":{"clientId":"7"}}`)
	}))
	defer srv.Close()

	retries := int64(0)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: &retries,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	p := newTestProvider(t, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	charge, err := p.CreateCharge(context.Background(), ChargeRequest{
		AmountCents:    1500,
		Currency:       "EUR",
		Metadata:       map[string]string{"clientId": "7"},
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if charge.ID != "pi_123" || charge.ClientSecret != "pi_123_secret_abc" || charge.Succeeded() {
		t.Fatalf("unexpected charge %+v", charge)
	}
	if gotAmount != "1500" || gotCurrency != "eur" || gotClient != "7" || gotIdem != "idem-1" {
		t.Fatalf("unexpected request amount=%s currency=%s client=%s idem=%s", gotAmount, gotCurrency, gotClient, gotIdem)
	}
}

func TestProviderErrorFromStripe(t *testing.T) {
	err := convertError(&stripe.Error{HTTPStatusCode: 402, Code: stripe.ErrorCodeCardDeclined, Msg: "declined"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if pe.StatusCode != 402 || pe.Code != "card_declined" || !IsProviderError(err) {
		t.Fatalf("unexpected provider error %+v", pe)
	}
}
