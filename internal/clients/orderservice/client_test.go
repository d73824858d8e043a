package orderservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/domain"
)

func payload() domain.OrderPayload {
	return domain.OrderPayload{
		IdempotencyKey: "key-1",
		SessionID:      "s1",
		Currency:       "USD",
		PaymentMethod:  domain.PaymentCard,
		Items:          []domain.LineItem{{ID: "A", Kind: domain.KindPart, UnitPrice: decimal.NewFromInt(50), Quantity: 2}},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var got domain.OrderPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "s1", got.SessionID)
		assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(50)))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.OrderConfirmation{OrderNumber: "ORD-00000009", CreatedAt: time.Now().UTC()})
	}))
	defer srv.Close()

	conf, err := NewClient(srv.URL+"/", time.Second).CreateOrder(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, "ORD-00000009", conf.OrderNumber)
}

func TestCreateOrder_ErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    domain.OrderServiceErrorKind
		message string
	}{
		{"validation", http.StatusUnprocessableEntity, `{"error":"validation","message":"postal code missing"}`, domain.OrderServiceValidation, "postal code missing"},
		{"remote", http.StatusServiceUnavailable, `maintenance`, domain.OrderServiceRemote, "maintenance"},
		{"missing number", http.StatusOK, `{}`, domain.OrderServiceRemote, "confirmation without order number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).CreateOrder(context.Background(), payload())
			var osErr *domain.OrderServiceError
			require.True(t, errors.As(err, &osErr), "got %v", err)
			assert.Equal(t, tc.kind, osErr.Kind)
			assert.Equal(t, tc.status, osErr.Status)
			assert.Equal(t, tc.message, osErr.Message)
		})
	}
}

func TestCreateOrder_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).CreateOrder(context.Background(), payload())
	var osErr *domain.OrderServiceError
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, domain.OrderServiceTransport, osErr.Kind)
	assert.NotNil(t, errors.Unwrap(osErr))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, time.Second).Ping(context.Background()))
}
