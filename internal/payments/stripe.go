// Package payments is a thin façade over the Stripe API: hosted checkout
// sessions, connected accounts for seller payouts, and webhook signature
// verification. Stripe remains the system of record for money movement.
package payments

import (
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys attached to every checkout session. The fulfillment
// pipeline reads these back from the completed-checkout event.
const (
	MetadataProductID = "productId"
	MetadataBuyerID   = "buyerId"
	MetadataKind      = "type"
)

// Config holds Stripe API configuration.
type Config struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
}

// Client wraps the Stripe SDK with the few operations the marketplace needs.
type Client struct {
	api           *client.API
	webhookSecret string
	frontendURL   string
	logger        zerolog.Logger
}

// New creates a Stripe client from the given configuration.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("payments: secret key is required")
	}
	return &Client{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		frontendURL:   cfg.FrontendURL,
		logger:        logger.With().Str("component", "payments").Logger(),
	}, nil
}

// CheckoutSession is the subset of a created checkout session the caller
// needs: the session id and the hosted payment page URL.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a hosted checkout session for one product
// acquisition. The metadata bag carries the ids the fulfillment pipeline
// needs to turn the completion event into a purchase.
func (c *Client) CreateCheckoutSession(product *models.Product, buyerID int64, buyerEmail string, kind models.PurchaseKind, priceCents int64) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(buyerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(product.Title),
						Description: stripe.String(nonEmpty(product.Summary, product.Title)),
					},
					UnitAmount: stripe.Int64(priceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.frontendURL + "/checkout/cancel"),
	}
	params.AddMetadata(MetadataProductID, strconv.FormatInt(product.ID, 10))
	params.AddMetadata(MetadataBuyerID, strconv.FormatInt(buyerID, 10))
	params.AddMetadata(MetadataKind, string(kind))

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, dependencyErr("create checkout session", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreateConnectedAccount creates an express connected account for seller
// payouts and returns its id.
func (c *Client) CreateConnectedAccount(email string) (string, error) {
	account, err := c.api.Accounts.New(&stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			URL: stripe.String(c.frontendURL),
		},
	})
	if err != nil {
		return "", dependencyErr("create connected account", err)
	}
	return account.ID, nil
}

// CreateAccountLink returns a one-time onboarding URL for a connected account.
func (c *Client) CreateAccountLink(accountID string) (string, error) {
	link, err := c.api.AccountLinks.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(c.frontendURL + "/seller/onboarding/return"),
		RefreshURL: stripe.String(c.frontendURL + "/seller/onboarding/refresh"),
	})
	if err != nil {
		return "", dependencyErr("create account link", err)
	}
	return link.URL, nil
}

// VerifyWebhook checks the signature on a raw webhook payload and returns
// the parsed event. A bad signature is a validation error, not a
// dependency failure: the request is rejected, never retried internally.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, errs.Validationf("webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, errs.Validationf("invalid webhook signature: %v", err)
	}
	return event, nil
}

// dependencyErr classifies a Stripe SDK error as a retryable dependency
// failure, keeping the provider's error details for the log.
func dependencyErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return errs.Dependencyf("%s: %s (%s)", op, stripeErr.Msg, stripeErr.Code)
	}
	return errs.Dependencyf("%s: %v", op, err)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
