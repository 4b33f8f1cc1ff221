package checkout

import (
	"context"
	"errors"
	"regexp"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/service-checkout/internal/catalog"
	"github.com/noah-isme/service-checkout/internal/common"
	"github.com/noah-isme/service-checkout/internal/obs"
	"github.com/noah-isme/service-checkout/internal/payment"
)

// emailPattern is deliberately loose: it accepts some invalid addresses and
// rejects some valid ones. Addresses that reach the provider must pass it.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var tracer = otel.Tracer("github.com/noah-isme/service-checkout/internal/checkout")

// Request is the checkout form submission. Prices never come from the client.
type Request struct {
	CustomerName     string `json:"customerName" validate:"notblank"`
	CustomerEmail    string `json:"customerEmail" validate:"notblank,loose_email"`
	ServiceCategory  string `json:"serviceCategory"`
	ServiceSubOption string `json:"serviceSubOption"`
	Description      string `json:"description,omitempty"`
}

// Result is the created provider order.
type Result struct {
	OrderID     string
	CheckoutURL string
	Status      string
	Reference   string
}

// Service turns a form submission into a provider checkout session.
type Service struct {
	Catalog      *catalog.Catalog
	Gateway      payment.OrderCreator
	Currency     string
	NewReference func() string
	Logger       zerolog.Logger

	validate *validator.Validate
}

// NewService wires a Service with its validator.
func NewService(cat *catalog.Catalog, gateway payment.OrderCreator, currency string, logger zerolog.Logger) *Service {
	return &Service{
		Catalog:  cat,
		Gateway:  gateway,
		Currency: currency,
		Logger:   logger,
		validate: NewValidator(),
	}
}

// NewValidator returns a validator with the checkout tags registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

var fieldMessages = map[string]map[string]string{
	"CustomerName":  {"notblank": "Customer name is required"},
	"CustomerEmail": {"notblank": "Customer email is required", "loose_email": "Invalid email format"},
}

// CreateOrder validates req, prices it from the catalog and opens a provider
// order. Validation stops at the first failing rule.
func (s *Service) CreateOrder(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateOrder")
	defer span.End()

	if err := s.check(req); err != nil {
		s.reject(err)
		span.SetStatus(codes.Error, err.Code)
		return Result{}, err
	}

	key := catalog.Key(req.ServiceCategory, req.ServiceSubOption)
	price, err := s.Catalog.PriceFor(req.ServiceCategory, req.ServiceSubOption)
	if err != nil {
		appErr := common.BadRequest(common.CodeServiceNotSupported, "Invalid or unsupported service selected", err)
		s.reject(appErr)
		span.SetStatus(codes.Error, appErr.Code)
		return Result{}, appErr
	}
	amount := MinorUnits(price)

	reference := s.reference()
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Service: " + key
	}
	span.SetAttributes(
		attribute.String("checkout.service", key),
		attribute.Int64("checkout.amount_minor", amount),
		attribute.String("checkout.reference", reference),
	)

	order, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:            amount,
		Currency:          s.currency(),
		MerchantReference: reference,
		CustomerEmail:     req.CustomerEmail,
		CustomerName:      strings.TrimSpace(req.CustomerName),
		Description:       description,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment provider error")
		return Result{}, s.gatewayError(ctx, key, reference, err)
	}
	span.SetAttributes(attribute.String("checkout.order_id", order.ID))
	return Result{
		OrderID:     order.ID,
		CheckoutURL: order.CheckoutURL,
		Status:      order.Status,
		Reference:   reference,
	}, nil
}

// MinorUnits converts a major-unit price to minor units, rounding half away from zero.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (s *Service) check(req Request) *common.AppError {
	v := s.validate
	if v == nil {
		v = NewValidator()
	}
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return common.BadRequest(common.CodeBadRequest, "Invalid request", err)
	}
	first := fieldErrs[0]
	code := common.CodeMissingField
	if first.Tag() == "loose_email" {
		code = common.CodeInvalidFormat
	}
	msg := fieldMessages[first.StructField()][first.Tag()]
	if msg == "" {
		msg = first.Field() + " is invalid"
	}
	return common.BadRequest(code, msg, first)
}

func (s *Service) gatewayError(ctx context.Context, key, reference string, err error) *common.AppError {
	log := s.log(ctx).Error().Err(err).Str("service", key).Str("merchant_ref", reference)
	var failed *payment.GatewayRequestFailedError
	var invariant *payment.GatewayInvariantError
	switch {
	case errors.As(err, &invariant):
		log.Str("order_id", invariant.OrderID).Msg("checkout_provider_invariant")
		return common.Internal(common.CodePaymentProvider, "Failed to create payment order", "No checkout URL received from payment provider", err)
	case errors.As(err, &failed):
		log.Int("provider_status", failed.StatusCode).Str("provider_body", failed.Body).Msg("checkout_provider_failed")
	default:
		log.Msg("checkout_provider_failed")
	}
	return common.Internal(common.CodePaymentProvider, "Failed to create payment order", "Payment provider is unavailable, please try again later", err)
}

func (s *Service) reject(err *common.AppError) {
	if obs.CheckoutRejectedTotal != nil {
		obs.CheckoutRejectedTotal.WithLabelValues(err.Code).Inc()
	}
}

func (s *Service) reference() string {
	if s.NewReference != nil {
		return s.NewReference()
	}
	return "order_" + uuid.NewString()
}

func (s *Service) currency() string {
	if c := strings.TrimSpace(s.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return "USD"
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
