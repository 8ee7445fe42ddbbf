package requestctx

import (
	"context"
	"errors"
)

type contextKey string

const (
	requestIDKey   contextKey = "requestID"
	affiliateIDKey contextKey = "affiliateID"
)

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// ErrNoAffiliateInContext is returned when the request carries no attribution
var ErrNoAffiliateInContext = errors.New("no affiliate ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom extracts the request ID from the context
func RequestIDFrom(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// WithAffiliateID stores the affiliate credited for the current request.
func WithAffiliateID(ctx context.Context, affiliateID string) context.Context {
	return context.WithValue(ctx, affiliateIDKey, affiliateID)
}

// AffiliateIDFrom returns the attributed affiliate ID for the request, if any.
func AffiliateIDFrom(ctx context.Context) (string, error) {
	affiliateID, ok := ctx.Value(affiliateIDKey).(string)
	if !ok || affiliateID == "" {
		return "", ErrNoAffiliateInContext
	}
	return affiliateID, nil
}

// AffiliateIDPtr is AffiliateIDFrom shaped for nullable model columns.
func AffiliateIDPtr(ctx context.Context) *string {
	affiliateID, err := AffiliateIDFrom(ctx)
	if err != nil {
		return nil
	}
	return &affiliateID
}
