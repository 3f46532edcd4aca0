package domain

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCStatus converts an error to the gRPC status a caller should see.
// Errors that are not domain errors become a generic internal error so that
// infrastructure details never leak.
func ToGRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return status.New(codes.Internal, "internal server error")
	}

	message := domainErr.Message
	if domainErr.Field != "" {
		message = fmt.Sprintf("%s: %s", domainErr.Field, domainErr.Message)
	}

	switch domainErr.Code {
	case ErrCodeValidation:
		return status.New(codes.InvalidArgument, message)
	case ErrCodeNotFound:
		return status.New(codes.NotFound, message)
	case ErrCodeConflict:
		return status.New(codes.FailedPrecondition, message)
	case ErrCodePaymentFailed:
		return status.New(codes.Aborted, message)
	default:
		return status.New(codes.Internal, "internal server error")
	}
}

// SanitizeError converts any error to a safe gRPC error
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return ToGRPCStatus(err).Err()
}
