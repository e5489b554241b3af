package server

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zarvd/iothub-sas-signer/internal/key"
	"github.com/zarvd/iothub-sas-signer/internal/sas"
)

var _ TokenSignerServer = (*Server)(nil)

type Server struct {
	logger *slog.Logger
	issuer key.Issuer
}

func NewServer(logger *slog.Logger, issuer key.Issuer) *Server {
	return &Server{
		logger: logger,
		issuer: issuer,
	}
}

func (svr *Server) IssueDeviceToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	logger := svr.logger.With(slog.String("method", "IssueDeviceToken"))

	daysValid, err := daysValidField(req)
	if err != nil {
		return nil, err
	}
	deviceID := req.GetFields()["device_id"].GetStringValue()

	return svr.issue(ctx, logger, key.Request{
		Kind:      key.KindDevice,
		DeviceID:  deviceID,
		DaysValid: daysValid,
	})
}

func (svr *Server) IssueServiceToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	logger := svr.logger.With(slog.String("method", "IssueServiceToken"))

	daysValid, err := daysValidField(req)
	if err != nil {
		return nil, err
	}

	return svr.issue(ctx, logger, key.Request{
		Kind:      key.KindService,
		Policy:    req.GetFields()["policy"].GetStringValue(),
		DaysValid: daysValid,
	})
}

func (svr *Server) Metadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	logger := svr.logger.With(slog.String("method", "Metadata"))

	rv, err := structpb.NewStruct(map[string]any{
		"hub":            svr.issuer.Hub(),
		"key_name":       svr.issuer.KeyName(),
		"max_days_valid": svr.issuer.MaxDaysValid(),
	})
	if err != nil {
		logger.Error("Failed to build metadata", slog.Any("error", err))
		return nil, status.Errorf(codes.Internal, "not able to build metadata")
	}
	logger.Info("Fetched metadata", slog.Int("max-days-valid", svr.issuer.MaxDaysValid()))

	return rv, nil
}

func (svr *Server) issue(ctx context.Context, logger *slog.Logger, req key.Request) (*structpb.Struct, error) {
	token, err := svr.issuer.Issue(ctx, req)
	if err != nil {
		logger.Error("Failed to issue token", slog.Any("error", err))
		return nil, toStatus(err)
	}

	rv, err := structpb.NewStruct(map[string]any{
		"token":    token.String(),
		"resource": token.Resource,
		"expiry":   token.Expiry,
	})
	if err != nil {
		logger.Error("Failed to build response", slog.Any("error", err))
		return nil, status.Errorf(codes.Internal, "not able to issue token")
	}

	logger.Info("Issued token",
		slog.String("resource", token.Resource),
		slog.Int64("expiry", token.Expiry),
	)
	return rv, nil
}

func daysValidField(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()["days_valid"]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "days_valid is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) ||
		n.NumberValue > math.MaxInt32 || n.NumberValue < math.MinInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "days_valid must be an integer")
	}
	return int(n.NumberValue), nil
}

func toStatus(err error) error {
	var missing *sas.MissingFieldError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &missing):
		return status.Errorf(codes.InvalidArgument, "%s", missing.Error())
	case errors.Is(err, key.ErrValidityTooLong):
		return status.Errorf(codes.InvalidArgument, "%s", err.Error())
	}
	return status.Errorf(codes.Internal, "not able to issue token")
}
