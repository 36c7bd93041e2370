package grpc

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"turnos/internal/domain"
	"turnos/internal/service/turns"
)

type TurnsServer struct {
	svc turnsService
	log *slog.Logger
}

type turnsService interface {
	Book(ctx context.Context, in turns.BookInput) (domain.TurnView, error)
	Get(ctx context.Context, id int64) (domain.TurnView, error)
	Confirm(ctx context.Context, id int64) (domain.TurnView, error)
	Cancel(ctx context.Context, id int64) (domain.TurnView, error)
	AvailableSlots(ctx context.Context, date time.Time) ([]string, error)
}

var _ TurnsRPC = (*TurnsServer)(nil)

func NewTurnsServer(svc turnsService, log *slog.Logger) *TurnsServer {
	if log == nil {
		log = slog.Default()
	}
	return &TurnsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.turns")),
	}
}

func (s *TurnsServer) BookTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpcLog(ctx, "BookTurn")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	dateStr := stringField(req, "date")
	if dateStr == "" {
		log.Warn("invalid request", slog.String("reason", "missing_date"))
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	in := turns.BookInput{
		IdentityNumber: stringField(req, "identity_number"),
		Date:           date,
		Slot:           stringField(req, "slot"),
		State:          stringField(req, "state"),
	}
	view, err := s.svc.Book(ctx, in)
	if err != nil {
		return nil, s.toStatus(log.With(slog.String("identity_number", in.IdentityNumber)), err)
	}

	log.Info(
		"turn booked",
		slog.Int64("turn_id", view.ID),
		slog.Int64("person_id", view.PersonID),
		slog.String("date", view.Date),
		slog.String("slot", view.Slot),
	)
	return turnResponse(view)
}

func (s *TurnsServer) GetTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpcLog(ctx, "GetTurn")

	id, err := turnID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, err
	}
	view, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus(log.With(slog.Int64("turn_id", id)), err)
	}
	return turnResponse(view)
}

func (s *TurnsServer) ConfirmTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, "ConfirmTurn", "turn confirmed", s.svc.Confirm)
}

func (s *TurnsServer) CancelTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, "CancelTurn", "turn cancelled", s.svc.Cancel)
}

func (s *TurnsServer) transition(ctx context.Context, req *structpb.Struct, rpc, msg string, apply func(context.Context, int64) (domain.TurnView, error)) (*structpb.Struct, error) {
	log := s.rpcLog(ctx, rpc)

	id, err := turnID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, err
	}
	view, err := apply(ctx, id)
	if err != nil {
		return nil, s.toStatus(log.With(slog.Int64("turn_id", id)), err)
	}

	log.Info(msg, slog.Int64("turn_id", view.ID), slog.String("state", string(view.State)))
	return turnResponse(view)
}

func (s *TurnsServer) AvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpcLog(ctx, "AvailableSlots")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	date, err := domain.ParseDate(stringField(req, "date"))
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	slots, err := s.svc.AvailableSlots(ctx, date)
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	list := make([]any, 0, len(slots))
	for _, slot := range slots {
		list = append(list, slot)
	}
	resp, err := structpb.NewStruct(map[string]any{
		"date":  date.Format(domain.DateLayout),
		"slots": list,
	})
	if err != nil {
		log.Error("response encoding failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *TurnsServer) rpcLog(ctx context.Context, rpc string) *slog.Logger {
	return s.log.With(slog.String("rpc", rpc), slog.String("request_id", requestID(ctx)))
}

// toStatus maps service errors onto gRPC codes. Unclassified errors are
// logged and hidden behind codes.Internal.
func (s *TurnsServer) toStatus(log *slog.Logger, err error) error {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		log.Info("not found", slog.Any("err", err))
		return status.Error(codes.NotFound, err.Error())
	case domain.KindConflict:
		log.Info("conflict", slog.Any("err", err))
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.KindForbidden:
		log.Info("forbidden", slog.Any("err", err))
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.KindInvalidInput:
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindInvalidState:
		log.Info("transition rejected", slog.Any("err", err))
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	log.Error("request failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-request-id"); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0])
		}
	}
	return uuid.NewString()
}

func stringField(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

func turnID(req *structpb.Struct) (int64, error) {
	if req == nil {
		return 0, status.Error(codes.InvalidArgument, "request is required")
	}
	v, ok := req.GetFields()["id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "id is required")
	}
	n := v.GetNumberValue()
	if n < 1 || n != math.Trunc(n) || n > math.MaxInt64/2 {
		return 0, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	return int64(n), nil
}

func turnResponse(v domain.TurnView) (*structpb.Struct, error) {
	turn := map[string]any{
		"id":        v.ID,
		"date":      v.Date,
		"slot":      v.Slot,
		"state":     string(v.State),
		"person_id": v.PersonID,
	}
	if v.IdentityNumber != "" {
		turn["identity_number"] = v.IdentityNumber
		turn["person_name"] = v.PersonName
	}
	resp, err := structpb.NewStruct(map[string]any{"turn": turn})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}
