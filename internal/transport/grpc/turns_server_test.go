package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"turnos/internal/domain"
	"turnos/internal/service/turns"
)

type fakeTurnsService struct {
	bookFn           func(ctx context.Context, in turns.BookInput) (domain.TurnView, error)
	getFn            func(ctx context.Context, id int64) (domain.TurnView, error)
	confirmFn        func(ctx context.Context, id int64) (domain.TurnView, error)
	cancelFn         func(ctx context.Context, id int64) (domain.TurnView, error)
	availableSlotsFn func(ctx context.Context, date time.Time) ([]string, error)
}

func (f *fakeTurnsService) Book(ctx context.Context, in turns.BookInput) (domain.TurnView, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeTurnsService) Get(ctx context.Context, id int64) (domain.TurnView, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeTurnsService) Confirm(ctx context.Context, id int64) (domain.TurnView, error) {
	if f.confirmFn == nil {
		panic("Confirm not configured")
	}
	return f.confirmFn(ctx, id)
}

func (f *fakeTurnsService) Cancel(ctx context.Context, id int64) (domain.TurnView, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeTurnsService) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	if f.availableSlotsFn == nil {
		panic("AvailableSlots not configured")
	}
	return f.availableSlotsFn(ctx, date)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func TestRequestID_ReadsMetadataOrGenerates(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "  abc  "))
	if got := requestID(ctx); got != "abc" {
		t.Fatalf("requestID = %q, want %q", got, "abc")
	}
	if got := requestID(context.Background()); len(got) != 36 {
		t.Fatalf("requestID = %q, want a generated uuid", got)
	}
}

func TestBookTurn_PassesFieldsAndEncodesTurn(t *testing.T) {
	var got turns.BookInput
	srv := NewTurnsServer(&fakeTurnsService{
		bookFn: func(ctx context.Context, in turns.BookInput) (domain.TurnView, error) {
			got = in
			return domain.TurnView{
				ID:             9,
				Date:           "2025-06-01",
				Slot:           in.Slot,
				State:          domain.StatePending,
				PersonID:       3,
				PersonName:     "Brian Rodriguez",
				IdentityNumber: in.IdentityNumber,
			}, nil
		},
	}, discardLogger())

	resp, err := srv.BookTurn(context.Background(), mustStruct(t, map[string]any{
		"identity_number": "48351225",
		"date":            "2025-06-01",
		"slot":            "09:00",
	}))
	if err != nil {
		t.Fatalf("BookTurn error: %v", err)
	}
	if got.IdentityNumber != "48351225" || got.Slot != "09:00" || got.Date.Format(domain.DateLayout) != "2025-06-01" {
		t.Fatalf("unexpected input: %+v", got)
	}

	turn := resp.GetFields()["turn"].GetStructValue().GetFields()
	if id := turn["id"].GetNumberValue(); id != 9 {
		t.Fatalf("id = %v, want 9", id)
	}
	if state := turn["state"].GetStringValue(); state != "pending" {
		t.Fatalf("state = %q, want pending", state)
	}
	if dni := turn["identity_number"].GetStringValue(); dni != "48351225" {
		t.Fatalf("identity_number = %q, want 48351225", dni)
	}
}

func TestBookTurn_RejectsBadDate(t *testing.T) {
	srv := NewTurnsServer(&fakeTurnsService{}, discardLogger())

	for _, date := range []string{"", "01/06/2025"} {
		_, err := srv.BookTurn(context.Background(), mustStruct(t, map[string]any{"date": date, "slot": "09:00"}))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("date %q: code = %v, want %v", date, status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", domain.NotFound("turn 1 not found"), codes.NotFound},
		{"conflict", domain.Conflict("slot is already taken"), codes.AlreadyExists},
		{"forbidden", domain.Forbidden("person is disabled"), codes.PermissionDenied},
		{"invalid input", domain.InvalidInput("bad slot"), codes.InvalidArgument},
		{"invalid state", domain.InvalidState(domain.ReasonConfirmCancelled, domain.StateCancelled), codes.FailedPrecondition},
		{"unclassified", errors.New("db down"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewTurnsServer(&fakeTurnsService{
				confirmFn: func(ctx context.Context, id int64) (domain.TurnView, error) {
					return domain.TurnView{}, tt.err
				},
			}, discardLogger())

			_, err := srv.ConfirmTurn(context.Background(), mustStruct(t, map[string]any{"id": 1}))
			if status.Code(err) != tt.code {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.code)
			}
			if tt.code == codes.Internal && status.Convert(err).Message() != "internal error" {
				t.Fatalf("internal error leaked: %v", err)
			}
		})
	}
}

func TestTurnID_Validation(t *testing.T) {
	srv := NewTurnsServer(&fakeTurnsService{}, discardLogger())

	for _, req := range []map[string]any{{}, {"id": 0}, {"id": 1.5}, {"id": "7"}} {
		_, err := srv.GetTurn(context.Background(), mustStruct(t, req))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("req %v: code = %v, want %v", req, status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestTurnsService_OverTheWire(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterTurnsServer(s, NewTurnsServer(&fakeTurnsService{
		cancelFn: func(ctx context.Context, id int64) (domain.TurnView, error) {
			return domain.TurnView{ID: id, Date: "2025-06-01", Slot: "09:00", State: domain.StateCancelled, PersonID: 1}, nil
		},
		availableSlotsFn: func(ctx context.Context, date time.Time) ([]string, error) {
			return []string{"09:30", "10:00"}, nil
		},
	}, discardLogger()))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := NewTurnsClient(conn)

	resp, err := client.Call(ctx, "CancelTurn", mustStruct(t, map[string]any{"id": 4}))
	if err != nil {
		t.Fatalf("CancelTurn error: %v", err)
	}
	if state := resp.GetFields()["turn"].GetStructValue().GetFields()["state"].GetStringValue(); state != "cancelled" {
		t.Fatalf("state = %q, want cancelled", state)
	}

	resp, err = client.Call(ctx, "AvailableSlots", mustStruct(t, map[string]any{"date": "2025-06-01"}))
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	slots := resp.GetFields()["slots"].GetListValue().GetValues()
	if len(slots) != 2 || slots[0].GetStringValue() != "09:30" {
		t.Fatalf("slots = %v", slots)
	}

	_, err = client.Call(ctx, "NoSuchMethod", mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.Unimplemented)
	}
}
