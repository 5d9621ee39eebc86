package grpc

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	HedgerServiceName              = "hedger.v1.HedgerService"
	ProcessTransactionFullMethod   = "/" + HedgerServiceName + "/ProcessTransaction"
	GetBalancesFullMethod          = "/" + HedgerServiceName + "/GetBalances"
	processTransactionMethodName   = "ProcessTransaction"
	getBalancesMethodName          = "GetBalances"
	hedgerServiceMetadataReference = "hedger/v1/hedger.proto"
)

// HedgerServiceServer carries requests and responses as protobuf Structs so
// the service needs no generated code.
type HedgerServiceServer interface {
	ProcessTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalances(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var HedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: HedgerServiceName,
	HandlerType: (*HedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: processTransactionMethodName,
			Handler:    unaryHandler(ProcessTransactionFullMethod, HedgerServiceServer.ProcessTransaction),
		},
		{
			MethodName: getBalancesMethodName,
			Handler:    unaryHandler(GetBalancesFullMethod, HedgerServiceServer.GetBalances),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: hedgerServiceMetadataReference,
}

func RegisterHedgerServiceServer(s grpc.ServiceRegistrar, srv HedgerServiceServer) {
	s.RegisterService(&HedgerServiceDesc, srv)
}

func unaryHandler(
	fullMethod string,
	call func(HedgerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(HedgerServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type HedgerService interface {
	ProcessTransaction(ctx context.Context, request entity.TransactionRequest) (*entity.TransactionResultEvent, error)
	Balances() map[string]decimal.Decimal
}

var _ HedgerServiceServer = (*Server)(nil)

type Server struct {
	hedgerService HedgerService
}

func NewHedgerGRPCServer(hedgerService HedgerService) *Server {
	return &Server{
		hedgerService: hedgerService,
	}
}

// ProcessTransaction expects {request_id, side, amount}. amount may be a
// decimal string or a number.
func (s *Server) ProcessTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	request, err := mapStructToTransactionRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	event, err := s.hedgerService.ProcessTransaction(ctx, request)
	if err != nil {
		switch {
		case errors.Is(err, hedger.ErrDuplicateRequest):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, hedger.ErrRequestGuardFailed):
			return nil, status.Error(codes.Unavailable, err.Error())
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		default:
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	resp, err := structpb.NewStruct(mapResultEventToFields(event))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return resp, nil
}

func (s *Server) GetBalances(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	balances := s.hedgerService.Balances()
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(map[string]any, len(balances))
	for _, name := range names {
		fields[name] = balances[name].String()
	}

	resp, err := structpb.NewStruct(map[string]any{"balances": fields})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return resp, nil
}

func mapStructToTransactionRequest(req *structpb.Struct) (entity.TransactionRequest, error) {
	fields := req.GetFields()

	side, err := entity.ParseOrderSide(fields["side"].GetStringValue())
	if err != nil {
		return entity.TransactionRequest{}, err
	}

	var amount decimal.Decimal
	switch v := fields["amount"].GetKind().(type) {
	case *structpb.Value_StringValue:
		amount, err = decimal.NewFromString(strings.TrimSpace(v.StringValue))
		if err != nil {
			return entity.TransactionRequest{}, errors.New("invalid amount")
		}
	case *structpb.Value_NumberValue:
		if math.IsNaN(v.NumberValue) || math.IsInf(v.NumberValue, 0) {
			return entity.TransactionRequest{}, errors.New("invalid amount")
		}
		amount = decimal.NewFromFloat(v.NumberValue)
	default:
		return entity.TransactionRequest{}, errors.New("amount is required")
	}

	return entity.TransactionRequest{
		RequestID: strings.TrimSpace(fields["request_id"].GetStringValue()),
		Side:      side,
		Amount:    amount,
	}, nil
}

func mapResultEventToFields(event *entity.TransactionResultEvent) map[string]any {
	transactions := make([]any, 0, len(event.Result.Transactions))
	for _, tx := range event.Result.Transactions {
		transactions = append(transactions, map[string]any{
			"venue":    tx.Venue,
			"order_id": tx.Order.GetID(),
			"type":     string(tx.Order.Type),
			"kind":     tx.Order.Kind,
			"amount":   tx.Order.Amount.String(),
			"price":    tx.Order.Price.String(),
		})
	}

	fields := map[string]any{
		"request_id":   event.RequestID,
		"valid":        event.Result.Valid,
		"transactions": transactions,
		"total_amount": event.Result.TotalAmount().String(),
		"total_value":  event.Result.TotalValue().String(),
		"processed_at": event.ProcessedAt.UnixMilli(),
	}
	if event.Result.ErrorMessage != "" {
		fields["error_message"] = event.Result.ErrorMessage
	}

	return fields
}
