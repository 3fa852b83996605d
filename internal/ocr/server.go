package ocr

import (
	"context"

	apperrors "github.com/resultcap/platform/internal/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Recognizer reads text out of a PNG image. Client implements it.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
}

// Register exposes r on s under the sidecar contract, so a Go recognizer
// can stand in for the external one.
func Register(s *grpc.Server, r Recognizer) {
	s.RegisterService(&serviceDesc, r)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Recognizer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recognize", Handler: recognizeHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		lang := DefaultLanguage
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(LanguageKey); len(v) > 0 && v[0] != "" {
				lang = v[0]
			}
		}
		text, err := srv.(Recognizer).Recognize(ctx, req.(*wrapperspb.BytesValue).GetValue(), lang)
		if err != nil {
			return nil, apperrors.FromGRPCError(err, apperrors.CodeOCRFailed).GRPCStatus().Err()
		}
		return wrapperspb.String(text), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecognizeMethod}
	return interceptor(ctx, in, info, call)
}
