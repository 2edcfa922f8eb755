package ctxutil

import "context"

type requestDataKey struct{}

// RequestData carries the verified caller identity for one request.
type RequestData struct {
	TokenString string
	UserID      string
	SessionID   string
	Email       string
	Name        string
	ImageURL    string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// UserID returns the authenticated user id or "".
func UserID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return ""
}
