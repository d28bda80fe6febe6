package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/rosterload/internal/logging"
)

// WithRequestMetadata attaches the client address and user agent to the
// context logger, so a run started by this request logs who started it.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	logger := logging.FromContext(ctx).With(
		"client_ip", r.RemoteAddr, // already resolved by TrustedRealIP
		"user_agent", r.UserAgent(),
	)
	return logging.IntoContext(ctx, logger)
}
