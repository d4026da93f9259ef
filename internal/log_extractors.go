package internal

import (
	"context"

	"github.com/gearshift/gearshift/pkg/logger"
)

// VisitKeyExtractor adds the request's visit key to log records as visit_key.
func VisitKeyExtractor() logger.ContextExtractor {
	return logger.StringExtractor("visit_key", func(ctx context.Context) string {
		if v := VisitFromContext(ctx); v != nil {
			return v.Key
		}
		return ""
	})
}

// UserNameExtractor adds the authenticated user name to log records as user_name.
func UserNameExtractor() logger.ContextExtractor {
	return logger.StringExtractor("user_name", func(ctx context.Context) string {
		return IdentityFromContext(ctx).UserName()
	})
}
