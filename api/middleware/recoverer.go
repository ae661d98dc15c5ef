package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/angelmondragon/leadassign-backend/api/responses"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 with the standard error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					recovered(logg, w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recovered(logg *logger.Logger, w http.ResponseWriter, r *http.Request, rec any) {
	cause, ok := rec.(error)
	if !ok {
		cause = fmt.Errorf("%v", rec)
	}
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "handler panicked")

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"stack":  string(debug.Stack()),
		})
		logg.Error(ctx, "panic.recovered", err)
	}
	responses.WriteError(ctx, logg, w, err)
}
