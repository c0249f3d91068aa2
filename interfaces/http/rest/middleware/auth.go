package middleware

import (
	"errors"
	"net/http"
	"strings"

	"collective-rides/pkg/auth"
	pkgerrors "collective-rides/pkg/errors"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"
)

// TokenValidator validates a bearer token
type TokenValidator interface {
	ValidateToken(token string) (auth.Identity, error)
}

// Authenticate resolves the caller identity and stores it in the request context.
// In Lambda the API Gateway JWT authorizer has already validated the token and its
// claims are read from the proxy request context; locally the bearer token is validated.
func Authenticate(validator TokenValidator, lambdaMode bool, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				identity auth.Identity
				err      error
			)
			if lambdaMode {
				identity, err = identityFromGateway(r)
			} else {
				identity, err = identityFromBearer(r, validator)
			}
			if err != nil {
				logger.Debug("Authentication failed",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError(err.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func identityFromGateway(r *http.Request) (auth.Identity, error) {
	proxyCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
	if !ok {
		return auth.Identity{}, errors.New("missing API Gateway request context")
	}
	if proxyCtx.Authorizer == nil || proxyCtx.Authorizer.JWT == nil {
		return auth.Identity{}, errors.New("request was not authorized by the gateway")
	}
	identity, ok := auth.IdentityFromClaims(proxyCtx.Authorizer.JWT.Claims)
	if !ok {
		return auth.Identity{}, errors.New("missing subject claim")
	}
	return identity, nil
}

func identityFromBearer(r *http.Request, validator TokenValidator) (auth.Identity, error) {
	if validator == nil {
		return auth.Identity{}, errors.New("authentication is not configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, auth.ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return auth.Identity{}, errors.New("invalid authorization header format")
	}
	return validator.ValidateToken(parts[1])
}
