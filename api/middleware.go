package api

import (
	"net/http"
	"strings"

	"github.com/getkayan/teamwork/authz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// subjectContextKey is where SubjectMiddleware stores the materialized
// subject on the echo context.
const subjectContextKey = "teamwork_subject"

// SubjectClaims are the token claims the middleware reads. The subject ID
// comes from the registered "sub" claim.
type SubjectClaims struct {
	Groups    []string `json:"groups"`
	Superuser bool     `json:"superuser"`
	jwt.RegisteredClaims
}

// SubjectMiddleware materializes an authz.Subject from a bearer token and
// stores it on the request context. A missing token yields the anonymous
// subject rather than a 401: anonymous is a legitimate audience and the
// policy layer decides what it may do. An invalid or tampered token is
// still rejected outright.
func SubjectMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				c.Set(subjectContextKey, authz.AnonymousSubject())
				return next(c)
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			claims := &SubjectClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
			}

			sub := authz.Subject{ID: id, Superuser: claims.Superuser}
			for _, g := range claims.Groups {
				gid, err := uuid.Parse(g)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid group claim")
				}
				sub.Groups = append(sub.Groups, gid)
			}

			c.Set(subjectContextKey, sub)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request through the given zap logger.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

// SubjectFromContext returns the subject stored by SubjectMiddleware,
// falling back to anonymous when the middleware did not run.
func SubjectFromContext(c echo.Context) authz.Subject {
	if sub, ok := c.Get(subjectContextKey).(authz.Subject); ok {
		return sub
	}
	return authz.AnonymousSubject()
}

// RefFunc extracts the protected resource reference from a request, e.g.
// by parsing a path parameter.
type RefFunc func(c echo.Context) (*authz.ResourceRef, error)

// RequirePermission returns a middleware that rejects requests whose
// subject does not hold the permission on the referenced resource.
func RequirePermission(resolver authz.Resolver, perm authz.Code, refOf RefFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ref, err := refOf(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}

			sub := SubjectFromContext(c)
			allowed, err := resolver.Authorized(c.Request().Context(), sub, ref, perm)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			if !allowed {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden: missing required permission")
			}

			return next(c)
		}
	}
}
