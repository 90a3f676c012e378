package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := staticTokens{
		"mentor-token": {UserID: "u-1", Role: models.RoleMentor},
		"head-token":   {UserID: "u-2", Role: models.RoleHead},
	}
	router := gin.New()
	router.GET("/", JWT(tokens), RequireRoles(roles...), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, claims.(*models.JWTClaims).UserID)
	})
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRejectsMissingAndMalformedTokens(t *testing.T) {
	router := newProtectedRouter(models.RoleMentor)

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer unknown"} {
		if got := serve(router, header).Code; got != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, got)
		}
	}
}

func TestRequireRolesChecksClaims(t *testing.T) {
	router := newProtectedRouter(models.RoleMentor)

	recorder := serve(router, "Bearer mentor-token")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if recorder.Body.String() != "u-1" {
		t.Fatalf("claims not propagated: %s", recorder.Body.String())
	}

	if got := serve(router, "bearer head-token").Code; got != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", got)
	}
}

func TestRequireRolesWithoutJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleHead), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	if got := serve(router, "").Code; got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}
