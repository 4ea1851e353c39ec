package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/scalewatch/weight-monitor-backend/internal/models"
)

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc123", ExtractBearerToken("Bearer abc123"))
	assert.Equal(t, "abc123", ExtractBearerToken("  Bearer abc123  "))
	assert.Equal(t, "abc123", ExtractBearerToken("abc123"))
	assert.Equal(t, "", ExtractBearerToken(""))
	assert.Equal(t, "", ExtractBearerToken("Bearer "))
}

func TestUserContextRoundtrip(t *testing.T) {
	user := &models.User{ID: primitive.NewObjectID(), Name: "Ada"}
	ctx := WithUser(context.Background(), user)
	assert.Equal(t, user, UserFrom(ctx))

	assert.Nil(t, UserFrom(context.Background()))
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "No authentication token")
}

func TestAdminOnly(t *testing.T) {
	var called bool
	handler := AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("regular user forbidden", func(t *testing.T) {
		called = false
		user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}
		r := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		r = r.WithContext(WithUser(r.Context(), user))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Admin access required")
		assert.False(t, called)
	})

	t.Run("admin passes", func(t *testing.T) {
		called = false
		admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
		r := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		r = r.WithContext(WithUser(r.Context(), admin))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
	})

	t.Run("no user forbidden", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, called)
	})
}
