package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/titledock/titledock/internal/models"
	"github.com/titledock/titledock/internal/testutil"
)

func TestAdminUserHandlers(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()
	adminCookie := testutil.GetAuthCookie(t, server, "users_admin", "password", "admin")

	do := func(method, url, payload string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest(method, url, bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(adminCookie)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	var created models.User

	t.Run("Create User", func(t *testing.T) {
		rr := do("POST", "/api/admin/users", `{"username":"newuser","password":"secret123","role":"user"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if created.Username != "newuser" || created.Role != "user" {
			t.Errorf("Unexpected user %+v", created)
		}
	})

	t.Run("Create Duplicate User", func(t *testing.T) {
		rr := do("POST", "/api/admin/users", `{"username":"newuser","password":"secret123","role":"user"}`)
		if rr.Code != http.StatusConflict {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusConflict)
		}
	})

	t.Run("Create User With Invalid Role", func(t *testing.T) {
		rr := do("POST", "/api/admin/users", `{"username":"x","password":"y","role":"superuser"}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("List Users", func(t *testing.T) {
		rr := do("GET", "/api/admin/users", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		var users []models.User
		json.Unmarshal(rr.Body.Bytes(), &users)
		if len(users) != 2 {
			t.Errorf("Expected 2 users, got %d", len(users))
		}
	})

	t.Run("Update User", func(t *testing.T) {
		url := fmt.Sprintf("/api/admin/users/%d", created.ID)
		rr := do("PUT", url, `{"username":"renamed","role":"admin"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		user, err := server.Store().GetUserByID(created.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if user.Username != "renamed" || user.Role != "admin" {
			t.Errorf("Update not applied: %+v", user)
		}
	})

	t.Run("Admin Cannot Delete Self", func(t *testing.T) {
		self, err := server.Store().GetUserByUsername("users_admin")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		rr := do("DELETE", fmt.Sprintf("/api/admin/users/%d", self.ID), "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("Delete User", func(t *testing.T) {
		rr := do("DELETE", fmt.Sprintf("/api/admin/users/%d", created.ID), "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNoContent)
		}
		if _, err := server.Store().GetUserByID(created.ID); err == nil {
			t.Error("Expected user to be deleted")
		}
	})
}
