package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
	"github.com/scalewatch/weight-monitor-backend/pkg/utils"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID.Hex(),
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
		"lastLogin": u.LastLogin,
	}
}

// Register handles POST /api/auth/register.
func Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "Please include a valid email")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	count, err := database.DB.Collection("users").CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		serverError(w, err)
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "User with this email already exists")
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		serverError(w, err)
		return
	}

	now := time.Now()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  hashedPassword,
		Role:      models.RoleUser,
		CreatedAt: now,
		LastLogin: now,
	}

	if _, err := database.DB.Collection("users").InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			writeError(w, http.StatusConflict, "User with this email already exists")
			return
		}
		serverError(w, err)
		return
	}

	token, err := utils.GenerateToken(user.ID.Hex(), cfg.JWTSecret)
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"token":   token,
		"user":    userJSON(&user),
	})
}

// Login handles POST /api/auth/login.
func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	var user models.User
	err := database.DB.Collection("users").FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	valid, err := utils.VerifyPassword(req.Password, user.Password)
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	user.LastLogin = time.Now()
	database.DB.Collection("users").UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"lastLogin": user.LastLogin}})

	token, err := utils.GenerateToken(user.ID.Hex(), cfg.JWTSecret)
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"user":    userJSON(&user),
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless; the client
// simply discards its copy.
func Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// GetProfile handles GET /api/auth/profile.
func GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": userJSON(user)})
}

// UpdateProfile handles PUT /api/auth/profile with a partial update of
// name, email and password.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	update := bson.M{}
	if req.Name != "" {
		update["name"] = req.Name
		user.Name = req.Name
	}
	if req.Email != "" {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if !strings.Contains(email, "@") {
			writeError(w, http.StatusBadRequest, "Please include a valid email")
			return
		}
		count, err := database.DB.Collection("users").CountDocuments(ctx,
			bson.M{"email": email, "_id": bson.M{"$ne": user.ID}})
		if err != nil {
			serverError(w, err)
			return
		}
		if count > 0 {
			writeError(w, http.StatusConflict, "User with this email already exists")
			return
		}
		update["email"] = email
		user.Email = email
	}
	if req.Password != "" {
		if len(req.Password) < 6 {
			writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		hashedPassword, err := utils.HashPassword(req.Password)
		if err != nil {
			serverError(w, err)
			return
		}
		update["password"] = hashedPassword
	}

	if len(update) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if _, err := database.DB.Collection("users").UpdateOne(ctx,
		bson.M{"_id": user.ID}, bson.M{"$set": update}); err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    userJSON(user),
	})
}
