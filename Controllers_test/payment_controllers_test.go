package Controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/controllers"
	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

func setupPaymentRouter(db *gorm.DB, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ctrl := controllers.NewPaymentController(db)

	auth := router.Group("/payments")
	auth.Use(authAs(user))
	auth.POST("", ctrl.CreatePayment)
	auth.GET("", ctrl.GetPayments)
	auth.GET("/pending", ctrl.GetPendingPayments)
	auth.GET("/:payment_id", ctrl.GetPaymentByID)
	auth.GET("/:payment_id/history", ctrl.GetPaymentHistory)
	auth.POST("/:payment_id/process", ctrl.ProcessPayment)
	auth.POST("/:payment_id/cancel", ctrl.CancelPayment)
	auth.POST("/:payment_id/validate", ctrl.ValidatePayment)
	return router
}

func seedActiveReservation(t *testing.T, db *gorm.DB, s seed) models.Reservation {
	t.Helper()
	entry := time.Now().Add(time.Hour).UTC()
	exit := entry.Add(2 * time.Hour)
	reservation := models.Reservation{
		Code:            uuid.NewString(),
		UserID:          s.client.ID,
		CarID:           s.car.ID,
		ParkingLotID:    s.lot.ID,
		EntryTime:       entry,
		ExitTime:        &exit,
		DurationMinutes: 120,
		EstimatedCost:   18.00,
		Kind:            models.ReservationKindHourly,
		Status:          models.ReservationStatusActive,
	}
	if err := db.Create(&reservation).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return reservation
}

func TestCreateWalletPaymentAndValidate(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)

	clientRouter := setupPaymentRouter(db, s.client)
	w := doJSON(t, clientRouter, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "yape",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, 18.00, data["amount"])
	paymentID := data["id"].(string)

	// The wallet payment shows up in the client's pending list.
	w = doJSON(t, clientRouter, "GET", "/payments/pending", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["data"].([]interface{}), 1)

	// The lot owner validates the transfer.
	ownerRouter := setupPaymentRouter(db, s.owner)
	w = doJSON(t, ownerRouter, "POST", fmt.Sprintf("/payments/%s/validate", paymentID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data = resp["data"].(map[string]interface{})
	assert.Equal(t, "paid", data["status"])

	// Settling twice is a client error, not a server error.
	w = doJSON(t, ownerRouter, "POST", fmt.Sprintf("/payments/%s/validate", paymentID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCardPaymentSettles(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)
	router := setupPaymentRouter(db, s.client)

	w := doJSON(t, router, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "card",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "paid", data["status"])
	paymentID := data["id"].(string)

	// created -> processing -> paid audit trail
	w = doJSON(t, router, "GET", fmt.Sprintf("/payments/%s/history", paymentID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["data"].([]interface{}), 3)
}

func TestCreatePaymentRejectsBadMethod(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)
	router := setupPaymentRouter(db, s.client)

	w := doJSON(t, router, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "cash",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errs, ok := resp["errors"].(map[string]interface{})
	assert.True(t, ok)
	assert.Contains(t, errs, "method")
}

func TestCreateDuplicatePaymentConflict(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)
	router := setupPaymentRouter(db, s.client)

	w := doJSON(t, router, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "yape",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "plin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errs, ok := resp["errors"].(map[string]interface{})
	assert.True(t, ok)
	assert.Contains(t, errs, "reservation_id")
}

func TestPaymentVisibility(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)

	clientRouter := setupPaymentRouter(db, s.client)
	w := doJSON(t, clientRouter, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "yape",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	paymentID := resp["data"].(map[string]interface{})["id"].(string)

	// A stranger cannot read someone else's payment.
	other := models.User{Name: "Pia", Email: "pia2@test.pe", Password: "x", Role: models.RoleClient, Active: true}
	assert.NoError(t, db.Create(&other).Error)
	otherRouter := setupPaymentRouter(db, other)
	w = doJSON(t, otherRouter, "GET", "/payments/"+paymentID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The lot owner can.
	ownerRouter := setupPaymentRouter(db, s.owner)
	w = doJSON(t, ownerRouter, "GET", "/payments/"+paymentID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown id is a 404.
	w = doJSON(t, clientRouter, "GET", "/payments/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelPaymentFlow(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	s := seedData(t, db)
	reservation := seedActiveReservation(t, db, s)
	router := setupPaymentRouter(db, s.client)

	w := doJSON(t, router, "POST", "/payments", map[string]interface{}{
		"reservation_id": reservation.ID,
		"method":         "plin",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	paymentID := resp["data"].(map[string]interface{})["id"].(string)

	w = doJSON(t, router, "POST", fmt.Sprintf("/payments/%s/cancel", paymentID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp["data"].(map[string]interface{})["status"])

	// A cancelled payment cannot be processed.
	w = doJSON(t, router, "POST", fmt.Sprintf("/payments/%s/process", paymentID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
