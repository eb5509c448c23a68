package main

import (
	"bytes"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/router"
	"github.com/parkeaya/parking-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

// TestEndToEndIntegration walks the main flow:
// 0. Seed admin/owner/client, login each
// 1. Owner publishes a lot, admin approves it
// 2. Client books a slot
// 3. Client pays by card => paid
// 4. Owner checks the car in, client checks out
// 5. Payment history shows the full trail
func TestEndToEndIntegration(t *testing.T) {
	db := setupIntegrationDB()
	r := router.SetupRouter(db)

	ownerToken := loginTest(t, r, "owner@example.com")
	adminToken := loginTest(t, r, "admin@example.com")
	clientToken := loginTest(t, r, "client@example.com")

	lotID := createLotTest(t, r, ownerToken)
	approveLotTest(t, r, adminToken, lotID)

	code, reservationID := createReservationTest(t, r, clientToken, lotID)
	paymentID := payReservationTest(t, r, clientToken, reservationID)

	checkInTest(t, r, ownerToken, code)
	checkOutTest(t, r, clientToken, code)

	paymentHistoryTest(t, r, clientToken, paymentID)
}

// setupIntegrationDB -> in-memory sqlite + migrations + seed accounts
func setupIntegrationDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.ParkingLot{},
		&models.Reservation{},
		&models.Payment{},
		&models.PaymentHistory{},
		&models.Ticket{},
		&models.TicketHistory{},
	)
	if err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	hashed, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	users := []models.User{
		{Name: "Admin", Email: "admin@example.com", Password: string(hashed), Role: models.RoleAdmin, Active: true},
		{Name: "Owner", Email: "owner@example.com", Password: string(hashed), Role: models.RoleOwner, Active: true},
		{Name: "Client", Email: "client@example.com", Password: string(hashed), Role: models.RoleClient, Active: true},
	}
	for i := range users {
		db.Create(&users[i])
	}

	db.Create(&models.Car{
		UserID: users[2].ID,
		Plate:  "INT-001",
		Type:   models.CarTypeAuto,
	})

	return db
}

func doRequest(r *gin.Engine, method, url, token string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginTest(t *testing.T, r *gin.Engine, email string) string {
	w := doRequest(r, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("loginTest %s: code=%d, body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Status || resp.Data.Token == "" {
		t.Fatalf("loginTest %s: token empty, body=%s", email, w.Body.String())
	}
	return resp.Data.Token
}

// createLotTest -> POST /parking-lots => 201, unapproved
func createLotTest(t *testing.T, r *gin.Engine, token string) uint {
	w := doRequest(r, http.MethodPost, "/parking-lots", token, map[string]interface{}{
		"name":        "San Isidro Tower",
		"address":     "Av. Principal 123",
		"capacity":    10,
		"hourly_rate": 12.00,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createLotTest: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			ID       uint `json:"id"`
			Approved bool `json:"approved"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Approved {
		t.Fatalf("createLotTest: new lot must not be approved yet")
	}
	return resp.Data.ID
}

func approveLotTest(t *testing.T, r *gin.Engine, token string, lotID uint) {
	url := "/admin/parking-lots/" + uintToString(lotID) + "/approve"
	w := doRequest(r, http.MethodPost, url, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approveLotTest: code=%d, body=%s", w.Code, w.Body.String())
	}
}

// createReservationTest -> POST /reservations => 201, active, slot taken
func createReservationTest(t *testing.T, r *gin.Engine, token string, lotID uint) (string, uint) {
	w := doRequest(r, http.MethodPost, "/reservations", token, map[string]interface{}{
		"car_id":           1,
		"parking_lot_id":   lotID,
		"entry_time":       time.Now().Add(20 * time.Minute).UTC().Format(time.RFC3339),
		"duration_minutes": 120,
		"kind":             "hourly",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createReservationTest: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			ID            uint    `json:"id"`
			Code          string  `json:"code"`
			Status        string  `json:"status"`
			EstimatedCost float64 `json:"estimated_cost"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Status != "active" {
		t.Fatalf("createReservationTest: want status 'active', got %s", resp.Data.Status)
	}
	// 120 minutes at S/ 12.00/hour
	if resp.Data.EstimatedCost != 24.00 {
		t.Fatalf("createReservationTest: want cost 24.00, got %.2f", resp.Data.EstimatedCost)
	}
	return resp.Data.Code, resp.Data.ID
}

// payReservationTest -> POST /payments (card) => settles immediately
func payReservationTest(t *testing.T, r *gin.Engine, token string, reservationID uint) string {
	w := doRequest(r, http.MethodPost, "/payments", token, map[string]interface{}{
		"reservation_id": reservationID,
		"method":         "card",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("payReservationTest: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			ID          string  `json:"id"`
			Status      string  `json:"status"`
			Amount      float64 `json:"amount"`
			PlatformFee float64 `json:"platform_fee"`
			OwnerAmount float64 `json:"owner_amount"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Status != "paid" {
		t.Fatalf("payReservationTest: want status 'paid', got %s", resp.Data.Status)
	}
	if math.Abs(resp.Data.PlatformFee+resp.Data.OwnerAmount-resp.Data.Amount) > 1e-9 {
		t.Fatalf("payReservationTest: split %.2f + %.2f does not cover %.2f",
			resp.Data.PlatformFee, resp.Data.OwnerAmount, resp.Data.Amount)
	}
	return resp.Data.ID
}

// checkInTest -> the lot owner records arrival, exempt from the window
func checkInTest(t *testing.T, r *gin.Engine, token, code string) {
	w := doRequest(r, http.MethodPost, "/checkin/"+code, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkInTest: code=%d, body=%s", w.Code, w.Body.String())
	}
}

// checkOutTest -> settles the stay; inside the grace period it is free
func checkOutTest(t *testing.T, r *gin.Engine, token, code string) {
	w := doRequest(r, http.MethodPost, "/checkout/"+code, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkOutTest: code=%d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			FinalCost   float64 `json:"final_cost"`
			Reservation struct {
				Status string `json:"status"`
			} `json:"reservation"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Reservation.Status != "finished" {
		t.Fatalf("checkOutTest: want 'finished', got %s", resp.Data.Reservation.Status)
	}
	if resp.Data.FinalCost != 0 {
		t.Fatalf("checkOutTest: checkout before entry must be free, got %.2f", resp.Data.FinalCost)
	}
}

func paymentHistoryTest(t *testing.T, r *gin.Engine, token, paymentID string) {
	w := doRequest(r, http.MethodGet, "/payments/"+paymentID+"/history", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("paymentHistoryTest: code=%d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   []struct {
			PreviousStatus string `json:"previous_status"`
			NewStatus      string `json:"new_status"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 3 {
		t.Fatalf("paymentHistoryTest: want 3 entries, got %d", len(resp.Data))
	}
	if resp.Data[2].NewStatus != "paid" {
		t.Fatalf("paymentHistoryTest: last entry must be 'paid', got %s", resp.Data[2].NewStatus)
	}
}

func uintToString(num uint) string {
	return strconv.FormatUint(uint64(num), 10)
}
