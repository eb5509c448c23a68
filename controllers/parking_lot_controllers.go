package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

type ParkingLotController struct {
	DB *gorm.DB
}

func NewParkingLotController(db *gorm.DB) *ParkingLotController {
	return &ParkingLotController{DB: db}
}

// GetAvailableLots -> public catalog of approved, active lots
func (pc *ParkingLotController) GetAvailableLots(c *gin.Context) {
	var lots []models.ParkingLot
	q := pc.DB.Where("approved = ? AND active = ?", true, true)
	if c.Query("with_slots") == "true" {
		q = q.Where("available_slots > 0")
	}
	if err := q.Find(&lots).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available parking lots", lots)
}

// GetLotByID -> detail of one approved lot
func (pc *ParkingLotController) GetLotByID(c *gin.Context) {
	var lot models.ParkingLot
	if err := pc.DB.First(&lot, c.Param("lot_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Parking lot detail", lot)
}

// CreateLot -> owners publish a lot; it stays unapproved (and unbookable)
// until an admin approves it.
func (pc *ParkingLotController) CreateLot(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req struct {
		Name        string   `json:"name" binding:"required"`
		Address     string   `json:"address"`
		Capacity    int      `json:"capacity" binding:"required,gt=0"`
		HourlyRate  float64  `json:"hourly_rate" binding:"required,gt=0"`
		DailyRate   *float64 `json:"daily_rate" binding:"omitempty,gt=0"`
		MonthlyRate *float64 `json:"monthly_rate" binding:"omitempty,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	lot := models.ParkingLot{
		OwnerID:        actor.UserID,
		Name:           req.Name,
		Address:        req.Address,
		Capacity:       req.Capacity,
		AvailableSlots: req.Capacity,
		HourlyRate:     utils.RoundMoney(req.HourlyRate),
		DailyRate:      req.DailyRate,
		MonthlyRate:    req.MonthlyRate,
		Approved:       false,
		Active:         true,
	}

	if err := pc.DB.Create(&lot).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Parking lot %d submitted by owner %d, pending approval",
		lot.ID, actor.UserID)
	utils.RespondJSON(c, http.StatusCreated, "Parking lot submitted for approval", lot)
}

// GetMyLots -> the owner's own lots, approved or not
func (pc *ParkingLotController) GetMyLots(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var lots []models.ParkingLot
	if err := pc.DB.Where("owner_id = ?", actor.UserID).Find(&lots).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "My parking lots", lots)
}

// UpdateLot edits rates/flags on a lot the caller controls. Capacity and
// the live slot counter are not editable here; the counter belongs to the
// slot ledger.
func (pc *ParkingLotController) UpdateLot(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var lot models.ParkingLot
	if err := pc.DB.First(&lot, c.Param("lot_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if !actor.PrivilegedFor(&lot) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Address     *string  `json:"address"`
		HourlyRate  *float64 `json:"hourly_rate" binding:"omitempty,gt=0"`
		DailyRate   *float64 `json:"daily_rate" binding:"omitempty,gt=0"`
		MonthlyRate *float64 `json:"monthly_rate" binding:"omitempty,gt=0"`
		Active      *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	if req.Name != nil {
		lot.Name = *req.Name
	}
	if req.Address != nil {
		lot.Address = *req.Address
	}
	if req.HourlyRate != nil {
		lot.HourlyRate = utils.RoundMoney(*req.HourlyRate)
	}
	if req.DailyRate != nil {
		lot.DailyRate = req.DailyRate
	}
	if req.MonthlyRate != nil {
		lot.MonthlyRate = req.MonthlyRate
	}
	if req.Active != nil {
		lot.Active = *req.Active
	}

	if err := pc.DB.Save(&lot).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Parking lot updated", lot)
}

// GetPendingLots -> admin queue of lots awaiting approval
func (pc *ParkingLotController) GetPendingLots(c *gin.Context) {
	var lots []models.ParkingLot
	if err := pc.DB.Where("approved = ?", false).Find(&lots).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Lots pending approval", lots)
}

// ApproveLot -> admin approves a lot, making it bookable
func (pc *ParkingLotController) ApproveLot(c *gin.Context) {
	var lot models.ParkingLot
	if err := pc.DB.First(&lot, c.Param("lot_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if lot.Approved {
		utils.RespondError(c, http.StatusBadRequest, errors.New("lot is already approved"))
		return
	}

	now := time.Now()
	lot.Approved = true
	lot.ApprovedAt = &now
	if err := pc.DB.Save(&lot).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Parking lot %d approved", lot.ID)
	utils.RespondJSON(c, http.StatusOK, "Parking lot approved", lot)
}

// RejectLot -> admin rejects (deactivates) a submitted lot
func (pc *ParkingLotController) RejectLot(c *gin.Context) {
	var lot models.ParkingLot
	if err := pc.DB.First(&lot, c.Param("lot_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	lot.Approved = false
	lot.Active = false
	if err := pc.DB.Save(&lot).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Parking lot %d rejected", lot.ID)
	utils.RespondJSON(c, http.StatusOK, "Parking lot rejected", lot)
}
