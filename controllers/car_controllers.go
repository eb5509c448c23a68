package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

type CarController struct {
	DB *gorm.DB
}

func NewCarController(db *gorm.DB) *CarController {
	return &CarController{DB: db}
}

// GetMyCars -> vehicles registered by the caller
func (cc *CarController) GetMyCars(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var cars []models.Car
	if err := cc.DB.Where("user_id = ?", actor.UserID).Find(&cars).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "My vehicles", cars)
}

// CreateCar registers a vehicle for the caller.
func (cc *CarController) CreateCar(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req struct {
		Plate string `json:"plate" binding:"required"`
		Model string `json:"model"`
		Type  string `json:"type" binding:"required,oneof=auto moto camioneta"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	car := models.Car{
		UserID: actor.UserID,
		Plate:  strings.ToUpper(strings.TrimSpace(req.Plate)),
		Model:  req.Model,
		Type:   req.Type,
		Color:  req.Color,
	}

	if err := cc.DB.Create(&car).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("plate already registered"))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Vehicle registered", car)
}

// UpdateCar edits one of the caller's vehicles.
func (cc *CarController) UpdateCar(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var car models.Car
	err := cc.DB.Where("id = ? AND user_id = ?", c.Param("car_id"), actor.UserID).
		First(&car).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var req struct {
		Model *string `json:"model"`
		Type  *string `json:"type" binding:"omitempty,oneof=auto moto camioneta"`
		Color *string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	if req.Model != nil {
		car.Model = *req.Model
	}
	if req.Type != nil {
		car.Type = *req.Type
	}
	if req.Color != nil {
		car.Color = *req.Color
	}

	if err := cc.DB.Save(&car).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Vehicle updated", car)
}

// DeleteCar removes a vehicle with no active reservation.
func (cc *CarController) DeleteCar(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var car models.Car
	err := cc.DB.Where("id = ? AND user_id = ?", c.Param("car_id"), actor.UserID).
		First(&car).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var active int64
	cc.DB.Model(&models.Reservation{}).
		Where("car_id = ? AND status = ?", car.ID, models.ReservationStatusActive).
		Count(&active)
	if active > 0 {
		utils.RespondError(c, http.StatusConflict,
			errors.New("vehicle has an active reservation"))
		return
	}

	if err := cc.DB.Delete(&car).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Vehicle deleted", gin.H{"car_id": car.ID})
}
