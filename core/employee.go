package core

import (
	"errors"

	"gorm.io/gorm"
)

type Employee struct {
	EmployeeID uint   `gorm:"primaryKey;autoIncrement"`
	Code       string `gorm:"size:32;uniqueIndex"`
	FirstName  string
	Surname    string
	Email      *string `gorm:"index"`
	Status     string  `gorm:"size:16;default:active"`
}

func (Employee) TableName() string {
	return "employees"
}

func FindEmployeeByCode(db *gorm.DB, code string) (*Employee, error) {
	var emp Employee
	result := db.Where("code = ?", code).First(&emp)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil // not found
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &emp, nil
}

func FindEmployeeByEmail(db *gorm.DB, email string) (*Employee, error) {
	var emp Employee
	result := db.Where("email = ?", email).First(&emp)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &emp, nil
}
