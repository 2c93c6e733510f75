package model

import "errors"

type LoginRequest struct {
	EmployeeNumber string `json:"employeeNumber" binding:"required"`
	Password       string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token  string  `json:"token"`
	Doctor *Doctor `json:"doctor"`
}

var ErrInvalidCredentials = errors.New("invalid credentials")
