package model

import (
	"time"
)

// Role represents a user's role in the system.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Specialty is a medical specialty a doctor can be assigned to.
type Specialty string

const (
	SpecialtyGeneralMedicine  Specialty = "General Medicine"
	SpecialtyCardiology       Specialty = "Cardiology"
	SpecialtyDermatology      Specialty = "Dermatology"
	SpecialtyEndocrinology    Specialty = "Endocrinology"
	SpecialtyGastroenterology Specialty = "Gastroenterology"
	SpecialtyGynecology       Specialty = "Gynecology"
	SpecialtyNeurology        Specialty = "Neurology"
	SpecialtyPediatrics       Specialty = "Pediatrics"
	SpecialtyPsychiatry       Specialty = "Psychiatry"
	SpecialtyTraumatology     Specialty = "Traumatology"
	SpecialtyUrology          Specialty = "Urology"
)

// Specialties lists every valid specialty.
var Specialties = []Specialty{
	SpecialtyGeneralMedicine,
	SpecialtyCardiology,
	SpecialtyDermatology,
	SpecialtyEndocrinology,
	SpecialtyGastroenterology,
	SpecialtyGynecology,
	SpecialtyNeurology,
	SpecialtyPediatrics,
	SpecialtyPsychiatry,
	SpecialtyTraumatology,
	SpecialtyUrology,
}

func (s Specialty) Valid() bool {
	for _, known := range Specialties {
		if s == known {
			return true
		}
	}
	return false
}

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents an entry in the user directory: patients, doctors
// and administrators share the same record shape. Password is the
// inbound plaintext on create and is never persisted or serialized
// back; PasswordHash never crosses the API boundary.
type User struct {
	ID           int64      `json:"id" db:"id"`
	DocNumber    int64      `json:"doc_number" db:"doc_number"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	Password     string     `json:"-" db:"-"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	Specialty    *Specialty `json:"specialty,omitempty" db:"specialty"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Sanitize strips secret-bearing fields before the record crosses the
// service boundary.
func (u *User) Sanitize() *User {
	if u == nil {
		return nil
	}
	u.Password = ""
	u.PasswordHash = ""
	return u
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	DocNumber int64      `json:"doc_number" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required,min=8"`
	Role      Role       `json:"role" binding:"required,oneof=PATIENT DOCTOR ADMIN"`
	Specialty *Specialty `json:"specialty" binding:"omitempty,specialty"`
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	Name      *string    `json:"name"`
	Email     *string    `json:"email" binding:"omitempty,email"`
	Specialty *Specialty `json:"specialty" binding:"omitempty,specialty"`
	Status    *string    `json:"status" binding:"omitempty,oneof=active inactive"`
}

// LoginRequest carries credentials for token issuance.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenClaims is the authenticated actor context extracted from a JWT.
type TokenClaims struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}
