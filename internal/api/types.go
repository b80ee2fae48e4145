package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dropit-app/dropit/internal/geo"
)

// Backend timestamps are zone-less local date-times.
const localDateTimeLayout = "2006-01-02T15:04:05"

// Coordinate is a latitude or longitude as sent by the backend. Numbers,
// numeric strings and null all decode; anything unparseable leaves Valid
// false instead of failing the whole payload.
type Coordinate struct {
	Value float64
	Valid bool
}

// Coord returns a valid Coordinate.
func Coord(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	*c = Coordinate{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*c = Coord(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'f', -1, 64)), nil
}

// Marker mirrors MarkerResponse.
type Marker struct {
	ID             int64      `json:"id"`
	Latitude       Coordinate `json:"latitude"`
	Longitude      Coordinate `json:"longitude"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	CreatedByEmail string     `json:"createdByEmail"`
	CreatedByName  string     `json:"createdByName"`
	CreatedAt      string     `json:"createdAt"`
	UpdatedAt      string     `json:"updatedAt"`
}

// Point returns the marker position, reporting false when either coordinate
// is missing or out of range.
func (m Marker) Point() (geo.Point, bool) {
	if !m.Latitude.Valid || !m.Longitude.Valid {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: m.Latitude.Value, Lng: m.Longitude.Value}
	return p, geo.Valid(p)
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (m Marker) ParsedCreatedAt() time.Time {
	return parseTime(m.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (m Marker) ParsedUpdatedAt() time.Time {
	return parseTime(m.UpdatedAt)
}

// MarkerInput is the create/update payload.
type MarkerInput struct {
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Title       string  `json:"title" validate:"max=100"`
	Description string  `json:"description" validate:"required,max=500"`
	Category    string  `json:"category,omitempty" validate:"omitempty,max=30"`
}

// Page mirrors PagedResponse.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// PageQuery configures paged listings. Zero values take the backend
// defaults: page 0, size 10, sorted by createdAt descending.
type PageQuery struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// User mirrors UserResponse.
type User struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	AgreeToMarketing bool   `json:"agreeToMarketing"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// Credentials is the login payload.
type Credentials struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// Registration is the sign-up payload.
type Registration struct {
	Name             string `json:"name" validate:"required,min=2,max=50"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8,max=100"`
	Phone            string `json:"phone,omitempty" validate:"omitempty,startswith=010-,len=13"`
	AgreeToMarketing bool   `json:"agreeToMarketing"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token   string `json:"token"`
	User    *User  `json:"user"`
	Message string `json:"message"`
}

// TokenResponse is returned by POST /auth/refresh.
type TokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// RegisterResponse is returned by POST /auth/register.
type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// EmailCheck is returned by GET /auth/check-email.
type EmailCheck struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	// LocalDateTime may carry fractional seconds of any precision.
	base, _, _ := strings.Cut(value, ".")
	if t, err := time.ParseInLocation(localDateTimeLayout, base, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
