// pkg/models/api.go
package models

// Laravel-style validation error response
type ValidationErrorResponse struct {
	Success bool                `json:"success" example:"false"`
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// Generic error response (400/403/404/409/500)
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Forbidden"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
}

// MessageResponse acknowledges an operation with no body.
type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Property deleted"`
}

// ContractResponse wraps a single contract.
type ContractResponse struct {
	Success  bool      `json:"success" example:"true"`
	Contract *Contract `json:"contract"`
}

// ContractListResponse wraps a page of contracts.
type ContractListResponse struct {
	Success   bool       `json:"success" example:"true"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
	Total     int64      `json:"total"`
	Pages     int        `json:"pages"`
	Contracts []Contract `json:"contracts"`
}

// BookingResponse wraps a single booking.
type BookingResponse struct {
	Success bool     `json:"success" example:"true"`
	Booking *Booking `json:"booking"`
}

// BookingListResponse wraps a page of bookings.
type BookingListResponse struct {
	Success  bool      `json:"success" example:"true"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Total    int64     `json:"total"`
	Pages    int       `json:"pages"`
	Bookings []Booking `json:"bookings"`
}
