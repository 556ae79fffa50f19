package handler

import "github.com/gym/backend/internal/interfaces/http/dto"

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	IsSuccess bool           `json:"isSuccess" example:"true"`
	Message   string         `json:"message,omitempty"`
	Data      T              `json:"data,omitempty"`
	Error     *dto.ErrorInfo `json:"error,omitempty"`
}

// PaginatedResponse represents a paginated list response for OpenAPI documentation
// @Description Standard list response with pagination
type PaginatedResponse[T any] struct {
	IsSuccess  bool            `json:"isSuccess" example:"true"`
	Data       []T             `json:"data"`
	Pagination *dto.Pagination `json:"pagination"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	IsSuccess bool           `json:"isSuccess" example:"false"`
	Message   string         `json:"message"`
	Error     *dto.ErrorInfo `json:"error"`
}

// SuccessResponse represents a success response without data
// @Description Simple success response
type SuccessResponse struct {
	IsSuccess bool   `json:"isSuccess" example:"true"`
	Message   string `json:"message"`
}
