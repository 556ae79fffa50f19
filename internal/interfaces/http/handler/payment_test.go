package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPaymentService implements PaymentService for testing
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, req apppayment.CreatePaymentRequest, actor audit.Actor) (*apppayment.PaymentResponse, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) UpdatePayment(ctx context.Context, id uuid.UUID, req apppayment.UpdatePaymentRequest, actor audit.Actor) (*apppayment.PaymentResponse, error) {
	args := m.Called(ctx, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) DeletePayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) error {
	return m.Called(ctx, id, reason, actor).Error(0)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id uuid.UUID, actor audit.Actor) (*apppayment.PaymentResponse, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, filter apppayment.PaymentListFilter) (*shared.Paginated[apppayment.PaymentResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[apppayment.PaymentResponse]), args.Error(1)
}

func (m *MockPaymentService) GetMemberPayments(ctx context.Context, memberID uuid.UUID) ([]apppayment.PaymentResponse, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*apppayment.PaymentResponse, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*apppayment.PaymentResponse, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) CreateInvoice(ctx context.Context, paymentID uuid.UUID) (*apppayment.Invoice, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.Invoice), args.Error(1)
}

func (m *MockPaymentService) RenderInvoicePDF(ctx context.Context, paymentID uuid.UUID) (*apppayment.Invoice, []byte, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*apppayment.Invoice), args.Get(1).([]byte), args.Error(2)
}

func (m *MockPaymentService) GetReport(ctx context.Context, year int) (*apppayment.ReportResponse, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.ReportResponse), args.Error(1)
}

func setupPaymentRouter(svc *MockPaymentService) *gin.Engine {
	h := NewPaymentHandler(svc)
	r := newTestEngine()
	r.POST("/payments", h.Create)
	r.GET("/payments", h.List)
	r.GET("/payments/member/:memberId", h.ListByMember)
	r.GET("/payments/:id", h.Get)
	r.PUT("/payments/:id", h.Update)
	r.DELETE("/payments/:id", h.Delete)
	r.POST("/payments/:id/refund", h.Refund)
	r.POST("/payments/:id/cancel", h.Cancel)
	r.POST("/invoices", h.CreateInvoice)
	r.GET("/invoices/:paymentId/pdf", h.InvoicePDF)
	r.GET("/reports", h.Report)
	return r
}

func samplePaymentResponse(status string) *apppayment.PaymentResponse {
	return &apppayment.PaymentResponse{
		ID:          uuid.New(),
		MemberID:    uuid.New(),
		Amount:      decimal.RequireFromString("49.99"),
		Method:      "CARD",
		Status:      status,
		Currency:    "USD",
		TotalAmount: decimal.RequireFromString("49.99"),
		PaymentDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func actorIsTestUser(actor audit.Actor) bool {
	return actor.UserID != nil && *actor.UserID == testUserID
}

func TestPaymentHandler_Create(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	memberID := uuid.New()
	created := samplePaymentResponse("COMPLETED")

	svc.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req apppayment.CreatePaymentRequest) bool {
		return req.MemberID == memberID && req.Amount.Equal(decimal.RequireFromString("49.99")) && req.Currency == "EUR"
	}), mock.MatchedBy(actorIsTestUser)).Return(created, nil)

	w := performRequest(t, r, http.MethodPost, "/payments", map[string]any{
		"memberId": memberID,
		"amount":   "49.99",
		"method":   "CARD",
		"status":   "COMPLETED",
		"currency": "EUR",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.IsSuccess)
	var got apppayment.PaymentResponse
	decodeData(t, resp, &got)
	assert.Equal(t, created.ID, got.ID)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{"missing member", map[string]any{"amount": "10", "method": "CARD"}, "memberId"},
		{"unsupported currency", map[string]any{"memberId": uuid.New(), "amount": "10", "method": "CARD", "currency": "JPY"}, "currency"},
		{"unknown status", map[string]any{"memberId": uuid.New(), "amount": "10", "method": "CARD", "status": "SETTLED"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			r := setupPaymentRouter(svc)

			w := performRequest(t, r, http.MethodPost, "/payments", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			var fields []string
			for _, d := range resp.Error.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.wantField)
			svc.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentHandler_Create_MalformedJSON(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)

	w := performRequest(t, r, http.MethodPost, "/payments", `{"memberId":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "body", resp.Error.Details[0].Field)
}

func TestPaymentHandler_Create_MemberNotFound(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	svc.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(nil, shared.NewNotFoundError("member"))

	w := performRequest(t, r, http.MethodPost, "/payments", map[string]any{
		"memberId": uuid.New(),
		"amount":   "10",
		"method":   "CASH",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "member not found", decodeResponse(t, w).Error.Message)
}

func TestPaymentHandler_List(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	memberID := uuid.New()
	page := shared.NewPaginated([]apppayment.PaymentResponse{*samplePaymentResponse("PENDING")}, 41, 2, 20)

	svc.On("ListPayments", mock.Anything, mock.MatchedBy(func(f apppayment.PaymentListFilter) bool {
		return f.Page == 2 && f.PageSize == 20 && f.Status == "PENDING" &&
			f.MemberID != nil && *f.MemberID == memberID &&
			f.StartDate != nil && f.StartDate.Format("2006-01-02") == "2026-01-01"
	})).Return(&page, nil)

	w := performRequest(t, r, http.MethodGet,
		"/payments?page=2&pageSize=20&status=PENDING&startDate=2026-01-01&memberId="+memberID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, int64(41), resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	var items []apppayment.PaymentResponse
	decodeData(t, resp, &items)
	assert.Len(t, items, 1)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_List_InvalidFilter(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)

	w := performRequest(t, r, http.MethodGet, "/payments?pageSize=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(t, r, http.MethodGet, "/payments?orderBy=member_id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNotCalled(t, "ListPayments", mock.Anything, mock.Anything)
}

func TestPaymentHandler_Get(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	p := samplePaymentResponse("COMPLETED")

	svc.On("GetPayment", mock.Anything, p.ID, mock.MatchedBy(actorIsTestUser)).Return(p, nil)

	w := performRequest(t, r, http.MethodGet, "/payments/"+p.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Get_InvalidID(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)

	w := performRequest(t, r, http.MethodGet, "/payments/42", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHandler_Update(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	p := samplePaymentResponse("COMPLETED")

	svc.On("UpdatePayment", mock.Anything, p.ID, mock.MatchedBy(func(req apppayment.UpdatePaymentRequest) bool {
		return req.Status != nil && *req.Status == "COMPLETED" && req.Reason == "settled at desk" && req.Amount == nil
	}), mock.Anything).Return(p, nil)

	w := performRequest(t, r, http.MethodPut, "/payments/"+p.ID.String(), map[string]any{
		"status": "COMPLETED",
		"reason": "settled at desk",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment updated successfully", decodeResponse(t, w).Message)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Update_InvalidState(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	id := uuid.New()

	svc.On("UpdatePayment", mock.Anything, id, mock.Anything, mock.Anything).
		Return(nil, shared.NewDomainError("INVALID_STATE", "cannot change a refunded payment"))

	w := performRequest(t, r, http.MethodPut, "/payments/"+id.String(), map[string]any{"description": "x"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPaymentHandler_Delete(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	id := uuid.New()

	svc.On("DeletePayment", mock.Anything, id, "duplicate entry", mock.Anything).Return(nil)

	w := performRequest(t, r, http.MethodDelete, "/payments/"+id.String()+"?reason=duplicate+entry", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_ListByMember(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	memberID := uuid.New()

	svc.On("GetMemberPayments", mock.Anything, memberID).Return([]apppayment.PaymentResponse{}, nil)

	w := performRequest(t, r, http.MethodGet, "/payments/member/"+memberID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(decodeResponse(t, w).Data))
}

func TestPaymentHandler_Refund(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	p := samplePaymentResponse("REFUNDED")

	svc.On("RefundPayment", mock.Anything, p.ID, "member moved away", mock.MatchedBy(actorIsTestUser)).Return(p, nil)

	w := performRequest(t, r, http.MethodPost, "/payments/"+p.ID.String()+"/refund", map[string]any{"reason": "member moved away"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Cancel_WithoutBody(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	p := samplePaymentResponse("CANCELLED")

	svc.On("CancelPayment", mock.Anything, p.ID, "", mock.Anything).Return(p, nil)

	w := performRequest(t, r, http.MethodPost, "/payments/"+p.ID.String()+"/cancel", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment cancelled successfully", decodeResponse(t, w).Message)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Refund_NotCompleted(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	id := uuid.New()

	svc.On("RefundPayment", mock.Anything, id, "", mock.Anything).Return(nil, shared.ErrInvalidState)

	w := performRequest(t, r, http.MethodPost, "/payments/"+id.String()+"/refund", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestPaymentHandler_CreateInvoice(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	paymentID := uuid.New()
	inv := &apppayment.Invoice{Number: "INV-20260301-ABCDEF12", PaymentID: paymentID, Total: decimal.NewFromInt(50)}

	svc.On("CreateInvoice", mock.Anything, paymentID).Return(inv, nil)

	w := performRequest(t, r, http.MethodPost, "/invoices", map[string]any{"paymentId": paymentID})

	assert.Equal(t, http.StatusCreated, w.Code)
	var got apppayment.Invoice
	decodeData(t, decodeResponse(t, w), &got)
	assert.Equal(t, inv.Number, got.Number)
}

func TestPaymentHandler_InvoicePDF(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	paymentID := uuid.New()
	inv := &apppayment.Invoice{Number: "INV-20260301-ABCDEF12", PaymentID: paymentID}

	svc.On("RenderInvoicePDF", mock.Anything, paymentID).Return(inv, []byte("%PDF-1.7 test"), nil)

	w := performRequest(t, r, http.MethodGet, "/invoices/"+paymentID.String()+"/pdf", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="INV-20260301-ABCDEF12.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7 test", w.Body.String())
}

func TestPaymentHandler_InvoicePDF_RendererUnavailable(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	paymentID := uuid.New()

	svc.On("RenderInvoicePDF", mock.Anything, paymentID).Return(nil, nil, apppayment.ErrInvoiceRendererUnavailable)

	w := performRequest(t, r, http.MethodGet, "/invoices/"+paymentID.String()+"/pdf", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPaymentHandler_Report(t *testing.T) {
	svc := new(MockPaymentService)
	r := setupPaymentRouter(svc)
	report := &apppayment.ReportResponse{Year: 2025, TotalRevenue: decimal.NewFromInt(1200)}

	svc.On("GetReport", mock.Anything, 2025).Return(report, nil)
	svc.On("GetReport", mock.Anything, 0).Return(&apppayment.ReportResponse{Year: 2026}, nil)

	w := performRequest(t, r, http.MethodGet, "/reports?year=2025", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got apppayment.ReportResponse
	decodeData(t, decodeResponse(t, w), &got)
	assert.Equal(t, 2025, got.Year)
	assert.True(t, got.TotalRevenue.Equal(decimal.NewFromInt(1200)))

	w = performRequest(t, r, http.MethodGet, "/reports", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(t, r, http.MethodGet, "/reports?year=last", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}
