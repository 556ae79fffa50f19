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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInstallmentService implements InstallmentService for testing
type MockInstallmentService struct {
	mock.Mock
}

func (m *MockInstallmentService) planResult(args mock.Arguments) (*apppayment.InstallmentPlanResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.InstallmentPlanResponse), args.Error(1)
}

func (m *MockInstallmentService) CreateInstallmentPlan(ctx context.Context, req apppayment.CreateInstallmentPlanRequest, actor audit.Actor) (*apppayment.InstallmentPlanResponse, error) {
	return m.planResult(m.Called(ctx, req, actor))
}

func (m *MockInstallmentService) ResumeInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error) {
	return m.planResult(m.Called(ctx, id))
}

func (m *MockInstallmentService) CancelInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error) {
	return m.planResult(m.Called(ctx, id))
}

func (m *MockInstallmentService) GetInstallmentPlan(ctx context.Context, id uuid.UUID) (*apppayment.InstallmentPlanResponse, error) {
	return m.planResult(m.Called(ctx, id))
}

func (m *MockInstallmentService) ListInstallmentPlans(ctx context.Context, filter apppayment.InstallmentPlanListFilter) (*shared.Paginated[apppayment.InstallmentPlanResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[apppayment.InstallmentPlanResponse]), args.Error(1)
}

func (m *MockInstallmentService) ProcessInstallmentPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.BatchResult), args.Error(1)
}

func setupInstallmentRouter(svc *MockInstallmentService) *gin.Engine {
	h := NewInstallmentHandler(svc)
	h.now = func() time.Time { return fixedNow }
	r := newTestEngine()
	r.POST("/installment-plans", h.Create)
	r.GET("/installment-plans", h.List)
	r.POST("/installment-plans/process", h.Process)
	r.GET("/installment-plans/:id", h.Get)
	r.POST("/installment-plans/:id/resume", h.Resume)
	r.POST("/installment-plans/:id/cancel", h.Cancel)
	return r
}

func samplePlanResponse(status string) *apppayment.InstallmentPlanResponse {
	next := fixedNow.AddDate(0, 1, 0)
	return &apppayment.InstallmentPlanResponse{
		ID:                    uuid.New(),
		MemberID:              uuid.New(),
		TotalAmount:           decimal.NewFromInt(300),
		NumberOfInstallments:  3,
		InstallmentAmount:     decimal.NewFromInt(100),
		StartDate:             fixedNow,
		RemainingInstallments: 3,
		NextDueDate:           &next,
		Status:                status,
	}
}

func TestInstallmentHandler_Create(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)
	memberID := uuid.New()

	svc.On("CreateInstallmentPlan", mock.Anything, mock.MatchedBy(func(req apppayment.CreateInstallmentPlanRequest) bool {
		return req.MemberID == memberID && req.NumberOfInstallments == 3 && req.InstallmentAmount == nil &&
			req.DueDayOfMonth != nil && *req.DueDayOfMonth == 15
	}), mock.MatchedBy(actorIsTestUser)).Return(samplePlanResponse("ACTIVE"), nil)

	w := performRequest(t, r, http.MethodPost, "/installment-plans", map[string]any{
		"memberId":             memberID,
		"totalAmount":          "300",
		"numberOfInstallments": 3,
		"startDate":            fixedNow,
		"dueDayOfMonth":        15,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestInstallmentHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"zero installments", map[string]any{"memberId": uuid.New(), "totalAmount": "300", "numberOfInstallments": 0, "startDate": fixedNow}, "numberOfInstallments"},
		{"due day out of range", map[string]any{"memberId": uuid.New(), "totalAmount": "300", "numberOfInstallments": 3, "startDate": fixedNow, "dueDayOfMonth": 32}, "dueDayOfMonth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInstallmentService)
			r := setupInstallmentRouter(svc)

			w := performRequest(t, r, http.MethodPost, "/installment-plans", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotEmpty(t, resp.Error.Details)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
		})
	}
}

func TestInstallmentHandler_Create_AmountMismatch(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)

	svc.On("CreateInstallmentPlan", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, shared.NewValidationError("installments do not add up to the total amount"))

	w := performRequest(t, r, http.MethodPost, "/installment-plans", map[string]any{
		"memberId":             uuid.New(),
		"totalAmount":          "300",
		"numberOfInstallments": 3,
		"installmentAmount":    "90",
		"startDate":            fixedNow,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeResponse(t, w).Error.Message, "do not add up")
}

func TestInstallmentHandler_ListAndGet(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)
	plan := samplePlanResponse("OVERDUE")
	page := shared.NewPaginated([]apppayment.InstallmentPlanResponse{*plan}, 1, 1, 20)

	svc.On("ListInstallmentPlans", mock.Anything, mock.MatchedBy(func(f apppayment.InstallmentPlanListFilter) bool {
		return f.Status == "OVERDUE"
	})).Return(&page, nil)
	svc.On("GetInstallmentPlan", mock.Anything, plan.ID).Return(plan, nil)

	w := performRequest(t, r, http.MethodGet, "/installment-plans?status=OVERDUE", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(t, r, http.MethodGet, "/installment-plans/"+plan.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got apppayment.InstallmentPlanResponse
	decodeData(t, decodeResponse(t, w), &got)
	assert.Equal(t, "OVERDUE", got.Status)
	svc.AssertExpectations(t)
}

func TestInstallmentHandler_Resume(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)
	plan := samplePlanResponse("ACTIVE")

	svc.On("ResumeInstallmentPlan", mock.Anything, plan.ID).Return(plan, nil)

	w := performRequest(t, r, http.MethodPost, "/installment-plans/"+plan.ID.String()+"/resume", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Installment plan resumed", decodeResponse(t, w).Message)
}

func TestInstallmentHandler_Cancel_Completed(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)
	id := uuid.New()

	svc.On("CancelInstallmentPlan", mock.Anything, id).
		Return(nil, shared.NewDomainError("INVALID_STATE", "installment plan is already completed"))

	w := performRequest(t, r, http.MethodPost, "/installment-plans/"+id.String()+"/cancel", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInstallmentHandler_Process_Locked(t *testing.T) {
	svc := new(MockInstallmentService)
	r := setupInstallmentRouter(svc)

	svc.On("ProcessInstallmentPayments", mock.Anything, fixedNow).
		Return(&apppayment.BatchResult{Job: apppayment.JobInstallments, Locked: true}, nil)

	w := performRequest(t, r, http.MethodPost, "/installment-plans/process", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got apppayment.BatchResult
	decodeData(t, decodeResponse(t, w), &got)
	assert.True(t, got.Locked)
	assert.Equal(t, apppayment.JobInstallments, got.Job)
}
