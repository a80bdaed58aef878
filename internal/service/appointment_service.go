package service

import (
	"context"
	"fmt"
	"time"

	"salonsystem/internal/model"
	"salonsystem/internal/repository"

	"gorm.io/gorm"
)

type AppointmentService struct {
	db              *gorm.DB
	appointmentRepo *repository.AppointmentRepository
	memberRepo      *repository.MemberRepository
}

func NewAppointmentService(db *gorm.DB) *AppointmentService {
	return &AppointmentService{
		db:              db,
		appointmentRepo: repository.NewAppointmentRepository(db),
		memberRepo:      repository.NewMemberRepository(db),
	}
}

type CreateAppointmentRequest struct {
	MemberID      *int64    `json:"member_id"`
	StaffID       int64     `json:"staff_id" binding:"required"`
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerPhone string    `json:"customer_phone" binding:"required"`
	GuestCount    int       `json:"guest_count"`
	MaleGuests    int       `json:"male_guests"`
	FemaleGuests  int       `json:"female_guests"`
	ServiceName   string    `json:"service_name" binding:"required"`
	Duration      int       `json:"duration" binding:"required,gt=0"`
	StartTime     time.Time `json:"start_time" binding:"required"`
	Source        string    `json:"source"`
	Notes         string    `json:"notes"`
}

func (s *AppointmentService) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*model.Appointment, error) {
	if _, err := s.appointmentRepo.GetStaffByID(ctx, req.StaffID); err != nil {
		return nil, err
	}
	if req.MemberID != nil {
		if _, err := s.memberRepo.GetByID(ctx, *req.MemberID); err != nil {
			return nil, err
		}
	}

	endTime := req.StartTime.Add(time.Duration(req.Duration) * time.Minute)

	conflicts, err := s.appointmentRepo.FindConflicts(ctx, req.StaffID, req.StartTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("查询预约冲突失败: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, ErrAppointmentConflict
	}

	guestCount := req.GuestCount
	if guestCount <= 0 {
		guestCount = 1
	}
	source := req.Source
	if source == "" {
		source = model.OrderSourceManual
	}

	appointment := &model.Appointment{
		MemberID:      req.MemberID,
		StaffID:       req.StaffID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		GuestCount:    guestCount,
		MaleGuests:    req.MaleGuests,
		FemaleGuests:  req.FemaleGuests,
		ServiceName:   req.ServiceName,
		Duration:      req.Duration,
		StartTime:     req.StartTime,
		EndTime:       endTime,
		Status:        model.AppointmentStatusPending,
		Source:        source,
		Notes:         req.Notes,
	}

	if err := s.appointmentRepo.Create(ctx, appointment); err != nil {
		return nil, fmt.Errorf("创建预约失败: %w", err)
	}

	return appointment, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	return s.appointmentRepo.GetByID(ctx, id)
}

func (s *AppointmentService) ListAppointments(ctx context.Context, filter repository.AppointmentListFilter, page, pageSize int) ([]*model.Appointment, int64, error) {
	return s.appointmentRepo.List(ctx, filter, page, pageSize)
}

// UpdateStatus 预约状态流转（到店、开始服务、取消等）
// 结算完成的状态翻转不走这里，由订单结算在事务内处理
func (s *AppointmentService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Appointment, error) {
	if !model.IsValidAppointmentStatus(status) {
		return nil, ErrInvalidStatus
	}
	if _, err := s.appointmentRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.appointmentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, err
	}
	return s.appointmentRepo.GetByID(ctx, id)
}
