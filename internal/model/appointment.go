package model

import (
	"time"
)

const (
	AppointmentStatusPending   = "PENDING"
	AppointmentStatusConfirmed = "CONFIRMED"
	AppointmentStatusArrived   = "ARRIVED"
	AppointmentStatusInService = "IN_SERVICE"
	AppointmentStatusCompleted = "COMPLETED" // 订单结算成功时自动置为完成
	AppointmentStatusCancelled = "CANCELLED"
	AppointmentStatusOverdue   = "OVERDUE" // 超过结束时间仍未到店，由后台任务标记
)

func IsValidAppointmentStatus(status string) bool {
	switch status {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusArrived,
		AppointmentStatusInService, AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusOverdue:
		return true
	}
	return false
}

// Appointment 预约表
// 结算核心只在订单支付成功时把预约置为 COMPLETED，其余状态流转属于预约管理
type Appointment struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID      *int64     `gorm:"index" json:"member_id"` // 非会员预约为空
	StaffID       int64      `gorm:"index;not null" json:"staff_id"`
	CustomerName  string     `gorm:"type:varchar(64);not null" json:"customer_name"`
	CustomerPhone string     `gorm:"type:varchar(16);not null" json:"customer_phone"`
	GuestCount    int        `gorm:"not null;default:1" json:"guest_count"`
	MaleGuests    int        `gorm:"not null;default:0" json:"male_guests"`
	FemaleGuests  int        `gorm:"not null;default:0" json:"female_guests"`
	ServiceName   string     `gorm:"type:varchar(64);not null" json:"service_name"`
	Duration      int        `gorm:"not null" json:"duration"` // 时长（分钟）
	StartTime     time.Time  `gorm:"index;not null" json:"start_time"`
	EndTime       time.Time  `gorm:"not null" json:"end_time"`
	Status        string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	Source        string     `gorm:"type:varchar(16);not null;default:MANUAL" json:"source"`
	Notes         string     `gorm:"type:varchar(512)" json:"notes"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointment"
}

// Staff 员工表
type Staff struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"phone"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Staff) TableName() string {
	return "staff"
}
