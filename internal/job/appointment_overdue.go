package job

import (
	"context"
	"log"
	"time"

	"salonsystem/internal/config"
	"salonsystem/internal/model"
	"salonsystem/internal/repository"

	"gorm.io/gorm"
)

// AppointmentOverdueJob 定时将超过宽限期仍未开始服务的预约标记为 OVERDUE
type AppointmentOverdueJob struct {
	db              *gorm.DB
	appointmentRepo *repository.AppointmentRepository
	cfg             *config.Config
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewAppointmentOverdueJob(db *gorm.DB, cfg *config.Config) *AppointmentOverdueJob {
	interval := time.Duration(cfg.Business.OverdueSweepSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &AppointmentOverdueJob{
		db:              db,
		appointmentRepo: repository.NewAppointmentRepository(db),
		cfg:             cfg,
		stopCh:          make(chan struct{}),
		interval:        interval,
		batchSize:       100,
	}
}

func (j *AppointmentOverdueJob) Start(ctx context.Context) {
	log.Println("[AppointmentOverdueJob] 预约超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AppointmentOverdueJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[AppointmentOverdueJob] 任务停止")
			return
		case <-ticker.C:
			j.markOverdueAppointments(ctx)
		}
	}
}

func (j *AppointmentOverdueJob) Stop() {
	close(j.stopCh)
}

func (j *AppointmentOverdueJob) markOverdueAppointments(ctx context.Context) {
	grace := time.Duration(j.cfg.Business.OverdueGraceMinutes) * time.Minute
	before := time.Now().Add(-grace)

	appointments, err := j.appointmentRepo.GetOverdueAppointments(ctx, before, j.batchSize)
	if err != nil {
		log.Printf("[AppointmentOverdueJob] 查询超时预约失败: %v", err)
		return
	}

	if len(appointments) == 0 {
		return
	}

	log.Printf("[AppointmentOverdueJob] 发现 %d 个超时预约", len(appointments))

	markedCount := 0
	for _, appointment := range appointments {
		err := j.appointmentRepo.UpdateStatus(ctx, nil, appointment.ID, model.AppointmentStatusOverdue)
		if err != nil {
			log.Printf("[AppointmentOverdueJob] 标记预约超时失败: id=%d, err=%v", appointment.ID, err)
			continue
		}
		markedCount++
		log.Printf("[AppointmentOverdueJob] 预约已标记超时: id=%d, customer=%s, startTime=%s",
			appointment.ID, appointment.CustomerName, appointment.StartTime.Format("2006-01-02 15:04"))
	}

	log.Printf("[AppointmentOverdueJob] 本次标记 %d 个超时预约", markedCount)
}
