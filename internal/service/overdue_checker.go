package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// NATS subject for overdue checkpoint alerts
const SubjectOverdueAlert = "patrol.alert.OVERDUE"

// OverdueSnapshot is the periodic alert evaluation for one service.
type OverdueSnapshot struct {
	ServiceID   uint          `json:"service_id"`
	ServiceName string        `json:"service_name"`
	Alerts      []model.Alert `json:"alerts"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// OverdueChecker periodically evaluates overdue alerts per active service,
// publishes snapshots to NATS and caches them in Redis for quick dashboard
// reads.
type OverdueChecker struct {
	db       *gorm.DB
	redis    *redis.Client
	nats     *nats.Conn
	engine   *AlertEngine
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewOverdueChecker creates a new overdue checker. redisClient and natsConn
// may be nil; the corresponding outputs are then skipped.
func NewOverdueChecker(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, engine *AlertEngine, interval time.Duration) *OverdueChecker {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &OverdueChecker{
		db:       db,
		redis:    redisClient,
		nats:     natsConn,
		engine:   engine,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the background evaluation loop.
func (c *OverdueChecker) Start() {
	log.Printf("[OverdueChecker] Starting, interval %s", c.interval)
	go c.run()
}

// Stop stops the checker.
func (c *OverdueChecker) Stop() {
	c.cancel()
	log.Println("[OverdueChecker] Stopped")
}

func (c *OverdueChecker) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Evaluate once at startup so dashboards have data immediately.
	c.CheckAllServices()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CheckAllServices()
		}
	}
}

// CheckAllServices evaluates alerts for every active service.
func (c *OverdueChecker) CheckAllServices() {
	var services []model.Service
	if err := c.db.WithContext(c.ctx).Where("active = ?", true).Find(&services).Error; err != nil {
		log.Printf("[OverdueChecker] Failed to load services: %v", err)
		return
	}

	for i := range services {
		if err := c.checkService(&services[i]); err != nil {
			log.Printf("[OverdueChecker] Error checking service %d: %v", services[i].ID, err)
		}
	}
}

// checkService evaluates one service and fans the snapshot out.
func (c *OverdueChecker) checkService(service *model.Service) error {
	serviceID := service.ID
	alerts, err := c.engine.ComputeForScope(c.ctx, &serviceID)
	if err != nil {
		return err
	}

	snapshot := OverdueSnapshot{
		ServiceID:   serviceID,
		ServiceName: service.Name,
		Alerts:      alerts,
		EvaluatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	c.cacheSnapshot(serviceID, data)

	if len(alerts) == 0 {
		return nil
	}

	if c.nats != nil {
		if err := c.nats.Publish(SubjectOverdueAlert, data); err != nil {
			return fmt.Errorf("failed to publish alerts: %v", err)
		}
		// Also publish to a service-specific subject
		serviceSubject := fmt.Sprintf("%s.%d", SubjectOverdueAlert, serviceID)
		c.nats.Publish(serviceSubject, data)
	}

	log.Printf("[OverdueChecker] Service '%s': %d overdue checkpoint(s)", service.Name, len(alerts))
	return nil
}

// cacheSnapshot stores the latest snapshot in Redis.
func (c *OverdueChecker) cacheSnapshot(serviceID uint, data []byte) {
	if c.redis == nil {
		return
	}

	key := fmt.Sprintf("patrol:alerts:%d", serviceID)
	c.redis.Set(c.ctx, key, data, 24*time.Hour)

	listKey := "patrol:alerts:recent"
	c.redis.LPush(c.ctx, listKey, data)
	c.redis.LTrim(c.ctx, listKey, 0, 99) // Keep last 100 snapshots
}

// CachedSnapshot returns the last cached snapshot for a service, if any.
func (c *OverdueChecker) CachedSnapshot(ctx context.Context, serviceID uint) (*OverdueSnapshot, error) {
	if c.redis == nil {
		return nil, nil
	}

	key := fmt.Sprintf("patrol:alerts:%d", serviceID)
	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot OverdueSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
