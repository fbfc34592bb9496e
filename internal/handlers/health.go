package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flash-promo-service/internal/scheduler"

	"github.com/IBM/sarama"
)

// KafkaChecker проверяет доступность брокеров
type KafkaChecker func(brokers []string) error

// HealthHandler отдаёт состояние хранилищ, схемы и планировщика.
type HealthHandler struct {
	db           DBHealth
	redisClient  RedisHealth
	kafkaBrokers []string
	checkKafka   KafkaChecker

	scheduler        SchedulerState
	schedulerEnabled bool
}

// NewHealthHandler создает новый обработчик здоровья. checkKafka == nil отключает проверку брокеров.
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, checkKafka KafkaChecker) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redisClient:  redisClient,
		kafkaBrokers: kafkaBrokers,
		checkKafka:   checkKafka,
	}
}

// SetScheduler подключает планировщик к /health. Выключенный планировщик только отображается.
func (h *HealthHandler) SetScheduler(s SchedulerState, enabled bool) {
	h.scheduler = s
	h.schedulerEnabled = enabled
}

// HealthResponse представляет ответ проверки здоровья
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Schema    *SchemaInfo       `json:"schema,omitempty"`
	Scheduler *SchedulerInfo    `json:"scheduler,omitempty"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// SchemaInfo: версия схемы по таблице миграций
type SchemaInfo struct {
	Version int64 `json:"version"`
	Dirty   bool  `json:"dirty"`
}

type SchedulerInfo struct {
	Enabled bool                 `json:"enabled"`
	Running bool                 `json:"running"`
	Jobs    []scheduler.JobState `json:"jobs"`
}

var startTime = time.Now()

// checkSchema: незавершённая миграция или пустая таблица миграций означают, что схема не готова.
func (h *HealthHandler) checkSchema(ctx context.Context) (*SchemaInfo, error) {
	version, dirty, err := h.db.SchemaState(ctx)
	if err != nil {
		return nil, err
	}
	info := &SchemaInfo{Version: version, Dirty: dirty}
	if dirty {
		return info, fmt.Errorf("migration %d is dirty", version)
	}
	return info, nil
}

// Health проверяет состояние всех компонентов системы
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
		Version:  "1.0.0",
		Uptime:   time.Since(startTime).String(),
	}

	record := func(name string, err error) {
		if err != nil {
			response.Services[name] = "unhealthy: " + err.Error()
			response.Status = "unhealthy"
			return
		}
		response.Services[name] = "healthy"
	}

	dbErr := h.db.Health()
	record("database", dbErr)
	if dbErr == nil {
		info, err := h.checkSchema(ctx)
		response.Schema = info
		record("schema", err)
	}
	record("redis", h.redisClient.Health(ctx))
	if h.checkKafka != nil {
		record("kafka", h.checkKafka(h.kafkaBrokers))
	}

	if h.scheduler != nil {
		info := &SchedulerInfo{
			Enabled: h.schedulerEnabled,
			Running: h.scheduler.Running(),
			Jobs:    h.scheduler.Snapshot(),
		}
		response.Scheduler = info
		if info.Enabled && !info.Running {
			record("scheduler", errors.New("not running"))
		} else if info.Enabled {
			record("scheduler", nil)
		}
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, response)
}

// Readiness: база с применёнными миграциями, Redis и брокеры доступны.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Health(); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Database not ready")
		return
	}

	schema, err := h.checkSchema(ctx)
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Database schema not ready")
		return
	}

	if err := h.redisClient.Health(ctx); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Redis not ready")
		return
	}

	if h.checkKafka != nil {
		if err := h.checkKafka(h.kafkaBrokers); err != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, "Kafka not ready")
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":         "ready",
		"schema_version": schema.Version,
	})
}

// Liveness проверяет, что приложение живо
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

// CheckKafkaHealth проверяет доступность Kafka брокеров
func CheckKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return nil
}
