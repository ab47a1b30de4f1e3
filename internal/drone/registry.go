package drone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/db"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry persists drone snapshots in the agents table.
type Registry struct {
	db *gorm.DB
}

// NewRegistry returns a Registry using the given connection.
func NewRegistry(gormDB *gorm.DB) *Registry {
	return &Registry{db: gormDB}
}

// Save upserts a snapshot keyed by agent ID.
func (r *Registry) Save(ctx context.Context, snap models.Agent) error {
	if snap.ID == "" {
		return fmt.Errorf("drone: registry: agent id is required")
	}
	snap.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "current_task", "completed_tasks", "active", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return db.Unavailable("drone: registry: save "+snap.ID, err)
	}
	return nil
}

// Get retrieves one snapshot.
func (r *Registry) Get(ctx context.Context, id string) (*models.Agent, error) {
	var a models.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("drone: not found: %s", id)
		}
		return nil, db.Unavailable("drone: registry: get "+id, err)
	}
	return &a, nil
}

// List returns all snapshots ordered by role then ID.
func (r *Registry) List(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	if err := r.db.WithContext(ctx).Order("role ASC, id ASC").Find(&agents).Error; err != nil {
		return nil, db.Unavailable("drone: registry: list", err)
	}
	return agents, nil
}

// Deactivate marks every snapshot inactive, used on shutdown.
func (r *Registry) Deactivate(ctx context.Context) error {
	err := r.db.WithContext(ctx).Model(&models.Agent{}).Where("active = ?", true).
		Updates(map[string]interface{}{"active": false, "current_task": "", "updated_at": time.Now()}).Error
	if err != nil {
		return db.Unavailable("drone: registry: deactivate", err)
	}
	return nil
}
