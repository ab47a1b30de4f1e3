package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/db"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Get for an unknown workflow ID.
var ErrNotFound = errors.New("workflow: not found")

// Store persists terminal workflow records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
}

// Reader looks records up for front ends.
type Reader interface {
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

// GormStore keeps records in the workflows table.
type GormStore struct {
	db *gorm.DB
}

// NewStore returns a GormStore using the given connection.
func NewStore(gormDB *gorm.DB) *GormStore {
	return &GormStore{db: gormDB}
}

// Save upserts the record keyed by ID.
func (s *GormStore) Save(ctx context.Context, rec *Record) error {
	row, err := toModel(rec)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return db.Unavailable("workflow: save "+rec.ID, err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var row models.Workflow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, db.Unavailable("workflow: get "+id, err)
	}
	return fromModel(row)
}

// List returns the most recent records first.
func (s *GormStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.Workflow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, db.Unavailable("workflow: list", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func toModel(rec *Record) (models.Workflow, error) {
	research, err := json.Marshal(rec.Research)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("workflow: encode research: %w", err)
	}
	checks, err := json.Marshal(rec.FactCheck)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("workflow: encode fact checks: %w", err)
	}
	analyses, err := json.Marshal(rec.Analysis)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("workflow: encode analyses: %w", err)
	}
	return models.Workflow{
		ID:              rec.ID,
		Query:           rec.Query,
		ResearchResult:  string(research),
		FactCheckResult: string(checks),
		AnalysisResult:  string(analyses),
		FinalConfidence: rec.FinalConfidence,
		Status:          string(rec.Status),
		Phase:           string(rec.State),
		Error:           rec.Error,
		CreatedAt:       rec.CreatedAt,
		CompletedAt:     rec.CompletedAt,
	}, nil
}

func fromModel(row models.Workflow) (*Record, error) {
	rec := newRecord(row.ID, row.Query, row.CreatedAt)
	rec.FinalConfidence = row.FinalConfidence
	rec.Status = Status(row.Status)
	rec.State = State(row.Phase)
	rec.Error = row.Error
	rec.CompletedAt = row.CompletedAt

	if err := decodeList(row.ResearchResult, &rec.Research); err != nil {
		return nil, fmt.Errorf("workflow: decode research for %s: %w", row.ID, err)
	}
	if err := decodeList(row.FactCheckResult, &rec.FactCheck); err != nil {
		return nil, fmt.Errorf("workflow: decode fact checks for %s: %w", row.ID, err)
	}
	if err := decodeList(row.AnalysisResult, &rec.Analysis); err != nil {
		return nil, fmt.Errorf("workflow: decode analyses for %s: %w", row.ID, err)
	}
	return rec, nil
}

func decodeList(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
