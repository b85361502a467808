package articles

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/enrichment"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the article reference service.
type ServiceParams struct {
	Logger   *logger.Logger
	Repo     Repository
	Producer snapshot.ArticleProducer
	Tx       txRunner
}

// ReloadResult summarises an import.
type ReloadResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Service loads the reference index and re-imports it from the ERP.
type Service struct {
	logg     *logger.Logger
	repo     Repository
	producer snapshot.ArticleProducer
	tx       txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("articles repository required")
	}
	return &Service{
		logg:     params.Logger,
		repo:     params.Repo,
		producer: params.Producer,
		tx:       params.Tx,
	}, nil
}

// LoadIndex reads the whole reference table into a lookup, once per refresh cycle.
func (s *Service) LoadIndex(ctx context.Context) (enrichment.Lookup, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load article reference: %w", err)
	}
	return BuildIndex(rows), nil
}

// BuildIndex converts stored rows into an enrichment lookup.
func BuildIndex(rows []models.ArticleDepartment) enrichment.MapLookup {
	index := make(enrichment.MapLookup, len(rows))
	for _, row := range rows {
		ref := enrichment.Reference{
			Department:    enums.NormalizeDepartment(string(row.Department)),
			SecondaryUnit: strings.TrimSpace(row.SecondaryUnit),
			Operator:      row.ConversionOperator,
		}
		if row.ConversionFactor != nil {
			factor := *row.ConversionFactor
			ref.Factor = &factor
		}
		index[row.ArticleCode] = ref
	}
	return index
}

// Reload replaces the reference table with a fresh ERP extraction.
func (s *Service) Reload(ctx context.Context) (ReloadResult, error) {
	if s.producer == nil || s.tx == nil {
		return ReloadResult{}, fmt.Errorf("article reload is not configured")
	}
	raw, err := s.producer.ProduceArticles(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("produce articles: %w", err)
	}

	rows, skipped := toModels(raw)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ReplaceAll(ctx, rows)
	})
	if err != nil {
		return ReloadResult{}, fmt.Errorf("replace article reference: %w", err)
	}

	result := ReloadResult{Imported: len(rows), Skipped: skipped}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}), "article reference reloaded")
	return result, nil
}

// IndexFromRows builds a lookup straight from extracted rows, without touching the
// database. It also returns how many rows were skipped.
func IndexFromRows(raw []snapshot.ArticleRow) (enrichment.MapLookup, int) {
	rows, skipped := toModels(raw)
	return BuildIndex(rows), skipped
}

// toModels drops placeholder codes and keeps the first row per article.
func toModels(raw []snapshot.ArticleRow) ([]models.ArticleDepartment, int) {
	seen := make(map[string]struct{}, len(raw))
	rows := make([]models.ArticleDepartment, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		code := strings.TrimSpace(r.ArticleCode)
		if code == "" || code == "." || code == ".." {
			skipped++
			continue
		}
		if _, dup := seen[code]; dup {
			skipped++
			continue
		}
		seen[code] = struct{}{}
		row := models.ArticleDepartment{
			ArticleCode:        code,
			Department:         enums.NormalizeDepartment(r.Department),
			SecondaryPackaging: strings.TrimSpace(r.SecondaryPackaging),
			SecondaryUnit:      strings.TrimSpace(r.SecondaryUnit),
			ConversionOperator: enums.NormalizeConversionOperator(r.ConversionOperator),
		}
		if !row.ConversionOperator.IsValid() {
			row.ConversionOperator = ""
		}
		if r.ConversionFactor != nil {
			factor := *r.ConversionFactor
			row.ConversionFactor = &factor
		}
		rows = append(rows, row)
	}
	return rows, skipped
}
