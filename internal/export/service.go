// Package export writes filtered entity sets to downloadable files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/metacat-io/metacat/internal/domain"
	"github.com/metacat-io/metacat/internal/repository"
)

// Supported export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

var exportHeader = []string{"id", "entityType", "fullyQualifiedName", "name", "displayName", "description", "owner", "tags", "version", "properties"}

// Request selects the entities to export.
type Request struct {
	EntityType string
	Filters    []domain.PropertyFilter
	TextSearch string
	Format     string
}

// Result describes the written file.
type Result struct {
	FilePath     string `json:"filePath"`
	FileMimeType string `json:"fileMimeType"`
	Rows         int    `json:"rows"`
	ByteSize     int64  `json:"byteSize"`
}

// Service pages entities out of the repository and writes them to disk.
type Service struct {
	entities repository.EntityRepository

	exportDir string
	pageSize  int
	now       func() time.Time
}

// Option customizes the export service.
type Option func(*Service)

// WithExportDirectory overrides where export files are written.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithPageSize overrides the repository page size used while exporting.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewService creates an export service.
func NewService(entities repository.EntityRepository, opts ...Option) *Service {
	service := &Service{
		entities:  entities,
		exportDir: filepath.Join(os.TempDir(), "metacat-exports"),
		pageSize:  1000,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Export writes all entities matching the request to a new file and returns
// its metadata.
func (s *Service) Export(ctx context.Context, req Request) (Result, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatCSV {
		return Result{}, fmt.Errorf("unsupported export format %q", req.Format)
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	rows, err := s.collectRows(ctx, req)
	if err != nil {
		return Result{}, err
	}

	fileName := fmt.Sprintf("entities-%s-%s.%s",
		s.now().Format("20060102-150405"), uuid.New().String()[:8], format)
	filePath := filepath.Join(s.exportDir, fileName)

	switch format {
	case FormatCSV:
		err = writeCSV(filePath, rows)
	default:
		err = writeXLSX(filePath, rows)
	}
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat export file: %w", err)
	}

	mimeType := "text/csv"
	if format == FormatXLSX {
		mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	return Result{
		FilePath:     filePath,
		FileMimeType: mimeType,
		Rows:         len(rows),
		ByteSize:     info.Size(),
	}, nil
}

func (s *Service) collectRows(ctx context.Context, req Request) ([][]string, error) {
	filter := &domain.EntityFilter{
		EntityType:      req.EntityType,
		PropertyFilters: req.Filters,
		TextSearch:      req.TextSearch,
	}
	sort := &domain.EntitySort{Field: domain.EntitySortFieldFQN, Direction: domain.SortDirectionAsc}

	rows := [][]string{}
	offset := 0
	for {
		entities, _, err := s.entities.List(ctx, filter, sort, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to page entities for export: %w", err)
		}
		for _, entity := range entities {
			row, err := entityRow(entity)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		if len(entities) < s.pageSize {
			return rows, nil
		}
		offset += s.pageSize
	}
}

func entityRow(entity domain.Entity) ([]string, error) {
	tagFQNs := make([]string, len(entity.Tags))
	for i, tag := range entity.Tags {
		tagFQNs[i] = tag.TagFQN
	}
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties for entity %s: %w", entity.ID, err)
	}

	return []string{
		entity.ID.String(),
		entity.EntityType,
		entity.FQN,
		entity.Name,
		entity.DisplayName,
		entity.Description,
		entity.Owner,
		strings.Join(tagFQNs, ";"),
		strconv.FormatInt(entity.Version, 10),
		string(propertiesJSON),
	}, nil
}

func writeCSV(filePath string, rows [][]string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func writeXLSX(filePath string, rows [][]string) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Entities"
	index, err := workbook.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	workbook.SetActiveSheet(index)
	if err := workbook.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	writeRow := func(rowIndex int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return err
		}
		return workbook.SetSheetRow(sheet, cell, &values)
	}

	if err := writeRow(1, exportHeader); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := workbook.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// unmarshalFilters hydrates property filters from a JSON payload.
func unmarshalFilters(data []byte) ([]domain.PropertyFilter, error) {
	if len(data) == 0 {
		return []domain.PropertyFilter{}, nil
	}
	var filters []domain.PropertyFilter
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, err
	}
	if filters == nil {
		filters = []domain.PropertyFilter{}
	}
	return filters, nil
}
