package service

import (
	"context"
	"fmt"

	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/repository"
)

// DocumentService 预览服务的只读查询
type DocumentService struct {
	sectionRepo repository.SectionRepository
	termRepo    repository.TermRepository
	docRepo     repository.DocumentRepository
	runRepo     repository.MigrationRunRepository
}

func NewDocumentService(sectionRepo repository.SectionRepository, termRepo repository.TermRepository, docRepo repository.DocumentRepository, runRepo repository.MigrationRunRepository) *DocumentService {
	return &DocumentService{
		sectionRepo: sectionRepo,
		termRepo:    termRepo,
		docRepo:     docRepo,
		runRepo:     runRepo,
	}
}

// SectionDetail 章节及其词条
type SectionDetail struct {
	model.Section
	Terms []model.Term `json:"terms"`
}

func (s *DocumentService) ListSections(ctx context.Context) ([]model.Section, error) {
	return s.sectionRepo.List(ctx)
}

func (s *DocumentService) GetSection(ctx context.Context, number int) (*SectionDetail, error) {
	section, err := s.sectionRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	terms, err := s.termRepo.ListBySection(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("list terms of section %d: %w", number, err)
	}
	return &SectionDetail{Section: *section, Terms: terms}, nil
}

// ListDocuments 章节下的文档，不含正文
func (s *DocumentService) ListDocuments(ctx context.Context, number int) ([]model.Document, error) {
	section, err := s.sectionRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.docRepo.ListBySection(ctx, section.ID)
}

func (s *DocumentService) Get(ctx context.Context, id uint) (*model.Document, error) {
	return s.docRepo.Get(ctx, id)
}

func (s *DocumentService) LatestRun(ctx context.Context) (*model.MigrationRun, error) {
	return s.runRepo.Latest(ctx)
}
