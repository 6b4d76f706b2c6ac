package service

import (
	"context"

	"go.uber.org/zap"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/repository"
	"resource-planner/backend/internal/timelog"
)

// AllocationService 资源分配查询接口（分配的增删改由外部服务负责）
type AllocationService interface {
	ListByResource(ctx context.Context, actor timelog.Actor, resourceID string) ([]dto.AllocationResponse, error)
}

type allocationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAllocationService 创建 AllocationService 实例
func NewAllocationService(repo *repository.Repository, logger *zap.Logger) AllocationService {
	return &allocationService{repo: repo, logger: logger}
}

func (s *allocationService) ListByResource(ctx context.Context, actor timelog.Actor, resourceID string) ([]dto.AllocationResponse, error) {
	if err := authorize(actor, resourceID); err != nil {
		return nil, err
	}
	if err := ensureResource(ctx, s.repo, resourceID); err != nil {
		return nil, err
	}

	allocs, err := s.repo.Allocation.ListByResource(ctx, resourceID)
	if err != nil {
		s.logger.Error("查询资源分配失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, err
	}

	list := make([]dto.AllocationResponse, 0, len(allocs))
	for i := range allocs {
		list = append(list, *toAllocationResponse(&allocs[i]))
	}
	return list, nil
}
