package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yashvanth/taskflow/internal/model"
)

// ユーザー行の変更・削除はToken Authorityの管理パスに集約する。
// Credential Storeを直接触るコンポーネントは他に存在しない。

// ListUsers は全ユーザーの公開情報を返す。
func (s *Service) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.Public())
	}
	return result, nil
}

// UpdateRole は指定ユーザーのロールを変更する。
func (s *Service) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	if !role.IsValid() {
		return model.NewInvalidRoleError(string(role))
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザー")
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("user role updated",
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	return nil
}

// DeleteUser は指定ユーザーを削除し、そのセッションエントリも破棄する。
// レジストリの削除はベストエフォート。
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザー")
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := s.registry.Delete(ctx, userID); err != nil {
		s.logger.Warn("session registry delete failed during user deletion",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user deleted", slog.String("user_id", userID))
	return nil
}
