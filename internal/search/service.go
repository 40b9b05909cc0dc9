// Package search はSearch Service（タスク・ユーザーの横断検索）を提供する。
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// UserResult はユーザー検索の1件を表す。
// 匿名リクエストにはメールアドレスを伏せて返す。
type UserResult struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Service は検索のビジネスロジックを提供する。
type Service struct {
	searchRepo repository.SearchRepository
}

// NewService はServiceを生成する。
func NewService(searchRepo repository.SearchRepository) *Service {
	return &Service{searchRepo: searchRepo}
}

// SearchTasks はタスクを全文検索する。
// 一般ユーザーの結果は本人のタスクに限定し、管理者のみ全ユーザーを横断できる。
// userIDは管理者向けの絞り込み条件で、空の場合は全ユーザーを対象とする。
func (s *Service) SearchTasks(ctx context.Context, claims *model.Claims, query string, status model.TaskStatus, userID string, limit, offset int) ([]*model.Task, error) {
	if status != "" && !status.IsValid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	q := repository.TaskSearchQuery{
		Query:  strings.TrimSpace(query),
		Status: status,
		UserID: userID,
		Limit:  clampLimit(limit),
		Offset: max(offset, 0),
	}

	// 一般ユーザーの所有者フィルタはクレームから導出し、
	// リクエストパラメータでは上書きできない
	if !claims.IsAdmin() {
		q.UserID = claims.Subject
	}

	tasks, err := s.searchRepo.SearchTasks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	return tasks, nil
}

// SearchUsers はメールアドレスの部分一致でユーザーを検索する。
// claimsがnil（匿名）の場合はメールアドレスを伏せた結果を返す。
func (s *Service) SearchUsers(ctx context.Context, claims *model.Claims, query string, limit int) ([]UserResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewMissingFieldError("q")
	}

	users, err := s.searchRepo.SearchUsers(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	results := make([]UserResult, 0, len(users))
	for _, u := range users {
		r := UserResult{ID: u.ID, Email: u.Email}
		if claims == nil {
			r.Email = redactEmail(u.Email)
		}
		results = append(results, r)
	}
	return results, nil
}

// redactEmail はローカル部を先頭1文字だけ残して伏せる。
func redactEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	if at <= 1 {
		return "***@" + email[at+1:]
	}
	return email[:1] + "***@" + email[at+1:]
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
