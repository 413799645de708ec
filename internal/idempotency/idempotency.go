// Package idempotency 记录带 Idempotency-Key 的写请求的首次结果，
// 重试时原样回放，避免网络重试变成多余的 409/404。
package idempotency

import (
	"context"
	"errors"
	"fmt"
)

// ErrInProgress 同一个键的首个请求还没有完成。
var ErrInProgress = errors.New("request in progress")

// Record 首次执行的响应。Done 为 false 表示仅占位；Headers 是需要随回放
// 一起返回的响应头；Fingerprint 是首次请求体的摘要，键被换了请求体重用时
// 用来拒绝回放。
type Record struct {
	Status      int               `json:"status"`
	ContentType string            `json:"content_type,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Done        bool              `json:"done"`
}

// Store 幂等记录存储。
//
// Reserve 原子地占位：
//   - 占位成功返回 (nil, nil)，调用方执行请求后必须 Complete 或 Release；
//   - 已有完成的记录返回 (record, nil)，调用方直接回放；
//   - 首个请求仍在执行返回 ErrInProgress。
type Store interface {
	Reserve(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key string, rec Record) error
	Release(ctx context.Context, key string) error
}

// Key 组合出存储键：动作 + 资源 + 用户 + 客户端给的键。
// 同一个客户端键换了用户或资源不会误命中。
func Key(action string, resourceID, userID uint, clientKey string) string {
	return fmt.Sprintf("idem:%s:%d:%d:%s", action, resourceID, userID, clientKey)
}
