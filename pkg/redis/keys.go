package redis

import "fmt"

// RateLimitKey 迁移接口限流键，subject 为 user:<id> 或 ip:<addr>。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("workflow:rate_limit:%s:%s", scope, subject)
}

// IdempotencyKey 将客户端幂等键映射到已创建的记录 ID。按实体与用户隔离。
func IdempotencyKey(kind string, actorID int64, clientKey string) string {
	return fmt.Sprintf("workflow:idem:%s:%d:%s", kind, actorID, clientKey)
}
