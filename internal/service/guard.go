package service

import "forum/internal/metrics"

// Authorize 仅当 owner 存在且等于请求者时放行。房间 host 被置空后任何人都不能再修改它。
func Authorize(requesterID uint, ownerID *uint) error {
	if requesterID == 0 || ownerID == nil || *ownerID != requesterID {
		return ErrForbidden
	}
	return nil
}

// authorize 在 Authorize 的基础上记录拒绝次数，entity 为被保护的对象类型。
func authorize(entity string, requesterID uint, ownerID *uint) error {
	if err := Authorize(requesterID, ownerID); err != nil {
		metrics.AuthzDeniedTotal.WithLabelValues(entity).Inc()
		return err
	}
	return nil
}
