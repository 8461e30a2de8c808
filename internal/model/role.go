package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Role 是调用方角色，在信任边界处解析一次，之后只以枚举形式流转。
type Role string

const (
	RoleOwner               Role = "owner"
	RoleManager             Role = "manager"
	RoleSalesRepresentative Role = "sales_representative"
	RoleConsumer            Role = "consumer"
)

// Roles 返回全部角色。
func Roles() []Role {
	return []Role{RoleOwner, RoleManager, RoleSalesRepresentative, RoleConsumer}
}

// ParseRole 只接受规范拼写（大小写不敏感），其它写法一律拒绝。
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles() {
		if r == known {
			return r, nil
		}
	}
	return "", errors.Errorf("unknown role %q", s)
}

// Actor 是发起请求的身份，由上游认证后传入，引擎不做鉴权。
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}
