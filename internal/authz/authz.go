package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Ресурсы и действия, которые проверяет оркестратор до вызова сценария.
// Владение конкретным заказом или спором проверяют сами сценарии.
const (
	ResourceOrders   = "orders"
	ResourceEscrow   = "escrow"
	ResourcePayouts  = "payouts"
	ResourceDisputes = "disputes"
	ResourceFraud    = "fraud"

	ActionCreate     = "create"
	ActionRead       = "read"
	ActionTransition = "transition"
	ActionAuthorize  = "authorize"
	ActionCapture    = "capture"
	ActionRelease    = "release"
	ActionRefund     = "refund"
	ActionProcess    = "process"
	ActionOpen       = "open"
	ActionEvidence   = "evidence"
	ActionEscalate   = "escalate"
	ActionResolve    = "resolve"
	ActionClose      = "close"
	ActionEvaluate   = "evaluate"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var defaultPolicies = [][]string{
	{"buyer", ResourceOrders, ActionCreate},
	{"buyer", ResourceOrders, ActionRead},
	{"buyer", ResourceOrders, ActionTransition},
	{"buyer", ResourceEscrow, ActionAuthorize},
	{"buyer", ResourceEscrow, ActionCapture},
	{"buyer", ResourceEscrow, ActionRead},

	{"seller", ResourceOrders, ActionRead},
	{"seller", ResourceOrders, ActionTransition},
	{"seller", ResourceEscrow, ActionRead},
	{"seller", ResourcePayouts, ActionCreate},
	{"seller", ResourcePayouts, ActionRead},

	{"participant", ResourceDisputes, ActionOpen},
	{"participant", ResourceDisputes, ActionEvidence},
	{"participant", ResourceDisputes, ActionRead},

	{"admin", "*", "*"},
}

var defaultGroups = [][]string{
	{"buyer", "participant"},
	{"seller", "participant"},
}

type Authorizer struct {
	enforcer *casbin.Enforcer
}

func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz: некорректная модель: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: не удалось создать enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("authz: не удалось загрузить политики: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(defaultGroups); err != nil {
		return nil, fmt.Errorf("authz: не удалось загрузить роли: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Authorize возвращает ErrForbidden, если роли не разрешено действие над ресурсом.
func (a *Authorizer) Authorize(role valueobject.Role, resource, action string) error {
	allowed, err := a.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "ошибка проверки прав")
	}
	if !allowed {
		return apperror.ErrForbidden.
			WithDetail("resource", resource).
			WithDetail("action", action)
	}
	return nil
}
